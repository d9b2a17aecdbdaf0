package reports

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheKeysAreVersioned(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "aging", "2024-05-14")
	require.NoError(t, err)
	require.Equal(t, "reports:v1:aging:2024-05-14", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "aging", "2024-05-14")
	require.NoError(t, err)
	require.Equal(t, "reports:v2:aging:2024-05-14", key)
}

func TestCachedReportsServeFromRedisUntilBumped(t *testing.T) {
	cache, mr := newTestCache(t)
	repo := newMemoryRepo()
	repo.products = []AvailabilityRow{{ProductID: 1, SKU: "WID-1", Name: "Widget", CurrentStock: 3, ReorderLevel: 10}}
	svc := newService(repo, cache)
	ctx := context.Background()

	first, err := svc.ProductAvailability(ctx, AvailabilityFilter{})
	require.NoError(t, err)
	second, err := svc.ProductAvailability(ctx, AvailabilityFilter{})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), repo.loads.Load())
	require.True(t, mr.Exists("reports:v1:availability:-:"))

	repo.products[0].CurrentStock = 0
	require.NoError(t, svc.Bump(ctx))
	third, err := svc.ProductAvailability(ctx, AvailabilityFilter{})
	require.NoError(t, err)
	require.Equal(t, StockOut, third[0].StockStatus)
	require.Equal(t, int32(2), repo.loads.Load())
}

func TestCachedAgingRoundTrips(t *testing.T) {
	cache, _ := newTestCache(t)
	repo := newMemoryRepo()
	repo.invoices = []fakeInvoice{{id: 1, clientID: 1, due: today.AddDate(0, 0, -40), grandTotal: dec("75.50"), paid: dec("0")}}
	svc := newService(repo, cache)

	want, err := svc.Aging(context.Background(), today)
	require.NoError(t, err)
	got, err := svc.Aging(context.Background(), today)
	require.NoError(t, err)
	require.Equal(t, int32(1), repo.loads.Load())
	require.Len(t, got.Rows, 1)
	require.True(t, got.Rows[0].Days31To60.Equal(want.Rows[0].Days31To60))
	require.True(t, got.AsOf.Equal(want.AsOf))
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	cache, _ := newTestCache(t)
	repo := newMemoryRepo()
	svc := newService(repo, cache)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := svc.MonthlySales(context.Background(), Range{})
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.LessOrEqual(t, repo.loads.Load(), int32(8))
	require.GreaterOrEqual(t, repo.loads.Load(), int32(1))
}

func TestCacheOutageFallsBackToRepository(t *testing.T) {
	cache, mr := newTestCache(t)
	repo := newMemoryRepo()
	repo.products = []AvailabilityRow{{ProductID: 1, CurrentStock: 20, ReorderLevel: 5}}
	svc := newService(repo, cache)
	mr.Close()

	rows, err := svc.ProductAvailability(context.Background(), AvailabilityFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, StockIn, rows[0].StockStatus)
}

func TestStoreFailureKeepsLoadedValue(t *testing.T) {
	cache, mr := newTestCache(t)
	var logs bytes.Buffer
	cache.WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "availability", "-")
	require.NoError(t, err)

	loads := 0
	var got []AvailabilityRow
	err = cache.FetchJSON(ctx, key, &got, func(context.Context) (any, error) {
		loads++
		mr.SetError("READONLY replica")
		return []AvailabilityRow{{ProductID: 9, SKU: "GEAR-9"}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, loads)
	require.Len(t, got, 1)
	require.Equal(t, "GEAR-9", got[0].SKU)
	require.Contains(t, logs.String(), "report cache store failed")
}

func TestNilCacheBumpIsNoop(t *testing.T) {
	var cache *Cache
	require.NoError(t, cache.Bump(context.Background()))
}
