package numbering

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNextNumberIsSequentialWithinBucket(t *testing.T) {
	svc := NewService(NewMemoryCounter(), nil)
	ctx := context.Background()
	now := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)

	first, err := svc.NextNumber(ctx, Quotation, now)
	require.NoError(t, err)
	second, err := svc.NextNumber(ctx, Quotation, now)
	require.NoError(t, err)

	require.Equal(t, "QUOT2024050001", first)
	require.Equal(t, "QUOT2024050002", second)
}

func TestNextNumberBucketsAreIndependent(t *testing.T) {
	svc := NewService(NewMemoryCounter(), nil)
	ctx := context.Background()
	may := time.Date(2024, time.May, 31, 23, 0, 0, 0, time.UTC)
	june := may.Add(2 * time.Hour)

	_, err := svc.NextNumber(ctx, SalesOrder, may)
	require.NoError(t, err)
	_, err = svc.NextNumber(ctx, SalesOrder, may)
	require.NoError(t, err)

	got, err := svc.NextNumber(ctx, SalesOrder, june)
	require.NoError(t, err)
	require.Equal(t, "SO2024060001", got)

	got, err = svc.NextNumber(ctx, PurchaseOrder, may)
	require.NoError(t, err)
	require.Equal(t, "PO2024050001", got)
}

func TestNextNumberContinuesAfterBackfill(t *testing.T) {
	counter := NewMemoryCounter()
	counter.Set(Quotation, Bucket{Year: 2024, Month: 5}, 12)
	svc := NewService(counter, nil)

	got, err := svc.NextNumber(context.Background(), Quotation, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "QUOT2024050013", got)
}

func TestNextNumberExhausted(t *testing.T) {
	counter := NewMemoryCounter()
	b := Bucket{Year: 2024, Month: 5}
	counter.Set(Invoice, b, MaxSequence)
	svc := NewService(counter, nil)

	_, err := svc.NextNumber(context.Background(), Invoice, time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestNextNumberUnknownType(t *testing.T) {
	svc := NewService(NewMemoryCounter(), nil)
	_, err := svc.NextNumber(context.Background(), DocumentType("memo"), time.Now())
	require.ErrorIs(t, err, ErrUnknownDocumentType)
}

func TestPreviewDoesNotAllocate(t *testing.T) {
	svc := NewService(NewMemoryCounter(), nil)
	ctx := context.Background()
	now := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)

	preview, err := svc.Preview(ctx, DeliveryNote, now)
	require.NoError(t, err)
	require.Equal(t, "DN2024050001", preview)

	issued, err := svc.NextNumber(ctx, DeliveryNote, now)
	require.NoError(t, err)
	require.Equal(t, preview, issued)
}

func TestNextNumberConcurrentCallersNeverCollide(t *testing.T) {
	svc := NewService(NewMemoryCounter(), nil)
	ctx := context.Background()
	now := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)

	const callers = 64
	var (
		mu     sync.Mutex
		issued []string
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			number, err := svc.NextNumber(gctx, Invoice, now)
			if err != nil {
				return err
			}
			mu.Lock()
			issued = append(issued, number)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, issued, callers)

	sort.Strings(issued)
	for i, number := range issued {
		_, _, seq, err := ParseNumber(number)
		require.NoError(t, err)
		require.Equal(t, i+1, seq)
	}
}
