package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/erp-lite/internal/app"
	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/platform/cache"
	"github.com/odyssey-erp/erp-lite/internal/platform/db"
	"github.com/odyssey-erp/erp-lite/internal/platform/migrate"
	"github.com/odyssey-erp/erp-lite/internal/reports"
)

// Migrator applies and lists schema migrations.
type Migrator interface {
	Up(ctx context.Context) error
	Status(ctx context.Context) ([]migrate.MigrationState, error)
}

// AvailabilityReporter lists product stock levels.
type AvailabilityReporter interface {
	ProductAvailability(ctx context.Context, filter reports.AvailabilityFilter) ([]reports.AvailabilityRow, error)
}

// Numberer allocates document numbers.
type Numberer interface {
	NextNumber(ctx context.Context, t numbering.DocumentType, now time.Time) (string, error)
	Preview(ctx context.Context, t numbering.DocumentType, now time.Time) (string, error)
}

// JobQueue enqueues and inspects background jobs.
type JobQueue interface {
	Trigger(ctx context.Context, name string, asOf time.Time) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// Backend opens the collaborators a command needs. Commands open only what they use.
type Backend interface {
	Migrator(ctx context.Context) (Migrator, error)
	Reports(ctx context.Context) (AvailabilityReporter, error)
	Numbering(ctx context.Context) (Numberer, error)
	Jobs(ctx context.Context) (JobQueue, error)
	Close() error
}

type runtimeBackend struct {
	cfg     *app.Config
	logger  *slog.Logger
	redis   *redis.Client
	svc     *app.Services
	closers []func() error
}

// NewBackend connects lazily using the loaded configuration.
func NewBackend(cfg *app.Config, logger *slog.Logger) Backend {
	return &runtimeBackend{cfg: cfg, logger: logger}
}

func (b *runtimeBackend) services(ctx context.Context) (*app.Services, error) {
	if b.svc != nil {
		return b.svc, nil
	}
	pool, err := db.New(ctx, b.cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func() error { pool.Close(); return nil })

	if client, err := cache.New(ctx, b.cfg.RedisAddr); err != nil {
		b.logger.Warn("report cache disabled", slog.Any("error", err))
	} else {
		b.redis = client
		b.closers = append(b.closers, client.Close)
	}
	b.svc = app.NewServices(b.cfg, b.logger, pool, b.redis, nil)
	return b.svc, nil
}

func (b *runtimeBackend) Migrator(context.Context) (Migrator, error) {
	m, err := migrate.Open(b.cfg.PGDSN, b.logger)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, m.Close)
	return m, nil
}

func (b *runtimeBackend) Reports(ctx context.Context) (AvailabilityReporter, error) {
	svc, err := b.services(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Reports, nil
}

func (b *runtimeBackend) Numbering(ctx context.Context) (Numberer, error) {
	svc, err := b.services(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Numbering, nil
}

func (b *runtimeBackend) Jobs(context.Context) (JobQueue, error) {
	j, err := NewJobsCLI(b.cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, j.Close)
	return j, nil
}

func (b *runtimeBackend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
