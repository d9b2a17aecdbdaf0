package db

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// DefaultMaxRetries bounds serialization retries when no option is given.
const DefaultMaxRetries = 5

// RetryObserver is told about every retried attempt.
type RetryObserver func(sqlState string)

// RunnerOptions tunes transaction execution.
type RunnerOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	Logger     *slog.Logger
	OnRetry    RetryObserver
}

// Runner executes callbacks inside serializable transactions with bounded retry.
type Runner struct {
	pool *pgxpool.Pool
	opts RunnerOptions
}

// NewRunner builds a Runner over pool.
func NewRunner(pool *pgxpool.Pool, opts RunnerOptions) *Runner {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 10 * time.Millisecond
	}
	return &Runner{pool: pool, opts: opts}
}

// Pool exposes the underlying pool for read-only queries.
func (r *Runner) Pool() *pgxpool.Pool {
	return r.pool
}

// WithTx runs fn in a serializable transaction. Serialization failures and deadlocks are
// retried up to MaxRetries times; the last one surfaces as shared.ErrContention.
func (r *Runner) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return Retry(ctx, r.opts, func() error {
		return runOnce(ctx, r.pool, pgx.Serializable, fn)
	})
}

// WithTx executes a function within a serializable transaction using default retry options.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return NewRunner(pool, RunnerOptions{}).WithTx(ctx, fn)
}

// Retry calls attempt until it succeeds, fails with a non-retryable error, or the retry
// budget runs out.
func Retry(ctx context.Context, opts RunnerOptions, attempt func() error) error {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	var err error
	for try := 0; try <= maxRetries; try++ {
		err = attempt()
		if err == nil || !IsRetryable(err) {
			return err
		}
		state := SQLState(err)
		if opts.OnRetry != nil {
			opts.OnRetry(state)
		}
		if opts.Logger != nil {
			opts.Logger.Debug("retrying transaction", slog.Int("attempt", try+1), slog.String("sqlstate", state))
		}
		if try == maxRetries {
			break
		}
		if waitErr := sleep(ctx, backoff(opts.BaseDelay, try)); waitErr != nil {
			return waitErr
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts: %v", shared.ErrContention, maxRetries+1, err)
}

func runOnce(ctx context.Context, pool *pgxpool.Pool, iso pgx.TxIsoLevel, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

func backoff(base time.Duration, try int) time.Duration {
	d := base << try
	return d/2 + time.Duration(rand.Int64N(int64(d/2)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
