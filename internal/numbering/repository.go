package numbering

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/erp-lite/internal/platform/db"
)

const incrementCounterSQL = `
INSERT INTO document_counters (doc_type, year, month, last_value)
VALUES ($1, $2, $3, 1)
ON CONFLICT (doc_type, year, month)
DO UPDATE SET last_value = document_counters.last_value + 1, updated_at = NOW()
RETURNING last_value`

// Repository stores counters in document_counters.
type Repository struct {
	runner *db.Runner
}

// NewRepository constructs Repository.
func NewRepository(runner *db.Runner) *Repository {
	return &Repository{runner: runner}
}

// WithTx runs fn with a counter bound to a serializable transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Counter) error) error {
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, NewCounter(tx))
	})
}

// Last returns the last issued counter of the bucket, 0 when none was issued.
func (r *Repository) Last(ctx context.Context, t DocumentType, b Bucket) (int, error) {
	var last int
	err := r.runner.Pool().QueryRow(ctx,
		`SELECT last_value FROM document_counters WHERE doc_type = $1 AND year = $2 AND month = $3`,
		string(t), b.Year, b.Month,
	).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return last, err
}

type pgCounter struct {
	q db.DBTX
}

// NewCounter binds a Counter to q, normally an open transaction.
func NewCounter(q db.DBTX) Counter {
	return &pgCounter{q: q}
}

// Increment upserts the bucket row; the row lock serialises concurrent allocators.
func (c *pgCounter) Increment(ctx context.Context, t DocumentType, b Bucket) (int, error) {
	var value int
	if err := c.q.QueryRow(ctx, incrementCounterSQL, string(t), b.Year, b.Month).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}
