package numbering

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// Counter increments the per-bucket counter and returns the new value. Implementations
// must be atomic with respect to concurrent callers.
type Counter interface {
	Increment(ctx context.Context, t DocumentType, b Bucket) (int, error)
}

// RepositoryPort abstracts counter storage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Counter) error) error
	Last(ctx context.Context, t DocumentType, b Bucket) (int, error)
}

// Service hands out document numbers.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// NextNumber allocates the next number for t in the bucket of now, in its own transaction.
func (s *Service) NextNumber(ctx context.Context, t DocumentType, now time.Time) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, t)
	}
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, c Counter) error {
		var err error
		number, err = Allocate(ctx, c, t, now)
		return err
	})
	if err != nil {
		return "", shared.Internal(err)
	}
	s.logger.Debug("document number issued", slog.String("type", string(t)), slog.String("number", number))
	return number, nil
}

// Preview formats the number the next allocation would return without reserving it.
func (s *Service) Preview(ctx context.Context, t DocumentType, now time.Time) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, t)
	}
	b := BucketOf(now)
	last, err := s.repo.Last(ctx, t, b)
	if err != nil {
		return "", shared.Internal(err)
	}
	return Format(t, b, last+1)
}

// Allocate reserves a number through c. Callers use it inside the transaction that inserts
// the document so the number and the row commit together.
func Allocate(ctx context.Context, c Counter, t DocumentType, now time.Time) (string, error) {
	b := BucketOf(now)
	seq, err := c.Increment(ctx, t, b)
	if err != nil {
		return "", fmt.Errorf("numbering: allocate %s: %w", t, err)
	}
	return Format(t, b, seq)
}
