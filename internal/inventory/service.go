package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	Reconcile(ctx context.Context, productID int64) (Reconciliation, error)
}

// Service coordinates inventory operations.
type Service struct {
	repo     RepositoryPort
	allowNeg bool
	cache    shared.Invalidator
	logger   *slog.Logger
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cfg ServiceConfig, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, allowNeg: cfg.AllowNegativeStock, cache: cache, logger: logger}
}

// ApplyTransaction posts one movement: stock update and ledger row commit together.
func (s *Service) ApplyTransaction(ctx context.Context, input ApplyInput) (Transaction, error) {
	if err := input.Validate(); err != nil {
		return Transaction{}, err
	}
	var posted Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		posted, err = s.ApplyInTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return Transaction{}, shared.Internal(err)
	}
	s.logger.Info("inventory transaction posted",
		slog.Int64("product_id", posted.ProductID),
		slog.String("type", string(posted.Type)),
		slog.Int("quantity_change", posted.QuantityChange),
		slog.Int("balance_after", posted.BalanceAfter))
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return posted, nil
}

// ApplyBatch posts several movements in one transaction; any failure leaves nothing behind.
func (s *Service) ApplyBatch(ctx context.Context, inputs []ApplyInput) ([]Transaction, error) {
	if len(inputs) == 0 {
		return nil, shared.Invalid("inventory: batch must contain at least one movement")
	}
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	var posted []Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		posted = posted[:0]
		for _, in := range inputs {
			entry, err := s.ApplyInTx(ctx, tx, in)
			if err != nil {
				return err
			}
			posted = append(posted, entry)
		}
		return nil
	})
	if err != nil {
		return nil, shared.Internal(err)
	}
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return posted, nil
}

// ApplyInTx posts a movement inside a transaction the caller owns, so documents can move
// stock atomically with their own rows. The caller invalidates caches after commit.
func (s *Service) ApplyInTx(ctx context.Context, tx TxRepository, input ApplyInput) (Transaction, error) {
	if err := input.Validate(); err != nil {
		return Transaction{}, err
	}
	product, err := tx.GetProductForUpdate(ctx, input.ProductID)
	if err != nil {
		return Transaction{}, err
	}
	newStock := product.CurrentStock + input.QuantityChange
	if !s.allowNeg && newStock < 0 {
		return Transaction{}, fmt.Errorf("%w: %s has %d, change %d", ErrNegativeStock, product.SKU, product.CurrentStock, input.QuantityChange)
	}
	if err := tx.UpdateStock(ctx, product.ProductID, newStock); err != nil {
		return Transaction{}, err
	}
	entry, err := tx.InsertTransaction(ctx, Transaction{
		ProductID:       product.ProductID,
		Type:            input.Type,
		ReferenceID:     input.ReferenceID,
		ReferenceNumber: input.ReferenceNumber,
		QuantityChange:  input.QuantityChange,
		UnitCost:        product.CostPrice,
		PerformedBy:     input.PerformedBy,
		Notes:           input.Notes,
	})
	if err != nil {
		return Transaction{}, err
	}
	entry.BalanceAfter = newStock
	return entry, nil
}

// ListTransactions returns ledger rows newest first. productID 0 lists every product.
func (s *Service) ListTransactions(ctx context.Context, productID int64, limit int) ([]Transaction, error) {
	if productID < 0 {
		return nil, shared.Invalid("product_id must be positive")
	}
	rows, err := s.repo.ListTransactions(ctx, TransactionFilter{ProductID: productID, Limit: limit})
	if err != nil {
		return nil, shared.Internal(err)
	}
	return rows, nil
}

// ReconcileStock reports drift between current_stock and the ledger sum.
func (s *Service) ReconcileStock(ctx context.Context, productID int64) (Reconciliation, error) {
	rec, err := s.repo.Reconcile(ctx, productID)
	if err != nil {
		return Reconciliation{}, shared.Internal(err)
	}
	if !rec.InSync() {
		s.logger.Warn("stock drift detected", slog.Int64("product_id", productID), slog.Int("drift", rec.Drift))
	}
	return rec, nil
}
