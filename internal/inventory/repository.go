package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/erp-lite/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	runner *db.Runner
}

// NewRepository constructs Repository.
func NewRepository(runner *db.Runner) *Repository {
	return &Repository{runner: runner}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, productID int64) (ProductStock, error)
	UpdateStock(ctx context.Context, productID int64, stock int) error
	InsertTransaction(ctx context.Context, entry Transaction) (Transaction, error)
}

type txRepo struct {
	q db.DBTX
}

// NewTxRepository binds ledger operations to q, normally a transaction opened by another
// package's repository.
func NewTxRepository(q db.DBTX) TxRepository {
	return &txRepo{q: q}
}

// WithTx executes the callback inside a serializable transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// ListTransactions returns ledger rows newest first.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	b := db.Psql.Select(
		"transaction_id", "product_id", "transaction_type", "reference_id",
		"COALESCE(reference_number, '')", "quantity_change", "unit_cost",
		"transaction_date", "performed_by", "COALESCE(notes, '')",
	).From("inventory_transactions").
		OrderBy("transaction_date DESC", "transaction_id DESC")
	if filter.ProductID > 0 {
		b = b.Where("product_id = ?", filter.ProductID)
	}
	b = db.Page(b, filter.Limit, filter.Offset, 200, 1000)

	rows, err := db.QueryBuilt(ctx, r.runner.Pool(), b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var txType string
		if err := rows.Scan(&t.ID, &t.ProductID, &txType, &t.ReferenceID, &t.ReferenceNumber,
			&t.QuantityChange, &t.UnitCost, &t.TransactionDate, &t.PerformedBy, &t.Notes); err != nil {
			return nil, err
		}
		t.Type = TransactionType(txType)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Reconcile compares products.current_stock with the ledger sum.
func (r *Repository) Reconcile(ctx context.Context, productID int64) (Reconciliation, error) {
	rec := Reconciliation{ProductID: productID}
	err := r.runner.Pool().QueryRow(ctx, `
SELECT p.current_stock, COALESCE(SUM(t.quantity_change), 0)
FROM products p
LEFT JOIN inventory_transactions t ON t.product_id = p.product_id
WHERE p.product_id = $1
GROUP BY p.product_id, p.current_stock`, productID).Scan(&rec.CurrentStock, &rec.LedgerTotal)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reconciliation{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	if err != nil {
		return Reconciliation{}, err
	}
	rec.Drift = rec.CurrentStock - rec.LedgerTotal
	return rec, nil
}

func (r *txRepo) GetProductForUpdate(ctx context.Context, productID int64) (ProductStock, error) {
	var p ProductStock
	err := r.q.QueryRow(ctx, `
SELECT product_id, sku, name, current_stock, cost_price
FROM products WHERE product_id = $1 FOR UPDATE`, productID).
		Scan(&p.ProductID, &p.SKU, &p.Name, &p.CurrentStock, &p.CostPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductStock{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	return p, err
}

func (r *txRepo) UpdateStock(ctx context.Context, productID int64, stock int) error {
	tag, err := r.q.Exec(ctx, `UPDATE products SET current_stock = $2 WHERE product_id = $1`, productID, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	return nil
}

func (r *txRepo) InsertTransaction(ctx context.Context, entry Transaction) (Transaction, error) {
	err := r.q.QueryRow(ctx, `
INSERT INTO inventory_transactions
    (product_id, transaction_type, reference_id, reference_number, quantity_change, unit_cost, performed_by, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING transaction_id, transaction_date`,
		entry.ProductID, string(entry.Type), entry.ReferenceID, db.NullText(entry.ReferenceNumber),
		entry.QuantityChange, entry.UnitCost, entry.PerformedBy, db.NullText(entry.Notes),
	).Scan(&entry.ID, &entry.TransactionDate)
	if err != nil {
		return Transaction{}, db.Translate(err)
	}
	return entry, nil
}
