package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/platform/db"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	runner *db.Runner
}

// NewRepository constructs a repository.
func NewRepository(runner *db.Runner) *Repository {
	return &Repository{runner: runner}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Counter() numbering.Counter
	Ledger() inventory.TxRepository
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertPOLine(ctx context.Context, line POLine) (int64, error)
	LockPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error)
	UpdatePOStatus(ctx context.Context, id int64, status POStatus) error
	SetPOConfirmation(ctx context.Context, id int64, confirmedDate time.Time, confirmedBy string) error
	CreateGRN(ctx context.Context, grn GoodsReceipt) (int64, error)
	InsertGRNLine(ctx context.Context, line GRNLine) (int64, error)
	SetReceivedQuantity(ctx context.Context, poItemID int64, received int) error
}

type txRepo struct {
	q db.DBTX
}

// WithTx wraps callback in a serializable transaction with retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

func (tx *txRepo) Counter() numbering.Counter     { return numbering.NewCounter(tx.q) }
func (tx *txRepo) Ledger() inventory.TxRepository { return inventory.NewTxRepository(tx.q) }

// Fetch helpers

const poColumns = `p.po_id, p.po_number, p.supplier_id, COALESCE(s.company_name, ''), p.order_id, p.issue_date,
p.expected_delivery_date, p.status, p.total_amount, p.tax_percentage, p.tax_amount, p.grand_total,
COALESCE(p.payment_terms, ''), COALESCE(p.shipping_terms, ''), p.confirmed_date,
COALESCE(p.confirmed_by_supplier, ''), p.created_by, p.created_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	err := row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.SupplierName, &po.OrderID, &po.IssueDate,
		&po.ExpectedDeliveryDate, &status, &po.Subtotal, &po.TaxPercentage, &po.TaxAmount, &po.GrandTotal,
		&po.PaymentTerms, &po.ShippingTerms, &po.ConfirmedDate, &po.ConfirmedBySupplier, &po.CreatedBy, &po.CreatedAt)
	po.Status = POStatus(status)
	return po, err
}

// GetPO returns purchase order and lines.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	return getPO(ctx, r.runner.Pool(), id, false)
}

func (tx *txRepo) LockPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	return getPO(ctx, tx.q, id, true)
}

func getPO(ctx context.Context, q db.DBTX, id int64, lock bool) (PurchaseOrder, []POLine, error) {
	query := `SELECT ` + poColumns + `
FROM purchase_orders p LEFT JOIN suppliers s ON s.supplier_id = p.supplier_id
WHERE p.po_id = $1`
	if lock {
		query += ` FOR UPDATE OF p`
	}
	po, err := scanPO(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, nil, shared.NotFound("purchase order", id)
	}
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	rows, err := q.Query(ctx, `
SELECT po_item_id, po_id, product_id, quantity, unit_price, line_total, expected_date, received_quantity, status
FROM purchase_order_items WHERE po_id = $1 ORDER BY po_item_id`, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (POLine, error) {
		var l POLine
		err := row.Scan(&l.ID, &l.POID, &l.ProductID, &l.Qty, &l.UnitPrice, &l.LineTotal, &l.ExpectedDate,
			&l.ReceivedQty, &l.Status)
		return l, err
	})
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return po, lines, nil
}

// ListPOs returns purchase order headers with supplier names, newest first.
func (r *Repository) ListPOs(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	b := db.Psql.Select(poColumns).
		From("purchase_orders p").
		LeftJoin("suppliers s ON s.supplier_id = p.supplier_id").
		OrderBy("p.issue_date DESC", "p.po_id DESC")
	if filter.Status != "" {
		b = b.Where("p.status = ?", filter.Status)
	}
	if filter.SupplierID != nil {
		b = b.Where("p.supplier_id = ?", *filter.SupplierID)
	}
	b = db.Page(b, filter.Limit, filter.Offset, 100, 500)
	rows, err := db.QueryBuilt(ctx, r.runner.Pool(), b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PurchaseOrder, error) { return scanPO(row) })
}

// ListGRNs returns goods receipts of a PO with their lines, oldest first.
func (r *Repository) ListGRNs(ctx context.Context, poID int64) ([]GoodsReceipt, error) {
	pool := r.runner.Pool()
	rows, err := pool.Query(ctx, `
SELECT receipt_id, receipt_number, po_id, receipt_date, received_by, COALESCE(supplier_delivery_note, ''),
    status, COALESCE(notes, ''), created_at
FROM goods_receipts WHERE po_id = $1 ORDER BY receipt_date, receipt_id`, poID)
	if err != nil {
		return nil, err
	}
	grns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (GoodsReceipt, error) {
		var g GoodsReceipt
		err := row.Scan(&g.ID, &g.Number, &g.POID, &g.ReceiptDate, &g.ReceivedBy, &g.SupplierDeliveryNote,
			&g.Status, &g.Notes, &g.CreatedAt)
		return g, err
	})
	if err != nil || len(grns) == 0 {
		return grns, err
	}
	index := make(map[int64]int, len(grns))
	for i, g := range grns {
		index[g.ID] = i
	}
	rows, err = pool.Query(ctx, `
SELECT i.receipt_item_id, i.receipt_id, i.po_item_id, i.quantity_received, i.unit_price,
    COALESCE(i.batch_number, ''), i.expiry_date, COALESCE(i.location, ''), i.condition, COALESCE(i.notes, '')
FROM goods_receipt_items i
JOIN goods_receipts g ON g.receipt_id = i.receipt_id
WHERE g.po_id = $1 ORDER BY i.receipt_item_id`, poID)
	if err != nil {
		return nil, err
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (GRNLine, error) {
		var l GRNLine
		err := row.Scan(&l.ID, &l.GRNID, &l.POItemID, &l.Qty, &l.UnitPrice, &l.BatchNumber, &l.ExpiryDate,
			&l.Location, &l.Condition, &l.Notes)
		return l, err
	})
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		g := &grns[index[l.GRNID]]
		g.Lines = append(g.Lines, l)
	}
	return grns, nil
}

func (tx *txRepo) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := tx.q.QueryRow(ctx, `
INSERT INTO purchase_orders (po_number, supplier_id, order_id, issue_date, expected_delivery_date, status,
    total_amount, tax_percentage, tax_amount, grand_total, payment_terms, shipping_terms, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING po_id`,
		po.Number, po.SupplierID, po.OrderID, po.IssueDate, po.ExpectedDeliveryDate, string(po.Status),
		po.Subtotal, po.TaxPercentage, po.TaxAmount, po.GrandTotal, db.NullText(po.PaymentTerms),
		db.NullText(po.ShippingTerms), po.CreatedBy,
	).Scan(&id)
	return id, db.Translate(err)
}

func (tx *txRepo) InsertPOLine(ctx context.Context, line POLine) (int64, error) {
	var id int64
	err := tx.q.QueryRow(ctx, `
INSERT INTO purchase_order_items (po_id, product_id, quantity, unit_price, line_total, expected_date,
    received_quantity, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING po_item_id`,
		line.POID, line.ProductID, line.Qty, line.UnitPrice, line.LineTotal, line.ExpectedDate,
		line.ReceivedQty, line.Status,
	).Scan(&id)
	return id, err
}

func (tx *txRepo) UpdatePOStatus(ctx context.Context, id int64, status POStatus) error {
	tag, err := tx.q.Exec(ctx, `UPDATE purchase_orders SET status = $2 WHERE po_id = $1`, id, string(status))
	if err != nil {
		return db.Translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("purchase order", id)
	}
	return nil
}

func (tx *txRepo) SetPOConfirmation(ctx context.Context, id int64, confirmedDate time.Time, confirmedBy string) error {
	_, err := tx.q.Exec(ctx, `
UPDATE purchase_orders SET confirmed_date = $2, confirmed_by_supplier = $3 WHERE po_id = $1`,
		id, confirmedDate, db.NullText(confirmedBy))
	return db.Translate(err)
}

func (tx *txRepo) CreateGRN(ctx context.Context, grn GoodsReceipt) (int64, error) {
	var id int64
	err := tx.q.QueryRow(ctx, `
INSERT INTO goods_receipts (receipt_number, po_id, receipt_date, received_by, supplier_delivery_note, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING receipt_id`,
		grn.Number, grn.POID, grn.ReceiptDate, grn.ReceivedBy, db.NullText(grn.SupplierDeliveryNote),
		grn.Status, db.NullText(grn.Notes),
	).Scan(&id)
	return id, db.Translate(err)
}

func (tx *txRepo) InsertGRNLine(ctx context.Context, line GRNLine) (int64, error) {
	var id int64
	err := tx.q.QueryRow(ctx, `
INSERT INTO goods_receipt_items (receipt_id, po_item_id, quantity_received, unit_price, batch_number,
    expiry_date, location, condition, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING receipt_item_id`,
		line.GRNID, line.POItemID, line.Qty, line.UnitPrice, db.NullText(line.BatchNumber), line.ExpiryDate,
		db.NullText(line.Location), line.Condition, db.NullText(line.Notes),
	).Scan(&id)
	return id, db.Translate(err)
}

func (tx *txRepo) SetReceivedQuantity(ctx context.Context, poItemID int64, received int) error {
	tag, err := tx.q.Exec(ctx, `
UPDATE purchase_order_items
SET received_quantity = $2,
    status = CASE WHEN $2 >= quantity THEN 'Received' ELSE 'Partial' END
WHERE po_item_id = $1`, poItemID, received)
	if err != nil {
		return db.Translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("purchase order item", poItemID)
	}
	return nil
}

// lineError names the offending line when a product reference is missing.
func lineError(err error, line int) error {
	if db.SQLState(err) == db.CodeForeignKeyViolation {
		return shared.ValidationErrors{fmt.Sprintf("items[%d].product_id", line): "references an unknown product"}
	}
	return db.Translate(err)
}
