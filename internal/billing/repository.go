package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/platform/db"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// Repository persists invoices and receipts in PostgreSQL.
type Repository struct {
	runner *db.Runner
}

// NewRepository constructs Repository.
func NewRepository(runner *db.Runner) *Repository {
	return &Repository{runner: runner}
}

type txRepo struct {
	q db.DBTX
}

// WithTx executes fn inside a serializable transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

func (tx *txRepo) Counter() numbering.Counter { return numbering.NewCounter(tx.q) }

const invoiceColumns = `invoice_id, invoice_number, order_id, client_id, delivery_id, invoice_date, due_date, status,
subtotal, tax_amount, grand_total, amount_paid, balance_due, COALESCE(payment_terms, ''), created_by, created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.ClientID, &inv.DeliveryID, &inv.InvoiceDate,
		&inv.DueDate, &status, &inv.Subtotal, &inv.TaxAmount, &inv.GrandTotal, &inv.AmountPaid, &inv.BalanceDue,
		&inv.PaymentTerms, &inv.CreatedBy, &inv.CreatedAt)
	inv.Status = InvoiceStatus(status)
	return inv, err
}

// GetInvoice returns one invoice.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, r.runner.Pool(), id, false)
}

func (tx *txRepo) LockInvoice(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, tx.q, id, true)
}

func getInvoice(ctx context.Context, q db.DBTX, id int64, lock bool) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFound("invoice", id)
	}
	return inv, err
}

// ListInvoices returns invoices newest first.
func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	b := db.Psql.Select(invoiceColumns).From("invoices").OrderBy("invoice_date DESC", "invoice_id DESC")
	if filter.ClientID != nil {
		b = b.Where("client_id = ?", *filter.ClientID)
	}
	if filter.OrderID != nil {
		b = b.Where("order_id = ?", *filter.OrderID)
	}
	if filter.Status != "" {
		b = b.Where("status = ?", filter.Status)
	}
	b = db.Page(b, filter.Limit, filter.Offset, 100, 500)
	rows, err := db.QueryBuilt(ctx, r.runner.Pool(), b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Invoice, error) { return scanInvoice(row) })
}

// ListReceipts returns receipts of an invoice, oldest first.
func (r *Repository) ListReceipts(ctx context.Context, invoiceID int64) ([]Receipt, error) {
	rows, err := r.runner.Pool().Query(ctx, `
SELECT receipt_id, receipt_number, invoice_id, receipt_date, receipt_type, payment_method, amount,
    COALESCE(reference_number, ''), COALESCE(notes, ''), created_by, created_at
FROM receipts WHERE invoice_id = $1 ORDER BY receipt_date, receipt_id`, invoiceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Receipt, error) {
		var rc Receipt
		var kind string
		err := row.Scan(&rc.ID, &rc.Number, &rc.InvoiceID, &rc.ReceiptDate, &kind, &rc.PaymentMethod, &rc.Amount,
			&rc.ReferenceNumber, &rc.Notes, &rc.CreatedBy, &rc.CreatedAt)
		rc.Type = ReceiptType(kind)
		return rc, err
	})
}

func (tx *txRepo) GetBillableOrder(ctx context.Context, orderID int64) (BillableOrder, error) {
	var o BillableOrder
	err := tx.q.QueryRow(ctx, `
SELECT o.order_id, o.order_number, o.client_id, o.status, o.total_amount, o.tax_amount, o.grand_total,
    COALESCE(o.payment_terms, ''), COALESCE(c.payment_terms, '')
FROM sales_orders o JOIN clients c ON c.client_id = o.client_id
WHERE o.order_id = $1 FOR UPDATE OF o`, orderID).
		Scan(&o.ID, &o.Number, &o.ClientID, &o.Status, &o.Subtotal, &o.TaxAmount, &o.GrandTotal,
			&o.PaymentTerms, &o.ClientPaymentTerms)
	if errors.Is(err, pgx.ErrNoRows) {
		return BillableOrder{}, shared.NotFound("sales order", orderID)
	}
	return o, err
}

// OpenInvoiceNumber returns the number of the order's invoice that is not Cancelled, or "".
func (tx *txRepo) OpenInvoiceNumber(ctx context.Context, orderID int64) (string, error) {
	var number string
	err := tx.q.QueryRow(ctx, `
SELECT invoice_number FROM invoices
WHERE order_id = $1 AND status <> 'Cancelled'
ORDER BY invoice_id LIMIT 1`, orderID).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (tx *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	err := tx.q.QueryRow(ctx, `
INSERT INTO invoices (invoice_number, order_id, client_id, delivery_id, invoice_date, due_date, status,
    subtotal, tax_amount, grand_total, amount_paid, balance_due, payment_terms, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING invoice_id, created_at`,
		inv.Number, inv.OrderID, inv.ClientID, inv.DeliveryID, inv.InvoiceDate, inv.DueDate, string(inv.Status),
		inv.Subtotal, inv.TaxAmount, inv.GrandTotal, inv.AmountPaid, inv.BalanceDue, db.NullText(inv.PaymentTerms),
		inv.CreatedBy,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return Invoice{}, db.Translate(err)
	}
	return inv, nil
}

func (tx *txRepo) UpdateInvoicePayment(ctx context.Context, inv Invoice) error {
	tag, err := tx.q.Exec(ctx, `
UPDATE invoices SET amount_paid = $2, balance_due = $3, status = $4 WHERE invoice_id = $1`,
		inv.ID, inv.AmountPaid, inv.BalanceDue, string(inv.Status))
	if err != nil {
		return db.Translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("invoice", inv.ID)
	}
	return nil
}

func (tx *txRepo) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	tag, err := tx.q.Exec(ctx, `UPDATE invoices SET status = $2 WHERE invoice_id = $1`, id, string(status))
	if err != nil {
		return db.Translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("invoice", id)
	}
	return nil
}

func (tx *txRepo) InsertReceipt(ctx context.Context, rc Receipt) (Receipt, error) {
	err := tx.q.QueryRow(ctx, `
INSERT INTO receipts (receipt_number, invoice_id, receipt_date, receipt_type, payment_method, amount,
    reference_number, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING receipt_id, created_at`,
		rc.Number, rc.InvoiceID, rc.ReceiptDate, string(rc.Type), rc.PaymentMethod, rc.Amount,
		db.NullText(rc.ReferenceNumber), db.NullText(rc.Notes), rc.CreatedBy,
	).Scan(&rc.ID, &rc.CreatedAt)
	if err != nil {
		return Receipt{}, db.Translate(err)
	}
	return rc, nil
}

func (tx *txRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	tag, err := tx.q.Exec(ctx, `
UPDATE invoices SET status = 'Overdue' WHERE status = 'Unpaid' AND due_date < $1`, asOf)
	if err != nil {
		return 0, db.Translate(err)
	}
	return int(tag.RowsAffected()), nil
}
