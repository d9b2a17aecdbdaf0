package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/platform/db"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// Repository is the persistence port used by Service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetQuotation(ctx context.Context, id int64) (Quotation, error)
	ListQuotations(ctx context.Context, filter ListFilter) ([]Quotation, error)
	GetSalesOrder(ctx context.Context, id int64) (SalesOrder, error)
	ListSalesOrders(ctx context.Context, filter ListFilter) ([]SalesOrder, error)
	ListDeliveryNotes(ctx context.Context, orderID int64) ([]DeliveryNote, error)
}

// TxRepository groups the writes that must share one transaction.
type TxRepository interface {
	Counter() numbering.Counter
	Ledger() inventory.TxRepository

	InsertQuotation(ctx context.Context, q Quotation) (Quotation, error)
	GetQuotationForUpdate(ctx context.Context, id int64) (Quotation, error)
	UpdateQuotationStatus(ctx context.Context, id int64, status QuotationStatus) error

	InsertSalesOrder(ctx context.Context, o SalesOrder) (SalesOrder, error)
	OrderNumberForQuotation(ctx context.Context, quotationID int64) (string, error)
	GetSalesOrderForUpdate(ctx context.Context, id int64) (SalesOrder, error)
	UpdateSalesOrderStatus(ctx context.Context, id int64, status SalesOrderStatus) error

	InsertDeliveryNote(ctx context.Context, note DeliveryNote) (DeliveryNote, error)
	SetDeliveredQuantity(ctx context.Context, orderItemID int64, delivered int) error
}

type pgRepository struct {
	runner *db.Runner
}

// NewRepository returns the PostgreSQL implementation of Repository.
func NewRepository(runner *db.Runner) Repository {
	return &pgRepository{runner: runner}
}

type pgTx struct {
	q db.DBTX
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{q: tx})
	})
}

func (t *pgTx) Counter() numbering.Counter     { return numbering.NewCounter(t.q) }
func (t *pgTx) Ledger() inventory.TxRepository { return inventory.NewTxRepository(t.q) }

// ============================================================================
// QUOTATIONS
// ============================================================================

const quotationColumns = `quotation_id, quotation_number, client_id, inquiry_id, issue_date, expiry_date, status,
total_amount, tax_percentage, tax_amount, grand_total, COALESCE(terms_and_conditions, ''), prepared_by, created_at`

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	var status string
	err := row.Scan(&q.ID, &q.Number, &q.ClientID, &q.InquiryID, &q.IssueDate, &q.ExpiryDate, &status,
		&q.Subtotal, &q.TaxPercentage, &q.TaxAmount, &q.GrandTotal, &q.Terms, &q.PreparedBy, &q.CreatedAt)
	q.Status = QuotationStatus(status)
	return q, err
}

func (r *pgRepository) GetQuotation(ctx context.Context, id int64) (Quotation, error) {
	return getQuotation(ctx, r.runner.Pool(), id, false)
}

func (t *pgTx) GetQuotationForUpdate(ctx context.Context, id int64) (Quotation, error) {
	return getQuotation(ctx, t.q, id, true)
}

func getQuotation(ctx context.Context, q db.DBTX, id int64, lock bool) (Quotation, error) {
	query := `SELECT ` + quotationColumns + ` FROM quotations WHERE quotation_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	quotation, err := scanQuotation(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Quotation{}, shared.NotFound("quotation", id)
	}
	if err != nil {
		return Quotation{}, err
	}
	rows, err := q.Query(ctx, `
SELECT quotation_item_id, quotation_id, product_id, quantity, unit_price, discount_percentage,
    discount_amount, line_total, estimated_delivery_days
FROM quotation_items WHERE quotation_id = $1 ORDER BY quotation_item_id`, id)
	if err != nil {
		return Quotation{}, err
	}
	quotation.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (QuotationItem, error) {
		var it QuotationItem
		err := row.Scan(&it.ID, &it.QuotationID, &it.ProductID, &it.Quantity, &it.UnitPrice,
			&it.DiscountPercentage, &it.DiscountAmount, &it.LineTotal, &it.EstimatedDeliveryDays)
		return it, err
	})
	return quotation, err
}

func (r *pgRepository) ListQuotations(ctx context.Context, filter ListFilter) ([]Quotation, error) {
	b := db.Psql.Select(quotationColumns).From("quotations").OrderBy("issue_date DESC", "quotation_id DESC")
	if filter.ClientID != nil {
		b = b.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != "" {
		b = b.Where("status = ?", filter.Status)
	}
	b = db.Page(b, filter.Limit, filter.Offset, 100, 500)
	rows, err := db.QueryBuilt(ctx, r.runner.Pool(), b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Quotation, error) { return scanQuotation(row) })
}

func (t *pgTx) InsertQuotation(ctx context.Context, q Quotation) (Quotation, error) {
	err := t.q.QueryRow(ctx, `
INSERT INTO quotations (quotation_number, client_id, inquiry_id, issue_date, expiry_date, status,
    total_amount, tax_percentage, tax_amount, grand_total, terms_and_conditions, prepared_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING quotation_id, created_at`,
		q.Number, q.ClientID, q.InquiryID, q.IssueDate, q.ExpiryDate, string(q.Status),
		q.Subtotal, q.TaxPercentage, q.TaxAmount, q.GrandTotal, db.NullText(q.Terms), q.PreparedBy,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return Quotation{}, db.Translate(err)
	}
	for i := range q.Items {
		it := &q.Items[i]
		it.QuotationID = q.ID
		err := t.q.QueryRow(ctx, `
INSERT INTO quotation_items (quotation_id, product_id, quantity, unit_price, discount_percentage,
    discount_amount, line_total, estimated_delivery_days)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING quotation_item_id`,
			it.QuotationID, it.ProductID, it.Quantity, it.UnitPrice, it.DiscountPercentage,
			it.DiscountAmount, it.LineTotal, it.EstimatedDeliveryDays,
		).Scan(&it.ID)
		if err != nil {
			return Quotation{}, lineError(err, i)
		}
	}
	return q, nil
}

func (t *pgTx) UpdateQuotationStatus(ctx context.Context, id int64, status QuotationStatus) error {
	return updateStatus(ctx, t.q, "quotations", "quotation_id", "quotation", id, string(status))
}

// ============================================================================
// SALES ORDERS
// ============================================================================

const orderColumns = `order_id, order_number, client_id, quotation_id, order_date, expected_delivery_date, status,
total_amount, tax_percentage, tax_amount, grand_total, COALESCE(payment_terms, ''), COALESCE(shipping_address, ''),
COALESCE(billing_address, ''), created_by, created_at`

func scanOrder(row pgx.Row) (SalesOrder, error) {
	var o SalesOrder
	var status string
	err := row.Scan(&o.ID, &o.Number, &o.ClientID, &o.QuotationID, &o.OrderDate, &o.ExpectedDeliveryDate, &status,
		&o.Subtotal, &o.TaxPercentage, &o.TaxAmount, &o.GrandTotal, &o.PaymentTerms, &o.ShippingAddress,
		&o.BillingAddress, &o.CreatedBy, &o.CreatedAt)
	o.Status = SalesOrderStatus(status)
	return o, err
}

func (r *pgRepository) GetSalesOrder(ctx context.Context, id int64) (SalesOrder, error) {
	return getOrder(ctx, r.runner.Pool(), id, false)
}

func (t *pgTx) GetSalesOrderForUpdate(ctx context.Context, id int64) (SalesOrder, error) {
	return getOrder(ctx, t.q, id, true)
}

func getOrder(ctx context.Context, q db.DBTX, id int64, lock bool) (SalesOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM sales_orders WHERE order_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	order, err := scanOrder(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return SalesOrder{}, shared.NotFound("sales order", id)
	}
	if err != nil {
		return SalesOrder{}, err
	}
	rows, err := q.Query(ctx, `
SELECT order_item_id, order_id, product_id, quantity, unit_price, discount_amount, line_total,
    delivered_quantity, status
FROM sales_order_items WHERE order_id = $1 ORDER BY order_item_id`, id)
	if err != nil {
		return SalesOrder{}, err
	}
	order.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (SalesOrderItem, error) {
		var it SalesOrderItem
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.DiscountAmount,
			&it.LineTotal, &it.DeliveredQuantity, &it.Status)
		return it, err
	})
	return order, err
}

func (r *pgRepository) ListSalesOrders(ctx context.Context, filter ListFilter) ([]SalesOrder, error) {
	b := db.Psql.Select(orderColumns).From("sales_orders").OrderBy("order_date DESC", "order_id DESC")
	if filter.ClientID != nil {
		b = b.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != "" {
		b = b.Where("status = ?", filter.Status)
	}
	b = db.Page(b, filter.Limit, filter.Offset, 100, 500)
	rows, err := db.QueryBuilt(ctx, r.runner.Pool(), b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SalesOrder, error) { return scanOrder(row) })
}

// OrderNumberForQuotation returns the number of the order created from quotationID, or ""
// when the quotation has not been converted.
func (t *pgTx) OrderNumberForQuotation(ctx context.Context, quotationID int64) (string, error) {
	var number string
	err := t.q.QueryRow(ctx, `SELECT order_number FROM sales_orders WHERE quotation_id = $1 LIMIT 1`, quotationID).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (t *pgTx) InsertSalesOrder(ctx context.Context, o SalesOrder) (SalesOrder, error) {
	err := t.q.QueryRow(ctx, `
INSERT INTO sales_orders (order_number, client_id, quotation_id, order_date, expected_delivery_date, status,
    total_amount, tax_percentage, tax_amount, grand_total, payment_terms, shipping_address, billing_address, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING order_id, created_at`,
		o.Number, o.ClientID, o.QuotationID, o.OrderDate, o.ExpectedDeliveryDate, string(o.Status),
		o.Subtotal, o.TaxPercentage, o.TaxAmount, o.GrandTotal, db.NullText(o.PaymentTerms),
		db.NullText(o.ShippingAddress), db.NullText(o.BillingAddress), o.CreatedBy,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return SalesOrder{}, db.Translate(err)
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := t.q.QueryRow(ctx, `
INSERT INTO sales_order_items (order_id, product_id, quantity, unit_price, discount_amount, line_total,
    delivered_quantity, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING order_item_id`,
			it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.DiscountAmount, it.LineTotal,
			it.DeliveredQuantity, it.Status,
		).Scan(&it.ID)
		if err != nil {
			return SalesOrder{}, lineError(err, i)
		}
	}
	return o, nil
}

func (t *pgTx) UpdateSalesOrderStatus(ctx context.Context, id int64, status SalesOrderStatus) error {
	return updateStatus(ctx, t.q, "sales_orders", "order_id", "sales order", id, string(status))
}

// ============================================================================
// DELIVERY NOTES
// ============================================================================

func (t *pgTx) InsertDeliveryNote(ctx context.Context, note DeliveryNote) (DeliveryNote, error) {
	err := t.q.QueryRow(ctx, `
INSERT INTO delivery_notes (delivery_number, order_id, delivery_date, shipped_by, shipping_method,
    tracking_number, status, delivery_address, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING delivery_id, created_at`,
		note.Number, note.OrderID, note.DeliveryDate, note.ShippedBy, db.NullText(note.ShippingMethod),
		db.NullText(note.TrackingNumber), note.Status, db.NullText(note.Address), db.NullText(note.Notes),
	).Scan(&note.ID, &note.CreatedAt)
	if err != nil {
		return DeliveryNote{}, db.Translate(err)
	}
	for i := range note.Items {
		it := &note.Items[i]
		it.DeliveryID = note.ID
		err := t.q.QueryRow(ctx, `
INSERT INTO delivery_note_items (delivery_id, order_item_id, quantity_delivered, batch_number)
VALUES ($1, $2, $3, $4)
RETURNING delivery_item_id`,
			it.DeliveryID, it.OrderItemID, it.Quantity, db.NullText(it.BatchNumber),
		).Scan(&it.ID)
		if err != nil {
			return DeliveryNote{}, lineError(err, i)
		}
	}
	return note, nil
}

func (t *pgTx) SetDeliveredQuantity(ctx context.Context, orderItemID int64, delivered int) error {
	tag, err := t.q.Exec(ctx, `
UPDATE sales_order_items
SET delivered_quantity = $2,
    status = CASE WHEN $2 >= quantity THEN 'Delivered' ELSE 'Partial' END
WHERE order_item_id = $1`, orderItemID, delivered)
	if err != nil {
		return db.Translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("sales order item", orderItemID)
	}
	return nil
}

func (r *pgRepository) ListDeliveryNotes(ctx context.Context, orderID int64) ([]DeliveryNote, error) {
	pool := r.runner.Pool()
	rows, err := pool.Query(ctx, `
SELECT delivery_id, delivery_number, order_id, delivery_date, shipped_by, COALESCE(shipping_method, ''),
    COALESCE(tracking_number, ''), status, COALESCE(delivery_address, ''), COALESCE(notes, ''), created_at
FROM delivery_notes WHERE order_id = $1 ORDER BY delivery_date, delivery_id`, orderID)
	if err != nil {
		return nil, err
	}
	notes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DeliveryNote, error) {
		var n DeliveryNote
		err := row.Scan(&n.ID, &n.Number, &n.OrderID, &n.DeliveryDate, &n.ShippedBy, &n.ShippingMethod,
			&n.TrackingNumber, &n.Status, &n.Address, &n.Notes, &n.CreatedAt)
		return n, err
	})
	if err != nil || len(notes) == 0 {
		return notes, err
	}

	index := make(map[int64]int, len(notes))
	for i, n := range notes {
		index[n.ID] = i
	}
	rows, err = pool.Query(ctx, `
SELECT i.delivery_item_id, i.delivery_id, i.order_item_id, i.quantity_delivered, COALESCE(i.batch_number, '')
FROM delivery_note_items i
JOIN delivery_notes d ON d.delivery_id = i.delivery_id
WHERE d.order_id = $1 ORDER BY i.delivery_item_id`, orderID)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DeliveryItem, error) {
		var it DeliveryItem
		err := row.Scan(&it.ID, &it.DeliveryID, &it.OrderItemID, &it.Quantity, &it.BatchNumber)
		return it, err
	})
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		n := &notes[index[it.DeliveryID]]
		n.Items = append(n.Items, it)
	}
	return notes, nil
}

func updateStatus(ctx context.Context, q db.DBTX, table, key, entity string, id int64, status string) error {
	tag, err := q.Exec(ctx, `UPDATE `+table+` SET status = $2 WHERE `+key+` = $1`, id, status)
	if err != nil {
		return db.Translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound(entity, id)
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

