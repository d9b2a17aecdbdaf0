package reports

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/erp-lite/internal/platform/db"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// Repository reads the report inputs. Every method is read-only.
type Repository interface {
	GetClient(ctx context.Context, clientID int64) (ClientSummary, error)
	StatementInvoices(ctx context.Context, clientID int64, period shared.DateRange) ([]StatementInvoice, error)
	StatementReceipts(ctx context.Context, clientID int64, period shared.DateRange) ([]StatementReceipt, error)
	SaleFacts(ctx context.Context, period shared.DateRange) ([]SaleFact, error)
	OpenInvoices(ctx context.Context) ([]OpenInvoice, error)
	Availability(ctx context.Context, filter AvailabilityFilter) ([]AvailabilityRow, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL report reader.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func between(b sq.SelectBuilder, column string, period shared.DateRange) sq.SelectBuilder {
	if !period.Start.IsZero() {
		b = b.Where(sq.GtOrEq{column: period.Start})
	}
	if !period.End.IsZero() {
		b = b.Where(sq.LtOrEq{column: period.End})
	}
	return b
}

func (r *pgRepository) GetClient(ctx context.Context, clientID int64) (ClientSummary, error) {
	var c ClientSummary
	err := r.pool.QueryRow(ctx, `
SELECT client_id, COALESCE(client_code, ''), company_name, COALESCE(contact_person, ''),
       COALESCE(email, ''), payment_terms
FROM clients WHERE client_id = $1`, clientID).
		Scan(&c.ID, &c.Code, &c.CompanyName, &c.ContactPerson, &c.Email, &c.PaymentTerms)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClientSummary{}, shared.NotFound("client", clientID)
	}
	return c, err
}

func (r *pgRepository) StatementInvoices(ctx context.Context, clientID int64, period shared.DateRange) ([]StatementInvoice, error) {
	b := db.Psql.Select(
		"i.invoice_id", "i.invoice_number", "i.invoice_date", "i.due_date",
		"i.grand_total", "i.amount_paid", "i.balance_due", "i.status",
		"COALESCE(string_agg(DISTINCT so.order_number, ', ' ORDER BY so.order_number), '')",
	).From("invoices i").
		LeftJoin("sales_orders so ON so.order_id = i.order_id").
		Where(sq.Eq{"i.client_id": clientID}).
		GroupBy("i.invoice_id").
		OrderBy("i.invoice_date DESC", "i.invoice_id DESC")
	b = between(b, "i.invoice_date", period)

	rows, err := db.QueryBuilt(ctx, r.pool, b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StatementInvoice, error) {
		var inv StatementInvoice
		err := row.Scan(&inv.InvoiceID, &inv.Number, &inv.InvoiceDate, &inv.DueDate,
			&inv.GrandTotal, &inv.AmountPaid, &inv.BalanceDue, &inv.Status, &inv.OrderNumbers)
		return inv, err
	})
}

func (r *pgRepository) StatementReceipts(ctx context.Context, clientID int64, period shared.DateRange) ([]StatementReceipt, error) {
	b := db.Psql.Select(
		"r.receipt_id", "r.receipt_number", "r.receipt_date", "r.amount", "r.payment_method", "i.invoice_number",
	).From("receipts r").
		Join("invoices i ON i.invoice_id = r.invoice_id").
		Where(sq.Eq{"i.client_id": clientID}).
		OrderBy("r.receipt_date ASC", "r.receipt_id ASC")
	b = between(b, "r.receipt_date", period)

	rows, err := db.QueryBuilt(ctx, r.pool, b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StatementReceipt, error) {
		var rc StatementReceipt
		err := row.Scan(&rc.ReceiptID, &rc.Number, &rc.ReceiptDate, &rc.Amount, &rc.PaymentMethod, &rc.InvoiceNumber)
		return rc, err
	})
}

func (r *pgRepository) SaleFacts(ctx context.Context, period shared.DateRange) ([]SaleFact, error) {
	b := db.Psql.Select("invoice_date", "client_id", "grand_total", "balance_due", "status").
		From("invoices").
		OrderBy("invoice_date")
	b = between(b, "invoice_date", period)

	rows, err := db.QueryBuilt(ctx, r.pool, b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SaleFact, error) {
		var f SaleFact
		err := row.Scan(&f.InvoiceDate, &f.ClientID, &f.GrandTotal, &f.BalanceDue, &f.Status)
		return f, err
	})
}

func (r *pgRepository) OpenInvoices(ctx context.Context) ([]OpenInvoice, error) {
	b := db.Psql.Select(
		"i.invoice_id", "i.invoice_number", "c.client_id", "c.company_name", "i.due_date", "i.balance_due", "i.status",
	).From("invoices i").
		Join("clients c ON c.client_id = i.client_id").
		Where(sq.Gt{"i.balance_due": 0}).
		Where(sq.NotEq{"i.status": "Cancelled"}).
		OrderBy("c.company_name", "i.due_date")

	rows, err := db.QueryBuilt(ctx, r.pool, b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OpenInvoice, error) {
		var inv OpenInvoice
		err := row.Scan(&inv.InvoiceID, &inv.Number, &inv.ClientID, &inv.ClientName, &inv.DueDate, &inv.BalanceDue, &inv.Status)
		return inv, err
	})
}

func (r *pgRepository) Availability(ctx context.Context, filter AvailabilityFilter) ([]AvailabilityRow, error) {
	b := db.Psql.Select(
		"p.product_id", "p.sku", "p.name", "COALESCE(p.category, '')", "p.current_stock", "p.reorder_level",
		"p.unit_price", "COALESCE(s.company_name, '')", "s.lead_time_days",
	).From("products p").
		LeftJoin("suppliers s ON s.supplier_id = p.supplier_id").
		OrderBy("p.current_stock ASC", "p.product_id ASC")
	if filter.ProductID != nil {
		b = b.Where(sq.Eq{"p.product_id": *filter.ProductID})
	}
	if filter.Category != "" {
		b = b.Where(sq.Eq{"p.category": filter.Category})
	}

	rows, err := db.QueryBuilt(ctx, r.pool, b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AvailabilityRow, error) {
		var a AvailabilityRow
		err := row.Scan(&a.ProductID, &a.SKU, &a.Name, &a.Category, &a.CurrentStock, &a.ReorderLevel,
			&a.UnitPrice, &a.SupplierName, &a.LeadTimeDays)
		return a, err
	})
}

