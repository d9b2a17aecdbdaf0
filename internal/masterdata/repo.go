package masterdata

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/platform/db"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// repo implements Repository over PostgreSQL.
type repo struct {
	runner *db.Runner
}

// NewRepository creates a new master data repository.
func NewRepository(runner *db.Runner) Repository {
	return &repo{runner: runner}
}

const clientColumns = `client_id, client_code, company_name, COALESCE(contact_person, ''), COALESCE(email, ''),
COALESCE(phone, ''), COALESCE(address, ''), COALESCE(city, ''), COALESCE(country, ''), COALESCE(tax_id, ''),
credit_limit, payment_terms, status, assigned_to, created_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.ClientCode, &c.CompanyName, &c.ContactPerson, &c.Email, &c.Phone,
		&c.Address, &c.City, &c.Country, &c.TaxID, &c.CreditLimit, &c.PaymentTerms, &c.Status,
		&c.AssignedTo, &c.CreatedAt)
	return c, err
}

// Client operations
func (r *repo) ListClients(ctx context.Context, filters ListFilters) ([]Client, error) {
	b := db.Psql.Select(clientColumns).From("clients").OrderBy("company_name", "client_id")
	if filters.Search != "" {
		b = b.Where(db.ILike(filters.Search, "company_name", "contact_person", "email", "phone"))
	}
	b = db.Page(b, filters.Limit, filters.Offset, 100, 500)
	rows, err := db.QueryBuilt(ctx, r.runner.Pool(), b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Client, error) { return scanClient(row) })
}

func (r *repo) GetClient(ctx context.Context, id int64) (Client, error) {
	c, err := scanClient(r.runner.Pool().QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE client_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, shared.NotFound("client", id)
	}
	return c, err
}

func (r *repo) CreateClient(ctx context.Context, c Client) (Client, error) {
	err := r.runner.Pool().QueryRow(ctx, `
INSERT INTO clients (client_code, company_name, contact_person, email, phone, address, city, country,
    tax_id, credit_limit, payment_terms, status, assigned_to)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING client_id, created_at`,
		c.ClientCode, c.CompanyName, db.NullText(c.ContactPerson), db.NullText(c.Email), db.NullText(c.Phone),
		db.NullText(c.Address), db.NullText(c.City), db.NullText(c.Country), db.NullText(c.TaxID),
		c.CreditLimit, c.PaymentTerms, c.Status, c.AssignedTo,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Client{}, clientWriteError(err)
	}
	return c, nil
}

func (r *repo) UpdateClient(ctx context.Context, c Client) error {
	tag, err := r.runner.Pool().Exec(ctx, `
UPDATE clients SET client_code = $2, company_name = $3, contact_person = $4, email = $5, phone = $6,
    address = $7, city = $8, country = $9, tax_id = $10, credit_limit = $11, payment_terms = $12,
    status = $13, assigned_to = $14
WHERE client_id = $1`,
		c.ID, c.ClientCode, c.CompanyName, db.NullText(c.ContactPerson), db.NullText(c.Email), db.NullText(c.Phone),
		db.NullText(c.Address), db.NullText(c.City), db.NullText(c.Country), db.NullText(c.TaxID),
		c.CreditLimit, c.PaymentTerms, c.Status, c.AssignedTo)
	if err != nil {
		return clientWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("client", c.ID)
	}
	return nil
}

func (r *repo) DeleteClient(ctx context.Context, id int64) error {
	return deleteRow(ctx, r.runner.Pool(), "clients", "client_id", "client", id)
}

func clientWriteError(err error) error {
	if db.SQLState(err) == db.CodeUniqueViolation {
		return ErrDuplicateClientCode
	}
	return db.Translate(err)
}

const supplierColumns = `supplier_id, company_name, COALESCE(contact_person, ''), COALESCE(email, ''),
COALESCE(phone, ''), COALESCE(address, ''), COALESCE(city, ''), COALESCE(country, ''), COALESCE(tax_id, ''),
lead_time_days, payment_terms, status, created_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.CompanyName, &s.ContactPerson, &s.Email, &s.Phone, &s.Address,
		&s.City, &s.Country, &s.TaxID, &s.LeadTimeDays, &s.PaymentTerms, &s.Status, &s.CreatedAt)
	return s, err
}

// Supplier operations
func (r *repo) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, error) {
	b := db.Psql.Select(supplierColumns).From("suppliers").OrderBy("company_name", "supplier_id")
	if filters.Search != "" {
		b = b.Where(db.ILike(filters.Search, "company_name", "contact_person", "email", "phone"))
	}
	b = db.Page(b, filters.Limit, filters.Offset, 100, 500)
	rows, err := db.QueryBuilt(ctx, r.runner.Pool(), b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Supplier, error) { return scanSupplier(row) })
}

func (r *repo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, err := scanSupplier(r.runner.Pool().QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE supplier_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.NotFound("supplier", id)
	}
	return s, err
}

func (r *repo) CreateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.runner.Pool().QueryRow(ctx, `
INSERT INTO suppliers (company_name, contact_person, email, phone, address, city, country, tax_id,
    lead_time_days, payment_terms, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING supplier_id, created_at`,
		s.CompanyName, db.NullText(s.ContactPerson), db.NullText(s.Email), db.NullText(s.Phone),
		db.NullText(s.Address), db.NullText(s.City), db.NullText(s.Country), db.NullText(s.TaxID),
		s.LeadTimeDays, s.PaymentTerms, s.Status,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return Supplier{}, db.Translate(err)
	}
	return s, nil
}

func (r *repo) UpdateSupplier(ctx context.Context, s Supplier) error {
	tag, err := r.runner.Pool().Exec(ctx, `
UPDATE suppliers SET company_name = $2, contact_person = $3, email = $4, phone = $5, address = $6,
    city = $7, country = $8, tax_id = $9, lead_time_days = $10, payment_terms = $11, status = $12
WHERE supplier_id = $1`,
		s.ID, s.CompanyName, db.NullText(s.ContactPerson), db.NullText(s.Email), db.NullText(s.Phone),
		db.NullText(s.Address), db.NullText(s.City), db.NullText(s.Country), db.NullText(s.TaxID),
		s.LeadTimeDays, s.PaymentTerms, s.Status)
	if err != nil {
		return db.Translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("supplier", s.ID)
	}
	return nil
}

func (r *repo) DeleteSupplier(ctx context.Context, id int64) error {
	return deleteRow(ctx, r.runner.Pool(), "suppliers", "supplier_id", "supplier", id)
}

const productColumns = `product_id, sku, name, COALESCE(description, ''), COALESCE(category, ''), unit_price,
cost_price, unit_of_measure, reorder_level, current_stock, supplier_id, created_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.UnitPrice, &p.CostPrice,
		&p.UnitOfMeasure, &p.ReorderLevel, &p.CurrentStock, &p.SupplierID, &p.CreatedAt)
	return p, err
}

// Product operations
func (r *repo) ListProducts(ctx context.Context, filters ListFilters) ([]Product, error) {
	b := db.Psql.Select(productColumns).From("products").OrderBy("name", "product_id")
	if filters.Search != "" {
		b = b.Where(db.ILike(filters.Search, "sku", "name", "description"))
	}
	if filters.Category != "" {
		b = b.Where(sq.Eq{"category": filters.Category})
	}
	b = db.Page(b, filters.Limit, filters.Offset, 100, 500)
	rows, err := db.QueryBuilt(ctx, r.runner.Pool(), b)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) { return scanProduct(row) })
}

func (r *repo) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.runner.Pool().QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFound("product", id)
	}
	return p, err
}

func (r *repo) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.runner.Pool().Exec(ctx, `
UPDATE products SET sku = $2, name = $3, description = $4, category = $5, unit_price = $6, cost_price = $7,
    unit_of_measure = $8, reorder_level = $9, supplier_id = $10
WHERE product_id = $1`,
		p.ID, p.SKU, p.Name, db.NullText(p.Description), db.NullText(p.Category), p.UnitPrice, p.CostPrice,
		p.UnitOfMeasure, p.ReorderLevel, p.SupplierID)
	if err != nil {
		return productWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("product", p.ID)
	}
	return nil
}

func (r *repo) DeleteProduct(ctx context.Context, id int64) error {
	return deleteRow(ctx, r.runner.Pool(), "products", "product_id", "product", id)
}

func productWriteError(err error) error {
	if db.SQLState(err) == db.CodeUniqueViolation {
		return ErrDuplicateSKU
	}
	return db.Translate(err)
}

// WithTx executes the callback inside a serializable transaction.
func (r *repo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

type txRepo struct {
	q db.DBTX
}

func (r *txRepo) InsertProduct(ctx context.Context, p Product) (Product, error) {
	err := r.q.QueryRow(ctx, `
INSERT INTO products (sku, name, description, category, unit_price, cost_price, unit_of_measure,
    reorder_level, current_stock, supplier_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9)
RETURNING product_id, created_at`,
		p.SKU, p.Name, db.NullText(p.Description), db.NullText(p.Category), p.UnitPrice, p.CostPrice,
		p.UnitOfMeasure, p.ReorderLevel, p.SupplierID,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Product{}, productWriteError(err)
	}
	p.CurrentStock = 0
	return p, nil
}

func (r *txRepo) Ledger() inventory.TxRepository {
	return inventory.NewTxRepository(r.q)
}

// deleteRow removes one row; a foreign key violation means documents still reference it.
func deleteRow(ctx context.Context, q db.DBTX, table, idColumn, entity string, id int64) error {
	tag, err := q.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, idColumn), id)
	if err != nil {
		if db.SQLState(err) == db.CodeForeignKeyViolation {
			return fmt.Errorf("%w: %s %d", ErrHasDependents, entity, id)
		}
		return db.Translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound(entity, id)
	}
	return nil
}
