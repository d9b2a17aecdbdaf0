package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// DefaultReorderLevel applies when a product is created without one.
const DefaultReorderLevel = 10

// ListFilters represents standard list filters.
type ListFilters struct {
	Search   string
	Category string
	Limit    int
	Offset   int
}

// Client represents a customer company.
type Client struct {
	ID            int64               `json:"id"`
	ClientCode    *string             `json:"client_code,omitempty"`
	CompanyName   string              `json:"company_name"`
	ContactPerson string              `json:"contact_person,omitempty"`
	Email         string              `json:"email,omitempty"`
	Phone         string              `json:"phone,omitempty"`
	Address       string              `json:"address,omitempty"`
	City          string              `json:"city,omitempty"`
	Country       string              `json:"country,omitempty"`
	TaxID         string              `json:"tax_id,omitempty"`
	CreditLimit   decimal.NullDecimal `json:"credit_limit"`
	PaymentTerms  string              `json:"payment_terms"`
	Status        string              `json:"status"`
	AssignedTo    *int64              `json:"assigned_to,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ClientInput carries writable client fields.
type ClientInput struct {
	ClientCode    string              `json:"client_code" validate:"max=32"`
	CompanyName   string              `json:"company_name" validate:"required,max=200"`
	ContactPerson string              `json:"contact_person" validate:"max=200"`
	Email         string              `json:"email" validate:"omitempty,email"`
	Phone         string              `json:"phone" validate:"max=50"`
	Address       string              `json:"address"`
	City          string              `json:"city" validate:"max=100"`
	Country       string              `json:"country" validate:"max=100"`
	TaxID         string              `json:"tax_id" validate:"max=50"`
	CreditLimit   decimal.NullDecimal `json:"credit_limit"`
	PaymentTerms  string              `json:"payment_terms" validate:"max=20"`
	Status        string              `json:"status" validate:"omitempty,oneof=Active Inactive"`
	AssignedTo    *int64              `json:"assigned_to"`
}

func (in ClientInput) normalize() ClientInput {
	in.ClientCode = strings.TrimSpace(in.ClientCode)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.ContactPerson = strings.TrimSpace(in.ContactPerson)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.PaymentTerms == "" {
		in.PaymentTerms = "NET30"
	}
	if in.Status == "" {
		in.Status = "Active"
	}
	return in
}

func (in ClientInput) validate() error {
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	if in.CreditLimit.Valid && in.CreditLimit.Decimal.IsNegative() {
		return shared.ValidationErrors{"credit_limit": "must be at least 0"}
	}
	return nil
}

func (in ClientInput) toClient() Client {
	c := Client{
		CompanyName:   in.CompanyName,
		ContactPerson: in.ContactPerson,
		Email:         in.Email,
		Phone:         in.Phone,
		Address:       in.Address,
		City:          in.City,
		Country:       in.Country,
		TaxID:         in.TaxID,
		CreditLimit:   in.CreditLimit,
		PaymentTerms:  in.PaymentTerms,
		Status:        in.Status,
		AssignedTo:    in.AssignedTo,
	}
	if in.ClientCode != "" {
		code := in.ClientCode
		c.ClientCode = &code
	}
	return c
}

// Supplier represents a supplier entity.
type Supplier struct {
	ID            int64     `json:"id"`
	CompanyName   string    `json:"company_name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	Country       string    `json:"country,omitempty"`
	TaxID         string    `json:"tax_id,omitempty"`
	LeadTimeDays  *int      `json:"lead_time_days,omitempty"`
	PaymentTerms  string    `json:"payment_terms"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// SupplierInput carries writable supplier fields.
type SupplierInput struct {
	CompanyName   string `json:"company_name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person" validate:"max=200"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"max=50"`
	Address       string `json:"address"`
	City          string `json:"city" validate:"max=100"`
	Country       string `json:"country" validate:"max=100"`
	TaxID         string `json:"tax_id" validate:"max=50"`
	LeadTimeDays  *int   `json:"lead_time_days" validate:"omitempty,gte=0"`
	PaymentTerms  string `json:"payment_terms" validate:"max=20"`
	Status        string `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

func (in SupplierInput) normalize() SupplierInput {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.ContactPerson = strings.TrimSpace(in.ContactPerson)
	in.Email = strings.TrimSpace(in.Email)
	if in.PaymentTerms == "" {
		in.PaymentTerms = "NET30"
	}
	if in.Status == "" {
		in.Status = "Active"
	}
	return in
}

func (in SupplierInput) toSupplier() Supplier {
	return Supplier{
		CompanyName:   in.CompanyName,
		ContactPerson: in.ContactPerson,
		Email:         in.Email,
		Phone:         in.Phone,
		Address:       in.Address,
		City:          in.City,
		Country:       in.Country,
		TaxID:         in.TaxID,
		LeadTimeDays:  in.LeadTimeDays,
		PaymentTerms:  in.PaymentTerms,
		Status:        in.Status,
	}
}

// Product represents a product entity.
type Product struct {
	ID            int64               `json:"id"`
	SKU           string              `json:"sku"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Category      string              `json:"category,omitempty"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	CostPrice     decimal.NullDecimal `json:"cost_price"`
	UnitOfMeasure string              `json:"unit_of_measure"`
	ReorderLevel  int                 `json:"reorder_level"`
	CurrentStock  int                 `json:"current_stock"`
	SupplierID    *int64              `json:"supplier_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ProductInput carries writable product fields. OpeningStock is honoured on create only.
type ProductInput struct {
	SKU           string              `json:"sku" validate:"required,max=64"`
	Name          string              `json:"name" validate:"required,max=200"`
	Description   string              `json:"description"`
	Category      string              `json:"category" validate:"max=100"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	CostPrice     decimal.NullDecimal `json:"cost_price"`
	UnitOfMeasure string              `json:"unit_of_measure" validate:"max=20"`
	ReorderLevel  *int                `json:"reorder_level" validate:"omitempty,gte=0"`
	OpeningStock  int                 `json:"opening_stock" validate:"gte=0"`
	SupplierID    *int64              `json:"supplier_id"`
}

func (in ProductInput) normalize() ProductInput {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.UnitOfMeasure == "" {
		in.UnitOfMeasure = "pcs"
	}
	return in
}

func (in ProductInput) validate() error {
	errs := shared.ValidationErrors{}
	if err := shared.ValidateStruct(in); err != nil {
		if !errors.As(err, &errs) {
			return err
		}
	}
	if in.UnitPrice.IsNegative() {
		errs.Add("unit_price", "must be at least 0")
	}
	if in.CostPrice.Valid && in.CostPrice.Decimal.IsNegative() {
		errs.Add("cost_price", "must be at least 0")
	}
	return errs.Err()
}

func (in ProductInput) toProduct() Product {
	reorder := DefaultReorderLevel
	if in.ReorderLevel != nil {
		reorder = *in.ReorderLevel
	}
	return Product{
		SKU:           in.SKU,
		Name:          in.Name,
		Description:   in.Description,
		Category:      in.Category,
		UnitPrice:     shared.Round2(in.UnitPrice),
		CostPrice:     in.CostPrice,
		UnitOfMeasure: in.UnitOfMeasure,
		ReorderLevel:  reorder,
		SupplierID:    in.SupplierID,
	}
}

// Repository persists master data.
type Repository interface {
	ListClients(ctx context.Context, filters ListFilters) ([]Client, error)
	GetClient(ctx context.Context, id int64) (Client, error)
	CreateClient(ctx context.Context, client Client) (Client, error)
	UpdateClient(ctx context.Context, client Client) error
	DeleteClient(ctx context.Context, id int64) error

	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, supplier Supplier) error
	DeleteSupplier(ctx context.Context, id int64) error

	ListProducts(ctx context.Context, filters ListFilters) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	UpdateProduct(ctx context.Context, product Product) error
	DeleteProduct(ctx context.Context, id int64) error

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository covers writes that must commit with a ledger entry.
type TxRepository interface {
	InsertProduct(ctx context.Context, product Product) (Product, error)
	Ledger() inventory.TxRepository
}

var (
	// ErrDuplicateClientCode is returned when client_code is taken.
	ErrDuplicateClientCode = fmt.Errorf("%w: client code already exists", shared.ErrDuplicateKey)
	// ErrDuplicateSKU is returned when a product sku is taken.
	ErrDuplicateSKU = fmt.Errorf("%w: product sku already exists", shared.ErrDuplicateKey)
	// ErrHasDependents is returned when a delete is blocked by referencing documents.
	ErrHasDependents = fmt.Errorf("%w: has dependent records", shared.ErrValidation)
)
