package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// TransactionType enumerates supported ledger movements.
type TransactionType string

const (
	// TransactionTypePurchase records stock received from a supplier.
	TransactionTypePurchase TransactionType = "Purchase"
	// TransactionTypeSale records stock shipped to a client.
	TransactionTypeSale TransactionType = "Sale"
	// TransactionTypeReturn records returned stock.
	TransactionTypeReturn TransactionType = "Return"
	// TransactionTypeAdjustment indicates manual adjustments and opening stock.
	TransactionTypeAdjustment TransactionType = "Adjustment"
)

// Valid reports whether t is a known movement type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeSale, TransactionTypeReturn, TransactionTypeAdjustment:
		return true
	}
	return false
}

// Transaction is one append-only ledger row.
type Transaction struct {
	ID              int64               `json:"id"`
	ProductID       int64               `json:"product_id"`
	Type            TransactionType     `json:"transaction_type"`
	ReferenceID     *int64              `json:"reference_id,omitempty"`
	ReferenceNumber string              `json:"reference_number,omitempty"`
	QuantityChange  int                 `json:"quantity_change"`
	UnitCost        decimal.NullDecimal `json:"unit_cost"`
	TransactionDate time.Time           `json:"transaction_date"`
	PerformedBy     *int64              `json:"performed_by,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	// BalanceAfter is the product stock right after this row; only set when the row is posted.
	BalanceAfter int `json:"balance_after"`
}

// ProductStock is the locked view of a product used while posting.
type ProductStock struct {
	ProductID    int64
	SKU          string
	Name         string
	CurrentStock int
	CostPrice    decimal.NullDecimal
}

// ApplyInput describes a signed stock movement.
type ApplyInput struct {
	ProductID       int64           `json:"product_id"`
	QuantityChange  int             `json:"quantity_change"`
	Type            TransactionType `json:"transaction_type"`
	ReferenceID     *int64          `json:"reference_id,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	PerformedBy     *int64          `json:"performed_by,omitempty"`
}

// Validate checks the input before any transaction opens.
func (in ApplyInput) Validate() error {
	errs := shared.ValidationErrors{}
	if in.ProductID <= 0 {
		errs.Add("product_id", "is required")
	}
	if in.QuantityChange == 0 {
		errs.Add("quantity_change", "must be non zero")
	}
	if !in.Type.Valid() {
		errs.Add("transaction_type", "must be one of: Purchase Sale Return Adjustment")
	}
	return errs.Err()
}

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	ProductID int64
	Limit     int
	Offset    int
}

// Reconciliation compares the materialised stock with the ledger sum.
type Reconciliation struct {
	ProductID    int64 `json:"product_id"`
	CurrentStock int   `json:"current_stock"`
	LedgerTotal  int   `json:"ledger_total"`
	Drift        int   `json:"drift"`
}

// InSync reports whether stock equals the ledger sum.
func (r Reconciliation) InSync() bool { return r.Drift == 0 }

var (
	// ErrProductNotFound is returned when a movement names an absent product.
	ErrProductNotFound = fmt.Errorf("inventory: product %w", shared.ErrNotFound)
	// ErrNegativeStock triggered when movement would result negative qty.
	ErrNegativeStock = fmt.Errorf("%w: inventory: negative stock not allowed", shared.ErrValidation)
)
