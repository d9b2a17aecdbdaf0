package procurement

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusDraft     POStatus = "Draft"
	POStatusSent      POStatus = "Sent"
	POStatusConfirmed POStatus = "Confirmed"
	POStatusReceived  POStatus = "Received"
	POStatusCancelled POStatus = "Cancelled"
)

// POMachine is the purchase order lifecycle.
var POMachine = shared.NewStateMachine("purchase order", map[POStatus][]POStatus{
	POStatusDraft:     {POStatusSent, POStatusCancelled},
	POStatusSent:      {POStatusConfirmed, POStatusCancelled},
	POStatusConfirmed: {POStatusReceived, POStatusCancelled},
	POStatusReceived:  nil,
	POStatusCancelled: nil,
})

// Goods receipt line conditions.
const (
	ConditionGood    = "Good"
	ConditionDamaged = "Damaged"
)

// ErrNotReceivable is returned when goods arrive against a PO that is not Confirmed.
var ErrNotReceivable = fmt.Errorf("%w: goods can only be received against a Confirmed purchase order", shared.ErrInvalidTransition)

// PurchaseOrder domain model.
type PurchaseOrder struct {
	ID                   int64      `json:"id"`
	Number               string     `json:"po_number"`
	SupplierID           int64      `json:"supplier_id"`
	SupplierName         string     `json:"supplier_name,omitempty"`
	OrderID              *int64     `json:"order_id,omitempty"`
	IssueDate            time.Time  `json:"issue_date"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
	Status               POStatus   `json:"status"`
	shared.Totals
	PaymentTerms        string     `json:"payment_terms,omitempty"`
	ShippingTerms       string     `json:"shipping_terms,omitempty"`
	ConfirmedDate       *time.Time `json:"confirmed_date,omitempty"`
	ConfirmedBySupplier string     `json:"confirmed_by_supplier,omitempty"`
	CreatedBy           *int64     `json:"created_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	Lines               []POLine   `json:"items,omitempty"`
}

// POLine represents PO lines.
type POLine struct {
	ID           int64           `json:"id"`
	POID         int64           `json:"po_id"`
	ProductID    int64           `json:"product_id"`
	Qty          int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
	ExpectedDate *time.Time      `json:"expected_date,omitempty"`
	ReceivedQty  int             `json:"received_quantity"`
	Status       string          `json:"status"`
}

// Outstanding is the quantity not yet received.
func (l POLine) Outstanding() int { return l.Qty - l.ReceivedQty }

// GoodsReceipt domain model.
type GoodsReceipt struct {
	ID                   int64     `json:"id"`
	Number               string    `json:"receipt_number"`
	POID                 int64     `json:"po_id"`
	ReceiptDate          time.Time `json:"receipt_date"`
	ReceivedBy           *int64    `json:"received_by,omitempty"`
	SupplierDeliveryNote string    `json:"supplier_delivery_note,omitempty"`
	Status               string    `json:"status"`
	Notes                string    `json:"notes,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	Lines                []GRNLine `json:"items"`
}

// GRNLine describes received goods.
type GRNLine struct {
	ID          int64               `json:"id"`
	GRNID       int64               `json:"receipt_id"`
	POItemID    int64               `json:"po_item_id"`
	Qty         int                 `json:"quantity_received"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	BatchNumber string              `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time          `json:"expiry_date,omitempty"`
	Location    string              `json:"location,omitempty"`
	Condition   string              `json:"condition"`
	Notes       string              `json:"notes,omitempty"`
}

// POLineInput is one requested line of a purchase order.
type POLineInput struct {
	ProductID    int64           `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ExpectedDate *shared.Date    `json:"expected_date,omitempty"`
}

// PurchaseOrderInput describes PO creation.
type PurchaseOrderInput struct {
	SupplierID           int64           `json:"supplier_id"`
	OrderID              *int64          `json:"order_id,omitempty"`
	IssueDate            shared.Date     `json:"issue_date"`
	ExpectedDeliveryDate *shared.Date    `json:"expected_delivery_date,omitempty"`
	TaxPercentage        decimal.Decimal `json:"tax_percentage"`
	PaymentTerms         string          `json:"payment_terms"`
	ShippingTerms        string          `json:"shipping_terms"`
	CreatedBy            *int64          `json:"created_by,omitempty"`
	Items                []POLineInput   `json:"items"`
}

func (in PurchaseOrderInput) validate() error {
	errs := shared.ValidationErrors{}
	if in.SupplierID <= 0 {
		errs.Add("supplier_id", "is required")
	}
	lines := make([]shared.LineInput, len(in.Items))
	for i, item := range in.Items {
		lines[i] = shared.LineInput{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
		if item.ExpectedDate != nil && !in.IssueDate.IsZero() && item.ExpectedDate.Before(in.IssueDate.Time) {
			errs.Add("items["+strconv.Itoa(i)+"].expected_date", "must not be before issue_date")
		}
	}
	shared.ValidateLines(lines, in.TaxPercentage, errs)
	if in.ExpectedDeliveryDate != nil && !in.IssueDate.IsZero() && in.ExpectedDeliveryDate.Before(in.IssueDate.Time) {
		errs.Add("expected_delivery_date", "must not be before issue_date")
	}
	return errs.Err()
}

// TransitionInput moves a PO to a new status. ConfirmedBySupplier is recorded on confirmation.
type TransitionInput struct {
	Status              string `json:"status"`
	ConfirmedBySupplier string `json:"confirmed_by_supplier"`
}

// GRNLineInput for GRN.
type GRNLineInput struct {
	POItemID    int64        `json:"po_item_id" validate:"required,gt=0"`
	Quantity    int          `json:"quantity" validate:"gt=0"`
	BatchNumber string       `json:"batch_number" validate:"max=64"`
	ExpiryDate  *shared.Date `json:"expiry_date,omitempty"`
	Location    string       `json:"location" validate:"max=100"`
	Condition   string       `json:"condition" validate:"omitempty,oneof=Good Damaged"`
	Notes       string       `json:"notes"`
}

// GoodsReceiptInput describes GRN creation.
type GoodsReceiptInput struct {
	POID                 int64          `json:"-"`
	ReceiptDate          shared.Date    `json:"receipt_date"`
	ReceivedBy           *int64         `json:"received_by,omitempty"`
	SupplierDeliveryNote string         `json:"supplier_delivery_note" validate:"max=100"`
	Notes                string         `json:"notes"`
	Items                []GRNLineInput `json:"items" validate:"required,min=1,dive"`
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	SupplierID *int64
	Status     string
	Limit      int
	Offset     int
}
