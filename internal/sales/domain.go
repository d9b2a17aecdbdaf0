package sales

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// ============================================================================
// QUOTATION
// ============================================================================

type QuotationStatus string

const (
	QuotationStatusDraft    QuotationStatus = "Draft"
	QuotationStatusSent     QuotationStatus = "Sent"
	QuotationStatusAccepted QuotationStatus = "Accepted"
	QuotationStatusRejected QuotationStatus = "Rejected"
	QuotationStatusExpired  QuotationStatus = "Expired"
)

// QuotationMachine is the quotation lifecycle.
var QuotationMachine = shared.NewStateMachine("quotation", map[QuotationStatus][]QuotationStatus{
	QuotationStatusDraft:    {QuotationStatusSent},
	QuotationStatusSent:     {QuotationStatusAccepted, QuotationStatusRejected, QuotationStatusExpired},
	QuotationStatusAccepted: nil,
	QuotationStatusRejected: nil,
	QuotationStatusExpired:  nil,
})

type Quotation struct {
	ID         int64           `json:"id"`
	Number     string          `json:"quotation_number"`
	ClientID   int64           `json:"client_id"`
	InquiryID  *int64          `json:"inquiry_id,omitempty"`
	IssueDate  time.Time       `json:"issue_date"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	Status     QuotationStatus `json:"status"`
	shared.Totals
	Terms      string          `json:"terms_and_conditions,omitempty"`
	PreparedBy *int64          `json:"prepared_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Items      []QuotationItem `json:"items"`
}

type QuotationItem struct {
	ID                    int64           `json:"id"`
	QuotationID           int64           `json:"quotation_id"`
	ProductID             int64           `json:"product_id"`
	Quantity              int             `json:"quantity"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	DiscountPercentage    decimal.Decimal `json:"discount_percentage"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	LineTotal             decimal.Decimal `json:"line_total"`
	EstimatedDeliveryDays *int            `json:"estimated_delivery_days,omitempty"`
}

type QuotationLineInput struct {
	shared.LineInput
	EstimatedDeliveryDays *int `json:"estimated_delivery_days,omitempty"`
}

type QuotationInput struct {
	ClientID      int64                `json:"client_id"`
	InquiryID     *int64               `json:"inquiry_id,omitempty"`
	IssueDate     shared.Date          `json:"issue_date"`
	ExpiryDate    *shared.Date         `json:"expiry_date,omitempty"`
	TaxPercentage decimal.Decimal      `json:"tax_percentage"`
	Terms         string               `json:"terms_and_conditions"`
	PreparedBy    *int64               `json:"prepared_by,omitempty"`
	Items         []QuotationLineInput `json:"items"`
}

func (in QuotationInput) validate() error {
	errs := shared.ValidationErrors{}
	if in.ClientID <= 0 {
		errs.Add("client_id", "is required")
	}
	lines := make([]shared.LineInput, len(in.Items))
	for i, item := range in.Items {
		lines[i] = item.LineInput
		if item.EstimatedDeliveryDays != nil && *item.EstimatedDeliveryDays < 0 {
			errs.Add("items["+strconv.Itoa(i)+"].estimated_delivery_days", "must be at least 0")
		}
	}
	shared.ValidateLines(lines, in.TaxPercentage, errs)
	if in.ExpiryDate != nil && !in.IssueDate.IsZero() && in.ExpiryDate.Before(in.IssueDate.Time) {
		errs.Add("expiry_date", "must not be before issue_date")
	}
	return errs.Err()
}

// ============================================================================
// SALES ORDER
// ============================================================================

type SalesOrderStatus string

const (
	SalesOrderStatusPending    SalesOrderStatus = "Pending"
	SalesOrderStatusConfirmed  SalesOrderStatus = "Confirmed"
	SalesOrderStatusProcessing SalesOrderStatus = "Processing"
	SalesOrderStatusShipped    SalesOrderStatus = "Shipped"
	SalesOrderStatusDelivered  SalesOrderStatus = "Delivered"
	SalesOrderStatusCancelled  SalesOrderStatus = "Cancelled"
)

// SalesOrderMachine is the sales order lifecycle; Cancelled is reachable from every open status.
var SalesOrderMachine = shared.NewStateMachine("sales order", map[SalesOrderStatus][]SalesOrderStatus{
	SalesOrderStatusPending:    {SalesOrderStatusConfirmed, SalesOrderStatusCancelled},
	SalesOrderStatusConfirmed:  {SalesOrderStatusProcessing, SalesOrderStatusCancelled},
	SalesOrderStatusProcessing: {SalesOrderStatusShipped, SalesOrderStatusCancelled},
	SalesOrderStatusShipped:    {SalesOrderStatusDelivered, SalesOrderStatusCancelled},
	SalesOrderStatusDelivered:  nil,
	SalesOrderStatusCancelled:  nil,
})

type SalesOrder struct {
	ID                   int64            `json:"id"`
	Number               string           `json:"order_number"`
	ClientID             int64            `json:"client_id"`
	QuotationID          *int64           `json:"quotation_id,omitempty"`
	OrderDate            time.Time        `json:"order_date"`
	ExpectedDeliveryDate *time.Time       `json:"expected_delivery_date,omitempty"`
	Status               SalesOrderStatus `json:"status"`
	shared.Totals
	PaymentTerms    string           `json:"payment_terms,omitempty"`
	ShippingAddress string           `json:"shipping_address,omitempty"`
	BillingAddress  string           `json:"billing_address,omitempty"`
	CreatedBy       *int64           `json:"created_by,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	Items           []SalesOrderItem `json:"items"`
}

type SalesOrderItem struct {
	ID                int64           `json:"id"`
	OrderID           int64           `json:"order_id"`
	ProductID         int64           `json:"product_id"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	LineTotal         decimal.Decimal `json:"line_total"`
	DeliveredQuantity int             `json:"delivered_quantity"`
	Status            string          `json:"status"`
}

// Outstanding is the quantity still to be delivered.
func (i SalesOrderItem) Outstanding() int { return i.Quantity - i.DeliveredQuantity }

// OrderOptions carries the order header fields that a quotation does not have.
type OrderOptions struct {
	OrderDate            shared.Date  `json:"order_date"`
	ExpectedDeliveryDate *shared.Date `json:"expected_delivery_date,omitempty"`
	PaymentTerms         string       `json:"payment_terms"`
	ShippingAddress      string       `json:"shipping_address"`
	BillingAddress       string       `json:"billing_address"`
	CreatedBy            *int64       `json:"created_by,omitempty"`
}

type SalesOrderInput struct {
	ClientID      int64              `json:"client_id"`
	QuotationID   *int64             `json:"quotation_id,omitempty"`
	TaxPercentage decimal.Decimal    `json:"tax_percentage"`
	Items         []shared.LineInput `json:"items"`
	OrderOptions
}

func (in SalesOrderInput) validate() error {
	errs := shared.ValidationErrors{}
	if in.ClientID <= 0 {
		errs.Add("client_id", "is required")
	}
	shared.ValidateLines(in.Items, in.TaxPercentage, errs)
	if in.ExpectedDeliveryDate != nil && !in.OrderDate.IsZero() && in.ExpectedDeliveryDate.Before(in.OrderDate.Time) {
		errs.Add("expected_delivery_date", "must not be before order_date")
	}
	return errs.Err()
}

// ============================================================================
// DELIVERY NOTE
// ============================================================================

type DeliveryNote struct {
	ID             int64          `json:"id"`
	Number         string         `json:"delivery_number"`
	OrderID        int64          `json:"order_id"`
	DeliveryDate   time.Time      `json:"delivery_date"`
	ShippedBy      *int64         `json:"shipped_by,omitempty"`
	ShippingMethod string         `json:"shipping_method,omitempty"`
	TrackingNumber string         `json:"tracking_number,omitempty"`
	Status         string         `json:"status"`
	Address        string         `json:"delivery_address,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Items          []DeliveryItem `json:"items"`
}

type DeliveryItem struct {
	ID          int64  `json:"id"`
	DeliveryID  int64  `json:"delivery_id"`
	OrderItemID int64  `json:"order_item_id"`
	Quantity    int    `json:"quantity_delivered"`
	BatchNumber string `json:"batch_number,omitempty"`
}

type DeliveryLineInput struct {
	OrderItemID int64  `json:"order_item_id" validate:"required,gt=0"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
	BatchNumber string `json:"batch_number" validate:"max=64"`
}

type DeliveryInput struct {
	OrderID        int64               `json:"-"`
	DeliveryDate   shared.Date         `json:"delivery_date"`
	ShippedBy      *int64              `json:"shipped_by,omitempty"`
	ShippingMethod string              `json:"shipping_method" validate:"max=100"`
	TrackingNumber string              `json:"tracking_number" validate:"max=100"`
	Address        string              `json:"delivery_address"`
	Notes          string              `json:"notes"`
	Items          []DeliveryLineInput `json:"items" validate:"required,min=1,dive"`
}

// ListFilter narrows document listings.
type ListFilter struct {
	ClientID *int64
	Status   string
	Limit    int
	Offset   int
}
