package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// InvoiceStatus enumerates invoice statuses.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "Unpaid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "Partially Paid"
	InvoiceStatusPaid          InvoiceStatus = "Paid"
	InvoiceStatusOverdue       InvoiceStatus = "Overdue"
	InvoiceStatusCancelled     InvoiceStatus = "Cancelled"
)

// InvoiceMachine is the invoice lifecycle. Payment statuses are derived from amounts.
var InvoiceMachine = shared.NewStateMachine("invoice", map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusUnpaid:        {InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue:       {InvoiceStatusUnpaid, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPartiallyPaid: {InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:          nil,
	InvoiceStatusCancelled:     nil,
})

// ReceiptType distinguishes provisional and official receipts.
type ReceiptType string

const (
	ReceiptProvisional ReceiptType = "Provisional"
	ReceiptOfficial    ReceiptType = "Official"
)

var (
	// ErrOverpayment rejects a receipt above the outstanding balance.
	ErrOverpayment = fmt.Errorf("%w: amount exceeds balance due", shared.ErrValidation)
	// ErrInvoiceClosed rejects receipts on paid or cancelled invoices.
	ErrInvoiceClosed = fmt.Errorf("%w: invoice is closed", shared.ErrInvalidTransition)
	// ErrOrderNotBillable rejects invoicing a Pending or Cancelled order.
	ErrOrderNotBillable = fmt.Errorf("%w: sales order cannot be invoiced", shared.ErrInvalidTransition)
	// ErrOrderInvoiced rejects billing an order that already has an open invoice.
	ErrOrderInvoiced = fmt.Errorf("%w: sales order already invoiced", shared.ErrInvalidTransition)
	// ErrInvoiceHasPayments blocks cancelling an invoice that already received money.
	ErrInvoiceHasPayments = fmt.Errorf("%w: invoice has payments", shared.ErrInvalidTransition)
)

// Invoice model.
type Invoice struct {
	ID           int64           `json:"id"`
	Number       string          `json:"invoice_number"`
	OrderID      int64           `json:"order_id"`
	ClientID     int64           `json:"client_id"`
	DeliveryID   *int64          `json:"delivery_id,omitempty"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	DueDate      time.Time       `json:"due_date"`
	Status       InvoiceStatus   `json:"status"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	BalanceDue   decimal.Decimal `json:"balance_due"`
	PaymentTerms string          `json:"payment_terms,omitempty"`
	CreatedBy    *int64          `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Receipt model. Receipts are immutable once recorded.
type Receipt struct {
	ID              int64           `json:"id"`
	Number          string          `json:"receipt_number"`
	InvoiceID       int64           `json:"invoice_id"`
	ReceiptDate     time.Time       `json:"receipt_date"`
	Type            ReceiptType     `json:"receipt_type"`
	PaymentMethod   string          `json:"payment_method"`
	Amount          decimal.Decimal `json:"amount"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       *int64          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// BillableOrder is the slice of a sales order an invoice is built from.
type BillableOrder struct {
	ID                 int64
	Number             string
	ClientID           int64
	Status             string
	Subtotal           decimal.Decimal
	TaxAmount          decimal.Decimal
	GrandTotal         decimal.Decimal
	PaymentTerms       string
	ClientPaymentTerms string
}

// InvoiceInput for creating invoices.
type InvoiceInput struct {
	OrderID      int64        `json:"order_id" validate:"required,gt=0"`
	DeliveryID   *int64       `json:"delivery_id,omitempty"`
	InvoiceDate  shared.Date  `json:"invoice_date"`
	DueDate      *shared.Date `json:"due_date,omitempty"`
	PaymentTerms string       `json:"payment_terms" validate:"max=50"`
	CreatedBy    *int64       `json:"created_by,omitempty"`
}

// ReceiptInput for recording payments.
type ReceiptInput struct {
	InvoiceID       int64           `json:"-"`
	ReceiptDate     shared.Date     `json:"receipt_date"`
	ReceiptType     ReceiptType     `json:"receipt_type" validate:"omitempty,oneof=Provisional Official"`
	PaymentMethod   string          `json:"payment_method" validate:"required,max=50"`
	Amount          decimal.Decimal `json:"amount"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	Notes           string          `json:"notes"`
	CreatedBy       *int64          `json:"created_by,omitempty"`
}

func (in ReceiptInput) validate() error {
	errs := shared.ValidationErrors{}
	if err := shared.ValidateStruct(in); err != nil && !errors.As(err, &errs) {
		return err
	}
	if !shared.Round2(in.Amount).IsPositive() {
		errs.Add("amount", "must be at least 0.01")
	}
	return errs.Err()
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	ClientID *int64
	OrderID  *int64
	Status   string
	Limit    int
	Offset   int
}

// NetDays reads the day count out of terms such as "NET30" or "Net 45". Anything else
// yields fallback.
func NetDays(terms string, fallback int) int {
	t := strings.ToUpper(strings.TrimSpace(terms))
	if !strings.HasPrefix(t, "NET") {
		return fallback
	}
	days, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(t, "NET")))
	if err != nil || days < 0 {
		return fallback
	}
	return days
}

// settle applies amount to inv and derives the payment status.
func settle(inv Invoice, amount decimal.Decimal, allowOverpayment bool) (Invoice, error) {
	if !allowOverpayment && amount.GreaterThan(inv.BalanceDue) {
		return Invoice{}, fmt.Errorf("%w (amount %s, balance %s)", ErrOverpayment, amount.StringFixed(2), inv.BalanceDue.StringFixed(2))
	}
	inv.AmountPaid = inv.AmountPaid.Add(amount)
	inv.BalanceDue = inv.GrandTotal.Sub(inv.AmountPaid)
	next := InvoiceStatusPartiallyPaid
	if !inv.BalanceDue.IsPositive() {
		next = InvoiceStatusPaid
	}
	if err := InvoiceMachine.Validate(inv.Status, next); err != nil {
		return Invoice{}, err
	}
	inv.Status = next
	return inv, nil
}
