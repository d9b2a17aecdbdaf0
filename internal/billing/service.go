package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/sales"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// RepositoryPort defines data access methods for billing.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error)
	ListReceipts(ctx context.Context, invoiceID int64) ([]Receipt, error)
}

// TxRepository groups the writes that share one transaction.
type TxRepository interface {
	Counter() numbering.Counter
	GetBillableOrder(ctx context.Context, orderID int64) (BillableOrder, error)
	OpenInvoiceNumber(ctx context.Context, orderID int64) (string, error)
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	LockInvoice(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoicePayment(ctx context.Context, inv Invoice) error
	UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error
	InsertReceipt(ctx context.Context, r Receipt) (Receipt, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// ServiceConfig carries billing policies.
type ServiceConfig struct {
	AllowOverpayment bool
	DefaultTermsDays int
}

// Service handles invoices and receipts.
type Service struct {
	repo   RepositoryPort
	cfg    ServiceConfig
	cache  shared.Invalidator
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cfg ServiceConfig, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTermsDays <= 0 {
		cfg.DefaultTermsDays = 30
	}
	return &Service{repo: repo, cfg: cfg, cache: cache, logger: logger, now: time.Now}
}

// WithClock overrides the wall clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInvoice bills a sales order in full. An order carries at most one invoice that is not
// Cancelled. The due date defaults to the invoice date plus the
// NET days of the payment terms.
func (s *Service) CreateInvoice(ctx context.Context, input InvoiceInput) (Invoice, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Invoice{}, err
	}
	now := s.now()
	invoiceDate := input.InvoiceDate.Or(now)
	if input.DueDate != nil && !input.DueDate.IsZero() && input.DueDate.Before(invoiceDate) {
		return Invoice{}, shared.ValidationErrors{"due_date": "must not be before invoice_date"}
	}

	var created Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetBillableOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		switch sales.SalesOrderStatus(order.Status) {
		case sales.SalesOrderStatusPending, sales.SalesOrderStatusCancelled:
			return fmt.Errorf("%w (%s is %s)", ErrOrderNotBillable, order.Number, order.Status)
		}
		existing, err := tx.OpenInvoiceNumber(ctx, order.ID)
		if err != nil {
			return err
		}
		if existing != "" {
			return fmt.Errorf("%w (%s by %s)", ErrOrderInvoiced, order.Number, existing)
		}
		terms := firstNonEmpty(input.PaymentTerms, order.PaymentTerms, order.ClientPaymentTerms)
		due := invoiceDate.AddDate(0, 0, NetDays(terms, s.cfg.DefaultTermsDays))
		if d := shared.DatePtr(input.DueDate); d != nil {
			due = *d
		}
		inv := Invoice{
			OrderID:      order.ID,
			ClientID:     order.ClientID,
			DeliveryID:   input.DeliveryID,
			InvoiceDate:  invoiceDate,
			DueDate:      due,
			Status:       InvoiceStatusUnpaid,
			Subtotal:     order.Subtotal,
			TaxAmount:    order.TaxAmount,
			GrandTotal:   order.GrandTotal,
			AmountPaid:   decimal.Zero,
			BalanceDue:   order.GrandTotal,
			PaymentTerms: terms,
			CreatedBy:    input.CreatedBy,
		}
		if inv.Number, err = numbering.Allocate(ctx, tx.Counter(), numbering.Invoice, now); err != nil {
			return err
		}
		created, err = tx.InsertInvoice(ctx, inv)
		return err
	})
	if err != nil {
		return Invoice{}, shared.Internal(err)
	}
	s.logger.Info("invoice created", slog.String("number", created.Number), slog.Int64("order_id", created.OrderID),
		slog.String("grand_total", created.GrandTotal.StringFixed(2)))
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return created, nil
}

// RecordReceipt registers a payment and updates the invoice balance and status atomically.
func (s *Service) RecordReceipt(ctx context.Context, input ReceiptInput) (Receipt, Invoice, error) {
	input.Amount = shared.Round2(input.Amount)
	if err := input.validate(); err != nil {
		return Receipt{}, Invoice{}, err
	}
	if input.ReceiptType == "" {
		input.ReceiptType = ReceiptOfficial
	}
	now := s.now()
	var (
		receipt Receipt
		updated Invoice
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.LockInvoice(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if InvoiceMachine.Terminal(inv.Status) {
			return fmt.Errorf("%w (%s is %s)", ErrInvoiceClosed, inv.Number, inv.Status)
		}
		amount := input.Amount
		if updated, err = settle(inv, amount, s.cfg.AllowOverpayment); err != nil {
			return err
		}
		number, err := numbering.Allocate(ctx, tx.Counter(), numbering.Receipt, now)
		if err != nil {
			return err
		}
		receipt, err = tx.InsertReceipt(ctx, Receipt{
			Number:          number,
			InvoiceID:       inv.ID,
			ReceiptDate:     input.ReceiptDate.Or(now),
			Type:            input.ReceiptType,
			PaymentMethod:   input.PaymentMethod,
			Amount:          amount,
			ReferenceNumber: input.ReferenceNumber,
			Notes:           input.Notes,
			CreatedBy:       input.CreatedBy,
		})
		if err != nil {
			return err
		}
		return tx.UpdateInvoicePayment(ctx, updated)
	})
	if err != nil {
		return Receipt{}, Invoice{}, shared.Internal(err)
	}
	s.logger.Info("receipt recorded", slog.String("number", receipt.Number), slog.String("invoice", updated.Number),
		slog.String("amount", receipt.Amount.StringFixed(2)), slog.String("status", string(updated.Status)))
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return receipt, updated, nil
}

// GetInvoice returns one invoice.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	return inv, shared.Internal(err)
}

// ListInvoices returns invoices, newest first.
func (s *Service) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	if filter.Status != "" {
		if _, err := InvoiceMachine.Parse(filter.Status); err != nil {
			return nil, err
		}
	}
	list, err := s.repo.ListInvoices(ctx, filter)
	return list, shared.Internal(err)
}

// ListReceipts returns the receipts of an invoice, oldest first.
func (s *Service) ListReceipts(ctx context.Context, invoiceID int64) ([]Receipt, error) {
	list, err := s.repo.ListReceipts(ctx, invoiceID)
	return list, shared.Internal(err)
}

// CancelInvoice cancels an invoice that has not received any payment.
func (s *Service) CancelInvoice(ctx context.Context, id int64) (Invoice, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if !inv.AmountPaid.IsZero() {
			return fmt.Errorf("%w (%s has %s paid)", ErrInvoiceHasPayments, inv.Number, inv.AmountPaid.StringFixed(2))
		}
		if err := InvoiceMachine.Validate(inv.Status, InvoiceStatusCancelled); err != nil {
			return err
		}
		return tx.UpdateInvoiceStatus(ctx, id, InvoiceStatusCancelled)
	})
	if err != nil {
		return Invoice{}, shared.Internal(err)
	}
	s.logger.Info("invoice cancelled", slog.Int64("invoice_id", id))
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return s.GetInvoice(ctx, id)
}

// MarkOverdue moves Unpaid invoices whose due date is before asOf to Overdue.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	var count int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		count, err = tx.MarkOverdue(ctx, shared.Day(asOf))
		return err
	})
	if err != nil {
		return 0, shared.Internal(err)
	}
	if count > 0 {
		s.logger.Info("invoices marked overdue", slog.Int("count", count), slog.String("as_of", asOf.Format(shared.DateLayout)))
		shared.BumpQuietly(ctx, s.cache, s.logger)
	}
	return count, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
