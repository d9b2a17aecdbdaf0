package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// Service provides business logic for sales operations.
type Service struct {
	repo   Repository
	ledger *inventory.Service
	cache  shared.Invalidator
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a sales service. cache may be nil.
func NewService(repo Repository, ledger *inventory.Service, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, cache: cache, logger: logger, now: time.Now}
}

// WithClock overrides the wall clock used for numbering and default dates.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ============================================================================
// QUOTATION OPERATIONS
// ============================================================================

// CreateQuotation prices the lines, allocates a QUOT number and stores a Draft quotation.
func (s *Service) CreateQuotation(ctx context.Context, input QuotationInput) (Quotation, error) {
	if err := input.validate(); err != nil {
		return Quotation{}, err
	}
	now := s.now()
	items := make([]QuotationItem, len(input.Items))
	for i, line := range input.Items {
		priced := shared.PriceLine(line.Quantity, line.UnitPrice, line.DiscountPercentage, line.DiscountAmount)
		items[i] = QuotationItem{
			ProductID:             line.ProductID,
			Quantity:              line.Quantity,
			UnitPrice:             shared.Round2(line.UnitPrice),
			DiscountPercentage:    line.DiscountPercentage,
			DiscountAmount:        priced.Discount,
			LineTotal:             priced.LineTotal,
			EstimatedDeliveryDays: line.EstimatedDeliveryDays,
		}
	}
	quotation := Quotation{
		ClientID:   input.ClientID,
		InquiryID:  input.InquiryID,
		IssueDate:  input.IssueDate.Or(now),
		ExpiryDate: shared.DatePtr(input.ExpiryDate),
		Status:     QuotationStatusDraft,
		Totals:     shared.ComputeTotals(quotationLineTotals(items), input.TaxPercentage),
		Terms:      input.Terms,
		PreparedBy: input.PreparedBy,
		Items:      items,
	}

	var created Quotation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := numbering.Allocate(ctx, tx.Counter(), numbering.Quotation, now)
		if err != nil {
			return err
		}
		q := quotation
		q.Number = number
		created, err = tx.InsertQuotation(ctx, q)
		return err
	})
	if err != nil {
		return Quotation{}, shared.Internal(err)
	}
	s.logger.Info("quotation created", slog.String("number", created.Number), slog.String("grand_total", created.GrandTotal.StringFixed(2)))
	return created, nil
}

// GetQuotation returns a quotation with its items.
func (s *Service) GetQuotation(ctx context.Context, id int64) (Quotation, error) {
	q, err := s.repo.GetQuotation(ctx, id)
	return q, shared.Internal(err)
}

// ListQuotations lists quotation headers, newest first.
func (s *Service) ListQuotations(ctx context.Context, filter ListFilter) ([]Quotation, error) {
	if filter.Status != "" {
		if _, err := QuotationMachine.Parse(filter.Status); err != nil {
			return nil, err
		}
	}
	list, err := s.repo.ListQuotations(ctx, filter)
	return list, shared.Internal(err)
}

// TransitionQuotation moves a quotation to target if the lifecycle allows it.
func (s *Service) TransitionQuotation(ctx context.Context, id int64, target string) (Quotation, error) {
	status, err := QuotationMachine.Parse(target)
	if err != nil {
		return Quotation{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetQuotationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := QuotationMachine.Validate(current.Status, status); err != nil {
			return err
		}
		if current.Status == status {
			return nil
		}
		return tx.UpdateQuotationStatus(ctx, id, status)
	})
	if err != nil {
		return Quotation{}, shared.Internal(err)
	}
	return s.GetQuotation(ctx, id)
}

// ConvertQuotation turns an Accepted quotation into a Pending sales order with the same lines
// and totals.
func (s *Service) ConvertQuotation(ctx context.Context, quotationID int64, opts OrderOptions) (SalesOrder, error) {
	now := s.now()
	var created SalesOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuotationForUpdate(ctx, quotationID)
		if err != nil {
			return err
		}
		if q.Status != QuotationStatusAccepted {
			return fmt.Errorf("%w: quotation %s is %s, only Accepted quotations convert", shared.ErrInvalidTransition, q.Number, q.Status)
		}
		items := make([]SalesOrderItem, len(q.Items))
		for i, item := range q.Items {
			items[i] = SalesOrderItem{
				ProductID:      item.ProductID,
				Quantity:       item.Quantity,
				UnitPrice:      item.UnitPrice,
				DiscountAmount: item.DiscountAmount,
				LineTotal:      item.LineTotal,
				Status:         "Pending",
			}
		}
		order := newOrder(q.ClientID, opts, now, q.Totals, items)
		order.QuotationID = &q.ID
		created, err = s.insertOrder(ctx, tx, order, now)
		return err
	})
	if err != nil {
		return SalesOrder{}, shared.Internal(err)
	}
	s.logger.Info("quotation converted", slog.Int64("quotation_id", quotationID), slog.String("order_number", created.Number))
	return created, nil
}

// ============================================================================
// SALES ORDER OPERATIONS
// ============================================================================

// CreateSalesOrder prices the lines, allocates an SO number and stores a Pending order.
func (s *Service) CreateSalesOrder(ctx context.Context, input SalesOrderInput) (SalesOrder, error) {
	if err := input.validate(); err != nil {
		return SalesOrder{}, err
	}
	now := s.now()
	items := make([]SalesOrderItem, len(input.Items))
	for i, line := range input.Items {
		priced := shared.PriceLine(line.Quantity, line.UnitPrice, line.DiscountPercentage, line.DiscountAmount)
		items[i] = SalesOrderItem{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPrice:      shared.Round2(line.UnitPrice),
			DiscountAmount: priced.Discount,
			LineTotal:      priced.LineTotal,
			Status:         "Pending",
		}
	}
	order := newOrder(input.ClientID, input.OrderOptions, now, shared.ComputeTotals(orderLineTotals(items), input.TaxPercentage), items)
	order.QuotationID = input.QuotationID

	var created SalesOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = s.insertOrder(ctx, tx, order, now)
		return err
	})
	if err != nil {
		return SalesOrder{}, shared.Internal(err)
	}
	s.logger.Info("sales order created", slog.String("number", created.Number), slog.String("grand_total", created.GrandTotal.StringFixed(2)))
	return created, nil
}

func newOrder(clientID int64, opts OrderOptions, now time.Time, totals shared.Totals, items []SalesOrderItem) SalesOrder {
	return SalesOrder{
		ClientID:             clientID,
		OrderDate:            opts.OrderDate.Or(now),
		ExpectedDeliveryDate: shared.DatePtr(opts.ExpectedDeliveryDate),
		Status:               SalesOrderStatusPending,
		Totals:               totals,
		PaymentTerms:         opts.PaymentTerms,
		ShippingAddress:      opts.ShippingAddress,
		BillingAddress:       opts.BillingAddress,
		CreatedBy:            opts.CreatedBy,
		Items:                items,
	}
}

func (s *Service) insertOrder(ctx context.Context, tx TxRepository, order SalesOrder, now time.Time) (SalesOrder, error) {
	if order.QuotationID != nil {
		existing, err := tx.OrderNumberForQuotation(ctx, *order.QuotationID)
		if err != nil {
			return SalesOrder{}, err
		}
		if existing != "" {
			return SalesOrder{}, fmt.Errorf("%w: quotation %d already converted to order %s", shared.ErrInvalidTransition, *order.QuotationID, existing)
		}
	}
	number, err := numbering.Allocate(ctx, tx.Counter(), numbering.SalesOrder, now)
	if err != nil {
		return SalesOrder{}, err
	}
	order.Number = number
	return tx.InsertSalesOrder(ctx, order)
}

// GetSalesOrder returns an order with its items.
func (s *Service) GetSalesOrder(ctx context.Context, id int64) (SalesOrder, error) {
	o, err := s.repo.GetSalesOrder(ctx, id)
	return o, shared.Internal(err)
}

// ListSalesOrders lists order headers, newest first.
func (s *Service) ListSalesOrders(ctx context.Context, filter ListFilter) ([]SalesOrder, error) {
	if filter.Status != "" {
		if _, err := SalesOrderMachine.Parse(filter.Status); err != nil {
			return nil, err
		}
	}
	list, err := s.repo.ListSalesOrders(ctx, filter)
	return list, shared.Internal(err)
}

// TransitionSalesOrder moves an order to target if the lifecycle allows it.
func (s *Service) TransitionSalesOrder(ctx context.Context, id int64, target string) (SalesOrder, error) {
	status, err := SalesOrderMachine.Parse(target)
	if err != nil {
		return SalesOrder{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetSalesOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := SalesOrderMachine.Validate(current.Status, status); err != nil {
			return err
		}
		if current.Status == status {
			return nil
		}
		return tx.UpdateSalesOrderStatus(ctx, id, status)
	})
	if err != nil {
		return SalesOrder{}, shared.Internal(err)
	}
	s.logger.Info("sales order status changed", slog.Int64("order_id", id), slog.String("status", string(status)))
	return s.GetSalesOrder(ctx, id)
}

// ============================================================================
// DELIVERY OPERATIONS
// ============================================================================

// CreateDeliveryNote ships order lines: it stores a DN, posts one Sale ledger entry per line and
// advances the order to Shipped once every line is fully delivered, Processing otherwise.
func (s *Service) CreateDeliveryNote(ctx context.Context, input DeliveryInput) (DeliveryNote, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return DeliveryNote{}, err
	}
	now := s.now()
	var created DeliveryNote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetSalesOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != SalesOrderStatusConfirmed && order.Status != SalesOrderStatusProcessing {
			return fmt.Errorf("%w: sales order %s is %s, deliveries need Confirmed or Processing", shared.ErrInvalidTransition, order.Number, order.Status)
		}
		byID := make(map[int64]*SalesOrderItem, len(order.Items))
		for i := range order.Items {
			byID[order.Items[i].ID] = &order.Items[i]
		}
		note := DeliveryNote{
			OrderID:        order.ID,
			DeliveryDate:   input.DeliveryDate.Or(now),
			ShippedBy:      input.ShippedBy,
			ShippingMethod: input.ShippingMethod,
			TrackingNumber: input.TrackingNumber,
			Status:         "Shipped",
			Address:        input.Address,
			Notes:          input.Notes,
		}
		if note.Address == "" {
			note.Address = order.ShippingAddress
		}
		for i, line := range input.Items {
			item, ok := byID[line.OrderItemID]
			if !ok {
				return shared.ValidationErrors{fmt.Sprintf("items[%d].order_item_id", i): "does not belong to the order"}
			}
			if line.Quantity > item.Outstanding() {
				return shared.ValidationErrors{fmt.Sprintf("items[%d].quantity", i): fmt.Sprintf("exceeds outstanding quantity %d", item.Outstanding())}
			}
			item.DeliveredQuantity += line.Quantity
			note.Items = append(note.Items, DeliveryItem{OrderItemID: item.ID, Quantity: line.Quantity, BatchNumber: line.BatchNumber})
		}

		number, err := numbering.Allocate(ctx, tx.Counter(), numbering.DeliveryNote, now)
		if err != nil {
			return err
		}
		note.Number = number
		if created, err = tx.InsertDeliveryNote(ctx, note); err != nil {
			return err
		}
		for _, line := range input.Items {
			item := byID[line.OrderItemID]
			if err := tx.SetDeliveredQuantity(ctx, item.ID, item.DeliveredQuantity); err != nil {
				return err
			}
			if _, err := s.ledger.ApplyInTx(ctx, tx.Ledger(), inventory.ApplyInput{
				ProductID:       item.ProductID,
				QuantityChange:  -line.Quantity,
				Type:            inventory.TransactionTypeSale,
				ReferenceID:     &order.ID,
				ReferenceNumber: order.Number,
				Notes:           "Delivery " + number,
				PerformedBy:     input.ShippedBy,
			}); err != nil {
				return err
			}
		}
		return advanceAfterDelivery(ctx, tx, order)
	})
	if err != nil {
		return DeliveryNote{}, shared.Internal(err)
	}
	s.logger.Info("delivery note created", slog.String("number", created.Number), slog.Int64("order_id", created.OrderID))
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return created, nil
}

func advanceAfterDelivery(ctx context.Context, tx TxRepository, order SalesOrder) error {
	complete := true
	for _, item := range order.Items {
		if item.Outstanding() > 0 {
			complete = false
			break
		}
	}
	path := []SalesOrderStatus{}
	if order.Status == SalesOrderStatusConfirmed {
		path = append(path, SalesOrderStatusProcessing)
	}
	if complete {
		path = append(path, SalesOrderStatusShipped)
	}
	current := order.Status
	for _, next := range path {
		if err := SalesOrderMachine.Validate(current, next); err != nil {
			return err
		}
		current = next
	}
	if current == order.Status {
		return nil
	}
	return tx.UpdateSalesOrderStatus(ctx, order.ID, current)
}

// ListDeliveryNotes returns the delivery notes of an order, oldest first.
func (s *Service) ListDeliveryNotes(ctx context.Context, orderID int64) ([]DeliveryNote, error) {
	notes, err := s.repo.ListDeliveryNotes(ctx, orderID)
	return notes, shared.Internal(err)
}

func quotationLineTotals(items []QuotationItem) []decimal.Decimal {
	out := make([]decimal.Decimal, len(items))
	for i, item := range items {
		out[i] = item.LineTotal
	}
	return out
}

func orderLineTotals(items []SalesOrderItem) []decimal.Decimal {
	out := make([]decimal.Decimal, len(items))
	for i, item := range items {
		out[i] = item.LineTotal
	}
	return out
}
