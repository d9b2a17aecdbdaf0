package procurement

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

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error)
	ListPOs(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error)
	ListGRNs(ctx context.Context, poID int64) ([]GoodsReceipt, error)
}

// Service orchestrates procurement flows.
type Service struct {
	repo   RepositoryPort
	ledger *inventory.Service
	cache  shared.Invalidator
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, ledger *inventory.Service, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, cache: cache, logger: logger, now: time.Now}
}

// WithClock overrides the wall clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreatePurchaseOrder persists a Draft PO with its lines under a freshly allocated number.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input PurchaseOrderInput) (PurchaseOrder, error) {
	if err := input.validate(); err != nil {
		return PurchaseOrder{}, err
	}
	now := s.now()
	lines := make([]POLine, len(input.Items))
	totals := make([]decimal.Decimal, len(input.Items))
	for i, item := range input.Items {
		priced := shared.PriceLine(item.Quantity, item.UnitPrice, decimal.Zero, decimal.Zero)
		lines[i] = POLine{
			ProductID:    item.ProductID,
			Qty:          item.Quantity,
			UnitPrice:    shared.Round2(item.UnitPrice),
			LineTotal:    priced.LineTotal,
			ExpectedDate: shared.DatePtr(item.ExpectedDate),
			Status:       "Pending",
		}
		totals[i] = priced.LineTotal
	}
	po := PurchaseOrder{
		SupplierID:           input.SupplierID,
		OrderID:              input.OrderID,
		IssueDate:            input.IssueDate.Or(now),
		ExpectedDeliveryDate: shared.DatePtr(input.ExpectedDeliveryDate),
		Status:               POStatusDraft,
		Totals:               shared.ComputeTotals(totals, input.TaxPercentage),
		PaymentTerms:         input.PaymentTerms,
		ShippingTerms:        input.ShippingTerms,
		CreatedBy:            input.CreatedBy,
	}

	var created PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := numbering.Allocate(ctx, tx.Counter(), numbering.PurchaseOrder, now)
		if err != nil {
			return err
		}
		header := po
		header.Number = number
		poID, err := tx.CreatePO(ctx, header)
		if err != nil {
			return err
		}
		header.ID = poID
		header.Lines = make([]POLine, 0, len(lines))
		for i, line := range lines {
			line.POID = poID
			if line.ID, err = tx.InsertPOLine(ctx, line); err != nil {
				return lineError(err, i)
			}
			header.Lines = append(header.Lines, line)
		}
		created = header
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, shared.Internal(err)
	}
	s.logger.Info("purchase order created", slog.String("number", created.Number), slog.String("grand_total", created.GrandTotal.StringFixed(2)))
	return created, nil
}

// GetPurchaseOrder returns a PO with its lines.
func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, lines, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return PurchaseOrder{}, shared.Internal(err)
	}
	po.Lines = lines
	return po, nil
}

// ListPurchaseOrders lists PO headers, newest first.
func (s *Service) ListPurchaseOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	if filter.Status != "" {
		if _, err := POMachine.Parse(filter.Status); err != nil {
			return nil, err
		}
	}
	list, err := s.repo.ListPOs(ctx, filter)
	return list, shared.Internal(err)
}

// TransitionPurchaseOrder moves a PO along its lifecycle. Confirmation stamps the date.
// Received is reached only through ReceiveGoods.
func (s *Service) TransitionPurchaseOrder(ctx context.Context, id int64, input TransitionInput) (PurchaseOrder, error) {
	target, err := POMachine.Parse(input.Status)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if target == POStatusReceived {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase orders become Received by receiving goods", shared.ErrInvalidTransition)
	}
	today := shared.Day(s.now())
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, _, err := tx.LockPO(ctx, id)
		if err != nil {
			return err
		}
		if err := POMachine.Validate(po.Status, target); err != nil {
			return err
		}
		if po.Status == target {
			return nil
		}
		if err := tx.UpdatePOStatus(ctx, id, target); err != nil {
			return err
		}
		if target == POStatusConfirmed {
			return tx.SetPOConfirmation(ctx, id, today, input.ConfirmedBySupplier)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, shared.Internal(err)
	}
	s.logger.Info("purchase order status changed", slog.Int64("po_id", id), slog.String("status", string(target)))
	return s.GetPurchaseOrder(ctx, id)
}

// ReceiveGoods records a GRN against a Confirmed PO, posts a Purchase ledger entry per line and
// closes the PO as Received once every line is fully received.
func (s *Service) ReceiveGoods(ctx context.Context, input GoodsReceiptInput) (GoodsReceipt, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return GoodsReceipt{}, err
	}
	now := s.now()
	var created GoodsReceipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, lines, err := tx.LockPO(ctx, input.POID)
		if err != nil {
			return err
		}
		if po.Status != POStatusConfirmed {
			return fmt.Errorf("%w (%s is %s)", ErrNotReceivable, po.Number, po.Status)
		}
		byID := make(map[int64]*POLine, len(lines))
		for i := range lines {
			byID[lines[i].ID] = &lines[i]
		}

		grn := GoodsReceipt{
			POID:                 po.ID,
			ReceiptDate:          input.ReceiptDate.Or(now),
			ReceivedBy:           input.ReceivedBy,
			SupplierDeliveryNote: input.SupplierDeliveryNote,
			Status:               "Received",
			Notes:                input.Notes,
		}
		for i, in := range input.Items {
			line, ok := byID[in.POItemID]
			if !ok {
				return shared.ValidationErrors{fmt.Sprintf("items[%d].po_item_id", i): "does not belong to the purchase order"}
			}
			if in.Quantity > line.Outstanding() {
				return shared.ValidationErrors{fmt.Sprintf("items[%d].quantity", i): fmt.Sprintf("exceeds outstanding quantity %d", line.Outstanding())}
			}
			line.ReceivedQty += in.Quantity
			condition := in.Condition
			if condition == "" {
				condition = ConditionGood
			}
			grn.Lines = append(grn.Lines, GRNLine{
				POItemID:    line.ID,
				Qty:         in.Quantity,
				UnitPrice:   decimal.NewNullDecimal(line.UnitPrice),
				BatchNumber: in.BatchNumber,
				ExpiryDate:  shared.DatePtr(in.ExpiryDate),
				Location:    in.Location,
				Condition:   condition,
				Notes:       in.Notes,
			})
		}

		if grn.Number, err = numbering.Allocate(ctx, tx.Counter(), numbering.GoodsReceipt, now); err != nil {
			return err
		}
		if grn.ID, err = tx.CreateGRN(ctx, grn); err != nil {
			return err
		}
		for i := range grn.Lines {
			grn.Lines[i].GRNID = grn.ID
			if grn.Lines[i].ID, err = tx.InsertGRNLine(ctx, grn.Lines[i]); err != nil {
				return err
			}
		}
		for _, in := range input.Items {
			line := byID[in.POItemID]
			if err := tx.SetReceivedQuantity(ctx, line.ID, line.ReceivedQty); err != nil {
				return err
			}
			if _, err := s.ledger.ApplyInTx(ctx, tx.Ledger(), inventory.ApplyInput{
				ProductID:       line.ProductID,
				QuantityChange:  in.Quantity,
				Type:            inventory.TransactionTypePurchase,
				ReferenceID:     &po.ID,
				ReferenceNumber: po.Number,
				Notes:           "GRN " + grn.Number,
				PerformedBy:     input.ReceivedBy,
			}); err != nil {
				return err
			}
		}
		created = grn
		if fullyReceived(lines) {
			return tx.UpdatePOStatus(ctx, po.ID, POStatusReceived)
		}
		return nil
	})
	if err != nil {
		return GoodsReceipt{}, shared.Internal(err)
	}
	s.logger.Info("goods received", slog.String("number", created.Number), slog.Int64("po_id", created.POID))
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return created, nil
}

// ListGoodsReceipts returns the GRNs recorded against a PO.
func (s *Service) ListGoodsReceipts(ctx context.Context, poID int64) ([]GoodsReceipt, error) {
	list, err := s.repo.ListGRNs(ctx, poID)
	return list, shared.Internal(err)
}

func fullyReceived(lines []POLine) bool {
	for _, line := range lines {
		if line.Outstanding() > 0 {
			return false
		}
	}
	return true
}
