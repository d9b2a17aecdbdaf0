package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

type memoryBillingRepo struct {
	mu       sync.Mutex
	counter  *numbering.MemoryCounter
	orders   map[int64]BillableOrder
	invoices map[int64]Invoice
	receipts []Receipt
	nextID   int64
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{
		counter: numbering.NewMemoryCounter(),
		orders: map[int64]BillableOrder{
			1: {ID: 1, Number: "SO2024050001", ClientID: 7, Status: "Shipped", Subtotal: dec("1000"), TaxAmount: dec("100"), GrandTotal: dec("1100"), ClientPaymentTerms: "NET30"},
			2: {ID: 2, Number: "SO2024050002", ClientID: 7, Status: "Pending", Subtotal: dec("50"), TaxAmount: dec("0"), GrandTotal: dec("50")},
			3: {ID: 3, Number: "SO2024050003", ClientID: 8, Status: "Confirmed", Subtotal: dec("200"), TaxAmount: dec("0"), GrandTotal: dec("200"), PaymentTerms: "Net 45", ClientPaymentTerms: "NET15"},
			4: {ID: 4, Number: "SO2024050004", ClientID: 8, Status: "Processing", Subtotal: dec("300"), TaxAmount: dec("0"), GrandTotal: dec("300")},
		},
		invoices: make(map[int64]Invoice),
	}
}

func (r *memoryBillingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, memoryBillingTx{r})
}

func (r *memoryBillingRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFound("invoice", id)
	}
	return inv, nil
}

func (r *memoryBillingRepo) ListInvoices(_ context.Context, filter ListFilter) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if filter.Status != "" && string(inv.Status) != filter.Status {
			continue
		}
		if filter.ClientID != nil && inv.ClientID != *filter.ClientID {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryBillingRepo) ListReceipts(_ context.Context, invoiceID int64) ([]Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Receipt
	for _, rc := range r.receipts {
		if rc.InvoiceID == invoiceID {
			out = append(out, rc)
		}
	}
	return out, nil
}

type memoryBillingTx struct{ r *memoryBillingRepo }

func (tx memoryBillingTx) Counter() numbering.Counter { return tx.r.counter }

func (tx memoryBillingTx) GetBillableOrder(_ context.Context, orderID int64) (BillableOrder, error) {
	o, ok := tx.r.orders[orderID]
	if !ok {
		return BillableOrder{}, shared.NotFound("sales order", orderID)
	}
	return o, nil
}

func (tx memoryBillingTx) OpenInvoiceNumber(_ context.Context, orderID int64) (string, error) {
	for _, inv := range tx.r.invoices {
		if inv.OrderID == orderID && inv.Status != InvoiceStatusCancelled {
			return inv.Number, nil
		}
	}
	return "", nil
}

func (tx memoryBillingTx) InsertInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	tx.r.nextID++
	inv.ID = tx.r.nextID
	tx.r.invoices[inv.ID] = inv
	return inv, nil
}

func (tx memoryBillingTx) LockInvoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := tx.r.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFound("invoice", id)
	}
	return inv, nil
}

func (tx memoryBillingTx) UpdateInvoicePayment(_ context.Context, inv Invoice) error {
	tx.r.invoices[inv.ID] = inv
	return nil
}

func (tx memoryBillingTx) UpdateInvoiceStatus(_ context.Context, id int64, status InvoiceStatus) error {
	inv := tx.r.invoices[id]
	inv.Status = status
	tx.r.invoices[id] = inv
	return nil
}

func (tx memoryBillingTx) InsertReceipt(_ context.Context, rc Receipt) (Receipt, error) {
	tx.r.nextID++
	rc.ID = tx.r.nextID
	tx.r.receipts = append(tx.r.receipts, rc)
	return rc, nil
}

func (tx memoryBillingTx) MarkOverdue(_ context.Context, asOf time.Time) (int, error) {
	count := 0
	for id, inv := range tx.r.invoices {
		if inv.Status == InvoiceStatusUnpaid && inv.DueDate.Before(asOf) {
			inv.Status = InvoiceStatusOverdue
			tx.r.invoices[id] = inv
			count++
		}
	}
	return count, nil
}

var today = time.Date(2024, time.May, 14, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newBillingService(cfg ServiceConfig) (*Service, *memoryBillingRepo) {
	repo := newMemoryBillingRepo()
	return NewService(repo, cfg, nil, nil).WithClock(func() time.Time { return today }), repo
}

func TestCreateInvoiceFromOrder(t *testing.T) {
	svc, _ := newBillingService(ServiceConfig{})
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 1})
	require.NoError(t, err)
	require.Equal(t, "INV2024050001", inv.Number)
	require.Equal(t, InvoiceStatusUnpaid, inv.Status)
	require.Equal(t, int64(7), inv.ClientID)
	require.True(t, inv.GrandTotal.Equal(dec("1100")))
	require.True(t, inv.BalanceDue.Equal(inv.GrandTotal))
	require.True(t, inv.AmountPaid.IsZero())
	require.Equal(t, "2024-06-13", inv.DueDate.Format(shared.DateLayout))

	orderTerms, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 3})
	require.NoError(t, err)
	require.Equal(t, "INV2024050002", orderTerms.Number)
	require.Equal(t, "2024-06-28", orderTerms.DueDate.Format(shared.DateLayout))

	explicit := shared.NewDate(time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC))
	fixedDue, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 4, DueDate: &explicit})
	require.NoError(t, err)
	require.Equal(t, "2024-05-20", fixedDue.DueDate.Format(shared.DateLayout))
}

func TestCreateInvoiceOncePerOrder(t *testing.T) {
	svc, _ := newBillingService(ServiceConfig{})
	ctx := context.Background()

	first, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 1})
	require.NoError(t, err)

	_, err = svc.CreateInvoice(ctx, InvoiceInput{OrderID: 1})
	require.ErrorIs(t, err, ErrOrderInvoiced)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.ErrorContains(t, err, first.Number)

	_, err = svc.CancelInvoice(ctx, first.ID)
	require.NoError(t, err)
	again, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 1})
	require.NoError(t, err)
	require.Equal(t, "INV2024050002", again.Number)

	open, err := svc.ListInvoices(ctx, ListFilter{Status: string(InvoiceStatusUnpaid)})
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestCreateInvoiceRejectsUnbillableOrders(t *testing.T) {
	svc, _ := newBillingService(ServiceConfig{})
	ctx := context.Background()

	_, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 2})
	require.ErrorIs(t, err, ErrOrderNotBillable)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = svc.CreateInvoice(ctx, InvoiceInput{OrderID: 99})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.CreateInvoice(ctx, InvoiceInput{})
	require.ErrorIs(t, err, shared.ErrValidation)

	early := shared.NewDate(today.AddDate(0, 0, -1))
	_, err = svc.CreateInvoice(ctx, InvoiceInput{OrderID: 1, DueDate: &early})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordReceiptDerivesStatus(t *testing.T) {
	svc, _ := newBillingService(ServiceConfig{})
	ctx := context.Background()
	inv, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 1})
	require.NoError(t, err)

	rc, partial, err := svc.RecordReceipt(ctx, ReceiptInput{InvoiceID: inv.ID, PaymentMethod: "Bank Transfer", Amount: dec("400")})
	require.NoError(t, err)
	require.Equal(t, "RCT2024050001", rc.Number)
	require.Equal(t, ReceiptOfficial, rc.Type)
	require.Equal(t, InvoiceStatusPartiallyPaid, partial.Status)
	require.Equal(t, "700.00", partial.BalanceDue.StringFixed(2))

	_, paid, err := svc.RecordReceipt(ctx, ReceiptInput{InvoiceID: inv.ID, PaymentMethod: "Cash", Amount: dec("700")})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, paid.Status)
	require.True(t, paid.BalanceDue.IsZero())
	require.True(t, paid.AmountPaid.Equal(paid.GrandTotal))

	_, _, err = svc.RecordReceipt(ctx, ReceiptInput{InvoiceID: inv.ID, PaymentMethod: "Cash", Amount: dec("1")})
	require.ErrorIs(t, err, ErrInvoiceClosed)

	receipts, err := svc.ListReceipts(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
}

func TestOverpaymentPolicy(t *testing.T) {
	strict, _ := newBillingService(ServiceConfig{AllowOverpayment: false})
	ctx := context.Background()
	inv, err := strict.CreateInvoice(ctx, InvoiceInput{OrderID: 1})
	require.NoError(t, err)

	_, _, err = strict.RecordReceipt(ctx, ReceiptInput{InvoiceID: inv.ID, PaymentMethod: "Cash", Amount: dec("1200")})
	require.ErrorIs(t, err, ErrOverpayment)
	require.ErrorIs(t, err, shared.ErrValidation)
	unchanged, err := strict.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusUnpaid, unchanged.Status)

	lenient, _ := newBillingService(ServiceConfig{AllowOverpayment: true})
	inv, err = lenient.CreateInvoice(ctx, InvoiceInput{OrderID: 1})
	require.NoError(t, err)
	_, over, err := lenient.RecordReceipt(ctx, ReceiptInput{InvoiceID: inv.ID, PaymentMethod: "Cash", Amount: dec("1200")})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, over.Status)
	require.Equal(t, "-100.00", over.BalanceDue.StringFixed(2))
}

func TestReceiptValidation(t *testing.T) {
	svc, _ := newBillingService(ServiceConfig{})
	_, _, err := svc.RecordReceipt(context.Background(), ReceiptInput{InvoiceID: 1, ReceiptType: "Cheque", Amount: dec("0")})

	var fields shared.ValidationErrors
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "amount")
	require.Contains(t, fields, "payment_method")
	require.Contains(t, fields, "receipt_type")

	inv, err := svc.CreateInvoice(context.Background(), InvoiceInput{OrderID: 1})
	require.NoError(t, err)
	_, _, err = svc.RecordReceipt(context.Background(), ReceiptInput{InvoiceID: inv.ID, PaymentMethod: "Cash", Amount: dec("0.004")})
	require.ErrorAs(t, err, &fields)
	require.Equal(t, "must be at least 0.01", fields["amount"])

	rc, _, err := svc.RecordReceipt(context.Background(), ReceiptInput{InvoiceID: inv.ID, PaymentMethod: "Cash", Amount: dec("0.005")})
	require.NoError(t, err)
	require.Equal(t, "0.01", rc.Amount.StringFixed(2))
}

func TestCancelInvoice(t *testing.T) {
	svc, _ := newBillingService(ServiceConfig{})
	ctx := context.Background()
	paidSome, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 1})
	require.NoError(t, err)
	_, _, err = svc.RecordReceipt(ctx, ReceiptInput{InvoiceID: paidSome.ID, PaymentMethod: "Cash", Amount: dec("10")})
	require.NoError(t, err)
	_, err = svc.CancelInvoice(ctx, paidSome.ID)
	require.ErrorIs(t, err, ErrInvoiceHasPayments)

	fresh, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 4})
	require.NoError(t, err)
	cancelled, err := svc.CancelInvoice(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusCancelled, cancelled.Status)
	_, err = svc.CancelInvoice(ctx, fresh.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, _, err = svc.RecordReceipt(ctx, ReceiptInput{InvoiceID: fresh.ID, PaymentMethod: "Cash", Amount: dec("10")})
	require.ErrorIs(t, err, ErrInvoiceClosed)
}

func TestMarkOverdue(t *testing.T) {
	svc, _ := newBillingService(ServiceConfig{})
	ctx := context.Background()
	due, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 1})
	require.NoError(t, err)
	notYet, err := svc.CreateInvoice(ctx, InvoiceInput{OrderID: 3})
	require.NoError(t, err)

	count, err := svc.MarkOverdue(ctx, time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, count)

	overdue, err := svc.GetInvoice(ctx, due.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusOverdue, overdue.Status)
	still, err := svc.GetInvoice(ctx, notYet.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusUnpaid, still.Status)

	_, partial, err := svc.RecordReceipt(ctx, ReceiptInput{InvoiceID: due.ID, PaymentMethod: "Cash", Amount: dec("100")})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPartiallyPaid, partial.Status)
}

func TestNetDays(t *testing.T) {
	cases := map[string]int{
		"NET30":  30,
		"Net 45": 45,
		"net7":   7,
		"":       14,
		"COD":    14,
		"NETX":   14,
	}
	for terms, want := range cases {
		require.Equal(t, want, NetDays(terms, 14), terms)
	}
}

func TestInvoiceMachine(t *testing.T) {
	require.NoError(t, InvoiceMachine.Validate(InvoiceStatusUnpaid, InvoiceStatusOverdue))
	require.NoError(t, InvoiceMachine.Validate(InvoiceStatusOverdue, InvoiceStatusUnpaid))
	require.NoError(t, InvoiceMachine.Validate(InvoiceStatusPartiallyPaid, InvoiceStatusPaid))
	require.ErrorIs(t, InvoiceMachine.Validate(InvoiceStatusPaid, InvoiceStatusCancelled), shared.ErrInvalidTransition)
	require.ErrorIs(t, InvoiceMachine.Validate(InvoiceStatusCancelled, InvoiceStatusUnpaid), shared.ErrInvalidTransition)
	_, err := InvoiceMachine.Parse("Void")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestHandlerRecordReceipt(t *testing.T) {
	svc, _ := newBillingService(ServiceConfig{})
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(`{"order_id":1}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices/1/receipts",
		strings.NewReader(`{"payment_method":"Cash","amount":"5000"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices/1/receipts",
		strings.NewReader(`{"payment_method":"Cash","amount":"1100"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"Paid"`)
}
