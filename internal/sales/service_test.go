package sales

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

var fixedNow = time.Date(2024, time.May, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	repo  *memoryRepo
	stock *inventory.MemoryStore
}

func newFixture() fixture {
	stock := inventory.NewMemoryStore()
	stock.AddProduct(inventory.ProductStock{ProductID: 10, SKU: "SKU010", Name: "Laptop Pro", CurrentStock: 20,
		CostPrice: decimal.NewNullDecimal(decimal.NewFromInt(700))})
	stock.AddProduct(inventory.ProductStock{ProductID: 11, SKU: "SKU011", Name: "Dock", CurrentStock: 1})
	repo := newMemoryRepo(stock)
	ledger := inventory.NewService(stock, inventory.ServiceConfig{AllowNegativeStock: false}, nil, nil)
	svc := NewService(repo, ledger, nil, nil).WithClock(func() time.Time { return fixedNow })
	return fixture{svc: svc, repo: repo, stock: stock}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(product int64, qty int, price string) shared.LineInput {
	return shared.LineInput{ProductID: product, Quantity: qty, UnitPrice: dec(price)}
}

func TestCreateQuotationComputesTotalsAndNumber(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	q, err := f.svc.CreateQuotation(ctx, QuotationInput{
		ClientID:      1,
		TaxPercentage: dec("10"),
		Items:         []QuotationLineInput{{LineInput: line(10, 10, "100")}},
	})
	require.NoError(t, err)
	require.Equal(t, "QUOT2024050001", q.Number)
	require.Equal(t, QuotationStatusDraft, q.Status)
	require.Equal(t, "1000.00", q.Subtotal.StringFixed(2))
	require.Equal(t, "100.00", q.TaxAmount.StringFixed(2))
	require.Equal(t, "1100.00", q.GrandTotal.StringFixed(2))
	require.True(t, q.IssueDate.Equal(shared.Day(fixedNow)))

	second, err := f.svc.CreateQuotation(ctx, QuotationInput{
		ClientID: 2,
		Items: []QuotationLineInput{{LineInput: shared.LineInput{
			ProductID: 11, Quantity: 3, UnitPrice: dec("19.99"), DiscountPercentage: dec("10"),
		}}},
	})
	require.NoError(t, err)
	require.Equal(t, "QUOT2024050002", second.Number)
	require.Equal(t, "6.00", second.Items[0].DiscountAmount.StringFixed(2))
	require.Equal(t, "53.97", second.GrandTotal.StringFixed(2))
}

func TestCreateQuotationValidation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateQuotation(context.Background(), QuotationInput{TaxPercentage: dec("120")})
	require.ErrorIs(t, err, shared.ErrValidation)

	var fields shared.ValidationErrors
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "client_id")
	require.Contains(t, fields, "tax_percentage")
	require.Contains(t, fields, "items")
}

func TestCreateQuotationUnknownClient(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateQuotation(context.Background(), QuotationInput{
		ClientID: 42,
		Items:    []QuotationLineInput{{LineInput: line(10, 1, "5")}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestQuotationLifecycleAndConversion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q, err := f.svc.CreateQuotation(ctx, QuotationInput{
		ClientID:      1,
		TaxPercentage: dec("10"),
		Items:         []QuotationLineInput{{LineInput: line(10, 10, "100")}},
	})
	require.NoError(t, err)

	_, err = f.svc.ConvertQuotation(ctx, q.ID, OrderOptions{})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.TransitionQuotation(ctx, q.ID, string(QuotationStatusAccepted))
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.TransitionQuotation(ctx, q.ID, "Lost")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.TransitionQuotation(ctx, q.ID, string(QuotationStatusSent))
	require.NoError(t, err)
	accepted, err := f.svc.TransitionQuotation(ctx, q.ID, string(QuotationStatusAccepted))
	require.NoError(t, err)
	require.Equal(t, QuotationStatusAccepted, accepted.Status)
	_, err = f.svc.TransitionQuotation(ctx, q.ID, string(QuotationStatusAccepted))
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	order, err := f.svc.ConvertQuotation(ctx, q.ID, OrderOptions{ShippingAddress: "Jl. Sudirman 1"})
	require.NoError(t, err)
	require.Equal(t, "SO2024050001", order.Number)
	require.Equal(t, SalesOrderStatusPending, order.Status)
	require.Equal(t, q.ID, *order.QuotationID)
	require.True(t, order.GrandTotal.Equal(q.GrandTotal))
	require.Len(t, order.Items, 1)
	require.Equal(t, 10, order.Items[0].Quantity)
}

func TestConvertQuotationOnlyOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q, err := f.svc.CreateQuotation(ctx, QuotationInput{
		ClientID: 1,
		Items:    []QuotationLineInput{{LineInput: line(10, 1, "250")}},
	})
	require.NoError(t, err)
	_, err = f.svc.TransitionQuotation(ctx, q.ID, string(QuotationStatusSent))
	require.NoError(t, err)
	_, err = f.svc.TransitionQuotation(ctx, q.ID, string(QuotationStatusAccepted))
	require.NoError(t, err)

	first, err := f.svc.ConvertQuotation(ctx, q.ID, OrderOptions{})
	require.NoError(t, err)

	_, err = f.svc.ConvertQuotation(ctx, q.ID, OrderOptions{})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.ErrorContains(t, err, first.Number)

	_, err = f.svc.CreateSalesOrder(ctx, SalesOrderInput{
		ClientID:    1,
		QuotationID: &q.ID,
		Items:       []shared.LineInput{line(10, 1, "250")},
	})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	orders, err := f.svc.ListSalesOrders(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestSalesOrderTransitions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order, err := f.svc.CreateSalesOrder(ctx, SalesOrderInput{ClientID: 1, Items: []shared.LineInput{line(10, 2, "50")}})
	require.NoError(t, err)
	require.Equal(t, "SO2024050001", order.Number)

	_, err = f.svc.TransitionSalesOrder(ctx, order.ID, string(SalesOrderStatusShipped))
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	same, err := f.svc.TransitionSalesOrder(ctx, order.ID, string(SalesOrderStatusPending))
	require.NoError(t, err)
	require.Equal(t, SalesOrderStatusPending, same.Status)

	cancelled, err := f.svc.TransitionSalesOrder(ctx, order.ID, string(SalesOrderStatusCancelled))
	require.NoError(t, err)
	require.Equal(t, SalesOrderStatusCancelled, cancelled.Status)
	require.True(t, SalesOrderMachine.Terminal(cancelled.Status))

	_, err = f.svc.TransitionSalesOrder(ctx, order.ID, string(SalesOrderStatusConfirmed))
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestDeliveryPostsSalesAndAdvancesOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order, err := f.svc.CreateSalesOrder(ctx, SalesOrderInput{ClientID: 1, Items: []shared.LineInput{line(10, 5, "100")}})
	require.NoError(t, err)
	itemID := order.Items[0].ID

	_, err = f.svc.CreateDeliveryNote(ctx, DeliveryInput{OrderID: order.ID, Items: []DeliveryLineInput{{OrderItemID: itemID, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.TransitionSalesOrder(ctx, order.ID, string(SalesOrderStatusConfirmed))
	require.NoError(t, err)

	note, err := f.svc.CreateDeliveryNote(ctx, DeliveryInput{OrderID: order.ID, Items: []DeliveryLineInput{{OrderItemID: itemID, Quantity: 2}}})
	require.NoError(t, err)
	require.Equal(t, "DN2024050001", note.Number)
	require.Equal(t, 18, f.stock.Stock(10))

	ledger := f.stock.Ledger()
	require.Len(t, ledger, 1)
	require.Equal(t, inventory.TransactionTypeSale, ledger[0].Type)
	require.Equal(t, -2, ledger[0].QuantityChange)
	require.Equal(t, order.Number, ledger[0].ReferenceNumber)

	partial, err := f.svc.GetSalesOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, SalesOrderStatusProcessing, partial.Status)
	require.Equal(t, 3, partial.Items[0].Outstanding())

	_, err = f.svc.CreateDeliveryNote(ctx, DeliveryInput{OrderID: order.ID, Items: []DeliveryLineInput{{OrderItemID: itemID, Quantity: 4}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, 18, f.stock.Stock(10))

	_, err = f.svc.CreateDeliveryNote(ctx, DeliveryInput{OrderID: order.ID, Items: []DeliveryLineInput{{OrderItemID: itemID, Quantity: 3}}})
	require.NoError(t, err)

	shipped, err := f.svc.GetSalesOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, SalesOrderStatusShipped, shipped.Status)
	require.Equal(t, 15, f.stock.Stock(10))

	notes, err := f.svc.ListDeliveryNotes(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
}

func TestDeliveryRespectsStockGuard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order, err := f.svc.CreateSalesOrder(ctx, SalesOrderInput{ClientID: 1, Items: []shared.LineInput{line(11, 3, "25")}})
	require.NoError(t, err)
	_, err = f.svc.TransitionSalesOrder(ctx, order.ID, string(SalesOrderStatusConfirmed))
	require.NoError(t, err)

	_, err = f.svc.CreateDeliveryNote(ctx, DeliveryInput{OrderID: order.ID, Items: []DeliveryLineInput{{OrderItemID: order.Items[0].ID, Quantity: 3}}})
	require.ErrorIs(t, err, inventory.ErrNegativeStock)
	require.Equal(t, 1, f.stock.Stock(11))
}

func TestHandlerCreateQuotation(t *testing.T) {
	f := newFixture()
	r := chi.NewRouter()
	NewHandler(nil, f.svc).MountRoutes(r)

	body := `{"client_id":1,"tax_percentage":"10","items":[{"product_id":10,"quantity":10,"unit_price":"100"}]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/quotations", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"quotation_number":"QUOT2024050001"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/quotations", strings.NewReader(`{"client_id":1,"items":[]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales-orders/99", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
