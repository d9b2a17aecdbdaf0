package reports

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

type fakeInvoice struct {
	id         int64
	number     string
	clientID   int64
	orders     string
	date, due  time.Time
	status     string
	grandTotal decimal.Decimal
	paid       decimal.Decimal
}

func (f fakeInvoice) balance() decimal.Decimal { return f.grandTotal.Sub(f.paid) }

type fakeReceipt struct {
	id        int64
	invoiceID int64
	date      time.Time
	amount    decimal.Decimal
}

type memoryRepo struct {
	clients  map[int64]ClientSummary
	invoices []fakeInvoice
	receipts []fakeReceipt
	products []AvailabilityRow
	loads    atomic.Int32
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{clients: map[int64]ClientSummary{
		1: {ID: 1, CompanyName: "Acme Trading"},
		2: {ID: 2, CompanyName: "Borealis Foods"},
		3: {ID: 3, CompanyName: "Cobalt Labs"},
	}}
}

func (m *memoryRepo) GetClient(_ context.Context, id int64) (ClientSummary, error) {
	c, ok := m.clients[id]
	if !ok {
		return ClientSummary{}, shared.NotFound("client", id)
	}
	return c, nil
}

func (m *memoryRepo) StatementInvoices(_ context.Context, clientID int64, period shared.DateRange) ([]StatementInvoice, error) {
	var out []StatementInvoice
	for _, f := range m.invoices {
		if f.clientID != clientID || !period.Contains(f.date) {
			continue
		}
		out = append(out, StatementInvoice{
			InvoiceID: f.id, Number: f.number, InvoiceDate: f.date, DueDate: f.due,
			GrandTotal: f.grandTotal, AmountPaid: f.paid, BalanceDue: f.balance(),
			Status: f.status, OrderNumbers: f.orders,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].InvoiceDate.Equal(out[j].InvoiceDate) {
			return out[i].InvoiceDate.After(out[j].InvoiceDate)
		}
		return out[i].InvoiceID > out[j].InvoiceID
	})
	return out, nil
}

func (m *memoryRepo) StatementReceipts(_ context.Context, clientID int64, period shared.DateRange) ([]StatementReceipt, error) {
	byID := make(map[int64]fakeInvoice)
	for _, f := range m.invoices {
		byID[f.id] = f
	}
	var out []StatementReceipt
	for _, r := range m.receipts {
		inv := byID[r.invoiceID]
		if inv.clientID != clientID || !period.Contains(r.date) {
			continue
		}
		out = append(out, StatementReceipt{ReceiptID: r.id, ReceiptDate: r.date, Amount: r.amount, PaymentMethod: "Cash", InvoiceNumber: inv.number})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceiptDate.Before(out[j].ReceiptDate) })
	return out, nil
}

func (m *memoryRepo) SaleFacts(_ context.Context, period shared.DateRange) ([]SaleFact, error) {
	m.loads.Add(1)
	var out []SaleFact
	for _, f := range m.invoices {
		if period.Contains(f.date) {
			out = append(out, SaleFact{InvoiceDate: f.date, ClientID: f.clientID, GrandTotal: f.grandTotal, BalanceDue: f.balance(), Status: f.status})
		}
	}
	return out, nil
}

func (m *memoryRepo) OpenInvoices(context.Context) ([]OpenInvoice, error) {
	m.loads.Add(1)
	var out []OpenInvoice
	for _, f := range m.invoices {
		if f.balance().IsPositive() {
			out = append(out, OpenInvoice{InvoiceID: f.id, Number: f.number, ClientID: f.clientID,
				ClientName: m.clients[f.clientID].CompanyName, DueDate: f.due, BalanceDue: f.balance(), Status: f.status})
		}
	}
	return out, nil
}

func (m *memoryRepo) Availability(_ context.Context, filter AvailabilityFilter) ([]AvailabilityRow, error) {
	m.loads.Add(1)
	var out []AvailabilityRow
	for _, p := range m.products {
		if filter.ProductID != nil && p.ProductID != *filter.ProductID {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentStock != out[j].CurrentStock {
			return out[i].CurrentStock < out[j].CurrentStock
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

var today = time.Date(2024, time.May, 14, 15, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(repo *memoryRepo, cache *Cache) *Service {
	return NewService(repo, cache, nil).WithClock(func() time.Time { return today })
}

func TestAgingBands(t *testing.T) {
	repo := newMemoryRepo()
	asOf := shared.Day(today)
	repo.invoices = []fakeInvoice{
		{id: 1, clientID: 1, number: "INV1", due: asOf.AddDate(0, 0, -10), grandTotal: dec("100"), paid: decimal.Zero},
		{id: 2, clientID: 1, number: "INV2", due: asOf.AddDate(0, 0, -45), grandTotal: dec("250"), paid: dec("50")},
		{id: 3, clientID: 1, number: "INV3", due: asOf.AddDate(0, 0, -75), grandTotal: dec("300"), paid: decimal.Zero},
		{id: 4, clientID: 1, number: "INV4", due: asOf.AddDate(0, 0, -120), grandTotal: dec("400"), paid: decimal.Zero},
		{id: 5, clientID: 2, number: "INV5", due: asOf.AddDate(0, 0, -200), grandTotal: dec("90"), paid: dec("90")},
		{id: 6, clientID: 3, number: "INV6", due: asOf.AddDate(0, 0, 15), grandTotal: dec("20"), paid: decimal.Zero},
	}
	report, err := newService(repo, nil).Aging(context.Background(), time.Time{})
	require.NoError(t, err)
	require.True(t, report.AsOf.Equal(asOf))

	require.Len(t, report.Rows, 2)
	acme := report.Rows[0]
	require.Equal(t, int64(1), acme.ClientID)
	require.Equal(t, "100", acme.Current.String())
	require.Equal(t, "200", acme.Days31To60.String())
	require.Equal(t, "300", acme.Days61To90.String())
	require.Equal(t, "400", acme.Over90.String())
	require.Equal(t, "1000", acme.Total.String())

	cobalt := report.Rows[1]
	require.Equal(t, "Cobalt Labs", cobalt.ClientName)
	require.Equal(t, "20", cobalt.Current.String())
	require.Equal(t, "1020", report.Totals.Total.String())
}

func TestBandForEdges(t *testing.T) {
	cases := map[int]AgingBand{
		-5: BandCurrent, 0: BandCurrent, 29: BandCurrent,
		30: BandDays31To60, 59: BandDays31To60,
		60: BandDays61To90, 89: BandDays61To90,
		90: BandOver90, 365: BandOver90,
	}
	for days, want := range cases {
		require.Equal(t, want, BandFor(days), "days=%d", days)
	}
}

func TestMonthlySales(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoices = []fakeInvoice{
		{id: 1, clientID: 1, date: day(2024, time.March, 3), grandTotal: dec("100.10"), paid: dec("100.10")},
		{id: 2, clientID: 2, date: day(2024, time.March, 28), grandTotal: dec("200.20"), paid: dec("0")},
		{id: 3, clientID: 1, date: day(2024, time.March, 30), grandTotal: dec("0.05"), paid: dec("0")},
		{id: 4, clientID: 1, date: day(2024, time.January, 9), grandTotal: dec("50"), paid: dec("10")},
		{id: 5, clientID: 3, date: day(2023, time.October, 1), grandTotal: dec("999"), paid: dec("0")},
	}
	svc := newService(repo, nil)

	start, end := day(2024, time.January, 1), day(2024, time.March, 31)
	rows, err := svc.MonthlySales(context.Background(), Range{Start: &start, End: &end})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "2024-01", rows[0].Month)
	require.Equal(t, 1, rows[0].InvoiceCount)
	require.Equal(t, "40", rows[0].Outstanding.String())

	march := rows[1]
	require.Equal(t, "2024-03", march.Month)
	require.Equal(t, 3, march.InvoiceCount)
	require.Equal(t, 2, march.ClientCount)
	require.True(t, march.TotalSales.Equal(dec("300.35")))
	require.Equal(t, "100.12", march.AverageInvoice.StringFixed(2))
	require.True(t, march.Outstanding.Equal(dec("200.25")))

	defaulted, err := svc.MonthlySales(context.Background(), Range{})
	require.NoError(t, err)
	require.Len(t, defaulted, 2, "default window starts at 2023-12")

	_, err = svc.MonthlySales(context.Background(), Range{Start: &end, End: &start})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestClientStatement(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoices = []fakeInvoice{
		{id: 1, clientID: 1, number: "INV2024030001", orders: "SO2024030001", date: day(2024, time.March, 5), due: day(2024, time.April, 4), status: "Paid", grandTotal: dec("110"), paid: dec("110")},
		{id: 2, clientID: 1, number: "INV2024040001", orders: "SO2024040001", date: day(2024, time.April, 2), due: day(2024, time.May, 2), status: "Partially Paid", grandTotal: dec("220"), paid: dec("20")},
		{id: 3, clientID: 1, number: "INV2024040002", date: day(2024, time.April, 2), due: day(2024, time.May, 2), status: "Unpaid", grandTotal: dec("33.33"), paid: decimal.Zero},
		{id: 4, clientID: 2, number: "INV2024040003", date: day(2024, time.April, 3), status: "Unpaid", grandTotal: dec("500"), paid: decimal.Zero},
	}
	repo.receipts = []fakeReceipt{
		{id: 2, invoiceID: 2, date: day(2024, time.April, 20), amount: dec("20")},
		{id: 1, invoiceID: 1, date: day(2024, time.March, 10), amount: dec("110")},
	}
	svc := newService(repo, nil)

	st, err := svc.ClientStatement(context.Background(), StatementRequest{ClientID: 1})
	require.NoError(t, err)
	require.Equal(t, "Acme Trading", st.Client.CompanyName)
	require.Len(t, st.Invoices, 3)
	require.Equal(t, []int64{3, 2, 1}, []int64{st.Invoices[0].InvoiceID, st.Invoices[1].InvoiceID, st.Invoices[2].InvoiceID})
	require.Len(t, st.Receipts, 2)
	require.True(t, st.Receipts[0].ReceiptDate.Before(st.Receipts[1].ReceiptDate))

	sum := decimal.Zero
	for _, inv := range st.Invoices {
		sum = sum.Add(inv.BalanceDue)
	}
	require.True(t, sum.Equal(st.TotalBalance))
	require.True(t, st.TotalInvoiced.Equal(dec("363.33")))
	require.True(t, st.TotalPaid.Equal(dec("130")))
	require.True(t, st.TotalBalance.Equal(dec("233.33")))

	start := day(2024, time.April, 1)
	april, err := svc.ClientStatement(context.Background(), StatementRequest{ClientID: 1, Start: &start})
	require.NoError(t, err)
	require.Len(t, april.Invoices, 2)
	require.Len(t, april.Receipts, 1)
	require.True(t, april.TotalBalance.Equal(dec("233.33")))

	_, err = svc.ClientStatement(context.Background(), StatementRequest{ClientID: 42})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCancelledInvoiceOwesNothingInAnyReport(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoices = []fakeInvoice{
		{id: 1, clientID: 2, number: "INV2024040001", date: day(2024, time.April, 3), due: day(2024, time.May, 3), status: "Cancelled", grandTotal: dec("500"), paid: decimal.Zero},
		{id: 2, clientID: 2, number: "INV2024040002", date: day(2024, time.April, 10), due: day(2024, time.May, 10), status: "Unpaid", grandTotal: dec("80"), paid: decimal.Zero},
	}
	svc := newService(repo, nil)
	ctx := context.Background()

	st, err := svc.ClientStatement(ctx, StatementRequest{ClientID: 2})
	require.NoError(t, err)
	require.Len(t, st.Invoices, 2)
	require.True(t, st.Invoices[1].BalanceDue.IsZero())
	require.Equal(t, "Cancelled", st.Invoices[1].Status)
	require.Equal(t, "80", st.TotalBalance.String())
	require.Equal(t, "580", st.TotalInvoiced.String())

	aging, err := svc.Aging(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, aging.Rows, 1)
	require.Equal(t, "80", aging.Rows[0].Total.String())
	require.True(t, aging.Totals.Total.Equal(st.TotalBalance))

	start, end := day(2024, time.April, 1), day(2024, time.April, 30)
	months, err := svc.MonthlySales(ctx, Range{Start: &start, End: &end})
	require.NoError(t, err)
	require.Len(t, months, 1)
	require.Equal(t, 2, months[0].InvoiceCount)
	require.Equal(t, "580", months[0].TotalSales.String())
	require.True(t, months[0].Outstanding.Equal(st.TotalBalance))
}

func TestStatementForPeriod(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoices = []fakeInvoice{
		{id: 1, clientID: 1, date: day(2024, time.April, 30), grandTotal: dec("10"), paid: decimal.Zero},
		{id: 2, clientID: 1, date: day(2024, time.May, 1), grandTotal: dec("20"), paid: decimal.Zero},
	}
	svc := newService(repo, nil)

	thisMonth, err := svc.StatementForPeriod(context.Background(), 1, shared.PeriodThisMonth, Range{})
	require.NoError(t, err)
	require.Len(t, thisMonth.Invoices, 1)
	require.Equal(t, "2024-05-14", thisMonth.End.Format(shared.DateLayout))

	lastMonth, err := svc.StatementForPeriod(context.Background(), 1, shared.PeriodLastMonth, Range{})
	require.NoError(t, err)
	require.Len(t, lastMonth.Invoices, 1)
	require.Equal(t, "2024-04-30", lastMonth.End.Format(shared.DateLayout))

	_, err = svc.StatementForPeriod(context.Background(), 1, "fortnight", Range{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestProductAvailability(t *testing.T) {
	repo := newMemoryRepo()
	lead := 7
	repo.products = []AvailabilityRow{
		{ProductID: 1, SKU: "WID-1", Name: "Widget", Category: "Parts", CurrentStock: 50, ReorderLevel: 10, SupplierName: "Globex", LeadTimeDays: &lead},
		{ProductID: 2, SKU: "BOLT-2", Name: "Bolt", Category: "Parts", CurrentStock: 10, ReorderLevel: 10},
		{ProductID: 3, SKU: "OIL-3", Name: "Oil", Category: "Fluids", CurrentStock: -2, ReorderLevel: 5},
	}
	svc := newService(repo, nil)

	rows, err := svc.ProductAvailability(context.Background(), AvailabilityFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []StockStatus{StockOut, StockLow, StockIn}, []StockStatus{rows[0].StockStatus, rows[1].StockStatus, rows[2].StockStatus})

	parts, err := svc.ProductAvailability(context.Background(), AvailabilityFilter{Category: "Parts"})
	require.NoError(t, err)
	require.Len(t, parts, 2)

	id := int64(1)
	one, err := svc.ProductAvailability(context.Background(), AvailabilityFilter{ProductID: &id})
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, "Globex", one[0].SupplierName)
}
