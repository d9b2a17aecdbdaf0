// Package reports aggregates invoices, receipts and stock into client statements, monthly
// sales, receivable aging and product availability.
package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// Range bounds a report by invoice date. Nil bounds are open.
type Range struct {
	Start *time.Time
	End   *time.Time
}

func (r Range) dates() shared.DateRange {
	var out shared.DateRange
	if r.Start != nil {
		out.Start = shared.Day(*r.Start)
	}
	if r.End != nil {
		out.End = shared.Day(*r.End)
	}
	return out
}

// StatementRequest selects a client and an optional invoice date range.
type StatementRequest struct {
	ClientID int64
	Start    *time.Time
	End      *time.Time
}

// ClientSummary identifies the client a statement belongs to.
type ClientSummary struct {
	ID            int64  `json:"id"`
	Code          string `json:"client_code,omitempty"`
	CompanyName   string `json:"company_name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	PaymentTerms  string `json:"payment_terms,omitempty"`
}

// StatementInvoice is one invoice line of a statement.
type StatementInvoice struct {
	InvoiceID    int64           `json:"invoice_id"`
	Number       string          `json:"invoice_number"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	DueDate      time.Time       `json:"due_date"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	BalanceDue   decimal.Decimal `json:"balance_due"`
	Status       string          `json:"status"`
	OrderNumbers string          `json:"order_numbers"`
}

// StatementReceipt is one payment line of a statement.
type StatementReceipt struct {
	ReceiptID     int64           `json:"receipt_id"`
	Number        string          `json:"receipt_number"`
	ReceiptDate   time.Time       `json:"receipt_date"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	InvoiceNumber string          `json:"invoice_number"`
}

// ClientStatement lists a client's invoices (newest first) and receipts (oldest first).
type ClientStatement struct {
	Client        ClientSummary      `json:"client"`
	Start         *time.Time         `json:"start,omitempty"`
	End           *time.Time         `json:"end,omitempty"`
	Invoices      []StatementInvoice `json:"invoices"`
	Receipts      []StatementReceipt `json:"receipts"`
	TotalInvoiced decimal.Decimal    `json:"total_invoiced"`
	TotalPaid     decimal.Decimal    `json:"total_paid"`
	TotalBalance  decimal.Decimal    `json:"total_balance"`
}

func (st *ClientStatement) total() {
	st.TotalInvoiced, st.TotalPaid, st.TotalBalance = decimal.Zero, decimal.Zero, decimal.Zero
	for i := range st.Invoices {
		inv := &st.Invoices[i]
		inv.BalanceDue = receivable(inv.Status, inv.BalanceDue)
		st.TotalInvoiced = st.TotalInvoiced.Add(inv.GrandTotal)
		st.TotalPaid = st.TotalPaid.Add(inv.AmountPaid)
		st.TotalBalance = st.TotalBalance.Add(inv.BalanceDue)
	}
}

// statusCancelled mirrors the billing status; a cancelled invoice owes nothing even though
// its stored balance_due still equals grand_total - amount_paid.
const statusCancelled = "Cancelled"

// receivable is the part of balance that counts as owed in every report.
func receivable(status string, balance decimal.Decimal) decimal.Decimal {
	if status == statusCancelled {
		return decimal.Zero
	}
	return balance
}

// SaleFact is the slice of an invoice the monthly report groups.
type SaleFact struct {
	InvoiceDate time.Time
	ClientID    int64
	GrandTotal  decimal.Decimal
	BalanceDue  decimal.Decimal
	Status      string
}

// MonthlySalesRow summarises one YYYY-MM bucket.
type MonthlySalesRow struct {
	Month          string          `json:"month"`
	InvoiceCount   int             `json:"invoice_count"`
	ClientCount    int             `json:"client_count"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	AverageInvoice decimal.Decimal `json:"average_invoice"`
	Outstanding    decimal.Decimal `json:"outstanding"`
}

// summariseMonths groups facts by calendar month in chronological order.
func summariseMonths(facts []SaleFact) []MonthlySalesRow {
	type bucket struct {
		row     MonthlySalesRow
		clients map[int64]struct{}
	}
	buckets := make(map[string]*bucket)
	for _, f := range facts {
		key := f.InvoiceDate.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				row:     MonthlySalesRow{Month: key, TotalSales: decimal.Zero, Outstanding: decimal.Zero},
				clients: make(map[int64]struct{}),
			}
			buckets[key] = b
		}
		b.row.InvoiceCount++
		b.row.TotalSales = b.row.TotalSales.Add(f.GrandTotal)
		b.row.Outstanding = b.row.Outstanding.Add(receivable(f.Status, f.BalanceDue))
		b.clients[f.ClientID] = struct{}{}
	}
	rows := make([]MonthlySalesRow, 0, len(buckets))
	for _, b := range buckets {
		b.row.ClientCount = len(b.clients)
		b.row.AverageInvoice = shared.Round2(b.row.TotalSales.Div(decimal.NewFromInt(int64(b.row.InvoiceCount))))
		rows = append(rows, b.row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows
}

// AgingBand names a days-overdue bucket.
type AgingBand string

const (
	BandCurrent    AgingBand = "current"
	BandDays31To60 AgingBand = "31-60"
	BandDays61To90 AgingBand = "61-90"
	BandOver90     AgingBand = "over90"
)

// BandFor places an invoice that is days past due. Not yet due counts as current.
func BandFor(days int) AgingBand {
	switch {
	case days < 30:
		return BandCurrent
	case days < 60:
		return BandDays31To60
	case days < 90:
		return BandDays61To90
	default:
		return BandOver90
	}
}

// OpenInvoice is an invoice with a positive balance.
type OpenInvoice struct {
	InvoiceID  int64
	Number     string
	ClientID   int64
	ClientName string
	DueDate    time.Time
	BalanceDue decimal.Decimal
	Status     string
}

// AgingBuckets holds per band sums.
type AgingBuckets struct {
	Current    decimal.Decimal `json:"current"`
	Days31To60 decimal.Decimal `json:"days_31_60"`
	Days61To90 decimal.Decimal `json:"days_61_90"`
	Over90     decimal.Decimal `json:"over_90"`
	Total      decimal.Decimal `json:"total"`
}

func zeroBuckets() AgingBuckets {
	return AgingBuckets{Current: decimal.Zero, Days31To60: decimal.Zero, Days61To90: decimal.Zero, Over90: decimal.Zero, Total: decimal.Zero}
}

func (b *AgingBuckets) add(band AgingBand, amount decimal.Decimal) {
	switch band {
	case BandCurrent:
		b.Current = b.Current.Add(amount)
	case BandDays31To60:
		b.Days31To60 = b.Days31To60.Add(amount)
	case BandDays61To90:
		b.Days61To90 = b.Days61To90.Add(amount)
	case BandOver90:
		b.Over90 = b.Over90.Add(amount)
	}
	b.Total = b.Total.Add(amount)
}

// AgingRow is one client's outstanding receivables by band.
type AgingRow struct {
	ClientID   int64  `json:"client_id"`
	ClientName string `json:"client_name"`
	AgingBuckets
}

// AgingReport is the receivable aging as of a date.
type AgingReport struct {
	AsOf   time.Time    `json:"as_of"`
	Rows   []AgingRow   `json:"rows"`
	Totals AgingBuckets `json:"totals"`
}

// buildAging bands every open invoice by days past due as of asOf.
func buildAging(open []OpenInvoice, asOf time.Time) AgingReport {
	asOf = shared.Day(asOf)
	report := AgingReport{AsOf: asOf, Rows: []AgingRow{}, Totals: zeroBuckets()}
	index := make(map[int64]int)
	for _, inv := range open {
		if !receivable(inv.Status, inv.BalanceDue).IsPositive() {
			continue
		}
		days := int(asOf.Sub(shared.Day(inv.DueDate)).Hours() / 24)
		band := BandFor(days)
		i, ok := index[inv.ClientID]
		if !ok {
			i = len(report.Rows)
			index[inv.ClientID] = i
			report.Rows = append(report.Rows, AgingRow{ClientID: inv.ClientID, ClientName: inv.ClientName, AgingBuckets: zeroBuckets()})
		}
		report.Rows[i].add(band, inv.BalanceDue)
		report.Totals.add(band, inv.BalanceDue)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		if c := report.Rows[i].Total.Cmp(report.Rows[j].Total); c != 0 {
			return c > 0
		}
		return report.Rows[i].ClientName < report.Rows[j].ClientName
	})
	return report
}

// StockStatus classifies a product's stock against its reorder level.
type StockStatus string

const (
	StockOut StockStatus = "Out of Stock"
	StockLow StockStatus = "Low Stock"
	StockIn  StockStatus = "In Stock"
)

// ClassifyStock derives the availability status.
func ClassifyStock(stock, reorderLevel int) StockStatus {
	switch {
	case stock <= 0:
		return StockOut
	case stock <= reorderLevel:
		return StockLow
	default:
		return StockIn
	}
}

// AvailabilityFilter narrows the availability report.
type AvailabilityFilter struct {
	ProductID *int64
	Category  string
}

// AvailabilityRow is one product's stock position.
type AvailabilityRow struct {
	ProductID    int64           `json:"product_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	CurrentStock int             `json:"current_stock"`
	ReorderLevel int             `json:"reorder_level"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	SupplierName string          `json:"supplier_name,omitempty"`
	LeadTimeDays *int            `json:"lead_time_days,omitempty"`
	StockStatus  StockStatus     `json:"stock_status"`
}
