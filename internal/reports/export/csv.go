package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/erp-lite/internal/reports"
)

func writeCSV(w io.Writer, header []string, records [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	return writer.Error()
}

// WriteStatementCSV emits the statement invoices, a blank line, then the receipts.
func WriteStatementCSV(w io.Writer, st reports.ClientStatement) error {
	invoices := make([][]string, 0, len(st.Invoices)+1)
	for _, inv := range st.Invoices {
		invoices = append(invoices, []string{
			inv.Number, date(inv.InvoiceDate), date(inv.DueDate), inv.OrderNumbers,
			plain(inv.GrandTotal), plain(inv.AmountPaid), plain(inv.BalanceDue), inv.Status,
		})
	}
	invoices = append(invoices, []string{"Total", "", "", "", plain(st.TotalInvoiced), plain(st.TotalPaid), plain(st.TotalBalance), ""})
	if err := writeCSV(w, []string{"Invoice", "Invoice Date", "Due Date", "Orders", "Grand Total", "Paid", "Balance", "Status"}, invoices); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	receipts := make([][]string, 0, len(st.Receipts))
	for _, rc := range st.Receipts {
		receipts = append(receipts, []string{date(rc.ReceiptDate), rc.Number, rc.InvoiceNumber, rc.PaymentMethod, plain(rc.Amount)})
	}
	return writeCSV(w, []string{"Receipt Date", "Receipt", "Invoice", "Method", "Amount"}, receipts)
}

// WriteMonthlySalesCSV emits one line per month.
func WriteMonthlySalesCSV(w io.Writer, rows []reports.MonthlySalesRow) error {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Month, strconv.Itoa(row.InvoiceCount), strconv.Itoa(row.ClientCount),
			plain(row.TotalSales), plain(row.AverageInvoice), plain(row.Outstanding),
		})
	}
	return writeCSV(w, []string{"Month", "Invoices", "Clients", "Total Sales", "Average Invoice", "Outstanding"}, records)
}

// WriteAgingCSV emits one line per client and a totals line.
func WriteAgingCSV(w io.Writer, report reports.AgingReport) error {
	records := make([][]string, 0, len(report.Rows)+1)
	for _, row := range report.Rows {
		records = append(records, agingRecord(row.ClientName, row.AgingBuckets))
	}
	records = append(records, agingRecord("Total", report.Totals))
	return writeCSV(w, []string{"Client", "Current", "31-60", "61-90", "Over 90", "Total"}, records)
}

func agingRecord(label string, b reports.AgingBuckets) []string {
	return []string{label, plain(b.Current), plain(b.Days31To60), plain(b.Days61To90), plain(b.Over90), plain(b.Total)}
}

// WriteAvailabilityCSV emits the stock position of each product.
func WriteAvailabilityCSV(w io.Writer, rows []reports.AvailabilityRow) error {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		lead := ""
		if row.LeadTimeDays != nil {
			lead = strconv.Itoa(*row.LeadTimeDays)
		}
		records = append(records, []string{
			row.SKU, row.Name, row.Category, strconv.Itoa(row.CurrentStock), strconv.Itoa(row.ReorderLevel),
			plain(row.UnitPrice), row.SupplierName, lead, string(row.StockStatus),
		})
	}
	return writeCSV(w, []string{"SKU", "Product", "Category", "Stock", "Reorder Level", "Unit Price", "Supplier", "Lead Time (days)", "Status"}, records)
}
