package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/erp-lite/internal/reports"
)

type sheet struct {
	name   string
	header []string
	rows   [][]any
}

func writeWorkbook(w io.Writer, sheets ...sheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return err
		}
		if err := writeRow(f, s.name, 1, toAny(s.header)); err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(s.header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(s.name, "A1", last, bold); err != nil {
			return err
		}
		for r, row := range s.rows {
			if err := writeRow(f, s.name, r+2, row); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

func writeRow(f *excelize.File, sheetName string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheetName, cell, &values)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// WriteStatementXLSX writes invoices and receipts on two sheets.
func WriteStatementXLSX(w io.Writer, st reports.ClientStatement) error {
	invoices := sheet{
		name:   "Invoices",
		header: []string{"Invoice", "Invoice Date", "Due Date", "Orders", "Grand Total", "Paid", "Balance", "Status"},
	}
	for _, inv := range st.Invoices {
		invoices.rows = append(invoices.rows, []any{
			inv.Number, date(inv.InvoiceDate), date(inv.DueDate), inv.OrderNumbers,
			inv.GrandTotal.InexactFloat64(), inv.AmountPaid.InexactFloat64(), inv.BalanceDue.InexactFloat64(), inv.Status,
		})
	}
	invoices.rows = append(invoices.rows, []any{
		"Total", "", "", "", st.TotalInvoiced.InexactFloat64(), st.TotalPaid.InexactFloat64(), st.TotalBalance.InexactFloat64(), "",
	})
	receipts := sheet{name: "Receipts", header: []string{"Receipt Date", "Receipt", "Invoice", "Method", "Amount"}}
	for _, rc := range st.Receipts {
		receipts.rows = append(receipts.rows, []any{date(rc.ReceiptDate), rc.Number, rc.InvoiceNumber, rc.PaymentMethod, rc.Amount.InexactFloat64()})
	}
	return writeWorkbook(w, invoices, receipts)
}

// WriteMonthlySalesXLSX writes one row per month.
func WriteMonthlySalesXLSX(w io.Writer, rows []reports.MonthlySalesRow) error {
	s := sheet{name: "Monthly Sales", header: []string{"Month", "Invoices", "Clients", "Total Sales", "Average Invoice", "Outstanding"}}
	for _, row := range rows {
		s.rows = append(s.rows, []any{
			row.Month, row.InvoiceCount, row.ClientCount,
			row.TotalSales.InexactFloat64(), row.AverageInvoice.InexactFloat64(), row.Outstanding.InexactFloat64(),
		})
	}
	return writeWorkbook(w, s)
}

// WriteAgingXLSX writes one row per client followed by the totals.
func WriteAgingXLSX(w io.Writer, report reports.AgingReport) error {
	s := sheet{name: "Aging " + date(report.AsOf), header: []string{"Client", "Current", "31-60", "61-90", "Over 90", "Total"}}
	for _, row := range report.Rows {
		s.rows = append(s.rows, agingCells(row.ClientName, row.AgingBuckets))
	}
	s.rows = append(s.rows, agingCells("Total", report.Totals))
	return writeWorkbook(w, s)
}

func agingCells(label string, b reports.AgingBuckets) []any {
	return []any{label, b.Current.InexactFloat64(), b.Days31To60.InexactFloat64(), b.Days61To90.InexactFloat64(),
		b.Over90.InexactFloat64(), b.Total.InexactFloat64()}
}

// WriteAvailabilityXLSX writes the stock position of each product.
func WriteAvailabilityXLSX(w io.Writer, rows []reports.AvailabilityRow) error {
	s := sheet{name: "Availability", header: []string{"SKU", "Product", "Category", "Stock", "Reorder Level", "Unit Price", "Supplier", "Lead Time (days)", "Status"}}
	for _, row := range rows {
		var lead any
		if row.LeadTimeDays != nil {
			lead = *row.LeadTimeDays
		}
		s.rows = append(s.rows, []any{
			row.SKU, row.Name, row.Category, row.CurrentStock, row.ReorderLevel,
			row.UnitPrice.InexactFloat64(), row.SupplierName, lead, string(row.StockStatus),
		})
	}
	return writeWorkbook(w, s)
}
