package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/odyssey-erp/erp-lite/internal/reports"
)

type column struct {
	title string
	width float64
	align string
}

var (
	invoiceColumns = []column{
		{"Invoice", 32, "L"}, {"Date", 22, "L"}, {"Due", 22, "L"}, {"Status", 26, "L"},
		{"Total", 28, "R"}, {"Paid", 28, "R"}, {"Balance", 28, "R"},
	}
	receiptColumns = []column{
		{"Date", 24, "L"}, {"Receipt", 34, "L"}, {"Invoice", 34, "L"}, {"Method", 50, "L"}, {"Amount", 44, "R"},
	}
)

// WriteStatementPDF renders a client statement as an A4 PDF.
func WriteStatementPDF(w io.Writer, st reports.ClientStatement) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Statement of Account - "+st.Client.CompanyName, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Statement of Account", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, st.Client.CompanyName, "", 1, "L", false, 0, "")
	if st.Client.ContactPerson != "" {
		pdf.CellFormat(0, 6, "Attn: "+st.Client.ContactPerson, "", 1, "L", false, 0, "")
	}
	period := "All dates"
	if st.Start != nil || st.End != nil {
		period = fmt.Sprintf("%s to %s", orOpen(datePtr(st.Start)), orOpen(datePtr(st.End)))
	}
	pdf.CellFormat(0, 6, "Period: "+period, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	tableHeader(pdf, invoiceColumns)
	pdf.SetFont("Arial", "", 9)
	for _, inv := range st.Invoices {
		tableRow(pdf, invoiceColumns, []string{
			inv.Number, date(inv.InvoiceDate), date(inv.DueDate), inv.Status,
			Money(inv.GrandTotal), Money(inv.AmountPaid), Money(inv.BalanceDue),
		})
	}
	pdf.SetFont("Arial", "B", 9)
	tableRow(pdf, invoiceColumns, []string{"Total", "", "", "", Money(st.TotalInvoiced), Money(st.TotalPaid), Money(st.TotalBalance)})
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Payments", "", 1, "L", false, 0, "")
	tableHeader(pdf, receiptColumns)
	pdf.SetFont("Arial", "", 9)
	for _, rc := range st.Receipts {
		tableRow(pdf, receiptColumns, []string{date(rc.ReceiptDate), rc.Number, rc.InvoiceNumber, rc.PaymentMethod, Money(rc.Amount)})
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Balance due: "+Money(st.TotalBalance), "", 1, "R", false, 0, "")

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func tableHeader(pdf *gofpdf.Fpdf, cols []column) {
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(240, 240, 240)
	for _, c := range cols {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)
}

func tableRow(pdf *gofpdf.Fpdf, cols []column, values []string) {
	for i, c := range cols {
		pdf.CellFormat(c.width, 6, values[i], "1", 0, c.align, false, 0, "")
	}
	pdf.Ln(-1)
}

func orOpen(s string) string {
	if s == "" {
		return "open"
	}
	return s
}
