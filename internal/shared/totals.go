package shared

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// LineAmounts is the priced result of one document line.
type LineAmounts struct {
	Gross     decimal.Decimal
	Discount  decimal.Decimal
	LineTotal decimal.Decimal
}

// PriceLine computes qty × unit price less the discount. A non-zero discountAmount wins over
// discountPct; otherwise the percentage applies to the gross amount.
func PriceLine(qty int, unitPrice, discountPct, discountAmount decimal.Decimal) LineAmounts {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
	discount := discountAmount
	if discount.IsZero() && !discountPct.IsZero() {
		discount = PercentOf(gross, discountPct)
	}
	discount = Round2(discount)
	return LineAmounts{Gross: Round2(gross), Discount: discount, LineTotal: Round2(gross.Sub(discount))}
}

// Totals is the header arithmetic shared by quotations, orders, purchase orders and invoices.
// GrandTotal always equals Subtotal + TaxAmount.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxPercentage decimal.Decimal `json:"tax_percentage"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

// ComputeTotals sums line totals and applies taxPct to the subtotal.
func ComputeTotals(lineTotals []decimal.Decimal, taxPct decimal.Decimal) Totals {
	subtotal := Round2(SumAmounts(lineTotals...))
	tax := PercentOf(subtotal, taxPct)
	return Totals{
		Subtotal:      subtotal,
		TaxPercentage: taxPct,
		TaxAmount:     tax,
		GrandTotal:    subtotal.Add(tax),
	}
}

// LineInput is a priced line as entered on a quotation, order or purchase order.
type LineInput struct {
	ProductID          int64           `json:"product_id"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
}

// ValidateLines checks a document's lines and tax percentage, keyed like items[0].quantity.
func ValidateLines(lines []LineInput, taxPct decimal.Decimal, errs ValidationErrors) {
	if !ValidPercentage(taxPct) {
		errs.Add("tax_percentage", "must be between 0 and 100")
	}
	if len(lines) == 0 {
		errs.Add("items", "must contain at least 1 item(s)")
		return
	}
	for i, line := range lines {
		prefix := "items[" + strconv.Itoa(i) + "]."
		if line.ProductID <= 0 {
			errs.Add(prefix+"product_id", "is required")
		}
		if line.Quantity <= 0 {
			errs.Add(prefix+"quantity", "must be greater than 0")
		}
		if line.UnitPrice.IsNegative() {
			errs.Add(prefix+"unit_price", "must be at least 0")
		}
		if !ValidPercentage(line.DiscountPercentage) {
			errs.Add(prefix+"discount_percentage", "must be between 0 and 100")
		}
		if line.DiscountAmount.IsNegative() {
			errs.Add(prefix+"discount_amount", "must be at least 0")
		}
		if line.Quantity > 0 && PriceLine(line.Quantity, line.UnitPrice, line.DiscountPercentage, line.DiscountAmount).LineTotal.IsNegative() {
			errs.Add(prefix+"discount_amount", "must not exceed the line amount")
		}
	}
}

