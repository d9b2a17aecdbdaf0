package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTotalsTenPercent(t *testing.T) {
	totals := ComputeTotals([]decimal.Decimal{d("1000")}, d("10"))
	require.Equal(t, "1000.00", totals.Subtotal.StringFixed(2))
	require.Equal(t, "100.00", totals.TaxAmount.StringFixed(2))
	require.Equal(t, "1100.00", totals.GrandTotal.StringFixed(2))
	require.True(t, totals.GrandTotal.Equal(totals.Subtotal.Add(totals.TaxAmount)))
}

func TestComputeTotalsRoundsHalfAwayFromZero(t *testing.T) {
	totals := ComputeTotals([]decimal.Decimal{d("0.10"), d("0.20"), d("33.33")}, d("7.5"))
	require.Equal(t, "33.63", totals.Subtotal.StringFixed(2))
	// 33.63 × 7.5% = 2.52225
	require.Equal(t, "2.52", totals.TaxAmount.StringFixed(2))
	require.Equal(t, "36.15", totals.GrandTotal.StringFixed(2))
}

func TestPriceLineDiscounts(t *testing.T) {
	byAmount := PriceLine(3, d("25"), d("10"), d("5"))
	require.Equal(t, "70.00", byAmount.LineTotal.StringFixed(2))

	byPercent := PriceLine(3, d("25"), d("10"), decimal.Zero)
	require.Equal(t, "7.50", byPercent.Discount.StringFixed(2))
	require.Equal(t, "67.50", byPercent.LineTotal.StringFixed(2))
}

func TestValidateLines(t *testing.T) {
	errs := ValidationErrors{}
	ValidateLines(nil, d("10"), errs)
	require.Contains(t, errs, "items")

	errs = ValidationErrors{}
	ValidateLines([]LineInput{{ProductID: 1, Quantity: 0, UnitPrice: d("-1")}}, d("101"), errs)
	require.Contains(t, errs, "tax_percentage")
	require.Contains(t, errs, "items[0].quantity")
	require.Contains(t, errs, "items[0].unit_price")

	errs = ValidationErrors{}
	ValidateLines([]LineInput{{ProductID: 1, Quantity: 1, UnitPrice: d("10"), DiscountAmount: d("11")}}, decimal.Zero, errs)
	require.Contains(t, errs, "items[0].discount_amount")
}
