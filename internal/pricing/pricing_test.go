package pricing

import (
	"errors"
	"testing"

	"github.com/safar/go-procurement/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(qty, price, rate string) models.LineItem {
	return models.LineItem{
		ProductName:   "Steel rod",
		Quantity:      d(qty),
		UnitOfMeasure: "pcs",
		UnitPrice:     d(price),
		TaxRate:       d(rate),
	}
}

func TestRecalculate(t *testing.T) {
	cases := []struct {
		qty, price, rate string
		total, tax       string
	}{
		{"10", "100", "18", "1000", "180"},
		{"0", "250", "5", "0", "0"},
		{"3", "0", "12", "0", "0"},
		{"2.5", "19.99", "28", "49.975", "13.993"},
		{"1", "0.01", "100", "0.01", "0.01"},
		{"7", "3.333", "0.25", "23.331", "0.0583275"},
	}

	for _, tc := range cases {
		got, err := Recalculate(item(tc.qty, tc.price, tc.rate))
		require.NoError(t, err)
		assert.True(t, got.TotalPrice.Equal(d(tc.total)), "total for %s x %s: got %s", tc.qty, tc.price, got.TotalPrice)
		assert.True(t, got.TaxAmount.Equal(d(tc.tax)), "tax for %s x %s @ %s: got %s", tc.qty, tc.price, tc.rate, got.TaxAmount)

		// total = qty * price and tax = total * rate / 100
		assert.True(t, got.TotalPrice.Equal(got.Quantity.Mul(got.UnitPrice)))
		assert.True(t, got.TaxAmount.Mul(decimal.NewFromInt(100)).Equal(got.TotalPrice.Mul(got.TaxRate)))
	}
}

func TestRecalculateOverwritesStaleValues(t *testing.T) {
	in := item("2", "50", "10")
	in.TotalPrice = d("999")
	in.TaxAmount = d("999")

	got, err := Recalculate(in)
	require.NoError(t, err)
	assert.Equal(t, "100", got.TotalPrice.String())
	assert.Equal(t, "10", got.TaxAmount.String())
}

func TestRecalculateRejectsInvalidInput(t *testing.T) {
	cases := map[string]models.LineItem{
		"quantity":  item("-1", "10", "5"),
		"unitPrice": item("1", "-10", "5"),
		"taxRate":   item("1", "10", "100.01"),
	}

	for field, in := range cases {
		_, err := Recalculate(in)
		require.Error(t, err, field)
		assert.True(t, errors.Is(err, models.ErrValidation))

		var ve *models.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, field, ve.Field)
	}

	_, err := Recalculate(item("1", "10", "-1"))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestValidateOrderItem(t *testing.T) {
	ok := item("1", "10", "5")
	ok.HSNCode = "72142090"
	assert.NoError(t, ValidateOrderItem(ok))

	zero := item("0", "10", "5")
	assert.ErrorIs(t, ValidateOrderItem(zero), models.ErrValidation)

	unnamed := item("1", "10", "5")
	unnamed.ProductName = "  "
	assert.ErrorIs(t, ValidateOrderItem(unnamed), models.ErrValidation)

	badUnit := item("1", "10", "5")
	badUnit.UnitOfMeasure = "furlong"
	assert.ErrorIs(t, ValidateOrderItem(badUnit), models.ErrValidation)

	badHSN := item("1", "10", "5")
	badHSN.HSNCode = "12AB"
	assert.ErrorIs(t, ValidateOrderItem(badHSN), models.ErrValidation)
}

func TestComputeTotalsScenario(t *testing.T) {
	order := &models.PurchaseOrder{
		Items:           []models.LineItem{item("10", "100", "18")},
		ShippingCharges: d("50"),
	}

	totals, err := NewAggregator(DiscountReject).ComputeTotals(order)
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.Equal(d("1000")))
	assert.True(t, totals.TaxTotal.Equal(d("180")))
	assert.True(t, totals.GrandTotal.Equal(d("1230")))
}

func TestComputeTotalsSumsAllAdjustments(t *testing.T) {
	order := &models.PurchaseOrder{
		Items: []models.LineItem{
			item("2", "150.50", "18"),
			item("4", "12.25", "5"),
			item("1", "999.99", "0"),
		},
		ShippingCharges: d("75"),
		OtherCharges:    d("20.10"),
		DiscountAmount:  d("100"),
	}

	totals, err := NewAggregator(DiscountReject).ComputeTotals(order)
	require.NoError(t, err)

	var sub, tax decimal.Decimal
	for _, it := range order.Items {
		c, err := Recalculate(it)
		require.NoError(t, err)
		sub = sub.Add(c.TotalPrice)
		tax = tax.Add(c.TaxAmount)
	}
	assert.True(t, totals.Subtotal.Equal(sub))
	assert.True(t, totals.TaxTotal.Equal(tax))
	want := sub.Add(tax).Add(order.ShippingCharges).Add(order.OtherCharges).Sub(order.DiscountAmount)
	assert.True(t, totals.GrandTotal.Equal(want), "grand total %s, want %s", totals.GrandTotal, want)
	assert.Equal(t, "1401.72", totals.Rounded().GrandTotal.StringFixed(2))
}

func TestComputeTotalsIsIdempotent(t *testing.T) {
	order := &models.PurchaseOrder{
		Items:           []models.LineItem{item("3", "33.333", "18"), item("1", "0.1", "12")},
		ShippingCharges: d("0.3"),
		DiscountAmount:  d("0.2"),
	}
	agg := NewAggregator(DiscountReject)

	first, err := agg.ComputeTotals(order)
	require.NoError(t, err)
	second, err := agg.ComputeTotals(order)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.GrandTotal.String(), second.GrandTotal.String())
}

func TestComputeTotalsDiscountPolicies(t *testing.T) {
	order := &models.PurchaseOrder{
		Items:          []models.LineItem{item("1", "100", "0")},
		DiscountAmount: d("150"),
	}

	_, err := NewAggregator(DiscountReject).ComputeTotals(order)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "discountAmount", ve.Field)

	clamped, err := NewAggregator(DiscountClamp).ComputeTotals(order)
	require.NoError(t, err)
	assert.True(t, clamped.GrandTotal.IsZero())

	allowed, err := NewAggregator(DiscountAllow).ComputeTotals(order)
	require.NoError(t, err)
	assert.True(t, allowed.GrandTotal.Equal(d("-50")))
}

func TestComputeTotalsRejectsNegativeCharges(t *testing.T) {
	order := &models.PurchaseOrder{
		Items:           []models.LineItem{item("1", "100", "0")},
		ShippingCharges: d("-1"),
	}
	_, err := NewAggregator(DiscountReject).ComputeTotals(order)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestComputeTotalsReportsItemPosition(t *testing.T) {
	order := &models.PurchaseOrder{
		Items: []models.LineItem{item("1", "100", "0"), item("-2", "1", "0")},
	}
	_, err := NewAggregator(DiscountReject).ComputeTotals(order)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items[1].quantity", ve.Field)
}

func TestParseDiscountPolicy(t *testing.T) {
	p, err := ParseDiscountPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DiscountReject, p)

	p, err = ParseDiscountPolicy(" Clamp ")
	require.NoError(t, err)
	assert.Equal(t, DiscountClamp, p)

	_, err = ParseDiscountPolicy("ignore")
	assert.Error(t, err)
}
