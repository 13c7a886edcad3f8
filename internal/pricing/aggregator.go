package pricing

import (
	"fmt"
	"strings"

	"github.com/safar/go-procurement/internal/models"
	"github.com/shopspring/decimal"
)

// DiscountPolicy decides what happens when the discount exceeds everything it
// is subtracted from.
type DiscountPolicy string

const (
	DiscountReject DiscountPolicy = "reject"
	DiscountClamp  DiscountPolicy = "clamp"
	DiscountAllow  DiscountPolicy = "allow"
)

func ParseDiscountPolicy(s string) (DiscountPolicy, error) {
	switch p := DiscountPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DiscountReject, DiscountClamp, DiscountAllow:
		return p, nil
	case "":
		return DiscountReject, nil
	}
	return "", fmt.Errorf("unknown discount policy %q", s)
}

type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Rounded returns the totals rounded to two decimal places for display.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:   t.Subtotal.Round(2),
		TaxTotal:   t.TaxTotal.Round(2),
		GrandTotal: t.GrandTotal.Round(2),
	}
}

type Aggregator struct {
	policy DiscountPolicy
}

func NewAggregator(policy DiscountPolicy) *Aggregator {
	if policy == "" {
		policy = DiscountReject
	}
	return &Aggregator{policy: policy}
}

func (a *Aggregator) Policy() DiscountPolicy { return a.policy }

// ComputeTotals derives subtotal, tax total and grand total for order. Item
// totals are recomputed from their inputs, so stale stored values never leak
// into the result. The order is not modified.
func (a *Aggregator) ComputeTotals(order *models.PurchaseOrder) (Totals, error) {
	if order == nil {
		return Totals{}, models.NewValidationError("order", "is required")
	}
	if err := nonNegative("shippingCharges", order.ShippingCharges); err != nil {
		return Totals{}, err
	}
	if err := nonNegative("otherCharges", order.OtherCharges); err != nil {
		return Totals{}, err
	}
	if err := nonNegative("discountAmount", order.DiscountAmount); err != nil {
		return Totals{}, err
	}

	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	for i, item := range order.Items {
		computed, err := Recalculate(item)
		if err != nil {
			return Totals{}, ItemError(i, err)
		}
		subtotal = subtotal.Add(computed.TotalPrice)
		taxTotal = taxTotal.Add(computed.TaxAmount)
	}

	grand := subtotal.
		Add(taxTotal).
		Add(order.ShippingCharges).
		Add(order.OtherCharges).
		Sub(order.DiscountAmount)

	if grand.IsNegative() {
		switch a.policy {
		case DiscountClamp:
			grand = decimal.Zero
		case DiscountAllow:
		default:
			return Totals{}, models.NewValidationError("discountAmount",
				fmt.Sprintf("discount %s exceeds order value %s", order.DiscountAmount.StringFixed(2), grand.Add(order.DiscountAmount).StringFixed(2)))
		}
	}

	return Totals{Subtotal: subtotal, TaxTotal: taxTotal, GrandTotal: grand}, nil
}

func nonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return models.NewValidationError(field, "must not be negative")
	}
	return nil
}
