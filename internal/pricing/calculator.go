// Package pricing holds the pure money math for purchase orders: per-item
// totals and order-level rollups. Nothing here touches storage or clocks.
package pricing

import (
	"errors"
	"strconv"
	"strings"

	"github.com/safar/go-procurement/internal/models"
	"github.com/shopspring/decimal"
)

var maxTaxRate = decimal.NewFromInt(100)

// Recalculate overwrites TotalPrice and TaxAmount from Quantity, UnitPrice and
// TaxRate. Values are not rounded; callers round for presentation only.
func Recalculate(item models.LineItem) (models.LineItem, error) {
	if item.Quantity.IsNegative() {
		return item, models.NewValidationError("quantity", "must not be negative")
	}
	if item.UnitPrice.IsNegative() {
		return item, models.NewValidationError("unitPrice", "must not be negative")
	}
	if item.TaxRate.IsNegative() || item.TaxRate.GreaterThan(maxTaxRate) {
		return item, models.NewValidationError("taxRate", "must be between 0 and 100")
	}

	item.TotalPrice = item.Quantity.Mul(item.UnitPrice)
	// Shift(-2) divides by 100 without the precision cap of Div.
	item.TaxAmount = item.TotalPrice.Mul(item.TaxRate).Shift(-2)
	return item, nil
}

// RecalculateAll recalculates every item, returning a fresh slice. On error the
// input is left untouched.
func RecalculateAll(items []models.LineItem) ([]models.LineItem, error) {
	out := make([]models.LineItem, len(items))
	for i, item := range items {
		updated, err := Recalculate(item)
		if err != nil {
			return nil, ItemError(i, err)
		}
		out[i] = updated
	}
	return out, nil
}

// ValidateOrderItem applies the stricter rules a line item must satisfy to be
// part of a purchase order.
func ValidateOrderItem(item models.LineItem) error {
	if strings.TrimSpace(item.ProductName) == "" {
		return models.NewValidationError("productName", "is required")
	}
	if !item.Quantity.IsPositive() {
		return models.NewValidationError("quantity", "must be greater than zero")
	}
	if item.UnitPrice.IsNegative() {
		return models.NewValidationError("unitPrice", "must not be negative")
	}
	if err := item.UnitOfMeasure.Validate(); err != nil {
		return err
	}
	return models.ValidateHSNCode(item.HSNCode)
}

// ItemError prefixes a validation error field with the item position.
func ItemError(i int, err error) error {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return &models.ValidationError{
			Field:   "items[" + strconv.Itoa(i) + "]." + ve.Field,
			Message: ve.Message,
		}
	}
	return err
}
