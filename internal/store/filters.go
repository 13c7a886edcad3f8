package store

import (
	"github.com/safar/go-procurement/internal/models"
)

// OrderFilter selects purchase orders. A zero Limit means no limit.
type OrderFilter struct {
	Statuses []models.OrderStatus
	After    *OrderCursor
	Limit    int
}

func (f OrderFilter) Matches(o *models.PurchaseOrder) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return f.After.Before(o.CreatedAt, o.PONumber)
}

func StatusStrings(statuses []models.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
