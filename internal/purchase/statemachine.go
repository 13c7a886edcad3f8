package purchase

import (
	"fmt"
	"strings"

	"github.com/safar/go-procurement/internal/models"
)

type Action string

const (
	ActionApprove       Action = "approve"
	ActionMarkDelivered Action = "mark_delivered"
	ActionMarkInvoiced  Action = "mark_invoiced"
	ActionMarkPaid      Action = "mark_paid"
	ActionCancel        Action = "cancel"
	// ActionReject is accepted as a synonym of ActionCancel.
	ActionReject Action = "reject"
)

type transitionKey struct {
	from   models.OrderStatus
	action Action
}

// transitions is the complete table of allowed status changes. Anything not
// listed is an invalid transition.
var transitions = map[transitionKey]models.OrderStatus{
	{models.OrderStatusDraft, ActionApprove}:          models.OrderStatusApproved,
	{models.OrderStatusApproved, ActionMarkDelivered}: models.OrderStatusDelivered,
	{models.OrderStatusDelivered, ActionMarkInvoiced}: models.OrderStatusInvoiced,
	{models.OrderStatusInvoiced, ActionMarkPaid}:      models.OrderStatusPaid,

	{models.OrderStatusDraft, ActionCancel}:     models.OrderStatusCancelled,
	{models.OrderStatusApproved, ActionCancel}:  models.OrderStatusCancelled,
	{models.OrderStatusDelivered, ActionCancel}: models.OrderStatusCancelled,
	{models.OrderStatusInvoiced, ActionCancel}:  models.OrderStatusCancelled,
}

var actionOrder = []Action{ActionApprove, ActionMarkDelivered, ActionMarkInvoiced, ActionMarkPaid, ActionCancel}

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionApprove, ActionMarkDelivered, ActionMarkInvoiced, ActionMarkPaid, ActionCancel:
		return a, nil
	case ActionReject:
		return ActionCancel, nil
	}
	return "", models.NewValidationError("action", fmt.Sprintf("unknown action %q", s))
}

// Next returns the status reached by applying action to from.
func Next(from models.OrderStatus, action Action) (models.OrderStatus, bool) {
	if action == ActionReject {
		action = ActionCancel
	}
	to, ok := transitions[transitionKey{from: from, action: action}]
	return to, ok
}

// AllowedActions lists the actions valid from status, in lifecycle order.
func AllowedActions(status models.OrderStatus) []Action {
	var out []Action
	for _, a := range actionOrder {
		if _, ok := Next(status, a); ok {
			out = append(out, a)
		}
	}
	return out
}
