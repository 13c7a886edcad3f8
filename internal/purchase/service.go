// Package purchase owns the purchase order lifecycle: draft creation and
// editing, totals, and the guarded status transitions.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/safar/go-procurement/internal/database"
	"github.com/safar/go-procurement/internal/metrics"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/pricing"
	"github.com/safar/go-procurement/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Repository interface {
	CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, poNumber string) (*models.PurchaseOrder, error)
	// UpdatePurchaseOrder stores order only if the stored version still equals
	// expectedVersion, otherwise it returns database.ErrOptimisticLockFailed.
	UpdatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder, expectedVersion int) error
	ListPurchaseOrders(ctx context.Context, filter store.OrderFilter) ([]models.PurchaseOrder, error)
}

type Params struct {
	Repository         Repository
	Aggregator         *pricing.Aggregator
	Logger             *zap.Logger
	Metrics            *metrics.Metrics
	Clock              func() time.Time
	MaxConflictRetries int
}

type Service struct {
	repo       Repository
	agg        *pricing.Aggregator
	log        *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	maxRetries int
}

func NewService(p Params) *Service {
	s := &Service{
		repo:       p.Repository,
		agg:        p.Aggregator,
		log:        p.Logger,
		metrics:    p.Metrics,
		now:        p.Clock,
		maxRetries: p.MaxConflictRetries,
	}
	if s.agg == nil {
		s.agg = pricing.NewAggregator(pricing.DiscountReject)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type CreateDraftRequest struct {
	PONumber             string
	VendorName           string
	BuyerName            string
	Department           string
	OrderDate            time.Time
	ExpectedDeliveryDate time.Time
	DeliveryAddress      models.Address
	PaymentTerms         models.PaymentTerms
	Items                []models.LineItem
	ShippingCharges      decimal.Decimal
	OtherCharges         decimal.Decimal
	DiscountAmount       decimal.Decimal
	Notes                string
	QuotationFile        string
}

// DraftPatch carries optional edits to a draft. Nil fields are left as they
// are; a non-nil Items replaces the whole item list.
type DraftPatch struct {
	VendorName           *string
	BuyerName            *string
	Department           *string
	OrderDate            *time.Time
	ExpectedDeliveryDate *time.Time
	DeliveryAddress      *models.Address
	PaymentTerms         *models.PaymentTerms
	Items                []models.LineItem
	ShippingCharges      *decimal.Decimal
	OtherCharges         *decimal.Decimal
	DiscountAmount       *decimal.Decimal
	Notes                *string
	QuotationFile        *string
}

type TransitionPayload struct {
	Actor       string
	InvoiceFile string
	Reason      string
}

func (s *Service) CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.PurchaseOrder, error) {
	now := s.now().UTC()
	order := &models.PurchaseOrder{
		PONumber:             strings.TrimSpace(req.PONumber),
		VendorName:           strings.TrimSpace(req.VendorName),
		BuyerName:            strings.TrimSpace(req.BuyerName),
		Department:           strings.TrimSpace(req.Department),
		OrderDate:            req.OrderDate,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		DeliveryAddress:      req.DeliveryAddress,
		PaymentTerms:         req.PaymentTerms,
		Items:                req.Items,
		ShippingCharges:      req.ShippingCharges,
		OtherCharges:         req.OtherCharges,
		DiscountAmount:       req.DiscountAmount,
		Status:               models.OrderStatusDraft,
		Notes:                req.Notes,
		QuotationFile:        req.QuotationFile,
		CreatedAt:            now,
		UpdatedAt:            now,
		Version:              1,
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = now
	}

	if err := s.prepare(order); err != nil {
		return nil, err
	}

	if err := s.repo.CreatePurchaseOrder(ctx, order); err != nil {
		return nil, err
	}

	s.log.Info("purchase order drafted",
		zap.String("po_number", order.PONumber),
		zap.String("vendor", order.VendorName),
		zap.Int("items", len(order.Items)),
		zap.String("grand_total", order.GrandTotal.StringFixed(2)),
	)
	return order, nil
}

func (s *Service) UpdateDraft(ctx context.Context, poNumber string, patch DraftPatch) (*models.PurchaseOrder, error) {
	return s.mutate(ctx, poNumber, func(order *models.PurchaseOrder) error {
		if order.Status != models.OrderStatusDraft {
			return &models.ImmutableOrderError{PONumber: order.PONumber, Status: order.Status}
		}
		patch.apply(order)
		return s.prepare(order)
	})
}

func (p DraftPatch) apply(o *models.PurchaseOrder) {
	if p.VendorName != nil {
		o.VendorName = strings.TrimSpace(*p.VendorName)
	}
	if p.BuyerName != nil {
		o.BuyerName = strings.TrimSpace(*p.BuyerName)
	}
	if p.Department != nil {
		o.Department = strings.TrimSpace(*p.Department)
	}
	if p.OrderDate != nil {
		o.OrderDate = *p.OrderDate
	}
	if p.ExpectedDeliveryDate != nil {
		o.ExpectedDeliveryDate = *p.ExpectedDeliveryDate
	}
	if p.DeliveryAddress != nil {
		o.DeliveryAddress = *p.DeliveryAddress
	}
	if p.PaymentTerms != nil {
		o.PaymentTerms = *p.PaymentTerms
	}
	if p.Items != nil {
		o.Items = append([]models.LineItem(nil), p.Items...)
	}
	if p.ShippingCharges != nil {
		o.ShippingCharges = *p.ShippingCharges
	}
	if p.OtherCharges != nil {
		o.OtherCharges = *p.OtherCharges
	}
	if p.DiscountAmount != nil {
		o.DiscountAmount = *p.DiscountAmount
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.QuotationFile != nil {
		o.QuotationFile = *p.QuotationFile
	}
}

// prepare validates order, recalculates its items and writes its totals.
// order is only modified when everything succeeds.
func (s *Service) prepare(order *models.PurchaseOrder) error {
	if err := validateHeader(order); err != nil {
		return err
	}
	if len(order.Items) == 0 {
		return models.NewValidationError("items", "at least one line item is required")
	}
	for i, item := range order.Items {
		if err := pricing.ValidateOrderItem(item); err != nil {
			return pricing.ItemError(i, err)
		}
	}

	items, err := pricing.RecalculateAll(order.Items)
	if err != nil {
		return err
	}

	candidate := *order
	candidate.Items = items
	totals, err := s.agg.ComputeTotals(&candidate)
	if err != nil {
		return err
	}

	order.Items = items
	order.Subtotal = totals.Subtotal
	order.TaxTotal = totals.TaxTotal
	order.GrandTotal = totals.GrandTotal
	return nil
}

func validateHeader(o *models.PurchaseOrder) error {
	if err := models.ValidatePONumber(o.PONumber); err != nil {
		return err
	}
	if o.VendorName == "" {
		return models.NewValidationError("vendorName", "is required")
	}
	if o.BuyerName == "" {
		return models.NewValidationError("buyerName", "is required")
	}
	if !o.ExpectedDeliveryDate.IsZero() && o.ExpectedDeliveryDate.Before(truncateDay(o.OrderDate)) {
		return models.NewValidationError("expectedDeliveryDate", "must not be before the order date")
	}
	if err := o.DeliveryAddress.Validate(); err != nil {
		return err
	}
	if o.PaymentTerms != "" {
		if err := o.PaymentTerms.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ComputeTotals previews the totals of an order without storing anything.
func (s *Service) ComputeTotals(order *models.PurchaseOrder) (pricing.Totals, error) {
	return s.agg.ComputeTotals(order)
}

func (s *Service) Get(ctx context.Context, poNumber string) (*models.PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, poNumber)
}

// List returns a newest-first page of purchase orders.
func (s *Service) List(ctx context.Context, statuses []models.OrderStatus, cursor string, limit int) (*store.CursorPage[models.PurchaseOrder], error) {
	after, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, models.NewValidationError("cursor", err.Error())
	}
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, models.NewValidationError("status", fmt.Sprintf("unknown status %q", st))
		}
	}
	_, limit = store.NormalizePage(1, limit)

	orders, err := s.repo.ListPurchaseOrders(ctx, store.OrderFilter{
		Statuses: statuses,
		After:    after,
		Limit:    limit + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	page := &store.CursorPage[models.PurchaseOrder]{Items: orders, HasMore: hasMore}
	if page.Items == nil {
		page.Items = []models.PurchaseOrder{}
	}
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		page.NextCursor = store.EncodeCursor(store.OrderCursor{CreatedAt: last.CreatedAt, PONumber: last.PONumber})
	}
	return page, nil
}

// Transition applies action to the order. Concurrent transitions on the same
// order have at most one winner; the losers re-read the order and fail the
// precondition check.
func (s *Service) Transition(ctx context.Context, poNumber string, action Action, payload TransitionPayload) (*models.PurchaseOrder, error) {
	if action == ActionReject {
		action = ActionCancel
	}

	var from models.OrderStatus
	order, err := s.mutate(ctx, poNumber, func(o *models.PurchaseOrder) error {
		from = o.Status
		to, ok := Next(o.Status, action)
		if !ok {
			return &models.InvalidTransitionError{PONumber: o.PONumber, From: o.Status, Action: string(action)}
		}
		return s.applyTransition(o, action, to, payload)
	})
	if err != nil {
		s.metrics.ObserveTransition(string(action), transitionResult(err))
		return nil, err
	}

	s.metrics.ObserveTransition(string(action), "applied")
	s.log.Info("purchase order transitioned",
		zap.String("po_number", order.PONumber),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
		zap.String("actor", payload.Actor),
	)
	return order, nil
}

func (s *Service) applyTransition(o *models.PurchaseOrder, action Action, to models.OrderStatus, payload TransitionPayload) error {
	now := s.now().UTC()

	switch action {
	case ActionApprove:
		o.ApprovedBy = payload.Actor
		o.ApprovedAt = &now
	case ActionMarkDelivered:
		o.DeliveredAt = &now
	case ActionMarkInvoiced:
		if ref := strings.TrimSpace(payload.InvoiceFile); ref != "" {
			o.InvoiceFile = ref
		}
		if o.InvoiceFile == "" {
			return models.NewValidationError("invoiceFile", "an invoice must be attached before marking the order invoiced")
		}
		o.InvoicedAt = &now
	case ActionMarkPaid:
		o.PaidAt = &now
	case ActionCancel:
		o.CancelledAt = &now
		o.CancelReason = strings.TrimSpace(payload.Reason)
	}

	o.Status = to
	return nil
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, models.ErrValidation):
		return "rejected"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	}
	return "error"
}

func (s *Service) Approve(ctx context.Context, poNumber, actor string) (*models.PurchaseOrder, error) {
	return s.Transition(ctx, poNumber, ActionApprove, TransitionPayload{Actor: actor})
}

func (s *Service) MarkDelivered(ctx context.Context, poNumber, actor string) (*models.PurchaseOrder, error) {
	return s.Transition(ctx, poNumber, ActionMarkDelivered, TransitionPayload{Actor: actor})
}

func (s *Service) MarkInvoiced(ctx context.Context, poNumber, actor, invoiceFile string) (*models.PurchaseOrder, error) {
	return s.Transition(ctx, poNumber, ActionMarkInvoiced, TransitionPayload{Actor: actor, InvoiceFile: invoiceFile})
}

func (s *Service) MarkPaid(ctx context.Context, poNumber, actor string) (*models.PurchaseOrder, error) {
	return s.Transition(ctx, poNumber, ActionMarkPaid, TransitionPayload{Actor: actor})
}

func (s *Service) Cancel(ctx context.Context, poNumber, actor, reason string) (*models.PurchaseOrder, error) {
	return s.Transition(ctx, poNumber, ActionCancel, TransitionPayload{Actor: actor, Reason: reason})
}

// AttachInvoice records the invoice reference on an order that has not
// reached a terminal status.
func (s *Service) AttachInvoice(ctx context.Context, poNumber, invoiceFile string) (*models.PurchaseOrder, error) {
	ref := strings.TrimSpace(invoiceFile)
	if ref == "" {
		return nil, models.NewValidationError("invoiceFile", "is required")
	}
	return s.mutate(ctx, poNumber, func(o *models.PurchaseOrder) error {
		if o.Status.IsTerminal() {
			return &models.ImmutableOrderError{PONumber: o.PONumber, Status: o.Status}
		}
		o.InvoiceFile = ref
		return nil
	})
}

// mutate is a read-modify-write on one order guarded by its version. fn works
// on a copy; nothing is stored unless fn succeeds and the version still matches.
func (s *Service) mutate(ctx context.Context, poNumber string, fn func(*models.PurchaseOrder) error) (*models.PurchaseOrder, error) {
	for attempt := 0; ; attempt++ {
		current, err := s.repo.GetPurchaseOrder(ctx, poNumber)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.UpdatedAt = s.now().UTC()
		next.Version = current.Version + 1

		err = s.repo.UpdatePurchaseOrder(ctx, next, current.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, database.ErrOptimisticLockFailed) {
			return nil, err
		}
		if attempt >= s.maxRetries {
			return nil, fmt.Errorf("purchase order %s: concurrent update: %w", poNumber, err)
		}

		s.metrics.ObserveConflictRetry()
		s.log.Debug("purchase order version conflict, retrying",
			zap.String("po_number", poNumber),
			zap.Int("attempt", attempt+1),
		)
	}
}
