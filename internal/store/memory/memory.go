// Package memory is an in-process store implementing the same persistence
// contracts as the Postgres store. Each record carries its own lock so
// compare-and-set updates on different records never contend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/safar/go-procurement/internal/database"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/store"
)

type orderRecord struct {
	mu    sync.Mutex
	order *models.PurchaseOrder
}

type approvalRecord struct {
	mu  sync.Mutex
	req models.ApprovalRequest
}

type entityKey struct {
	kind models.EntityType
	id   string
}

type Store struct {
	mu sync.RWMutex

	orders    map[string]*orderRecord
	approvals map[uuid.UUID]*approvalRecord
	byEntity  map[entityKey]uuid.UUID
	vendors   map[uuid.UUID]models.Vendor
	customers map[uuid.UUID]models.Customer
	employees map[uuid.UUID]models.Employee
	receipts  map[uuid.UUID][]models.Receipt
}

func New() *Store {
	return &Store{
		orders:    make(map[string]*orderRecord),
		approvals: make(map[uuid.UUID]*approvalRecord),
		byEntity:  make(map[entityKey]uuid.UUID),
		vendors:   make(map[uuid.UUID]models.Vendor),
		customers: make(map[uuid.UUID]models.Customer),
		employees: make(map[uuid.UUID]models.Employee),
		receipts:  make(map[uuid.UUID][]models.Receipt),
	}
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.PONumber]; ok {
		return fmt.Errorf("%w: purchase order %s", models.ErrDuplicate, order.PONumber)
	}
	s.orders[order.PONumber] = &orderRecord{order: order.Clone()}
	return nil
}

func (s *Store) orderRecord(poNumber string) (*orderRecord, error) {
	s.mu.RLock()
	rec, ok := s.orders[poNumber]
	s.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFoundError("purchase order", poNumber)
	}
	return rec, nil
}

func (s *Store) GetPurchaseOrder(ctx context.Context, poNumber string) (*models.PurchaseOrder, error) {
	rec, err := s.orderRecord(poNumber)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.order.Clone(), nil
}

func (s *Store) UpdatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder, expectedVersion int) error {
	rec, err := s.orderRecord(order.PONumber)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.order.Version != expectedVersion {
		return database.ErrOptimisticLockFailed
	}
	rec.order = order.Clone()
	return nil
}

// ListPurchaseOrders returns matching orders newest first.
func (s *Store) ListPurchaseOrders(ctx context.Context, filter store.OrderFilter) ([]models.PurchaseOrder, error) {
	s.mu.RLock()
	records := make([]*orderRecord, 0, len(s.orders))
	for _, rec := range s.orders {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	var out []models.PurchaseOrder
	for _, rec := range records {
		rec.mu.Lock()
		o := rec.order.Clone()
		rec.mu.Unlock()
		if filter.Matches(o) {
			out = append(out, *o)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].PONumber > out[j].PONumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) CreateApprovalRequest(ctx context.Context, req *models.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertApprovalLocked(req)
}

func (s *Store) insertApprovalLocked(req *models.ApprovalRequest) error {
	key := entityKey{kind: req.EntityType, id: req.EntityID}
	if _, ok := s.byEntity[key]; ok {
		return fmt.Errorf("%w: approval request for %s %s", models.ErrDuplicate, req.EntityType, req.EntityID)
	}
	s.approvals[req.ID] = &approvalRecord{req: *req}
	s.byEntity[key] = req.ID
	return nil
}

func (s *Store) approvalRecord(id uuid.UUID) (*approvalRecord, error) {
	s.mu.RLock()
	rec, ok := s.approvals[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFoundError("approval request", id.String())
	}
	return rec, nil
}

func (s *Store) GetApprovalRequest(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	rec, err := s.approvalRecord(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	req := rec.req
	return &req, nil
}

func (s *Store) FindApprovalRequest(ctx context.Context, kind models.EntityType, entityID string) (*models.ApprovalRequest, error) {
	s.mu.RLock()
	id, ok := s.byEntity[entityKey{kind: kind, id: entityID}]
	s.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFoundError("approval request for "+string(kind), entityID)
	}
	return s.GetApprovalRequest(ctx, id)
}

func (s *Store) ListPendingApprovals(ctx context.Context, kind *models.EntityType) ([]models.ApprovalRequest, error) {
	s.mu.RLock()
	records := make([]*approvalRecord, 0, len(s.approvals))
	for _, rec := range s.approvals {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	var out []models.ApprovalRequest
	for _, rec := range records {
		rec.mu.Lock()
		req := rec.req
		rec.mu.Unlock()
		if req.ApprovalStatus != models.ApprovalPending {
			continue
		}
		if kind != nil && req.EntityType != *kind {
			continue
		}
		out = append(out, req)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ResolveApprovalRequest(ctx context.Context, id uuid.UUID, res models.Resolution) (*models.ApprovalRequest, error) {
	rec, err := s.approvalRecord(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.req.ApprovalStatus != models.ApprovalPending {
		return nil, &models.AlreadyResolvedError{RequestID: id.String(), Status: rec.req.ApprovalStatus}
	}

	at := res.ReviewedAt
	rec.req.ApprovalStatus = res.Status
	rec.req.ReviewedBy = res.Reviewer
	rec.req.ReviewedAt = &at
	rec.req.RejectionReason = res.Reason

	req := rec.req
	return &req, nil
}

func (s *Store) CountPendingApprovals(ctx context.Context) (map[models.EntityType]int64, error) {
	pending, err := s.ListPendingApprovals(ctx, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.EntityType]int64)
	for _, req := range pending {
		counts[req.EntityType]++
	}
	return counts, nil
}
