package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/store"
)

func (s *Store) CreateVendor(ctx context.Context, v *models.Vendor, req *models.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req != nil {
		if err := s.insertApprovalLocked(req); err != nil {
			return err
		}
	}
	s.vendors[v.ID] = *v
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer, req *models.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req != nil {
		if err := s.insertApprovalLocked(req); err != nil {
			return err
		}
	}
	s.customers[c.ID] = *c
	return nil
}

func (s *Store) CreateEmployee(ctx context.Context, e *models.Employee, req *models.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req != nil {
		if err := s.insertApprovalLocked(req); err != nil {
			return err
		}
	}
	s.employees[e.ID] = *e
	return nil
}

func (s *Store) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vendors[id]
	if !ok {
		return nil, models.NewNotFoundError("vendor", id.String())
	}
	return &v, nil
}

func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, models.NewNotFoundError("customer", id.String())
	}
	return &c, nil
}

func (s *Store) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return nil, models.NewNotFoundError("employee", id.String())
	}
	return &e, nil
}

// newestFirst collects map values sorted by creation time, newest first.
func newestFirst[T any](m map[uuid.UUID]T, created func(T) time.Time, id func(T) uuid.UUID) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := created(out[i]), created(out[j])
		if ci.Equal(cj) {
			return id(out[i]).String() > id(out[j]).String()
		}
		return ci.After(cj)
	})
	return out
}

func paginate[T any](all []T, page, pageSize int) *store.OffsetPage[T] {
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return store.NewOffsetPage(all[start:end], int64(len(all)), page, pageSize)
}

func head[T any](all []T, limit int) []T {
	if limit > 0 && len(all) > limit {
		return all[:limit]
	}
	return all
}

func (s *Store) sortedVendors() []models.Vendor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.vendors,
		func(v models.Vendor) time.Time { return v.CreatedAt },
		func(v models.Vendor) uuid.UUID { return v.ID })
}

func (s *Store) sortedCustomers() []models.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.customers,
		func(c models.Customer) time.Time { return c.CreatedAt },
		func(c models.Customer) uuid.UUID { return c.ID })
}

func (s *Store) sortedEmployees() []models.Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.employees,
		func(e models.Employee) time.Time { return e.CreatedAt },
		func(e models.Employee) uuid.UUID { return e.ID })
}

func (s *Store) ListVendors(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Vendor], error) {
	return paginate(s.sortedVendors(), page, pageSize), nil
}

func (s *Store) ListCustomers(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Customer], error) {
	return paginate(s.sortedCustomers(), page, pageSize), nil
}

func (s *Store) ListEmployees(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Employee], error) {
	return paginate(s.sortedEmployees(), page, pageSize), nil
}

func (s *Store) RecentVendors(ctx context.Context, limit int) ([]models.Vendor, error) {
	return head(s.sortedVendors(), limit), nil
}

func (s *Store) RecentCustomers(ctx context.Context, limit int) ([]models.Customer, error) {
	return head(s.sortedCustomers(), limit), nil
}

func (s *Store) CountVendors(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.vendors)), nil
}

func (s *Store) CountCustomers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.customers)), nil
}

func (s *Store) CountEmployees(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.employees)), nil
}

func (s *Store) CreateReceipt(ctx context.Context, r *models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[r.CustomerID] = append(s.receipts[r.CustomerID], *r)
	return nil
}

func (s *Store) ListReceipts(ctx context.Context, customerID uuid.UUID) ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.Receipt(nil), s.receipts[customerID]...)
	if out == nil {
		out = []models.Receipt{}
	}
	return out, nil
}
