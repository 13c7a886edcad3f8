//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-procurement/internal/approval"
	"github.com/safar/go-procurement/internal/dashboard"
	"github.com/safar/go-procurement/internal/database"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/purchase"
	"github.com/safar/go-procurement/internal/registration"
	"github.com/safar/go-procurement/internal/store"
	"github.com/safar/go-procurement/internal/store/postgres"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ purchase.Repository     = (*postgres.Store)(nil)
	_ approval.Repository     = (*postgres.Store)(nil)
	_ registration.Repository = (*postgres.Store)(nil)
	_ dashboard.Source        = (*postgres.Store)(nil)
)

func sampleOrder(po string, created time.Time) *models.PurchaseOrder {
	return &models.PurchaseOrder{
		PONumber:        po,
		VendorName:      "Acme Supplies",
		BuyerName:       "R. Iyer",
		OrderDate:       created,
		DeliveryAddress: models.Address{City: "Chennai", PostalCode: "600001"},
		PaymentTerms:    models.PaymentNet30,
		Items: []models.LineItem{
			{
				ProductName:   "Cable",
				Quantity:      decimal.RequireFromString("2.5"),
				UnitOfMeasure: "mtr",
				UnitPrice:     decimal.RequireFromString("19.99"),
				TaxRate:       decimal.NewFromInt(28),
				TotalPrice:    decimal.RequireFromString("49.975"),
				TaxAmount:     decimal.RequireFromString("13.993"),
			},
			{
				ProductName:   "Clamp",
				Quantity:      decimal.NewFromInt(4),
				UnitOfMeasure: "pcs",
				UnitPrice:     decimal.NewFromInt(10),
				TaxRate:       decimal.NewFromInt(18),
				TotalPrice:    decimal.NewFromInt(40),
				TaxAmount:     decimal.RequireFromString("7.2"),
			},
		},
		Subtotal:   decimal.RequireFromString("89.975"),
		TaxTotal:   decimal.RequireFromString("21.193"),
		GrandTotal: decimal.RequireFromString("111.168"),
		Status:     models.OrderStatusDraft,
		CreatedAt:  created,
		UpdatedAt:  created,
		Version:    1,
	}
}

func TestPurchaseOrderRoundTrip(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	created := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.CreatePurchaseOrder(ctx, sampleOrder("PO-PG-1", created)))

	got, err := s.GetPurchaseOrder(ctx, "PO-PG-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Cable", got.Items[0].ProductName)
	assert.True(t, got.Items[0].TaxAmount.Equal(decimal.RequireFromString("13.993")))
	assert.True(t, got.GrandTotal.Equal(decimal.RequireFromString("111.168")))
	assert.Equal(t, "600001", got.DeliveryAddress.PostalCode)
	assert.True(t, got.ExpectedDeliveryDate.IsZero())
	assert.Nil(t, got.ApprovedAt)

	err = s.CreatePurchaseOrder(ctx, sampleOrder("PO-PG-1", created))
	assert.ErrorIs(t, err, models.ErrDuplicate)

	_, err = s.GetPurchaseOrder(ctx, "PO-NOPE")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdatePurchaseOrderOptimisticLock(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	created := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.CreatePurchaseOrder(ctx, sampleOrder("PO-PG-2", created)))

	order, err := s.GetPurchaseOrder(ctx, "PO-PG-2")
	require.NoError(t, err)

	approvedAt := created.Add(time.Minute)
	next := order.Clone()
	next.Status = models.OrderStatusApproved
	next.ApprovedBy = "admin"
	next.ApprovedAt = &approvedAt
	next.Items = next.Items[:1]
	next.Version = 2
	require.NoError(t, s.UpdatePurchaseOrder(ctx, next, 1))

	stale := order.Clone()
	stale.Version = 2
	err = s.UpdatePurchaseOrder(ctx, stale, 1)
	assert.ErrorIs(t, err, database.ErrOptimisticLockFailed)

	got, err := s.GetPurchaseOrder(ctx, "PO-PG-2")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproved, got.Status)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.Items, 1)
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, got.ApprovedAt.Equal(approvedAt))

	missing := sampleOrder("PO-PG-GONE", created)
	err = s.UpdatePurchaseOrder(ctx, missing, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConcurrentTransitionsThroughService(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	svc := purchase.NewService(purchase.Params{Repository: s, MaxConflictRetries: 3})
	require.NoError(t, s.CreatePurchaseOrder(ctx, sampleOrder("PO-PG-RACE", time.Now().UTC())))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(ctx, "PO-PG-RACE", "admin")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, models.ErrInvalidTransition) && !errors.Is(err, database.ErrOptimisticLockFailed) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	got, err := s.GetPurchaseOrder(ctx, "PO-PG-RACE")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func TestListPurchaseOrdersKeyset(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, po := range []string{"PO-K-1", "PO-K-2", "PO-K-3"} {
		o := sampleOrder(po, base.Add(time.Duration(i)*time.Second))
		if i == 1 {
			o.Status = models.OrderStatusApproved
		}
		require.NoError(t, s.CreatePurchaseOrder(ctx, o))
	}

	all, err := s.ListPurchaseOrders(ctx, store.OrderFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "PO-K-3", all[0].PONumber)
	assert.Len(t, all[0].Items, 2)

	rest, err := s.ListPurchaseOrders(ctx, store.OrderFilter{
		After: &store.OrderCursor{CreatedAt: all[1].CreatedAt, PONumber: all[1].PONumber},
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "PO-K-1", rest[0].PONumber)

	approved, err := s.ListPurchaseOrders(ctx, store.OrderFilter{Statuses: []models.OrderStatus{models.OrderStatusApproved}})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "PO-K-2", approved[0].PONumber)
}

func TestApprovalCompareAndSet(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	registry := approval.NewRegistry(approval.Params{Repository: s, GatedKinds: []models.EntityType{models.EntityCustomer}})
	req, err := registry.Submit(ctx, models.EntityCustomer, uuid.NewString(), "Rao Exports")
	require.NoError(t, err)

	_, err = registry.Submit(ctx, models.EntityCustomer, req.EntityID, "again")
	assert.ErrorIs(t, err, models.ErrDuplicate)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = registry.Approve(ctx, req.ID, "admin")
			} else {
				_, err = registry.Reject(ctx, req.ID, "admin", "no")
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, models.ErrAlreadyResolved):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 5, conflicts)

	_, err = registry.Approve(ctx, uuid.New(), "admin")
	assert.ErrorIs(t, err, models.ErrNotFound)

	pending, err := registry.ListPending(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRegistrationAndDashboard(t *testing.T) {
	s, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	registry := approval.NewRegistry(approval.Params{Repository: s, GatedKinds: []models.EntityType{models.EntityCustomer}})
	reg := registration.NewService(registration.Params{Repository: s, Registry: registry})

	for _, name := range []string{"North", "South", "East"} {
		_, _, err := reg.RegisterVendor(ctx, registration.VendorInput{Name: name + " Traders"})
		require.NoError(t, err)
	}
	customer, req, err := reg.RegisterCustomer(ctx, registration.CustomerInput{Kind: "individual", Name: "Kiran"})
	require.NoError(t, err)
	require.NotNil(t, req)

	_, err = reg.IssueReceipt(ctx, customer.ID, decimal.NewFromInt(100), "", "cashier")
	assert.ErrorIs(t, err, models.ErrApprovalRequired)

	page, err := reg.ListVendors(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)

	paid := sampleOrder("PO-D-1", time.Now().UTC())
	paid.Status = models.OrderStatusPaid
	require.NoError(t, s.CreatePurchaseOrder(ctx, paid))
	open := sampleOrder("PO-D-2", time.Now().UTC())
	open.Status = models.OrderStatusApproved
	require.NoError(t, s.CreatePurchaseOrder(ctx, open))

	summary, err := dashboard.NewService(dashboard.Params{Source: s}).ComputeSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.VendorCount)
	assert.Equal(t, int64(1), summary.CustomerCount)
	assert.Equal(t, int64(2), summary.PurchaseCount)
	assert.Equal(t, int64(1), summary.PendingApprovals[models.EntityCustomer])
	assert.True(t, summary.TotalPurchaseValue.Equal(decimal.RequireFromString("222.336")))
	assert.True(t, summary.PendingPayments.Equal(decimal.RequireFromString("111.168")))
}
