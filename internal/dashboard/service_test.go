package dashboard_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-procurement/internal/dashboard"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/store"
	"github.com/safar/go-procurement/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func order(po string, status models.OrderStatus, qty, price, rate int64, shipping int64, created time.Time) *models.PurchaseOrder {
	o := &models.PurchaseOrder{
		PONumber:   po,
		VendorName: "Acme",
		Status:     status,
		Items: []models.LineItem{{
			ProductName:   "Item",
			Quantity:      decimal.NewFromInt(qty),
			UnitOfMeasure: "pcs",
			UnitPrice:     decimal.NewFromInt(price),
			TaxRate:       decimal.NewFromInt(rate),
		}},
		ShippingCharges: decimal.NewFromInt(shipping),
		CreatedAt:       created,
		Version:         1,
	}
	return o
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateVendor(ctx, &models.Vendor{
			ID:        uuid.New(),
			Name:      fmt.Sprintf("Vendor %d", i),
			CreatedAt: t0.Add(time.Duration(i) * time.Hour),
		}, nil))
	}

	// 10 x 100 @ 18% + 50 shipping = 1230
	require.NoError(t, repo.CreatePurchaseOrder(ctx, order("PO-A", models.OrderStatusApproved, 10, 100, 18, 50, t0.Add(30*time.Minute))))
	// 5 x 100 @ 0% = 500
	require.NoError(t, repo.CreatePurchaseOrder(ctx, order("PO-B", models.OrderStatusPaid, 5, 100, 0, 0, t0.Add(90*time.Minute))))
	return repo
}

func TestComputeSummary(t *testing.T) {
	repo := seed(t)
	svc := dashboard.NewService(dashboard.Params{Source: repo})

	summary, err := svc.ComputeSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.VendorCount)
	assert.Equal(t, int64(2), summary.PurchaseCount)
	assert.True(t, summary.TotalPurchaseValue.Equal(decimal.NewFromInt(1730)), "total %s", summary.TotalPurchaseValue)
	assert.True(t, summary.PendingPayments.Equal(decimal.NewFromInt(1230)), "pending %s", summary.PendingPayments)
	assert.Equal(t, int64(1), summary.PendingRequests)
	assert.Empty(t, summary.UnavailableSources)

	for _, k := range models.EntityTypes {
		n, ok := summary.PendingApprovals[k]
		assert.True(t, ok, "kind %s present", k)
		assert.Zero(t, n)
	}
}

func TestComputeSummaryIgnoresStaleStoredTotals(t *testing.T) {
	repo := memory.New()
	o := order("PO-S", models.OrderStatusDelivered, 2, 100, 0, 0, t0)
	o.GrandTotal = decimal.NewFromInt(999)
	require.NoError(t, repo.CreatePurchaseOrder(context.Background(), o))

	summary, err := dashboard.NewService(dashboard.Params{Source: repo}).ComputeSummary(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.TotalPurchaseValue.Equal(decimal.NewFromInt(200)))
	assert.True(t, summary.PendingPayments.Equal(decimal.NewFromInt(200)))
}

func TestComputeSummaryExcludesCancelled(t *testing.T) {
	repo := memory.New()
	require.NoError(t, repo.CreatePurchaseOrder(context.Background(), order("PO-X", models.OrderStatusCancelled, 1, 100, 0, 0, t0)))
	require.NoError(t, repo.CreatePurchaseOrder(context.Background(), order("PO-D", models.OrderStatusDraft, 1, 40, 0, 0, t0)))

	summary, err := dashboard.NewService(dashboard.Params{Source: repo}).ComputeSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.PurchaseCount)
	assert.True(t, summary.TotalPurchaseValue.Equal(decimal.NewFromInt(40)))
	assert.True(t, summary.PendingPayments.IsZero())
	assert.Equal(t, int64(1), summary.PendingRequests)
}

func TestPendingApprovalCounts(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	for i, kind := range []models.EntityType{models.EntityCustomer, models.EntityCustomer, models.EntityVendor} {
		require.NoError(t, repo.CreateApprovalRequest(ctx, &models.ApprovalRequest{
			ID:             uuid.New(),
			EntityType:     kind,
			EntityID:       fmt.Sprint(i),
			ApprovalStatus: models.ApprovalPending,
			CreatedAt:      t0,
		}))
	}

	summary, err := dashboard.NewService(dashboard.Params{Source: repo}).ComputeSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.PendingApprovals[models.EntityCustomer])
	assert.Equal(t, int64(1), summary.PendingApprovals[models.EntityVendor])
	assert.Equal(t, int64(0), summary.PendingApprovals[models.EntityEmployee])
}

// flakySource fails the named calls and delegates the rest.
type flakySource struct {
	dashboard.Source
	failCounts    bool
	failPurchases bool
}

var errDown = errors.New("connection refused")

func (f flakySource) CountCustomers(ctx context.Context) (int64, error) {
	if f.failCounts {
		return 0, errDown
	}
	return f.Source.CountCustomers(ctx)
}

func (f flakySource) ListPurchaseOrders(ctx context.Context, filter store.OrderFilter) ([]models.PurchaseOrder, error) {
	if f.failPurchases {
		return nil, errDown
	}
	return f.Source.ListPurchaseOrders(ctx, filter)
}

func TestComputeSummaryPartialFailure(t *testing.T) {
	repo := seed(t)
	svc := dashboard.NewService(dashboard.Params{Source: flakySource{Source: repo, failPurchases: true, failCounts: true}})

	summary, err := svc.ComputeSummary(context.Background())
	require.NotNil(t, summary)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPartialAggregation)
	assert.ErrorIs(t, err, errDown)

	var perr *models.PartialAggregationError
	require.ErrorAs(t, err, &perr)
	assert.ElementsMatch(t, []string{dashboard.SourceCustomers, dashboard.SourcePurchases}, perr.Sources())
	assert.ElementsMatch(t, perr.Sources(), summary.UnavailableSources)

	assert.Equal(t, int64(3), summary.VendorCount)
	assert.Zero(t, summary.PurchaseCount)
	assert.True(t, summary.TotalPurchaseValue.IsZero())

	for _, a := range summary.RecentActivities {
		assert.NotEqual(t, models.ActivityPurchaseCreated, a.Kind)
	}
}

func TestBuildRecentActivities(t *testing.T) {
	repo := seed(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateCustomer(ctx, &models.Customer{
		ID:        uuid.New(),
		Kind:      models.CustomerIndividual,
		Name:      "Latest Customer",
		CreatedAt: t0.Add(5 * time.Hour),
	}, nil))

	svc := dashboard.NewService(dashboard.Params{Source: repo})
	feed, err := svc.BuildRecentActivities(ctx, 4)
	require.NoError(t, err)
	require.Len(t, feed, 4)

	assert.Equal(t, models.ActivityCustomerCreated, feed[0].Kind)
	assert.Equal(t, models.ActivityVendorCreated, feed[1].Kind)
	assert.Equal(t, models.ActivityPurchaseCreated, feed[2].Kind)
	assert.Equal(t, "PO-B", feed[2].Reference)
	assert.Equal(t, models.ActivityVendorCreated, feed[3].Kind)

	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i].CreatedAt.After(feed[i-1].CreatedAt))
	}
}

func TestBuildRecentActivitiesDefaultLimit(t *testing.T) {
	repo := seed(t)
	svc := dashboard.NewService(dashboard.Params{Source: repo, RecentLimit: 2})

	feed, err := svc.BuildRecentActivities(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, feed, 2)
}

func TestBuildRecentActivitiesPartial(t *testing.T) {
	repo := seed(t)
	svc := dashboard.NewService(dashboard.Params{Source: flakySource{Source: repo, failPurchases: true}})

	feed, err := svc.BuildRecentActivities(context.Background(), 10)
	assert.ErrorIs(t, err, models.ErrPartialAggregation)
	assert.Len(t, feed, 3)
}
