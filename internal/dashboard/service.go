// Package dashboard derives the admin summary counters and the recent
// activity feed from the vendor, customer, employee, purchase and approval
// collections. It never writes.
package dashboard

import (
	"context"
	"sort"
	"sync"

	"github.com/safar/go-procurement/internal/metrics"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/pricing"
	"github.com/safar/go-procurement/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultRecentLimit = 5

const (
	SourceVendors         = "vendors"
	SourceCustomers       = "customers"
	SourceEmployees       = "employees"
	SourcePurchases       = "purchases"
	SourceApprovals       = "approvals"
	SourceRecentVendors   = "recent_vendors"
	SourceRecentCustomers = "recent_customers"
)

// Source is the read side the dashboard projects from. Recent* return the
// newest records first.
type Source interface {
	CountVendors(ctx context.Context) (int64, error)
	CountCustomers(ctx context.Context) (int64, error)
	CountEmployees(ctx context.Context) (int64, error)
	ListPurchaseOrders(ctx context.Context, filter store.OrderFilter) ([]models.PurchaseOrder, error)
	RecentVendors(ctx context.Context, limit int) ([]models.Vendor, error)
	RecentCustomers(ctx context.Context, limit int) ([]models.Customer, error)
	CountPendingApprovals(ctx context.Context) (map[models.EntityType]int64, error)
}

type Params struct {
	Source      Source
	Aggregator  *pricing.Aggregator
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	RecentLimit int
}

type Service struct {
	src     Source
	agg     *pricing.Aggregator
	log     *zap.Logger
	metrics *metrics.Metrics
	limit   int
}

func NewService(p Params) *Service {
	s := &Service{src: p.Source, agg: p.Aggregator, log: p.Logger, metrics: p.Metrics, limit: p.RecentLimit}
	if s.agg == nil {
		s.agg = pricing.NewAggregator(pricing.DiscountReject)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.limit <= 0 {
		s.limit = DefaultRecentLimit
	}
	return s
}

var (
	payableStatuses = map[models.OrderStatus]bool{
		models.OrderStatusApproved:  true,
		models.OrderStatusDelivered: true,
		models.OrderStatusInvoiced:  true,
	}
	openRequestStatuses = map[models.OrderStatus]bool{
		models.OrderStatusDraft:    true,
		models.OrderStatusApproved: true,
	}
)

type load struct {
	source string
	fn     func(ctx context.Context) error
}

// ComputeSummary reads every source and derives the summary. When some sources
// fail the summary is still returned, computed with those sources empty, along
// with a *models.PartialAggregationError naming them.
func (s *Service) ComputeSummary(ctx context.Context) (*models.DashboardSummary, error) {
	var (
		vendorCount, customerCount, employeeCount int64
		orders                                    []models.PurchaseOrder
		pending                                   map[models.EntityType]int64
		recentVendors                             []models.Vendor
		recentCustomers                           []models.Customer
	)

	failures := s.run(ctx, []load{
		{SourceVendors, func(ctx context.Context) (err error) {
			vendorCount, err = s.src.CountVendors(ctx)
			return err
		}},
		{SourceCustomers, func(ctx context.Context) (err error) {
			customerCount, err = s.src.CountCustomers(ctx)
			return err
		}},
		{SourceEmployees, func(ctx context.Context) (err error) {
			employeeCount, err = s.src.CountEmployees(ctx)
			return err
		}},
		{SourcePurchases, func(ctx context.Context) (err error) {
			orders, err = s.src.ListPurchaseOrders(ctx, store.OrderFilter{})
			return err
		}},
		{SourceApprovals, func(ctx context.Context) (err error) {
			pending, err = s.src.CountPendingApprovals(ctx)
			return err
		}},
		{SourceRecentVendors, func(ctx context.Context) (err error) {
			recentVendors, err = s.src.RecentVendors(ctx, s.limit)
			return err
		}},
		{SourceRecentCustomers, func(ctx context.Context) (err error) {
			recentCustomers, err = s.src.RecentCustomers(ctx, s.limit)
			return err
		}},
	})

	failed := make(map[string]bool, len(failures))
	for _, f := range failures {
		failed[f.Source] = true
	}

	summary := &models.DashboardSummary{
		TotalPurchaseValue: decimal.Zero,
		PendingPayments:    decimal.Zero,
		PendingApprovals:   make(map[models.EntityType]int64, len(models.EntityTypes)),
	}
	for _, k := range models.EntityTypes {
		summary.PendingApprovals[k] = 0
	}

	if !failed[SourceVendors] {
		summary.VendorCount = vendorCount
	}
	if !failed[SourceCustomers] {
		summary.CustomerCount = customerCount
	}
	if !failed[SourceEmployees] {
		summary.EmployeeCount = employeeCount
	}
	if failed[SourcePurchases] {
		orders = nil
	}
	if !failed[SourceApprovals] {
		for k, n := range pending {
			summary.PendingApprovals[k] = n
		}
	}
	if failed[SourceRecentVendors] {
		recentVendors = nil
	}
	if failed[SourceRecentCustomers] {
		recentCustomers = nil
	}

	summary.PurchaseCount = int64(len(orders))
	for i := range orders {
		o := &orders[i]
		if openRequestStatuses[o.Status] {
			summary.PendingRequests++
		}
		if o.Status == models.OrderStatusCancelled {
			continue
		}
		total := s.grandTotal(o)
		summary.TotalPurchaseValue = summary.TotalPurchaseValue.Add(total)
		if payableStatuses[o.Status] {
			summary.PendingPayments = summary.PendingPayments.Add(total)
		}
	}

	summary.RecentActivities = mergeActivities(recentVendors, newestOrders(orders, s.limit), recentCustomers, s.limit)

	if len(failures) == 0 {
		return summary, nil
	}
	perr := &models.PartialAggregationError{Failures: failures}
	summary.UnavailableSources = perr.Sources()
	return summary, perr
}

// BuildRecentActivities merges the latest vendors, purchase orders and
// customers into one feed, newest first, at most limit entries long.
func (s *Service) BuildRecentActivities(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = s.limit
	}

	var (
		vendors   []models.Vendor
		orders    []models.PurchaseOrder
		customers []models.Customer
	)
	failures := s.run(ctx, []load{
		{SourceRecentVendors, func(ctx context.Context) (err error) {
			vendors, err = s.src.RecentVendors(ctx, limit)
			return err
		}},
		{SourcePurchases, func(ctx context.Context) (err error) {
			orders, err = s.src.ListPurchaseOrders(ctx, store.OrderFilter{Limit: limit})
			return err
		}},
		{SourceRecentCustomers, func(ctx context.Context) (err error) {
			customers, err = s.src.RecentCustomers(ctx, limit)
			return err
		}},
	})

	for _, f := range failures {
		switch f.Source {
		case SourceRecentVendors:
			vendors = nil
		case SourcePurchases:
			orders = nil
		case SourceRecentCustomers:
			customers = nil
		}
	}

	activities := mergeActivities(vendors, newestOrders(orders, limit), customers, limit)
	if len(failures) > 0 {
		return activities, &models.PartialAggregationError{Failures: failures}
	}
	return activities, nil
}

// run executes every load concurrently and returns the failures in the order
// the loads were given.
func (s *Service) run(ctx context.Context, loads []load) []models.SourceFailure {
	errs := make([]error, len(loads))

	var wg sync.WaitGroup
	for i, l := range loads {
		wg.Add(1)
		go func(i int, l load) {
			defer wg.Done()
			errs[i] = l.fn(ctx)
		}(i, l)
	}
	wg.Wait()

	var failures []models.SourceFailure
	for i, err := range errs {
		if err == nil {
			continue
		}
		failures = append(failures, models.SourceFailure{Source: loads[i].source, Err: err})
		s.metrics.ObserveUnavailableSource(loads[i].source)
		s.log.Warn("dashboard source unavailable",
			zap.String("source", loads[i].source),
			zap.Error(err),
		)
	}
	return failures
}

// grandTotal recomputes the order total from its inputs, falling back to the
// stored value when the inputs no longer pass the current pricing rules.
func (s *Service) grandTotal(o *models.PurchaseOrder) decimal.Decimal {
	totals, err := s.agg.ComputeTotals(o)
	if err != nil {
		s.log.Warn("recomputing purchase order total failed, using stored total",
			zap.String("po_number", o.PONumber),
			zap.Error(err),
		)
		return o.GrandTotal
	}
	return totals.GrandTotal
}

func newestOrders(orders []models.PurchaseOrder, limit int) []models.PurchaseOrder {
	sorted := append([]models.PurchaseOrder(nil), orders...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func mergeActivities(vendors []models.Vendor, orders []models.PurchaseOrder, customers []models.Customer, limit int) []models.Activity {
	activities := make([]models.Activity, 0, len(vendors)+len(orders)+len(customers))
	for _, v := range vendors {
		activities = append(activities, models.Activity{
			Kind:      models.ActivityVendorCreated,
			Reference: v.ID.String(),
			Title:     "New vendor: " + v.Name,
			CreatedAt: v.CreatedAt,
		})
	}
	for _, o := range orders {
		activities = append(activities, models.Activity{
			Kind:      models.ActivityPurchaseCreated,
			Reference: o.PONumber,
			Title:     "Purchase order " + o.PONumber + " for " + o.VendorName,
			CreatedAt: o.CreatedAt,
		})
	}
	for _, c := range customers {
		activities = append(activities, models.Activity{
			Kind:      models.ActivityCustomerCreated,
			Reference: c.ID.String(),
			Title:     "New customer: " + c.DisplayName(),
			CreatedAt: c.CreatedAt,
		})
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	if len(activities) > limit {
		activities = activities[:limit]
	}
	return activities
}
