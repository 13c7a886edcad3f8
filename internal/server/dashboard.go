package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/go-procurement/internal/models"
	"go.uber.org/zap"
)

type summaryResponse struct {
	VendorCount        int64                       `json:"vendor_count"`
	CustomerCount      int64                       `json:"customer_count"`
	EmployeeCount      int64                       `json:"employee_count"`
	PurchaseCount      int64                       `json:"purchase_count"`
	TotalPurchaseValue string                      `json:"total_purchase_value"`
	PendingPayments    string                      `json:"pending_payments"`
	PendingRequests    int64                       `json:"pending_requests"`
	PendingApprovals   map[models.EntityType]int64 `json:"pending_approvals"`
	RecentActivities   []models.Activity           `json:"recent_activities"`
	UnavailableSources []string                    `json:"unavailable_sources,omitempty"`
}

func newSummaryResponse(s *models.DashboardSummary) summaryResponse {
	resp := summaryResponse{
		VendorCount:        s.VendorCount,
		CustomerCount:      s.CustomerCount,
		EmployeeCount:      s.EmployeeCount,
		PurchaseCount:      s.PurchaseCount,
		TotalPurchaseValue: money(s.TotalPurchaseValue),
		PendingPayments:    money(s.PendingPayments),
		PendingRequests:    s.PendingRequests,
		PendingApprovals:   s.PendingApprovals,
		RecentActivities:   s.RecentActivities,
		UnavailableSources: s.UnavailableSources,
	}
	if resp.PendingApprovals == nil {
		resp.PendingApprovals = map[models.EntityType]int64{}
	}
	if resp.RecentActivities == nil {
		resp.RecentActivities = []models.Activity{}
	}
	return resp
}

// partial reports whether err only signals that some sources were skipped.
func (s *Server) partial(c *gin.Context, err error) bool {
	var perr *models.PartialAggregationError
	if !errors.As(err, &perr) {
		return false
	}
	s.log.Warn("dashboard served partially",
		zap.String("path", c.FullPath()),
		zap.Strings("unavailable_sources", perr.Sources()),
		zap.Error(err),
	)
	return true
}

// GetDashboardSummary answers 200 even when some sources failed; the
// response then lists them under unavailable_sources.
func (s *Server) GetDashboardSummary(c *gin.Context) {
	summary, err := s.dashboard.ComputeSummary(c.Request.Context())
	if err != nil && (summary == nil || !s.partial(c, err)) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newSummaryResponse(summary)})
}

func (s *Server) GetRecentActivities(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			AbortWithError(c, models.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	activities, err := s.dashboard.BuildRecentActivities(c.Request.Context(), limit)
	resp := gin.H{}
	if err != nil {
		var perr *models.PartialAggregationError
		if !s.partial(c, err) || !errors.As(err, &perr) {
			AbortWithError(c, err)
			return
		}
		resp["unavailable_sources"] = perr.Sources()
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	resp["data"] = activities

	c.JSON(http.StatusOK, resp)
}
