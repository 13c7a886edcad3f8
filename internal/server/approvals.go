package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/safar/go-procurement/internal/approval"
	"github.com/safar/go-procurement/internal/models"
)

type resolveRequest struct {
	Reviewer string `json:"reviewer"`
	Reason   string `json:"reason"`
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		AbortWithError(c, models.NewValidationError("id", "must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// ListPendingApprovals returns pending requests oldest first, optionally
// narrowed with ?entity_type=.
func (s *Server) ListPendingApprovals(c *gin.Context) {
	var kind *models.EntityType
	if raw := strings.TrimSpace(c.Query("entity_type")); raw != "" {
		k, err := approval.ParseEntityType(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		kind = &k
	}

	pending, err := s.approvals.ListPending(c.Request.Context(), kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if pending == nil {
		pending = []models.ApprovalRequest{}
	}

	c.JSON(http.StatusOK, gin.H{"data": pending})
}

func (s *Server) GetApprovalRequest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	req, err := s.approvals.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": req})
}

func (s *Server) ApproveRequest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var body resolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	req, err := s.approvals.Approve(c.Request.Context(), id, body.Reviewer)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": req})
}

func (s *Server) RejectRequest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var body resolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	req, err := s.approvals.Reject(c.Request.Context(), id, body.Reviewer, body.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": req})
}
