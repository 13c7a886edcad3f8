// Package approval is the review queue for newly registered entities. Each
// gated entity has exactly one request, and a request is resolved once.
package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-procurement/internal/metrics"
	"github.com/safar/go-procurement/internal/models"
	"go.uber.org/zap"
)

type Repository interface {
	// CreateApprovalRequest fails with models.ErrDuplicate when the entity
	// already has a request.
	CreateApprovalRequest(ctx context.Context, req *models.ApprovalRequest) error
	GetApprovalRequest(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error)
	FindApprovalRequest(ctx context.Context, kind models.EntityType, entityID string) (*models.ApprovalRequest, error)
	// ListPendingApprovals returns pending requests oldest first; a nil kind
	// matches every kind.
	ListPendingApprovals(ctx context.Context, kind *models.EntityType) ([]models.ApprovalRequest, error)
	// ResolveApprovalRequest moves a pending request to res.Status. It is a
	// compare-and-set on the pending status: if the request is no longer
	// pending it returns *models.AlreadyResolvedError and changes nothing.
	ResolveApprovalRequest(ctx context.Context, id uuid.UUID, res models.Resolution) (*models.ApprovalRequest, error)
}

type Params struct {
	Repository Repository
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Clock      func() time.Time
	GatedKinds []models.EntityType
}

type Registry struct {
	repo    Repository
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	gated   map[models.EntityType]bool
}

func NewRegistry(p Params) *Registry {
	r := &Registry{
		repo:    p.Repository,
		log:     p.Logger,
		metrics: p.Metrics,
		now:     p.Clock,
		gated:   make(map[models.EntityType]bool, len(p.GatedKinds)),
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	for _, k := range p.GatedKinds {
		r.gated[k] = true
	}
	return r
}

// ParseGatedKinds converts configured kind names, rejecting unknown ones.
func ParseGatedKinds(names []string) ([]models.EntityType, error) {
	kinds := make([]models.EntityType, 0, len(names))
	for _, n := range names {
		k := models.EntityType(strings.ToLower(strings.TrimSpace(n)))
		if !k.IsValid() {
			return nil, fmt.Errorf("unknown entity type %q", n)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func ParseEntityType(s string) (models.EntityType, error) {
	k := models.EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", models.NewValidationError("entityType", fmt.Sprintf("unknown entity type %q", s))
	}
	return k, nil
}

// IsGated reports whether new entities of kind wait for admin approval.
func (r *Registry) IsGated(kind models.EntityType) bool {
	return r.gated[kind]
}

// NewRequest builds the pending request for an entity without storing it, so
// callers can persist it in the same write as the entity.
func (r *Registry) NewRequest(kind models.EntityType, entityID, summary string) (*models.ApprovalRequest, error) {
	if !kind.IsValid() {
		return nil, models.NewValidationError("entityType", fmt.Sprintf("unknown entity type %q", kind))
	}
	if strings.TrimSpace(entityID) == "" {
		return nil, models.NewValidationError("entityId", "is required")
	}
	return &models.ApprovalRequest{
		ID:             uuid.New(),
		EntityType:     kind,
		EntityID:       entityID,
		Summary:        summary,
		ApprovalStatus: models.ApprovalPending,
		CreatedAt:      r.now().UTC(),
	}, nil
}

// Submit queues a standalone approval request for an existing entity.
func (r *Registry) Submit(ctx context.Context, kind models.EntityType, entityID, summary string) (*models.ApprovalRequest, error) {
	req, err := r.NewRequest(kind, entityID, summary)
	if err != nil {
		return nil, err
	}
	if err := r.repo.CreateApprovalRequest(ctx, req); err != nil {
		return nil, err
	}

	r.log.Info("approval request submitted",
		zap.String("request_id", req.ID.String()),
		zap.String("entity_type", string(kind)),
		zap.String("entity_id", entityID),
	)
	return req, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	return r.repo.GetApprovalRequest(ctx, id)
}

func (r *Registry) ListPending(ctx context.Context, kind *models.EntityType) ([]models.ApprovalRequest, error) {
	if kind != nil && !kind.IsValid() {
		return nil, models.NewValidationError("entityType", fmt.Sprintf("unknown entity type %q", *kind))
	}
	pending, err := r.repo.ListPendingApprovals(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	if pending == nil {
		pending = []models.ApprovalRequest{}
	}
	return pending, nil
}

func (r *Registry) Approve(ctx context.Context, id uuid.UUID, reviewer string) (*models.ApprovalRequest, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return nil, models.NewValidationError("reviewer", "is required")
	}
	return r.resolve(ctx, id, models.Resolution{
		Status:   models.ApprovalApproved,
		Reviewer: reviewer,
	})
}

func (r *Registry) Reject(ctx context.Context, id uuid.UUID, reviewer, reason string) (*models.ApprovalRequest, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return nil, models.NewValidationError("reviewer", "is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("reason", "a rejection reason is required")
	}
	return r.resolve(ctx, id, models.Resolution{
		Status:   models.ApprovalRejected,
		Reviewer: reviewer,
		Reason:   reason,
	})
}

func (r *Registry) resolve(ctx context.Context, id uuid.UUID, res models.Resolution) (*models.ApprovalRequest, error) {
	res.ReviewedAt = r.now().UTC()

	req, err := r.repo.ResolveApprovalRequest(ctx, id, res)
	if err != nil {
		r.log.Debug("approval resolution refused",
			zap.String("request_id", id.String()),
			zap.String("outcome", string(res.Status)),
			zap.Error(err),
		)
		return nil, err
	}

	r.metrics.ObserveApproval(string(req.EntityType), string(req.ApprovalStatus))
	r.log.Info("approval request resolved",
		zap.String("request_id", req.ID.String()),
		zap.String("entity_type", string(req.EntityType)),
		zap.String("entity_id", req.EntityID),
		zap.String("status", string(req.ApprovalStatus)),
		zap.String("reviewer", req.ReviewedBy),
	)
	return req, nil
}

// StatusFor returns the approval state of an entity. Entities of kinds that
// are not gated count as approved.
func (r *Registry) StatusFor(ctx context.Context, kind models.EntityType, entityID string) (models.ApprovalStatus, error) {
	if !r.IsGated(kind) {
		return models.ApprovalApproved, nil
	}
	req, err := r.repo.FindApprovalRequest(ctx, kind, entityID)
	if err != nil {
		return "", err
	}
	return req.ApprovalStatus, nil
}

// RequireApproved fails with models.ErrApprovalRequired unless the entity is
// usable for downstream operations.
func (r *Registry) RequireApproved(ctx context.Context, kind models.EntityType, entityID string) error {
	status, err := r.StatusFor(ctx, kind, entityID)
	if err != nil {
		return err
	}
	if status != models.ApprovalApproved {
		return fmt.Errorf("%w: %s %s is %s", models.ErrApprovalRequired, kind, entityID, status)
	}
	return nil
}
