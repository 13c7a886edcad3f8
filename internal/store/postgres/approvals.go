package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-procurement/internal/database"
	"github.com/safar/go-procurement/internal/models"
)

const approvalColumns = `id, entity_type, entity_id, summary, approval_status, rejection_reason,
	reviewed_by, reviewed_at, created_at`

func scanApproval(row rowScanner) (*models.ApprovalRequest, error) {
	req := &models.ApprovalRequest{}
	err := row.Scan(
		&req.ID,
		&req.EntityType,
		&req.EntityID,
		&req.Summary,
		&req.ApprovalStatus,
		&req.RejectionReason,
		&req.ReviewedBy,
		&req.ReviewedAt,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertApproval(ctx context.Context, db execer, req *models.ApprovalRequest) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO approval_requests (`+approvalColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		req.ID, req.EntityType, req.EntityID, req.Summary, req.ApprovalStatus,
		req.RejectionReason, req.ReviewedBy, req.ReviewedAt, req.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: approval request for %s %s", models.ErrDuplicate, req.EntityType, req.EntityID)
		}
		return fmt.Errorf("create approval request: %w", err)
	}
	return nil
}

func (s *Store) CreateApprovalRequest(ctx context.Context, req *models.ApprovalRequest) error {
	return insertApproval(ctx, s.db, req)
}

func (s *Store) GetApprovalRequest(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	req, err := scanApproval(s.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("approval request", id.String())
		}
		return nil, fmt.Errorf("get approval request: %w", err)
	}
	return req, nil
}

func (s *Store) FindApprovalRequest(ctx context.Context, kind models.EntityType, entityID string) (*models.ApprovalRequest, error) {
	req, err := scanApproval(s.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests WHERE entity_type = $1 AND entity_id = $2`,
		kind, entityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("approval request for "+string(kind), entityID)
		}
		return nil, fmt.Errorf("find approval request: %w", err)
	}
	return req, nil
}

func (s *Store) ListPendingApprovals(ctx context.Context, kind *models.EntityType) ([]models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE approval_status = 'pending'`
	var args []any
	if kind != nil {
		query += ` AND entity_type = $1`
		args = append(args, *kind)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	defer rows.Close()

	var out []models.ApprovalRequest
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval request: %w", err)
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// ResolveApprovalRequest flips a request out of pending in a single statement.
// When no row matches, the request is re-read to tell a missing request from
// one that another reviewer already resolved.
func (s *Store) ResolveApprovalRequest(ctx context.Context, id uuid.UUID, res models.Resolution) (*models.ApprovalRequest, error) {
	req, err := scanApproval(s.db.QueryRowContext(ctx,
		`UPDATE approval_requests
		 SET approval_status = $2, reviewed_by = $3, reviewed_at = $4, rejection_reason = $5
		 WHERE id = $1 AND approval_status = 'pending'
		 RETURNING `+approvalColumns,
		id, res.Status, res.Reviewer, res.ReviewedAt, res.Reason))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolve approval request: %w", err)
	}

	current, err := s.GetApprovalRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &models.AlreadyResolvedError{RequestID: id.String(), Status: current.ApprovalStatus}
}

func (s *Store) CountPendingApprovals(ctx context.Context) (map[models.EntityType]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_type, COUNT(*) FROM approval_requests
		 WHERE approval_status = 'pending'
		 GROUP BY entity_type`)
	if err != nil {
		return nil, fmt.Errorf("count pending approvals: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EntityType]int64)
	for rows.Next() {
		var (
			kind models.EntityType
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan pending approval count: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return counts, nil
}
