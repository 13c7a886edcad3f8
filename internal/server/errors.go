package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/go-procurement/internal/database"
	"github.com/safar/go-procurement/internal/models"
	"go.uber.org/zap"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string       `json:"type"`
	Message string       `json:"message"`
	Errors  []fieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var errInvalidRequest = models.NewValidationError("request", "invalid request")

func ErrorHandlingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(lastErr.Err),
			)
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []fieldError{{Field: verr.Field, Message: verr.Message}},
		}
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{Type: "invalid_transition", Message: err.Error()}
	case errors.Is(err, models.ErrImmutableOrder):
		return http.StatusConflict, errorPayload{Type: "immutable_order", Message: err.Error()}
	case errors.Is(err, models.ErrAlreadyResolved):
		return http.StatusConflict, errorPayload{Type: "already_resolved", Message: err.Error()}
	case errors.Is(err, models.ErrDuplicate):
		return http.StatusConflict, errorPayload{Type: "duplicate", Message: err.Error()}
	case errors.Is(err, database.ErrOptimisticLockFailed):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: "the record was modified concurrently, retry the request"}
	case errors.Is(err, models.ErrApprovalRequired):
		return http.StatusForbidden, errorPayload{Type: "approval_required", Message: err.Error()}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
