package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrImmutableOrder     = errors.New("order is immutable")
	ErrAlreadyResolved    = errors.New("approval request already resolved")
	ErrNotFound           = errors.New("not found")
	ErrPartialAggregation = errors.New("partial aggregation")
	ErrApprovalRequired   = errors.New("approval required")
	ErrDuplicate          = errors.New("duplicate record")
)

type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type InvalidTransitionError struct {
	PONumber string
	From     OrderStatus
	Action   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("purchase order %s: cannot %s from status %s", e.PONumber, e.Action, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

type ImmutableOrderError struct {
	PONumber string
	Status   OrderStatus
}

func (e *ImmutableOrderError) Error() string {
	return fmt.Sprintf("purchase order %s is %s and can no longer be edited", e.PONumber, e.Status)
}

func (e *ImmutableOrderError) Is(target error) bool { return target == ErrImmutableOrder }

type AlreadyResolvedError struct {
	RequestID string
	Status    ApprovalStatus
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("approval request %s already %s", e.RequestID, e.Status)
}

func (e *AlreadyResolvedError) Is(target error) bool { return target == ErrAlreadyResolved }

type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type SourceFailure struct {
	Source string
	Err    error
}

// PartialAggregationError lists the upstream sources that could not be read
// while the rest of an aggregation still completed.
type PartialAggregationError struct {
	Failures []SourceFailure
}

func (e *PartialAggregationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Source, f.Err))
	}
	return "partial aggregation, unavailable sources: " + strings.Join(parts, "; ")
}

func (e *PartialAggregationError) Is(target error) bool { return target == ErrPartialAggregation }

func (e *PartialAggregationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

func (e *PartialAggregationError) Sources() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Source)
	}
	return out
}
