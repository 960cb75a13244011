// Package services provides the scrape pipeline, review operations and digest queue.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/visaflow/pkg/fetcher"
	"github.com/dukex/visaflow/pkg/normalizer"
	"github.com/dukex/visaflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrReviewerRequired = errors.New("reviewer ID is required")
	ErrReasonRequired   = errors.New("rejection reason is required")

	// Reference Errors (404 Not Found).
	ErrUnknownVisaType = errors.New("unknown visa type")

	// Digest payload errors.
	ErrInvalidDigest = errors.New("digest payload does not match schema")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrReviewerRequired) ||
		errors.Is(err, ErrReasonRequired)
}

// IsConflictError checks if an error is a state conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return persistence.IsStatusConflict(err) || persistence.IsDuplicateDraft(err)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUnknownVisaType) ||
		persistence.IsWorkflowNotFound(err) ||
		persistence.IsVisaTypeNotFound(err) ||
		persistence.IsDigestNotFound(err)
}

// IsParseError checks if fetched content could not be normalized (HTTP 422).
func IsParseError(err error) bool {
	return errors.Is(err, normalizer.ErrUnparseable) || errors.Is(err, persistence.ErrStepKeyConflict)
}

// IsSourceError checks if every content source failed (HTTP 502).
func IsSourceError(err error) bool {
	return errors.Is(err, fetcher.ErrSourcesExhausted)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func newUnknownVisaTypeError(code string, err error) *ServiceError {
	return &ServiceError{
		Op:      "scrape",
		Code:    "unknown_visa_type",
		Message: fmt.Sprintf("visa type %q is not known", code),
		Err:     errors.Join(ErrUnknownVisaType, err),
	}
}
