// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow version was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrDuplicateDraft indicates a pending draft with the same content already exists for the pair.
	ErrDuplicateDraft = errors.New("duplicate pending draft")

	// ErrStepKeyConflict indicates two steps of one version share the same key.
	ErrStepKeyConflict = errors.New("duplicate step key in workflow version")

	// ErrStatusConflict indicates the version is no longer in the state the operation requires.
	ErrStatusConflict = errors.New("workflow status conflict")

	// ErrVersionConflict indicates an approved version number is already taken for the pair.
	ErrVersionConflict = errors.New("workflow version conflict")

	// ErrVisaTypeNotFound indicates no visa type row matches the given code.
	ErrVisaTypeNotFound = errors.New("visa type not found")

	// ErrDigestNotFound indicates a digest queue entry was not found.
	ErrDigestNotFound = errors.New("digest entry not found")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Approve", "CreateDraft")
	WorkflowID string // Workflow version ID if applicable
	Target     string // Visa type and country pair if applicable
	Err        error  // Underlying error
	Message    string // Additional context message
}

func (e *WorkflowError) Error() string {
	target := e.WorkflowID
	if e.Target != "" {
		target = "pair " + e.Target
	}

	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, target, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, target, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// NewWorkflowPairError creates a new workflow error for operations scoped to a visa type and country.
func NewWorkflowPairError(op string, visaTypeID int, countryCode string, err error) *WorkflowError {
	return &WorkflowError{
		Op:     op,
		Target: fmt.Sprintf("%d/%s", visaTypeID, countryCode),
		Err:    err,
	}
}

// ReferenceError wraps lookup-table errors with additional context.
type ReferenceError struct {
	Op  string // Operation being performed
	Key string // Lookup key
	Err error  // Underlying error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Key, e.Err)
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

func (e *ReferenceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a workflow version was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsDuplicateDraft checks if an error indicates a pending draft already exists.
func IsDuplicateDraft(err error) bool {
	return errors.Is(err, ErrDuplicateDraft)
}

// IsStatusConflict checks if an error indicates the version left the expected state.
func IsStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict) || errors.Is(err, ErrVersionConflict)
}

// IsVisaTypeNotFound checks if an error indicates an unknown visa type code.
func IsVisaTypeNotFound(err error) bool {
	return errors.Is(err, ErrVisaTypeNotFound)
}

// IsDigestNotFound checks if an error indicates a digest entry was not found.
func IsDigestNotFound(err error) bool {
	return errors.Is(err, ErrDigestNotFound)
}
