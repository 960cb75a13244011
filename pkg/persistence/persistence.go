// Package persistence provides data storage abstraction layer for captures, workflow versions and digests.
package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dukex/visaflow/pkg/models"
)

type Persistence interface {
	CaptureRepository() CaptureRepository
	WorkflowRepository() WorkflowRepository
	ReferenceRepository() ReferenceRepository
	DigestRepository() DigestRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// CaptureRepository stores raw captures keyed by content fingerprint.
type CaptureRepository interface {
	// Save stores the capture unless one with the same fingerprint exists.
	// It reports whether a new row was written.
	Save(ctx context.Context, capture *models.RawCapture) (bool, error)
	// GetByFingerprint returns nil, nil when no capture matches.
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.RawCapture, error)
}

// ListPendingOptions filters pending drafts. Zero values match everything.
type ListPendingOptions struct {
	VisaTypeID  int
	CountryCode string
}

type ApproveParams struct {
	ReviewerID string
	Notes      string
	ApprovedAt time.Time
}

type RejectParams struct {
	ReviewerID string
	Notes      string
	RejectedAt time.Time
}

// WorkflowRepository stores workflow versions together with their steps and doctors.
type WorkflowRepository interface {
	// CreateDraft inserts a pending version. It returns ErrDuplicateDraft when a pending
	// version with the same visa type, country and scrape hash already exists, and
	// ErrStepKeyConflict when two steps share a key.
	CreateDraft(ctx context.Context, version *models.WorkflowVersion) error
	GetByID(ctx context.Context, id string) (*models.WorkflowVersion, error)
	// FindPendingByHash returns nil, nil when no pending draft matches.
	FindPendingByHash(ctx context.Context, visaTypeID int, countryCode, scrapeHash string) (*models.WorkflowVersion, error)
	// LatestApproved returns the highest approved version of the pair, skipping excludeIDs,
	// or nil, nil when none exists.
	LatestApproved(ctx context.Context, visaTypeID int, countryCode string, excludeIDs ...string) (*models.WorkflowVersion, error)
	ListPending(ctx context.Context, opts ListPendingOptions) ([]*models.WorkflowVersion, error)
	// Approve moves a pending version to approved with version = max approved + 1.
	Approve(ctx context.Context, id string, params ApproveParams) (*models.WorkflowVersion, error)
	Reject(ctx context.Context, id string, params RejectParams) (*models.WorkflowVersion, error)
}

// ReferenceRepository exposes the lookup tables the pipeline reads.
type ReferenceRepository interface {
	VisaTypeByCode(ctx context.Context, code string) (*models.VisaType, error)
	VisaTypes(ctx context.Context) ([]*models.VisaType, error)
	SaveVisaType(ctx context.Context, visaType *models.VisaType) error

	// MappingFor returns nil, nil when the origin country has no redirection.
	MappingFor(ctx context.Context, service, fromCountry string) (*models.CountryServiceMapping, error)
	SaveMapping(ctx context.Context, mapping *models.CountryServiceMapping) error

	Reviewers(ctx context.Context) ([]*models.Reviewer, error)
	SaveReviewer(ctx context.Context, reviewer *models.Reviewer) error
}

// DigestMutation receives the current items document (nil for a new entry) and returns the replacement.
type DigestMutation func(items json.RawMessage) (json.RawMessage, error)

// DigestRepository stores per-recipient notification queues.
type DigestRepository interface {
	// AppendOpen applies mutate to the recipient's unsent entry created at or after since,
	// creating the entry when none exists. The read-modify-write is atomic per recipient.
	AppendOpen(ctx context.Context, recipientID string, since time.Time, mutate DigestMutation) (*models.DigestQueueEntry, error)
	// Pending returns unsent entries oldest first.
	Pending(ctx context.Context) ([]*models.DigestQueueEntry, error)
	GetByID(ctx context.Context, id string) (*models.DigestQueueEntry, error)
	// MarkSent empties the entry and stamps LastSentAt. The row is kept.
	MarkSent(ctx context.Context, id string, sentAt time.Time) (*models.DigestQueueEntry, error)
}
