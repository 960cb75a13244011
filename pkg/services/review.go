package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/visaflow/pkg/diff"
	"github.com/dukex/visaflow/pkg/eventbus"
	"github.com/dukex/visaflow/pkg/events"
	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

type ApproveRequest struct {
	ReviewerID string `validate:"required"`
	Notes      string `validate:"max=2000"`
}

type RejectRequest struct {
	ReviewerID string `validate:"required"`
	Reason     string `validate:"required,max=500"`
	Notes      string `validate:"max=2000"`
}

type ApproveResult struct {
	Success          bool   `json:"success"`
	NewVersionNumber int    `json:"newVersionNumber"`
	Message          string `json:"message"`
}

type RejectResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PendingFilter narrows ListPending. Empty fields match everything.
type PendingFilter struct {
	VisaType string
	Country  string
}

// PendingWorkflow is the review queue summary of one draft.
type PendingWorkflow struct {
	ID          string                `json:"id"`
	VisaTypeID  int                   `json:"visaTypeId"`
	CountryCode string                `json:"countryCode"`
	Version     int                   `json:"version"`
	Status      models.WorkflowStatus `json:"status"`
	Source      string                `json:"source"`
	ScrapedAt   time.Time             `json:"scrapedAt"`
	StepCount   int                   `json:"stepCount"`
	DoctorCount int                   `json:"doctorCount"`
}

// Review exposes the administrator operations over workflow drafts.
type Review struct {
	persistence persistence.Persistence
	diff        *diff.Engine
	validate    *validator.Validate
	publisher   eventbus.EventPublisher
	now         func() time.Time
	logger      *slog.Logger
}

// NewReview creates the review service. A nil publisher disables lifecycle events.
func NewReview(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Review {
	return &Review{
		persistence: p,
		diff:        diff.NewEngine(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		publisher:   publisher,
		now:         time.Now,
		logger:      logger.With("module", "review"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (r *Review) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := r.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Approve makes a pending draft authoritative. Its version becomes the pair's highest
// approved version plus one.
func (r *Review) Approve(ctx context.Context, id string, req ApproveRequest) (*ApproveResult, error) {
	err := r.validate.Struct(req)
	if err != nil {
		return nil, requestError("approve", req.ReviewerID, err)
	}

	approved, err := r.persistence.WorkflowRepository().Approve(ctx, id, persistence.ApproveParams{
		ReviewerID: req.ReviewerID,
		Notes:      req.Notes,
		ApprovedAt: r.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Workflow approved",
		"workflow_id", approved.ID, "version", approved.Version, "reviewer", req.ReviewerID)

	r.publish(ctx, approved, events.WorkflowApproved{
		BaseEvent:  events.NewBaseEvent(events.WorkflowApprovedEvent, approved.ID, approved.VisaTypeID, approved.CountryCode),
		Version:    approved.Version,
		ReviewerID: req.ReviewerID,
		Notes:      req.Notes,
	})

	return &ApproveResult{
		Success:          true,
		NewVersionNumber: approved.Version,
		Message:          fmt.Sprintf("Workflow approved as version %d", approved.Version),
	}, nil
}

// Reject closes a pending draft. The reason is kept in the version notes.
func (r *Review) Reject(ctx context.Context, id string, req RejectRequest) (*RejectResult, error) {
	req.Reason = strings.TrimSpace(req.Reason)

	err := r.validate.Struct(req)
	if err != nil {
		if req.ReviewerID != "" && req.Reason == "" {
			return nil, NewValidationError("reject", "reason_required", "a rejection reason is required", ErrReasonRequired)
		}

		return nil, requestError("reject", req.ReviewerID, err)
	}

	notes := req.Reason
	if req.Notes != "" {
		notes = req.Reason + ": " + req.Notes
	}

	rejected, err := r.persistence.WorkflowRepository().Reject(ctx, id, persistence.RejectParams{
		ReviewerID: req.ReviewerID,
		Notes:      notes,
		RejectedAt: r.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Workflow rejected", "workflow_id", rejected.ID, "reviewer", req.ReviewerID, "reason", req.Reason)

	r.publish(ctx, rejected, events.WorkflowRejected{
		BaseEvent:  events.NewBaseEvent(events.WorkflowRejectedEvent, rejected.ID, rejected.VisaTypeID, rejected.CountryCode),
		ReviewerID: req.ReviewerID,
		Reason:     req.Reason,
		Notes:      req.Notes,
	})

	return &RejectResult{Success: true, Message: "Workflow rejected"}, nil
}

// requestError reports a missing reviewer as ErrReviewerRequired and any other failed rule as ErrInvalidRequest.
func requestError(op, reviewerID string, err error) *ServiceError {
	if strings.TrimSpace(reviewerID) == "" {
		return NewValidationError(op, "reviewer_required", ErrReviewerRequired.Error(), ErrReviewerRequired)
	}

	return NewValidationError(op, "invalid_request", err.Error(), ErrInvalidRequest)
}

// ListPending returns drafts awaiting review, newest scrape first.
func (r *Review) ListPending(ctx context.Context, filter PendingFilter) ([]PendingWorkflow, error) {
	opts := persistence.ListPendingOptions{CountryCode: strings.ToUpper(strings.TrimSpace(filter.Country))}

	if code := strings.TrimSpace(filter.VisaType); code != "" {
		visaType, err := r.persistence.ReferenceRepository().VisaTypeByCode(ctx, code)
		if err != nil {
			if persistence.IsVisaTypeNotFound(err) {
				return []PendingWorkflow{}, nil
			}

			return nil, fmt.Errorf("failed to look up visa type %s: %w", code, err)
		}

		opts.VisaTypeID = visaType.ID
	}

	versions, err := r.persistence.WorkflowRepository().ListPending(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending workflows: %w", err)
	}

	pending := make([]PendingWorkflow, 0, len(versions))
	for _, version := range versions {
		pending = append(pending, PendingWorkflow{
			ID:          version.ID,
			VisaTypeID:  version.VisaTypeID,
			CountryCode: version.CountryCode,
			Version:     version.Version,
			Status:      version.Status,
			Source:      version.Source,
			ScrapedAt:   version.ScrapedAt,
			StepCount:   version.Summary.StepCount,
			DoctorCount: version.Summary.DoctorCount,
		})
	}

	return pending, nil
}

// GetDiff compares a version with the latest other approved version of its pair.
func (r *Review) GetDiff(ctx context.Context, id string) (*models.DiffResult, error) {
	workflows := r.persistence.WorkflowRepository()

	target, err := workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prior, err := workflows.LatestApproved(ctx, target.VisaTypeID, target.CountryCode, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approved version: %w", err)
	}

	result := r.diff.DiffVersions(prior, target)

	return &result, nil
}

func (r *Review) GetWorkflow(ctx context.Context, id string) (*models.WorkflowVersion, error) {
	return r.persistence.WorkflowRepository().GetByID(ctx, id)
}

// LatestApproved returns the authoritative workflow of a pair, or ErrWorkflowNotFound.
func (r *Review) LatestApproved(ctx context.Context, visaTypeCode, countryCode string) (*models.WorkflowVersion, error) {
	visaType, err := r.persistence.ReferenceRepository().VisaTypeByCode(ctx, visaTypeCode)
	if err != nil {
		if persistence.IsVisaTypeNotFound(err) {
			return nil, newUnknownVisaTypeError(visaTypeCode, err)
		}

		return nil, err
	}

	country := strings.ToUpper(strings.TrimSpace(countryCode))

	latest, err := r.persistence.WorkflowRepository().LatestApproved(ctx, visaType.ID, country)
	if err != nil {
		return nil, fmt.Errorf("failed to load approved version: %w", err)
	}

	if latest == nil {
		return nil, persistence.NewWorkflowPairError("LatestApproved", visaType.ID, country, persistence.ErrWorkflowNotFound)
	}

	return latest, nil
}

func (r *Review) publish(ctx context.Context, version *models.WorkflowVersion, event eventbus.Event) {
	if r.publisher == nil {
		return
	}

	err := r.publisher.Publish(ctx, pairKey(version), event)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish review event", "workflow_id", version.ID, "error", err)
	}
}
