package file

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/google/uuid"
)

const workflowsCollection = "workflows"

// WorkflowRepository handles workflow version file operations. A single mutex
// serializes writes so the pending-hash and approved-version uniqueness rules hold
// within one process.
type WorkflowRepository struct {
	root string
	mu   sync.Mutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// CreateDraft stores a new pending version with its steps and doctors.
func (wr *WorkflowRepository) CreateDraft(_ context.Context, version *models.WorkflowVersion) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	seen := make(map[string]struct{}, len(version.Steps))
	for _, step := range version.Steps {
		if _, exists := seen[step.Key]; exists {
			return &persistence.WorkflowError{
				Op:      "CreateDraft",
				Target:  fmt.Sprintf("%d/%s", version.VisaTypeID, version.CountryCode),
				Err:     persistence.ErrStepKeyConflict,
				Message: "step key " + step.Key,
			}
		}

		seen[step.Key] = struct{}{}
	}

	all, err := wr.loadAll()
	if err != nil {
		return err
	}

	for _, existing := range all {
		if existing.IsPending() &&
			existing.VisaTypeID == version.VisaTypeID &&
			existing.CountryCode == version.CountryCode &&
			existing.ScrapeHash == version.ScrapeHash {
			return persistence.NewWorkflowPairError("CreateDraft", version.VisaTypeID, version.CountryCode, persistence.ErrDuplicateDraft)
		}
	}

	if version.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		version.ID = id.String()
	}

	for i := range version.Steps {
		if version.Steps[i].ID == "" {
			version.Steps[i].ID = uuid.NewString()
		}

		version.Steps[i].WorkflowVersionID = version.ID
	}

	for i := range version.Doctors {
		if version.Doctors[i].ID == "" {
			version.Doctors[i].ID = uuid.NewString()
		}

		version.Doctors[i].WorkflowVersionID = version.ID
	}

	now := time.Now().UTC()
	version.Status = models.WorkflowStatusPendingApproval
	version.CreatedAt = now
	version.UpdatedAt = now

	return wr.save(version)
}

// GetByID retrieves a workflow version by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.WorkflowVersion, error) {
	version, err := wr.load(id)
	if err != nil {
		return nil, err
	}

	if version == nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return version, nil
}

func (wr *WorkflowRepository) FindPendingByHash(_ context.Context, visaTypeID int, countryCode, scrapeHash string) (*models.WorkflowVersion, error) {
	all, err := wr.loadAll()
	if err != nil {
		return nil, err
	}

	for _, version := range all {
		if version.IsPending() &&
			version.VisaTypeID == visaTypeID &&
			version.CountryCode == countryCode &&
			version.ScrapeHash == scrapeHash {
			return version, nil
		}
	}

	return nil, nil
}

func (wr *WorkflowRepository) LatestApproved(_ context.Context, visaTypeID int, countryCode string, excludeIDs ...string) (*models.WorkflowVersion, error) {
	all, err := wr.loadAll()
	if err != nil {
		return nil, err
	}

	var latest *models.WorkflowVersion

	for _, version := range all {
		if version.Status != models.WorkflowStatusApproved ||
			version.VisaTypeID != visaTypeID ||
			version.CountryCode != countryCode ||
			slices.Contains(excludeIDs, version.ID) {
			continue
		}

		if latest == nil || version.Version > latest.Version {
			latest = version
		}
	}

	return latest, nil
}

// ListPending returns pending versions, newest scrape first.
func (wr *WorkflowRepository) ListPending(_ context.Context, opts persistence.ListPendingOptions) ([]*models.WorkflowVersion, error) {
	all, err := wr.loadAll()
	if err != nil {
		return nil, err
	}

	pending := make([]*models.WorkflowVersion, 0)

	for _, version := range all {
		if !version.IsPending() {
			continue
		}

		if opts.VisaTypeID != 0 && version.VisaTypeID != opts.VisaTypeID {
			continue
		}

		if opts.CountryCode != "" && version.CountryCode != opts.CountryCode {
			continue
		}

		pending = append(pending, version)
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].ScrapedAt.After(pending[j].ScrapedAt)
	})

	return pending, nil
}

func (wr *WorkflowRepository) Approve(_ context.Context, id string, params persistence.ApproveParams) (*models.WorkflowVersion, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	version, err := wr.loadPending("Approve", id)
	if err != nil {
		return nil, err
	}

	all, err := wr.loadAll()
	if err != nil {
		return nil, err
	}

	maxApproved := 0

	for _, other := range all {
		if other.Status == models.WorkflowStatusApproved &&
			other.VisaTypeID == version.VisaTypeID &&
			other.CountryCode == version.CountryCode &&
			other.Version > maxApproved {
			maxApproved = other.Version
		}
	}

	approvedAt := params.ApprovedAt.UTC()
	reviewer := params.ReviewerID

	version.Status = models.WorkflowStatusApproved
	version.Version = maxApproved + 1
	version.ApprovedBy = &reviewer
	version.ApprovedAt = &approvedAt
	version.Notes = params.Notes
	version.UpdatedAt = approvedAt

	err = wr.save(version)
	if err != nil {
		return nil, err
	}

	return version, nil
}

func (wr *WorkflowRepository) Reject(_ context.Context, id string, params persistence.RejectParams) (*models.WorkflowVersion, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	version, err := wr.loadPending("Reject", id)
	if err != nil {
		return nil, err
	}

	rejectedAt := params.RejectedAt.UTC()
	reviewer := params.ReviewerID

	version.Status = models.WorkflowStatusRejected
	version.RejectedBy = &reviewer
	version.RejectedAt = &rejectedAt
	version.Notes = params.Notes
	version.UpdatedAt = rejectedAt

	err = wr.save(version)
	if err != nil {
		return nil, err
	}

	return version, nil
}

func (wr *WorkflowRepository) loadPending(op, id string) (*models.WorkflowVersion, error) {
	version, err := wr.load(id)
	if err != nil {
		return nil, err
	}

	if version == nil {
		return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	if !version.IsPending() {
		return nil, &persistence.WorkflowError{
			Op:         op,
			WorkflowID: id,
			Err:        persistence.ErrStatusConflict,
			Message:    "status is " + string(version.Status),
		}
	}

	return version, nil
}

func (wr *WorkflowRepository) load(id string) (*models.WorkflowVersion, error) {
	var version models.WorkflowVersion

	found, err := readJSON(wr.root, workflowsCollection, id, &version)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	if !found {
		return nil, nil
	}

	return &version, nil
}

func (wr *WorkflowRepository) loadAll() ([]*models.WorkflowVersion, error) {
	names, err := listNames(wr.root, workflowsCollection)
	if err != nil {
		return nil, err
	}

	versions := make([]*models.WorkflowVersion, 0, len(names))

	for _, name := range names {
		version, err := wr.load(name)
		if err != nil {
			return nil, err
		}

		if version != nil {
			versions = append(versions, version)
		}
	}

	return versions, nil
}

func (wr *WorkflowRepository) save(version *models.WorkflowVersion) error {
	err := writeJSON(wr.root, workflowsCollection, version.ID, version)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", version.ID, err)
	}

	return nil
}
