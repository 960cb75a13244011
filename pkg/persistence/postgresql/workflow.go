package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const versionColumns = `
			id
		  , visa_type_id
		  , country_code
		  , version
		  , status
		  , source
		  , scrape_hash
		  , scraped_at
		  , approved_by
		  , approved_at
		  , rejected_by
		  , rejected_at
		  , notes
		  , summary
		  , created_at
		  , updated_at
`

type scanner interface {
	Scan(dest ...any) error
}

// WorkflowRepository handles workflow version database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// CreateDraft inserts a pending version with its steps and doctors in one transaction.
func (r *WorkflowRepository) CreateDraft(ctx context.Context, version *models.WorkflowVersion) error {
	now := time.Now().UTC()

	if version.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		version.ID = id.String()
	}

	version.Status = models.WorkflowStatusPendingApproval
	version.CreatedAt = now
	version.UpdatedAt = now

	summary, err := json.Marshal(version.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_versions (id, visa_type_id, country_code, version, status, source, scrape_hash,
			scraped_at, notes, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		version.ID,
		version.VisaTypeID,
		version.CountryCode,
		version.Version,
		version.Status,
		version.Source,
		version.ScrapeHash,
		version.ScrapedAt,
		version.Notes,
		summary,
		version.CreatedAt,
		version.UpdatedAt,
	)
	if err != nil {
		return r.draftError(version, err)
	}

	for i := range version.Steps {
		step := &version.Steps[i]
		if step.ID == "" {
			step.ID = uuid.NewString()
		}

		step.WorkflowVersionID = version.ID

		var data []byte

		data, err = marshalExtras(step.Data)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_steps (id, workflow_version_id, ordinal, key, title, description, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, step.ID, step.WorkflowVersionID, step.Ordinal, step.Key, step.Title, step.Description, data)
		if err != nil {
			return r.draftError(version, err)
		}
	}

	for i := range version.Doctors {
		doctor := &version.Doctors[i]
		if doctor.ID == "" {
			doctor.ID = uuid.NewString()
		}

		doctor.WorkflowVersionID = version.ID

		var extras []byte

		extras, err = marshalExtras(doctor.Extras)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_doctors (id, workflow_version_id, name, address, phone, city, country_code, source_url, extras)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			doctor.ID,
			doctor.WorkflowVersionID,
			doctor.Name,
			doctor.Address,
			doctor.Phone,
			doctor.City,
			doctor.CountryCode,
			doctor.SourceURL,
			extras,
		)
		if err != nil {
			return fmt.Errorf("failed to insert doctor %s: %w", doctor.Name, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return r.draftError(version, err)
	}

	return nil
}

func (r *WorkflowRepository) draftError(version *models.WorkflowVersion, err error) error {
	switch uniqueConstraint(err) {
	case "idx_workflow_versions_pending_hash":
		return persistence.NewWorkflowPairError("CreateDraft", version.VisaTypeID, version.CountryCode, persistence.ErrDuplicateDraft)
	case "uq_workflow_steps_key":
		return persistence.NewWorkflowPairError("CreateDraft", version.VisaTypeID, version.CountryCode, persistence.ErrStepKeyConflict)
	default:
		return fmt.Errorf("failed to save workflow version: %w", err)
	}
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowVersion, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	row := r.db.QueryRowContext(ctx, "SELECT "+versionColumns+" FROM workflow_versions WHERE id = $1", id)

	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow version: %w", err)
	}

	err = r.loadChildren(ctx, version)
	if err != nil {
		return nil, err
	}

	return version, nil
}

func (r *WorkflowRepository) FindPendingByHash(ctx context.Context, visaTypeID int, countryCode, scrapeHash string) (*models.WorkflowVersion, error) {
	query := "SELECT " + versionColumns + `
		FROM workflow_versions
		WHERE visa_type_id = $1 AND country_code = $2 AND scrape_hash = $3 AND status = 'pending_approval'
	`

	return r.findOne(ctx, query, visaTypeID, countryCode, scrapeHash)
}

func (r *WorkflowRepository) LatestApproved(ctx context.Context, visaTypeID int, countryCode string, excludeIDs ...string) (*models.WorkflowVersion, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	query := "SELECT " + versionColumns + `
		FROM workflow_versions
		WHERE visa_type_id = $1 AND country_code = $2 AND status = 'approved'
		  AND NOT (id::text = ANY($3))
		ORDER BY version DESC
		LIMIT 1
	`

	return r.findOne(ctx, query, visaTypeID, countryCode, pq.Array(excludeIDs))
}

// ListPending returns pending versions, newest scrape first.
func (r *WorkflowRepository) ListPending(ctx context.Context, opts persistence.ListPendingOptions) ([]*models.WorkflowVersion, error) {
	conditions := []string{"status = 'pending_approval'"}
	args := make([]any, 0, 2)

	if opts.VisaTypeID != 0 {
		args = append(args, opts.VisaTypeID)
		conditions = append(conditions, "visa_type_id = $"+strconv.Itoa(len(args)))
	}

	if opts.CountryCode != "" {
		args = append(args, opts.CountryCode)
		conditions = append(conditions, "country_code = $"+strconv.Itoa(len(args)))
	}

	query := "SELECT " + versionColumns + " FROM workflow_versions WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY scraped_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	versions := make([]*models.WorkflowVersion, 0)

	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow version: %w", err)
		}

		versions = append(versions, version)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow versions: %w", err)
	}

	for _, version := range versions {
		err = r.loadChildren(ctx, version)
		if err != nil {
			return nil, err
		}
	}

	return versions, nil
}

// Approve promotes a pending version. The pair is serialized with a transaction-scoped
// advisory lock so concurrent approvals compute distinct version numbers.
func (r *WorkflowRepository) Approve(ctx context.Context, id string, params persistence.ApproveParams) (*models.WorkflowVersion, error) {
	err := r.transition(ctx, "Approve", id, func(tx *sql.Tx, current *models.WorkflowVersion) (sql.Result, error) {
		var maxApproved int

		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(version), 0)
			FROM workflow_versions
			WHERE visa_type_id = $1 AND country_code = $2 AND status = 'approved'
		`, current.VisaTypeID, current.CountryCode).Scan(&maxApproved)
		if err != nil {
			return nil, fmt.Errorf("failed to query approved versions: %w", err)
		}

		approvedAt := params.ApprovedAt.UTC()

		return tx.ExecContext(ctx, `
			UPDATE workflow_versions
			SET status = 'approved', version = $2, approved_by = $3, approved_at = $4, notes = $5, updated_at = $4
			WHERE id = $1 AND status = 'pending_approval'
		`, id, maxApproved+1, params.ReviewerID, approvedAt, params.Notes)
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func (r *WorkflowRepository) Reject(ctx context.Context, id string, params persistence.RejectParams) (*models.WorkflowVersion, error) {
	err := r.transition(ctx, "Reject", id, func(tx *sql.Tx, _ *models.WorkflowVersion) (sql.Result, error) {
		rejectedAt := params.RejectedAt.UTC()

		return tx.ExecContext(ctx, `
			UPDATE workflow_versions
			SET status = 'rejected', rejected_by = $2, rejected_at = $3, notes = $4, updated_at = $3
			WHERE id = $1 AND status = 'pending_approval'
		`, id, params.ReviewerID, rejectedAt, params.Notes)
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// transition locks the version row, checks it is still pending and runs update inside the same transaction.
func (r *WorkflowRepository) transition(
	ctx context.Context,
	op, id string,
	update func(tx *sql.Tx, current *models.WorkflowVersion) (sql.Result, error),
) (err error) {
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		visaTypeID  int
		countryCode string
	)

	err = tx.QueryRowContext(ctx, "SELECT visa_type_id, country_code FROM workflow_versions WHERE id = $1", id).
		Scan(&visaTypeID, &countryCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
		}

		return fmt.Errorf("failed to load workflow version: %w", err)
	}

	_, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1, hashtext($2))", visaTypeID, countryCode)
	if err != nil {
		return fmt.Errorf("failed to lock workflow pair: %w", err)
	}

	row := tx.QueryRowContext(ctx, "SELECT "+versionColumns+" FROM workflow_versions WHERE id = $1 FOR UPDATE", id)

	current, err := scanVersion(row)
	if err != nil {
		return fmt.Errorf("failed to lock workflow version: %w", err)
	}

	if !current.IsPending() {
		err = &persistence.WorkflowError{
			Op:         op,
			WorkflowID: id,
			Err:        persistence.ErrStatusConflict,
			Message:    "status is " + string(current.Status),
		}

		return err
	}

	result, err := update(tx, current)
	if err != nil {
		if uniqueConstraint(err) == "idx_workflow_versions_approved_version" {
			err = persistence.NewWorkflowError(op, id, persistence.ErrVersionConflict)

			return err
		}

		return fmt.Errorf("failed to update workflow version: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected != 1 {
		err = persistence.NewWorkflowError(op, id, persistence.ErrStatusConflict)

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit %s: %w", op, err)
	}

	return nil
}

func (r *WorkflowRepository) findOne(ctx context.Context, query string, args ...any) (*models.WorkflowVersion, error) {
	version, err := scanVersion(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow version: %w", err)
	}

	err = r.loadChildren(ctx, version)
	if err != nil {
		return nil, err
	}

	return version, nil
}

func (r *WorkflowRepository) loadChildren(ctx context.Context, version *models.WorkflowVersion) error {
	steps, err := r.loadSteps(ctx, version.ID)
	if err != nil {
		return err
	}

	doctors, err := r.loadDoctors(ctx, version.ID)
	if err != nil {
		return err
	}

	version.Steps = steps
	version.Doctors = doctors

	return nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, versionID string) ([]models.WorkflowStep, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_version_id, ordinal, key, title, description, data
		FROM workflow_steps
		WHERE workflow_version_id = $1
		ORDER BY ordinal
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	steps := make([]models.WorkflowStep, 0)

	for rows.Next() {
		var (
			step models.WorkflowStep
			data []byte
		)

		err = rows.Scan(&step.ID, &step.WorkflowVersionID, &step.Ordinal, &step.Key, &step.Title, &step.Description, &data)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}

		step.Data, err = unmarshalExtras(data)
		if err != nil {
			return nil, err
		}

		steps = append(steps, step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow steps: %w", err)
	}

	return steps, nil
}

func (r *WorkflowRepository) loadDoctors(ctx context.Context, versionID string) ([]models.WorkflowDoctor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_version_id, name, address, phone, city, country_code, source_url, extras
		FROM workflow_doctors
		WHERE workflow_version_id = $1
		ORDER BY name
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow doctors: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	doctors := make([]models.WorkflowDoctor, 0)

	for rows.Next() {
		var (
			doctor models.WorkflowDoctor
			extras []byte
		)

		err = rows.Scan(
			&doctor.ID,
			&doctor.WorkflowVersionID,
			&doctor.Name,
			&doctor.Address,
			&doctor.Phone,
			&doctor.City,
			&doctor.CountryCode,
			&doctor.SourceURL,
			&extras,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow doctor: %w", err)
		}

		doctor.Extras, err = unmarshalExtras(extras)
		if err != nil {
			return nil, err
		}

		doctors = append(doctors, doctor)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow doctors: %w", err)
	}

	return doctors, nil
}

func scanVersion(row scanner) (*models.WorkflowVersion, error) {
	var (
		version    models.WorkflowVersion
		approvedBy sql.NullString
		approvedAt sql.NullTime
		rejectedBy sql.NullString
		rejectedAt sql.NullTime
		summary    []byte
	)

	err := row.Scan(
		&version.ID,
		&version.VisaTypeID,
		&version.CountryCode,
		&version.Version,
		&version.Status,
		&version.Source,
		&version.ScrapeHash,
		&version.ScrapedAt,
		&approvedBy,
		&approvedAt,
		&rejectedBy,
		&rejectedAt,
		&version.Notes,
		&summary,
		&version.CreatedAt,
		&version.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approvedBy.Valid {
		version.ApprovedBy = &approvedBy.String
	}

	if approvedAt.Valid {
		version.ApprovedAt = &approvedAt.Time
	}

	if rejectedBy.Valid {
		version.RejectedBy = &rejectedBy.String
	}

	if rejectedAt.Valid {
		version.RejectedAt = &rejectedAt.Time
	}

	err = json.Unmarshal(summary, &version.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return &version, nil
}

func marshalExtras(extras models.Extras) ([]byte, error) {
	if extras == nil {
		return []byte("{}"), nil
	}

	data, err := json.Marshal(extras)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extras: %w", err)
	}

	return data, nil
}

func unmarshalExtras(data []byte) (models.Extras, error) {
	var extras models.Extras

	err := json.Unmarshal(data, &extras)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal extras: %w", err)
	}

	if len(extras) == 0 {
		return nil, nil
	}

	return extras, nil
}
