package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/xeipuuv/gojsonschema"
)

const digestSchema = `{
	"type": "object",
	"required": ["category", "workflowDrafts"],
	"properties": {
		"category": {"type": "string", "enum": ["workflow_drafts"]},
		"workflowDrafts": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "countryCode", "visaTypeId", "version", "source"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"countryCode": {"type": "string", "minLength": 2, "maxLength": 2},
					"visaTypeId": {"type": "integer", "minimum": 1},
					"version": {"type": "integer", "minimum": 1},
					"source": {"type": "string", "minLength": 1},
					"scrapedAt": {"type": "string"},
					"stepCount": {"type": "integer", "minimum": 0},
					"doctorCount": {"type": "integer", "minimum": 0},
					"totalChanges": {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`

// Digest queues draft summaries for reviewers, one open entry per reviewer per UTC day.
type Digest struct {
	digests    persistence.DigestRepository
	references persistence.ReferenceRepository
	schema     *gojsonschema.Schema
	now        func() time.Time
	logger     *slog.Logger
}

func NewDigest(p persistence.Persistence, logger *slog.Logger) *Digest {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(digestSchema))
	if err != nil {
		panic(fmt.Errorf("invalid digest schema: %w", err))
	}

	return &Digest{
		digests:    p.DigestRepository(),
		references: p.ReferenceRepository(),
		schema:     schema,
		now:        time.Now,
		logger:     logger.With("module", "digest"),
	}
}

// Enqueue appends the draft to every reviewer's digest for today. Failures are returned
// per reviewer and never undo entries already written for others.
func (d *Digest) Enqueue(ctx context.Context, version *models.WorkflowVersion, result models.DiffResult) []error {
	reviewers, err := d.references.Reviewers(ctx)
	if err != nil {
		return []error{fmt.Errorf("failed to list reviewers: %w", err)}
	}

	item := models.WorkflowDraftDigest{
		ID:           version.ID,
		CountryCode:  version.CountryCode,
		VisaTypeID:   version.VisaTypeID,
		Version:      version.Version,
		Source:       version.Source,
		ScrapedAt:    version.ScrapedAt,
		StepCount:    version.Summary.StepCount,
		DoctorCount:  version.Summary.DoctorCount,
		TotalChanges: result.TotalChanges,
	}

	now := d.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	failures := make([]error, 0)

	for _, reviewer := range reviewers {
		_, err := d.digests.AppendOpen(ctx, reviewer.ID, today, func(items json.RawMessage) (json.RawMessage, error) {
			return d.appendDraft(items, item)
		})
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to enqueue digest", "recipient", reviewer.ID, "workflow_id", version.ID, "error", err)

			failures = append(failures, fmt.Errorf("digest for %s: %w", reviewer.ID, err))

			continue
		}

		d.logger.DebugContext(ctx, "Digest enqueued", "recipient", reviewer.ID, "workflow_id", version.ID)
	}

	return failures
}

func (d *Digest) appendDraft(items json.RawMessage, item models.WorkflowDraftDigest) (json.RawMessage, error) {
	payload := models.NewDigestPayload()

	if len(items) > 0 {
		decoded, err := d.Decode(items)
		if err != nil {
			return nil, err
		}

		payload = *decoded
	}

	if slices.ContainsFunc(payload.WorkflowDrafts, func(existing models.WorkflowDraftDigest) bool {
		return existing.ID == item.ID
	}) {
		return items, nil
	}

	payload.WorkflowDrafts = append(payload.WorkflowDrafts, item)

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode digest: %w", err)
	}

	err = d.validate(encoded)
	if err != nil {
		return nil, err
	}

	return encoded, nil
}

// Decode validates an items document and returns its payload.
func (d *Digest) Decode(items json.RawMessage) (*models.DigestPayload, error) {
	err := d.validate(items)
	if err != nil {
		return nil, err
	}

	var payload models.DigestPayload

	err = json.Unmarshal(items, &payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDigest, err)
	}

	return &payload, nil
}

func (d *Digest) validate(document []byte) error {
	result, err := d.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDigest, err)
	}

	if !result.Valid() {
		errors := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDigest, strings.Join(errors, "; "))
	}

	return nil
}

// PendingDigest is an unsent digest entry with its decoded payload.
type PendingDigest struct {
	ID          string               `json:"id"`
	RecipientID string               `json:"recipientId"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	Payload     models.DigestPayload `json:"payload"`
}

// Pending lists unsent digests oldest first. Entries whose payload fails validation are skipped.
func (d *Digest) Pending(ctx context.Context) ([]PendingDigest, error) {
	entries, err := d.digests.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending digests: %w", err)
	}

	pending := make([]PendingDigest, 0, len(entries))

	for _, entry := range entries {
		payload, err := d.Decode(entry.Items)
		if err != nil {
			d.logger.WarnContext(ctx, "Skipping invalid digest", "digest_id", entry.ID, "error", err)

			continue
		}

		pending = append(pending, PendingDigest{
			ID:          entry.ID,
			RecipientID: entry.RecipientID,
			CreatedAt:   entry.CreatedAt,
			UpdatedAt:   entry.UpdatedAt,
			Payload:     *payload,
		})
	}

	return pending, nil
}

// MarkSent empties the entry and stamps the send time. Later drafts open a new entry.
func (d *Digest) MarkSent(ctx context.Context, id string) (*models.DigestQueueEntry, error) {
	entry, err := d.digests.MarkSent(ctx, id, d.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to mark digest %s sent: %w", id, err)
	}

	d.logger.InfoContext(ctx, "Digest marked sent", "digest_id", id, "recipient", entry.RecipientID)

	return entry, nil
}
