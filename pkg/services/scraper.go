package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/visaflow/pkg/country"
	"github.com/dukex/visaflow/pkg/diff"
	"github.com/dukex/visaflow/pkg/eventbus"
	"github.com/dukex/visaflow/pkg/events"
	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/normalizer"
	"github.com/dukex/visaflow/pkg/otelhelper"
	"github.com/dukex/visaflow/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentFetcher returns raw content for a visa type in a country.
type ContentFetcher interface {
	Fetch(ctx context.Context, visaTypeCode, countryCode string) (*models.RawCapture, error)
}

// ScrapeResult reports the outcome of one scrape run.
type ScrapeResult struct {
	Success     bool     `json:"success"`
	WorkflowID  string   `json:"workflowId,omitempty"`
	IsDuplicate bool     `json:"isDuplicate"`
	Messages    []string `json:"messages"`
	Errors      []string `json:"errors"`
}

func (r *ScrapeResult) message(format string, args ...any) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// Scraper runs fetch, normalize, diff, version and notify for one (visa type, country) pair.
type Scraper struct {
	persistence persistence.Persistence
	resolver    *country.Resolver
	fetcher     ContentFetcher
	normalizer  *normalizer.Normalizer
	diff        *diff.Engine
	digests     *Digest
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	service     string
	logger      *slog.Logger
}

type ScraperOption func(*Scraper)

// WithPublisher publishes a draft created event after each new draft.
func WithPublisher(publisher eventbus.EventPublisher) ScraperOption {
	return func(s *Scraper) {
		s.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) ScraperOption {
	return func(s *Scraper) {
		s.tracer = tracer
	}
}

// WithMappingService changes the country mapping service consulted before fetching.
func WithMappingService(service string) ScraperOption {
	return func(s *Scraper) {
		s.service = service
	}
}

func NewScraper(p persistence.Persistence, fetcher ContentFetcher, digests *Digest, logger *slog.Logger, opts ...ScraperOption) *Scraper {
	s := &Scraper{
		persistence: p,
		resolver:    country.NewResolver(p.ReferenceRepository(), logger),
		fetcher:     fetcher,
		normalizer:  normalizer.New(logger),
		diff:        diff.NewEngine(),
		digests:     digests,
		tracer:      otelhelper.NewNoopTracer("visaflow-scraper"),
		service:     country.PanelPhysicianService,
		logger:      logger.With("module", "scraper"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scrape runs the pipeline. Duplicates are reported as success with IsDuplicate set.
// On failure the returned result carries the reason and the error classifies it.
func (s *Scraper) Scrape(ctx context.Context, visaTypeCode, countryCode string) (*ScrapeResult, error) {
	visaTypeCode = strings.ToUpper(strings.TrimSpace(visaTypeCode))
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scraper.scrape", otelhelper.PairAttributes(visaTypeCode, countryCode)...)
	defer span.End()

	result := &ScrapeResult{Messages: make([]string, 0), Errors: make([]string, 0)}

	fail := func(err error) (*ScrapeResult, error) {
		otelhelper.SetError(span, err)
		s.logger.ErrorContext(ctx, "Scrape failed", "visa_type", visaTypeCode, "country", countryCode, "error", err)

		result.Success = false
		result.Errors = append(result.Errors, err.Error())

		return result, err
	}

	if visaTypeCode == "" || len(countryCode) != 2 {
		return fail(NewValidationError("scrape", "invalid_request", "visa type and a two letter country code are required", ErrInvalidRequest))
	}

	visaType, err := s.persistence.ReferenceRepository().VisaTypeByCode(ctx, visaTypeCode)
	if err != nil {
		if persistence.IsVisaTypeNotFound(err) {
			return fail(newUnknownVisaTypeError(visaTypeCode, err))
		}

		return fail(fmt.Errorf("failed to look up visa type %s: %w", visaTypeCode, err))
	}

	effective := s.resolver.Resolve(ctx, s.service, countryCode)
	if effective != countryCode {
		result.message("Using %s content for %s", effective, countryCode)
	}

	capture, err := s.fetcher.Fetch(ctx, visaType.Code, effective)
	if err != nil {
		return fail(err)
	}

	span.SetAttributes(
		attribute.String(otelhelper.SourceKey, capture.Source),
		attribute.String(otelhelper.FingerprintKey, capture.Fingerprint),
	)

	created, err := s.persistence.CaptureRepository().Save(ctx, capture)
	if err != nil {
		return fail(fmt.Errorf("failed to store raw capture: %w", err))
	}

	if created {
		result.message("Fetched %s content from %s", capture.Source, capture.URL)
	} else {
		result.message("Content from %s unchanged since a previous capture", capture.URL)
	}

	normalized, err := s.normalizer.Normalize(ctx, capture)
	if err != nil {
		return fail(err)
	}

	workflows := s.persistence.WorkflowRepository()

	existing, err := workflows.FindPendingByHash(ctx, visaType.ID, countryCode, normalized.ContentHash)
	if err != nil {
		return fail(fmt.Errorf("failed to check pending drafts: %w", err))
	}

	if existing != nil {
		return s.duplicate(ctx, span, result, existing.ID), nil
	}

	prior, err := workflows.LatestApproved(ctx, visaType.ID, countryCode)
	if err != nil {
		return fail(fmt.Errorf("failed to load approved version: %w", err))
	}

	draft := newDraft(visaType.ID, countryCode, capture, normalized, prior)

	err = workflows.CreateDraft(ctx, draft)
	if err != nil {
		if !persistence.IsDuplicateDraft(err) {
			return fail(fmt.Errorf("failed to create draft: %w", err))
		}

		// A concurrent run for the same pair stored this content first.
		winner, findErr := workflows.FindPendingByHash(ctx, visaType.ID, countryCode, normalized.ContentHash)
		if findErr != nil || winner == nil {
			return fail(errors.Join(err, findErr))
		}

		return s.duplicate(ctx, span, result, winner.ID), nil
	}

	changes := s.diff.Diff(prior, normalized)

	result.Success = true
	result.WorkflowID = draft.ID
	result.message("Created draft version %d with %d steps and %d doctors",
		draft.Version, draft.Summary.StepCount, draft.Summary.DoctorCount)

	if prior == nil {
		result.message("No approved version yet, %d steps are new", changes.TotalChanges)
	} else {
		result.message("%d changes against approved version %d (%d added, %d removed, %d modified)",
			changes.TotalChanges, prior.Version, len(changes.AddedSteps), len(changes.RemovedSteps), len(changes.ModifiedSteps))
	}

	otelhelper.SetDraftOutcome(span, draft.ID, false, changes.TotalChanges)

	if s.digests != nil {
		for _, failure := range s.digests.Enqueue(ctx, draft, changes) {
			result.Errors = append(result.Errors, failure.Error())
		}
	}

	s.publish(ctx, result, draft, changes)

	s.logger.InfoContext(ctx, "Draft created",
		"workflow_id", draft.ID, "visa_type", visaType.Code, "country", countryCode,
		"source", draft.Source, "version", draft.Version, "changes", changes.TotalChanges)

	return result, nil
}

func (s *Scraper) duplicate(ctx context.Context, span trace.Span, result *ScrapeResult, workflowID string) *ScrapeResult {
	s.logger.InfoContext(ctx, "Identical draft already pending", "workflow_id", workflowID)
	otelhelper.SetDraftOutcome(span, workflowID, true, 0)

	result.Success = true
	result.IsDuplicate = true
	result.WorkflowID = workflowID
	result.message("Identical content is already pending review as %s", workflowID)

	return result
}

func (s *Scraper) publish(ctx context.Context, result *ScrapeResult, draft *models.WorkflowVersion, changes models.DiffResult) {
	if s.publisher == nil {
		return
	}

	event := events.DraftCreated{
		BaseEvent:    events.NewBaseEvent(events.DraftCreatedEvent, draft.ID, draft.VisaTypeID, draft.CountryCode),
		Version:      draft.Version,
		Source:       draft.Source,
		ScrapeHash:   draft.ScrapeHash,
		StepCount:    draft.Summary.StepCount,
		DoctorCount:  draft.Summary.DoctorCount,
		TotalChanges: changes.TotalChanges,
	}

	err := s.publisher.Publish(ctx, pairKey(draft), event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish draft event", "workflow_id", draft.ID, "error", err)

		result.Errors = append(result.Errors, fmt.Sprintf("failed to publish draft event: %v", err))
	}
}

func pairKey(version *models.WorkflowVersion) string {
	return fmt.Sprintf("%d/%s", version.VisaTypeID, version.CountryCode)
}

func newDraft(visaTypeID int, countryCode string, capture *models.RawCapture, normalized *models.NormalizedWorkflow, prior *models.WorkflowVersion) *models.WorkflowVersion {
	version := 1
	if prior != nil {
		version = prior.Version + 1
	}

	steps := make([]models.WorkflowStep, 0, len(normalized.Steps))
	for _, step := range normalized.Steps {
		steps = append(steps, models.WorkflowStep{
			Ordinal:     step.Ordinal,
			Key:         step.Key,
			Title:       step.Title,
			Description: step.Description,
			Data:        step.Data,
		})
	}

	doctors := make([]models.WorkflowDoctor, 0, len(normalized.Doctors))
	for _, doctor := range normalized.Doctors {
		doctors = append(doctors, models.WorkflowDoctor{
			Name:        doctor.Name,
			Address:     doctor.Address,
			Phone:       doctor.Phone,
			City:        doctor.City,
			CountryCode: doctor.CountryCode,
			SourceURL:   doctor.SourceURL,
			Extras:      doctor.Extras,
		})
	}

	return &models.WorkflowVersion{
		VisaTypeID:  visaTypeID,
		CountryCode: countryCode,
		Version:     version,
		Status:      models.WorkflowStatusPendingApproval,
		Source:      normalized.Source,
		ScrapeHash:  normalized.ContentHash,
		ScrapedAt:   capture.FetchedAt,
		Summary:     models.NewSummary(normalized),
		Steps:       steps,
		Doctors:     doctors,
	}
}
