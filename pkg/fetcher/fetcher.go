// Package fetcher retrieves raw procedural content from tiered sources.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/visaflow/pkg/models"
)

var (
	// ErrSourceUnavailable is returned by a source that has nothing for the requested pair.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourcesExhausted is returned when no source produced content.
	ErrSourcesExhausted = errors.New("all sources exhausted")
)

// Source produces one raw capture for a visa type and country.
type Source interface {
	Name() string
	Fetch(ctx context.Context, visaTypeCode, countryCode string) (*models.RawCapture, error)
}

// Fetcher tries its sources in priority order and returns the first capture produced.
type Fetcher struct {
	sources []Source
	timeout time.Duration
	logger  *slog.Logger
}

// NewFetcher builds a fetcher over sources, highest priority first. A zero timeout disables
// the deadline.
func NewFetcher(logger *slog.Logger, timeout time.Duration, sources ...Source) *Fetcher {
	return &Fetcher{
		sources: sources,
		timeout: timeout,
		logger:  logger.With("module", "fetcher"),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, visaTypeCode, countryCode string) (*models.RawCapture, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	errs := make([]error, 0, len(f.sources))

	for _, source := range f.sources {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("fetch deadline: %w", ctx.Err()))

			break
		}

		capture, err := source.Fetch(ctx, visaTypeCode, countryCode)
		if err != nil {
			f.logger.InfoContext(ctx, "Source declined, trying next",
				"source", source.Name(), "visa_type", visaTypeCode, "country", countryCode, "error", err)

			errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))

			continue
		}

		if capture.Fingerprint == "" {
			capture.Fingerprint = models.Fingerprint(capture.Body)
		}

		f.logger.DebugContext(ctx, "Content fetched",
			"source", capture.Source, "url", capture.URL, "fingerprint", capture.Fingerprint)

		return capture, nil
	}

	return nil, fmt.Errorf("%w for %s/%s: %w", ErrSourcesExhausted, visaTypeCode, countryCode, errors.Join(errs...))
}

func newCapture(source, visaTypeCode, countryCode, url, server, body string) *models.RawCapture {
	return &models.RawCapture{
		Source:       source,
		CountryCode:  countryCode,
		VisaTypeCode: visaTypeCode,
		URL:          url,
		FetchedAt:    time.Now().UTC(),
		ContentType:  "text/html",
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
			"Server":       server,
		},
		Body:        body,
		Fingerprint: models.Fingerprint(body),
	}
}
