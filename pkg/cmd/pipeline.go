package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/dukex/visaflow/pkg/fetcher"
	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/trace"
)

// FetcherOptions selects the content sources of the fetch chain.
type FetcherOptions struct {
	Timeout time.Duration
	// FixturesPath overrides the embedded embassy and USCIS pages.
	FixturesPath string
	// EmbassyURLTemplate adds a live embassy source tried before the fixtures.
	EmbassyURLTemplate string
	// UnavailableCountries are declined by both embassy tiers, so they fall through to USCIS.
	UnavailableCountries []string
}

// NewFetcher builds the source chain: live embassy (when configured), fixture embassy, USCIS.
// Both embassy tiers share one availability set.
func NewFetcher(logger *slog.Logger, opts FetcherOptions) *fetcher.Fetcher {
	var fixtures fs.FS = fetcher.DefaultFixtures()
	if opts.FixturesPath != "" {
		fixtures = os.DirFS(opts.FixturesPath)
	}

	availability := fetcher.NewAvailability(opts.UnavailableCountries...)
	sources := make([]fetcher.Source, 0, 3)

	if opts.EmbassyURLTemplate != "" {
		live, err := fetcher.NewHTTPSource(models.SourceEmbassy, opts.EmbassyURLTemplate,
			fetcher.WithHTTPAvailability(availability))
		if err != nil {
			panic(fmt.Errorf("failed to create live embassy source: %w", err))
		}

		sources = append(sources, live)
	}

	sources = append(sources,
		fetcher.NewEmbassySource(fixtures, fetcher.WithAvailability(availability)),
		fetcher.NewUSCISSource(fixtures),
	)

	return fetcher.NewFetcher(logger, opts.Timeout, sources...)
}

// NewTracer returns an OTLP tracer when enabled and a no-op tracer otherwise.
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, logger *slog.Logger, enabled bool, serviceName string) trace.Tracer {
	if !enabled {
		return otelhelper.NewNoopTracer(serviceName)
	}

	tracer, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		logger.WarnContext(ctx, "Failed to initialize tracer, tracing disabled", "error", err)

		return otelhelper.NewNoopTracer(serviceName)
	}

	return tracer
}
