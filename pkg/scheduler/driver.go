// Package scheduler drives periodic scrape cycles over the visa type and country matrix.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/visaflow/pkg/config"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/dukex/visaflow/pkg/services"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Runner scrapes one (visa type, country) pair.
type Runner interface {
	Scrape(ctx context.Context, visaTypeCode, countryCode string) (*services.ScrapeResult, error)
}

// CycleReport counts the outcomes of one cycle.
type CycleReport struct {
	Runs       int
	Drafts     int
	Duplicates int
	Failures   int
	Duration   time.Duration
}

type Driver struct {
	runner     Runner
	references persistence.ReferenceRepository
	config     config.ScraperConfig
	cron       *cron.Cron
	startup    sync.WaitGroup
	logger     *slog.Logger
}

func NewDriver(runner Runner, references persistence.ReferenceRepository, cfg config.ScraperConfig, logger *slog.Logger) (*Driver, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Driver{
		runner:     runner,
		references: references,
		config:     cfg,
		logger:     logger.With("module", "scrape_driver"),
	}, nil
}

// Start schedules cycles and, when configured, runs one immediately in the background.
// Cycles never overlap.
func (d *Driver) Start(ctx context.Context) error {
	adapter := cronLogger{logger: d.logger}

	// One wrapped job is shared with the startup run so the two cannot overlap.
	job := cron.NewChain(
		cron.SkipIfStillRunning(adapter),
		cron.Recover(adapter),
	).Then(cron.FuncJob(func() {
		d.RunCycle(ctx)
	}))

	d.cron = cron.New(cron.WithLogger(adapter))

	id, err := d.cron.AddJob(d.config.Schedule, job)
	if err != nil {
		return fmt.Errorf("failed to schedule scrape cycle %q: %w", d.config.Schedule, err)
	}

	d.logger.InfoContext(ctx, "Scrape cycle scheduled", "id", id, "schedule", d.config.Schedule)

	d.cron.Start()

	if d.config.RunOnStart {
		d.startup.Add(1)

		go func() {
			defer d.startup.Done()

			job.Run()
		}()
	}

	return nil
}

// Stop halts scheduling and waits for a running cycle to return.
func (d *Driver) Stop(ctx context.Context) {
	if d.cron == nil {
		return
	}

	d.logger.InfoContext(ctx, "Stopping scrape driver")

	done := make(chan struct{})

	go func() {
		<-d.cron.Stop().Done()
		d.startup.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// RunCycle scrapes every pair with at most MaxConcurrency runs in flight.
// Individual failures are logged and counted; they never stop the cycle.
func (d *Driver) RunCycle(ctx context.Context) CycleReport {
	started := time.Now()

	visaTypes, err := d.visaTypes(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to load visa types", "error", err)

		return CycleReport{Failures: 1, Duration: time.Since(started)}
	}

	d.logger.InfoContext(ctx, "Scrape cycle started",
		"visa_types", len(visaTypes), "countries", len(d.config.Countries))

	var (
		mu     sync.Mutex
		report CycleReport
		group  errgroup.Group
	)

	group.SetLimit(d.config.MaxConcurrency)

schedule:
	for _, visaType := range visaTypes {
		for _, country := range d.config.Countries {
			if ctx.Err() != nil {
				break schedule
			}

			group.Go(func() error {
				result, err := d.runner.Scrape(ctx, visaType, country)

				mu.Lock()
				defer mu.Unlock()

				report.Runs++

				switch {
				case err != nil:
					report.Failures++

					d.logger.WarnContext(ctx, "Scrape failed", "visa_type", visaType, "country", country, "error", err)
				case result.IsDuplicate:
					report.Duplicates++
				default:
					report.Drafts++
				}

				return nil
			})
		}
	}

	_ = group.Wait()

	report.Duration = time.Since(started)

	d.logger.InfoContext(ctx, "Scrape cycle completed",
		"runs", report.Runs, "drafts", report.Drafts, "duplicates", report.Duplicates,
		"failures", report.Failures, "duration", report.Duration)

	return report
}

func (d *Driver) visaTypes(ctx context.Context) ([]string, error) {
	if len(d.config.VisaTypes) > 0 {
		return d.config.VisaTypes, nil
	}

	all, err := d.references.VisaTypes(ctx)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(all))

	for _, visaType := range all {
		if visaType.IsActive {
			codes = append(codes, visaType.Code)
		}
	}

	return codes, nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
