package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dukex/visaflow/pkg/cmd"
	"github.com/dukex/visaflow/pkg/config"
	"github.com/dukex/visaflow/pkg/eventbus"
	"github.com/dukex/visaflow/pkg/log"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/dukex/visaflow/pkg/scheduler"
	"github.com/dukex/visaflow/pkg/seed"
	"github.com/dukex/visaflow/pkg/services"
	"github.com/urfave/cli/v3"
)

func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.DurationFlag{
			Name:    "fetch-timeout",
			Usage:   "Deadline for fetching content in one scrape run",
			Value:   config.DefaultFetchTimeout,
			Sources: cli.EnvVars("FETCH_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "fixtures-path",
			Usage:   "Directory with embassy and USCIS pages (embedded pages when empty)",
			Sources: cli.EnvVars("FIXTURES_PATH"),
		},
		&cli.StringFlag{
			Name:    "embassy-url-template",
			Usage:   "Live embassy page URL with {country} and {visa} placeholders",
			Sources: cli.EnvVars("EMBASSY_URL_TEMPLATE"),
		},
		&cli.StringSliceFlag{
			Name:    "unavailable-countries",
			Usage:   "Countries whose embassy sources are skipped in favour of USCIS",
			Sources: cli.EnvVars("UNAVAILABLE_COUNTRIES"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}

// pipeline holds everything a scrape needs; close releases it.
type pipeline struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	scraper     *services.Scraper
}

func newPipeline(ctx context.Context, command *cli.Command, logger *slog.Logger) *pipeline {
	store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	bus := cmd.NewEventBus(command.String("event-bus"), "visaflow-scraper", logger)

	fetcher := cmd.NewFetcher(logger, cmd.FetcherOptions{
		Timeout:              command.Duration("fetch-timeout"),
		FixturesPath:         command.String("fixtures-path"),
		EmbassyURLTemplate:   command.String("embassy-url-template"),
		UnavailableCountries: command.StringSlice("unavailable-countries"),
	})

	scraper := services.NewScraper(store, fetcher, services.NewDigest(store, logger), logger,
		services.WithPublisher(bus),
		services.WithTracer(cmd.NewTracer(ctx, logger, command.Bool("otel-enabled"), "visaflow-scraper")),
	)

	return &pipeline{persistence: store, eventBus: bus, scraper: scraper}
}

func (p *pipeline) close(ctx context.Context, logger *slog.Logger) {
	err := p.eventBus.Close()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	err = p.persistence.Close(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Scrape the visa type and country matrix on a schedule",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression or @every interval between cycles",
				Value:   config.DefaultSchedule,
				Sources: cli.EnvVars("SCRAPE_CRON"),
			},
			&cli.StringFlag{
				Name:    "countries",
				Usage:   "Comma separated country codes",
				Value:   strings.Join(config.DefaultCountries, ","),
				Sources: cli.EnvVars("SCRAPE_COUNTRIES"),
			},
			&cli.StringFlag{
				Name:    "visa-types",
				Usage:   "Comma separated visa type codes (all active visa types when empty)",
				Sources: cli.EnvVars("SCRAPE_VISA_TYPES"),
			},
			&cli.IntFlag{
				Name:    "max-concurrency",
				Usage:   "Maximum scrape runs in flight",
				Value:   config.DefaultMaxConcurrency,
				Sources: cli.EnvVars("SCRAPE_MAX_CONCURRENCY"),
			},
			&cli.BoolFlag{
				Name:    "run-on-start",
				Usage:   "Run a cycle immediately at startup",
				Value:   true,
				Sources: cli.EnvVars("SCRAPE_RUN_ON_START"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("scraper")

			cfg := config.ScraperConfig{
				Schedule:       command.String("schedule"),
				Countries:      config.ParseList(command.String("countries")),
				VisaTypes:      config.ParseList(command.String("visa-types")),
				MaxConcurrency: command.Int("max-concurrency"),
				FetchTimeout:   command.Duration("fetch-timeout"),
				RunOnStart:     command.Bool("run-on-start"),
			}

			p := newPipeline(ctx, command, logger)
			defer p.close(ctx, logger)

			driver, err := scheduler.NewDriver(p.scraper, p.persistence.ReferenceRepository(), cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = driver.Start(ctx)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Scrape driver running", "schedule", cfg.Schedule, "countries", cfg.Countries)

			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()

			driver.Stop(stopCtx)

			return nil
		},
	}
}

func OnceCommand() *cli.Command {
	return &cli.Command{
		Name:      "once",
		Usage:     "Scrape a single visa type and country and print the result",
		ArgsUsage: "<visa-type> <country>",
		Flags:     pipelineFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("scraper")

			if command.Args().Len() != 2 {
				return fmt.Errorf("expected <visa-type> <country>, got %d arguments", command.Args().Len())
			}

			p := newPipeline(ctx, command, logger)
			defer p.close(ctx, logger)

			result, err := p.scraper.Scrape(ctx, command.Args().Get(0), command.Args().Get(1))

			printResult(command, result)

			return err
		},
	}
}

func printResult(command *cli.Command, result *services.ScrapeResult) {
	out := command.Root().Writer

	fmt.Fprintf(out, "success=%t duplicate=%t workflow=%s\n", result.Success, result.IsDuplicate, result.WorkflowID)

	for _, message := range result.Messages {
		fmt.Fprintln(out, "  "+message)
	}

	for _, failure := range result.Errors {
		fmt.Fprintln(out, "  error: "+failure)
	}
}

func SeedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Load visa types, country mappings and reviewers from a YAML file",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("seed")

			if command.Args().Len() != 1 {
				return fmt.Errorf("expected <file>, got %d arguments", command.Args().Len())
			}

			file, err := seed.Load(command.Args().First())
			if err != nil {
				return err
			}

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := store.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			_, err = seed.Apply(ctx, store.ReferenceRepository(), file, logger)

			return err
		},
	}
}
