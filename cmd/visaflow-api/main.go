package main

import (
	"context"
	"os"

	"github.com/dukex/visaflow/pkg/cmd"
	"github.com/dukex/visaflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "visaflow-api",
		Usage:                 "Trigger scrapes and review visa workflow drafts",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres://... or file://<dir>)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "fetch-timeout",
				Usage:   "Deadline for fetching content in one scrape run",
				Value:   defaultFetchTimeout,
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
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Visaflow API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "visaflow-api", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			err := registerAuditHandlers(ctx, eventBus, logger)
			if err != nil {
				return err
			}

			fetcher := cmd.NewFetcher(logger, cmd.FetcherOptions{
				Timeout:              command.Duration("fetch-timeout"),
				FixturesPath:         command.String("fixtures-path"),
				EmbassyURLTemplate:   command.String("embassy-url-template"),
				UnavailableCountries: command.StringSlice("unavailable-countries"),
			})

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				fetcher,
				cmd.NewTracer(ctx, logger, command.Bool("otel-enabled"), "visaflow-api"),
			)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
