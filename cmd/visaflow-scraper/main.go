package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	err := newRootCommand().Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:                  "visaflow-scraper",
		Usage:                 "Scrape visa workflow content into pending drafts",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres://... or file://<dir>)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			RunCommand(),
			OnceCommand(),
			SeedCommand(),
		},
	}
}
