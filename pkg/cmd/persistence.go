package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/dukex/visaflow/pkg/persistence/file"
	"github.com/dukex/visaflow/pkg/persistence/postgresql"
)

// NewPersistence opens the store named by the URL scheme: postgres:// or postgresql://
// for PostgreSQL, file://<dir> or a bare path for the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to open postgres persistence: %w", err))
		}

		return store
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgres"
	default:
		return "file"
	}
}
