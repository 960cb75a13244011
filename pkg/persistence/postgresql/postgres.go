// Package postgresql provides PostgreSQL persistence implementation for captures, workflow versions and digests.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/dukex/visaflow/pkg/persistence/sqlbase"
	"github.com/lib/pq"
)

const uniqueViolation = pq.ErrorCode("23505")

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	captureRepo   *CaptureRepository
	workflowRepo  *WorkflowRepository
	referenceRepo *ReferenceRepository
	digestRepo    *DigestRepository
	migrations    *sqlbase.MigrationManager
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:            database,
		logger:        logger,
		captureRepo:   NewCaptureRepository(database, logger),
		workflowRepo:  NewWorkflowRepository(database, logger),
		referenceRepo: NewReferenceRepository(database, logger),
		digestRepo:    NewDigestRepository(database, logger),
		migrations:    migrationManager,
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck pings the database and checks the schema has not fallen behind this binary.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	current, err := p.migrations.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	if latest := p.migrations.LatestVersion(); current < latest {
		return fmt.Errorf("database schema at version %d, expected %d", current, latest)
	}

	return nil
}

func (p *Persistence) CaptureRepository() persistence.CaptureRepository {
	return p.captureRepo
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ReferenceRepository() persistence.ReferenceRepository {
	return p.referenceRepo
}

func (p *Persistence) DigestRepository() persistence.DigestRepository {
	return p.digestRepo
}

// uniqueConstraint returns the name of the violated unique index, or "" for any other error.
func uniqueConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint
	}

	return ""
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
