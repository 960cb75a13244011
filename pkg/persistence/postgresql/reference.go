package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
)

// ReferenceRepository handles visa types, country mappings and reviewers.
type ReferenceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewReferenceRepository(db *sql.DB, logger *slog.Logger) *ReferenceRepository {
	return &ReferenceRepository{db: db, logger: logger}
}

func (r *ReferenceRepository) VisaTypeByCode(ctx context.Context, code string) (*models.VisaType, error) {
	var visaType models.VisaType

	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, name, is_active
		FROM visa_types
		WHERE UPPER(code) = UPPER($1)
	`, code).Scan(&visaType.ID, &visaType.Code, &visaType.Name, &visaType.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.ReferenceError{Op: "VisaTypeByCode", Key: code, Err: persistence.ErrVisaTypeNotFound}
		}

		return nil, fmt.Errorf("failed to scan visa type: %w", err)
	}

	return &visaType, nil
}

func (r *ReferenceRepository) VisaTypes(ctx context.Context) ([]*models.VisaType, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, code, name, is_active FROM visa_types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query visa types: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	visaTypes := make([]*models.VisaType, 0)

	for rows.Next() {
		var visaType models.VisaType

		err = rows.Scan(&visaType.ID, &visaType.Code, &visaType.Name, &visaType.IsActive)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visa type: %w", err)
		}

		visaTypes = append(visaTypes, &visaType)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating visa types: %w", err)
	}

	return visaTypes, nil
}

func (r *ReferenceRepository) SaveVisaType(ctx context.Context, visaType *models.VisaType) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO visa_types (id, code, name, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			is_active = EXCLUDED.is_active
	`, visaType.ID, visaType.Code, visaType.Name, visaType.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save visa type %s: %w", visaType.Code, err)
	}

	return nil
}

func (r *ReferenceRepository) MappingFor(ctx context.Context, service, fromCountry string) (*models.CountryServiceMapping, error) {
	var mapping models.CountryServiceMapping

	err := r.db.QueryRowContext(ctx, `
		SELECT service, from_country, to_country, notes
		FROM country_service_mappings
		WHERE service = $1 AND from_country = $2
	`, service, fromCountry).Scan(&mapping.Service, &mapping.FromCountry, &mapping.ToCountry, &mapping.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan country mapping: %w", err)
	}

	return &mapping, nil
}

func (r *ReferenceRepository) SaveMapping(ctx context.Context, mapping *models.CountryServiceMapping) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO country_service_mappings (service, from_country, to_country, notes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (service, from_country) DO UPDATE SET
			to_country = EXCLUDED.to_country,
			notes = EXCLUDED.notes
	`, mapping.Service, mapping.FromCountry, mapping.ToCountry, mapping.Notes)
	if err != nil {
		return fmt.Errorf("failed to save mapping %s/%s: %w", mapping.Service, mapping.FromCountry, err)
	}

	return nil
}

func (r *ReferenceRepository) Reviewers(ctx context.Context) ([]*models.Reviewer, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, email, name FROM reviewers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query reviewers: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	reviewers := make([]*models.Reviewer, 0)

	for rows.Next() {
		var reviewer models.Reviewer

		err = rows.Scan(&reviewer.ID, &reviewer.Email, &reviewer.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reviewer: %w", err)
		}

		reviewers = append(reviewers, &reviewer)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating reviewers: %w", err)
	}

	return reviewers, nil
}

func (r *ReferenceRepository) SaveReviewer(ctx context.Context, reviewer *models.Reviewer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviewers (id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name
	`, reviewer.ID, reviewer.Email, reviewer.Name)
	if err != nil {
		return fmt.Errorf("failed to save reviewer %s: %w", reviewer.ID, err)
	}

	return nil
}
