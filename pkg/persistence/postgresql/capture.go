package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/google/uuid"
)

// CaptureRepository handles raw capture database operations.
type CaptureRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCaptureRepository(db *sql.DB, logger *slog.Logger) *CaptureRepository {
	return &CaptureRepository{db: db, logger: logger}
}

func (r *CaptureRepository) Save(ctx context.Context, capture *models.RawCapture) (bool, error) {
	if capture.Fingerprint == "" {
		capture.Fingerprint = models.Fingerprint(capture.Body)
	}

	if capture.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return false, fmt.Errorf("failed to generate capture ID: %w", err)
		}

		capture.ID = id.String()
	}

	headers, err := json.Marshal(capture.Headers)
	if err != nil {
		return false, fmt.Errorf("failed to marshal headers: %w", err)
	}

	query := `
		INSERT INTO raw_captures (id, source, country_code, visa_type_code, url, fetched_at, content_type, headers, body, fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (fingerprint) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		capture.ID,
		capture.Source,
		capture.CountryCode,
		capture.VisaTypeCode,
		capture.URL,
		capture.FetchedAt,
		capture.ContentType,
		headers,
		capture.Body,
		capture.Fingerprint,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save capture %s: %w", capture.Fingerprint, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

func (r *CaptureRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*models.RawCapture, error) {
	query := `
		SELECT
			id
		  , source
		  , country_code
		  , visa_type_code
		  , url
		  , fetched_at
		  , content_type
		  , headers
		  , body
		  , fingerprint
		FROM raw_captures
		WHERE fingerprint = $1
	`

	var (
		capture models.RawCapture
		headers []byte
	)

	err := r.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&capture.ID,
		&capture.Source,
		&capture.CountryCode,
		&capture.VisaTypeCode,
		&capture.URL,
		&capture.FetchedAt,
		&capture.ContentType,
		&headers,
		&capture.Body,
		&capture.Fingerprint,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan capture: %w", err)
	}

	err = json.Unmarshal(headers, &capture.Headers)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
	}

	return &capture, nil
}
