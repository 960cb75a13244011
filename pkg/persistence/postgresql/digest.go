package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/google/uuid"
)

const digestColumns = "id, recipient_id, items, last_sent_at, created_at, updated_at"

// DigestRepository handles digest queue database operations.
type DigestRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDigestRepository(db *sql.DB, logger *slog.Logger) *DigestRepository {
	return &DigestRepository{db: db, logger: logger}
}

// AppendOpen serializes writers for one recipient with a transaction-scoped advisory lock.
func (r *DigestRepository) AppendOpen(ctx context.Context, recipientID string, since time.Time, mutate persistence.DigestMutation) (entry *models.DigestQueueEntry, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext('digest:' || $1::text))", recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock digest recipient: %w", err)
	}

	row := tx.QueryRowContext(ctx, "SELECT "+digestColumns+`
		FROM digest_queue_entries
		WHERE recipient_id = $1 AND last_sent_at IS NULL AND created_at >= $2
		ORDER BY created_at
		LIMIT 1
	`, recipientID, since.UTC())

	now := time.Now().UTC()

	entry, err = scanDigest(row)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		var id uuid.UUID

		id, err = uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate digest ID: %w", err)
		}

		entry = &models.DigestQueueEntry{ID: id.String(), RecipientID: recipientID, CreatedAt: now}

		entry.Items, err = mutate(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to update digest for %s: %w", recipientID, err)
		}

		entry.UpdatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO digest_queue_entries (id, recipient_id, items, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, entry.ID, entry.RecipientID, []byte(entry.Items), entry.CreatedAt, entry.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert digest: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to scan digest: %w", err)
	default:
		entry.Items, err = mutate(entry.Items)
		if err != nil {
			return nil, fmt.Errorf("failed to update digest for %s: %w", recipientID, err)
		}

		entry.UpdatedAt = now

		_, err = tx.ExecContext(ctx, "UPDATE digest_queue_entries SET items = $2, updated_at = $3 WHERE id = $1",
			entry.ID, []byte(entry.Items), entry.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to update digest: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit digest: %w", err)
	}

	return entry, nil
}

func (r *DigestRepository) Pending(ctx context.Context) ([]*models.DigestQueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+digestColumns+`
		FROM digest_queue_entries
		WHERE last_sent_at IS NULL AND items IS NOT NULL
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query digests: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	entries := make([]*models.DigestQueueEntry, 0)

	for rows.Next() {
		entry, err := scanDigest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating digests: %w", err)
	}

	return entries, nil
}

func (r *DigestRepository) GetByID(ctx context.Context, id string) (*models.DigestQueueEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("digest %s: %w", id, persistence.ErrDigestNotFound)
	}

	entry, err := scanDigest(r.db.QueryRowContext(ctx, "SELECT "+digestColumns+" FROM digest_queue_entries WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("digest %s: %w", id, persistence.ErrDigestNotFound)
		}

		return nil, fmt.Errorf("failed to scan digest: %w", err)
	}

	return entry, nil
}

func (r *DigestRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) (*models.DigestQueueEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("digest %s: %w", id, persistence.ErrDigestNotFound)
	}

	sent := sentAt.UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE digest_queue_entries
		SET items = NULL, last_sent_at = $2, updated_at = $2
		WHERE id = $1
	`, id, sent)
	if err != nil {
		return nil, fmt.Errorf("failed to mark digest sent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return nil, fmt.Errorf("digest %s: %w", id, persistence.ErrDigestNotFound)
	}

	return r.GetByID(ctx, id)
}

func scanDigest(row scanner) (*models.DigestQueueEntry, error) {
	var (
		entry      models.DigestQueueEntry
		items      []byte
		lastSentAt sql.NullTime
	)

	err := row.Scan(&entry.ID, &entry.RecipientID, &items, &lastSentAt, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		entry.Items = json.RawMessage(items)
	}

	if lastSentAt.Valid {
		entry.LastSentAt = &lastSentAt.Time
	}

	return &entry, nil
}
