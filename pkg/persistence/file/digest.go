package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/google/uuid"
)

const digestsCollection = "digests"

// DigestRepository stores digest queue entries as one file per entry.
type DigestRepository struct {
	root string
	mu   sync.Mutex
}

func NewDigestRepository(root string) *DigestRepository {
	return &DigestRepository{root: root}
}

func (dr *DigestRepository) AppendOpen(_ context.Context, recipientID string, since time.Time, mutate persistence.DigestMutation) (*models.DigestQueueEntry, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	all, err := dr.loadAll()
	if err != nil {
		return nil, err
	}

	var entry *models.DigestQueueEntry

	for _, candidate := range all {
		if candidate.RecipientID == recipientID && candidate.IsOpen() && !candidate.CreatedAt.Before(since) {
			entry = candidate

			break
		}
	}

	now := time.Now().UTC()

	var current json.RawMessage

	if entry == nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate digest ID: %w", err)
		}

		entry = &models.DigestQueueEntry{
			ID:          id.String(),
			RecipientID: recipientID,
			CreatedAt:   now,
		}
	} else {
		current = entry.Items
	}

	items, err := mutate(current)
	if err != nil {
		return nil, fmt.Errorf("failed to update digest for %s: %w", recipientID, err)
	}

	entry.Items = items
	entry.UpdatedAt = now

	err = writeJSON(dr.root, digestsCollection, entry.ID, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to save digest %s: %w", entry.ID, err)
	}

	return entry, nil
}

func (dr *DigestRepository) Pending(_ context.Context) ([]*models.DigestQueueEntry, error) {
	all, err := dr.loadAll()
	if err != nil {
		return nil, err
	}

	pending := make([]*models.DigestQueueEntry, 0)

	for _, entry := range all {
		if entry.IsOpen() && len(entry.Items) > 0 {
			pending = append(pending, entry)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	return pending, nil
}

func (dr *DigestRepository) GetByID(_ context.Context, id string) (*models.DigestQueueEntry, error) {
	var entry models.DigestQueueEntry

	found, err := readJSON(dr.root, digestsCollection, id, &entry)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("digest %s: %w", id, persistence.ErrDigestNotFound)
	}

	return &entry, nil
}

func (dr *DigestRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) (*models.DigestQueueEntry, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	entry, err := dr.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sent := sentAt.UTC()
	entry.Items = nil
	entry.LastSentAt = &sent
	entry.UpdatedAt = sent

	err = writeJSON(dr.root, digestsCollection, entry.ID, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to save digest %s: %w", entry.ID, err)
	}

	return entry, nil
}

func (dr *DigestRepository) loadAll() ([]*models.DigestQueueEntry, error) {
	names, err := listNames(dr.root, digestsCollection)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.DigestQueueEntry, 0, len(names))

	for _, name := range names {
		var entry models.DigestQueueEntry

		found, err := readJSON(dr.root, digestsCollection, name, &entry)
		if err != nil {
			return nil, err
		}

		if found {
			entries = append(entries, &entry)
		}
	}

	return entries, nil
}
