package file

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraft(visaTypeID int, country, hash string) *models.WorkflowVersion {
	return &models.WorkflowVersion{
		VisaTypeID:  visaTypeID,
		CountryCode: country,
		Version:     1,
		Source:      models.SourceEmbassy,
		ScrapeHash:  hash,
		ScrapedAt:   time.Now().UTC(),
		Steps: []models.WorkflowStep{
			{Ordinal: 1, Key: "visa_application_form", Title: "Visa Application Form"},
			{Ordinal: 2, Key: "medical_examination", Title: "Medical Examination"},
		},
		Doctors: []models.WorkflowDoctor{
			{Name: "Dr. Ana Lopez", City: "Madrid", CountryCode: country},
		},
	}
}

func TestWorkflowRepository_CreateDraft(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	draft := newDraft(1, "ES", "hash-1")
	require.NoError(t, repo.CreateDraft(t.Context(), draft))

	assert.NotEmpty(t, draft.ID)
	assert.Equal(t, models.WorkflowStatusPendingApproval, draft.Status)
	assert.False(t, draft.CreatedAt.IsZero())

	for _, step := range draft.Steps {
		assert.NotEmpty(t, step.ID)
		assert.Equal(t, draft.ID, step.WorkflowVersionID)
	}

	loaded, err := repo.GetByID(t.Context(), draft.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Steps, 2)
	assert.Len(t, loaded.Doctors, 1)
	assert.Equal(t, draft.Doctors[0].ID, loaded.Doctors[0].ID)
}

func TestWorkflowRepository_CreateDraft_DuplicatePendingHash(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	require.NoError(t, repo.CreateDraft(t.Context(), newDraft(1, "ES", "same")))

	err := repo.CreateDraft(t.Context(), newDraft(1, "ES", "same"))
	require.Error(t, err)
	assert.True(t, persistence.IsDuplicateDraft(err))

	// Same content for another country or visa type is a different pair.
	require.NoError(t, repo.CreateDraft(t.Context(), newDraft(1, "FR", "same")))
	require.NoError(t, repo.CreateDraft(t.Context(), newDraft(2, "ES", "same")))
}

func TestWorkflowRepository_CreateDraft_ConcurrentSameHash(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		created    int
		duplicates int
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := repo.CreateDraft(t.Context(), newDraft(1, "ES", "race"))

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				created++
			} else if persistence.IsDuplicateDraft(err) {
				duplicates++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 7, duplicates)
}

func TestWorkflowRepository_ReadsDuringWritesForOtherPair(t *testing.T) {
	root := t.TempDir()
	repo := NewWorkflowRepository(root)
	digests := NewDigestRepository(root)

	require.NoError(t, repo.CreateDraft(t.Context(), newDraft(1, "DE", "de-hash")))

	done := make(chan struct{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readErrs []error
	)

	record := func(err error) {
		if err == nil {
			return
		}

		mu.Lock()
		defer mu.Unlock()

		readErrs = append(readErrs, err)
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			select {
			case <-done:
				return
			default:
			}

			pending, err := repo.ListPending(t.Context(), persistence.ListPendingOptions{CountryCode: "DE"})
			record(err)

			if err == nil && len(pending) != 1 {
				record(fmt.Errorf("expected one DE draft, got %d", len(pending)))
			}

			_, err = repo.FindPendingByHash(t.Context(), 1, "DE", "de-hash")
			record(err)

			_, err = repo.LatestApproved(t.Context(), 1, "DE")
			record(err)

			_, err = digests.Pending(t.Context())
			record(err)
		}
	}()

	for i := range 300 {
		require.NoError(t, repo.CreateDraft(t.Context(), newDraft(1, "ES", fmt.Sprintf("es-%d", i))))

		_, err := digests.AppendOpen(t.Context(), "admin-1", time.Now().UTC().Add(-time.Hour), func(_ json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(fmt.Sprintf(`{"count":%d}`, i)), nil
		})
		require.NoError(t, err)
	}

	close(done)
	wg.Wait()

	assert.Empty(t, readErrs)
}

func TestWorkflowRepository_CreateDraft_StepKeyConflict(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	draft := newDraft(1, "ES", "hash")
	draft.Steps = append(draft.Steps, models.WorkflowStep{Ordinal: 3, Key: "medical_examination", Title: "Medical Examination Results"})

	err := repo.CreateDraft(t.Context(), draft)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrStepKeyConflict)
}

func TestWorkflowRepository_GetByID_NotFound(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	version, err := repo.GetByID(t.Context(), "missing")
	assert.Nil(t, version)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_FindPendingByHash(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	draft := newDraft(1, "ES", "abc")
	require.NoError(t, repo.CreateDraft(t.Context(), draft))

	found, err := repo.FindPendingByHash(t.Context(), 1, "ES", "abc")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, draft.ID, found.ID)

	missing, err := repo.FindPendingByHash(t.Context(), 1, "ES", "other")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Approved versions no longer block a new draft with the same content.
	_, err = repo.Approve(t.Context(), draft.ID, persistence.ApproveParams{ReviewerID: "admin", ApprovedAt: time.Now()})
	require.NoError(t, err)

	afterApproval, err := repo.FindPendingByHash(t.Context(), 1, "ES", "abc")
	require.NoError(t, err)
	assert.Nil(t, afterApproval)
}

func TestWorkflowRepository_ApproveAssignsMonotonicVersions(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	first := newDraft(1, "ES", "v1")
	second := newDraft(1, "ES", "v2")
	other := newDraft(1, "FR", "v1")

	for _, draft := range []*models.WorkflowVersion{first, second, other} {
		require.NoError(t, repo.CreateDraft(t.Context(), draft))
	}

	approvedFirst, err := repo.Approve(t.Context(), first.ID, persistence.ApproveParams{ReviewerID: "admin-1", Notes: "looks good", ApprovedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 1, approvedFirst.Version)
	assert.Equal(t, models.WorkflowStatusApproved, approvedFirst.Status)
	require.NotNil(t, approvedFirst.ApprovedBy)
	assert.Equal(t, "admin-1", *approvedFirst.ApprovedBy)
	assert.NotNil(t, approvedFirst.ApprovedAt)
	assert.Equal(t, "looks good", approvedFirst.Notes)

	approvedSecond, err := repo.Approve(t.Context(), second.ID, persistence.ApproveParams{ReviewerID: "admin-1", ApprovedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 2, approvedSecond.Version)

	approvedOther, err := repo.Approve(t.Context(), other.ID, persistence.ApproveParams{ReviewerID: "admin-1", ApprovedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 1, approvedOther.Version)

	latest, err := repo.LatestApproved(t.Context(), 1, "ES")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	previous, err := repo.LatestApproved(t.Context(), 1, "ES", second.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, previous.ID)
}

func TestWorkflowRepository_ApproveAndRejectRequirePending(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	approved := newDraft(1, "ES", "a")
	rejected := newDraft(1, "ES", "b")

	require.NoError(t, repo.CreateDraft(t.Context(), approved))
	require.NoError(t, repo.CreateDraft(t.Context(), rejected))

	_, err := repo.Approve(t.Context(), approved.ID, persistence.ApproveParams{ReviewerID: "admin", ApprovedAt: time.Now()})
	require.NoError(t, err)

	result, err := repo.Reject(t.Context(), rejected.ID, persistence.RejectParams{ReviewerID: "admin", Notes: "wrong page: menu only", RejectedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusRejected, result.Status)
	assert.Equal(t, "wrong page: menu only", result.Notes)

	tests := []struct {
		name string
		run  func() error
	}{
		{"approve approved", func() error {
			_, err := repo.Approve(t.Context(), approved.ID, persistence.ApproveParams{ApprovedAt: time.Now()})
			return err
		}},
		{"reject approved", func() error {
			_, err := repo.Reject(t.Context(), approved.ID, persistence.RejectParams{RejectedAt: time.Now()})
			return err
		}},
		{"approve rejected", func() error {
			_, err := repo.Approve(t.Context(), rejected.ID, persistence.ApproveParams{ApprovedAt: time.Now()})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, persistence.IsStatusConflict(err))
			assert.False(t, persistence.IsWorkflowNotFound(err))
		})
	}

	_, err = repo.Approve(t.Context(), "missing", persistence.ApproveParams{ApprovedAt: time.Now()})
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_ConcurrentApproveSingleWinner(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	draft := newDraft(1, "ES", "x")
	require.NoError(t, repo.CreateDraft(t.Context(), draft))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := repo.Approve(t.Context(), draft.ID, persistence.ApproveParams{ReviewerID: "admin", ApprovedAt: time.Now()})

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				winners++
			} else if persistence.IsStatusConflict(err) {
				conflicts++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 4, conflicts)
}

func TestWorkflowRepository_ListPending(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	older := newDraft(1, "ES", "1")
	older.ScrapedAt = base
	newer := newDraft(1, "FR", "2")
	newer.ScrapedAt = base.Add(time.Hour)
	otherVisa := newDraft(2, "ES", "3")
	otherVisa.ScrapedAt = base.Add(2 * time.Hour)

	for _, draft := range []*models.WorkflowVersion{older, newer, otherVisa} {
		require.NoError(t, repo.CreateDraft(t.Context(), draft))
	}

	all, err := repo.ListPending(t.Context(), persistence.ListPendingOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, otherVisa.ID, all[0].ID)
	assert.Equal(t, newer.ID, all[1].ID)
	assert.Equal(t, older.ID, all[2].ID)

	byVisa, err := repo.ListPending(t.Context(), persistence.ListPendingOptions{VisaTypeID: 1})
	require.NoError(t, err)
	assert.Len(t, byVisa, 2)

	byCountry, err := repo.ListPending(t.Context(), persistence.ListPendingOptions{VisaTypeID: 1, CountryCode: "ES"})
	require.NoError(t, err)
	require.Len(t, byCountry, 1)
	assert.Equal(t, older.ID, byCountry[0].ID)
}
