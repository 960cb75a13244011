package diff_test

import (
	"testing"

	"github.com/dukex/visaflow/pkg/diff"
	"github.com/dukex/visaflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approved(steps ...models.WorkflowStep) *models.WorkflowVersion {
	return &models.WorkflowVersion{Status: models.WorkflowStatusApproved, Version: 1, Steps: steps}
}

func workflow(steps ...models.NormalizedStep) *models.NormalizedWorkflow {
	return &models.NormalizedWorkflow{Source: models.SourceEmbassy, Steps: steps}
}

func TestEngine_NoPrior(t *testing.T) {
	t.Parallel()

	result := diff.NewEngine().Diff(nil, workflow(
		models.NormalizedStep{Key: "visa_application_form", Title: "Visa Application Form", Ordinal: 1},
		models.NormalizedStep{Key: "medical_examination", Title: "Medical Examination", Description: "Book it", Ordinal: 2},
	))

	require.Len(t, result.AddedSteps, 2)
	assert.Empty(t, result.RemovedSteps)
	assert.Empty(t, result.ModifiedSteps)
	assert.Equal(t, 2, result.TotalChanges)
	assert.True(t, result.HasChanges())

	assert.Equal(t, models.StepDiff{
		Key:         "medical_examination",
		ChangeType:  models.ChangeAdded,
		NewValue:    "Medical Examination",
		Title:       "Medical Examination",
		Description: "Book it",
	}, result.AddedSteps[1])
}

func TestEngine_Diff(t *testing.T) {
	t.Parallel()

	prior := approved(
		models.WorkflowStep{Key: "visa_application_form", Title: "Visa Application Form", Description: "Fill the form", Ordinal: 1},
		models.WorkflowStep{Key: "medical_examination", Title: "Medical Examination", Description: "Book a physician", Ordinal: 2},
		models.WorkflowStep{Key: "consular_interview", Title: "Consular Interview", Description: "Attend", Ordinal: 3},
		models.WorkflowStep{Key: "pay_fees", Title: "Pay Fees", Ordinal: 4},
	)

	tests := []struct {
		name     string
		incoming *models.NormalizedWorkflow
		added    []string
		removed  []string
		modified map[string]string
	}{
		{
			name: "identical",
			incoming: workflow(
				models.NormalizedStep{Key: "visa_application_form", Title: "Visa Application Form", Description: "Fill the form", Ordinal: 1},
				models.NormalizedStep{Key: "medical_examination", Title: "Medical Examination", Description: "Book a physician", Ordinal: 2},
				models.NormalizedStep{Key: "consular_interview", Title: "Consular Interview", Description: "Attend", Ordinal: 3},
				models.NormalizedStep{Key: "pay_fees", Title: "Pay Fees", Ordinal: 4},
			),
			added:    []string{},
			removed:  []string{},
			modified: map[string]string{},
		},
		{
			name: "mixed changes",
			incoming: workflow(
				models.NormalizedStep{Key: "medical_examination", Title: "Medical Examination!", Description: "Book a panel physician", Ordinal: 1},
				models.NormalizedStep{Key: "visa_application_form", Title: "Visa Application Form", Description: "Fill the form", Ordinal: 2},
				models.NormalizedStep{Key: "consular_interview", Title: "Consular Interview", Description: "Attend in person", Ordinal: 3},
				models.NormalizedStep{Key: "biometrics", Title: "Biometrics", Ordinal: 4},
			),
			added:   []string{"biometrics"},
			removed: []string{"pay_fees"},
			modified: map[string]string{
				"medical_examination":   "title_changed,description_changed,order_changed",
				"visa_application_form": "order_changed",
				"consular_interview":    "description_changed",
			},
		},
		{
			name:     "everything removed",
			incoming: workflow(),
			added:    []string{},
			removed:  []string{"visa_application_form", "medical_examination", "consular_interview", "pay_fees"},
			modified: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := diff.NewEngine().Diff(prior, tt.incoming)

			added := make([]string, 0)
			for _, d := range result.AddedSteps {
				assert.Equal(t, models.ChangeAdded, d.ChangeType)

				added = append(added, d.Key)
			}

			removed := make([]string, 0)
			for _, d := range result.RemovedSteps {
				assert.Equal(t, models.ChangeRemoved, d.ChangeType)
				assert.NotEmpty(t, d.OldValue)

				removed = append(removed, d.Key)
			}

			modified := make(map[string]string)
			for _, d := range result.ModifiedSteps {
				modified[d.Key] = d.ChangeType
			}

			assert.Equal(t, tt.added, added)
			assert.Equal(t, tt.removed, removed)
			assert.Equal(t, tt.modified, modified)
			assert.Equal(t, len(added)+len(removed)+len(modified), result.TotalChanges)
		})
	}
}

func TestEngine_ModifiedCarriesBothTitles(t *testing.T) {
	t.Parallel()

	result := diff.NewEngine().Diff(
		approved(models.WorkflowStep{Key: "medical_examination", Title: "Medical Examination", Ordinal: 1}),
		workflow(models.NormalizedStep{Key: "medical_examination", Title: "Medical Examination (updated)", Ordinal: 1}),
	)

	require.Len(t, result.ModifiedSteps, 1)
	assert.Equal(t, "Medical Examination", result.ModifiedSteps[0].OldValue)
	assert.Equal(t, "Medical Examination (updated)", result.ModifiedSteps[0].NewValue)
	assert.Equal(t, models.ChangeTitleChanged, result.ModifiedSteps[0].ChangeType)
}

// Without history every step is added, even when keys collide.
func TestEngine_CollidingKeysWithoutHistory(t *testing.T) {
	t.Parallel()

	result := diff.NewEngine().Diff(nil, workflow(
		models.NormalizedStep{Key: "medical_examination_appointment", Title: "Medical examination appointment in Madrid", Ordinal: 1},
		models.NormalizedStep{Key: "medical_examination_appointment", Title: "Medical examination appointment in Barcelona", Ordinal: 2},
	))

	require.Len(t, result.AddedSteps, 2)
	assert.Equal(t, "Medical examination appointment in Madrid", result.AddedSteps[0].Title)
	assert.Equal(t, "Medical examination appointment in Barcelona", result.AddedSteps[1].Title)
	assert.Empty(t, result.RemovedSteps)
	assert.Empty(t, result.ModifiedSteps)
	assert.Equal(t, 2, result.TotalChanges)
}

// Against history, colliding keys are compared by their first occurrence only.
func TestEngine_CollidingKeysAgainstHistory(t *testing.T) {
	t.Parallel()

	result := diff.NewEngine().Diff(
		approved(models.WorkflowStep{Key: "medical_examination_appointment", Title: "Medical examination appointment in Madrid", Ordinal: 1}),
		workflow(
			models.NormalizedStep{Key: "medical_examination_appointment", Title: "Medical examination appointment in Madrid", Ordinal: 1},
			models.NormalizedStep{Key: "medical_examination_appointment", Title: "Medical examination appointment in Barcelona", Ordinal: 2},
		),
	)

	assert.Equal(t, 0, result.TotalChanges)
}

func TestEngine_DiffVersions(t *testing.T) {
	t.Parallel()

	prior := approved(models.WorkflowStep{Key: "pay_fees", Title: "Pay Fees", Ordinal: 1})
	current := &models.WorkflowVersion{
		Status: models.WorkflowStatusPendingApproval,
		Steps: []models.WorkflowStep{
			{Key: "pay_fees", Title: "Pay Fees", Ordinal: 1},
			{Key: "biometrics", Title: "Biometrics", Ordinal: 2},
		},
	}

	result := diff.NewEngine().DiffVersions(prior, current)
	assert.Equal(t, 1, result.TotalChanges)
	require.Len(t, result.AddedSteps, 1)
	assert.Equal(t, "biometrics", result.AddedSteps[0].Key)

	assert.Equal(t, 2, diff.NewEngine().DiffVersions(nil, current).TotalChanges)
}
