// Package diff compares workflow step lists by step key.
package diff

import (
	"strings"

	"github.com/dukex/visaflow/pkg/models"
)

type step struct {
	key         string
	title       string
	description string
	ordinal     int
}

// Engine is stateless and safe for concurrent use.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Diff compares an incoming normalized workflow with the prior approved version.
// A nil prior reports every incoming step as added.
func (e *Engine) Diff(prior *models.WorkflowVersion, incoming *models.NormalizedWorkflow) models.DiffResult {
	next := make([]step, 0, len(incoming.Steps))
	for _, s := range incoming.Steps {
		next = append(next, step{key: s.Key, title: s.Title, description: s.Description, ordinal: s.Ordinal})
	}

	return compare(versionSteps(prior), next)
}

// DiffVersions compares two stored versions. A nil prior reports every current step as added.
func (e *Engine) DiffVersions(prior, current *models.WorkflowVersion) models.DiffResult {
	return compare(versionSteps(prior), versionSteps(current))
}

func versionSteps(version *models.WorkflowVersion) []step {
	if version == nil {
		return nil
	}

	steps := make([]step, 0, len(version.Steps))
	for _, s := range version.Steps {
		steps = append(steps, step{key: s.Key, title: s.Title, description: s.Description, ordinal: s.Ordinal})
	}

	return steps
}

func index(steps []step) map[string]step {
	byKey := make(map[string]step, len(steps))

	for _, s := range steps {
		if _, exists := byKey[s.key]; !exists {
			byKey[s.key] = s
		}
	}

	return byKey
}

func added(s step) models.StepDiff {
	return models.StepDiff{
		Key:         s.key,
		ChangeType:  models.ChangeAdded,
		NewValue:    s.title,
		Title:       s.title,
		Description: s.description,
	}
}

// compare keeps the first step of each key on both sides. A nil prior reports
// every incoming step as added, colliding keys included.
func compare(prior, next []step) models.DiffResult {
	result := models.DiffResult{
		AddedSteps:    make([]models.StepDiff, 0),
		RemovedSteps:  make([]models.StepDiff, 0),
		ModifiedSteps: make([]models.StepDiff, 0),
	}

	if prior == nil {
		for _, s := range next {
			result.AddedSteps = append(result.AddedSteps, added(s))
		}

		result.TotalChanges = len(result.AddedSteps)

		return result
	}

	priorByKey := index(prior)
	nextByKey := index(next)
	seen := make(map[string]bool, len(next))

	for _, s := range next {
		if seen[s.key] {
			continue
		}

		seen[s.key] = true

		old, exists := priorByKey[s.key]
		if !exists {
			result.AddedSteps = append(result.AddedSteps, added(s))

			continue
		}

		changes := make([]string, 0, 3)

		if old.title != s.title {
			changes = append(changes, models.ChangeTitleChanged)
		}

		if old.description != s.description {
			changes = append(changes, models.ChangeDescriptionChanged)
		}

		if old.ordinal != s.ordinal {
			changes = append(changes, models.ChangeOrderChanged)
		}

		if len(changes) > 0 {
			result.ModifiedSteps = append(result.ModifiedSteps, models.StepDiff{
				Key:         s.key,
				ChangeType:  strings.Join(changes, ","),
				OldValue:    old.title,
				NewValue:    s.title,
				Title:       s.title,
				Description: s.description,
			})
		}
	}

	removed := make(map[string]bool, len(prior))

	for _, s := range prior {
		if _, exists := nextByKey[s.key]; exists || removed[s.key] {
			continue
		}

		removed[s.key] = true

		result.RemovedSteps = append(result.RemovedSteps, models.StepDiff{
			Key:         s.key,
			ChangeType:  models.ChangeRemoved,
			OldValue:    s.title,
			Title:       s.title,
			Description: s.description,
		})
	}

	result.TotalChanges = len(result.AddedSteps) + len(result.RemovedSteps) + len(result.ModifiedSteps)

	return result
}
