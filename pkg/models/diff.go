package models

// Change types reported by the diff engine. Modified steps carry a comma-joined
// combination of the three *_changed tags.
const (
	ChangeAdded              = "added"
	ChangeRemoved            = "removed"
	ChangeTitleChanged       = "title_changed"
	ChangeDescriptionChanged = "description_changed"
	ChangeOrderChanged       = "order_changed"
)

// StepDiff describes one step-level change keyed by step key.
type StepDiff struct {
	Key         string `json:"key"`
	ChangeType  string `json:"changeType"`
	OldValue    string `json:"oldValue,omitempty"`
	NewValue    string `json:"newValue,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type DiffResult struct {
	AddedSteps    []StepDiff `json:"addedSteps"`
	RemovedSteps  []StepDiff `json:"removedSteps"`
	ModifiedSteps []StepDiff `json:"modifiedSteps"`
	TotalChanges  int        `json:"totalChanges"`
}

func (d DiffResult) HasChanges() bool {
	return d.TotalChanges > 0
}
