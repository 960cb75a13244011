package models

// NormalizedStep is a parsed procedural step, keyed for cross-version comparison.
type NormalizedStep struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Ordinal     int    `json:"ordinal"`
	Data        Extras `json:"data,omitempty"`
}

// NormalizedDoctor is a parsed approved-physician listing.
type NormalizedDoctor struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	Phone       string `json:"phone,omitempty"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	SourceURL   string `json:"source_url"`
	Extras      Extras `json:"extras,omitempty"`
}

// WorkflowStep is the persisted analogue of NormalizedStep, owned by one version.
type WorkflowStep struct {
	ID                string `json:"id"`
	WorkflowVersionID string `json:"workflow_version_id"`
	Ordinal           int    `json:"ordinal"`
	Key               string `json:"key"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Data              Extras `json:"data,omitempty"`
}

// WorkflowDoctor is the persisted analogue of NormalizedDoctor, owned by one version.
type WorkflowDoctor struct {
	ID                string `json:"id"`
	WorkflowVersionID string `json:"workflow_version_id"`
	Name              string `json:"name"`
	Address           string `json:"address"`
	Phone             string `json:"phone,omitempty"`
	City              string `json:"city"`
	CountryCode       string `json:"country_code"`
	SourceURL         string `json:"source_url"`
	Extras            Extras `json:"extras,omitempty"`
}
