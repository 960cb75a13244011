// Package models defines the core domain models for visa workflow ingestion and review
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow version.
type WorkflowStatus string

const (
	WorkflowStatusPendingApproval WorkflowStatus = "pending_approval" // Draft awaiting review
	WorkflowStatusApproved        WorkflowStatus = "approved"         // Authoritative, immutable
	WorkflowStatusRejected        WorkflowStatus = "rejected"         // Terminal, kept as history
)

func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusPendingApproval, WorkflowStatusApproved, WorkflowStatusRejected:
		return true
	default:
		return false
	}
}

// NormalizedWorkflow is the structured result of parsing one capture. It is never persisted as-is.
type NormalizedWorkflow struct {
	Source      string             `json:"source"`
	Steps       []NormalizedStep   `json:"steps"`
	Doctors     []NormalizedDoctor `json:"doctors"`
	SourceURLs  []string           `json:"source_urls"`
	ContentHash string             `json:"content_hash"`
	Metadata    Extras             `json:"metadata,omitempty"`
}

// WorkflowSummary is the compact description written alongside every version.
type WorkflowSummary struct {
	StepCount   int      `json:"step_count"`
	DoctorCount int      `json:"doctor_count"`
	SourceURLs  []string `json:"source_urls"`
}

// WorkflowVersion is one candidate or authoritative procedure for a (visa type, country) pair.
type WorkflowVersion struct {
	ID          string           `json:"id"`
	VisaTypeID  int              `json:"visa_type_id"`
	CountryCode string           `json:"country_code"`
	Version     int              `json:"version"`
	Status      WorkflowStatus   `json:"status"`
	Source      string           `json:"source"`
	ScrapeHash  string           `json:"scrape_hash"`
	ScrapedAt   time.Time        `json:"scraped_at"`
	ApprovedBy  *string          `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time       `json:"approved_at,omitempty"`
	RejectedBy  *string          `json:"rejected_by,omitempty"`
	RejectedAt  *time.Time       `json:"rejected_at,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	Summary     WorkflowSummary  `json:"summary"`
	Steps       []WorkflowStep   `json:"steps"`
	Doctors     []WorkflowDoctor `json:"doctors"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (w *WorkflowVersion) IsPending() bool {
	return w.Status == WorkflowStatusPendingApproval
}

// NewSummary counts steps and doctors of a normalized workflow.
func NewSummary(normalized *NormalizedWorkflow) WorkflowSummary {
	urls := make([]string, len(normalized.SourceURLs))
	copy(urls, normalized.SourceURLs)

	return WorkflowSummary{
		StepCount:   len(normalized.Steps),
		DoctorCount: len(normalized.Doctors),
		SourceURLs:  urls,
	}
}
