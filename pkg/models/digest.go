package models

import (
	"encoding/json"
	"time"
)

const DigestCategoryWorkflowDrafts = "workflow_drafts"

// DigestQueueEntry accumulates notification items for one recipient until it is sent.
// Items holds the encoded DigestPayload document.
type DigestQueueEntry struct {
	ID          string          `json:"id"`
	RecipientID string          `json:"recipient_id"`
	Items       json.RawMessage `json:"items,omitempty"`
	LastSentAt  *time.Time      `json:"last_sent_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (d *DigestQueueEntry) IsOpen() bool {
	return d.LastSentAt == nil
}

// DigestPayload is the document stored in DigestQueueEntry.Items.
type DigestPayload struct {
	Category       string                `json:"category"`
	WorkflowDrafts []WorkflowDraftDigest `json:"workflowDrafts"`
}

// WorkflowDraftDigest summarizes one draft awaiting review.
type WorkflowDraftDigest struct {
	ID           string    `json:"id"`
	CountryCode  string    `json:"countryCode"`
	VisaTypeID   int       `json:"visaTypeId"`
	Version      int       `json:"version"`
	Source       string    `json:"source"`
	ScrapedAt    time.Time `json:"scrapedAt"`
	StepCount    int       `json:"stepCount"`
	DoctorCount  int       `json:"doctorCount"`
	TotalChanges int       `json:"totalChanges"`
}

func NewDigestPayload() DigestPayload {
	return DigestPayload{
		Category:       DigestCategoryWorkflowDrafts,
		WorkflowDrafts: []WorkflowDraftDigest{},
	}
}
