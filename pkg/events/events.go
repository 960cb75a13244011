// Package events defines event types and structures for workflow review notifications.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

var ErrUnknownEventType = errors.New("unknown event type")

// Kafka topics.
const Topic = "visaflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Draft lifecycle events.
	DraftCreatedEvent     EventType = "workflow.draft_created"
	WorkflowApprovedEvent EventType = "workflow.approved"
	WorkflowRejectedEvent EventType = "workflow.rejected"
)

type BaseEvent struct {
	ID                string         `json:"id"`
	Type              EventType      `json:"type"`
	Timestamp         time.Time      `json:"timestamp"`
	WorkflowVersionID string         `json:"workflow_version_id"`
	VisaTypeID        int            `json:"visa_type_id"`
	CountryCode       string         `json:"country_code"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps an event with a time ordered ID and the current UTC time.
func NewBaseEvent(eventType EventType, workflowVersionID string, visaTypeID int, countryCode string) BaseEvent {
	return BaseEvent{
		ID:                uuid.Must(uuid.NewV7()).String(),
		Type:              eventType,
		Timestamp:         time.Now().UTC(),
		WorkflowVersionID: workflowVersionID,
		VisaTypeID:        visaTypeID,
		CountryCode:       countryCode,
	}
}

// EventID lets transports reuse the event ID as the message ID.
func (b BaseEvent) EventID() string {
	return b.ID
}

// Decode unmarshals a payload into the concrete event for eventType.
func Decode(eventType EventType, payload []byte) (any, error) {
	var event any

	switch eventType {
	case DraftCreatedEvent:
		event = &DraftCreated{}
	case WorkflowApprovedEvent:
		event = &WorkflowApproved{}
	case WorkflowRejectedEvent:
		event = &WorkflowRejected{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}

	err := json.Unmarshal(payload, event)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}

	return event, nil
}

// DraftCreated is published after the scraper stores a new pending draft.
type DraftCreated struct {
	BaseEvent

	Version      int    `json:"version"`
	Source       string `json:"source"`
	ScrapeHash   string `json:"scrape_hash"`
	StepCount    int    `json:"step_count"`
	DoctorCount  int    `json:"doctor_count"`
	TotalChanges int    `json:"total_changes"`
}

func (d DraftCreated) GetType() EventType {
	return DraftCreatedEvent
}

type WorkflowApproved struct {
	BaseEvent

	Version    int    `json:"version"`
	ReviewerID string `json:"reviewer_id"`
	Notes      string `json:"notes,omitempty"`
}

func (w WorkflowApproved) GetType() EventType {
	return WorkflowApprovedEvent
}

type WorkflowRejected struct {
	BaseEvent

	ReviewerID string `json:"reviewer_id"`
	Reason     string `json:"reason"`
	Notes      string `json:"notes,omitempty"`
}

func (w WorkflowRejected) GetType() EventType {
	return WorkflowRejectedEvent
}
