package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	tests := []struct {
		name     string
		event    interface{ GetType() EventType }
		expected EventType
	}{
		{"draft created", DraftCreated{}, DraftCreatedEvent},
		{"approved", WorkflowApproved{}, WorkflowApprovedEvent},
		{"rejected", WorkflowRejected{}, WorkflowRejectedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.event.GetType())
		})
	}
}

func TestNewBaseEvent(t *testing.T) {
	base := NewBaseEvent(DraftCreatedEvent, "wf-1", 2, "ES")

	id, err := uuid.Parse(base.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, DraftCreatedEvent, base.Type)
	assert.Equal(t, "wf-1", base.WorkflowVersionID)
	assert.Equal(t, 2, base.VisaTypeID)
	assert.Equal(t, "ES", base.CountryCode)
	assert.False(t, base.Timestamp.IsZero())
}

func TestDraftCreated_JSON(t *testing.T) {
	event := DraftCreated{
		BaseEvent:    NewBaseEvent(DraftCreatedEvent, "wf-1", 1, "ES"),
		Version:      3,
		Source:       "Embassy",
		StepCount:    3,
		DoctorCount:  2,
		TotalChanges: 1,
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded DraftCreated

	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "wf-1", decoded.WorkflowVersionID)
	assert.Equal(t, 3, decoded.Version)
	assert.Equal(t, "Embassy", decoded.Source)

	var raw map[string]any

	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, "workflow.draft_created", raw["type"])
	assert.Contains(t, raw, "workflow_version_id")
}

func TestDecode(t *testing.T) {
	approved, err := json.Marshal(WorkflowApproved{
		BaseEvent:  NewBaseEvent(WorkflowApprovedEvent, "wf-2", 1, "FR"),
		Version:    4,
		ReviewerID: "admin-1",
	})
	require.NoError(t, err)

	event, err := Decode(WorkflowApprovedEvent, approved)
	require.NoError(t, err)

	decoded, ok := event.(*WorkflowApproved)
	require.True(t, ok)
	assert.Equal(t, 4, decoded.Version)
	assert.Equal(t, "admin-1", decoded.ReviewerID)
	assert.Equal(t, decoded.ID, decoded.EventID())

	_, err = Decode(WorkflowRejectedEvent, []byte("{not json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownEventType)

	_, err = Decode(EventType("workflow.archived"), approved)
	require.ErrorIs(t, err, ErrUnknownEventType)
}
