package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/visaflow/pkg/eventbus"
	"github.com/dukex/visaflow/pkg/events"
)

// registerAuditHandlers logs every workflow lifecycle event as an audit trail entry.
func registerAuditHandlers(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	audit := logger.With("module", "audit")

	handlers := map[events.EventType]eventbus.EventHandler{
		events.DraftCreatedEvent: func(ctx context.Context, event any) error {
			draft, ok := event.(*events.DraftCreated)
			if !ok {
				return fmt.Errorf("unexpected %T for %s", event, events.DraftCreatedEvent)
			}

			audit.InfoContext(ctx, "Draft created",
				"workflow_id", draft.WorkflowVersionID, "version", draft.Version,
				"visa_type_id", draft.VisaTypeID, "country", draft.CountryCode, "changes", draft.TotalChanges)

			return nil
		},
		events.WorkflowApprovedEvent: func(ctx context.Context, event any) error {
			approved, ok := event.(*events.WorkflowApproved)
			if !ok {
				return fmt.Errorf("unexpected %T for %s", event, events.WorkflowApprovedEvent)
			}

			audit.InfoContext(ctx, "Workflow approved",
				"workflow_id", approved.WorkflowVersionID, "version", approved.Version, "reviewer", approved.ReviewerID)

			return nil
		},
		events.WorkflowRejectedEvent: func(ctx context.Context, event any) error {
			rejected, ok := event.(*events.WorkflowRejected)
			if !ok {
				return fmt.Errorf("unexpected %T for %s", event, events.WorkflowRejectedEvent)
			}

			audit.InfoContext(ctx, "Workflow rejected",
				"workflow_id", rejected.WorkflowVersionID, "reviewer", rejected.ReviewerID, "reason", rejected.Reason)

			return nil
		},
	}

	for eventType, handler := range handlers {
		err := bus.Handle(eventType, handler)
		if err != nil {
			return fmt.Errorf("failed to register audit handler for %s: %w", eventType, err)
		}
	}

	err := bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to lifecycle events: %w", err)
	}

	return nil
}
