// Package eventbus delivers workflow lifecycle events between the pipeline and its observers.
package eventbus

import (
	"context"

	"github.com/dukex/visaflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

// EventPublisher sends an event. Events sharing a key are delivered in publish order
// by transports that partition, so the key is the visa type and country pair.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventHandler receives a pointer to the concrete event type.
type EventHandler func(ctx context.Context, event any) error

type EventSubscriber interface {
	// Handle adds a handler for eventType. Several handlers may share a type.
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
