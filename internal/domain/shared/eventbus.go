package shared

import "context"

// EventHandler reacts to published domain events.
// EventTypes lists the types it wants; nil subscribes it to everything.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher hands events to whoever subscribed to them
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus routes published events to subscribed handlers
type EventBus interface {
	EventPublisher

	// Subscribe attaches handler to eventTypes, falling back to handler.EventTypes()
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
