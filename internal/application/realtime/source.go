package realtime

import (
	"context"

	"github.com/flowstate/agency/internal/domain/realtime"
)

// Handler receives events from an EventSource. It may be called from any goroutine.
type Handler func(evt realtime.InvalidationEvent)

// EventSource is a transport delivering invalidation events.
// Reconnection and backoff are the transport's concern.
type EventSource interface {
	Open(ctx context.Context, handler Handler) error
	Close() error
}

// Publisher emits invalidation events to every listener
type Publisher interface {
	Publish(ctx context.Context, evt realtime.InvalidationEvent) error
}

// Sink is called on the listener goroutine after an event has been applied to the cache
type Sink func(ctx context.Context, evt realtime.InvalidationEvent)

// Recorder receives listener measurements
type Recorder interface {
	Invalidated(ctx context.Context, name realtime.EventName, marked int)
	Dropped(ctx context.Context, name realtime.EventName)
}

type noopRecorder struct{}

func (noopRecorder) Invalidated(context.Context, realtime.EventName, int) {}
func (noopRecorder) Dropped(context.Context, realtime.EventName)          {}
