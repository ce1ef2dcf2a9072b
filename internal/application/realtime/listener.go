package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/flowstate/agency/internal/domain/realtime"
	"github.com/flowstate/agency/internal/domain/shared"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyOpen is returned when Open is called a second time
	ErrAlreadyOpen = shared.NewDomainError("LISTENER_ALREADY_OPEN", "Invalidation listener is already open")
	// ErrListenerClosed is returned when publishing through a closed listener
	ErrListenerClosed = shared.NewDomainError("LISTENER_CLOSED", "Invalidation listener is closed")
	// ErrEventDropped is returned when the listener queue is full
	ErrEventDropped = shared.NewDomainError("EVENT_DROPPED", "Invalidation event was dropped")
)

const defaultQueueSize = 256

// Listener applies invalidation events to a QueryCache.
// Transports hand events to Deliver from any goroutine; a single owner goroutine
// applies them in arrival order and then runs the sinks.
type Listener struct {
	cache     *QueryCache
	sinks     []Sink
	logger    *zap.Logger
	recorder  Recorder
	queueSize int

	mu     sync.RWMutex
	opened bool
	closed bool
	queue  chan realtime.InvalidationEvent
	source EventSource
	cancel context.CancelFunc
	done   chan struct{}

	dropped atomic.Int64
}

// ListenerOption configures a Listener
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger
func WithListenerLogger(logger *zap.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSink adds a sink run after each applied event
func WithSink(sink Sink) ListenerOption {
	return func(l *Listener) {
		l.sinks = append(l.sinks, sink)
	}
}

// WithRecorder sets the measurement recorder
func WithRecorder(r Recorder) ListenerOption {
	return func(l *Listener) {
		if r != nil {
			l.recorder = r
		}
	}
}

// WithQueueSize bounds the number of events waiting to be applied
func WithQueueSize(n int) ListenerOption {
	return func(l *Listener) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

// NewListener creates a listener for cache. It does nothing until Open.
func NewListener(cache *QueryCache, opts ...ListenerOption) *Listener {
	l := &Listener{
		cache:     cache,
		logger:    zap.NewNop(),
		recorder:  noopRecorder{},
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open starts the owner goroutine and subscribes to source.
// A nil source serves in-process delivery only. Open succeeds at most once.
func (l *Listener) Open(ctx context.Context, source EventSource) error {
	l.mu.Lock()
	if l.opened {
		l.mu.Unlock()
		return ErrAlreadyOpen
	}
	l.opened = true
	runCtx, cancel := context.WithCancel(ctx)
	l.queue = make(chan realtime.InvalidationEvent, l.queueSize)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.source = source
	l.mu.Unlock()

	go l.run(runCtx)

	if source != nil {
		if err := source.Open(runCtx, func(evt realtime.InvalidationEvent) { l.Deliver(evt) }); err != nil {
			l.mu.Lock()
			l.closed = true
			l.mu.Unlock()
			cancel()
			<-l.done
			return fmt.Errorf("open event source: %w", err)
		}
	}

	l.logger.Info("Invalidation listener opened", zap.Int("queue_size", l.queueSize))
	return nil
}

// Deliver queues evt for the owner goroutine. It never blocks: events arriving while the
// queue is full or the listener is not running are dropped and false is returned.
func (l *Listener) Deliver(evt realtime.InvalidationEvent) bool {
	if err := evt.Validate(); err != nil {
		l.logger.Debug("Ignoring invalid invalidation event", zap.Error(err))
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.opened || l.closed {
		l.drop(evt)
		return false
	}
	select {
	case l.queue <- evt:
		return true
	default:
		l.drop(evt)
		return false
	}
}

// Publish implements Publisher for single-process deployments
func (l *Listener) Publish(_ context.Context, evt realtime.InvalidationEvent) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	l.mu.RLock()
	closed := !l.opened || l.closed
	l.mu.RUnlock()
	if closed {
		return ErrListenerClosed
	}
	if !l.Deliver(evt) {
		return ErrEventDropped
	}
	return nil
}

func (l *Listener) drop(evt realtime.InvalidationEvent) {
	l.dropped.Add(1)
	l.recorder.Dropped(context.Background(), evt.Name)
}

// Dropped returns how many events were discarded
func (l *Listener) Dropped() int64 {
	return l.dropped.Load()
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-l.queue:
			l.apply(ctx, evt)
		}
	}
}

func (l *Listener) apply(ctx context.Context, evt realtime.InvalidationEvent) {
	kind, ok := evt.Name.Kind()
	if !ok {
		return
	}
	marked := l.cache.MarkStale(evt.Scope(), kind, evt.ID)
	l.recorder.Invalidated(ctx, evt.Name, marked)

	l.logger.Debug("Applied invalidation event",
		zap.String("event", string(evt.Name)),
		zap.String("id", evt.ID),
		zap.String("organization_id", evt.OrganizationID.String()),
		zap.Int("marked", marked))

	for _, sink := range l.sinks {
		l.runSink(ctx, sink, evt)
	}
}

func (l *Listener) runSink(ctx context.Context, sink Sink, evt realtime.InvalidationEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Invalidation sink panicked",
				zap.String("event", string(evt.Name)),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	sink(ctx, evt)
}

// Close unsubscribes from the source and stops the owner goroutine.
// Queued events that have not been applied are discarded.
func (l *Listener) Close() error {
	l.mu.Lock()
	if !l.opened || l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	source := l.source
	l.mu.Unlock()

	var err error
	if source != nil {
		err = source.Close()
	}
	l.cancel()
	<-l.done

	l.logger.Info("Invalidation listener closed", zap.Int64("dropped", l.dropped.Load()))
	return err
}
