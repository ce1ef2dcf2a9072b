package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flowstate/agency/internal/domain/realtime"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	handler Handler
	openErr error
	closed  bool
}

func (s *fakeSource) Open(_ context.Context, handler Handler) error {
	if s.openErr != nil {
		return s.openErr
	}
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) emit(evt realtime.InvalidationEvent) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	h(evt)
}

type countingRecorder struct {
	mu          sync.Mutex
	invalidated map[realtime.EventName]int
	dropped     int
}

func (r *countingRecorder) Invalidated(_ context.Context, name realtime.EventName, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invalidated == nil {
		r.invalidated = make(map[realtime.EventName]int)
	}
	r.invalidated[name]++
}

func (r *countingRecorder) Dropped(context.Context, realtime.EventName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func mustEvent(t *testing.T, name realtime.EventName, orgID uuid.UUID, id string) realtime.InvalidationEvent {
	t.Helper()
	evt, err := realtime.NewInvalidationEvent(name, orgID, id)
	require.NoError(t, err)
	return evt
}

func TestListener_AppliesEventsFromSource(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	cache := NewQueryCache()
	key := QueryKey{Scope: orgID.String(), Kind: realtime.QueryProjects, ID: "X"}
	_, err := cache.Get(ctx, key, func(context.Context) (any, error) { return "x", nil })
	require.NoError(t, err)

	forwarded := make(chan realtime.InvalidationEvent, 4)
	recorder := &countingRecorder{}
	listener := NewListener(cache,
		WithSink(func(_ context.Context, evt realtime.InvalidationEvent) { forwarded <- evt }),
		WithRecorder(recorder),
	)
	source := &fakeSource{}
	require.NoError(t, listener.Open(ctx, source))
	defer listener.Close()

	source.emit(mustEvent(t, realtime.EventProjectUpdated, orgID, "X"))

	select {
	case evt := <-forwarded:
		assert.Equal(t, realtime.EventProjectUpdated, evt.Name)
	case <-time.After(time.Second):
		t.Fatal("event was not applied")
	}
	assert.True(t, cache.IsStale(key))
}

func TestListener_DuplicateEventsAreHarmless(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	cache := NewQueryCache()
	key := QueryKey{Scope: orgID.String(), Kind: realtime.QueryProjects, ID: "X"}
	fetches := 0
	fetch := func(context.Context) (any, error) {
		fetches++
		return fetches, nil
	}
	_, err := cache.Get(ctx, key, fetch)
	require.NoError(t, err)

	applied := make(chan struct{}, 4)
	listener := NewListener(cache, WithSink(func(context.Context, realtime.InvalidationEvent) { applied <- struct{}{} }))
	require.NoError(t, listener.Open(ctx, nil))
	defer listener.Close()

	evt := mustEvent(t, realtime.EventProjectUpdated, orgID, "X")
	require.True(t, listener.Deliver(evt))
	require.True(t, listener.Deliver(evt))
	for i := 0; i < 2; i++ {
		select {
		case <-applied:
		case <-time.After(time.Second):
			t.Fatal("event was not applied")
		}
	}

	v, err := cache.Get(ctx, key, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	_, err = cache.Get(ctx, key, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, fetches, "one re-fetch after two identical events")
}

func TestListener_OpensAtMostOnce(t *testing.T) {
	ctx := context.Background()
	listener := NewListener(NewQueryCache())

	require.NoError(t, listener.Open(ctx, &fakeSource{}))
	assert.ErrorIs(t, listener.Open(ctx, &fakeSource{}), ErrAlreadyOpen)
	require.NoError(t, listener.Close())
	require.NoError(t, listener.Close(), "close is idempotent")
	assert.ErrorIs(t, listener.Open(ctx, &fakeSource{}), ErrAlreadyOpen)
}

func TestListener_CloseClosesSourceAndDropsLateEvents(t *testing.T) {
	ctx := context.Background()
	recorder := &countingRecorder{}
	listener := NewListener(NewQueryCache(), WithRecorder(recorder))
	source := &fakeSource{}
	require.NoError(t, listener.Open(ctx, source))
	require.NoError(t, listener.Close())

	assert.True(t, source.closed)
	assert.False(t, listener.Deliver(mustEvent(t, realtime.EventReportUpdated, uuid.New(), "")))
	assert.Equal(t, int64(1), listener.Dropped())
	assert.Equal(t, 1, recorder.dropped)
	assert.ErrorIs(t, listener.Publish(ctx, mustEvent(t, realtime.EventReportUpdated, uuid.New(), "")), ErrListenerClosed)
}

func TestListener_SourceOpenFailure(t *testing.T) {
	listener := NewListener(NewQueryCache())
	err := listener.Open(context.Background(), &fakeSource{openErr: errors.New("refused")})
	assert.Error(t, err)
	assert.False(t, listener.Deliver(mustEvent(t, realtime.EventReportUpdated, uuid.New(), "")))
}

func TestListener_FullQueueDrops(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	listener := NewListener(NewQueryCache(),
		WithQueueSize(1),
		WithSink(func(context.Context, realtime.InvalidationEvent) { <-block }),
	)
	require.NoError(t, listener.Open(ctx, nil))
	defer func() {
		close(block)
		listener.Close()
	}()

	orgID := uuid.New()
	delivered := 0
	for i := 0; i < 10; i++ {
		if listener.Deliver(mustEvent(t, realtime.EventAnalyticsUpdated, orgID, "")) {
			delivered++
		}
	}
	assert.LessOrEqual(t, delivered, 2, "one event in the sink and one in the queue")
	assert.GreaterOrEqual(t, listener.Dropped(), int64(8))
}

func TestListener_IgnoresInvalidEvents(t *testing.T) {
	listener := NewListener(NewQueryCache())
	require.NoError(t, listener.Open(context.Background(), nil))
	defer listener.Close()

	assert.False(t, listener.Deliver(realtime.InvalidationEvent{Name: "nope", OrganizationID: uuid.New()}))
	assert.Equal(t, int64(0), listener.Dropped())
}
