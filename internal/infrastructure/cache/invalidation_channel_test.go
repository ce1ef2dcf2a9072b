package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	domain "github.com/flowstate/agency/internal/domain/realtime"
	"github.com/flowstate/agency/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisInvalidationChannel_RoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	ch := NewRedisInvalidationChannel(client, WithChannel("test:invalidation"))
	assert.Equal(t, "test:invalidation", ch.Channel())

	received := make(chan domain.InvalidationEvent, 4)
	require.NoError(t, ch.Open(context.Background(), func(evt domain.InvalidationEvent) {
		received <- evt
	}))
	defer ch.Close()

	org := uuid.New()
	evt := newEvent(t, domain.EventProjectUpdated, org, "p-1")
	require.NoError(t, ch.Publish(context.Background(), evt))

	select {
	case got := <-received:
		assert.Equal(t, evt.EventID, got.EventID)
		assert.Equal(t, domain.EventProjectUpdated, got.Name)
		assert.Equal(t, "p-1", got.ID)
		assert.Equal(t, org, got.OrganizationID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}

	// malformed payloads are skipped without stopping the loop
	mr.Publish("test:invalidation", "{not json")
	second := newEvent(t, domain.EventAnalyticsUpdated, org, "")
	require.NoError(t, ch.Publish(context.Background(), second))
	select {
	case got := <-received:
		assert.Equal(t, second.EventID, got.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("event after malformed payload not received")
	}
}

func TestRedisInvalidationChannel_OpenTwice(t *testing.T) {
	_, client := newTestRedis(t)
	ch := NewRedisInvalidationChannel(client)
	noop := func(domain.InvalidationEvent) {}

	require.NoError(t, ch.Open(context.Background(), noop))
	assert.ErrorIs(t, ch.Open(context.Background(), noop), ErrSubscriptionRunning)
	require.NoError(t, ch.Close())
}

func TestRedisInvalidationChannel_PublishRejectsInvalid(t *testing.T) {
	_, client := newTestRedis(t)
	ch := NewRedisInvalidationChannel(client)
	err := ch.Publish(context.Background(), domain.InvalidationEvent{Name: "bogus"})
	assert.Error(t, err)
}

func TestRedisInvalidationChannel_HandlerPanicRecovered(t *testing.T) {
	_, client := newTestRedis(t)
	ch := NewRedisInvalidationChannel(client)
	calls := make(chan struct{}, 2)
	require.NoError(t, ch.Open(context.Background(), func(domain.InvalidationEvent) {
		calls <- struct{}{}
		panic("boom")
	}))
	defer ch.Close()

	org := uuid.New()
	for i := 0; i < 2; i++ {
		require.NoError(t, ch.Publish(context.Background(), newEvent(t, domain.EventReportUpdated, org, "")))
	}
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("handler not called after panic")
		}
	}
}

func TestRedisInvalidationChannel_OwnedClientClosed(t *testing.T) {
	_, client := newTestRedis(t)
	ch := NewRedisInvalidationChannel(client, WithOwnedClient())
	require.NoError(t, ch.Close())
	assert.Error(t, client.Ping(context.Background()).Err())
}

func newEvent(t *testing.T, name domain.EventName, org uuid.UUID, id string) domain.InvalidationEvent {
	t.Helper()
	evt, err := domain.NewInvalidationEvent(name, org, id)
	require.NoError(t, err)
	return evt
}

func TestDialInvalidationChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Server().Addr().Port

	ch, err := DialInvalidationChannel(config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	assert.True(t, ch.ownsClient)
	require.NoError(t, ch.Close())

	mr.Close()
	_, err = DialInvalidationChannel(config.RedisConfig{Host: host, Port: port})
	assert.Error(t, err)
}
