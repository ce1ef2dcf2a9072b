package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisPlanStorage(t *testing.T) {
	mr, client := newTestRedis(t)
	storage := NewRedisPlanStorage(client, "")
	ctx := context.Background()
	org := uuid.New()

	_, found, err := storage.Get(ctx, org, "subscriptionPlan")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, storage.Set(ctx, org, "subscriptionPlan", "business"))
	value, found, err := storage.Get(ctx, org, "subscriptionPlan")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "business", value)
	assert.Equal(t, "business", mr.HGet("org:"+org.String()+":settings", "subscriptionPlan"))

	_, found, err = storage.Get(ctx, uuid.New(), "subscriptionPlan")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisPlanStorage_Unavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	storage := NewRedisPlanStorage(client, "")
	mr.Close()

	_, _, err := storage.Get(context.Background(), uuid.New(), "subscriptionPlan")
	assert.ErrorIs(t, err, shared.ErrStorageUnavailable)
	err = storage.Set(context.Background(), uuid.New(), "subscriptionPlan", "free")
	assert.ErrorIs(t, err, shared.ErrStorageUnavailable)
}

func TestMemoryPlanStorage(t *testing.T) {
	storage := NewMemoryPlanStorage()
	ctx := context.Background()
	org := uuid.New()

	_, found, err := storage.Get(ctx, org, "subscriptionPlan")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, storage.Set(ctx, org, "subscriptionPlan", "starter"))
	require.NoError(t, storage.Set(ctx, org, "subscriptionPlan", "enterprise"))
	value, found, err := storage.Get(ctx, org, "subscriptionPlan")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "enterprise", value)
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisIdempotencyStore(client, "")
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	processed, err := store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)

	mr.FastForward(2 * time.Minute)
	processed, err = store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, store.Close())
	assert.NoError(t, client.Ping(ctx).Err())
}

func TestInMemoryIdempotencyStore(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Close()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	now = now.Add(2 * time.Minute)
	processed, err := store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, processed)

	store.sweep()
	assert.Equal(t, 0, store.Len())

	reprocessed, err := store.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reprocessed)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestNewIdempotencyStore(t *testing.T) {
	_, client := newTestRedis(t)
	assert.IsType(t, &RedisIdempotencyStore{}, NewIdempotencyStore(client, nil))

	mem := NewIdempotencyStore(nil, nil)
	defer mem.Close()
	assert.IsType(t, &InMemoryIdempotencyStore{}, mem)
}
