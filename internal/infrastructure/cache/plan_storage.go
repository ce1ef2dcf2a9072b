package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultSettingsKeyPrefix = "org:"

// RedisPlanStorage keeps organization settings in one Redis hash per organization
type RedisPlanStorage struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisPlanStorage creates a Redis-backed settings store. Keys look like org:{id}:settings.
func NewRedisPlanStorage(client redis.Cmdable, keyPrefix string) *RedisPlanStorage {
	if keyPrefix == "" {
		keyPrefix = defaultSettingsKeyPrefix
	}
	return &RedisPlanStorage{client: client, keyPrefix: keyPrefix}
}

func (s *RedisPlanStorage) hashKey(orgID uuid.UUID) string {
	return s.keyPrefix + orgID.String() + ":settings"
}

// Get reads a setting. A missing field is reported as found=false.
func (s *RedisPlanStorage) Get(ctx context.Context, orgID uuid.UUID, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.hashKey(orgID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, shared.ErrStorageUnavailable.Wrap(fmt.Errorf("redis hget %s: %w", key, err))
	}
	return value, true, nil
}

// Set writes a setting
func (s *RedisPlanStorage) Set(ctx context.Context, orgID uuid.UUID, key, value string) error {
	if err := s.client.HSet(ctx, s.hashKey(orgID), key, value).Err(); err != nil {
		return shared.ErrStorageUnavailable.Wrap(fmt.Errorf("redis hset %s: %w", key, err))
	}
	return nil
}

// MemoryPlanStorage keeps settings in process memory. Used in tests and single-instance development.
type MemoryPlanStorage struct {
	mu     sync.RWMutex
	values map[uuid.UUID]map[string]string
}

// NewMemoryPlanStorage creates an empty in-memory settings store
func NewMemoryPlanStorage() *MemoryPlanStorage {
	return &MemoryPlanStorage{values: make(map[uuid.UUID]map[string]string)}
}

// Get reads a setting
func (s *MemoryPlanStorage) Get(_ context.Context, orgID uuid.UUID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[orgID][key]
	return v, ok, nil
}

// Set writes a setting
func (s *MemoryPlanStorage) Set(_ context.Context, orgID uuid.UUID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, ok := s.values[orgID]
	if !ok {
		settings = make(map[string]string)
		s.values[orgID] = settings
	}
	settings[key] = value
	return nil
}

var (
	_ subscription.PlanStorage = (*RedisPlanStorage)(nil)
	_ subscription.PlanStorage = (*MemoryPlanStorage)(nil)
)
