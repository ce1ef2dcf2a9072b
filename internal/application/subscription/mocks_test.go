package subscription

import (
	"context"
	"sync"

	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockPlanStorage is a mock implementation of subscription.PlanStorage
type MockPlanStorage struct {
	mock.Mock
}

func (m *MockPlanStorage) Get(ctx context.Context, orgID uuid.UUID, key string) (string, bool, error) {
	args := m.Called(ctx, orgID, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockPlanStorage) Set(ctx context.Context, orgID uuid.UUID, key, value string) error {
	args := m.Called(ctx, orgID, key, value)
	return args.Error(0)
}

// mapStorage is a working in-memory storage used to simulate reloads
type mapStorage struct {
	mu     sync.Mutex
	values map[string]string
	writes int
}

func newMapStorage() *mapStorage {
	return &mapStorage{values: make(map[string]string)}
}

func (s *mapStorage) Get(_ context.Context, orgID uuid.UUID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[orgID.String()+"/"+key]
	return v, ok, nil
}

func (s *mapStorage) Set(_ context.Context, orgID uuid.UUID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[orgID.String()+"/"+key] = value
	s.writes++
	return nil
}

var _ subscription.PlanStorage = (*mapStorage)(nil)

// gatedStorage holds reads for one organization until release is closed
type gatedStorage struct {
	*mapStorage
	gated   uuid.UUID
	entered chan struct{}
	once    sync.Once
	release chan struct{}
}

func newGatedStorage(gated uuid.UUID) *gatedStorage {
	return &gatedStorage{
		mapStorage: newMapStorage(),
		gated:      gated,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (s *gatedStorage) Get(ctx context.Context, orgID uuid.UUID, key string) (string, bool, error) {
	if orgID == s.gated {
		s.once.Do(func() { close(s.entered) })
		<-s.release
	}
	return s.mapStorage.Get(ctx, orgID, key)
}

// MockResourceCounter is a mock implementation of ResourceCounter
type MockResourceCounter struct {
	mock.Mock
}

func (m *MockResourceCounter) Count(ctx context.Context, orgID uuid.UUID, kind subscription.ResourceKind) (int, error) {
	args := m.Called(ctx, orgID, kind)
	return args.Int(0), args.Error(1)
}
