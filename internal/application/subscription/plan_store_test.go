package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewPlanStore_Initialization(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()

	t.Run("adopts a valid stored plan without writing", func(t *testing.T) {
		storage := new(MockPlanStorage)
		storage.On("Get", ctx, orgID, subscription.PlanSettingKey).Return("business", true, nil)

		store := NewPlanStore(ctx, orgID, storage)

		assert.Equal(t, subscription.PlanBusiness, store.Current())
		storage.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("absent value adopts free and persists it", func(t *testing.T) {
		storage := new(MockPlanStorage)
		storage.On("Get", ctx, orgID, subscription.PlanSettingKey).Return("", false, nil)
		storage.On("Set", ctx, orgID, subscription.PlanSettingKey, "free").Return(nil)

		store := NewPlanStore(ctx, orgID, storage)

		assert.Equal(t, subscription.PlanFree, store.Current())
		storage.AssertExpectations(t)
	})

	t.Run("unrecognized value falls back to free", func(t *testing.T) {
		storage := new(MockPlanStorage)
		storage.On("Get", ctx, orgID, subscription.PlanSettingKey).Return("Platinum", true, nil)
		storage.On("Set", ctx, orgID, subscription.PlanSettingKey, "free").Return(nil)

		store := NewPlanStore(ctx, orgID, storage)

		assert.Equal(t, subscription.PlanFree, store.Current())
		storage.AssertExpectations(t)
	})

	t.Run("stored values are matched exactly", func(t *testing.T) {
		storage := new(MockPlanStorage)
		storage.On("Get", ctx, orgID, subscription.PlanSettingKey).Return(" Business ", true, nil)
		storage.On("Set", ctx, orgID, subscription.PlanSettingKey, "free").Return(nil)

		store := NewPlanStore(ctx, orgID, storage)

		assert.Equal(t, subscription.PlanFree, store.Current())
		storage.AssertExpectations(t)
	})

	t.Run("read failure falls back to free without overwriting", func(t *testing.T) {
		storage := new(MockPlanStorage)
		storage.On("Get", ctx, orgID, subscription.PlanSettingKey).Return("", false, errors.New("storage offline"))

		store := NewPlanStore(ctx, orgID, storage)

		assert.Equal(t, subscription.PlanFree, store.Current())
		storage.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failure to persist the default is not fatal", func(t *testing.T) {
		storage := new(MockPlanStorage)
		storage.On("Get", ctx, orgID, subscription.PlanSettingKey).Return("", false, nil)
		storage.On("Set", ctx, orgID, subscription.PlanSettingKey, "free").Return(errors.New("read only"))

		store := NewPlanStore(ctx, orgID, storage)

		assert.Equal(t, subscription.PlanFree, store.Current())
	})
}

func TestPlanStore_SetPlan(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()

	t.Run("persists, applies and notifies", func(t *testing.T) {
		storage := newMapStorage()
		store := NewPlanStore(ctx, orgID, storage)

		var changes []PlanChange
		store.Subscribe(func(_ context.Context, c PlanChange) {
			changes = append(changes, c)
		})

		require.NoError(t, store.SetPlan(ctx, subscription.PlanBusiness))

		assert.Equal(t, subscription.PlanBusiness, store.Current())
		require.Len(t, changes, 1)
		assert.Equal(t, subscription.PlanFree, changes[0].Previous)
		assert.Equal(t, subscription.PlanBusiness, changes[0].Current)
		assert.True(t, changes[0].Persisted)
		assert.Equal(t, orgID, changes[0].OrganizationID)
	})

	t.Run("invalid plan is rejected before any write", func(t *testing.T) {
		storage := new(MockPlanStorage)
		storage.On("Get", ctx, orgID, subscription.PlanSettingKey).Return("starter", true, nil)
		store := NewPlanStore(ctx, orgID, storage)

		notified := false
		store.Subscribe(func(context.Context, PlanChange) { notified = true })

		err := store.SetPlan(ctx, subscription.Plan("platinum"))

		assert.ErrorIs(t, err, subscription.ErrInvalidPlan)
		assert.Equal(t, subscription.PlanStarter, store.Current())
		assert.False(t, notified)
		storage.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("write failure keeps the new plan in memory and warns", func(t *testing.T) {
		storage := new(MockPlanStorage)
		storage.On("Get", ctx, orgID, subscription.PlanSettingKey).Return("free", true, nil)
		storage.On("Set", ctx, orgID, subscription.PlanSettingKey, "enterprise").Return(errors.New("quota exceeded"))
		store := NewPlanStore(ctx, orgID, storage)

		var got PlanChange
		store.Subscribe(func(_ context.Context, c PlanChange) { got = c })

		err := store.SetPlan(ctx, subscription.PlanEnterprise)

		require.Error(t, err)
		assert.True(t, IsNotPersisted(err))
		assert.Equal(t, subscription.PlanEnterprise, store.Current())
		assert.False(t, got.Persisted)
		assert.Equal(t, subscription.PlanEnterprise, got.Current)
	})

	t.Run("setting the same plan twice notifies twice", func(t *testing.T) {
		storage := newMapStorage()
		store := NewPlanStore(ctx, orgID, storage)

		count := 0
		store.Subscribe(func(context.Context, PlanChange) { count++ })

		require.NoError(t, store.SetPlan(ctx, subscription.PlanStarter))
		require.NoError(t, store.SetPlan(ctx, subscription.PlanStarter))

		assert.Equal(t, 2, count)
		assert.Equal(t, subscription.PlanStarter, store.Current())
		v, found, err := storage.Get(ctx, orgID, subscription.PlanSettingKey)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "starter", v)
	})

	t.Run("accepts plan identifiers in any case", func(t *testing.T) {
		store := NewPlanStore(ctx, orgID, newMapStorage())
		require.NoError(t, store.SetPlan(ctx, subscription.Plan("Business")))
		assert.Equal(t, subscription.PlanBusiness, store.Current())
	})
}

func TestPlanStore_ReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	storage := newMapStorage()

	for _, plan := range subscription.AllPlans() {
		t.Run(string(plan), func(t *testing.T) {
			require.NoError(t, NewPlanStore(ctx, orgID, storage).SetPlan(ctx, plan))

			reloaded := NewPlanStore(ctx, orgID, storage)
			assert.Equal(t, plan, reloaded.Current())
		})
	}
}

func TestPlanStore_Observers(t *testing.T) {
	ctx := context.Background()

	t.Run("observers see the new plan through Current", func(t *testing.T) {
		store := NewPlanStore(ctx, uuid.New(), newMapStorage())

		var seen subscription.Plan
		store.Subscribe(func(context.Context, PlanChange) { seen = store.Current() })

		require.NoError(t, store.SetPlan(ctx, subscription.PlanBusiness))
		assert.Equal(t, subscription.PlanBusiness, seen)
	})

	t.Run("every observer is notified before SetPlan returns", func(t *testing.T) {
		store := NewPlanStore(ctx, uuid.New(), newMapStorage())

		var mu sync.Mutex
		notified := 0
		for i := 0; i < 5; i++ {
			store.Subscribe(func(context.Context, PlanChange) {
				mu.Lock()
				notified++
				mu.Unlock()
			})
		}

		require.NoError(t, store.SetPlan(ctx, subscription.PlanStarter))
		assert.Equal(t, 5, notified)
	})

	t.Run("unsubscribe stops notifications", func(t *testing.T) {
		store := NewPlanStore(ctx, uuid.New(), newMapStorage())

		count := 0
		unsubscribe := store.Subscribe(func(context.Context, PlanChange) { count++ })
		require.NoError(t, store.SetPlan(ctx, subscription.PlanStarter))
		unsubscribe()
		unsubscribe()
		require.NoError(t, store.SetPlan(ctx, subscription.PlanBusiness))

		assert.Equal(t, 1, count)
	})

	t.Run("a panicking observer does not block the others", func(t *testing.T) {
		store := NewPlanStore(ctx, uuid.New(), newMapStorage())

		called := false
		store.Subscribe(func(context.Context, PlanChange) { panic("boom") })
		store.Subscribe(func(context.Context, PlanChange) { called = true })

		require.NoError(t, store.SetPlan(ctx, subscription.PlanStarter))
		assert.True(t, called)
	})
}

func TestPlanStore_ConcurrentSetPlanSerializesWrites(t *testing.T) {
	ctx := context.Background()
	storage := newMapStorage()
	store := NewPlanStore(ctx, uuid.New(), storage)

	var mu sync.Mutex
	notifications := 0
	store.Subscribe(func(context.Context, PlanChange) {
		mu.Lock()
		notifications++
		mu.Unlock()
	})

	plans := subscription.AllPlans()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(p subscription.Plan) {
			defer wg.Done()
			assert.NoError(t, store.SetPlan(ctx, p))
			_ = store.Current()
		}(plans[i%len(plans)])
	}
	wg.Wait()

	assert.Equal(t, 50, notifications)
	stored, _, err := storage.Get(ctx, store.OrganizationID(), subscription.PlanSettingKey)
	require.NoError(t, err)
	assert.Equal(t, string(store.Current()), stored, "memory and storage agree after the last write")
}
