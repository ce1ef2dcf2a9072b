package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flowstate/agency/internal/domain/realtime"
	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPlanStoreRegistry_Store(t *testing.T) {
	ctx := context.Background()
	registry := NewPlanStoreRegistry(newMapStorage(), nil)

	orgA, orgB := uuid.New(), uuid.New()
	a1, err := registry.Store(ctx, orgA)
	require.NoError(t, err)
	a2, err := registry.Store(ctx, orgA)
	require.NoError(t, err)
	b, err := registry.Store(ctx, orgB)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 2, registry.Len())

	require.NoError(t, a1.SetPlan(ctx, subscription.PlanBusiness))
	assert.Equal(t, subscription.PlanFree, b.Current(), "organizations are independent")

	_, err = registry.Store(ctx, uuid.Nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestPlanStoreRegistry_ObserversApplyToAllStores(t *testing.T) {
	ctx := context.Background()
	registry := NewPlanStoreRegistry(newMapStorage(), nil)

	existing, err := registry.Store(ctx, uuid.New())
	require.NoError(t, err)

	var changes []PlanChange
	registry.Observe(func(_ context.Context, c PlanChange) { changes = append(changes, c) })

	later, err := registry.Store(ctx, uuid.New())
	require.NoError(t, err)

	require.NoError(t, existing.SetPlan(ctx, subscription.PlanStarter))
	require.NoError(t, later.SetPlan(ctx, subscription.PlanEnterprise))

	require.Len(t, changes, 2)
	assert.Equal(t, existing.OrganizationID(), changes[0].OrganizationID)
	assert.Equal(t, later.OrganizationID(), changes[1].OrganizationID)
}

func TestPlanStoreRegistry_EvictReloads(t *testing.T) {
	ctx := context.Background()
	storage := newMapStorage()
	registry := NewPlanStoreRegistry(storage, nil)
	orgID := uuid.New()

	plan, err := registry.CurrentPlan(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanFree, plan)

	// another process writes the plan directly
	require.NoError(t, storage.Set(ctx, orgID, subscription.PlanSettingKey, "enterprise"))

	plan, err = registry.CurrentPlan(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanFree, plan)

	registry.Evict(orgID)
	plan, err = registry.CurrentPlan(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanEnterprise, plan)

	registry.Close()
	assert.Equal(t, 0, registry.Len())
}

func TestPlanStoreRegistry_EvictOnRemoteChange(t *testing.T) {
	ctx := context.Background()
	storage := newMapStorage()
	registry := NewPlanStoreRegistry(storage, nil)
	orgID := uuid.New()
	store, err := registry.Store(ctx, orgID)
	require.NoError(t, err)

	// the plan changes in storage behind this process
	require.NoError(t, storage.Set(ctx, orgID, subscription.PlanSettingKey, "business"))
	sink := registry.EvictOnRemoteChange("instance-a")

	local, err := realtime.NewInvalidationEvent(realtime.EventSubscriptionUpdated, orgID, "business")
	require.NoError(t, err)
	local.Source = "instance-a"
	sink(ctx, local)
	plan, err := registry.CurrentPlan(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanFree, plan, "own events do not reload")

	other, err := realtime.NewInvalidationEvent(realtime.EventProjectUpdated, orgID, "p1")
	require.NoError(t, err)
	sink(ctx, other)
	plan, err = registry.CurrentPlan(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanFree, plan, "unrelated events do not reload")

	remote := local
	remote.Source = "instance-b"
	sink(ctx, remote)
	plan, err = registry.CurrentPlan(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanBusiness, plan)
	assert.Equal(t, subscription.PlanBusiness, store.Current(), "held store is reloaded in place")
	assert.Equal(t, 1, registry.Len())
}

func TestPlanStoreRegistry_EvictKeepsOneStorePerOrganization(t *testing.T) {
	ctx := context.Background()
	storage := newMapStorage()
	registry := NewPlanStoreRegistry(storage, nil)
	orgID := uuid.New()

	held, err := registry.Store(ctx, orgID)
	require.NoError(t, err)
	require.NoError(t, storage.Set(ctx, orgID, subscription.PlanSettingKey, "enterprise"))

	registry.Evict(orgID)
	fresh, err := registry.Store(ctx, orgID)
	require.NoError(t, err)
	assert.Same(t, held, fresh)
	assert.Equal(t, subscription.PlanEnterprise, held.Current())

	require.NoError(t, held.SetPlan(ctx, subscription.PlanBusiness))
	plan, err := registry.CurrentPlan(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanBusiness, plan)
	assert.Equal(t, subscription.PlanBusiness, fresh.Current())
}

func TestPlanStoreRegistry_SetPlanAfterEvictWins(t *testing.T) {
	ctx := context.Background()
	storage := newMapStorage()
	registry := NewPlanStoreRegistry(storage, nil)
	orgID := uuid.New()

	store, err := registry.Store(ctx, orgID)
	require.NoError(t, err)
	registry.Evict(orgID)
	require.NoError(t, store.SetPlan(ctx, subscription.PlanStarter))

	plan, err := registry.CurrentPlan(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanStarter, plan)
}

func TestPlanStoreRegistry_ReloadFailureRetries(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	storage := new(MockPlanStorage)
	storage.On("Get", mock.Anything, orgID, subscription.PlanSettingKey).Return("business", true, nil).Once()
	storage.On("Get", mock.Anything, orgID, subscription.PlanSettingKey).Return("", false, errors.New("storage offline")).Once()
	storage.On("Get", mock.Anything, orgID, subscription.PlanSettingKey).Return("enterprise", true, nil).Once()

	registry := NewPlanStoreRegistry(storage, nil)
	_, err := registry.Store(ctx, orgID)
	require.NoError(t, err)

	registry.Evict(orgID)
	plan, err := registry.CurrentPlan(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanBusiness, plan, "failed reload keeps the current plan")

	plan, err = registry.CurrentPlan(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanEnterprise, plan)
	storage.AssertExpectations(t)
}

func TestPlanStoreRegistry_LoadDoesNotBlockOtherOrganizations(t *testing.T) {
	ctx := context.Background()
	orgA, orgB := uuid.New(), uuid.New()
	storage := newGatedStorage(orgB)
	registry := NewPlanStoreRegistry(storage, nil)

	_, err := registry.Store(ctx, orgA)
	require.NoError(t, err)

	loaded := make(chan *PlanStore, 3)
	for range 3 {
		go func() {
			s, err := registry.Store(ctx, orgB)
			assert.NoError(t, err)
			loaded <- s
		}()
	}
	<-storage.entered

	served := make(chan subscription.Plan, 1)
	go func() {
		plan, err := registry.CurrentPlan(ctx, orgA)
		assert.NoError(t, err)
		served <- plan
	}()
	select {
	case plan := <-served:
		assert.Equal(t, subscription.PlanFree, plan)
	case <-time.After(time.Second):
		t.Fatal("loaded organization waited on another organization's load")
	}

	var changes []PlanChange
	registry.Observe(func(_ context.Context, c PlanChange) { changes = append(changes, c) })
	close(storage.release)

	first := <-loaded
	for range 2 {
		assert.Same(t, first, <-loaded)
	}
	assert.Equal(t, 2, registry.Len())

	require.NoError(t, first.SetPlan(ctx, subscription.PlanStarter))
	require.Len(t, changes, 1, "observers registered during the load reach the new store")
	assert.Equal(t, orgB, changes[0].OrganizationID)
}

type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func TestPublishPlanChanges(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	registry := NewPlanStoreRegistry(newMapStorage(), nil)
	registry.Observe(PublishPlanChanges(pub, nil))

	orgID := uuid.New()
	store, err := registry.Store(ctx, orgID)
	require.NoError(t, err)
	require.NoError(t, store.SetPlan(ctx, subscription.PlanBusiness))

	require.Len(t, pub.events, 1)
	evt, ok := pub.events[0].(*subscription.PlanChangedEvent)
	require.True(t, ok)
	assert.Equal(t, orgID, evt.OrganizationID())
	assert.Equal(t, subscription.PlanFree, evt.Previous)
	assert.Equal(t, subscription.PlanBusiness, evt.Current)
	assert.True(t, evt.Persisted)
}

func TestPlanStoreRegistry_LoadTimeout(t *testing.T) {
	storage := new(MockPlanStorage)
	orgID := uuid.New()
	storage.On("Get", mock.Anything, orgID, subscription.PlanSettingKey).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, ok := ctx.Deadline()
			assert.True(t, ok, "load runs under a deadline")
		}).
		Return("business", true, nil)

	registry := NewPlanStoreRegistry(storage, nil, WithLoadTimeout(time.Second))
	plan, err := registry.CurrentPlan(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanBusiness, plan)
	storage.AssertExpectations(t)
}
