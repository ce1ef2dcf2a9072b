package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUpgradeService_Upgrade(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(subscription.NewEvaluator(nil), GateConfig{UpgradePath: "/settings/billing"})

	t.Run("sets the plan and redirects to settings", func(t *testing.T) {
		registry := NewPlanStoreRegistry(newMapStorage(), nil)
		svc := NewUpgradeService(registry, gate, nil)
		orgID := uuid.New()

		result, err := svc.Upgrade(ctx, orgID, "business")

		require.NoError(t, err)
		assert.Equal(t, subscription.PlanBusiness, result.Plan)
		assert.Equal(t, "/settings/billing", result.RedirectTo)
		assert.Empty(t, result.Warning)

		plan, err := registry.CurrentPlan(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, subscription.PlanBusiness, plan)
	})

	t.Run("invalid plan is a user visible failure", func(t *testing.T) {
		registry := NewPlanStoreRegistry(newMapStorage(), nil)
		svc := NewUpgradeService(registry, gate, nil)

		result, err := svc.Upgrade(ctx, uuid.New(), "platinum")

		assert.Nil(t, result)
		assert.ErrorIs(t, err, subscription.ErrInvalidPlan)
		assert.Equal(t, 0, registry.Len(), "no store is loaded for a rejected plan")
	})

	t.Run("unsaved change returns a warning instead of failing", func(t *testing.T) {
		storage := new(MockPlanStorage)
		storage.On("Get", mock.Anything, mock.Anything, subscription.PlanSettingKey).Return("free", true, nil)
		storage.On("Set", mock.Anything, mock.Anything, subscription.PlanSettingKey, "starter").Return(errors.New("offline"))
		registry := NewPlanStoreRegistry(storage, nil)
		svc := NewUpgradeService(registry, gate, nil)
		orgID := uuid.New()

		result, err := svc.Upgrade(ctx, orgID, "Starter")

		require.NoError(t, err)
		assert.Equal(t, UnsavedNotice, result.Warning)
		plan, err := registry.CurrentPlan(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, subscription.PlanStarter, plan)
	})
}
