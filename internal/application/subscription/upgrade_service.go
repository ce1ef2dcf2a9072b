package subscription

import (
	"context"

	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UnsavedNotice is surfaced when a plan change could not be persisted
const UnsavedNotice = "Changes not saved: your plan may revert after a reload"

// UpgradeResult is the outcome of a plan change request
type UpgradeResult struct {
	Plan       subscription.Plan `json:"plan"`
	RedirectTo string            `json:"redirect_to"`
	Warning    string            `json:"warning,omitempty"`
}

// UpgradeService is the plan-change affordance: set the plan, then send the user to settings
type UpgradeService struct {
	registry *PlanStoreRegistry
	gate     *Gate
	logger   *zap.Logger
}

// NewUpgradeService creates an upgrade service
func NewUpgradeService(registry *PlanStoreRegistry, gate *Gate, logger *zap.Logger) *UpgradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpgradeService{registry: registry, gate: gate, logger: logger}
}

// Upgrade changes the organization plan. An unrecognized plan is rejected with ErrInvalidPlan.
// A failed write is not an error: the result carries an unsaved warning instead.
func (s *UpgradeService) Upgrade(ctx context.Context, orgID uuid.UUID, plan string) (*UpgradeResult, error) {
	next, err := subscription.ParsePlan(plan)
	if err != nil {
		return nil, err
	}

	store, err := s.registry.Store(ctx, orgID)
	if err != nil {
		return nil, err
	}

	result := &UpgradeResult{
		Plan:       next,
		RedirectTo: s.gate.Config().UpgradePath,
	}
	if err := store.SetPlan(ctx, next); err != nil {
		if !IsNotPersisted(err) {
			return nil, err
		}
		s.logger.Warn("Plan change not persisted",
			zap.String("organization_id", orgID.String()),
			zap.String("plan", string(next)),
			zap.Error(err))
		result.Warning = UnsavedNotice
	}
	return result, nil
}
