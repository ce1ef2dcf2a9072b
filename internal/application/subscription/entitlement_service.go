package subscription

import (
	"context"

	"github.com/flowstate/agency/internal/application/realtime"
	domainrt "github.com/flowstate/agency/internal/domain/realtime"
	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResourceCounter counts existing resources of an organization
type ResourceCounter interface {
	Count(ctx context.Context, orgID uuid.UUID, kind subscription.ResourceKind) (int, error)
}

// resourceQueries maps resource kinds to the query kinds whose events invalidate their counts
var resourceQueries = map[subscription.ResourceKind]domainrt.QueryKind{
	subscription.ResourceProjects: domainrt.QueryProjects,
	subscription.ResourceUsers:    domainrt.QueryEmployees,
}

// CachedCounter serves counts from a QueryCache for kinds that have invalidation events
// and reads the rest straight through.
type CachedCounter struct {
	counter ResourceCounter
	cache   *realtime.QueryCache
}

// NewCachedCounter wraps counter with cache
func NewCachedCounter(counter ResourceCounter, cache *realtime.QueryCache) *CachedCounter {
	return &CachedCounter{counter: counter, cache: cache}
}

// Count implements ResourceCounter
func (c *CachedCounter) Count(ctx context.Context, orgID uuid.UUID, kind subscription.ResourceKind) (int, error) {
	qk, ok := resourceQueries[kind]
	if !ok {
		return c.counter.Count(ctx, orgID, kind)
	}
	v, err := c.cache.Get(ctx, realtime.QueryKey{Scope: orgID.String(), Kind: qk, View: "count"}, func(ctx context.Context) (any, error) {
		return c.counter.Count(ctx, orgID, kind)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// SubscriptionView is the current plan of an organization with everything it confers
type SubscriptionView struct {
	OrganizationID uuid.UUID                 `json:"organization_id"`
	Plan           subscription.PlanFeatures `json:"plan"`
	Quotas         []subscription.Quota      `json:"quotas"`
}

// FeatureCheck is the answer to hasFeature
type FeatureCheck struct {
	Feature      subscription.FeatureID `json:"feature"`
	Enabled      bool                   `json:"enabled"`
	CurrentPlan  subscription.Plan      `json:"current_plan"`
	RequiredPlan subscription.Plan      `json:"required_plan,omitempty"`
}

// LimitCheck is the answer to canCreate for the counted usage
type LimitCheck struct {
	CurrentPlan subscription.Plan `json:"current_plan"`
	subscription.Quota
}

// EntitlementService answers entitlement questions for an organization's current plan
type EntitlementService struct {
	registry  *PlanStoreRegistry
	evaluator *subscription.Evaluator
	gate      *Gate
	counter   ResourceCounter
	logger    *zap.Logger
}

// NewEntitlementService creates the service
func NewEntitlementService(
	registry *PlanStoreRegistry,
	evaluator *subscription.Evaluator,
	gate *Gate,
	counter ResourceCounter,
	logger *zap.Logger,
) *EntitlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntitlementService{
		registry:  registry,
		evaluator: evaluator,
		gate:      gate,
		counter:   counter,
		logger:    logger,
	}
}

// Evaluator returns the underlying evaluator
func (s *EntitlementService) Evaluator() *subscription.Evaluator {
	return s.evaluator
}

// CurrentPlan returns the organization's plan
func (s *EntitlementService) CurrentPlan(ctx context.Context, orgID uuid.UUID) (subscription.Plan, error) {
	return s.registry.CurrentPlan(ctx, orgID)
}

// CurrentSubscription returns the plan, its entitlements and usage against limits
func (s *EntitlementService) CurrentSubscription(ctx context.Context, orgID uuid.UUID) (*SubscriptionView, error) {
	plan, err := s.registry.CurrentPlan(ctx, orgID)
	if err != nil {
		return nil, err
	}

	counts, err := s.counts(ctx, orgID)
	if err != nil {
		return nil, err
	}

	return &SubscriptionView{
		OrganizationID: orgID,
		Plan:           s.evaluator.PlanFeatures(plan),
		Quotas:         s.evaluator.Usage(plan, counts),
	}, nil
}

// HasFeature reports whether the organization's plan grants feature
func (s *EntitlementService) HasFeature(ctx context.Context, orgID uuid.UUID, feature subscription.FeatureID) (*FeatureCheck, error) {
	plan, err := s.registry.CurrentPlan(ctx, orgID)
	if err != nil {
		return nil, err
	}
	check := &FeatureCheck{
		Feature:     feature,
		Enabled:     s.evaluator.HasFeature(plan, feature),
		CurrentPlan: plan,
	}
	if required, ok := s.evaluator.MinimumPlanFor(feature); ok {
		check.RequiredPlan = required
	}
	return check, nil
}

// CheckLimit counts existing resources of kind and reports whether one more may be created
func (s *EntitlementService) CheckLimit(ctx context.Context, orgID uuid.UUID, kind subscription.ResourceKind) (*LimitCheck, error) {
	plan, err := s.registry.CurrentPlan(ctx, orgID)
	if err != nil {
		return nil, err
	}
	limit, err := s.evaluator.Catalog().LimitsFor(plan).Get(kind)
	if err != nil {
		return nil, err
	}

	used, err := s.counter.Count(ctx, orgID, kind)
	if err != nil {
		s.logger.Error("Failed to count resources",
			zap.String("organization_id", orgID.String()),
			zap.String("resource", string(kind)),
			zap.Error(err))
		return nil, shared.ErrStorageUnavailable.Wrap(err)
	}

	allowed, err := s.evaluator.CanCreate(plan, kind, used)
	if err != nil {
		return nil, err
	}
	remaining, bounded := limit.Remaining(used)
	return &LimitCheck{
		CurrentPlan: plan,
		Quota: subscription.Quota{
			Resource:  kind,
			Used:      used,
			Limit:     limit,
			Remaining: remaining,
			Unbounded: !bounded,
			CanCreate: allowed,
		},
	}, nil
}

// Gate runs the gating adapter against the organization's current plan
func (s *EntitlementService) Gate(ctx context.Context, orgID uuid.UUID, feature subscription.FeatureID, content any, message string, benefits []string) (GateResult, error) {
	plan, err := s.registry.CurrentPlan(ctx, orgID)
	if err != nil {
		return GateResult{}, err
	}
	return s.gate.Evaluate(plan, feature, content, message, benefits), nil
}

func (s *EntitlementService) counts(ctx context.Context, orgID uuid.UUID) (map[subscription.ResourceKind]int, error) {
	counts := make(map[subscription.ResourceKind]int, len(subscription.AllResourceKinds()))
	for _, kind := range subscription.AllResourceKinds() {
		n, err := s.counter.Count(ctx, orgID, kind)
		if err != nil {
			s.logger.Error("Failed to count resources",
				zap.String("organization_id", orgID.String()),
				zap.String("resource", string(kind)),
				zap.Error(err))
			return nil, shared.ErrStorageUnavailable.Wrap(err)
		}
		counts[kind] = n
	}
	return counts, nil
}
