package handler

import (
	"context"
	"time"

	"github.com/flowstate/agency/internal/application/realtime"
	appsub "github.com/flowstate/agency/internal/application/subscription"
	domainrt "github.com/flowstate/agency/internal/domain/realtime"
	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// usageSnapshot is the cached part of the summary
type usageSnapshot struct {
	counts      map[subscription.ResourceKind]int
	generatedAt time.Time
}

// AnalyticsSummary is the usage dashboard of an organization
type AnalyticsSummary struct {
	OrganizationID uuid.UUID                         `json:"organization_id"`
	Plan           subscription.Plan                 `json:"plan"`
	Totals         map[subscription.ResourceKind]int `json:"totals"`
	Quotas         []subscription.Quota              `json:"quotas"`
	GeneratedAt    time.Time                         `json:"generated_at"`
}

// AnalyticsHandler serves the analytics dashboard. Counts are cached per organization
// until an analytics_updated event marks them stale; the plan is read on every request.
type AnalyticsHandler struct {
	BaseHandler
	entitlements *appsub.EntitlementService
	counter      appsub.ResourceCounter
	cache        *realtime.QueryCache
	guard        gin.HandlerFunc
}

// NewAnalyticsHandler creates the handler. guard is mounted in front of every route.
func NewAnalyticsHandler(entitlements *appsub.EntitlementService, counter appsub.ResourceCounter, cache *realtime.QueryCache, guard gin.HandlerFunc) *AnalyticsHandler {
	return &AnalyticsHandler{entitlements: entitlements, counter: counter, cache: cache, guard: guard}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *AnalyticsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/analytics")
	if h.guard != nil {
		group.Use(h.guard)
	}
	group.GET("/summary", h.GetSummary)
}

// GetSummary godoc
//
//	@Summary	Usage summary of the organization
//	@Tags		analytics
//	@Produce	json
//	@Failure	403	"Analytics is not part of the current plan"
//	@Router		/analytics/summary [get]
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	plan, err := h.entitlements.CurrentPlan(ctx, orgID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	key := realtime.QueryKey{Scope: orgID.String(), Kind: domainrt.QueryAnalytics, View: "summary"}
	v, err := h.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		return h.snapshot(ctx, orgID)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	snap := v.(*usageSnapshot)

	h.Success(c, AnalyticsSummary{
		OrganizationID: orgID,
		Plan:           plan,
		Totals:         snap.counts,
		Quotas:         h.entitlements.Evaluator().Usage(plan, snap.counts),
		GeneratedAt:    snap.generatedAt,
	})
}

func (h *AnalyticsHandler) snapshot(ctx context.Context, orgID uuid.UUID) (*usageSnapshot, error) {
	counts := make(map[subscription.ResourceKind]int, len(subscription.AllResourceKinds()))
	for _, kind := range subscription.AllResourceKinds() {
		n, err := h.counter.Count(ctx, orgID, kind)
		if err != nil {
			return nil, shared.ErrStorageUnavailable.Wrap(err)
		}
		counts[kind] = n
	}
	return &usageSnapshot{counts: counts, generatedAt: time.Now().UTC()}, nil
}
