package handler

import (
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/flowstate/agency/internal/interfaces/http/dto"
	"github.com/flowstate/agency/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// PlanHandler serves the static plan catalog
type PlanHandler struct {
	BaseHandler
	evaluator *subscription.Evaluator
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(evaluator *subscription.Evaluator) *PlanHandler {
	return &PlanHandler{evaluator: evaluator}
}

// PlanResponse is one catalog entry with its display copy
type PlanResponse struct {
	subscription.PlanFeatures
	Description  string   `json:"description"`
	MonthlyPrice string   `json:"monthly_price"`
	ContactSales bool     `json:"contact_sales"`
	Highlights   []string `json:"highlights"`
}

// MinimumPlanResponse is the cheapest plan granting a feature
type MinimumPlanResponse struct {
	Feature      subscription.FeatureID `json:"feature"`
	FeatureName  string                 `json:"feature_name"`
	Available    bool                   `json:"available"`
	Plan         subscription.Plan      `json:"plan,omitempty"`
	PlanName     string                 `json:"plan_name,omitempty"`
	MonthlyPrice string                 `json:"monthly_price,omitempty"`
}

// RegisterRoutes implements router.RouteRegistrar
func (h *PlanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/plans", h.ListPlans)
	rg.GET("/plans/:plan/features", h.GetPlanFeatures)
	rg.GET("/features/:feature/minimum-plan", h.GetMinimumPlan)
}

// ListPlans godoc
//
//	@Summary	List subscription plans in rank order
//	@Tags		plans
//	@Produce	json
//	@Router		/plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	entries := h.evaluator.Catalog().Entries()
	plans := make([]PlanResponse, 0, len(entries))
	for _, e := range entries {
		plans = append(plans, h.toPlanResponse(e))
	}
	h.Success(c, plans)
}

// GetPlanFeatures godoc
//
//	@Summary	Get limits and feature flags of a plan
//	@Tags		plans
//	@Param		plan	path	string	true	"Plan identifier"
//	@Produce	json
//	@Router		/plans/{plan}/features [get]
func (h *PlanHandler) GetPlanFeatures(c *gin.Context) {
	plan, err := subscription.ParsePlan(c.Param("plan"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.evaluator.PlanFeatures(plan))
}

// GetMinimumPlan godoc
//
//	@Summary	Get the lowest plan granting a feature
//	@Tags		plans
//	@Param		feature	path	string	true	"Feature identifier"
//	@Produce	json
//	@Router		/features/{feature}/minimum-plan [get]
func (h *PlanHandler) GetMinimumPlan(c *gin.Context) {
	var req dto.FeatureRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	feature := subscription.FeatureID(req.Feature)
	resp := MinimumPlanResponse{
		Feature:     feature,
		FeatureName: feature.DisplayName(),
	}
	if plan, ok := h.evaluator.MinimumPlanFor(feature); ok {
		resp.Available = true
		resp.Plan = plan
		resp.PlanName = plan.DisplayName()
		if entry, found := h.evaluator.Catalog().Entry(plan); found {
			resp.MonthlyPrice = entry.MonthlyPrice.StringFixed(2)
		}
	}
	h.Success(c, resp)
}

func (h *PlanHandler) toPlanResponse(e subscription.CatalogEntry) PlanResponse {
	highlights := e.Highlights
	if highlights == nil {
		highlights = []string{}
	}
	return PlanResponse{
		PlanFeatures: h.evaluator.PlanFeatures(e.Plan),
		Description:  e.Description,
		MonthlyPrice: e.MonthlyPrice.StringFixed(2),
		ContactSales: e.ContactSales,
		Highlights:   highlights,
	}
}
