package handler

import (
	appsub "github.com/flowstate/agency/internal/application/subscription"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/flowstate/agency/internal/interfaces/http/dto"
	"github.com/flowstate/agency/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// SubscriptionHandler exposes the organization's current plan and its entitlements
type SubscriptionHandler struct {
	BaseHandler
	entitlements *appsub.EntitlementService
	upgrades     *appsub.UpgradeService
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(entitlements *appsub.EntitlementService, upgrades *appsub.UpgradeService) *SubscriptionHandler {
	return &SubscriptionHandler{entitlements: entitlements, upgrades: upgrades}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *SubscriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sub := rg.Group("/subscription")
	sub.GET("", h.GetSubscription)
	sub.PUT("/plan", h.SetPlan)
	sub.GET("/features/:feature", h.HasFeature)
	sub.GET("/limits/:kind", h.CheckLimit)
	sub.GET("/gate/:feature", h.GetGate)
}

// GetSubscription godoc
//
//	@Summary	Get the current plan with usage against every limit
//	@Tags		subscription
//	@Produce	json
//	@Router		/subscription [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	view, err := h.entitlements.CurrentSubscription(c.Request.Context(), orgID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// SetPlan godoc
//
//	@Summary		Change the organization plan
//	@Description	Returns 200 with a warning when the plan applies to this session but could not be saved
//	@Tags			subscription
//	@Accept			json
//	@Produce		json
//	@Param			request	body	dto.SetPlanRequest	true	"Target plan"
//	@Router			/subscription/plan [put]
func (h *SubscriptionHandler) SetPlan(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req dto.SetPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.upgrades.Upgrade(c.Request.Context(), orgID, req.Plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Warning != "" {
		h.SuccessWithWarning(c, result, result.Warning)
		return
	}
	h.Success(c, result)
}

// HasFeature godoc
//
//	@Summary	Check whether the current plan grants a feature
//	@Tags		subscription
//	@Param		feature	path	string	true	"Feature identifier"
//	@Produce	json
//	@Router		/subscription/features/{feature} [get]
func (h *SubscriptionHandler) HasFeature(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req dto.FeatureRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	check, err := h.entitlements.HasFeature(c.Request.Context(), orgID, subscription.FeatureID(req.Feature))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}

// CheckLimit godoc
//
//	@Summary	Check whether one more resource of a kind may be created
//	@Tags		subscription
//	@Param		kind	path	string	true	"projects, users, teams, clients or goals"
//	@Produce	json
//	@Router		/subscription/limits/{kind} [get]
func (h *SubscriptionHandler) CheckLimit(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req dto.ResourceKindRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	kind, err := subscription.ParseResourceKind(req.Kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	check, err := h.entitlements.CheckLimit(c.Request.Context(), orgID, kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}

// GetGate godoc
//
//	@Summary		Render the gating view of a feature
//	@Description	Allowed is true when the plan grants the feature, otherwise upgrade carries the prompt
//	@Tags			subscription
//	@Param			feature	path	string		true	"Feature identifier"
//	@Param			message	query	string		false	"Prompt message override"
//	@Param			benefit	query	[]string	false	"Prompt benefit bullets"
//	@Produce		json
//	@Router			/subscription/gate/{feature} [get]
func (h *SubscriptionHandler) GetGate(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req dto.FeatureRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	var query dto.GateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.entitlements.Gate(c.Request.Context(), orgID, subscription.FeatureID(req.Feature), nil, query.Message, query.Benefits)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
