package middleware

import (
	"context"
	"fmt"
	"net/http"

	appsub "github.com/flowstate/agency/internal/application/subscription"
	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/flowstate/agency/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeatureGate evaluates the organization's current plan against a feature
type FeatureGate interface {
	Gate(ctx context.Context, orgID uuid.UUID, feature subscription.FeatureID, content any, message string, benefits []string) (appsub.GateResult, error)
}

// DenialRecorder is notified of every blocked request
type DenialRecorder interface {
	GateDenied(ctx context.Context, feature subscription.FeatureID, plan subscription.Plan)
}

// FeatureConfig holds configuration for feature middleware
type FeatureConfig struct {
	// Gate is required
	Gate FeatureGate
	// Recorder is optional
	Recorder DenialRecorder
	Logger   *zap.Logger
}

// RequireFeature blocks the route unless the organization's plan grants feature.
// A denied request gets 403 with the upgrade prompt as data.
// Panics on an unknown feature so misconfigured routes fail at startup.
func RequireFeature(feature subscription.FeatureID, cfg FeatureConfig) gin.HandlerFunc {
	if !feature.IsKnown() {
		panic(fmt.Sprintf("invalid feature: %s", feature))
	}
	if cfg.Gate == nil {
		panic("feature middleware requires a gate")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		orgID, ok := GetOrganizationID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeMissingOrganization, "No organization context found", GetRequestID(c)))
			return
		}

		result, err := cfg.Gate.Gate(c.Request.Context(), orgID, feature, nil, "", nil)
		if err != nil {
			log.Error("Failed to evaluate feature gate",
				zap.String("organization_id", orgID.String()),
				zap.String("feature", string(feature)),
				zap.Error(err))
			code := shared.CodeOf(err)
			if code == "" {
				code = dto.ErrCodeInternal
			}
			c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(
				code, "Failed to check feature availability", GetRequestID(c)))
			return
		}

		if !result.Allowed {
			prompt := result.Prompt
			log.Info("Feature access denied",
				zap.String("organization_id", orgID.String()),
				zap.String("plan", string(prompt.CurrentPlan)),
				zap.String("feature", string(feature)))
			if cfg.Recorder != nil {
				cfg.Recorder.GateDenied(c.Request.Context(), feature, prompt.CurrentPlan)
			}
			resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeFeatureNotAvailable, prompt.Message, GetRequestID(c))
			resp.Data = prompt
			c.AbortWithStatusJSON(http.StatusForbidden, resp)
			return
		}

		c.Next()
	}
}
