package subscription

import "github.com/flowstate/agency/internal/domain/shared"

var (
	// ErrInvalidPlan is returned when a plan identifier is outside the known plan set
	ErrInvalidPlan = shared.NewDomainError("INVALID_PLAN", "Invalid subscription plan")
	// ErrUnknownResourceKind is a contract violation: the resource kind has no limit in PlanLimits
	ErrUnknownResourceKind = shared.NewDomainError("UNKNOWN_RESOURCE_KIND", "Unknown resource kind")
	// ErrFeatureNotAvailable is returned when the current plan does not grant a feature
	ErrFeatureNotAvailable = shared.NewDomainError("FEATURE_NOT_AVAILABLE", "Feature is not available on the current plan")
	// ErrLimitReached is returned when a resource limit has been reached
	ErrLimitReached = shared.NewDomainError("LIMIT_REACHED", "Plan limit reached")
)
