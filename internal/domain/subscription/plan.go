package subscription

import (
	"fmt"
	"strings"
)

// Plan identifies a subscription tier
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanBusiness   Plan = "business"
	PlanEnterprise Plan = "enterprise"
	PlanCustom     Plan = "custom"
)

// DefaultPlan is adopted whenever no valid plan is known for an organization
const DefaultPlan = PlanFree

// planRanks holds the explicit ordering of tiers. Gaps leave room for new tiers.
var planRanks = map[Plan]int{
	PlanFree:       0,
	PlanStarter:    10,
	PlanBusiness:   20,
	PlanEnterprise: 30,
	PlanCustom:     40,
}

var planNames = map[Plan]string{
	PlanFree:       "Free",
	PlanStarter:    "Starter",
	PlanBusiness:   "Business",
	PlanEnterprise: "Enterprise",
	PlanCustom:     "Custom",
}

// ParsePlan converts a user-supplied identifier into a Plan.
// Matching ignores case and surrounding whitespace.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", ErrInvalidPlan.WithMessage(fmt.Sprintf("invalid subscription plan %q", s))
	}
	return p, nil
}

// ParseStoredPlan converts a persisted value into a Plan. Only the exact
// identifier matches, so a stored value must be written by this package.
func ParseStoredPlan(s string) (Plan, error) {
	p := Plan(s)
	if !p.IsValid() {
		return "", ErrInvalidPlan.WithMessage(fmt.Sprintf("invalid stored plan %q", s))
	}
	return p, nil
}

// IsValid reports whether p is a member of the plan set
func (p Plan) IsValid() bool {
	_, ok := planRanks[p]
	return ok
}

// Rank returns the tier rank, or -1 for an invalid plan
func (p Plan) Rank() int {
	r, ok := planRanks[p]
	if !ok {
		return -1
	}
	return r
}

// AtLeast reports whether p is the same tier as other or above it.
// Invalid plans are never at least anything.
func (p Plan) AtLeast(other Plan) bool {
	if !p.IsValid() || !other.IsValid() {
		return false
	}
	return p.Rank() >= other.Rank()
}

// DisplayName returns the human readable plan name
func (p Plan) DisplayName() string {
	if name, ok := planNames[p]; ok {
		return name
	}
	return string(p)
}

func (p Plan) String() string {
	return string(p)
}

// AllPlans returns every plan ordered by rank
func AllPlans() []Plan {
	return []Plan{PlanFree, PlanStarter, PlanBusiness, PlanEnterprise, PlanCustom}
}
