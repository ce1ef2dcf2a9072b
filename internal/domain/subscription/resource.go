package subscription

import (
	"fmt"
	"strings"
)

// ResourceKind names a countable resource constrained by plan limits
type ResourceKind string

const (
	ResourceProjects ResourceKind = "projects"
	ResourceUsers    ResourceKind = "users"
	ResourceTeams    ResourceKind = "teams"
	ResourceClients  ResourceKind = "clients"
	ResourceGoals    ResourceKind = "goals"
)

// AllResourceKinds returns every limited resource kind in display order
func AllResourceKinds() []ResourceKind {
	return []ResourceKind{ResourceProjects, ResourceUsers, ResourceTeams, ResourceClients, ResourceGoals}
}

// ParseResourceKind validates a resource kind identifier
func ParseResourceKind(s string) (ResourceKind, error) {
	k := ResourceKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllResourceKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", ErrUnknownResourceKind.WithMessage(fmt.Sprintf("unknown resource kind %q", s))
}

// PlanLimits is the numeric allowance a plan grants per resource kind
type PlanLimits struct {
	Projects Limit `json:"projects"`
	Users    Limit `json:"users"`
	Teams    Limit `json:"teams"`
	Clients  Limit `json:"clients"`
	Goals    Limit `json:"goals"`
}

// Get returns the limit for kind
func (l PlanLimits) Get(kind ResourceKind) (Limit, error) {
	switch kind {
	case ResourceProjects:
		return l.Projects, nil
	case ResourceUsers:
		return l.Users, nil
	case ResourceTeams:
		return l.Teams, nil
	case ResourceClients:
		return l.Clients, nil
	case ResourceGoals:
		return l.Goals, nil
	default:
		return Limit{}, ErrUnknownResourceKind.WithMessage(fmt.Sprintf("unknown resource kind %q", kind))
	}
}

// UnboundedLimits returns limits with every kind unbounded
func UnboundedLimits() PlanLimits {
	return PlanLimits{
		Projects: Unbounded(),
		Users:    Unbounded(),
		Teams:    Unbounded(),
		Clients:  Unbounded(),
		Goals:    Unbounded(),
	}
}
