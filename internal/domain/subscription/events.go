package subscription

import (
	"time"

	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/google/uuid"
)

// EventTypePlanChanged is published after an organization's plan is set
const EventTypePlanChanged = "subscription.PlanChanged"

// PlanChangedEvent records a plan transition for one organization
type PlanChangedEvent struct {
	shared.EventHeader
	Previous  Plan `json:"previous"`
	Current   Plan `json:"current"`
	Persisted bool `json:"persisted"`
}

// NewPlanChangedEvent creates a PlanChangedEvent that occurred at changedAt (now when zero)
func NewPlanChangedEvent(orgID uuid.UUID, previous, current Plan, persisted bool, changedAt time.Time) *PlanChangedEvent {
	return &PlanChangedEvent{
		EventHeader: shared.NewEventHeader(EventTypePlanChanged, orgID, changedAt),
		Previous:    previous,
		Current:     current,
		Persisted:   persisted,
	}
}

// IsUpgrade reports whether the new plan ranks above the previous one
func (e *PlanChangedEvent) IsUpgrade() bool {
	return e.Current.Rank() > e.Previous.Rank()
}
