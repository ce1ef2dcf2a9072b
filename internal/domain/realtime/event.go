package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/google/uuid"
)

// EventName is a named invalidation notice emitted when domain data changes
type EventName string

const (
	EventProjectUpdated      EventName = "project_updated"
	EventEmployeeUpdated     EventName = "employee_updated"
	EventReportUpdated       EventName = "report_updated"
	EventAnalyticsUpdated    EventName = "analytics_updated"
	EventSubscriptionUpdated EventName = "subscription_updated"
)

// QueryKind names a family of cached query results
type QueryKind string

const (
	QueryProjects     QueryKind = "projects"
	QueryEmployees    QueryKind = "employees"
	QueryReports      QueryKind = "reports"
	QueryAnalytics    QueryKind = "analytics"
	QuerySubscription QueryKind = "subscription"
)

var eventKinds = map[EventName]QueryKind{
	EventProjectUpdated:      QueryProjects,
	EventEmployeeUpdated:     QueryEmployees,
	EventReportUpdated:       QueryReports,
	EventAnalyticsUpdated:    QueryAnalytics,
	EventSubscriptionUpdated: QuerySubscription,
}

// derivedKinds lists the kinds whose results are computed from another kind.
// Analytics aggregates project and employee counts.
var derivedKinds = map[QueryKind][]QueryKind{
	QueryProjects:  {QueryAnalytics},
	QueryEmployees: {QueryAnalytics},
}

// Derived returns the kinds whose cached results must be refreshed when k changes
func (k QueryKind) Derived() []QueryKind {
	return derivedKinds[k]
}

// ErrUnknownEvent is returned for event names outside the vocabulary
var ErrUnknownEvent = shared.NewDomainError("UNKNOWN_EVENT", "Unknown invalidation event")

// IsKnown reports whether n is part of the event vocabulary
func (n EventName) IsKnown() bool {
	_, ok := eventKinds[n]
	return ok
}

// Kind returns the query kind invalidated by the event
func (n EventName) Kind() (QueryKind, bool) {
	k, ok := eventKinds[n]
	return k, ok
}

// EventNames returns the vocabulary in a stable order
func EventNames() []EventName {
	return []EventName{
		EventProjectUpdated,
		EventEmployeeUpdated,
		EventReportUpdated,
		EventAnalyticsUpdated,
		EventSubscriptionUpdated,
	}
}

// InvalidationEvent tells listeners that cached data of one kind, and optionally
// one identifier, is stale for an organization.
type InvalidationEvent struct {
	EventID        uuid.UUID `json:"event_id"`
	Name           EventName `json:"event"`
	ID             string    `json:"id,omitempty"`
	OrganizationID uuid.UUID `json:"organization_id"`
	OccurredAt     time.Time `json:"occurred_at"`

	// Source identifies the emitting process, empty for external producers
	Source string `json:"source,omitempty"`
}

// NewInvalidationEvent creates an event stamped with a fresh id and the current time
func NewInvalidationEvent(name EventName, orgID uuid.UUID, id string) (InvalidationEvent, error) {
	if !name.IsKnown() {
		return InvalidationEvent{}, ErrUnknownEvent.WithMessage(fmt.Sprintf("unknown invalidation event %q", name))
	}
	return InvalidationEvent{
		EventID:        uuid.New(),
		Name:           name,
		ID:             id,
		OrganizationID: orgID,
		OccurredAt:     time.Now().UTC(),
	}, nil
}

// Validate checks that the event can be routed
func (e InvalidationEvent) Validate() error {
	if !e.Name.IsKnown() {
		return ErrUnknownEvent.WithMessage(fmt.Sprintf("unknown invalidation event %q", e.Name))
	}
	if e.OrganizationID == uuid.Nil {
		return shared.ErrInvalidInput.WithMessage("invalidation event has no organization")
	}
	return nil
}

// Scope is the cache scope the event applies to
func (e InvalidationEvent) Scope() string {
	return e.OrganizationID.String()
}

// ParseEvent decodes and validates a wire event. A missing event id is filled in.
func ParseEvent(data []byte) (InvalidationEvent, error) {
	var evt InvalidationEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return InvalidationEvent{}, shared.ErrInvalidInput.Wrap(err)
	}
	if err := evt.Validate(); err != nil {
		return InvalidationEvent{}, err
	}
	if evt.EventID == uuid.Nil {
		evt.EventID = uuid.New()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	return evt, nil
}
