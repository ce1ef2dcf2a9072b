package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something that happened to one organization's state
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	OrganizationID() uuid.UUID
}

// EventHeader carries the identity and timing every DomainEvent shares.
// Embed it to satisfy DomainEvent.
type EventHeader struct {
	ID     uuid.UUID `json:"event_id"`
	Type   string    `json:"event_type"`
	At     time.Time `json:"occurred_at"`
	Tenant uuid.UUID `json:"organization_id"`
}

// NewEventHeader stamps a fresh event id. A zero at means now.
func NewEventHeader(eventType string, orgID uuid.UUID, at time.Time) EventHeader {
	if at.IsZero() {
		at = time.Now()
	}
	return EventHeader{
		ID:     uuid.New(),
		Type:   eventType,
		At:     at.UTC(),
		Tenant: orgID,
	}
}

func (h EventHeader) EventID() uuid.UUID        { return h.ID }
func (h EventHeader) EventType() string         { return h.Type }
func (h EventHeader) OccurredAt() time.Time     { return h.At }
func (h EventHeader) OrganizationID() uuid.UUID { return h.Tenant }
