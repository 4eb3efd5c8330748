package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of an extracted event frame
type EventType string

const (
	EventInvestment      EventType = "investment-event"
	EventCooperation     EventType = "cooperation-event"
	EventProductLaunch   EventType = "product-launch"
	EventPersonnelChange EventType = "personnel-change"
	EventFinancialReport EventType = "financial-report"
)

// Role is a named slot in an event frame. EntityID is nil while the role is
// unfilled; it is never left pointing at a retired entity.
type Role struct {
	Name     string     `json:"name"`
	EntityID *uuid.UUID `json:"entity_id,omitempty"`
	Value    string     `json:"value,omitempty"` // Literal filler for non-entity roles such as amounts
}

// Event represents a typed event frame with role-filled participants.
// Roles keep their schema order. Events are immutable after extraction except
// for role re-keying when the linker merges referenced entities.
type Event struct {
	ID         uuid.UUID           `json:"id"`
	Type       EventType           `json:"event_type"`
	Trigger    string              `json:"trigger"`
	Roles      []Role              `json:"roles"`
	Temporal   *TemporalExpression `json:"temporal,omitempty"`
	Evidence   EvidenceSpan        `json:"evidence"`
	Confidence float64             `json:"confidence"`
	Incomplete bool                `json:"incomplete"`
	Metadata   Metadata            `json:"metadata,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Fingerprint returns the idempotence key (type, evidence fingerprint)
func (e *Event) Fingerprint() string {
	return e.Evidence.Fingerprint("event:" + string(e.Type))
}

// FilledRoles returns the number of roles bound to an entity
func (e *Event) FilledRoles() int {
	n := 0
	for _, role := range e.Roles {
		if role.EntityID != nil {
			n++
		}
	}
	return n
}

// RoleEntity returns the entity bound to the named role, if any
func (e *Event) RoleEntity(name string) (uuid.UUID, bool) {
	for _, role := range e.Roles {
		if role.Name == name && role.EntityID != nil {
			return *role.EntityID, true
		}
	}
	return uuid.Nil, false
}
