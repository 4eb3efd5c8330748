package graph

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fingraph/fingraph/model"
)

// EntityFilter narrows QueryEntities results. Zero-value fields match
// everything.
type EntityFilter struct {
	Type          model.MentionType
	NameContains  string
	MinConfidence float64
}

// RelationFilter narrows QueryRelations results
type RelationFilter struct {
	Predicate     model.PredicateType
	EntityID      uuid.UUID
	MinConfidence float64
	// After and Before restrict by the relation's temporal qualifier.
	// Relations without a qualifier are excluded when either is set.
	After  time.Time
	Before time.Time
}

// EventFilter narrows QueryEvents results
type EventFilter struct {
	Type          model.EventType
	EntityID      uuid.UUID
	MinConfidence float64
	After         time.Time
	Before        time.Time
}

// QueryEntities returns all live entities matching the filter, ordered by
// descending confidence then name. The result is materialized eagerly into a
// fresh slice of copies rather than streamed: callers can restart iteration,
// sort, or keep the result across later graph mutations without holding any
// lock. A lazy iterator would have to pin the read lock for its lifetime.
func (m *Manager) QueryEntities(filter EntityFilter) []*model.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(filter.NameContains)
	matches := []*model.Entity{}
	for _, entity := range m.entities {
		if entity.Retired {
			continue
		}
		if filter.Type != "" && entity.Type != filter.Type {
			continue
		}
		if entity.Confidence < filter.MinConfidence {
			continue
		}
		if needle != "" && !entityNameMatches(entity, needle) {
			continue
		}
		matches = append(matches, copyEntity(entity))
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Name < matches[j].Name
	})
	return matches
}

// QueryRelations returns all relations matching the filter, ordered by
// descending confidence then key.
func (m *Manager) QueryRelations(filter RelationFilter) []*model.Relation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := []*model.Relation{}
	for _, relation := range m.relations {
		if filter.Predicate != "" && relation.Predicate != filter.Predicate {
			continue
		}
		if filter.EntityID != uuid.Nil && relation.SubjectID != filter.EntityID && relation.ObjectID != filter.EntityID {
			continue
		}
		if relation.Confidence < filter.MinConfidence {
			continue
		}
		if !temporalInRange(relation.Temporal, filter.After, filter.Before) {
			continue
		}
		copied := *relation
		matches = append(matches, &copied)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Key() < matches[j].Key()
	})
	return matches
}

// QueryEvents returns all events matching the filter, ordered by descending
// confidence then fingerprint.
func (m *Manager) QueryEvents(filter EventFilter) []*model.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := []*model.Event{}
	for _, event := range m.events {
		if filter.Type != "" && event.Type != filter.Type {
			continue
		}
		if filter.EntityID != uuid.Nil && !eventReferences(event, filter.EntityID) {
			continue
		}
		if event.Confidence < filter.MinConfidence {
			continue
		}
		if !temporalInRange(event.Temporal, filter.After, filter.Before) {
			continue
		}
		copied := *event
		copied.Roles = append([]model.Role(nil), event.Roles...)
		matches = append(matches, &copied)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Fingerprint() < matches[j].Fingerprint()
	})
	return matches
}

func eventReferences(event *model.Event, entityID uuid.UUID) bool {
	for _, role := range event.Roles {
		if role.EntityID != nil && *role.EntityID == entityID {
			return true
		}
	}
	return false
}

func entityNameMatches(entity *model.Entity, needle string) bool {
	if strings.Contains(strings.ToLower(entity.Name), needle) {
		return true
	}
	for _, alias := range entity.Aliases {
		if strings.Contains(strings.ToLower(alias), needle) {
			return true
		}
	}
	return false
}

func temporalInRange(temporal *model.TemporalExpression, after, before time.Time) bool {
	if after.IsZero() && before.IsZero() {
		return true
	}
	if temporal == nil || temporal.Granularity == model.GranularityUnknown {
		return false
	}
	if !after.IsZero() && temporal.Point.Before(after) {
		return false
	}
	if !before.IsZero() && temporal.Point.After(before) {
		return false
	}
	return true
}
