package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fingraph/fingraph/helper"
	"github.com/fingraph/fingraph/model"
)

var (
	// ErrUnknownEntity is returned when an edge references an entity id
	// that was never upserted.
	ErrUnknownEntity = errors.New("unknown entity id")
	// ErrRetiredEntity is returned when an edge references a retired entity id.
	ErrRetiredEntity = errors.New("retired entity id")
	// ErrNoFilledRoles is returned for events with every role unfilled.
	ErrNoFilledRoles = errors.New("event has no filled roles")
	// ErrDanglingEdge signals an invariant violation detected during retire.
	// It indicates a logic error in the merge implementation and aborts the
	// offending operation without mutating the graph.
	ErrDanglingEdge = errors.New("operation would create a dangling edge")
)

// Manager maintains the authoritative node and edge set of the knowledge
// graph. All mutating operations are idempotent and keyed: entities by
// canonical id, relations by (subject, predicate, object, evidence
// fingerprint), events by (type, evidence fingerprint). Mutations hold the
// write lock and validate before touching state, so the graph never exposes
// an edge referencing a non-existent or retired node, even transiently.
type Manager struct {
	mu        sync.RWMutex
	entities  map[uuid.UUID]*model.Entity
	relations map[string]*model.Relation
	events    map[string]*model.Event
	redirects map[uuid.UUID]uuid.UUID
}

// NewManager creates an empty graph manager
func NewManager() *Manager {
	return &Manager{
		entities:  map[uuid.UUID]*model.Entity{},
		relations: map[string]*model.Relation{},
		events:    map[string]*model.Event{},
		redirects: map[uuid.UUID]uuid.UUID{},
	}
}

// UpsertEntity inserts or updates a node, keyed by canonical id. The manager
// stores its own copy: the caller keeps ownership of the argument, and later
// mutations of it only reach the graph through another upsert. The linker
// registry mutates entities under a different lock, so sharing the objects
// here would race with concurrent graph readers.
func (m *Manager) UpsertEntity(entity *model.Entity) error {
	if entity == nil || entity.ID == uuid.Nil {
		return helper.NewError("upsert entity", fmt.Errorf("entity has no id"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := copyEntity(entity)
	m.entities[stored.ID] = stored
	if stored.Retired && stored.RedirectTo != nil {
		m.redirects[stored.ID] = *stored.RedirectTo
	}
	return nil
}

// UpsertRelation inserts a relation edge, keyed by (subject, predicate,
// object, evidence fingerprint). Re-upserting the same relation is a no-op.
// Both endpoints must resolve to live entities.
func (m *Manager) UpsertRelation(relation *model.Relation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	subject, err := m.liveLocked(relation.SubjectID)
	if err != nil {
		return helper.NewError("upsert relation subject", err)
	}
	object, err := m.liveLocked(relation.ObjectID)
	if err != nil {
		return helper.NewError("upsert relation object", err)
	}
	relation.SubjectID = subject
	relation.ObjectID = object

	key := relation.Key()
	if _, exists := m.relations[key]; exists {
		return nil
	}
	if relation.ID == uuid.Nil {
		relation.ID = uuid.New()
	}
	if relation.CreatedAt.IsZero() {
		relation.CreatedAt = time.Now().UTC()
	}
	m.relations[key] = relation
	return nil
}

// UpsertEvent inserts an event, keyed by (type, evidence fingerprint).
// Events with zero filled roles are rejected; filled roles must resolve to
// live entities.
func (m *Manager) UpsertEvent(event *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.FilledRoles() == 0 {
		return helper.NewError("upsert event", ErrNoFilledRoles)
	}
	for i, role := range event.Roles {
		if role.EntityID == nil {
			continue
		}
		live, err := m.liveLocked(*role.EntityID)
		if err != nil {
			return helper.NewError(fmt.Sprintf("upsert event role %s", role.Name), err)
		}
		event.Roles[i].EntityID = &live
	}

	key := event.Fingerprint()
	if _, exists := m.events[key]; exists {
		return nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	m.events[key] = event
	return nil
}

// Retire collapses a single entity into newID. See RetireAll.
func (m *Manager) Retire(oldID, newID uuid.UUID) error {
	return m.RetireAll([]uuid.UUID{oldID}, newID)
}

// RetireAll atomically collapses a merged set of entities into newID: every
// edge endpoint matching any of the oldIDs is rewritten to newID in one
// pass, then each old node is marked retired with a redirect. A transitive
// merge retires all its losers together, so an edge between two losers never
// trips validation against a half-applied state. The rewrite is validated on
// a staged copy of the edge set first; on any invariant violation the graph
// is left untouched. Ids unknown to the graph are skipped.
func (m *Manager) RetireAll(oldIDs []uuid.UUID, newID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.liveLocked(newID); err != nil {
		return helper.NewError("retire", fmt.Errorf("%w: survivor %s", ErrDanglingEdge, newID))
	}
	retiring := map[uuid.UUID]bool{}
	known := 0
	for _, oldID := range oldIDs {
		if oldID == newID {
			return helper.NewError("retire", fmt.Errorf("cannot retire an entity into itself"))
		}
		if _, ok := m.entities[oldID]; !ok {
			continue
		}
		retiring[oldID] = true
		known++
	}
	if known == 0 {
		if len(oldIDs) > 0 {
			return helper.NewError("retire", fmt.Errorf("%w: %s", ErrUnknownEntity, oldIDs[0]))
		}
		return nil
	}

	// Stage the rewritten edge sets before committing anything
	stagedRelations := make(map[string]*model.Relation, len(m.relations))
	for _, relation := range m.relations {
		rewritten := *relation
		if retiring[rewritten.SubjectID] {
			rewritten.SubjectID = newID
		}
		if retiring[rewritten.ObjectID] {
			rewritten.ObjectID = newID
		}
		if rewritten.SubjectID == rewritten.ObjectID {
			// Both endpoints collapsed into the survivor; a relation of an
			// entity with itself carries no information, drop it.
			continue
		}
		if err := m.validateEndpointsLocked(&rewritten, retiring); err != nil {
			return helper.NewError("retire relations", err)
		}
		if existing, ok := stagedRelations[rewritten.Key()]; ok {
			// Merging endpoints can collapse two relations into one; keep
			// the higher-confidence evidence.
			if existing.Confidence >= rewritten.Confidence {
				continue
			}
		}
		stagedRelations[rewritten.Key()] = &rewritten
	}

	stagedEvents := make(map[string]*model.Event, len(m.events))
	for key, event := range m.events {
		rewritten := *event
		rewritten.Roles = make([]model.Role, len(event.Roles))
		copy(rewritten.Roles, event.Roles)
		for i, role := range rewritten.Roles {
			if role.EntityID != nil && retiring[*role.EntityID] {
				id := newID
				rewritten.Roles[i].EntityID = &id
			}
		}
		stagedEvents[key] = &rewritten
	}

	// Commit
	m.relations = stagedRelations
	m.events = stagedEvents
	for oldID := range retiring {
		old := m.entities[oldID]
		old.Retired = true
		redirect := newID
		old.RedirectTo = &redirect
		m.redirects[oldID] = newID
	}
	return nil
}

// liveLocked resolves an id through redirects and verifies the target is live
func (m *Manager) liveLocked(id uuid.UUID) (uuid.UUID, error) {
	for {
		next, ok := m.redirects[id]
		if !ok {
			break
		}
		id = next
	}
	entity, ok := m.entities[id]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	if entity.Retired {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrRetiredEntity, id)
	}
	return id, nil
}

// validateEndpointsLocked checks a staged relation references no retired or
// unknown entity, treating every id in retiring as already retired.
func (m *Manager) validateEndpointsLocked(relation *model.Relation, retiring map[uuid.UUID]bool) error {
	for _, id := range []uuid.UUID{relation.SubjectID, relation.ObjectID} {
		if retiring[id] {
			return fmt.Errorf("%w: %s", ErrDanglingEdge, id)
		}
		entity, ok := m.entities[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
		}
		if entity.Retired {
			return fmt.Errorf("%w: %s", ErrRetiredEntity, id)
		}
	}
	return nil
}

// Entity returns a copy of the live entity for id, following redirects
func (m *Manager) Entity(id uuid.UUID) (*model.Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	live, err := m.liveLocked(id)
	if err != nil {
		return nil, false
	}
	return copyEntity(m.entities[live]), true
}

// Counts returns the number of live entities, relations and events
func (m *Manager) Counts() (int, int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	live := 0
	for _, entity := range m.entities {
		if !entity.Retired {
			live++
		}
	}
	return live, len(m.relations), len(m.events)
}

// Snapshot returns an immutable point-in-time copy of the graph: live
// entities, relations and events, each deep-copied and ordered by id so the
// snapshot is deterministic for a given graph state.
func (m *Manager) Snapshot() *model.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := &model.Snapshot{TakenAt: time.Now().UTC()}

	for _, entity := range m.entities {
		if entity.Retired {
			continue
		}
		snapshot.Entities = append(snapshot.Entities, copyEntity(entity))
	}
	sort.Slice(snapshot.Entities, func(i, j int) bool {
		return snapshot.Entities[i].ID.String() < snapshot.Entities[j].ID.String()
	})

	for _, relation := range m.relations {
		copied := *relation
		snapshot.Relations = append(snapshot.Relations, &copied)
	}
	sort.Slice(snapshot.Relations, func(i, j int) bool {
		return snapshot.Relations[i].Key() < snapshot.Relations[j].Key()
	})

	for _, event := range m.events {
		copied := *event
		copied.Roles = make([]model.Role, len(event.Roles))
		copy(copied.Roles, event.Roles)
		snapshot.Events = append(snapshot.Events, &copied)
	}
	sort.Slice(snapshot.Events, func(i, j int) bool {
		return snapshot.Events[i].Fingerprint() < snapshot.Events[j].Fingerprint()
	})

	return snapshot
}

// Restore loads a snapshot into an empty graph, reproducing the same node
// and edge set with the same canonical ids.
func (m *Manager) Restore(snapshot *model.Snapshot) error {
	for _, entity := range snapshot.Entities {
		if err := m.UpsertEntity(copyEntity(entity)); err != nil {
			return err
		}
	}
	for _, relation := range snapshot.Relations {
		copied := *relation
		if err := m.UpsertRelation(&copied); err != nil {
			return err
		}
	}
	for _, event := range snapshot.Events {
		copied := *event
		copied.Roles = make([]model.Role, len(event.Roles))
		copy(copied.Roles, event.Roles)
		if err := m.UpsertEvent(&copied); err != nil {
			return err
		}
	}
	return nil
}

func copyEntity(entity *model.Entity) *model.Entity {
	copied := *entity
	copied.Aliases = append([]string(nil), entity.Aliases...)
	copied.Mentions = append([]model.MentionRef(nil), entity.Mentions...)
	return &copied
}
