package graph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/fingraph/fingraph/model"
)

// Statistics summarizes the current graph state
type Statistics struct {
	EntityCount   int
	RelationCount int
	EventCount    int
	// EntityTypes and PredicateTypes count live nodes and edges per type.
	EntityTypes    map[model.MentionType]int
	PredicateTypes map[model.PredicateType]int
	EventTypes     map[model.EventType]int
	// MostConnected lists the highest-degree entities, descending.
	MostConnected []EntityDegree
}

// EntityDegree pairs an entity with its relation degree
type EntityDegree struct {
	Entity *model.Entity
	Degree int
}

// Statistics computes per-type counts and the top connected entities
func (m *Manager) Statistics(topN int) *Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Statistics{
		EntityTypes:    map[model.MentionType]int{},
		PredicateTypes: map[model.PredicateType]int{},
		EventTypes:     map[model.EventType]int{},
	}

	degrees := map[uuid.UUID]int{}
	for _, entity := range m.entities {
		if entity.Retired {
			continue
		}
		stats.EntityCount++
		stats.EntityTypes[entity.Type]++
	}
	for _, relation := range m.relations {
		stats.RelationCount++
		stats.PredicateTypes[relation.Predicate]++
		degrees[relation.SubjectID]++
		degrees[relation.ObjectID]++
	}
	for _, event := range m.events {
		stats.EventCount++
		stats.EventTypes[event.Type]++
	}

	ranked := make([]EntityDegree, 0, len(degrees))
	for id, degree := range degrees {
		ranked = append(ranked, EntityDegree{Entity: copyEntity(m.entities[id]), Degree: degree})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Degree != ranked[j].Degree {
			return ranked[i].Degree > ranked[j].Degree
		}
		return ranked[i].Entity.Name < ranked[j].Entity.Name
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	stats.MostConnected = ranked

	return stats
}

// ShortestPath finds a minimal-hop relation path between two entities,
// ignoring edge direction. Returns nil when no path exists within maxHops.
func (m *Manager) ShortestPath(fromID, toID uuid.UUID, maxHops int) ([]*model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from, err := m.liveLocked(fromID)
	if err != nil {
		return nil, err
	}
	to, err := m.liveLocked(toID)
	if err != nil {
		return nil, err
	}

	adjacency := m.adjacencyLocked(nil)
	visited := map[uuid.UUID]bool{from: true}
	queue := [][]uuid.UUID{{from}}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		last := path[len(path)-1]
		if last == to {
			entities := make([]*model.Entity, len(path))
			for i, id := range path {
				entities[i] = copyEntity(m.entities[id])
			}
			return entities, nil
		}
		if len(path)-1 >= maxHops {
			continue
		}
		for _, next := range adjacency[last] {
			if visited[next] {
				continue
			}
			visited[next] = true
			newPath := append(append([]uuid.UUID(nil), path...), next)
			queue = append(queue, newPath)
		}
	}
	return nil, nil
}

// Subgraph extracts the snapshot induced by all entities within maxHops of
// center: those entities, every relation between them, and every event whose
// filled roles all fall inside the neighborhood.
func (m *Manager) Subgraph(centerID uuid.UUID, maxHops int) (*model.Snapshot, error) {
	results, err := m.BFS(centerID, maxHops, nil)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	included := map[uuid.UUID]bool{}
	snapshot := &model.Snapshot{}
	for _, result := range results {
		included[result.Entity.ID] = true
		snapshot.Entities = append(snapshot.Entities, copyEntity(result.Entity))
	}
	sort.Slice(snapshot.Entities, func(i, j int) bool {
		return snapshot.Entities[i].ID.String() < snapshot.Entities[j].ID.String()
	})

	for _, relation := range m.relations {
		if !included[relation.SubjectID] || !included[relation.ObjectID] {
			continue
		}
		copied := *relation
		snapshot.Relations = append(snapshot.Relations, &copied)
	}
	sort.Slice(snapshot.Relations, func(i, j int) bool {
		return snapshot.Relations[i].Key() < snapshot.Relations[j].Key()
	})

	for _, event := range m.events {
		inside := true
		for _, role := range event.Roles {
			if role.EntityID != nil && !included[*role.EntityID] {
				inside = false
				break
			}
		}
		if !inside {
			continue
		}
		copied := *event
		copied.Roles = append([]model.Role(nil), event.Roles...)
		snapshot.Events = append(snapshot.Events, &copied)
	}
	sort.Slice(snapshot.Events, func(i, j int) bool {
		return snapshot.Events[i].Fingerprint() < snapshot.Events[j].Fingerprint()
	})

	return snapshot, nil
}
