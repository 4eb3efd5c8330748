package graph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/fingraph/fingraph/model"
)

// TraversalResult contains an entity and its distance from the source
type TraversalResult struct {
	Entity   *model.Entity
	Distance int
	Path     []uuid.UUID // Path from source to this entity
}

// BFS performs breadth-first search from a source entity, following
// relation edges in both directions. Relations are filtered by predicate
// when predicates is non-empty.
func (m *Manager) BFS(sourceID uuid.UUID, maxHops int, predicates []model.PredicateType) ([]*TraversalResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source, err := m.liveLocked(sourceID)
	if err != nil {
		return nil, err
	}

	adjacency := m.adjacencyLocked(predicates)
	visited := map[uuid.UUID]bool{source: true}
	queue := []TraversalResult{{
		Entity:   copyEntity(m.entities[source]),
		Distance: 0,
		Path:     []uuid.UUID{source},
	}}

	var results []*TraversalResult
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		results = append(results, &current)

		// Stop if we've reached max hops
		if current.Distance >= maxHops {
			continue
		}

		for _, targetID := range adjacency[current.Entity.ID] {
			if visited[targetID] {
				continue
			}
			visited[targetID] = true

			newPath := make([]uuid.UUID, len(current.Path))
			copy(newPath, current.Path)
			newPath = append(newPath, targetID)

			queue = append(queue, TraversalResult{
				Entity:   copyEntity(m.entities[targetID]),
				Distance: current.Distance + 1,
				Path:     newPath,
			})
		}
	}

	return results, nil
}

// DFS performs depth-first search from a source entity
func (m *Manager) DFS(sourceID uuid.UUID, maxHops int, predicates []model.PredicateType) ([]*TraversalResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source, err := m.liveLocked(sourceID)
	if err != nil {
		return nil, err
	}

	adjacency := m.adjacencyLocked(predicates)
	visited := map[uuid.UUID]bool{}
	var results []*TraversalResult
	m.dfsLocked(source, 0, maxHops, []uuid.UUID{source}, adjacency, visited, &results)
	return results, nil
}

func (m *Manager) dfsLocked(
	current uuid.UUID,
	distance int,
	maxHops int,
	path []uuid.UUID,
	adjacency map[uuid.UUID][]uuid.UUID,
	visited map[uuid.UUID]bool,
	results *[]*TraversalResult,
) {
	visited[current] = true

	pathCopy := make([]uuid.UUID, len(path))
	copy(pathCopy, path)
	*results = append(*results, &TraversalResult{
		Entity:   copyEntity(m.entities[current]),
		Distance: distance,
		Path:     pathCopy,
	})

	if distance >= maxHops {
		return
	}

	for _, targetID := range adjacency[current] {
		if visited[targetID] {
			continue
		}
		newPath := make([]uuid.UUID, len(path))
		copy(newPath, path)
		newPath = append(newPath, targetID)
		m.dfsLocked(targetID, distance+1, maxHops, newPath, adjacency, visited, results)
	}
}

// Neighbors retrieves immediate neighbors (1-hop) of an entity
func (m *Manager) Neighbors(entityID uuid.UUID, predicates []model.PredicateType) ([]*model.Entity, error) {
	results, err := m.BFS(entityID, 1, predicates)
	if err != nil {
		return nil, err
	}

	// Skip the source entity itself (first result)
	neighbors := make([]*model.Entity, 0, len(results)-1)
	for i := 1; i < len(results); i++ {
		neighbors = append(neighbors, results[i].Entity)
	}

	return neighbors, nil
}

// adjacencyLocked builds an undirected adjacency list over live entities.
// Neighbor lists are ordered by id so traversals are deterministic.
func (m *Manager) adjacencyLocked(predicates []model.PredicateType) map[uuid.UUID][]uuid.UUID {
	wanted := map[model.PredicateType]bool{}
	for _, predicate := range predicates {
		wanted[predicate] = true
	}

	adjacency := map[uuid.UUID]map[uuid.UUID]bool{}
	add := func(from, to uuid.UUID) {
		if adjacency[from] == nil {
			adjacency[from] = map[uuid.UUID]bool{}
		}
		adjacency[from][to] = true
	}
	for _, relation := range m.relations {
		if len(wanted) > 0 && !wanted[relation.Predicate] {
			continue
		}
		add(relation.SubjectID, relation.ObjectID)
		add(relation.ObjectID, relation.SubjectID)
	}

	ordered := make(map[uuid.UUID][]uuid.UUID, len(adjacency))
	for from, targets := range adjacency {
		ids := make([]uuid.UUID, 0, len(targets))
		for to := range targets {
			ids = append(ids, to)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		ordered[from] = ids
	}
	return ordered
}
