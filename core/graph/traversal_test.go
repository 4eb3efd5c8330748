package graph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingraph/fingraph/model"
)

// buildChainGraph creates A -investment-> B -supply-> C -cooperation-> D
func buildChainGraph(t *testing.T) (*Manager, []*model.Entity) {
	t.Helper()
	manager := NewManager()
	names := []string{"Company A", "Company B", "Company C", "Company D"}
	entities := make([]*model.Entity, len(names))
	for i, name := range names {
		entities[i] = newTestEntity(name, model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(entities[i]))
	}
	require.NoError(t, manager.UpsertRelation(newTestRelation(entities[0].ID, entities[1].ID, model.PredicateInvestment, "A invested in B")))
	require.NoError(t, manager.UpsertRelation(newTestRelation(entities[1].ID, entities[2].ID, model.PredicateSupply, "B supplies C")))
	require.NoError(t, manager.UpsertRelation(newTestRelation(entities[2].ID, entities[3].ID, model.PredicateCooperation, "C cooperates with D")))
	return manager, entities
}

func TestBFS(t *testing.T) {
	t.Run("BFS visits entities in distance order", func(t *testing.T) {
		manager, entities := buildChainGraph(t)

		results, err := manager.BFS(entities[0].ID, 3, nil)
		require.NoError(t, err)

		require.Len(t, results, 4)
		assert.Equal(t, 0, results[0].Distance)
		assert.Equal(t, entities[0].ID, results[0].Entity.ID)
		assert.Equal(t, 3, results[3].Distance)
		assert.Equal(t, entities[3].ID, results[3].Entity.ID)
	})

	t.Run("BFS respects max hops", func(t *testing.T) {
		manager, entities := buildChainGraph(t)

		results, err := manager.BFS(entities[0].ID, 1, nil)
		require.NoError(t, err)

		assert.Len(t, results, 2)
	})

	t.Run("BFS follows edges against their direction", func(t *testing.T) {
		manager, entities := buildChainGraph(t)

		results, err := manager.BFS(entities[3].ID, 3, nil)
		require.NoError(t, err)

		assert.Len(t, results, 4, "Traversal is undirected over relation edges")
	})

	t.Run("BFS filters by predicate", func(t *testing.T) {
		manager, entities := buildChainGraph(t)

		results, err := manager.BFS(entities[0].ID, 3, []model.PredicateType{model.PredicateInvestment})
		require.NoError(t, err)

		assert.Len(t, results, 2, "Only the investment edge should be followed")
	})

	t.Run("BFS records the path to each entity", func(t *testing.T) {
		manager, entities := buildChainGraph(t)

		results, err := manager.BFS(entities[0].ID, 3, nil)
		require.NoError(t, err)

		last := results[len(results)-1]
		require.Len(t, last.Path, 4)
		assert.Equal(t, entities[0].ID, last.Path[0])
		assert.Equal(t, entities[3].ID, last.Path[3])
	})

	t.Run("BFS from unknown entity fails", func(t *testing.T) {
		manager, _ := buildChainGraph(t)

		_, err := manager.BFS(uuid.New(), 2, nil)
		assert.ErrorIs(t, err, ErrUnknownEntity)
	})

	t.Run("BFS from retired entity starts at the survivor", func(t *testing.T) {
		manager, entities := buildChainGraph(t)
		duplicate := newTestEntity("Co. A Ltd.", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(duplicate))
		require.NoError(t, manager.Retire(duplicate.ID, entities[0].ID))

		results, err := manager.BFS(duplicate.ID, 0, nil)
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.Equal(t, entities[0].ID, results[0].Entity.ID)
	})
}

func TestDFS(t *testing.T) {
	t.Run("DFS visits all reachable entities once", func(t *testing.T) {
		manager, entities := buildChainGraph(t)

		results, err := manager.DFS(entities[0].ID, 3, nil)
		require.NoError(t, err)

		require.Len(t, results, 4)
		seen := map[uuid.UUID]bool{}
		for _, result := range results {
			assert.False(t, seen[result.Entity.ID], "Entity %s visited twice", result.Entity.Name)
			seen[result.Entity.ID] = true
		}
	})

	t.Run("DFS respects max hops", func(t *testing.T) {
		manager, entities := buildChainGraph(t)

		results, err := manager.DFS(entities[0].ID, 2, nil)
		require.NoError(t, err)

		assert.Len(t, results, 3)
	})
}

func TestNeighbors(t *testing.T) {
	t.Run("Neighbors excludes the source entity", func(t *testing.T) {
		manager, entities := buildChainGraph(t)

		neighbors, err := manager.Neighbors(entities[1].ID, nil)
		require.NoError(t, err)

		require.Len(t, neighbors, 2)
		for _, neighbor := range neighbors {
			assert.NotEqual(t, entities[1].ID, neighbor.ID)
		}
	})

	t.Run("Isolated entity has no neighbors", func(t *testing.T) {
		manager := NewManager()
		lonely := newTestEntity("Lonely Corp", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(lonely))

		neighbors, err := manager.Neighbors(lonely.ID, nil)
		require.NoError(t, err)

		assert.Empty(t, neighbors)
	})
}
