package graph

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingraph/fingraph/model"
)

func newTestEntity(name string, entityType model.MentionType) *model.Entity {
	return &model.Entity{
		ID:         uuid.New(),
		Name:       name,
		Type:       entityType,
		Confidence: 0.9,
		CreatedAt:  time.Now().UTC(),
	}
}

func newTestRelation(subject, object uuid.UUID, predicate model.PredicateType, text string) *model.Relation {
	return &model.Relation{
		SubjectID: subject,
		Predicate: predicate,
		ObjectID:  object,
		Evidence: model.EvidenceSpan{
			Start: 0,
			End:   len(text),
			Text:  text,
		},
		Confidence: 0.8,
	}
}

func TestManagerUpsertEntity(t *testing.T) {
	t.Run("Insert and retrieve entity", func(t *testing.T) {
		manager := NewManager()
		entity := newTestEntity("Company A", model.MentionOrganization)

		err := manager.UpsertEntity(entity)
		require.NoError(t, err)

		found, ok := manager.Entity(entity.ID)
		assert.True(t, ok)
		assert.Equal(t, "Company A", found.Name)
	})

	t.Run("Reject entity without id", func(t *testing.T) {
		manager := NewManager()

		err := manager.UpsertEntity(&model.Entity{Name: "No ID"})
		assert.Error(t, err)
	})

	t.Run("Upserting same entity twice keeps one node", func(t *testing.T) {
		manager := NewManager()
		entity := newTestEntity("Company A", model.MentionOrganization)

		require.NoError(t, manager.UpsertEntity(entity))
		require.NoError(t, manager.UpsertEntity(entity))

		entities, relations, events := manager.Counts()
		assert.Equal(t, 1, entities)
		assert.Equal(t, 0, relations)
		assert.Equal(t, 0, events)
	})

	t.Run("Stored entity is a copy of the argument", func(t *testing.T) {
		manager := NewManager()
		entity := newTestEntity("Company A", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(entity))

		entity.AddAlias("A Corp")
		entity.Confidence = 0.1

		stored, ok := manager.Entity(entity.ID)
		require.True(t, ok)
		assert.Empty(t, stored.Aliases, "Mutations after the upsert must not reach the graph")
		assert.Equal(t, 0.9, stored.Confidence)
	})
}

func TestManagerUpsertRelation(t *testing.T) {
	t.Run("Insert relation between live entities", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		b := newTestEntity("Company B", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))
		require.NoError(t, manager.UpsertEntity(b))

		err := manager.UpsertRelation(newTestRelation(a.ID, b.ID, model.PredicateCooperation, "A cooperates with B"))
		require.NoError(t, err)

		_, relations, _ := manager.Counts()
		assert.Equal(t, 1, relations)
	})

	t.Run("Reject relation referencing unknown entity", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))

		err := manager.UpsertRelation(newTestRelation(a.ID, uuid.New(), model.PredicateCooperation, "dangling"))
		assert.ErrorIs(t, err, ErrUnknownEntity)

		_, relations, _ := manager.Counts()
		assert.Equal(t, 0, relations, "Failed upsert should not leave a partial edge")
	})

	t.Run("Re-upserting identical evidence is a no-op", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		b := newTestEntity("Company B", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))
		require.NoError(t, manager.UpsertEntity(b))

		relation := newTestRelation(a.ID, b.ID, model.PredicateInvestment, "A invested in B")
		require.NoError(t, manager.UpsertRelation(relation))

		duplicate := newTestRelation(a.ID, b.ID, model.PredicateInvestment, "A invested in B")
		require.NoError(t, manager.UpsertRelation(duplicate))

		_, relations, _ := manager.Counts()
		assert.Equal(t, 1, relations, "Same evidence fingerprint should not duplicate the edge")
	})

	t.Run("Same pair with different evidence keeps both edges", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		b := newTestEntity("Company B", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))
		require.NoError(t, manager.UpsertEntity(b))

		require.NoError(t, manager.UpsertRelation(newTestRelation(a.ID, b.ID, model.PredicateInvestment, "A invested in B in March")))
		require.NoError(t, manager.UpsertRelation(newTestRelation(a.ID, b.ID, model.PredicateInvestment, "A invested again in June")))

		_, relations, _ := manager.Counts()
		assert.Equal(t, 2, relations)
	})

	t.Run("Relation endpoint follows redirects", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		b := newTestEntity("Co. A Ltd.", model.MentionOrganization)
		c := newTestEntity("Company C", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))
		require.NoError(t, manager.UpsertEntity(b))
		require.NoError(t, manager.UpsertEntity(c))
		require.NoError(t, manager.Retire(b.ID, a.ID))

		err := manager.UpsertRelation(newTestRelation(b.ID, c.ID, model.PredicateSupply, "supplies"))
		require.NoError(t, err)

		relations := manager.QueryRelations(RelationFilter{EntityID: a.ID})
		require.Len(t, relations, 1, "Edge should be re-keyed to the redirect target")
		assert.Equal(t, a.ID, relations[0].SubjectID)
	})
}

func TestManagerUpsertEvent(t *testing.T) {
	t.Run("Insert event with filled roles", func(t *testing.T) {
		manager := NewManager()
		investor := newTestEntity("Company A", model.MentionOrganization)
		investee := newTestEntity("Company B", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(investor))
		require.NoError(t, manager.UpsertEntity(investee))

		event := &model.Event{
			Type:    model.EventInvestment,
			Trigger: "invested",
			Roles: []model.Role{
				{Name: "investor", EntityID: &investor.ID},
				{Name: "investee", EntityID: &investee.ID},
			},
			Evidence: model.EvidenceSpan{Start: 0, End: 20, Text: "A invested in B"},
		}
		require.NoError(t, manager.UpsertEvent(event))

		_, _, events := manager.Counts()
		assert.Equal(t, 1, events)
	})

	t.Run("Reject event with zero filled roles", func(t *testing.T) {
		manager := NewManager()

		event := &model.Event{
			Type:     model.EventCooperation,
			Trigger:  "cooperation",
			Roles:    []model.Role{{Name: "partner1"}, {Name: "partner2"}},
			Evidence: model.EvidenceSpan{Start: 0, End: 10, Text: "talks held"},
		}
		err := manager.UpsertEvent(event)
		assert.ErrorIs(t, err, ErrNoFilledRoles)
	})

	t.Run("Re-upserting same event is a no-op", func(t *testing.T) {
		manager := NewManager()
		company := newTestEntity("Company A", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(company))

		build := func() *model.Event {
			return &model.Event{
				Type:     model.EventFinancialReport,
				Trigger:  "reported",
				Roles:    []model.Role{{Name: "company", EntityID: &company.ID}},
				Evidence: model.EvidenceSpan{Start: 5, End: 40, Text: "Company A reported record revenue"},
			}
		}
		require.NoError(t, manager.UpsertEvent(build()))
		require.NoError(t, manager.UpsertEvent(build()))

		_, _, events := manager.Counts()
		assert.Equal(t, 1, events)
	})
}

func TestManagerRetire(t *testing.T) {
	t.Run("Retire rewrites all edges and installs redirect", func(t *testing.T) {
		manager := NewManager()
		survivor := newTestEntity("Company A", model.MentionOrganization)
		loser := newTestEntity("Co. A Ltd.", model.MentionOrganization)
		other := newTestEntity("Company B", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(survivor))
		require.NoError(t, manager.UpsertEntity(loser))
		require.NoError(t, manager.UpsertEntity(other))

		require.NoError(t, manager.UpsertRelation(newTestRelation(loser.ID, other.ID, model.PredicateCooperation, "cooperation announced")))

		event := &model.Event{
			Type:     model.EventCooperation,
			Trigger:  "cooperation",
			Roles:    []model.Role{{Name: "partner1", EntityID: &loser.ID}, {Name: "partner2", EntityID: &other.ID}},
			Evidence: model.EvidenceSpan{Start: 0, End: 30, Text: "cooperation announced"},
		}
		require.NoError(t, manager.UpsertEvent(event))

		err := manager.Retire(loser.ID, survivor.ID)
		require.NoError(t, err)

		// No edge may reference the retired id anymore
		snapshot := manager.Snapshot()
		for _, relation := range snapshot.Relations {
			assert.NotEqual(t, loser.ID, relation.SubjectID)
			assert.NotEqual(t, loser.ID, relation.ObjectID)
		}
		for _, event := range snapshot.Events {
			for _, role := range event.Roles {
				if role.EntityID != nil {
					assert.NotEqual(t, loser.ID, *role.EntityID)
				}
			}
		}

		// Retired id resolves to the survivor
		resolved, ok := manager.Entity(loser.ID)
		require.True(t, ok)
		assert.Equal(t, survivor.ID, resolved.ID)
	})

	t.Run("Retire into unknown survivor leaves graph untouched", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		b := newTestEntity("Company B", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))
		require.NoError(t, manager.UpsertEntity(b))
		require.NoError(t, manager.UpsertRelation(newTestRelation(a.ID, b.ID, model.PredicateSupply, "supplies parts")))

		err := manager.Retire(a.ID, uuid.New())
		assert.ErrorIs(t, err, ErrDanglingEdge)

		entities, relations, _ := manager.Counts()
		assert.Equal(t, 2, entities, "Failed retire must not retire the entity")
		assert.Equal(t, 1, relations)
		found, ok := manager.Entity(a.ID)
		require.True(t, ok)
		assert.Equal(t, a.ID, found.ID)
	})

	t.Run("Retire collapses duplicate edges onto the survivor", func(t *testing.T) {
		manager := NewManager()
		survivor := newTestEntity("Company A", model.MentionOrganization)
		loser := newTestEntity("Co. A Ltd.", model.MentionOrganization)
		other := newTestEntity("Company B", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(survivor))
		require.NoError(t, manager.UpsertEntity(loser))
		require.NoError(t, manager.UpsertEntity(other))

		// Same evidence attached once to each duplicate before the merge
		require.NoError(t, manager.UpsertRelation(newTestRelation(survivor.ID, other.ID, model.PredicateCooperation, "joint venture formed")))
		require.NoError(t, manager.UpsertRelation(newTestRelation(loser.ID, other.ID, model.PredicateCooperation, "joint venture formed")))

		require.NoError(t, manager.Retire(loser.ID, survivor.ID))

		_, relations, _ := manager.Counts()
		assert.Equal(t, 1, relations, "Identical edges should collapse after the merge")
	})

	t.Run("Retiring an entity into itself fails", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))

		err := manager.Retire(a.ID, a.ID)
		assert.Error(t, err)
	})

	t.Run("Retiring a merged set rewrites edges between its members", func(t *testing.T) {
		manager := NewManager()
		survivor := newTestEntity("Company A", model.MentionOrganization)
		loserOne := newTestEntity("Co. A Ltd.", model.MentionOrganization)
		loserTwo := newTestEntity("A Corporation", model.MentionOrganization)
		partner := newTestEntity("Company B", model.MentionOrganization)
		for _, entity := range []*model.Entity{survivor, loserOne, loserTwo, partner} {
			require.NoError(t, manager.UpsertEntity(entity))
		}

		require.NoError(t, manager.UpsertRelation(newTestRelation(loserOne.ID, partner.ID, model.PredicateCooperation, "cooperation announced")))
		require.NoError(t, manager.UpsertRelation(newTestRelation(loserTwo.ID, partner.ID, model.PredicateSupply, "supplies parts")))
		require.NoError(t, manager.UpsertRelation(newTestRelation(loserOne.ID, loserTwo.ID, model.PredicateInvestment, "invested in the affiliate")))

		require.NoError(t, manager.RetireAll([]uuid.UUID{loserOne.ID, loserTwo.ID}, survivor.ID))

		entities, relations, _ := manager.Counts()
		assert.Equal(t, 2, entities)
		assert.Equal(t, 2, relations, "The edge between the two losers collapses into a self-loop and is dropped")

		snapshot := manager.Snapshot()
		nodes := map[uuid.UUID]bool{}
		for _, entity := range snapshot.Entities {
			nodes[entity.ID] = true
		}
		for _, relation := range snapshot.Relations {
			assert.True(t, nodes[relation.SubjectID], "Relation subject must be a live node")
			assert.True(t, nodes[relation.ObjectID], "Relation object must be a live node")
		}

		for _, id := range []uuid.UUID{loserOne.ID, loserTwo.ID} {
			resolved, ok := manager.Entity(id)
			require.True(t, ok)
			assert.Equal(t, survivor.ID, resolved.ID)
		}
	})

	t.Run("RetireAll skips ids the graph never saw", func(t *testing.T) {
		manager := NewManager()
		survivor := newTestEntity("Company A", model.MentionOrganization)
		loser := newTestEntity("Co. A Ltd.", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(survivor))
		require.NoError(t, manager.UpsertEntity(loser))

		require.NoError(t, manager.RetireAll([]uuid.UUID{loser.ID, uuid.New()}, survivor.ID))

		entities, _, _ := manager.Counts()
		assert.Equal(t, 1, entities, "The known loser retires, the unknown id is ignored")
	})
}

func TestManagerSnapshot(t *testing.T) {
	t.Run("Snapshot excludes retired entities", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		b := newTestEntity("Co. A Ltd.", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))
		require.NoError(t, manager.UpsertEntity(b))
		require.NoError(t, manager.Retire(b.ID, a.ID))

		snapshot := manager.Snapshot()
		require.Len(t, snapshot.Entities, 1)
		assert.Equal(t, a.ID, snapshot.Entities[0].ID)
	})

	t.Run("Snapshot is isolated from later mutations", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))

		snapshot := manager.Snapshot()
		require.Len(t, snapshot.Entities, 1)

		a.AddAlias("A Corp")
		require.NoError(t, manager.UpsertEntity(newTestEntity("Company B", model.MentionOrganization)))

		assert.Len(t, snapshot.Entities, 1, "Snapshot should not grow with the graph")
		assert.Empty(t, snapshot.Entities[0].Aliases, "Snapshot entities should be copies")
	})

	t.Run("Two snapshots of the same state are identical", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		b := newTestEntity("Company B", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))
		require.NoError(t, manager.UpsertEntity(b))
		require.NoError(t, manager.UpsertRelation(newTestRelation(a.ID, b.ID, model.PredicateInvestment, "A invested in B")))

		first := manager.Snapshot()
		second := manager.Snapshot()

		assert.Equal(t, first.Entities, second.Entities)
		assert.Equal(t, first.Relations, second.Relations)
		assert.Equal(t, first.Events, second.Events)
	})

	t.Run("Restore reproduces the exported graph", func(t *testing.T) {
		manager := NewManager()
		a := newTestEntity("Company A", model.MentionOrganization)
		b := newTestEntity("Company B", model.MentionOrganization)
		require.NoError(t, manager.UpsertEntity(a))
		require.NoError(t, manager.UpsertEntity(b))
		require.NoError(t, manager.UpsertRelation(newTestRelation(a.ID, b.ID, model.PredicateCooperation, "cooperation announced")))

		snapshot := manager.Snapshot()

		restored := NewManager()
		require.NoError(t, restored.Restore(snapshot))

		entities, relations, events := restored.Counts()
		assert.Equal(t, 2, entities)
		assert.Equal(t, 1, relations)
		assert.Equal(t, 0, events)

		found, ok := restored.Entity(a.ID)
		require.True(t, ok, "Canonical ids must survive a snapshot round trip")
		assert.Equal(t, "Company A", found.Name)
	})
}
