package graph

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingraph/fingraph/model"
)

func TestQueryEntities(t *testing.T) {
	manager := NewManager()
	organization := newTestEntity("Acme Holdings", model.MentionOrganization)
	organization.Aliases = []string{"Acme Ltd."}
	person := newTestEntity("Jane Smith", model.MentionPerson)
	person.Confidence = 0.6
	weak := newTestEntity("Maybe Corp", model.MentionOrganization)
	weak.Confidence = 0.3
	require.NoError(t, manager.UpsertEntity(organization))
	require.NoError(t, manager.UpsertEntity(person))
	require.NoError(t, manager.UpsertEntity(weak))

	t.Run("Empty filter returns everything ordered by confidence", func(t *testing.T) {
		entities := manager.QueryEntities(EntityFilter{})

		require.Len(t, entities, 3)
		assert.Equal(t, "Acme Holdings", entities[0].Name)
		assert.Equal(t, "Maybe Corp", entities[2].Name)
	})

	t.Run("Filter by type", func(t *testing.T) {
		entities := manager.QueryEntities(EntityFilter{Type: model.MentionPerson})

		require.Len(t, entities, 1)
		assert.Equal(t, "Jane Smith", entities[0].Name)
	})

	t.Run("Filter by minimum confidence", func(t *testing.T) {
		entities := manager.QueryEntities(EntityFilter{MinConfidence: 0.5})

		assert.Len(t, entities, 2)
	})

	t.Run("Name search matches aliases case-insensitively", func(t *testing.T) {
		entities := manager.QueryEntities(EntityFilter{NameContains: "acme ltd"})

		require.Len(t, entities, 1)
		assert.Equal(t, "Acme Holdings", entities[0].Name)
	})

	t.Run("Results are copies", func(t *testing.T) {
		entities := manager.QueryEntities(EntityFilter{NameContains: "jane"})
		require.Len(t, entities, 1)

		entities[0].Name = "changed"

		found, ok := manager.Entity(person.ID)
		require.True(t, ok)
		assert.Equal(t, "Jane Smith", found.Name)
	})
}

func TestQueryRelations(t *testing.T) {
	manager := NewManager()
	a := newTestEntity("Company A", model.MentionOrganization)
	b := newTestEntity("Company B", model.MentionOrganization)
	c := newTestEntity("Company C", model.MentionOrganization)
	require.NoError(t, manager.UpsertEntity(a))
	require.NoError(t, manager.UpsertEntity(b))
	require.NoError(t, manager.UpsertEntity(c))

	dated := newTestRelation(a.ID, b.ID, model.PredicateInvestment, "A invested in B in August")
	dated.Temporal = &model.TemporalExpression{
		Text:        "August 15 2023",
		Point:       time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC),
		Granularity: model.GranularityDay,
	}
	require.NoError(t, manager.UpsertRelation(dated))
	require.NoError(t, manager.UpsertRelation(newTestRelation(b.ID, c.ID, model.PredicateSupply, "B supplies C")))

	t.Run("Filter by predicate", func(t *testing.T) {
		relations := manager.QueryRelations(RelationFilter{Predicate: model.PredicateSupply})

		require.Len(t, relations, 1)
		assert.Equal(t, b.ID, relations[0].SubjectID)
	})

	t.Run("Filter by entity matches both endpoints", func(t *testing.T) {
		relations := manager.QueryRelations(RelationFilter{EntityID: b.ID})

		assert.Len(t, relations, 2)
	})

	t.Run("Temporal range includes qualified relations only", func(t *testing.T) {
		relations := manager.QueryRelations(RelationFilter{
			After:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			Before: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		})

		require.Len(t, relations, 1, "Relations without a temporal qualifier are excluded from ranged queries")
		assert.Equal(t, model.PredicateInvestment, relations[0].Predicate)
	})

	t.Run("Temporal range excludes points outside the window", func(t *testing.T) {
		relations := manager.QueryRelations(RelationFilter{
			After: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})

		assert.Empty(t, relations)
	})
}

func TestQueryEvents(t *testing.T) {
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
		Evidence:   model.EvidenceSpan{Start: 0, End: 25, Text: "Company A invested in Company B"},
		Confidence: 0.7,
	}
	require.NoError(t, manager.UpsertEvent(event))

	t.Run("Filter by type", func(t *testing.T) {
		events := manager.QueryEvents(EventFilter{Type: model.EventInvestment})
		assert.Len(t, events, 1)

		events = manager.QueryEvents(EventFilter{Type: model.EventCooperation})
		assert.Empty(t, events)
	})

	t.Run("Filter by participating entity", func(t *testing.T) {
		events := manager.QueryEvents(EventFilter{EntityID: investee.ID})
		assert.Len(t, events, 1)

		events = manager.QueryEvents(EventFilter{EntityID: uuid.New()})
		assert.Empty(t, events)
	})

	t.Run("Filter by minimum confidence", func(t *testing.T) {
		events := manager.QueryEvents(EventFilter{MinConfidence: 0.9})
		assert.Empty(t, events)
	})
}
