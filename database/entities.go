package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/fingraph/fingraph/helper"
	"github.com/fingraph/fingraph/model"
	"github.com/fingraph/fingraph/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntity(entity *model.Entity) error
	SelectEntity(id uuid.UUID) (*model.Entity, error)
	SelectLiveEntities(limit int, offset int) ([]*model.Entity, error)
	SelectEntitiesByType(entityType model.MentionType, limit int) ([]*model.Entity, error)
	SearchEntities(searchTerm string, limit int) ([]*model.Entity, error)
	SelectEntitiesBySimilarity(embedding []float32, limit int) ([]*model.Entity, []float64, error)
	RetireEntity(oldID uuid.UUID, newID uuid.UUID) error
	DeleteEntity(id uuid.UUID) error
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db  *helper.Database
	run helper.Querier
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db:  db,
		run: db.Instance,
	}

	err := sql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// WithTx returns a copy of the handler whose statements run on tx instead of
// the connection pool, so a caller can group writes into one transaction.
func (h *EntitiesDBHandler) WithTx(tx helper.Querier) *EntitiesDBHandler {
	bound := *h
	bound.run = tx
	return &bound
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// UpsertEntity inserts a new entity or updates it by canonical id
func (h *EntitiesDBHandler) UpsertEntity(entity *model.Entity) error {
	if entity.ID == uuid.Nil {
		return helper.NewError("upsert entity", fmt.Errorf("entity has no id"))
	}

	var embedding any
	if len(entity.Embedding) > 0 {
		embedding = pgvector.NewVector(entity.Embedding)
	}

	row := h.run.QueryRow(
		`SELECT * FROM upsert_entity($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entity.ID,
		entity.Name,
		entity.Type,
		pq.Array(entity.Aliases),
		entity.Confidence,
		entity.Retired,
		entity.RedirectTo,
		embedding,
		entity.Metadata,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectEntity retrieves an entity by canonical id
func (h *EntitiesDBHandler) SelectEntity(id uuid.UUID) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.run.QueryRow(
		`SELECT * FROM select_entity($1)`,
		id,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectLiveEntities retrieves non-retired entities ordered by id
func (h *EntitiesDBHandler) SelectLiveEntities(limit int, offset int) ([]*model.Entity, error) {
	rows, err := h.run.Query(
		`SELECT * FROM select_live_entities($1, $2)`,
		limit,
		offset,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// SelectEntitiesByType retrieves live entities by type
func (h *EntitiesDBHandler) SelectEntitiesByType(entityType model.MentionType, limit int) ([]*model.Entity, error) {
	rows, err := h.run.Query(
		`SELECT * FROM select_entities_by_type($1, $2)`,
		entityType,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// SearchEntities searches live entities by name or alias pattern
func (h *EntitiesDBHandler) SearchEntities(searchTerm string, limit int) ([]*model.Entity, error) {
	rows, err := h.run.Query(
		`SELECT * FROM search_entities($1, $2)`,
		searchTerm,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// SelectEntitiesBySimilarity retrieves the most similar live entities by
// embedding cosine similarity. It returns entities with their similarities.
func (h *EntitiesDBHandler) SelectEntitiesBySimilarity(embedding []float32, limit int) ([]*model.Entity, []float64, error) {
	rows, err := h.run.Query(
		`SELECT (entity).*, similarity FROM select_entities_by_similarity($1, $2)`,
		pgvector.NewVector(embedding),
		limit,
	)
	if err != nil {
		return nil, nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	var similarities []float64
	for rows.Next() {
		entity := &model.Entity{}
		var vec nullableVector
		var similarity float64
		err := rows.Scan(
			&entity.ID,
			&entity.Name,
			&entity.Type,
			pq.Array(&entity.Aliases),
			&entity.Confidence,
			&entity.Retired,
			&entity.RedirectTo,
			&vec,
			&entity.Metadata,
			&entity.CreatedAt,
			&entity.UpdatedAt,
			&similarity,
		)
		if err != nil {
			return nil, nil, helper.NewError("scan", err)
		}
		entity.Embedding = vec.Slice()

		entities = append(entities, entity)
		similarities = append(similarities, similarity)
	}

	err = rows.Err()
	if err != nil {
		return nil, nil, helper.NewError("rows error", err)
	}

	return entities, similarities, nil
}

// RetireEntity marks oldID retired with a redirect to newID and re-keys all
// relation endpoints and event roles in one transaction.
func (h *EntitiesDBHandler) RetireEntity(oldID uuid.UUID, newID uuid.UUID) error {
	_, err := h.run.Exec(
		`SELECT retire_entity($1, $2)`,
		oldID,
		newID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteEntity deletes an entity by id
func (h *EntitiesDBHandler) DeleteEntity(id uuid.UUID) error {
	_, err := h.run.Exec(
		`SELECT delete_entity($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// nullableVector scans a vector column that may be NULL
type nullableVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullableVector) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

func (n *nullableVector) Slice() []float32 {
	if !n.valid {
		return nil
	}
	return n.vec.Slice()
}

func scanEntity(row rowScanner, entity *model.Entity) error {
	var vec nullableVector
	err := row.Scan(
		&entity.ID,
		&entity.Name,
		&entity.Type,
		pq.Array(&entity.Aliases),
		&entity.Confidence,
		&entity.Retired,
		&entity.RedirectTo,
		&vec,
		&entity.Metadata,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return err
	}
	entity.Embedding = vec.Slice()
	return nil
}

func collectEntities(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]*model.Entity, error) {
	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := scanEntity(rows, entity)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}
