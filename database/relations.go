package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fingraph/fingraph/helper"
	"github.com/fingraph/fingraph/model"
	"github.com/fingraph/fingraph/sql"
)

// RelationsDBHandlerFunctions defines the interface for Relations database operations.
type RelationsDBHandlerFunctions interface {
	UpsertRelation(relation *model.Relation) error
	SelectRelationsByEntity(entityID uuid.UUID, limit int) ([]*model.Relation, error)
	SelectRelationsByPredicate(predicate model.PredicateType, limit int) ([]*model.Relation, error)
	SelectAllRelations(limit int, offset int) ([]*model.Relation, error)
	DeleteRelation(id uuid.UUID) error
}

// RelationsDBHandler handles relation-related database operations
type RelationsDBHandler struct {
	db  *helper.Database
	run helper.Querier
}

// NewRelationsDBHandler creates a new relations database handler.
// It initializes the database connection and loads relation-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationsDBHandler(db *helper.Database, force bool) (*RelationsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationsDbHandler := &RelationsDBHandler{
		db:  db,
		run: db.Instance,
	}

	err := sql.LoadRelationsSql(relationsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relations sql", err)
	}

	err = relationsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationsDBHandler")

	return relationsDbHandler, nil
}

// WithTx returns a copy of the handler whose statements run on tx instead of
// the connection pool, so a caller can group writes into one transaction.
func (h *RelationsDBHandler) WithTx(tx helper.Querier) *RelationsDBHandler {
	bound := *h
	bound.run = tx
	return &bound
}

// CreateTable creates the 'relations' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *RelationsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relations();`)
	if err != nil {
		log.Panicf("error initializing relations table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relations")

	return nil
}

// UpsertRelation inserts a relation keyed by (subject, predicate, object,
// evidence fingerprint). Upserting the same evidence again keeps the higher
// confidence.
func (h *RelationsDBHandler) UpsertRelation(relation *model.Relation) error {
	if relation.ID == uuid.Nil {
		relation.ID = uuid.New()
	}

	var temporalPoint *time.Time
	temporalGranularity := string(model.GranularityUnknown)
	if relation.Temporal != nil {
		temporalGranularity = string(relation.Temporal.Granularity)
		if relation.Temporal.Granularity != model.GranularityUnknown {
			point := relation.Temporal.Point
			temporalPoint = &point
		}
	}

	var evidenceDocument *uuid.UUID
	if relation.Evidence.DocumentID != uuid.Nil {
		evidenceDocument = &relation.Evidence.DocumentID
	}

	row := h.run.QueryRow(
		`SELECT * FROM upsert_relation($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		relation.ID,
		relation.SubjectID,
		relation.Predicate,
		relation.ObjectID,
		relation.Fingerprint(),
		evidenceDocument,
		relation.Evidence.Start,
		relation.Evidence.End,
		relation.Evidence.Text,
		relation.Confidence,
		temporalPoint,
		temporalGranularity,
		relation.Metadata,
	)

	err := scanRelation(row, relation)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectRelationsByEntity retrieves relations touching an entity as subject or object
func (h *RelationsDBHandler) SelectRelationsByEntity(entityID uuid.UUID, limit int) ([]*model.Relation, error) {
	rows, err := h.run.Query(
		`SELECT * FROM select_relations_by_entity($1, $2)`,
		entityID,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectRelations(rows)
}

// SelectRelationsByPredicate retrieves relations by predicate type
func (h *RelationsDBHandler) SelectRelationsByPredicate(predicate model.PredicateType, limit int) ([]*model.Relation, error) {
	rows, err := h.run.Query(
		`SELECT * FROM select_relations_by_predicate($1, $2)`,
		predicate,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectRelations(rows)
}

// SelectAllRelations retrieves relations ordered by creation time
func (h *RelationsDBHandler) SelectAllRelations(limit int, offset int) ([]*model.Relation, error) {
	rows, err := h.run.Query(
		`SELECT * FROM select_all_relations($1, $2)`,
		limit,
		offset,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectRelations(rows)
}

// DeleteRelation deletes a relation by id
func (h *RelationsDBHandler) DeleteRelation(id uuid.UUID) error {
	_, err := h.run.Exec(
		`SELECT delete_relation($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanRelation(row rowScanner, relation *model.Relation) error {
	var fingerprint string
	var evidenceDocument *uuid.UUID
	var temporalPoint *time.Time
	var temporalGranularity string
	err := row.Scan(
		&relation.ID,
		&relation.SubjectID,
		&relation.Predicate,
		&relation.ObjectID,
		&fingerprint,
		&evidenceDocument,
		&relation.Evidence.Start,
		&relation.Evidence.End,
		&relation.Evidence.Text,
		&relation.Confidence,
		&temporalPoint,
		&temporalGranularity,
		&relation.Metadata,
		&relation.CreatedAt,
	)
	if err != nil {
		return err
	}
	if evidenceDocument != nil {
		relation.Evidence.DocumentID = *evidenceDocument
	}
	if temporalPoint != nil {
		relation.Temporal = &model.TemporalExpression{
			Point:       *temporalPoint,
			Granularity: model.Granularity(temporalGranularity),
		}
	}
	return nil
}

func collectRelations(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]*model.Relation, error) {
	var relations []*model.Relation
	for rows.Next() {
		relation := &model.Relation{}
		err := scanRelation(rows, relation)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		relations = append(relations, relation)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return relations, nil
}
