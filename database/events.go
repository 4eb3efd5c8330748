package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fingraph/fingraph/helper"
	"github.com/fingraph/fingraph/model"
	"github.com/fingraph/fingraph/sql"
)

// EventsDBHandlerFunctions defines the interface for Events database operations.
type EventsDBHandlerFunctions interface {
	UpsertEvent(event *model.Event) error
	SelectEventsByType(eventType model.EventType, limit int) ([]*model.Event, error)
	SelectEventsByEntity(entityID uuid.UUID, limit int) ([]*model.Event, error)
	SelectAllEvents(limit int, offset int) ([]*model.Event, error)
	DeleteEvent(id uuid.UUID) error
}

// EventsDBHandler handles event-related database operations
type EventsDBHandler struct {
	db  *helper.Database
	run helper.Querier
}

// NewEventsDBHandler creates a new events database handler.
// It initializes the database connection and loads event-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEventsDBHandler(db *helper.Database, force bool) (*EventsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	eventsDbHandler := &EventsDBHandler{
		db:  db,
		run: db.Instance,
	}

	err := sql.LoadEventsSql(eventsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load events sql", err)
	}

	err = eventsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EventsDBHandler")

	return eventsDbHandler, nil
}

// WithTx returns a copy of the handler whose statements run on tx instead of
// the connection pool, so a caller can group writes into one transaction.
func (h *EventsDBHandler) WithTx(tx helper.Querier) *EventsDBHandler {
	bound := *h
	bound.run = tx
	return &bound
}

// CreateTable creates the 'events' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EventsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_events();`)
	if err != nil {
		log.Panicf("error initializing events table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table events")

	return nil
}

// UpsertEvent inserts an event keyed by (type, evidence fingerprint).
// Upserting the same evidence again keeps the higher confidence.
func (h *EventsDBHandler) UpsertEvent(event *model.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	roles, err := json.Marshal(event.Roles)
	if err != nil {
		return helper.NewError("marshal roles", err)
	}

	var temporalPoint *time.Time
	temporalGranularity := string(model.GranularityUnknown)
	if event.Temporal != nil {
		temporalGranularity = string(event.Temporal.Granularity)
		if event.Temporal.Granularity != model.GranularityUnknown {
			point := event.Temporal.Point
			temporalPoint = &point
		}
	}

	var evidenceDocument *uuid.UUID
	if event.Evidence.DocumentID != uuid.Nil {
		evidenceDocument = &event.Evidence.DocumentID
	}

	row := h.run.QueryRow(
		`SELECT * FROM upsert_event($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		event.ID,
		event.Type,
		event.Trigger,
		roles,
		event.Fingerprint(),
		evidenceDocument,
		event.Evidence.Start,
		event.Evidence.End,
		event.Evidence.Text,
		event.Confidence,
		event.Incomplete,
		temporalPoint,
		temporalGranularity,
		event.Metadata,
	)

	err = scanEvent(row, event)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectEventsByType retrieves events by type
func (h *EventsDBHandler) SelectEventsByType(eventType model.EventType, limit int) ([]*model.Event, error) {
	rows, err := h.run.Query(
		`SELECT * FROM select_events_by_type($1, $2)`,
		eventType,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// SelectEventsByEntity retrieves events with the entity in any role
func (h *EventsDBHandler) SelectEventsByEntity(entityID uuid.UUID, limit int) ([]*model.Event, error) {
	rows, err := h.run.Query(
		`SELECT * FROM select_events_by_entity($1, $2)`,
		entityID,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// SelectAllEvents retrieves events ordered by creation time
func (h *EventsDBHandler) SelectAllEvents(limit int, offset int) ([]*model.Event, error) {
	rows, err := h.run.Query(
		`SELECT * FROM select_all_events($1, $2)`,
		limit,
		offset,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// DeleteEvent deletes an event by id
func (h *EventsDBHandler) DeleteEvent(id uuid.UUID) error {
	_, err := h.run.Exec(
		`SELECT delete_event($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanEvent(row rowScanner, event *model.Event) error {
	var roles []byte
	var fingerprint string
	var evidenceDocument *uuid.UUID
	var temporalPoint *time.Time
	var temporalGranularity string
	err := row.Scan(
		&event.ID,
		&event.Type,
		&event.Trigger,
		&roles,
		&fingerprint,
		&evidenceDocument,
		&event.Evidence.Start,
		&event.Evidence.End,
		&event.Evidence.Text,
		&event.Confidence,
		&event.Incomplete,
		&temporalPoint,
		&temporalGranularity,
		&event.Metadata,
		&event.CreatedAt,
	)
	if err != nil {
		return err
	}
	err = json.Unmarshal(roles, &event.Roles)
	if err != nil {
		return err
	}
	if evidenceDocument != nil {
		event.Evidence.DocumentID = *evidenceDocument
	}
	if temporalPoint != nil {
		event.Temporal = &model.TemporalExpression{
			Point:       *temporalPoint,
			Granularity: model.Granularity(temporalGranularity),
		}
	}
	return nil
}

func collectEvents(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		event := &model.Event{}
		err := scanEvent(rows, event)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		events = append(events, event)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return events, nil
}
