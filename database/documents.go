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

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	InsertDocument(document *model.Document) error
	SelectDocument(rid uuid.UUID) (*model.Document, error)
	SelectAllDocuments(limit int, offset int) ([]*model.Document, error)
	SearchDocuments(searchTerm string, limit int) ([]*model.Document, error)
	DeleteDocument(rid uuid.UUID) error
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db  *helper.Database
	run helper.Querier
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db:  db,
		run: db.Instance,
	}

	err := sql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// WithTx returns a copy of the handler whose statements run on tx instead of
// the connection pool, so a caller can group writes into one transaction.
func (h *DocumentsDBHandler) WithTx(tx helper.Querier) *DocumentsDBHandler {
	bound := *h
	bound.run = tx
	return &bound
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

// InsertDocument inserts a new document (or updates if it exists)
func (h *DocumentsDBHandler) InsertDocument(document *model.Document) error {
	if document.RID == uuid.Nil {
		document.RID = uuid.New()
	}
	row := h.run.QueryRow(
		`SELECT * FROM insert_document($1, $2, $3, $4, $5, $6)`,
		document.RID,
		document.Title,
		document.Source,
		document.Category,
		document.ReferenceDate,
		document.Metadata,
	)

	err := scanDocument(row, document)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectDocument retrieves a document by RID
func (h *DocumentsDBHandler) SelectDocument(rid uuid.UUID) (*model.Document, error) {
	document := &model.Document{}
	row := h.run.QueryRow(
		`SELECT * FROM select_document($1)`,
		rid,
	)

	err := scanDocument(row, document)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return document, nil
}

// SelectAllDocuments retrieves documents ordered by creation time
func (h *DocumentsDBHandler) SelectAllDocuments(limit int, offset int) ([]*model.Document, error) {
	rows, err := h.run.Query(
		`SELECT * FROM select_all_documents($1, $2)`,
		limit,
		offset,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var documents []*model.Document
	for rows.Next() {
		document := &model.Document{}
		err := scanDocument(rows, document)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		documents = append(documents, document)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return documents, nil
}

// SearchDocuments searches documents by title or category pattern
func (h *DocumentsDBHandler) SearchDocuments(searchTerm string, limit int) ([]*model.Document, error) {
	rows, err := h.run.Query(
		`SELECT * FROM search_documents($1, $2)`,
		searchTerm,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var documents []*model.Document
	for rows.Next() {
		document := &model.Document{}
		err := scanDocument(rows, document)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		documents = append(documents, document)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return documents, nil
}

// DeleteDocument deletes a document by RID
func (h *DocumentsDBHandler) DeleteDocument(rid uuid.UUID) error {
	_, err := h.run.Exec(
		`SELECT delete_document($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, document *model.Document) error {
	return row.Scan(
		&document.ID,
		&document.RID,
		&document.Title,
		&document.Source,
		&document.Category,
		&document.ReferenceDate,
		&document.Metadata,
		&document.CreatedAt,
		&document.UpdatedAt,
	)
}
