package model

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// categoryTag matches a leading bracketed category label, e.g. "[Investment Cooperation]"
var categoryTag = regexp.MustCompile(`^\s*\[([^\[\]]+)\]\s*`)

// Document represents a source text document.
// Category is an optional weak event-type prior taken from a leading bracketed
// tag. ReferenceDate is the basis for resolving relative temporal expressions;
// nil means relative expressions degrade to granularity "unknown".
type Document struct {
	ID            int64      `json:"id"`
	RID           uuid.UUID  `json:"rid"`
	Title         string     `json:"title"`
	Source        string     `json:"source,omitempty"`
	Content       string     `json:"content,omitempty" db:"-"` // Used for processing, not stored in the database
	Category      string     `json:"category,omitempty"`
	ReferenceDate *time.Time `json:"reference_date,omitempty"`
	Metadata      Metadata   `json:"metadata,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewDocument creates a Document from raw text, parsing a leading bracketed
// category tag if present. The RID is assigned here so extraction results can
// reference the document before it is persisted.
func NewDocument(title string, content string, referenceDate *time.Time) *Document {
	doc := &Document{
		RID:           uuid.New(),
		Title:         title,
		Content:       content,
		ReferenceDate: referenceDate,
	}
	if match := categoryTag.FindStringSubmatch(content); match != nil {
		doc.Category = strings.TrimSpace(match[1])
		doc.Content = content[len(match[0]):]
	}
	return doc
}

// NewDocumentFromFile reads a file and creates a Document with the file content.
// The title defaults to the filename, and source to the file path.
func NewDocumentFromFile(filePath string, referenceDate *time.Time) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	// Get filename without extension for default title
	filename := filepath.Base(filePath)
	title := filename[:len(filename)-len(filepath.Ext(filename))]
	if title == "" {
		title = filename
	}

	doc := NewDocument(title, string(content), referenceDate)
	doc.Source = filePath
	return doc, nil
}
