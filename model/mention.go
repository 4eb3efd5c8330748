package model

import (
	"github.com/google/uuid"
)

// MentionType is the candidate type of an entity mention
type MentionType string

const (
	MentionOrganization MentionType = "organization"
	MentionPerson       MentionType = "person"
	MentionProduct      MentionType = "product"
	MentionLocation     MentionType = "location"
	MentionTime         MentionType = "time"
	MentionAmount       MentionType = "amount"
	MentionOther        MentionType = "other"
)

// EntityKind reports whether mentions of this type denote graph entities.
// Time and amount mentions qualify relations and events but are never
// linked into canonical entities themselves.
func (t MentionType) EntityKind() bool {
	switch t {
	case MentionTime, MentionAmount:
		return false
	default:
		return true
	}
}

// Mention represents a single occurrence of an entity reference in a document.
// Mentions are immutable once produced by the mention extractor.
type Mention struct {
	DocumentID uuid.UUID   `json:"document_id"`
	Start      int         `json:"start"`
	End        int         `json:"end"`
	Text       string      `json:"text"`
	Type       MentionType `json:"mention_type"`
	Confidence float64     `json:"confidence"`
	Metadata   Metadata    `json:"metadata,omitempty"`
}

// Span returns the evidence span of the mention
func (m *Mention) Span() EvidenceSpan {
	return EvidenceSpan{
		DocumentID: m.DocumentID,
		Start:      m.Start,
		End:        m.End,
		Text:       m.Text,
	}
}

// Len returns the character length of the mention span
func (m *Mention) Len() int {
	return m.End - m.Start
}

// Overlaps reports whether two mentions from the same document overlap
func (m *Mention) Overlaps(other *Mention) bool {
	if m.DocumentID != other.DocumentID {
		return false
	}
	return m.Start < other.End && other.Start < m.End
}
