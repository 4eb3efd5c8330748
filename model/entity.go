package model

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entity represents a canonical, identity-resolved entity.
// It is created and mutated only by the entity linker: the ID never changes
// once assigned, and entities are never deleted, only retired with a redirect
// to the surviving entity.
type Entity struct {
	ID         uuid.UUID    `json:"id"`
	Name       string       `json:"name"`
	Type       MentionType  `json:"entity_type"`
	Aliases    []string     `json:"aliases"`
	Mentions   []MentionRef `json:"mentions,omitempty"`
	Confidence float64      `json:"confidence"`
	Retired    bool         `json:"retired,omitempty"`
	RedirectTo *uuid.UUID   `json:"redirect_to,omitempty"`
	Embedding  []float32    `json:"embedding,omitempty"`
	Metadata   Metadata     `json:"metadata,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// MentionRef is an arena-style reference to a contributing mention
type MentionRef struct {
	DocumentID uuid.UUID `json:"document_id"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Text       string    `json:"text"`
}

// HasAlias reports whether name matches the canonical name or any known alias.
// Matching is case-insensitive.
func (e *Entity) HasAlias(name string) bool {
	if strings.EqualFold(e.Name, name) {
		return true
	}
	for _, alias := range e.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

// AddAlias records an alias if it is not already known.
// Aliases are kept sorted so entity state is order-independent.
func (e *Entity) AddAlias(alias string) {
	if alias == "" || e.HasAlias(alias) {
		return
	}
	e.Aliases = append(e.Aliases, alias)
	slices.Sort(e.Aliases)
}

// AddMention records a contributing mention reference exactly once
func (e *Entity) AddMention(ref MentionRef) bool {
	if slices.Contains(e.Mentions, ref) {
		return false
	}
	e.Mentions = append(e.Mentions, ref)
	return true
}
