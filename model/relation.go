package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PredicateType represents the type of relation between two entities
type PredicateType string

const (
	PredicateInvestment   PredicateType = "investment"
	PredicateCooperation  PredicateType = "cooperation"
	PredicateSubsidiary   PredicateType = "subsidiary"
	PredicateCompetition  PredicateType = "competition"
	PredicateSupply       PredicateType = "supply"
	PredicateEmployment   PredicateType = "employment"
	PredicateProduct      PredicateType = "product"
	PredicateCooccurrence PredicateType = "cooccurrence"
)

// MutuallyExclusivePredicates lists predicate pairs that cannot both hold
// between the same ordered entity pair. When both are extracted, only the
// higher-confidence one is kept.
var MutuallyExclusivePredicates = [][2]PredicateType{
	{PredicateCompetition, PredicateSubsidiary},
	{PredicateCompetition, PredicateCooperation},
}

// Relation represents a typed, directed relation between two canonical entities.
// Relations are immutable after extraction except for endpoint re-keying when
// the linker merges the entities they reference.
type Relation struct {
	ID         uuid.UUID           `json:"id"`
	SubjectID  uuid.UUID           `json:"subject_id"`
	Predicate  PredicateType       `json:"predicate"`
	ObjectID   uuid.UUID           `json:"object_id"`
	Evidence   EvidenceSpan        `json:"evidence"`
	Confidence float64             `json:"confidence"`
	Temporal   *TemporalExpression `json:"temporal,omitempty"`
	Metadata   Metadata            `json:"metadata,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Fingerprint returns the idempotence key of the evidence for this relation
func (r *Relation) Fingerprint() string {
	return r.Evidence.Fingerprint("relation:" + string(r.Predicate))
}

// Key returns the full graph key (subject, predicate, object, evidence fingerprint).
// It changes when endpoints are re-keyed by an entity merge, so the graph
// manager re-indexes relations after retire operations.
func (r *Relation) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", r.SubjectID, r.Predicate, r.ObjectID, r.Fingerprint())
}
