package pipeline

import (
	"github.com/fingraph/fingraph/model"
)

// MentionExtractFunc extracts candidate entity mentions from a document.
// Implementations must be pure functions of the document text: malformed or
// empty text yields an empty mention list, never an error about the content.
type MentionExtractFunc func(doc *model.Document) ([]*model.Mention, error)

// RelationExtractFunc extracts candidate relations between mention pairs.
// Implementations must be deterministic given the same mention set and text.
type RelationExtractFunc func(doc *model.Document, mentions []*model.Mention) ([]*RelationCandidate, error)

// TemporalAnalyzeFunc extracts and normalizes temporal expressions.
// Expressions that cannot be resolved are returned with granularity unknown.
type TemporalAnalyzeFunc func(doc *model.Document) ([]*model.TemporalExpression, error)

// EventExtractFunc assembles event frames from the outputs of the earlier stages
type EventExtractFunc func(doc *model.Document, mentions []*model.Mention, relations []*RelationCandidate, times []*model.TemporalExpression) ([]*EventCandidate, error)

// EmbedFunc generates an embedding for text, used by the semantic linking tier
type EmbedFunc func(text string) ([]float32, error)

// RelationCandidate is a relation whose endpoints are still mentions.
// The entity linker's mapping re-keys candidates into model.Relation values
// with canonical entity ids.
type RelationCandidate struct {
	Subject    *model.Mention
	Predicate  model.PredicateType
	Object     *model.Mention
	Evidence   model.EvidenceSpan
	Confidence float64
	Temporal   *model.TemporalExpression
	Metadata   model.Metadata
}

// RoleCandidate is a role slot filled with a mention (or nil if unfilled)
type RoleCandidate struct {
	Name    string
	Mention *model.Mention
}

// EventCandidate is an event frame whose role fillers are still mentions
type EventCandidate struct {
	Type       model.EventType
	Trigger    string
	Roles      []RoleCandidate
	Evidence   model.EvidenceSpan
	Confidence float64
	Temporal   *model.TemporalExpression
	Incomplete bool
}

// FilledRoles returns the number of roles bound to a mention
func (e *EventCandidate) FilledRoles() int {
	n := 0
	for _, role := range e.Roles {
		if role.Mention != nil {
			n++
		}
	}
	return n
}

// ExtractionResult contains everything stages 1-4 produced for one document
type ExtractionResult struct {
	Document  *model.Document
	Mentions  []*model.Mention
	Relations []*RelationCandidate
	Temporals []*model.TemporalExpression
	Events    []*EventCandidate
}

// Pipeline combines the per-document extraction stages. Each stage depends
// only on the outputs of the ones before it, so a Pipeline is safe to share
// across goroutines processing different documents.
type Pipeline struct {
	MentionExtractor  MentionExtractFunc
	RelationExtractor RelationExtractFunc
	TemporalAnalyzer  TemporalAnalyzeFunc
	EventExtractor    EventExtractFunc
	Embedder          EmbedFunc // Optional, feeds the linker's semantic tier
}

// NewPipeline creates a pipeline from the four extraction stages
func NewPipeline(mentions MentionExtractFunc, relations RelationExtractFunc, temporal TemporalAnalyzeFunc, events EventExtractFunc) *Pipeline {
	return &Pipeline{
		MentionExtractor:  mentions,
		RelationExtractor: relations,
		TemporalAnalyzer:  temporal,
		EventExtractor:    events,
	}
}

// SetEmbedder sets the embedding function used for semantic entity linking
func (p *Pipeline) SetEmbedder(embedder EmbedFunc) {
	p.Embedder = embedder
}

// Process runs stages 1-4 on a single document
func (p *Pipeline) Process(doc *model.Document) (*ExtractionResult, error) {
	mentions, err := p.MentionExtractor(doc)
	if err != nil {
		return nil, err
	}

	var temporals []*model.TemporalExpression
	if p.TemporalAnalyzer != nil {
		temporals, err = p.TemporalAnalyzer(doc)
		if err != nil {
			return nil, err
		}
	}

	var relations []*RelationCandidate
	if p.RelationExtractor != nil {
		relations, err = p.RelationExtractor(doc, mentions)
		if err != nil {
			return nil, err
		}
		attachTemporalQualifiers(relations, temporals)
	}

	var events []*EventCandidate
	if p.EventExtractor != nil {
		events, err = p.EventExtractor(doc, mentions, relations, temporals)
		if err != nil {
			return nil, err
		}
	}

	return &ExtractionResult{
		Document:  doc,
		Mentions:  mentions,
		Relations: relations,
		Temporals: temporals,
		Events:    events,
	}, nil
}

// attachTemporalQualifiers qualifies each relation with the nearest temporal
// expression from the same document, if one exists within the evidence span's
// sentence-scale neighborhood.
func attachTemporalQualifiers(relations []*RelationCandidate, temporals []*model.TemporalExpression) {
	const window = 200

	for _, relation := range relations {
		if relation.Temporal != nil {
			continue
		}
		var best *model.TemporalExpression
		bestDistance := window + 1
		for _, expr := range temporals {
			distance := spanDistance(relation.Evidence.Start, relation.Evidence.End, expr.Start, expr.End)
			if distance < bestDistance {
				bestDistance = distance
				best = expr
			}
		}
		relation.Temporal = best
	}
}

// spanDistance returns the character gap between two spans, 0 if they overlap
func spanDistance(aStart, aEnd, bStart, bEnd int) int {
	if aStart < bEnd && bStart < aEnd {
		return 0
	}
	if aEnd <= bStart {
		return bStart - aEnd
	}
	return aStart - bEnd
}
