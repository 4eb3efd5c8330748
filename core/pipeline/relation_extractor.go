package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fingraph/fingraph/model"
)

// relationTrigger maps a trigger phrase to the predicate it indicates.
// Reversed triggers ("acquired by") swap subject and object.
type relationTrigger struct {
	phrase     string
	predicate  model.PredicateType
	confidence float64
	reversed   bool
}

var relationTriggers = []relationTrigger{
	{"invested in", model.PredicateInvestment, 0.9, false},
	{"invests in", model.PredicateInvestment, 0.9, false},
	{"invest in", model.PredicateInvestment, 0.85, false},
	{"acquired", model.PredicateInvestment, 0.85, false},
	{"acquires", model.PredicateInvestment, 0.85, false},
	{"acquired by", model.PredicateInvestment, 0.85, true},
	{"took a stake in", model.PredicateInvestment, 0.85, false},
	{"funding from", model.PredicateInvestment, 0.8, true},
	{"cooperation with", model.PredicateCooperation, 0.9, false},
	{"cooperate with", model.PredicateCooperation, 0.85, false},
	{"partnership with", model.PredicateCooperation, 0.9, false},
	{"partnered with", model.PredicateCooperation, 0.85, false},
	{"signed an agreement with", model.PredicateCooperation, 0.85, false},
	{"joined forces with", model.PredicateCooperation, 0.8, false},
	{"jointly", model.PredicateCooperation, 0.7, false},
	{"subsidiary of", model.PredicateSubsidiary, 0.9, true},
	{"unit of", model.PredicateSubsidiary, 0.8, true},
	{"owned by", model.PredicateSubsidiary, 0.85, true},
	{"parent of", model.PredicateSubsidiary, 0.85, false},
	{"competes with", model.PredicateCompetition, 0.85, false},
	{"competitor of", model.PredicateCompetition, 0.85, false},
	{"rival of", model.PredicateCompetition, 0.8, false},
	{"supplies", model.PredicateSupply, 0.8, false},
	{"supplier of", model.PredicateSupply, 0.85, false},
	{"supplied by", model.PredicateSupply, 0.8, true},
	{"provides", model.PredicateSupply, 0.7, false},
	{"appointed", model.PredicateEmployment, 0.85, false},
	{"named", model.PredicateEmployment, 0.7, false},
	{"hired", model.PredicateEmployment, 0.8, false},
	{"joined", model.PredicateEmployment, 0.75, false},
	{"promoted", model.PredicateEmployment, 0.8, false},
	{"launched", model.PredicateProduct, 0.85, false},
	{"released", model.PredicateProduct, 0.8, false},
	{"unveiled", model.PredicateProduct, 0.8, false},
	{"introduced", model.PredicateProduct, 0.75, false},
	{"developed", model.PredicateProduct, 0.7, false},
}

// sentenceBoundary marks the end of a sentence between two mention spans
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+[A-Z]`)

// TriggerRelationExtractor creates a relation extractor based on trigger
// phrase matching between mention pairs. For every ordered pair of entity
// mentions within the configured proximity window (and not crossing a
// sentence boundary) it evaluates the trigger vocabulary on the text between
// the spans. Pairs with no trigger match fall back to a low-confidence
// co-occurrence relation. Output is deterministic for a given mention set.
func TriggerRelationExtractor(config *model.Config) RelationExtractFunc {
	return func(doc *model.Document, mentions []*model.Mention) ([]*RelationCandidate, error) {
		text := doc.Content

		entityMentions := make([]*model.Mention, 0, len(mentions))
		for _, mention := range mentions {
			if isEntityMention(mention.Type) {
				entityMentions = append(entityMentions, mention)
			}
		}

		var candidates []*RelationCandidate
		for i, subject := range entityMentions {
			for j, object := range entityMentions {
				if i == j || subject.Text == object.Text {
					continue
				}
				if subject.Start >= object.Start {
					continue // Evaluate each unordered pair once, left to right
				}
				if object.Start-subject.End > config.ProximityWindow {
					continue
				}
				between := text[subject.End:object.Start]
				if sentenceBoundary.MatchString(between) {
					continue
				}

				pair := extractPairRelations(doc, subject, object, between, config)
				candidates = append(candidates, pair...)
			}
		}

		candidates = resolveExclusivePredicates(candidates)
		candidates = dedupeRelations(candidates, config)
		return candidates, nil
	}
}

func isEntityMention(t model.MentionType) bool {
	return t.EntityKind()
}

// extractPairRelations evaluates the trigger vocabulary on the text between
// two mentions and emits one candidate per matching predicate.
func extractPairRelations(doc *model.Document, left, right *model.Mention, between string, config *model.Config) []*RelationCandidate {
	lowered := strings.ToLower(between)
	evidence := model.EvidenceSpan{
		DocumentID: doc.RID,
		Start:      left.Start,
		End:        right.End,
		Text:       doc.Content[left.Start:right.End],
	}

	matched := map[model.PredicateType]*RelationCandidate{}
	for _, trigger := range relationTriggers {
		if !strings.Contains(lowered, trigger.phrase) {
			continue
		}
		if !triggerFitsTypes(trigger.predicate, left.Type, right.Type) {
			continue
		}

		subject, object := left, right
		if trigger.reversed {
			subject, object = right, left
		}

		confidence := trigger.confidence * (left.Confidence+right.Confidence) / 2 * 1.25
		if confidence > 1 {
			confidence = 1
		}

		existing, ok := matched[trigger.predicate]
		if ok && existing.Confidence >= confidence {
			continue
		}
		matched[trigger.predicate] = &RelationCandidate{
			Subject:    subject,
			Predicate:  trigger.predicate,
			Object:     object,
			Evidence:   evidence,
			Confidence: confidence,
			Metadata: model.Metadata{
				"method":  "trigger_pattern",
				"trigger": trigger.phrase,
			},
		}
	}

	if len(matched) == 0 {
		// Co-occurrence fallback for entity pairs with no trigger evidence
		if config.CooccurrenceConfidence >= config.RelationConfidenceFloor {
			return []*RelationCandidate{{
				Subject:    left,
				Predicate:  model.PredicateCooccurrence,
				Object:     right,
				Evidence:   evidence,
				Confidence: config.CooccurrenceConfidence,
				Metadata: model.Metadata{
					"method": "co-occurrence",
				},
			}}
		}
		return nil
	}

	candidates := make([]*RelationCandidate, 0, len(matched))
	for _, candidate := range matched {
		if candidate.Confidence >= config.RelationConfidenceFloor {
			candidates = append(candidates, candidate)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Predicate < candidates[j].Predicate
	})
	return candidates
}

// triggerFitsTypes rejects predicate/type combinations that cannot hold,
// e.g. an employment relation between two organizations.
func triggerFitsTypes(predicate model.PredicateType, subjectType, objectType model.MentionType) bool {
	switch predicate {
	case model.PredicateEmployment:
		return subjectType == model.MentionPerson || objectType == model.MentionPerson ||
			subjectType == model.MentionOther || objectType == model.MentionOther
	case model.PredicateProduct:
		return subjectType != model.MentionPerson
	default:
		return true
	}
}

// resolveExclusivePredicates enforces mutual exclusion between predicate types
// on the same ordered pair: only the highest-confidence one survives, and the
// suppressed predicates are recorded on the survivor.
func resolveExclusivePredicates(candidates []*RelationCandidate) []*RelationCandidate {
	keyOf := func(c *RelationCandidate) string {
		return fmt.Sprintf("%d:%d|%d:%d", c.Subject.Start, c.Subject.End, c.Object.Start, c.Object.End)
	}

	suppressed := map[*RelationCandidate]bool{}
	for _, a := range candidates {
		for _, b := range candidates {
			if a == b || keyOf(a) != keyOf(b) {
				continue
			}
			for _, pair := range model.MutuallyExclusivePredicates {
				conflict := (a.Predicate == pair[0] && b.Predicate == pair[1]) ||
					(a.Predicate == pair[1] && b.Predicate == pair[0])
				if !conflict {
					continue
				}
				loser, winner := a, b
				if a.Confidence > b.Confidence || (a.Confidence == b.Confidence && a.Predicate < b.Predicate) {
					loser, winner = b, a
				}
				suppressed[loser] = true
				winner.Metadata["suppressed_predicate"] = string(loser.Predicate)
				winner.Metadata["suppressed_reason"] = "mutually_exclusive"
			}
		}
	}

	kept := candidates[:0]
	for _, candidate := range candidates {
		if !suppressed[candidate] {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// dedupeRelations merges duplicate (subject, predicate, object) candidates,
// averaging their confidences, and drops co-occurrence candidates for pairs
// that already carry a typed relation in either direction.
func dedupeRelations(candidates []*RelationCandidate, config *model.Config) []*RelationCandidate {
	type key struct {
		subject   string
		predicate model.PredicateType
		object    string
	}

	merged := map[key]*RelationCandidate{}
	counts := map[key]int{}
	var order []key
	typedPairs := map[string]bool{}

	for _, candidate := range candidates {
		k := key{candidate.Subject.Text, candidate.Predicate, candidate.Object.Text}
		if existing, ok := merged[k]; ok {
			total := existing.Confidence*float64(counts[k]) + candidate.Confidence
			counts[k]++
			existing.Confidence = total / float64(counts[k])
		} else {
			merged[k] = candidate
			counts[k] = 1
			order = append(order, k)
		}
		if candidate.Predicate != model.PredicateCooccurrence {
			typedPairs[candidate.Subject.Text+"|"+candidate.Object.Text] = true
			typedPairs[candidate.Object.Text+"|"+candidate.Subject.Text] = true
		}
	}

	result := make([]*RelationCandidate, 0, len(order))
	for _, k := range order {
		candidate := merged[k]
		if candidate.Predicate == model.PredicateCooccurrence &&
			typedPairs[candidate.Subject.Text+"|"+candidate.Object.Text] {
			continue
		}
		if candidate.Confidence < config.RelationConfidenceFloor {
			continue
		}
		result = append(result, candidate)
	}
	return result
}
