package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"github.com/fingraph/fingraph/model"
)

// RoleSpec describes one named slot of an event schema
type RoleSpec struct {
	Name     string
	Types    []model.MentionType
	Required bool
	Position string // "before", "after" or "any", relative to the trigger
}

// EventSchema describes an event type: its trigger vocabulary, the category
// tags that select it, and the roles to fill.
type EventSchema struct {
	Type       model.EventType
	Triggers   []string
	Categories []string
	Roles      []RoleSpec
}

// DefaultEventSchemas returns the built-in financial event schemas
func DefaultEventSchemas() []EventSchema {
	return []EventSchema{
		{
			Type:       model.EventInvestment,
			Triggers:   []string{"invested", "invests", "invest", "acquired", "acquires", "acquisition", "stake", "funding"},
			Categories: []string{"investment"},
			Roles: []RoleSpec{
				{Name: "investor", Types: []model.MentionType{model.MentionOrganization, model.MentionPerson}, Required: true, Position: "before"},
				{Name: "investee", Types: []model.MentionType{model.MentionOrganization}, Required: true, Position: "after"},
				{Name: "amount", Types: []model.MentionType{model.MentionAmount}, Required: false, Position: "any"},
			},
		},
		{
			Type:       model.EventCooperation,
			Triggers:   []string{"cooperation", "cooperate", "partnership", "partnered", "agreement", "alliance"},
			Categories: []string{"cooperation"},
			Roles: []RoleSpec{
				{Name: "partner1", Types: []model.MentionType{model.MentionOrganization}, Required: true, Position: "before"},
				{Name: "partner2", Types: []model.MentionType{model.MentionOrganization}, Required: true, Position: "after"},
			},
		},
		{
			Type:       model.EventProductLaunch,
			Triggers:   []string{"launched", "launches", "released", "unveiled", "introduced"},
			Categories: []string{"product", "launch"},
			Roles: []RoleSpec{
				{Name: "company", Types: []model.MentionType{model.MentionOrganization}, Required: true, Position: "before"},
				{Name: "product", Types: []model.MentionType{model.MentionProduct, model.MentionOther}, Required: true, Position: "after"},
			},
		},
		{
			Type:       model.EventPersonnelChange,
			Triggers:   []string{"appointed", "resigned", "joined", "promoted", "named", "hired"},
			Categories: []string{"personnel"},
			Roles: []RoleSpec{
				{Name: "person", Types: []model.MentionType{model.MentionPerson}, Required: true, Position: "any"},
				{Name: "company", Types: []model.MentionType{model.MentionOrganization}, Required: true, Position: "any"},
				{Name: "position", Types: []model.MentionType{model.MentionOther}, Required: false, Position: "after"},
			},
		},
		{
			Type:       model.EventFinancialReport,
			Triggers:   []string{"revenue", "profit", "loss", "earnings", "growth"},
			Categories: []string{"financial", "report"},
			Roles: []RoleSpec{
				{Name: "company", Types: []model.MentionType{model.MentionOrganization}, Required: true, Position: "any"},
				{Name: "metric", Types: []model.MentionType{model.MentionAmount}, Required: false, Position: "any"},
			},
		},
	}
}

// SchemaEventExtractor creates an event extractor that matches the trigger
// vocabulary of each schema against the text and fills roles with the nearest
// mention of a matching type. An explicit category tag on the document takes
// precedence over inferred triggers by boosting the matching schemas'
// trigger confidence. Role fillers are constrained by the extracted
// relations: when more than one role is filled, each filler must be
// connected to at least one other filler by a relation. Events with zero
// filled roles are rejected; events missing required roles are flagged
// incomplete. Event confidence is the minimum of trigger-match confidence
// and role-filler confidence.
func SchemaEventExtractor(config *model.Config, schemas []EventSchema) EventExtractFunc {
	triggerRes := make([]*regexp.Regexp, len(schemas))
	for i, schema := range schemas {
		triggerRes[i] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(schema.Triggers, "|") + `)\b`)
	}

	return func(doc *model.Document, mentions []*model.Mention, relations []*RelationCandidate, times []*model.TemporalExpression) ([]*EventCandidate, error) {
		text := doc.Content
		category := strings.ToLower(doc.Category)
		related := relatedPairs(relations)

		var events []*EventCandidate
		for i, schema := range schemas {
			triggerConfidence := 0.8
			if categoryMatches(category, schema.Categories) {
				triggerConfidence = 0.95
			}

			for _, match := range triggerRes[i].FindAllStringIndex(text, -1) {
				event := buildEvent(doc, schema, text, match[0], match[1], triggerConfidence, mentions, related, times, config)
				if event != nil {
					events = append(events, event)
				}
			}
		}

		events = dedupeEvents(events)
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Evidence.Start < events[j].Evidence.Start
		})
		return events, nil
	}
}

func categoryMatches(category string, keywords []string) bool {
	if category == "" {
		return false
	}
	for _, keyword := range keywords {
		if strings.Contains(category, keyword) {
			return true
		}
	}
	return false
}

// relatedPairs collects the unordered mention text pairs connected by a relation
func relatedPairs(relations []*RelationCandidate) map[string]bool {
	pairs := map[string]bool{}
	for _, relation := range relations {
		pairs[relation.Subject.Text+"|"+relation.Object.Text] = true
		pairs[relation.Object.Text+"|"+relation.Subject.Text] = true
	}
	return pairs
}

func buildEvent(doc *model.Document, schema EventSchema, text string, triggerStart, triggerEnd int, triggerConfidence float64, mentions []*model.Mention, related map[string]bool, times []*model.TemporalExpression, config *model.Config) *EventCandidate {
	trigger := text[triggerStart:triggerEnd]
	used := map[*model.Mention]bool{}
	roles := make([]RoleCandidate, 0, len(schema.Roles))

	for _, spec := range schema.Roles {
		filler := nearestMention(mentions, spec, triggerStart, triggerEnd, config.ProximityWindow, used)
		if filler != nil {
			used[filler] = true
		}
		roles = append(roles, RoleCandidate{Name: spec.Name, Mention: filler})
	}

	roles = enforceRelationConsistency(roles, related)

	filled := 0
	fillerConfidence := 1.0
	incomplete := false
	for i, role := range roles {
		if role.Mention != nil {
			filled++
			if role.Mention.Confidence < fillerConfidence {
				fillerConfidence = role.Mention.Confidence
			}
		} else if schema.Roles[i].Required {
			incomplete = true
		}
	}
	if filled == 0 {
		return nil
	}

	confidence := triggerConfidence
	if fillerConfidence < confidence {
		confidence = fillerConfidence
	}
	if confidence < config.EventConfidenceFloor {
		return nil
	}

	return &EventCandidate{
		Type:    schema.Type,
		Trigger: trigger,
		Roles:   roles,
		Evidence: model.EvidenceSpan{
			DocumentID: doc.RID,
			Start:      triggerStart,
			End:        triggerEnd,
			Text:       trigger,
		},
		Confidence: confidence,
		Temporal:   nearestTime(times, triggerStart, triggerEnd, config.ProximityWindow),
		Incomplete: incomplete,
	}
}

// nearestMention finds the closest unused mention matching the role spec's
// types and position constraint within the window around the trigger.
func nearestMention(mentions []*model.Mention, spec RoleSpec, triggerStart, triggerEnd, window int, used map[*model.Mention]bool) *model.Mention {
	var best *model.Mention
	bestDistance := window + 1

	for _, mention := range mentions {
		if used[mention] || !typeAllowed(mention.Type, spec.Types) {
			continue
		}
		switch spec.Position {
		case "before":
			if mention.Start >= triggerStart {
				continue
			}
		case "after":
			if mention.End <= triggerEnd {
				continue
			}
		}
		distance := spanDistance(triggerStart, triggerEnd, mention.Start, mention.End)
		if distance < bestDistance {
			bestDistance = distance
			best = mention
		}
	}
	return best
}

func typeAllowed(t model.MentionType, allowed []model.MentionType) bool {
	for _, a := range allowed {
		if t == a {
			return true
		}
	}
	return false
}

// enforceRelationConsistency unfills roles whose filler is not connected by
// any relation to another filled role. The constraint only applies when more
// than one role is filled; amount fillers are exempt since amounts never
// appear as relation endpoints.
func enforceRelationConsistency(roles []RoleCandidate, related map[string]bool) []RoleCandidate {
	entityRoles := 0
	for _, role := range roles {
		if role.Mention != nil && isEntityMention(role.Mention.Type) {
			entityRoles++
		}
	}
	if entityRoles < 2 {
		return roles
	}

	for i, role := range roles {
		if role.Mention == nil || !isEntityMention(role.Mention.Type) {
			continue
		}
		connected := false
		for j, other := range roles {
			if i == j || other.Mention == nil || !isEntityMention(other.Mention.Type) {
				continue
			}
			if related[role.Mention.Text+"|"+other.Mention.Text] {
				connected = true
				break
			}
		}
		if !connected {
			roles[i].Mention = nil
		}
	}
	return roles
}

func nearestTime(times []*model.TemporalExpression, start, end, window int) *model.TemporalExpression {
	var best *model.TemporalExpression
	bestDistance := window + 1
	for _, expr := range times {
		distance := spanDistance(start, end, expr.Start, expr.End)
		if distance < bestDistance {
			bestDistance = distance
			best = expr
		}
	}
	return best
}

// dedupeEvents keeps one event per (type, evidence span), preferring the
// higher-confidence frame when schemas overlap on the same trigger.
func dedupeEvents(events []*EventCandidate) []*EventCandidate {
	type key struct {
		eventType model.EventType
		start     int
		end       int
	}
	seen := map[key]*EventCandidate{}
	var order []key
	for _, event := range events {
		k := key{event.Type, event.Evidence.Start, event.Evidence.End}
		if existing, ok := seen[k]; !ok {
			seen[k] = event
			order = append(order, k)
		} else if event.Confidence > existing.Confidence {
			seen[k] = event
		}
	}
	result := make([]*EventCandidate, 0, len(order))
	for _, k := range order {
		result = append(result, seen[k])
	}
	return result
}
