package pipeline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fingraph/fingraph/model"
)

// mentionPattern couples a compiled pattern with the mention type and
// confidence it produces. Group 1, when present, is the mention span;
// otherwise the whole match is used.
type mentionPattern struct {
	re         *regexp.Regexp
	mtype      model.MentionType
	confidence float64
	name       string
}

var monthNames = "January|February|March|April|May|June|July|August|September|October|November|December"

var rulePatterns = []mentionPattern{
	{
		re:         regexp.MustCompile(`\b([A-Z][\w&.\-']*(?:\s+[A-Z][\w&.\-']*)*\s+(?:Inc|Corp|Corporation|Ltd|LLC|Group|Holdings|Bank|Securities|Capital|Partners|Technologies|Ventures)\.?)`),
		mtype:      model.MentionOrganization,
		confidence: 0.9,
		name:       "org_suffix",
	},
	{
		re:         regexp.MustCompile(`\b((?:[A-Z][\w&.\-']*\s+)*(?:Company|Co\.)(?:\s+[A-Z][\w.\-']*)*)`),
		mtype:      model.MentionOrganization,
		confidence: 0.85,
		name:       "org_keyword",
	},
	{
		re:         regexp.MustCompile(`\b(?:Mr|Ms|Mrs|Dr)\.\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
		mtype:      model.MentionPerson,
		confidence: 0.85,
		name:       "person_title",
	},
	{
		re:         regexp.MustCompile(`\b(?:CEO|CFO|CTO|Chairman|Chairwoman|President|Director|Founder|founder)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`),
		mtype:      model.MentionPerson,
		confidence: 0.8,
		name:       "person_role",
	},
	{
		re:         regexp.MustCompile(`\b(?:launched|released|unveiled|introduced|announced)\s+(?:its\s+|the\s+|a\s+|new\s+)*([A-Z][\w\-]+(?:\s+[A-Z0-9][\w\-]*)*)`),
		mtype:      model.MentionProduct,
		confidence: 0.7,
		name:       "product_launch",
	},
	{
		re:         regexp.MustCompile(`\b(?:headquartered in|based in|located in)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`),
		mtype:      model.MentionLocation,
		confidence: 0.75,
		name:       "location_phrase",
	},
	{
		re:         regexp.MustCompile(`[$€£¥]\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:million|billion|trillion))?`),
		mtype:      model.MentionAmount,
		confidence: 0.9,
		name:       "amount_currency",
	},
	{
		re:         regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?\s(?:million|billion|trillion)?\s?(?:dollars|yuan|euros|USD|CNY|RMB|HKD)\b`),
		mtype:      model.MentionAmount,
		confidence: 0.85,
		name:       "amount_unit",
	},
	{
		re:         regexp.MustCompile(`\b\d+(?:\.\d+)?%`),
		mtype:      model.MentionAmount,
		confidence: 0.85,
		name:       "amount_percent",
	},
	{
		re:         regexp.MustCompile(`\b(?:` + monthNames + `)\s+\d{1,2},?\s+\d{4}\b`),
		mtype:      model.MentionTime,
		confidence: 0.9,
		name:       "time_date",
	},
	{
		re:         regexp.MustCompile(`\b\d{1,2}\s+(?:` + monthNames + `)\s+\d{4}\b`),
		mtype:      model.MentionTime,
		confidence: 0.9,
		name:       "time_date_eu",
	},
	{
		re:         regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		mtype:      model.MentionTime,
		confidence: 0.9,
		name:       "time_iso",
	},
	{
		re:         regexp.MustCompile(`\b(?:Q[1-4]\s+\d{4}|\d{4}\s+Q[1-4])\b`),
		mtype:      model.MentionTime,
		confidence: 0.85,
		name:       "time_quarter",
	},
	{
		re:         regexp.MustCompile(`\b(?:` + monthNames + `)\s+\d{4}\b`),
		mtype:      model.MentionTime,
		confidence: 0.8,
		name:       "time_month",
	},
	{
		re:         regexp.MustCompile(`\b(?:last|this|next)\s+(?:year|quarter|month|week)\b|\byesterday\b|\btoday\b`),
		mtype:      model.MentionTime,
		confidence: 0.75,
		name:       "time_relative",
	},
	{
		re:         regexp.MustCompile(`\b([A-Z][a-z]{2,}(?:\s+[A-Z][a-z]{2,})+)\b`),
		mtype:      model.MentionOrganization,
		confidence: 0.55,
		name:       "capitalized_sequence",
	},
}

var amountNumber = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// RuleMentionExtractor creates a pattern-based mention extractor.
// gazetteer optionally maps known surface forms (case-insensitive) to their
// type; gazetteer hits are emitted with high confidence. Mentions below the
// configured confidence floor are dropped, and overlapping spans are resolved
// preferring the longer span, then the higher confidence.
func RuleMentionExtractor(config *model.Config, gazetteer map[string]model.MentionType) MentionExtractFunc {
	gazetteerPatterns := compileGazetteer(gazetteer)

	return func(doc *model.Document) ([]*model.Mention, error) {
		text := doc.Content
		if strings.TrimSpace(text) == "" {
			return []*model.Mention{}, nil
		}

		var candidates []*model.Mention

		for _, pattern := range gazetteerPatterns {
			candidates = append(candidates, matchPattern(doc, text, pattern)...)
		}
		for _, pattern := range rulePatterns {
			candidates = append(candidates, matchPattern(doc, text, pattern)...)
		}

		kept := candidates[:0]
		for _, mention := range candidates {
			if mention.Confidence >= config.MentionConfidenceFloor {
				kept = append(kept, mention)
			}
		}

		return resolveOverlaps(kept), nil
	}
}

// compileGazetteer turns surface forms into word-bounded patterns
func compileGazetteer(gazetteer map[string]model.MentionType) []mentionPattern {
	terms := make([]string, 0, len(gazetteer))
	for term := range gazetteer {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	patterns := make([]mentionPattern, 0, len(terms))
	for _, term := range terms {
		patterns = append(patterns, mentionPattern{
			re:         regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`),
			mtype:      gazetteer[term],
			confidence: 0.95,
			name:       "gazetteer",
		})
	}
	return patterns
}

func matchPattern(doc *model.Document, text string, pattern mentionPattern) []*model.Mention {
	var mentions []*model.Mention

	for _, match := range pattern.re.FindAllStringSubmatchIndex(text, -1) {
		start, end := match[0], match[1]
		if len(match) >= 4 && match[2] >= 0 {
			start, end = match[2], match[3]
		}
		surface := text[start:end]

		mention := &model.Mention{
			DocumentID: doc.RID,
			Start:      start,
			End:        end,
			Text:       surface,
			Type:       pattern.mtype,
			Confidence: pattern.confidence,
			Metadata: model.Metadata{
				"method":  "pattern",
				"pattern": pattern.name,
			},
		}

		if pattern.mtype == model.MentionAmount {
			if value, unit, ok := parseAmount(surface); ok {
				mention.Metadata["value"] = value
				mention.Metadata["unit"] = unit
			}
		}

		mentions = append(mentions, mention)
	}

	return mentions
}

// resolveOverlaps greedily keeps non-overlapping mentions, preferring the
// longer span and, on equal length, the higher confidence.
func resolveOverlaps(mentions []*model.Mention) []*model.Mention {
	ordered := make([]*model.Mention, len(mentions))
	copy(ordered, mentions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Len() != ordered[j].Len() {
			return ordered[i].Len() > ordered[j].Len()
		}
		return ordered[i].Confidence > ordered[j].Confidence
	})

	var kept []*model.Mention
	for _, mention := range ordered {
		overlapping := false
		for _, existing := range kept {
			if mention.Overlaps(existing) {
				overlapping = true
				break
			}
		}
		if !overlapping {
			kept = append(kept, mention)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Start < kept[j].Start
	})
	return kept
}

// parseAmount normalizes an amount surface form to a numeric value and
// currency unit, e.g. "$1.2 billion" -> 1200000000, "USD".
func parseAmount(text string) (float64, string, bool) {
	numText := amountNumber.FindString(text)
	if numText == "" {
		return 0, "", false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(numText, ",", ""), 64)
	if err != nil {
		return 0, "", false
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "trillion"):
		value *= 1e12
	case strings.Contains(lower, "billion"):
		value *= 1e9
	case strings.Contains(lower, "million"):
		value *= 1e6
	}

	unit := "USD"
	switch {
	case strings.Contains(text, "%"):
		unit = "percent"
	case strings.Contains(text, "€") || strings.Contains(lower, "euro"):
		unit = "EUR"
	case strings.Contains(text, "£"):
		unit = "GBP"
	case strings.Contains(text, "¥") || strings.Contains(lower, "yuan") || strings.Contains(lower, "cny") || strings.Contains(lower, "rmb"):
		unit = "CNY"
	case strings.Contains(lower, "hkd"):
		unit = "HKD"
	}

	return value, unit, true
}
