package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/fingraph/fingraph/model"
)

var (
	isoDatePattern     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	usDatePattern      = regexp.MustCompile(`\b(` + monthNames + `)\s+(\d{1,2}),?\s+(\d{4})\b`)
	euDatePattern      = regexp.MustCompile(`\b(\d{1,2})\s+(` + monthNames + `)\s+(\d{4})\b`)
	monthYearPattern   = regexp.MustCompile(`\b(` + monthNames + `)\s+(\d{4})\b`)
	quarterPattern     = regexp.MustCompile(`\bQ([1-4])\s+(\d{4})\b|\b(\d{4})\s+Q([1-4])\b`)
	yearPattern        = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	relativePattern    = regexp.MustCompile(`\b(last|this|next)\s+(year|quarter|month|week)\b`)
	relativeDayPattern = regexp.MustCompile(`\b(yesterday|today|tomorrow)\b|\b\w+\s+(?:days?|weeks?|months?)\s+ago\b`)
)

// DefaultTemporalAnalyzer creates a temporal analyzer that parses absolute
// date expressions directly and resolves relative expressions against the
// document's reference date. Relative expressions with no reference date
// degrade to granularity unknown instead of failing. Normalization is
// referentially transparent: the same text and basis always produce the same
// normalized value.
func DefaultTemporalAnalyzer() TemporalAnalyzeFunc {
	parser := when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)

	return func(doc *model.Document) ([]*model.TemporalExpression, error) {
		text := doc.Content
		if strings.TrimSpace(text) == "" {
			return []*model.TemporalExpression{}, nil
		}

		var expressions []*model.TemporalExpression
		expressions = append(expressions, parseAbsolute(text)...)
		expressions = append(expressions, parseRelative(parser, text, doc.ReferenceDate)...)

		expressions = dropCoveredExpressions(expressions)
		sort.SliceStable(expressions, func(i, j int) bool {
			return expressions[i].Start < expressions[j].Start
		})
		return expressions, nil
	}
}

// parseAbsolute extracts explicitly dated expressions with their granularity
func parseAbsolute(text string) []*model.TemporalExpression {
	var expressions []*model.TemporalExpression

	for _, match := range isoDatePattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[match[0]:match[1]]
		point, err := time.Parse("2006-01-02", raw)
		if err != nil {
			continue
		}
		expressions = append(expressions, pointExpression(raw, match[0], match[1], point, model.GranularityDay))
	}

	for _, match := range usDatePattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[match[0]:match[1]]
		normalized := strings.ReplaceAll(raw, ",", "")
		point, err := time.Parse("January 2 2006", normalized)
		if err != nil {
			continue
		}
		expressions = append(expressions, pointExpression(raw, match[0], match[1], point, model.GranularityDay))
	}

	for _, match := range euDatePattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[match[0]:match[1]]
		point, err := time.Parse("2 January 2006", raw)
		if err != nil {
			continue
		}
		expressions = append(expressions, pointExpression(raw, match[0], match[1], point, model.GranularityDay))
	}

	for _, match := range monthYearPattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[match[0]:match[1]]
		point, err := time.Parse("January 2006", raw)
		if err != nil {
			continue
		}
		expressions = append(expressions, pointExpression(raw, match[0], match[1], point, model.GranularityMonth))
	}

	for _, match := range quarterPattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[match[0]:match[1]]
		point, ok := parseQuarter(text, match)
		if !ok {
			continue
		}
		expressions = append(expressions, pointExpression(raw, match[0], match[1], point, model.GranularityQuarter))
	}

	for _, match := range yearPattern.FindAllStringIndex(text, -1) {
		raw := text[match[0]:match[1]]
		year, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		point := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		expressions = append(expressions, pointExpression(raw, match[0], match[1], point, model.GranularityYear))
	}

	return expressions
}

func parseQuarter(text string, match []int) (time.Time, bool) {
	var quarterText, yearText string
	if match[2] >= 0 {
		quarterText = text[match[2]:match[3]]
		yearText = text[match[4]:match[5]]
	} else {
		yearText = text[match[6]:match[7]]
		quarterText = text[match[8]:match[9]]
	}
	quarter, err := strconv.Atoi(quarterText)
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC), true
}

// parseRelative resolves relative expressions against the reference date.
// Explicit last/this/next phrases resolve with matching granularity; anything
// else falls through to the natural language date parser at day granularity.
func parseRelative(parser *when.Parser, text string, basis *time.Time) []*model.TemporalExpression {
	var expressions []*model.TemporalExpression

	for _, match := range relativePattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[match[0]:match[1]]
		expr := &model.TemporalExpression{
			Text:        raw,
			Start:       match[0],
			End:         match[1],
			Granularity: model.GranularityUnknown,
		}
		if basis != nil {
			direction := text[match[2]:match[3]]
			unit := text[match[4]:match[5]]
			point, granularity := resolveRelative(*basis, direction, unit)
			expr.Point = point
			expr.Granularity = granularity
			expr.Basis = basis
		}
		expressions = append(expressions, expr)
	}

	for _, match := range relativeDayPattern.FindAllStringIndex(text, -1) {
		raw := text[match[0]:match[1]]
		expr := &model.TemporalExpression{
			Text:        raw,
			Start:       match[0],
			End:         match[1],
			Granularity: model.GranularityUnknown,
		}
		if basis != nil {
			if result, err := parser.Parse(raw, *basis); err == nil && result != nil {
				expr.Point = result.Time.Truncate(24 * time.Hour)
				expr.Granularity = model.GranularityDay
				expr.Basis = basis
			}
		}
		expressions = append(expressions, expr)
	}

	return expressions
}

func resolveRelative(basis time.Time, direction string, unit string) (time.Time, model.Granularity) {
	offset := 0
	switch direction {
	case "last":
		offset = -1
	case "next":
		offset = 1
	}

	switch unit {
	case "year":
		return time.Date(basis.Year()+offset, time.January, 1, 0, 0, 0, 0, time.UTC), model.GranularityYear
	case "quarter":
		quarter := (int(basis.Month())-1)/3 + offset
		year := basis.Year()
		for quarter < 0 {
			quarter += 4
			year--
		}
		for quarter > 3 {
			quarter -= 4
			year++
		}
		return time.Date(year, time.Month(quarter*3+1), 1, 0, 0, 0, 0, time.UTC), model.GranularityQuarter
	case "month":
		month := time.Date(basis.Year(), basis.Month(), 1, 0, 0, 0, 0, time.UTC)
		return month.AddDate(0, offset, 0), model.GranularityMonth
	default: // week
		return basis.AddDate(0, 0, offset*7), model.GranularityDay
	}
}

func pointExpression(raw string, start, end int, point time.Time, granularity model.Granularity) *model.TemporalExpression {
	return &model.TemporalExpression{
		Text:        raw,
		Start:       start,
		End:         end,
		Point:       point,
		Granularity: granularity,
	}
}

// dropCoveredExpressions removes expressions fully covered by a wider one,
// so "August 15 2023" does not additionally yield "2023" at year granularity.
func dropCoveredExpressions(expressions []*model.TemporalExpression) []*model.TemporalExpression {
	kept := make([]*model.TemporalExpression, 0, len(expressions))
	for _, expr := range expressions {
		covered := false
		for _, other := range expressions {
			if expr == other {
				continue
			}
			if other.Start <= expr.Start && expr.End <= other.End &&
				(other.End-other.Start) > (expr.End-expr.Start) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, expr)
		}
	}
	return kept
}

// NormalizeTime normalizes a single time expression text against a basis.
// It exists for callers that need to qualify an individual relation or event
// outside a full document pass.
func NormalizeTime(text string, basis *time.Time) (*model.TemporalExpression, error) {
	analyzer := DefaultTemporalAnalyzer()
	doc := &model.Document{Content: text, ReferenceDate: basis}
	expressions, err := analyzer(doc)
	if err != nil {
		return nil, err
	}
	if len(expressions) == 0 {
		return nil, fmt.Errorf("no temporal expression found in %q", text)
	}
	return expressions[0], nil
}
