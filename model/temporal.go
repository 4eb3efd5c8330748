package model

import (
	"fmt"
	"time"
)

// Granularity is the precision of a normalized time value
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
	GranularityUnknown Granularity = "unknown"
)

// TemporalExpression is a normalized time expression extracted from text.
// Point holds the (start of the) normalized time; for intervals EndPoint holds
// the exclusive end. Basis is the reference date relative expressions were
// resolved against; nil means no basis was available.
type TemporalExpression struct {
	Text        string      `json:"text"`
	Start       int         `json:"start"`
	End         int         `json:"end"`
	Point       time.Time   `json:"point"`
	EndPoint    *time.Time  `json:"end_point,omitempty"`
	Granularity Granularity `json:"granularity"`
	Basis       *time.Time  `json:"basis,omitempty"`
}

// IsInterval reports whether the expression denotes a time interval
func (t *TemporalExpression) IsInterval() bool {
	return t.EndPoint != nil
}

// Resolved reports whether the expression was normalized to a concrete time
func (t *TemporalExpression) Resolved() bool {
	return t.Granularity != GranularityUnknown
}

// Normalized returns the canonical string form of the expression,
// e.g. "2023-08-15", "2023-08", "2023-Q3", "2023" or "unknown".
func (t *TemporalExpression) Normalized() string {
	switch t.Granularity {
	case GranularityDay:
		return t.Point.Format("2006-01-02")
	case GranularityMonth:
		return t.Point.Format("2006-01")
	case GranularityQuarter:
		quarter := (int(t.Point.Month())-1)/3 + 1
		return fmt.Sprintf("%d-Q%d", t.Point.Year(), quarter)
	case GranularityYear:
		return t.Point.Format("2006")
	default:
		return "unknown"
	}
}
