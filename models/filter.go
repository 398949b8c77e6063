package models

import "time"

// Operator combines the words of a search term.
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

// OperatorOption is a selectable operator with its label key.
type OperatorOption struct {
	ID    Operator `json:"id"`
	Label string   `json:"label"`
}

// Operators returns the operator choices in display order.
func Operators() []OperatorOption {
	return []OperatorOption{
		{ID: OperatorAnd, Label: "OPERATOR_AND"},
		{ID: OperatorOr, Label: "OPERATOR_OR"},
	}
}

// Valid reports whether o is one of the known operators.
func (o Operator) Valid() bool {
	return o == OperatorAnd || o == OperatorOr
}

// ResolvedFilter is the snapshot emitted whenever the filter changes.
//
// RangeStart and RangeEnd hold whatever the field store holds. A date-valued
// RangeEnd has already been moved to 23:59:59.999 of its day; any other value
// is passed through untouched.
type ResolvedFilter struct {
	SearchText     *string  `json:"search_text"`
	Operator       Operator `json:"operator,omitempty"`
	RangeStart     any      `json:"range_start"`
	RangeEnd       any      `json:"range_end"`
	SelectedPeriod *Period  `json:"selected_period"`
}

// Search returns the search text, or "" when none is set.
func (f ResolvedFilter) Search() string {
	if f.SearchText == nil {
		return ""
	}
	return *f.SearchText
}

// TimeRange returns the range bounds that can be read as dates.
// Bounds that are unset or not dates come back nil.
func (f ResolvedFilter) TimeRange() (start, end *time.Time) {
	if t, ok := AsTime(f.RangeStart); ok {
		start = &t
	}
	if t, ok := AsTime(f.RangeEnd); ok {
		end = &t
	}
	return start, end
}

// DateLayouts are the string forms accepted as dates, tried in order.
// The first is what a browser datetime-local input submits.
var DateLayouts = []string{
	"2006-01-02T15:04",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// AsTime interprets a field value as a point in time.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range DateLayouts {
			if parsed, err := time.ParseInLocation(layout, t, time.Local); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
