// Package database turns an emitted filter into a parameterized SQL listing
// statement. Statements are returned as text plus arguments; running them is
// left to the caller.
package database

import (
	"errors"
	"fmt"
	"strings"

	"tablefilter/models"
)

// ErrEmptySearch is returned when a search term has no usable words.
var ErrEmptySearch = errors.New("no valid search terms")

// SearchQueryParser validates and transforms user search queries to PostgreSQL tsquery format.
// Enforces minimum/maximum length and sanitizes special characters.
type SearchQueryParser struct {
	minLength int
	maxLength int
}

// NewSearchQueryParser creates a SearchQueryParser with default limits.
// Default: minimum 3 characters, maximum 1000 characters.
func NewSearchQueryParser() *SearchQueryParser {
	return &SearchQueryParser{
		minLength: 3,
		maxLength: 1000,
	}
}

// Parse converts a search term to PostgreSQL tsquery format.
// Words shorter than two characters are dropped, the rest are lowercased and
// joined with " & " for AND or " | " for OR. An unknown operator is treated
// as AND.
//
// Examples:
//
//	"Hello World", AND → "hello & world"
//	"timeout refused", OR → "timeout | refused"
//	"a test b", AND → "test"
func (p *SearchQueryParser) Parse(query string, op models.Operator) (string, error) {
	query = strings.TrimSpace(query)

	if len(query) < p.minLength {
		return "", fmt.Errorf("search query must be at least %d characters", p.minLength)
	}

	if len(query) > p.maxLength {
		return "", fmt.Errorf("search query too long (max %d characters)", p.maxLength)
	}

	words := p.filterValidWords(strings.Fields(p.sanitize(query)))
	if len(words) == 0 {
		return "", ErrEmptySearch
	}

	return strings.Join(words, tsOperator(op)), nil
}

func (p *SearchQueryParser) sanitize(query string) string {
	return strings.NewReplacer(`"`, "", "'", "", "(", "", ")", "", "&", "", "|", "", "!", "").Replace(query)
}

func (p *SearchQueryParser) filterValidWords(words []string) []string {
	valid := []string{}
	for _, word := range words {
		if len(word) >= 2 {
			valid = append(valid, strings.ToLower(word))
		}
	}
	return valid
}

func tsOperator(op models.Operator) string {
	if op == models.OperatorOr {
		return " | "
	}
	return " & "
}

// Target names the table and columns a listing statement reads.
type Target struct {
	Table      string
	TextColumn string
	TimeColumn string
	Columns    []string
}

// DefaultTarget lists log entries by message and timestamp.
func DefaultTarget() Target {
	return Target{
		Table:      "logs",
		TextColumn: "message",
		TimeColumn: "timestamp",
		Columns:    []string{"id", "level", "message", "source", "timestamp"},
	}
}

// Page selects a window of the listing.
type Page struct {
	Limit  int
	Offset int
}

// Statement is a parameterized SQL statement.
type Statement struct {
	SQL  string
	Args []interface{}
}

// BuildListQuery builds the listing statement for f.
// Empty search text adds no text condition; range bounds that are not dates
// are left out.
//
// SAFETY: every filter value is bound through a $N placeholder. Table and
// column names come from Target, which callers must not take from user input.
func BuildListQuery(target Target, f models.ResolvedFilter, page Page) (Statement, error) {
	qb := NewQueryBuilder()

	if text := strings.TrimSpace(f.Search()); text != "" {
		tsQuery, err := NewSearchQueryParser().Parse(text, f.Operator)
		if err != nil {
			return Statement{}, fmt.Errorf("invalid search query: %w", err)
		}
		qb.AddFullTextSearch(target.TextColumn, tsQuery)
	}

	start, end := f.TimeRange()
	qb.AddTimeRange(target.TimeColumn, start, end)

	limit := validateLimit(page.Limit, defaultLimit, maxLimit)
	offset := validateOffset(page.Offset)

	columns := "*"
	if len(target.Columns) > 0 {
		columns = strings.Join(target.Columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s, COUNT(*) OVER() AS total_count FROM %s", columns, target.Table)
	if where := qb.WhereClause(); where != "" {
		sb.WriteString(" ")
		sb.WriteString(where)
	}
	fmt.Fprintf(&sb, " ORDER BY %s DESC LIMIT $%d OFFSET $%d", target.TimeColumn, qb.NextArgNum(), qb.NextArgNum()+1)

	return Statement{
		SQL:  sb.String(),
		Args: append(qb.Args(), limit, offset),
	}, nil
}
