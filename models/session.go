package models

import (
	"time"

	"github.com/google/uuid"
)

// CreateSessionRequest is the payload for creating a filter session.
// An empty PeriodCatalog selects the built-in catalog.
type CreateSessionRequest struct {
	PeriodCatalog      []Period `json:"period_catalog" binding:"omitempty,dive"`
	DefaultPeriodIndex *int     `json:"default_period_index"`
	Loading            bool     `json:"loading"`
	ShowFilterButton   *bool    `json:"show_filter_button"`
	ShowOperator       bool     `json:"show_operator"`
	ShowPeriodFilter   bool     `json:"show_period_filter"`
}

// SearchRequest edits the free-text field. A null text clears it.
type SearchRequest struct {
	Text *string `json:"text"`
}

// OperatorRequest edits the operator field.
type OperatorRequest struct {
	Operator Operator `json:"operator" binding:"required,oneof=AND OR"`
}

// PeriodRequest selects a catalog entry by id, or clears the selection when
// PeriodID is null.
type PeriodRequest struct {
	PeriodID *int `json:"period_id"`
}

// RangeRequest edits the explicit start and end fields. Values are kept as
// submitted; a null value clears the field.
type RangeRequest struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

// LoadingRequest toggles the loading flag.
type LoadingRequest struct {
	Loading bool `json:"loading"`
}

// Bounds guides manual date entry while a custom range is selected.
type Bounds struct {
	MinEnd   *time.Time `json:"min_end"`
	MaxStart *time.Time `json:"max_start"`
}

// SessionResponse describes a filter session.
type SessionResponse struct {
	ID               uuid.UUID        `json:"id"`
	Status           string           `json:"status"`
	ShowFilterButton bool             `json:"show_filter_button"`
	ShowOperator     bool             `json:"show_operator"`
	ShowPeriodFilter bool             `json:"show_period_filter"`
	Operators        []OperatorOption `json:"operators"`
	PeriodCatalog    []Period         `json:"period_catalog"`
	Fields           map[string]any   `json:"fields"`
	Bounds           Bounds           `json:"bounds"`
	LastFilter       *ResolvedFilter  `json:"last_filter"`
	CreatedAt        time.Time        `json:"created_at"`
}

// QueryResponse is a parameterized SQL statement built from the last filter.
type QueryResponse struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}
