package models

import "time"

// PeriodID names a relative time range understood by the period resolver.
type PeriodID string

const (
	PeriodToday       PeriodID = "TODAY"
	PeriodYesterday   PeriodID = "YESTERDAY"
	PeriodLast7Days   PeriodID = "LAST_7_DAYS"
	PeriodLastMonth   PeriodID = "LAST_MONTH"
	PeriodLast1Hour   PeriodID = "LAST_1_HOUR"
	PeriodLast6Hours  PeriodID = "LAST_6_HOURS"
	PeriodLast12Hours PeriodID = "LAST_12_HOURS"
	PeriodLast24Hours PeriodID = "LAST_24_HOURS"
	PeriodLast48Hours PeriodID = "LAST_48_HOURS"
)

// Period is one entry of a period catalog shown in the period selector.
// Entries with CustomRange set carry no PeriodID: their start and end come
// from the user.
type Period struct {
	ID          int      `json:"id" binding:"required"`
	Label       string   `json:"label" binding:"required"`
	Period      PeriodID `json:"period,omitempty"`
	CustomRange bool     `json:"custom_range,omitempty"`
}

// TimeRange is a concrete [Start, End) interval.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DefaultPeriodCatalog returns the built-in catalog: the nine named periods
// followed by the custom range entry. A fresh slice is returned on every call.
// Index 9 is the custom range.
func DefaultPeriodCatalog() []Period {
	return []Period{
		{ID: 1, Label: "TODAY", Period: PeriodToday},
		{ID: 2, Label: "YESTERDAY", Period: PeriodYesterday},
		{ID: 3, Label: "LAST_7_DAYS", Period: PeriodLast7Days},
		{ID: 4, Label: "LAST_MONTH", Period: PeriodLastMonth},
		{ID: 5, Label: "LAST_1_HOUR", Period: PeriodLast1Hour},
		{ID: 6, Label: "LAST_6_HOURS", Period: PeriodLast6Hours},
		{ID: 7, Label: "LAST_12_HOURS", Period: PeriodLast12Hours},
		{ID: 8, Label: "LAST_24_HOURS", Period: PeriodLast24Hours},
		{ID: 9, Label: "LAST_48_HOURS", Period: PeriodLast48Hours},
		{ID: 10, Label: "CUSTOM_RANGE", CustomRange: true},
	}
}

// FindPeriod returns the catalog entry with the given id.
func FindPeriod(catalog []Period, id int) (Period, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Period{}, false
}
