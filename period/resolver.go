// Package period turns named relative periods into concrete time ranges.
package period

import (
	"time"

	"tablefilter/models"
)

var hourWindows = map[models.PeriodID]int{
	models.PeriodLast1Hour:   1,
	models.PeriodLast6Hours:  6,
	models.PeriodLast12Hours: 12,
	models.PeriodLast24Hours: 24,
	models.PeriodLast48Hours: 48,
}

// Resolve returns the range covered by id as observed at now.
//
// Bounds are truncated to the minute and computed in now's location:
//
//	LAST_N_HOURS  [now-N h, now)
//	TODAY         [midnight, next midnight)
//	YESTERDAY     [previous midnight, midnight)
//	LAST_7_DAYS   [midnight 7 days ago, now)
//	LAST_MONTH    [first of previous month, first of this month)
//
// Unknown ids resolve to the empty range [now, now).
func Resolve(id models.PeriodID, now time.Time) models.TimeRange {
	current := truncateToMinute(now)

	if hours, ok := hourWindows[id]; ok {
		start := time.Date(now.Year(), now.Month(), now.Day(), now.Hour()-hours, now.Minute(), 0, 0, now.Location())
		return models.TimeRange{Start: start, End: current}
	}

	switch id {
	case models.PeriodToday:
		return models.TimeRange{Start: midnight(now, 0), End: midnight(now, 1)}
	case models.PeriodYesterday:
		return models.TimeRange{Start: midnight(now, -1), End: midnight(now, 0)}
	case models.PeriodLast7Days:
		return models.TimeRange{Start: midnight(now, -7), End: current}
	case models.PeriodLastMonth:
		return models.TimeRange{
			Start: time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location()),
			End:   time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
		}
	default:
		return models.TimeRange{Start: current, End: current}
	}
}

// ResolveNow resolves id against the current time.
func ResolveNow(id models.PeriodID) models.TimeRange {
	return Resolve(id, time.Now())
}

// Known reports whether id has a resolution rule of its own.
func Known(id models.PeriodID) bool {
	if _, ok := hourWindows[id]; ok {
		return true
	}
	switch id {
	case models.PeriodToday, models.PeriodYesterday, models.PeriodLast7Days, models.PeriodLastMonth:
		return true
	}
	return false
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return midnight(t, 0)
}

// EndOfDay returns 23:59:59.999 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func midnight(t time.Time, dayOffset int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+dayOffset, 0, 0, 0, 0, t.Location())
}

func truncateToMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}
