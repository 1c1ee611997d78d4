package scheduler

import (
	"time"

	"github.com/playtime-tracker/internal/domain"
)

// NextBoundary computes the theoretical next reset boundary following
// lastReset for one category, in the configured zone. Daily is the next
// day at the reset hour; weekly is one week after the week-start day of
// lastReset's week; monthly is the first day of the following month;
// yearly is January 1 of the following year.
func NextBoundary(category domain.Category, lastReset time.Time, loc *time.Location, weekStart time.Weekday, resetHour int) time.Time {
	t := lastReset.In(loc)

	switch category {
	case domain.CategoryDaily:
		return time.Date(t.Year(), t.Month(), t.Day()+1, resetHour, 0, 0, 0, loc)
	case domain.CategoryWeekly:
		back := (int(t.Weekday()) - int(weekStart) + 7) % 7
		start := time.Date(t.Year(), t.Month(), t.Day()-back, resetHour, 0, 0, 0, loc)
		return start.AddDate(0, 0, 7)
	case domain.CategoryMonthly:
		return time.Date(t.Year(), t.Month()+1, 1, resetHour, 0, 0, 0, loc)
	case domain.CategoryYearly:
		return time.Date(t.Year()+1, time.January, 1, resetHour, 0, 0, 0, loc)
	}
	return time.Time{}
}

// DueBoundary reports whether a category is due for reset and, if so,
// the boundary the reset belongs to. When the service was down across
// several boundaries the result advances to the most recent boundary at
// or before now, so one catch-up reset covers the gap and the persisted
// last-reset time lands on the boundary due this pass.
func DueBoundary(category domain.Category, lastReset, now time.Time, loc *time.Location, weekStart time.Weekday, resetHour int) (time.Time, bool) {
	boundary := NextBoundary(category, lastReset, loc, weekStart, resetHour)
	if now.Before(boundary) {
		return time.Time{}, false
	}

	for {
		next := NextBoundary(category, boundary, loc, weekStart, resetHour)
		if now.Before(next) {
			return boundary, true
		}
		boundary = next
	}
}
