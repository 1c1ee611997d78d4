package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlayerRow is the durable representation of a player's counters. Session
// play time is absent: it exists only in memory for the current session.
type PlayerRow struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Daily       int64     `json:"daily"`
	Weekly      int64     `json:"weekly"`
	Monthly     int64     `json:"monthly"`
	Yearly      int64     `json:"yearly"`
	Total       int64     `json:"total"`
	Exempt      bool      `json:"exempt"`
	LastUpdated time.Time `json:"last_updated"`
}

// Seconds returns the row's counter for a persisted category.
func (r PlayerRow) Seconds(category Category) int64 {
	switch category.Resolve() {
	case CategoryDaily:
		return r.Daily
	case CategoryWeekly:
		return r.Weekly
	case CategoryMonthly:
		return r.Monthly
	case CategoryYearly:
		return r.Yearly
	case CategoryTotal:
		return r.Total
	}
	return 0
}

// BlockPos is an integer block coordinate. Movement only counts as
// activity when the block coordinate changes; sub-block jitter does not.
type BlockPos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// QualifiesAsMovement reports whether moving between the two positions is
// a real movement for AFK purposes.
func QualifiesAsMovement(from, to BlockPos) bool {
	return from != to
}
