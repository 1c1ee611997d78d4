package domain

import (
	"time"

	"github.com/google/uuid"
)

// TopTenSize is the number of positions a leaderboard holds.
const TopTenSize = 10

// SnapshotFormatVersion is written into every leaderboard snapshot file.
const SnapshotFormatVersion = "1.0.0"

// Position is one ranked entry in a leaderboard.
type Position struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Seconds int64     `json:"seconds"`
}

// TopTen is an ordered leaderboard view of up to ten positions, descending
// by seconds. Ties keep their insertion order.
type TopTen struct {
	positions []Position
}

// NewTopTen builds a TopTen from an already-sorted position list,
// truncating to TopTenSize.
func NewTopTen(positions []Position) TopTen {
	if len(positions) > TopTenSize {
		positions = positions[:TopTenSize]
	}
	copied := make([]Position, len(positions))
	copy(copied, positions)
	return TopTen{positions: copied}
}

// Positions returns a copy of the ranked positions.
func (t TopTen) Positions() []Position {
	copied := make([]Position, len(t.positions))
	copy(copied, t.positions)
	return copied
}

// Position returns the entry at the 1-indexed position number.
func (t TopTen) Position(n int) (Position, bool) {
	if n < 1 || n > len(t.positions) {
		return Position{}, false
	}
	return t.positions[n-1], true
}

// Len returns the number of filled positions.
func (t TopTen) Len() int {
	return len(t.positions)
}

// Snapshot is an immutable point-in-time export of a leaderboard's
// standings. Once written to disk it is never mutated.
type Snapshot struct {
	FormatVersion string     `json:"format_version"`
	Category      Category   `json:"category"`
	CreatedAt     time.Time  `json:"created_at"`
	Positions     []Position `json:"positions"`
}
