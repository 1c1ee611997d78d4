package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/domain"
)

// Record is the in-memory play time state of one online player. All six
// counters live here while the player is online; the durable row only
// carries the five persisted ones. Records are not safe for concurrent
// use, the tracker serializes access.
type Record struct {
	ID     uuid.UUID
	Name   string
	AFK    bool
	Exempt bool

	// LastMove and LastAction feed the automatic AFK rules. Both are
	// stamped at load so a freshly joined player is never instantly AFK.
	LastMove   time.Time
	LastAction time.Time

	seconds map[domain.Category]int64
}

// NewRecord creates a record with zeroed counters and activity stamped at
// now.
func NewRecord(id uuid.UUID, name string, now time.Time) *Record {
	r := &Record{
		ID:         id,
		Name:       name,
		LastMove:   now,
		LastAction: now,
		seconds:    make(map[domain.Category]int64, len(domain.Categories())),
	}
	for _, category := range domain.Categories() {
		r.seconds[category] = 0
	}
	return r
}

// Merge adds a durable row's counters into the record and adopts its
// exempt flag. Loading after a partial save therefore resumes from the
// durable baseline instead of overwriting it.
func (r *Record) Merge(row domain.PlayerRow) {
	for _, category := range domain.PersistedCategories() {
		r.seconds[category] += row.Seconds(category)
	}
	r.Exempt = row.Exempt
	if row.Name != "" {
		r.Name = row.Name
	}
}

// Seconds returns the counter for a category, with "all" reading as
// total.
func (r *Record) Seconds(category domain.Category) int64 {
	return r.seconds[category.Resolve()]
}

// Add adjusts one concrete category by delta, clamping at zero. Counters
// never go negative no matter how much is removed.
func (r *Record) Add(category domain.Category, delta int64) {
	category = category.Resolve()
	next := r.seconds[category] + delta
	if next < 0 {
		next = 0
	}
	r.seconds[category] = next
}

// Set assigns one concrete category.
func (r *Record) Set(category domain.Category, seconds int64) {
	if seconds < 0 {
		seconds = 0
	}
	r.seconds[category.Resolve()] = seconds
}

// Reset zeroes one concrete category.
func (r *Record) Reset(category domain.Category) {
	r.seconds[category.Resolve()] = 0
}

// Tick adds one counted second to every category at once.
func (r *Record) Tick() {
	for _, category := range domain.Categories() {
		r.seconds[category]++
	}
}

// Row converts the record into a durable row stamped with the given
// watermark. Session seconds are deliberately dropped.
func (r *Record) Row(watermark time.Time) domain.PlayerRow {
	return domain.PlayerRow{
		ID:          r.ID,
		Name:        r.Name,
		Daily:       r.seconds[domain.CategoryDaily],
		Weekly:      r.seconds[domain.CategoryWeekly],
		Monthly:     r.seconds[domain.CategoryMonthly],
		Yearly:      r.seconds[domain.CategoryYearly],
		Total:       r.seconds[domain.CategoryTotal],
		Exempt:      r.Exempt,
		LastUpdated: watermark,
	}
}
