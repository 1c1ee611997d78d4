package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(t *testing.T) *Record {
	t.Helper()
	return NewRecord(uuid.New(), "steve", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestAddThenRemoveRestores(t *testing.T) {
	r := newTestRecord(t)
	r.Set(domain.CategoryDaily, 100)

	r.Add(domain.CategoryDaily, 40)
	r.Add(domain.CategoryDaily, -40)
	assert.Equal(t, int64(100), r.Seconds(domain.CategoryDaily))
}

func TestRemoveClampsAtZero(t *testing.T) {
	r := newTestRecord(t)
	r.Set(domain.CategoryDaily, 10)

	r.Add(domain.CategoryDaily, -999)
	assert.Equal(t, int64(0), r.Seconds(domain.CategoryDaily))
}

func TestSecondsResolvesAll(t *testing.T) {
	r := newTestRecord(t)
	r.Set(domain.CategoryTotal, 42)
	assert.Equal(t, int64(42), r.Seconds(domain.CategoryAll))
}

func TestTickIncrementsEveryCategory(t *testing.T) {
	r := newTestRecord(t)
	r.Tick()
	r.Tick()

	for _, category := range domain.Categories() {
		assert.Equal(t, int64(2), r.Seconds(category), "category %s", category)
	}
}

func TestMergeAddsDurableCounters(t *testing.T) {
	r := newTestRecord(t)
	r.Set(domain.CategoryDaily, 5)
	r.Set(domain.CategorySession, 5)

	r.Merge(domain.PlayerRow{
		Name:   "Steve",
		Daily:  3600,
		Weekly: 7200,
		Total:  90000,
		Exempt: true,
	})

	assert.Equal(t, int64(3605), r.Seconds(domain.CategoryDaily))
	assert.Equal(t, int64(7200), r.Seconds(domain.CategoryWeekly))
	assert.Equal(t, int64(90000), r.Seconds(domain.CategoryTotal))
	// Session is memory-only and never merged from durable data.
	assert.Equal(t, int64(5), r.Seconds(domain.CategorySession))
	assert.True(t, r.Exempt)
	assert.Equal(t, "Steve", r.Name)
}

func TestRowDropsSession(t *testing.T) {
	r := newTestRecord(t)
	r.Set(domain.CategorySession, 999)
	r.Set(domain.CategoryDaily, 10)

	watermark := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	row := r.Row(watermark)

	require.Equal(t, r.ID, row.ID)
	assert.Equal(t, int64(10), row.Daily)
	assert.Equal(t, watermark, row.LastUpdated)
}

func TestCacheLifecycle(t *testing.T) {
	c := NewCache()
	r := newTestRecord(t)

	c.Put(r)
	got, ok := c.Get(r.ID)
	require.True(t, ok)
	assert.Same(t, r, got)
	assert.Equal(t, 1, c.Len())

	c.Remove(r.ID)
	_, ok = c.Get(r.ID)
	assert.False(t, ok)
	assert.Empty(t, c.All())
}
