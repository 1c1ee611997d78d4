package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/afk"
	"github.com/playtime-tracker/internal/backup"
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
	"github.com/playtime-tracker/internal/leaderboard"
	"github.com/playtime-tracker/internal/presence"
	"github.com/playtime-tracker/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	rows        map[uuid.UUID]domain.PlayerRow
	resetCalls  [][]domain.Category
	saveAllErr  error
	exportedAll bool
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[uuid.UUID]domain.PlayerRow)}
}

func (m *memStore) LoadPlayer(_ context.Context, id uuid.UUID) (domain.PlayerRow, bool, error) {
	row, ok := m.rows[id]
	return row, ok, nil
}

func (m *memStore) SavePlayer(_ context.Context, row domain.PlayerRow) error {
	m.rows[row.ID] = row
	return nil
}

func (m *memStore) SavePlayerAsync(row domain.PlayerRow) {
	m.rows[row.ID] = row
}

func (m *memStore) SaveAll(_ context.Context, rows []domain.PlayerRow) (map[uuid.UUID]bool, error) {
	if m.saveAllErr != nil {
		return nil, m.saveAllErr
	}
	results := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		m.rows[row.ID] = row
		results[row.ID] = true
	}
	return results, nil
}

func (m *memStore) ResetCategories(_ context.Context, categories []domain.Category, _ time.Time) error {
	m.resetCalls = append(m.resetCalls, categories)
	return nil
}

func (m *memStore) ExportAll(context.Context) ([]domain.PlayerRow, error) {
	m.exportedAll = true
	return nil, nil
}

func (m *memStore) TopTen(context.Context, domain.Category) ([]domain.Position, error) {
	return nil, nil
}

type harness struct {
	scheduler *Scheduler
	tracker   *tracker.Service
	store     *memStore
	settings  *config.Manager
	clock     *quartz.Mock
}

// newHarness builds a scheduler over an in-memory store with the given
// last reset times, with the mock clock set to now.
func newHarness(t *testing.T, lastReset config.LastResetTimes, now time.Time) *harness {
	t.Helper()

	content := fmt.Sprintf(
		"last_reset:\n  daily: %d\n  weekly: %d\n  monthly: %d\n  yearly: %d\n",
		lastReset.Daily, lastReset.Weekly, lastReset.Monthly, lastReset.Yearly,
	)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	settings := config.NewManager(path, testLogger())
	require.NoError(t, settings.Load())

	clock := quartz.NewMock(t)
	clock.Set(now)

	store := newMemStore()
	registry := presence.NewRegistry(nil, testLogger())
	afkManager := afk.NewManager(settings, registry, nil, testLogger())
	trackerService := tracker.NewService(store, registry, afkManager, settings, clock, testLogger())

	snapshots := leaderboard.NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots"), clock, testLogger())
	aggregator := leaderboard.NewAggregator(trackerService, store, snapshots, testLogger())
	backups := backup.NewService(store, settings, clock, testLogger())

	return &harness{
		scheduler: New(trackerService, aggregator, backups, settings, clock, nil, testLogger()),
		tracker:   trackerService,
		store:     store,
		settings:  settings,
		clock:     clock,
	}
}

func currentLastReset(t *testing.T, settings *config.Manager) config.LastResetTimes {
	t.Helper()
	cfg, err := settings.Current()
	require.NoError(t, err)
	return cfg.LastReset
}

func TestRunResetPassBootstrap(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, config.LastResetTimes{}, now)

	h.scheduler.RunResetPass(context.Background())

	// No reset on first run; the current time becomes the baseline.
	assert.Empty(t, h.store.resetCalls)
	times := currentLastReset(t, h.settings)
	assert.Equal(t, now.UnixMilli(), times.Daily)
	assert.Equal(t, now.UnixMilli(), times.Weekly)
	assert.Equal(t, now.UnixMilli(), times.Monthly)
	assert.Equal(t, now.UnixMilli(), times.Yearly)
}

func TestRunResetPassNothingDue(t *testing.T) {
	last := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	stamp := last.UnixMilli()
	h := newHarness(t, config.LastResetTimes{Daily: stamp, Weekly: stamp, Monthly: stamp, Yearly: stamp}, now)

	h.scheduler.RunResetPass(context.Background())

	assert.Empty(t, h.store.resetCalls)
	times := currentLastReset(t, h.settings)
	assert.Equal(t, stamp, times.Daily)
}

func TestRunResetPassAdvancesToDueBoundary(t *testing.T) {
	// Daily reset last ran at midnight two days ago; the persisted time
	// must land on the most recent missed boundary, not the oldest.
	last := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	stamp := last.UnixMilli()
	fresh := now.Add(-time.Hour).UnixMilli()
	h := newHarness(t, config.LastResetTimes{Daily: stamp, Weekly: fresh, Monthly: fresh, Yearly: fresh}, now)

	id := uuid.New()
	_, err := h.tracker.Load(context.Background(), id, "alex")
	require.NoError(t, err)
	require.NoError(t, h.tracker.SetPlaytime(id, domain.CategoryDaily, 500))

	h.scheduler.RunResetPass(context.Background())

	require.Len(t, h.store.resetCalls, 1)
	assert.Equal(t, []domain.Category{domain.CategoryDaily}, h.store.resetCalls[0])

	seconds, err := h.tracker.Playtime(id, domain.CategoryDaily)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seconds)

	times := currentLastReset(t, h.settings)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC).UnixMilli(), times.Daily)
	assert.Equal(t, fresh, times.Weekly)
}

func TestRunResetPassKeepsTimesOnFailure(t *testing.T) {
	last := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	stamp := last.UnixMilli()
	fresh := now.Add(-time.Hour).UnixMilli()
	h := newHarness(t, config.LastResetTimes{Daily: stamp, Weekly: fresh, Monthly: fresh, Yearly: fresh}, now)

	h.store.saveAllErr = errors.New("connection refused")
	h.scheduler.RunResetPass(context.Background())

	// The aborted reset leaves the persisted times untouched so the next
	// pass retries.
	assert.Empty(t, h.store.resetCalls)
	times := currentLastReset(t, h.settings)
	assert.Equal(t, stamp, times.Daily)
}
