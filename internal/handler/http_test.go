package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
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
	"github.com/playtime-tracker/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingStore is an in-memory tracker.Store that captures the
// watermarks it is handed.
type recordingStore struct {
	rows            map[uuid.UUID]domain.PlayerRow
	resetWatermarks []time.Time
}

func newRecordingStore() *recordingStore {
	return &recordingStore{rows: make(map[uuid.UUID]domain.PlayerRow)}
}

func (s *recordingStore) LoadPlayer(_ context.Context, id uuid.UUID) (domain.PlayerRow, bool, error) {
	row, ok := s.rows[id]
	return row, ok, nil
}

func (s *recordingStore) SavePlayer(_ context.Context, row domain.PlayerRow) error {
	s.rows[row.ID] = row
	return nil
}

func (s *recordingStore) SavePlayerAsync(row domain.PlayerRow) {
	s.rows[row.ID] = row
}

func (s *recordingStore) SaveAll(_ context.Context, rows []domain.PlayerRow) (map[uuid.UUID]bool, error) {
	results := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		s.rows[row.ID] = row
		results[row.ID] = true
	}
	return results, nil
}

func (s *recordingStore) ResetCategories(_ context.Context, _ []domain.Category, watermark time.Time) error {
	s.resetWatermarks = append(s.resetWatermarks, watermark)
	return nil
}

func (s *recordingStore) TopTen(context.Context, domain.Category) ([]domain.Position, error) {
	return nil, nil
}

func (s *recordingStore) ExportAll(context.Context) ([]domain.PlayerRow, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) (*Handler, *recordingStore, *quartz.Mock) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))
	settings := config.NewManager(path, testLogger())
	require.NoError(t, settings.Load())

	clock := quartz.NewMock(t)
	store := newRecordingStore()
	registry := presence.NewRegistry(nil, testLogger())
	afkManager := afk.NewManager(settings, registry, nil, testLogger())
	trackerService := tracker.NewService(store, registry, afkManager, settings, clock, testLogger())

	snapshots := leaderboard.NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots"), clock, testLogger())
	aggregator := leaderboard.NewAggregator(trackerService, store, snapshots, testLogger())
	backups := backup.NewService(store, settings, clock, testLogger())
	hub := websocket.NewHub(testLogger())

	h := NewHandler(trackerService, aggregator, snapshots, backups, settings, registry, hub, clock, testLogger())
	return h, store, clock
}

func TestResetAllStampsWatermarkFromClock(t *testing.T) {
	h, store, clock := newTestHandler(t)
	router := h.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reset", strings.NewReader(`{"category":"daily"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.resetWatermarks, 1)
	assert.Equal(t, clock.Now(), store.resetWatermarks[0])
}

func TestResetAllRejectsUnknownCategory(t *testing.T) {
	h, store, _ := newTestHandler(t)
	router := h.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reset", strings.NewReader(`{"category":"fortnightly"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.resetWatermarks)
}
