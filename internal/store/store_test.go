package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/domain"
	"github.com/playtime-tracker/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	mu        sync.Mutex
	upserts   []uuid.UUID
	upsertErr error
	resets    [][]domain.Category
}

func (f *fakeBackend) LoadPlayer(_ context.Context, id uuid.UUID) (domain.PlayerRow, bool, error) {
	return domain.PlayerRow{}, false, nil
}

func (f *fakeBackend) UpsertPlayer(_ context.Context, row domain.PlayerRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, row.ID)
	return nil
}

func (f *fakeBackend) UpsertPlayers(_ context.Context, rows []domain.PlayerRow) (map[uuid.UUID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		f.upserts = append(f.upserts, row.ID)
		results[row.ID] = true
	}
	return results, nil
}

func (f *fakeBackend) ResetCategories(_ context.Context, categories []domain.Category, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, categories)
	return nil
}

func (f *fakeBackend) TopTen(context.Context, domain.Category) ([]domain.Position, error) {
	return nil, nil
}

func (f *fakeBackend) ExportAll(context.Context) ([]domain.PlayerRow, error) {
	return nil, nil
}

func newTestStore(t *testing.T) (*Store, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	writes := queue.New(16, testLogger())
	writes.Start(context.Background())
	t.Cleanup(writes.Stop)
	return New(backend, writes, testLogger()), backend
}

func TestWritesLandInSubmissionOrder(t *testing.T) {
	s, backend := newTestStore(t)

	first := uuid.New()
	second := uuid.New()
	third := uuid.New()
	s.SavePlayerAsync(domain.PlayerRow{ID: first})
	s.SavePlayerAsync(domain.PlayerRow{ID: second})
	// SavePlayer waits, so once it returns the async writes before it
	// have been applied too.
	require.NoError(t, s.SavePlayer(context.Background(), domain.PlayerRow{ID: third}))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, []uuid.UUID{first, second, third}, backend.upserts)
}

func TestSavePlayerSurfacesBackendError(t *testing.T) {
	s, backend := newTestStore(t)
	backend.upsertErr = errors.New("deadlock detected")

	err := s.SavePlayer(context.Background(), domain.PlayerRow{ID: uuid.New()})
	assert.ErrorIs(t, err, backend.upsertErr)
}

func TestSaveAllReportsPerRowResults(t *testing.T) {
	s, _ := newTestStore(t)

	rows := []domain.PlayerRow{{ID: uuid.New()}, {ID: uuid.New()}}
	results, err := s.SaveAll(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, row := range rows {
		assert.True(t, results[row.ID])
	}
}

func TestResetGoesThroughTheQueue(t *testing.T) {
	s, backend := newTestStore(t)

	categories := []domain.Category{domain.CategoryDaily, domain.CategoryWeekly}
	require.NoError(t, s.ResetCategories(context.Background(), categories, time.Now()))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.resets, 1)
	assert.Equal(t, categories, backend.resets[0])
}
