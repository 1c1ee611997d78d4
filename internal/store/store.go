package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/domain"
	"github.com/playtime-tracker/internal/queue"
)

// Backend is the durable persistence surface the store serializes writes
// onto. *postgres.Repository implements it.
type Backend interface {
	LoadPlayer(ctx context.Context, id uuid.UUID) (domain.PlayerRow, bool, error)
	UpsertPlayer(ctx context.Context, row domain.PlayerRow) error
	UpsertPlayers(ctx context.Context, rows []domain.PlayerRow) (map[uuid.UUID]bool, error)
	ResetCategories(ctx context.Context, categories []domain.Category, watermark time.Time) error
	TopTen(ctx context.Context, category domain.Category) ([]domain.Position, error)
	ExportAll(ctx context.Context) ([]domain.PlayerRow, error)
}

// Store routes every mutation through a single serialized write queue so
// writes land in submission order, while reads go straight to the
// backend. The watermark guard in the backend plus this ordering is what
// keeps a stale save from clobbering a fresher row.
type Store struct {
	backend Backend
	writes  *queue.Queue
	logger  *slog.Logger
}

// New creates a store over the given backend and write queue.
func New(backend Backend, writes *queue.Queue, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		writes:  writes,
		logger:  logger,
	}
}

// LoadPlayer retrieves a player's durable row.
func (s *Store) LoadPlayer(ctx context.Context, id uuid.UUID) (domain.PlayerRow, bool, error) {
	return s.backend.LoadPlayer(ctx, id)
}

// SavePlayer persists one row and waits for the outcome.
func (s *Store) SavePlayer(ctx context.Context, row domain.PlayerRow) error {
	return s.writes.SubmitWait(ctx, func(ctx context.Context) error {
		return s.backend.UpsertPlayer(ctx, row)
	})
}

// SavePlayerAsync persists one row without waiting. Failures are logged;
// the periodic save will retry with a fresher watermark.
func (s *Store) SavePlayerAsync(row domain.PlayerRow) {
	result := s.writes.Submit(func(ctx context.Context) error {
		return s.backend.UpsertPlayer(ctx, row)
	})
	go func() {
		if err := <-result; err != nil {
			s.logger.Error("failed to save player", "player_id", row.ID, "error", err)
		}
	}()
}

// SaveAll persists a batch of rows and reports per-row success. A false
// entry means the row errored or was rejected by the watermark guard.
func (s *Store) SaveAll(ctx context.Context, rows []domain.PlayerRow) (map[uuid.UUID]bool, error) {
	var results map[uuid.UUID]bool
	err := s.writes.SubmitWait(ctx, func(ctx context.Context) error {
		var err error
		results, err = s.backend.UpsertPlayers(ctx, rows)
		return err
	})
	return results, err
}

// ResetCategories zeroes the given counters for every stored player and
// stamps the rows with the reset watermark.
func (s *Store) ResetCategories(ctx context.Context, categories []domain.Category, watermark time.Time) error {
	return s.writes.SubmitWait(ctx, func(ctx context.Context) error {
		return s.backend.ResetCategories(ctx, categories, watermark)
	})
}

// TopTen returns the durable top ten for a category.
func (s *Store) TopTen(ctx context.Context, category domain.Category) ([]domain.Position, error) {
	return s.backend.TopTen(ctx, category)
}

// ExportAll retrieves every stored row.
func (s *Store) ExportAll(ctx context.Context) ([]domain.PlayerRow, error) {
	return s.backend.ExportAll(ctx)
}
