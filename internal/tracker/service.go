package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/afk"
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
	"github.com/playtime-tracker/internal/presence"
	"github.com/playtime-tracker/internal/session"
)

// Store is the durable persistence surface the tracker depends on.
// *store.Store implements it.
type Store interface {
	LoadPlayer(ctx context.Context, id uuid.UUID) (domain.PlayerRow, bool, error)
	SavePlayer(ctx context.Context, row domain.PlayerRow) error
	SavePlayerAsync(row domain.PlayerRow)
	SaveAll(ctx context.Context, rows []domain.PlayerRow) (map[uuid.UUID]bool, error)
	ResetCategories(ctx context.Context, categories []domain.Category, watermark time.Time) error
}

// Snapshotter writes pre-reset leaderboard snapshots. The leaderboard
// aggregator implements it.
type Snapshotter interface {
	SnapshotCategories(ctx context.Context, categories []domain.Category) error
}

// Backupper exports the durable store to a backup file.
type Backupper interface {
	BackupNow(ctx context.Context) error
}

// PlaytimeObserver is notified after a player gains a counted second.
type PlaytimeObserver func(id uuid.UUID, name string, sessionSeconds int64)

// Service owns the session cache and serializes every mutation of it
// behind one mutex, standing in for the single scheduler thread the
// cache's design assumes. The cache and its records carry no locking of
// their own.
type Service struct {
	store    Store
	presence *presence.Registry
	afk      *afk.Manager
	settings *config.Manager
	clock    quartz.Clock
	logger   *slog.Logger

	snapshotter Snapshotter
	backupper   Backupper

	// resetMu serializes whole reset sequences against each other; the
	// scheduler pass and the admin endpoint may both trigger one.
	resetMu sync.Mutex

	mu        sync.Mutex
	cache     *session.Cache
	observers []PlaytimeObserver
}

// NewService creates the tracker service.
func NewService(store Store, registry *presence.Registry, afkManager *afk.Manager, settings *config.Manager, clock quartz.Clock, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		presence: registry,
		afk:      afkManager,
		settings: settings,
		clock:    clock,
		logger:   logger,
		cache:    session.NewCache(),
	}
}

// SetResetHooks wires the snapshot and backup collaborators used during
// reset execution. Either may be nil, which skips the corresponding step
// regardless of settings.
func (s *Service) SetResetHooks(snapshotter Snapshotter, backupper Backupper) {
	s.snapshotter = snapshotter
	s.backupper = backupper
}

// OnPlaytimeGained registers an observer called for every counted second.
func (s *Service) OnPlaytimeGained(observer PlaytimeObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// Load creates or fetches a player's record, merges the durable counters
// into it and re-persists the merged row so a later load does not merge
// twice. The player is also registered as online.
func (s *Service) Load(ctx context.Context, id uuid.UUID, name string) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.cache.Get(id); ok {
		return record, nil
	}

	now := s.clock.Now()
	record := session.NewRecord(id, name, now)

	row, found, err := s.store.LoadPlayer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading player data: %w", err)
	}
	if found {
		record.Merge(row)
	}
	if name != "" {
		record.Name = name
	}

	s.cache.Put(record)
	s.presence.Join(id, record.Name)

	// Re-persist the merged counters under a fresh watermark. This also
	// reconciles a changed display name.
	s.store.SavePlayerAsync(record.Row(now))

	s.logger.Info("player loaded", "player_id", id, "name", record.Name, "merged", found)
	return record, nil
}

// Unload persists a player's record and removes it from memory. The
// record is removed even when the save fails; the failure is surfaced to
// the caller since the session has ended and there is nothing left to
// retry against.
func (s *Service) Unload(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cache.Get(id)
	if !ok {
		return domain.ErrNoPlayerData
	}

	err := s.store.SavePlayer(ctx, record.Row(s.clock.Now()))

	s.cache.Remove(id)
	s.presence.Leave(id)

	if err != nil {
		s.logger.Error("failed to save player on unload", "player_id", id, "error", err)
		return fmt.Errorf("saving player on unload: %w", err)
	}
	s.logger.Info("player unloaded", "player_id", id)
	return nil
}

// SaveAll persists every loaded record and reports per-player success.
func (s *Service) SaveAll(ctx context.Context) (map[uuid.UUID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAllLocked(ctx)
}

func (s *Service) saveAllLocked(ctx context.Context) (map[uuid.UUID]bool, error) {
	watermark := s.clock.Now()
	records := s.cache.All()
	rows := make([]domain.PlayerRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, record.Row(watermark))
	}
	return s.store.SaveAll(ctx, rows)
}

// Playtime returns a player's counter for a category, with "all" reading
// as total.
func (s *Service) Playtime(id uuid.UUID, category domain.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cache.Get(id)
	if !ok {
		return 0, domain.ErrNoPlayerData
	}
	return record.Seconds(category), nil
}

// AddPlaytime adds seconds to a category, with "all" addressing every
// category.
func (s *Service) AddPlaytime(id uuid.UUID, category domain.Category, seconds int64) error {
	if seconds < 0 {
		return domain.ErrNegativeSeconds
	}
	return s.adjust(id, category, seconds)
}

// RemovePlaytime subtracts seconds from a category, clamping at zero.
func (s *Service) RemovePlaytime(id uuid.UUID, category domain.Category, seconds int64) error {
	if seconds < 0 {
		return domain.ErrNegativeSeconds
	}
	return s.adjust(id, category, -seconds)
}

func (s *Service) adjust(id uuid.UUID, category domain.Category, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cache.Get(id)
	if !ok {
		return domain.ErrNoPlayerData
	}
	for _, c := range category.Expand() {
		record.Add(c, delta)
	}
	return nil
}

// SetPlaytime assigns a category's counter, with "all" addressing every
// category.
func (s *Service) SetPlaytime(id uuid.UUID, category domain.Category, seconds int64) error {
	if seconds < 0 {
		return domain.ErrNegativeSeconds
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cache.Get(id)
	if !ok {
		return domain.ErrNoPlayerData
	}
	for _, c := range category.Expand() {
		record.Set(c, seconds)
	}
	return nil
}

// ResetPlaytime zeroes a category for one player, with "all" addressing
// every category. Each selected category is zeroed individually.
func (s *Service) ResetPlaytime(id uuid.UUID, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cache.Get(id)
	if !ok {
		return domain.ErrNoPlayerData
	}
	for _, c := range category.Expand() {
		record.Reset(c)
	}
	return nil
}

// SetExempt flips a player's leaderboard exemption. Tracking continues
// either way; the flag is persisted immediately.
func (s *Service) SetExempt(id uuid.UUID, exempt bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cache.Get(id)
	if !ok {
		return domain.ErrNoPlayerData
	}
	record.Exempt = exempt
	s.store.SavePlayerAsync(record.Row(s.clock.Now()))
	return nil
}

// ToggleAFK flips a player's AFK state through the full transition
// pipeline.
func (s *Service) ToggleAFK(id uuid.UUID) domain.ToggleResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cache.Get(id)
	if !ok {
		return domain.ToggleError
	}
	return s.afk.Toggle(record, s.clock.Now())
}

// RecordMovement stamps a movement observation. Only a change of block
// coordinate qualifies; qualifying movement while AFK transitions the
// player back to active.
func (s *Service) RecordMovement(id uuid.UUID, from, to domain.BlockPos) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cache.Get(id)
	if !ok {
		return
	}
	if !domain.QualifiesAsMovement(from, to) {
		return
	}

	now := s.clock.Now()
	record.LastMove = now
	if record.AFK {
		s.afk.Transition(record, false, now)
	}
}

// RecordInteraction stamps an interaction observation.
func (s *Service) RecordInteraction(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.cache.Get(id); ok {
		record.LastAction = s.clock.Now()
	}
}

// TickActive adds one counted second to every non-AFK player and
// notifies the playtime observers.
func (s *Service) TickActive() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.cache.All() {
		if record.AFK {
			continue
		}
		record.Tick()
		for _, observer := range s.observers {
			observer(record.ID, record.Name, record.Seconds(domain.CategorySession))
		}
	}
}

// ScanActivity applies the automatic AFK rules to every active player.
func (s *Service) ScanActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.settings.Current()
	if err != nil {
		return
	}

	now := s.clock.Now()
	for _, record := range s.cache.All() {
		if record.AFK {
			continue
		}
		if afk.ShouldAutoAFK(cfg.AFK, record, now) {
			s.afk.Transition(record, true, now)
		}
	}
}

// LiveTopTen ranks the currently loaded non-exempt players by a
// category's in-memory counter, descending, truncated to ten. Ties keep
// a stable order across calls given identical input.
func (s *Service) LiveTopTen(category domain.Category) []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.cache.All()
	positions := make([]domain.Position, 0, len(records))
	for _, record := range records {
		if record.Exempt {
			continue
		}
		positions = append(positions, domain.Position{
			ID:      record.ID,
			Name:    record.Name,
			Seconds: record.Seconds(category),
		})
	}

	// Map iteration order is random, so fix an id order first to keep
	// tie-breaking stable between refreshes.
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].ID.String() < positions[j].ID.String()
	})
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].Seconds > positions[j].Seconds
	})

	if len(positions) > domain.TopTenSize {
		positions = positions[:domain.TopTenSize]
	}
	return positions
}

// Online returns the number of loaded records.
func (s *Service) Online() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// ExecuteReset performs the reset sequence for the given categories:
// flush, snapshots, backup, then zeroing of memory and store. Any
// failure before the zeroing step aborts the whole reset so counters are
// never lost without a prior flush, snapshot and backup. The caller
// persists the advanced last-reset times only after this returns nil.
//
// s.mu is held only for the cache-touching steps. The snapshot hook in
// particular calls back into LiveTopTen to capture current standings, so
// the hooks must run unlocked. Seconds ticked while the hooks run fall
// inside the reset window and are zeroed with it.
func (s *Service) ExecuteReset(ctx context.Context, categories []domain.Category, watermark time.Time) error {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()

	cfg, err := s.settings.Current()
	if err != nil {
		return err
	}

	s.mu.Lock()
	results, err := s.saveAllLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("flushing before reset: %w", err)
	}
	for id, ok := range results {
		if !ok {
			return fmt.Errorf("flushing before reset: row for %s not saved", id)
		}
	}

	if cfg.Tracking.SnapshotOnReset && s.snapshotter != nil {
		if err := s.snapshotter.SnapshotCategories(ctx, categories); err != nil {
			return fmt.Errorf("snapshotting before reset: %w", err)
		}
	}

	if cfg.Tracking.BackupOnReset && s.backupper != nil {
		if err := s.backupper.BackupNow(ctx); err != nil {
			return fmt.Errorf("backing up before reset: %w", err)
		}
	}

	s.mu.Lock()
	for _, record := range s.cache.All() {
		for _, category := range categories {
			record.Reset(category)
		}
	}
	s.mu.Unlock()

	if err := s.store.ResetCategories(ctx, categories, watermark); err != nil {
		return fmt.Errorf("resetting durable counters: %w", err)
	}

	s.logger.Info("play time reset", "categories", categories)
	return nil
}
