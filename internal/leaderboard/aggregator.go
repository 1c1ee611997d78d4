package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/domain"
)

// LiveSource supplies the in-memory top ten of online players. The
// tracker service implements it.
type LiveSource interface {
	LiveTopTen(category domain.Category) []domain.Position
}

// DurableSource supplies the stored top ten, which includes offline
// players.
type DurableSource interface {
	TopTen(ctx context.Context, category domain.Category) ([]domain.Position, error)
}

// Aggregator maintains two cached views per rankable category: the
// durable top ten, refreshed on a slow cadence because it costs a query,
// and the combined top ten, a cheap in-memory merge of durable and live
// data refreshed more often. Reads serve the cached views; callers
// needing freshness trigger a refresh.
type Aggregator struct {
	live      LiveSource
	durable   DurableSource
	snapshots *SnapshotStore
	logger    *slog.Logger

	mu         sync.RWMutex
	durableTop map[domain.Category][]domain.Position
	combined   map[domain.Category]domain.TopTen
}

// NewAggregator creates a leaderboard aggregator.
func NewAggregator(live LiveSource, durable DurableSource, snapshots *SnapshotStore, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		live:       live,
		durable:    durable,
		snapshots:  snapshots,
		logger:     logger,
		durableTop: make(map[domain.Category][]domain.Position),
		combined:   make(map[domain.Category]domain.TopTen),
	}
}

// RefreshDurable re-queries the stored top ten for every rankable
// category. A failed category keeps its previous cached view.
func (a *Aggregator) RefreshDurable(ctx context.Context) error {
	var firstErr error
	for _, category := range domain.RankableCategories() {
		positions, err := a.durable.TopTen(ctx, category)
		if err != nil {
			a.logger.Error("failed to refresh durable top ten", "category", category, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("refreshing durable top ten for %s: %w", category, err)
			}
			continue
		}
		a.mu.Lock()
		a.durableTop[category] = positions
		a.mu.Unlock()
	}
	return firstErr
}

// RefreshCombined recomputes the combined top ten for every rankable
// category from the cached durable view and the current live counters.
// When a player appears in both, the live entry wins since it is
// fresher.
func (a *Aggregator) RefreshCombined() {
	for _, category := range domain.RankableCategories() {
		live := a.live.LiveTopTen(category)

		a.mu.Lock()
		durable := a.durableTop[category]
		a.combined[category] = merge(live, durable)
		a.mu.Unlock()
	}
}

// merge unions the live and durable candidates, deduplicates by player
// id with live precedence, and ranks descending with a stable sort.
func merge(live, durable []domain.Position) domain.TopTen {
	seen := make(map[uuid.UUID]struct{}, len(live)+len(durable))
	candidates := make([]domain.Position, 0, len(live)+len(durable))
	for _, p := range live {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		candidates = append(candidates, p)
	}
	for _, p := range durable {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		candidates = append(candidates, p)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Seconds > candidates[j].Seconds
	})
	return domain.NewTopTen(candidates)
}

// Combined returns the last computed combined view for a category, with
// "all" served as total. Session has no leaderboard.
func (a *Aggregator) Combined(category domain.Category) (domain.TopTen, error) {
	category = category.Resolve()
	if category == domain.CategorySession {
		return domain.TopTen{}, domain.ErrNoLeaderboard
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	top, ok := a.combined[category]
	if !ok {
		return domain.TopTen{}, domain.ErrNoLeaderboard
	}
	return top, nil
}

// Durable returns the cached durable-only view for a category.
func (a *Aggregator) Durable(category domain.Category) ([]domain.Position, error) {
	category = category.Resolve()

	a.mu.RLock()
	defer a.mu.RUnlock()
	positions, ok := a.durableTop[category]
	if !ok {
		return nil, domain.ErrNoLeaderboard
	}
	out := make([]domain.Position, len(positions))
	copy(out, positions)
	return out, nil
}

// PositionAt returns the 1-indexed entry of a category's combined view.
func (a *Aggregator) PositionAt(category domain.Category, n int) (domain.Position, error) {
	top, err := a.Combined(category)
	if err != nil {
		return domain.Position{}, err
	}
	p, ok := top.Position(n)
	if !ok {
		return domain.Position{}, domain.ErrPositionOutOfRange
	}
	return p, nil
}

// Snapshot persists the current combined view of one category to a
// timestamped file and returns the snapshot's identity.
func (a *Aggregator) Snapshot(category domain.Category) (string, error) {
	top, err := a.Combined(category)
	if err != nil {
		return "", err
	}
	return a.snapshots.Save(category.Resolve(), top.Positions())
}

// SnapshotCategories writes a snapshot for every rankable category in
// the given set, recomputing the combined views first so the snapshots
// capture current standings.
func (a *Aggregator) SnapshotCategories(ctx context.Context, categories []domain.Category) error {
	if err := a.RefreshDurable(ctx); err != nil {
		return err
	}
	a.RefreshCombined()

	for _, category := range categories {
		if category.Resolve() == domain.CategorySession {
			continue
		}
		name, err := a.Snapshot(category)
		if err != nil {
			return fmt.Errorf("snapshotting %s: %w", category, err)
		}
		a.logger.Info("leaderboard snapshot written", "category", category, "snapshot", name)
	}
	return nil
}
