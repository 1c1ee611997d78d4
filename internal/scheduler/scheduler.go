package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/quartz"
	"github.com/playtime-tracker/internal/backup"
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
	"github.com/playtime-tracker/internal/leaderboard"
	"github.com/playtime-tracker/internal/tracker"
)

const (
	tickInterval            = time.Second
	activityScanInterval    = time.Second
	durableRefreshInterval  = 15 * time.Minute
	combinedRefreshInterval = 5 * time.Minute
	resetCheckInterval      = time.Hour
	cleanupInterval         = time.Hour
)

// RefreshNotifier is told after each combined leaderboard refresh. The
// websocket hub implements it.
type RefreshNotifier interface {
	BroadcastLeaderboards()
}

// Scheduler drives every periodic task: the one second play time tick,
// the activity scan, the interval save, the leaderboard refreshes, the
// hourly reset pass and the retention cleanup. All periodic mutation of
// the tracker flows from here.
type Scheduler struct {
	tracker    *tracker.Service
	aggregator *leaderboard.Aggregator
	backups    *backup.Service
	settings   *config.Manager
	clock      quartz.Clock
	logger     *slog.Logger
	notifier   RefreshNotifier

	cancel context.CancelFunc
	doneCh chan struct{}
}

// New creates the scheduler. notifier may be nil.
func New(trk *tracker.Service, aggregator *leaderboard.Aggregator, backups *backup.Service, settings *config.Manager, clock quartz.Clock, notifier RefreshNotifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tracker:    trk,
		aggregator: aggregator,
		backups:    backups,
		settings:   settings,
		clock:      clock,
		logger:     logger,
		notifier:   notifier,
		doneCh:     make(chan struct{}),
	}
}

// Start launches the periodic tasks. The save interval is read from the
// settings once at startup; a reload takes effect on restart.
func (s *Scheduler) Start(ctx context.Context, cfg *config.Config) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.clock.TickerFunc(ctx, tickInterval, func() error {
		s.tracker.TickActive()
		return nil
	}, "tick")

	s.clock.TickerFunc(ctx, activityScanInterval, func() error {
		s.tracker.ScanActivity()
		return nil
	}, "activity")

	saveInterval := time.Duration(cfg.Tracking.SaveIntervalSeconds) * time.Second
	s.clock.TickerFunc(ctx, saveInterval, func() error {
		s.runSave(ctx)
		return nil
	}, "save")

	s.clock.TickerFunc(ctx, durableRefreshInterval, func() error {
		if err := s.aggregator.RefreshDurable(ctx); err != nil {
			s.logger.Error("durable leaderboard refresh failed", "error", err)
		}
		return nil
	}, "durable-refresh")

	s.clock.TickerFunc(ctx, combinedRefreshInterval, func() error {
		s.aggregator.RefreshCombined()
		if s.notifier != nil {
			s.notifier.BroadcastLeaderboards()
		}
		return nil
	}, "combined-refresh")

	s.clock.TickerFunc(ctx, cleanupInterval, func() error {
		if err := s.backups.Cleanup(); err != nil {
			s.logger.Error("retention cleanup failed", "error", err)
		}
		return nil
	}, "cleanup")

	go s.runResetLoop(ctx)

	s.logger.Info("scheduler started", "save_interval", saveInterval)
}

// Stop cancels all periodic tasks.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.doneCh
}

// runResetLoop aligns the first reset pass to the top of the next hour
// and then repeats hourly.
func (s *Scheduler) runResetLoop(ctx context.Context) {
	defer close(s.doneCh)

	now := s.clock.Now()
	firstDelay := now.Truncate(time.Hour).Add(time.Hour).Sub(now)
	timer := s.clock.NewTimer(firstDelay, "reset-align")
	select {
	case <-ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	s.RunResetPass(ctx)

	ticker := s.clock.NewTicker(resetCheckInterval, "reset")
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunResetPass(ctx)
		}
	}
}

func (s *Scheduler) runSave(ctx context.Context) {
	results, err := s.tracker.SaveAll(ctx)
	if err != nil {
		s.logger.Error("periodic save failed", "error", err)
		return
	}
	failed := 0
	for _, ok := range results {
		if !ok {
			failed++
		}
	}
	if failed > 0 {
		s.logger.Warn("periodic save completed with failures", "saved", len(results)-failed, "failed", failed)
	}
}

// RunResetPass checks every calendar category once and resets the due
// ones together in one batch. The advanced last-reset times are only
// persisted after the reset sequence completed, so a failed reset is
// retried on the next pass.
func (s *Scheduler) RunResetPass(ctx context.Context) {
	cfg, err := s.settings.Current()
	if err != nil {
		s.logger.Error("reset pass skipped", "error", err)
		return
	}
	loc, err := cfg.Reset.Location()
	if err != nil {
		s.logger.Error("reset pass skipped", "error", err)
		return
	}
	weekStart, err := cfg.Reset.WeekStart()
	if err != nil {
		s.logger.Error("reset pass skipped", "error", err)
		return
	}

	now := s.clock.Now()
	times := cfg.LastReset
	bootstrap := false

	lastFor := map[domain.Category]*int64{
		domain.CategoryDaily:   &times.Daily,
		domain.CategoryWeekly:  &times.Weekly,
		domain.CategoryMonthly: &times.Monthly,
		domain.CategoryYearly:  &times.Yearly,
	}

	var due []domain.Category
	for _, category := range []domain.Category{
		domain.CategoryDaily, domain.CategoryWeekly, domain.CategoryMonthly, domain.CategoryYearly,
	} {
		last := lastFor[category]
		if *last == 0 {
			// First run ever: record now and start counting from here
			// instead of resetting freshly tracked time.
			*last = now.UnixMilli()
			bootstrap = true
			continue
		}

		boundary, isDue := DueBoundary(category, time.UnixMilli(*last), now, loc, weekStart, cfg.Reset.ResetHour)
		if !isDue {
			continue
		}
		due = append(due, category)
		*last = boundary.UnixMilli()
	}

	if len(due) > 0 {
		if err := s.tracker.ExecuteReset(ctx, due, now); err != nil {
			s.logger.Error("reset aborted", "categories", due, "error", err)
			return
		}
	} else if !bootstrap {
		return
	}

	if err := s.settings.SetLastReset(times); err != nil {
		s.logger.Error("failed to persist last reset times", "error", err)
	}
}
