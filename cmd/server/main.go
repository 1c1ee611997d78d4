package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/afk"
	"github.com/playtime-tracker/internal/backup"
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
	"github.com/playtime-tracker/internal/handler"
	"github.com/playtime-tracker/internal/kafka"
	"github.com/playtime-tracker/internal/leaderboard"
	"github.com/playtime-tracker/internal/postgres"
	"github.com/playtime-tracker/internal/presence"
	"github.com/playtime-tracker/internal/queue"
	"github.com/playtime-tracker/internal/redis"
	"github.com/playtime-tracker/internal/scheduler"
	"github.com/playtime-tracker/internal/store"
	"github.com/playtime-tracker/internal/tracker"
	"github.com/playtime-tracker/internal/websocket"
)

// refreshFanout forwards combined-leaderboard refreshes to websocket
// subscribers and the optional Redis standings mirror.
type refreshFanout struct {
	hub        *websocket.Hub
	aggregator *leaderboard.Aggregator
	standings  *redis.StandingsService
	logger     *slog.Logger
}

func (f *refreshFanout) BroadcastLeaderboards() {
	f.hub.BroadcastLeaderboards()
	if f.standings == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, category := range domain.RankableCategories() {
		top, err := f.aggregator.Combined(category)
		if err != nil {
			continue
		}
		if err := f.standings.Publish(ctx, category, top.Positions()); err != nil {
			f.logger.Error("failed to publish standings", "category", category, "error", err)
		}
	}
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	settings := config.NewManager(*configPath, logger)
	if err := settings.Load(); err != nil {
		logger.Error("failed to load config file", "error", err)
		os.Exit(1)
	}
	cfg, err := settings.Current()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := quartz.NewReal()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize the serialized write queue and durable store
	writeQueue := queue.New(256, logger)
	writeQueue.Start(ctx)
	durableStore := store.New(postgresRepo, writeQueue, logger)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize the tracking core
	registry := presence.NewRegistry(nil, logger)
	afkManager := afk.NewManager(settings, registry, wsHub, logger)
	trackerService := tracker.NewService(durableStore, registry, afkManager, settings, clock, logger)

	snapshotStore := leaderboard.NewSnapshotStore(cfg.Tracking.SnapshotDir, clock, logger)
	aggregator := leaderboard.NewAggregator(trackerService, durableStore, snapshotStore, logger)
	wsHub.SetStandings(aggregator)

	backupService := backup.NewService(durableStore, settings, clock, logger)
	trackerService.SetResetHooks(aggregator, backupService)

	// Announce session milestones on every full hour of counted time
	trackerService.OnPlaytimeGained(func(id uuid.UUID, name string, sessionSeconds int64) {
		if sessionSeconds > 0 && sessionSeconds%3600 == 0 {
			wsHub.BroadcastPlaytime(id, name, sessionSeconds)
		}
	})

	// Warm the leaderboard caches before serving
	if err := aggregator.RefreshDurable(ctx); err != nil {
		logger.Warn("initial leaderboard refresh failed", "error", err)
	}
	aggregator.RefreshCombined()

	// Initialize optional Redis standings mirror
	var standings *redis.StandingsService
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		standings, err = redis.NewStandingsService(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without standings mirror", "error", err)
		} else {
			defer standings.Close()
		}
	}

	// Fan leaderboard refreshes out to websocket subscribers and, when
	// enabled, the Redis standings mirror.
	notifier := &refreshFanout{
		hub:        wsHub,
		aggregator: aggregator,
		standings:  standings,
		logger:     logger,
	}

	// Start the scheduler driving all periodic work
	sched := scheduler.New(trackerService, aggregator, backupService, settings, clock, notifier, logger)
	sched.Start(ctx, cfg)

	// Initialize Kafka consumer for bulk activity ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, trackerService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(
		trackerService, aggregator, snapshotStore, backupService, settings, registry, wsHub, clock, logger,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new work first
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}
	sched.Stop()
	wsHub.Stop()

	// Final best-effort save before releasing the store
	if results, err := trackerService.SaveAll(shutdownCtx); err != nil {
		logger.Error("final save failed", "error", err)
	} else {
		failed := 0
		for _, ok := range results {
			if !ok {
				failed++
			}
		}
		logger.Info("final save completed", "players", len(results), "failed", failed)
	}
	writeQueue.Stop()

	logger.Info("server stopped")
}
