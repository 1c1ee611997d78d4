package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/coder/quartz"
	"github.com/klauspost/compress/gzip"
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
)

const backupTimeLayout = "2006-01-02_15-04-05"

// Exporter supplies every durable player row. *store.Store implements
// it.
type Exporter interface {
	ExportAll(ctx context.Context) ([]domain.PlayerRow, error)
}

// Service exports the durable store into timestamped gzip files and
// prunes old backups and snapshots past their retention windows.
type Service struct {
	exporter Exporter
	settings *config.Manager
	clock    quartz.Clock
	logger   *slog.Logger
}

// NewService creates a backup service.
func NewService(exporter Exporter, settings *config.Manager, clock quartz.Clock, logger *slog.Logger) *Service {
	return &Service{
		exporter: exporter,
		settings: settings,
		clock:    clock,
		logger:   logger,
	}
}

// BackupNow exports every stored row into a new gzip'd JSON file in the
// configured backup directory.
func (s *Service) BackupNow(ctx context.Context) error {
	cfg, err := s.settings.Current()
	if err != nil {
		return err
	}

	rows, err := s.exporter.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("exporting players: %w", err)
	}

	if err := os.MkdirAll(cfg.Tracking.BackupDir, 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}

	name := fmt.Sprintf("players_%s.json.gz", s.clock.Now().Format(backupTimeLayout))
	path := filepath.Join(cfg.Tracking.BackupDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating backup file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(rows); err != nil {
		gz.Close()
		return fmt.Errorf("writing backup: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalizing backup: %w", err)
	}

	s.logger.Info("backup written", "file", name, "players", len(rows))
	return nil
}

// Cleanup prunes backup and snapshot files older than their configured
// retention windows. An empty window disables pruning for that
// directory.
func (s *Service) Cleanup() error {
	cfg, err := s.settings.Current()
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if retention, ok := cfg.Tracking.BackupRetention(); ok {
		s.pruneDir(cfg.Tracking.BackupDir, now.Add(-retention))
	}
	if retention, ok := cfg.Tracking.SnapshotRetention(); ok {
		s.pruneDir(cfg.Tracking.SnapshotDir, now.Add(-retention))
	}
	return nil
}

// pruneDir removes regular files whose modification time predates
// cutoff. Pruning is best effort; a failed removal is logged and skipped.
func (s *Service) pruneDir(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("failed to read directory for cleanup", "dir", dir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Error("failed to remove expired file", "file", path, "error", err)
			continue
		}
		s.logger.Info("removed expired file", "file", path)
	}
}
