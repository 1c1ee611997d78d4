package backup

import (
	"compress/gzip"
	"context"
	"encoding/json"
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
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeExporter struct {
	rows []domain.PlayerRow
	err  error
}

func (f *fakeExporter) ExportAll(context.Context) ([]domain.PlayerRow, error) {
	return f.rows, f.err
}

func loadedSettings(t *testing.T, tracking string) *config.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracking:\n"+tracking), 0o644))
	m := config.NewManager(path, testLogger())
	require.NoError(t, m.Load())
	return m
}

func TestBackupNowWritesCompressedExport(t *testing.T) {
	dir := t.TempDir()
	settings := loadedSettings(t, fmt.Sprintf("  backup_dir: %s\n", dir))
	rows := []domain.PlayerRow{
		{ID: uuid.New(), Name: "alex", Daily: 100, Total: 5000},
		{ID: uuid.New(), Name: "sam", Weekly: 300},
	}

	s := NewService(&fakeExporter{rows: rows}, settings, quartz.NewMock(t), testLogger())
	require.NoError(t, s.BackupNow(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "players_")
	assert.Contains(t, entries[0].Name(), ".json.gz")

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var decoded []domain.PlayerRow
	require.NoError(t, json.NewDecoder(gz).Decode(&decoded))
	assert.Equal(t, rows, decoded)
}

func TestBackupNowSurfacesExportFailure(t *testing.T) {
	settings := loadedSettings(t, fmt.Sprintf("  backup_dir: %s\n", t.TempDir()))
	s := NewService(&fakeExporter{err: errors.New("connection refused")}, settings, quartz.NewMock(t), testLogger())

	assert.Error(t, s.BackupNow(context.Background()))
}

func TestCleanupPrunesExpiredFiles(t *testing.T) {
	backupDir := t.TempDir()
	snapshotDir := t.TempDir()
	settings := loadedSettings(t, fmt.Sprintf(
		"  backup_dir: %s\n  snapshot_dir: %s\n  backups_remove_older_than: 24h\n  snapshots_remove_older_than: 24h\n",
		backupDir, snapshotDir,
	))

	clock := quartz.NewMock(t)
	now := clock.Now()

	old := filepath.Join(backupDir, "players_old.json.gz")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(old, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))

	recent := filepath.Join(backupDir, "players_recent.json.gz")
	require.NoError(t, os.WriteFile(recent, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(recent, now.Add(-time.Hour), now.Add(-time.Hour)))

	oldSnapshot := filepath.Join(snapshotDir, "daily_old.json")
	require.NoError(t, os.WriteFile(oldSnapshot, []byte("{}"), 0o644))
	require.NoError(t, os.Chtimes(oldSnapshot, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))

	s := NewService(&fakeExporter{}, settings, clock, testLogger())
	require.NoError(t, s.Cleanup())

	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)
	assert.NoFileExists(t, oldSnapshot)
}

func TestCleanupDisabledRetentionPrunesNothing(t *testing.T) {
	backupDir := t.TempDir()
	settings := loadedSettings(t, fmt.Sprintf("  backup_dir: %s\n", backupDir))

	clock := quartz.NewMock(t)
	old := filepath.Join(backupDir, "players_old.json.gz")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(old, clock.Now().Add(-1000*time.Hour), clock.Now().Add(-1000*time.Hour)))

	s := NewService(&fakeExporter{}, settings, clock, testLogger())
	require.NoError(t, s.Cleanup())

	assert.FileExists(t, old)
}
