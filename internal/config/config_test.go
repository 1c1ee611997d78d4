package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playtime-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 300, cfg.Tracking.SaveIntervalSeconds)
	assert.Equal(t, int64(300), cfg.AFK.AutoAFKSeconds)
	assert.Equal(t, "UTC", cfg.Reset.Zone)
	assert.Equal(t, time.Monday.String(), cfg.Reset.WeekStartDay)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("PLAYTIME_TEST_DB", "playtime")
	path := writeConfig(t, "postgres:\n  database: ${PLAYTIME_TEST_DB}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "playtime", cfg.Postgres.Database)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad zone", "reset:\n  zone: Mars/Olympus\n"},
		{"bad week start", "reset:\n  week_start_day: Someday\n"},
		{"bad reset hour", "reset:\n  reset_hour: 24\n"},
		{"bad save interval", "tracking:\n  save_interval_seconds: -5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestRetentionParsing(t *testing.T) {
	cfg := TrackingConfig{BackupsRemoveOlderThan: "720h"}

	retention, ok := cfg.BackupRetention()
	require.True(t, ok)
	assert.Equal(t, 720*time.Hour, retention)

	empty := TrackingConfig{}
	_, ok = empty.SnapshotRetention()
	assert.False(t, ok)

	invalid := TrackingConfig{SnapshotsRemoveOlderThan: "soon"}
	_, ok = invalid.SnapshotRetention()
	assert.False(t, ok)
}

func TestWeekStartParsing(t *testing.T) {
	day, err := parseWeekday("monday")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, day)

	_, err = parseWeekday("payday")
	assert.Error(t, err)
}

func TestManagerFailedLoadDiscardsSettings(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	m := NewManager(path, testLogger())
	require.NoError(t, m.Load())

	_, err := m.Current()
	require.NoError(t, err)

	// Break the file and reload. The stale settings must not survive.
	require.NoError(t, os.WriteFile(path, []byte("reset:\n  reset_hour: 99\n"), 0o644))
	require.Error(t, m.Load())

	_, err = m.Current()
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestSetLastResetPersists(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	m := NewManager(path, testLogger())
	require.NoError(t, m.Load())

	times := LastResetTimes{Daily: 1000, Weekly: 2000, Monthly: 3000, Yearly: 4000}
	require.NoError(t, m.SetLastReset(times))

	// A fresh manager reading the same file sees the advanced times.
	reloaded := NewManager(path, testLogger())
	require.NoError(t, reloaded.Load())
	cfg, err := reloaded.Current()
	require.NoError(t, err)
	assert.Equal(t, times, cfg.LastReset)
}
