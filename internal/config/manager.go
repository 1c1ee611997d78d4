package config

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/playtime-tracker/internal/domain"
)

// Manager holds the currently loaded settings and supports reloading at
// runtime. A failed reload leaves the manager without settings, and every
// dependent operation short-circuits with domain.ErrConfigInvalid until a
// valid file is loaded again.
type Manager struct {
	path   string
	logger *slog.Logger

	mu  sync.RWMutex
	cfg *Config
}

// NewManager creates a settings manager for the given file path.
func NewManager(path string, logger *slog.Logger) *Manager {
	return &Manager{
		path:   path,
		logger: logger,
	}
}

// Load reads and validates the settings file. On failure the previously
// loaded settings are discarded so that callers cannot keep operating on
// state the operator believes has been replaced.
func (m *Manager) Load() error {
	cfg, err := Load(m.path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.cfg = nil
		m.logger.Error("failed to load settings", "path", m.path, "error", err)
		return fmt.Errorf("loading settings: %w", err)
	}

	m.cfg = cfg
	return nil
}

// Current returns the loaded settings, or domain.ErrConfigInvalid when no
// valid settings are loaded.
func (m *Manager) Current() (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cfg == nil {
		return nil, domain.ErrConfigInvalid
	}
	return m.cfg, nil
}

// SetLastReset persists advanced last-reset times. The in-memory settings
// are only replaced once the file write succeeds.
func (m *Manager) SetLastReset(times LastResetTimes) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg == nil {
		return domain.ErrConfigInvalid
	}

	updated := *m.cfg
	updated.LastReset = times
	if err := updated.Save(m.path); err != nil {
		return fmt.Errorf("saving last reset times: %w", err)
	}

	m.cfg = &updated
	return nil
}
