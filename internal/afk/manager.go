package afk

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
	"github.com/playtime-tracker/internal/presence"
	"github.com/playtime-tracker/internal/session"
)

// TransitionHook observes an intended AFK transition before it is
// applied. Returning true cancels the transition; no state changes and
// no side effects fire.
type TransitionHook func(id uuid.UUID, entering bool) bool

// Broadcaster announces applied AFK transitions. Broadcasts for hidden
// players are suppressed before this is called.
type Broadcaster interface {
	BroadcastAFK(id uuid.UUID, name string, afk bool)
}

// Manager applies AFK transitions: hook consultation, the session flag,
// the presence side effects and the broadcast, in that order.
type Manager struct {
	settings    *config.Manager
	presence    *presence.Registry
	broadcaster Broadcaster
	logger      *slog.Logger
	hooks       []TransitionHook
}

// NewManager creates an AFK manager. broadcaster may be nil.
func NewManager(settings *config.Manager, registry *presence.Registry, broadcaster Broadcaster, logger *slog.Logger) *Manager {
	return &Manager{
		settings:    settings,
		presence:    registry,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// AddHook registers a transition hook. Hooks run in registration order
// and any one of them can cancel the transition.
func (m *Manager) AddHook(h TransitionHook) {
	m.hooks = append(m.hooks, h)
}

// Toggle flips a player's AFK state.
func (m *Manager) Toggle(record *session.Record, now time.Time) domain.ToggleResult {
	if record == nil {
		return domain.ToggleError
	}
	return m.Transition(record, !record.AFK, now)
}

// Transition moves a player into or out of AFK. A transition to the
// state the player is already in reports success without re-running
// hooks or side effects.
func (m *Manager) Transition(record *session.Record, afk bool, now time.Time) domain.ToggleResult {
	if record == nil {
		return domain.ToggleError
	}

	cfg, err := m.settings.Current()
	if err != nil {
		return domain.ToggleConfigError
	}

	if record.AFK == afk {
		return successResult(afk)
	}

	for _, hook := range m.hooks {
		if hook(record.ID, afk) {
			m.logger.Debug("afk transition cancelled", "player_id", record.ID, "entering", afk)
			return domain.ToggleCancelled
		}
	}

	record.AFK = afk
	if afk {
		m.presence.ApplyAFKEffects(record.ID, cfg.AFK)
	} else {
		m.presence.ClearAFKEffects(record.ID)
		// Leaving AFK counts as activity, otherwise the automatic rules
		// would flip the player straight back.
		record.LastMove = now
		record.LastAction = now
	}

	m.logger.Info("afk state changed", "player_id", record.ID, "name", record.Name, "afk", afk)

	if m.broadcaster != nil && !m.presence.IsHidden(record.ID) {
		m.broadcaster.BroadcastAFK(record.ID, record.Name, afk)
	}

	return successResult(afk)
}

// ShouldAutoAFK evaluates the automatic AFK rules for an active player.
// Rule one fires when both movement and action have been idle past the
// auto threshold. Rule two fires when movement is long idle while
// actions are still recent, which catches stationary autoclicker setups.
// A negative threshold disables the rule it belongs to.
func ShouldAutoAFK(cfg config.AFKConfig, record *session.Record, now time.Time) bool {
	moveIdle := int64(now.Sub(record.LastMove) / time.Second)
	actionIdle := int64(now.Sub(record.LastAction) / time.Second)

	if cfg.AutoAFKSeconds >= 0 &&
		moveIdle >= cfg.AutoAFKSeconds && actionIdle >= cfg.AutoAFKSeconds {
		return true
	}
	if cfg.MovementTimeSeconds >= 0 && cfg.ActionTimeSeconds >= 0 &&
		moveIdle >= cfg.MovementTimeSeconds && actionIdle <= cfg.ActionTimeSeconds {
		return true
	}
	return false
}

func successResult(afk bool) domain.ToggleResult {
	if afk {
		return domain.ToggleSuccessAFK
	}
	return domain.ToggleSuccessActive
}
