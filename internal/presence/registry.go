package presence

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/config"
)

// ProtectionCheck reports whether an external system already protects the
// player from damage. The AFK machine must not revert protection it did
// not grant itself.
type ProtectionCheck func(id uuid.UUID) bool

// State is the live presence of one online player, including the flags
// the AFK side effects toggle on the host.
type State struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Hidden bool      `json:"hidden"`

	Invulnerable  bool `json:"invulnerable"`
	PickupEnabled bool `json:"pickup_enabled"`
	SleepIgnored  bool `json:"sleep_ignored"`

	// grantedInvulnerability marks protection this registry granted, as
	// opposed to an external grant, so only our own grant gets reverted.
	grantedInvulnerability bool
}

// Registry tracks which players are online and applies AFK side effects
// to their live state.
type Registry struct {
	logger     *slog.Logger
	protection ProtectionCheck

	mu      sync.RWMutex
	players map[uuid.UUID]*State
}

// NewRegistry creates a presence registry. protection may be nil when no
// external protection source exists.
func NewRegistry(protection ProtectionCheck, logger *slog.Logger) *Registry {
	if protection == nil {
		protection = func(uuid.UUID) bool { return false }
	}
	return &Registry{
		logger:     logger,
		protection: protection,
		players:    make(map[uuid.UUID]*State),
	}
}

// Join registers a player as online.
func (r *Registry) Join(id uuid.UUID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[id] = &State{
		ID:            id,
		Name:          name,
		PickupEnabled: true,
	}
}

// Leave removes a player from the registry.
func (r *Registry) Leave(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, id)
}

// IsOnline reports whether the player is registered.
func (r *Registry) IsOnline(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.players[id]
	return ok
}

// Name returns the registered name for an online player.
func (r *Registry) Name(id uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.players[id]
	if !ok {
		return "", false
	}
	return s.Name, true
}

// SetHidden marks a player as vanished. Hidden players still accrue play
// time but are excluded from AFK broadcasts.
func (r *Registry) SetHidden(id uuid.UUID, hidden bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.players[id]; ok {
		s.Hidden = hidden
	}
}

// IsHidden reports whether a player is vanished.
func (r *Registry) IsHidden(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.players[id]
	return ok && s.Hidden
}

// Online returns a snapshot of all online players.
func (r *Registry) Online() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]State, 0, len(r.players))
	for _, s := range r.players {
		out = append(out, *s)
	}
	return out
}

// ApplyAFKEffects toggles the configured side effects for a player
// entering AFK. Invulnerability is only granted when no external
// protection is already in place, so it can be reverted safely later.
func (r *Registry) ApplyAFKEffects(id uuid.UUID, cfg config.AFKConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.players[id]
	if !ok {
		return
	}

	s.PickupEnabled = cfg.ItemPickup
	s.SleepIgnored = cfg.SleepingIgnored
	if cfg.Invulnerable && !r.protection(id) {
		s.Invulnerable = true
		s.grantedInvulnerability = true
	}
}

// ClearAFKEffects reverts the side effects for a player leaving AFK. An
// invulnerability grant is kept when an external protection source now
// covers the player.
func (r *Registry) ClearAFKEffects(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.players[id]
	if !ok {
		return
	}

	s.PickupEnabled = true
	s.SleepIgnored = false
	if s.grantedInvulnerability {
		if !r.protection(id) {
			s.Invulnerable = false
		}
		s.grantedInvulnerability = false
	}
}
