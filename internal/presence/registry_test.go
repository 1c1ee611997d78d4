package presence

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJoinLeave(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	id := uuid.New()

	r.Join(id, "alex")
	assert.True(t, r.IsOnline(id))
	name, ok := r.Name(id)
	require.True(t, ok)
	assert.Equal(t, "alex", name)

	r.Leave(id)
	assert.False(t, r.IsOnline(id))
}

func TestHiddenFlag(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	id := uuid.New()
	r.Join(id, "alex")

	assert.False(t, r.IsHidden(id))
	r.SetHidden(id, true)
	assert.True(t, r.IsHidden(id))
}

func TestAFKEffectsApplyAndRevert(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	id := uuid.New()
	r.Join(id, "alex")

	cfg := config.AFKConfig{ItemPickup: false, Invulnerable: true, SleepingIgnored: true}
	r.ApplyAFKEffects(id, cfg)

	state := r.Online()[0]
	assert.False(t, state.PickupEnabled)
	assert.True(t, state.Invulnerable)
	assert.True(t, state.SleepIgnored)

	r.ClearAFKEffects(id)
	state = r.Online()[0]
	assert.True(t, state.PickupEnabled)
	assert.False(t, state.Invulnerable)
	assert.False(t, state.SleepIgnored)
}

func TestInvulnerabilityRespectsExternalGrant(t *testing.T) {
	granted := false
	r := NewRegistry(func(uuid.UUID) bool { return granted }, testLogger())
	id := uuid.New()
	r.Join(id, "alex")

	cfg := config.AFKConfig{Invulnerable: true, ItemPickup: true}
	r.ApplyAFKEffects(id, cfg)
	require.True(t, r.Online()[0].Invulnerable)

	// An external grant appears while AFK; the revert must leave the
	// protection in place.
	granted = true
	r.ClearAFKEffects(id)
	assert.True(t, r.Online()[0].Invulnerable)
}

func TestNoGrantWhenExternallyProtected(t *testing.T) {
	r := NewRegistry(func(uuid.UUID) bool { return true }, testLogger())
	id := uuid.New()
	r.Join(id, "alex")

	r.ApplyAFKEffects(id, config.AFKConfig{Invulnerable: true, ItemPickup: true})
	// Protection already exists elsewhere, nothing to grant or revert.
	assert.False(t, r.Online()[0].Invulnerable)
}
