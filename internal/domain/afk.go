package domain

// ToggleResult is the outcome of an AFK toggle request.
type ToggleResult string

const (
	// ToggleSuccessAFK means the player transitioned into AFK.
	ToggleSuccessAFK ToggleResult = "success_afk"
	// ToggleSuccessActive means the player transitioned out of AFK.
	ToggleSuccessActive ToggleResult = "success_no_longer_afk"
	// ToggleCancelled means an observer cancelled the transition; no state
	// changed.
	ToggleCancelled ToggleResult = "cancelled"
	// ToggleConfigError means the toggle was refused because the loaded
	// settings are invalid.
	ToggleConfigError ToggleResult = "config_error"
	// ToggleError means the toggle addressed a player with no loaded record.
	ToggleError ToggleResult = "error"
)
