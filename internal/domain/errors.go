package domain

import "errors"

// Domain errors
var (
	ErrNoPlayerData       = errors.New("no player data loaded for player")
	ErrUnknownCategory    = errors.New("unknown time category")
	ErrConfigInvalid      = errors.New("settings are invalid")
	ErrNoLeaderboard      = errors.New("no leaderboard computed for category")
	ErrPositionOutOfRange = errors.New("leaderboard position out of range")
	ErrSnapshotNotFound   = errors.New("leaderboard snapshot not found")
	ErrNegativeSeconds    = errors.New("play time seconds must not be negative")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNoPlayerData) ||
		errors.Is(err, ErrNoLeaderboard) ||
		errors.Is(err, ErrSnapshotNotFound)
}
