package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activity event types carried over the Kafka ingestion topic.
const (
	ActivityEventJoin     = "join"
	ActivityEventLeave    = "leave"
	ActivityEventMove     = "move"
	ActivityEventInteract = "interact"
)

// ActivityEvent is one host-reported player activity observation.
type ActivityEvent struct {
	Type     string    `json:"type"`
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name,omitempty"`
	From     *BlockPos `json:"from,omitempty"`
	To       *BlockPos `json:"to,omitempty"`
	At       time.Time `json:"at"`
}
