package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// RoomEventRecord is one outbound event as queued for the historian.
// Session is set only for events addressed to a single player.
type RoomEventRecord struct {
	RoomID    uuid.UUID       `json:"room_id"`
	Session   string          `json:"session,omitempty"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}
