package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a player account. Guests are ephemeral users minted by the
// guest session endpoint.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`

	IsEphemeral bool `json:"is_ephemeral"`

	GamesPlayed int `json:"games_played"`
	GamesWon    int `json:"games_won"`

	CreatedAt time.Time `json:"created_at"`
}
