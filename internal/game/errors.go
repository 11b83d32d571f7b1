// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

var (
	ErrRoomFull            = errors.New("room is full")
	ErrDuplicatePlayer     = errors.New("player already in room")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrInsufficientPlayers = errors.New("not enough players to start")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrInvalidWord         = errors.New("word not in dictionary")
	ErrWrongStartingLetter = errors.New("word does not start with the last letter of the previous word")
	ErrWordAlreadyUsed     = errors.New("word already used")

	// ErrNotificationDelivery wraps transport failures reported by a Notifier.
	ErrNotificationDelivery = errors.New("notification delivery failure")

	ErrRoomNotFound      = errors.New("room not found")
	ErrGameInProgress    = errors.New("game already in progress")
	ErrGameNotInProgress = errors.New("game not in progress")
	ErrRoomClosed        = errors.New("room is closed")
)

// DeliveryError is returned by Notifier.NotifyRoom when only part of a room
// could be reached. Sessions lists the members that missed the event.
type DeliveryError struct {
	Sessions []SessionRef
	Err      error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %d session(s) unreachable", ErrNotificationDelivery, len(e.Sessions))
	}
	return fmt.Sprintf("%s: %d session(s) unreachable: %v", ErrNotificationDelivery, len(e.Sessions), e.Err)
}

func (e *DeliveryError) Unwrap() error { return ErrNotificationDelivery }

// Wire codes carried in errorOccurred and failure events.
const (
	CodeRoomFull             = "RoomFull"
	CodeDuplicatePlayer      = "DuplicatePlayer"
	CodePlayerNotFound       = "PlayerNotFound"
	CodeInsufficientPlayers  = "InsufficientPlayers"
	CodeNotYourTurn          = "NotYourTurn"
	CodeInvalidWord          = "InvalidWord"
	CodeWrongStartingLetter  = "WrongStartingLetter"
	CodeWordAlreadyUsed      = "WordAlreadyUsed"
	CodeNotificationDelivery = "NotificationDeliveryFailure"
	CodeDictionaryLoad       = "DictionaryLoadFailure"
	CodeRoomNotFound         = "RoomNotFound"
	CodeGameInProgress       = "GameInProgress"
	CodeGameNotInProgress    = "GameNotInProgress"
	CodeRoomClosed           = "RoomClosed"
	CodeBadRequest           = "BadRequest"
	CodeInternal             = "Internal"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrRoomFull, CodeRoomFull},
	{ErrDuplicatePlayer, CodeDuplicatePlayer},
	{ErrPlayerNotFound, CodePlayerNotFound},
	{ErrInsufficientPlayers, CodeInsufficientPlayers},
	{ErrNotYourTurn, CodeNotYourTurn},
	{ErrInvalidWord, CodeInvalidWord},
	{ErrWrongStartingLetter, CodeWrongStartingLetter},
	{ErrWordAlreadyUsed, CodeWordAlreadyUsed},
	{ErrNotificationDelivery, CodeNotificationDelivery},
	{ErrRoomNotFound, CodeRoomNotFound},
	{ErrGameInProgress, CodeGameInProgress},
	{ErrGameNotInProgress, CodeGameNotInProgress},
	{ErrRoomClosed, CodeRoomClosed},
}

// CodeFor maps an error from this package to its wire code.
func CodeFor(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// ReasonFor returns the human readable reason sent to players for err.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		return "It's not your turn."
	case errors.Is(err, ErrInvalidWord):
		return "Invalid word."
	case errors.Is(err, ErrWrongStartingLetter):
		return "Word must start with the last letter of the previous word."
	case errors.Is(err, ErrWordAlreadyUsed):
		return "Word has already been used."
	case errors.Is(err, ErrInsufficientPlayers):
		return "At least 2 players are required to start the game."
	case errors.Is(err, ErrRoomFull):
		return "Room is full."
	case errors.Is(err, ErrDuplicatePlayer):
		return "You are already in this room."
	case errors.Is(err, ErrGameNotInProgress):
		return "The game is not in progress."
	case errors.Is(err, ErrGameInProgress):
		return "The game has already started."
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found."
	case errors.Is(err, ErrRoomClosed):
		return "Room is closed."
	case errors.Is(err, ErrPlayerNotFound):
		return "Player not found."
	}
	return "Something went wrong."
}
