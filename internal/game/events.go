// internal/game/events.go
package game

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventName is the wire name of an outbound event. These strings are the
// client contract and must not change.
type EventName string

const (
	EventRoomCreated       EventName = "roomCreated"
	EventPlayerJoined      EventName = "playerJoined"
	EventRoomJoined        EventName = "roomJoined"
	EventPlayerLeft        EventName = "playerLeft"
	EventGameStarted       EventName = "gameStarted"
	EventGameStartedFailed EventName = "gameStartedFailed"
	EventYourTurn          EventName = "yourTurn"
	EventTurnChanged       EventName = "turnChanged"
	EventWordPlayed        EventName = "wordPlayed"
	EventWordPlayFailed    EventName = "wordPlayFailed"
	EventTurnTimedOut      EventName = "turnTimedOut"
	EventGameEnded         EventName = "gameEnded"
	EventRoomDeleted       EventName = "roomDeleted"
	EventErrorOccurred     EventName = "errorOccurred"
)

// Event is implemented only by the payload types in this file, so a type
// switch over Event is exhaustive.
type Event interface {
	Name() EventName
	isEvent()
}

type RoomCreated struct {
	RoomID  uuid.UUID `json:"roomId"`
	Creator string    `json:"creator"`
}

type PlayerJoined struct {
	Username string   `json:"username"`
	Players  []string `json:"players"`
}

// RoomJoined is sent only to the player who just joined.
type RoomJoined struct {
	RoomID  uuid.UUID `json:"roomId"`
	Creator string    `json:"creator"`
	Players []string  `json:"players"`
}

type PlayerLeft struct {
	Username string   `json:"username"`
	Players  []string `json:"players"`
}

type GameStarted struct {
	TurnOrder     []string `json:"turnOrder"`
	CurrentPlayer string   `json:"currentPlayer"`
}

type GameStartedFailed struct {
	Reason string `json:"reason"`
}

// YourTurn tells the current player how many seconds they have to submit.
type YourTurn struct {
	TimeRemaining int `json:"timeRemaining"`
}

type TurnChanged struct {
	CurrentPlayer string `json:"currentPlayer"`
}

type WordPlayed struct {
	Username string `json:"username"`
	Word     string `json:"word"`
	Points   int    `json:"points"`
}

type WordPlayFailed struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

type TurnTimedOut struct {
	Player string `json:"player"`
}

// GameEnded carries the full winner set. Winner is only filled when exactly
// one player holds the top score.
type GameEnded struct {
	Winners      []string       `json:"winners"`
	Winner       string         `json:"winner,omitempty"`
	PlayerScores map[string]int `json:"playerScores"`
}

type RoomDeleted struct {
	Reason string `json:"reason"`
}

// ErrorOccurred is a best-effort error report. Redirect, when set, is the view
// the client should fall back to.
type ErrorOccurred struct {
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func (RoomCreated) Name() EventName       { return EventRoomCreated }
func (PlayerJoined) Name() EventName      { return EventPlayerJoined }
func (RoomJoined) Name() EventName        { return EventRoomJoined }
func (PlayerLeft) Name() EventName        { return EventPlayerLeft }
func (GameStarted) Name() EventName       { return EventGameStarted }
func (GameStartedFailed) Name() EventName { return EventGameStartedFailed }
func (YourTurn) Name() EventName          { return EventYourTurn }
func (TurnChanged) Name() EventName       { return EventTurnChanged }
func (WordPlayed) Name() EventName        { return EventWordPlayed }
func (WordPlayFailed) Name() EventName    { return EventWordPlayFailed }
func (TurnTimedOut) Name() EventName      { return EventTurnTimedOut }
func (GameEnded) Name() EventName         { return EventGameEnded }
func (RoomDeleted) Name() EventName       { return EventRoomDeleted }
func (ErrorOccurred) Name() EventName     { return EventErrorOccurred }

func (RoomCreated) isEvent()       {}
func (PlayerJoined) isEvent()      {}
func (RoomJoined) isEvent()        {}
func (PlayerLeft) isEvent()        {}
func (GameStarted) isEvent()       {}
func (GameStartedFailed) isEvent() {}
func (YourTurn) isEvent()          {}
func (TurnChanged) isEvent()       {}
func (WordPlayed) isEvent()        {}
func (WordPlayFailed) isEvent()    {}
func (TurnTimedOut) isEvent()      {}
func (GameEnded) isEvent()         {}
func (RoomDeleted) isEvent()       {}
func (ErrorOccurred) isEvent()     {}

// Envelope is the JSON frame written to clients.
type Envelope struct {
	Event EventName `json:"event"`
	Data  Event     `json:"data"`
}

// Encode marshals ev into its wire envelope.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(Envelope{Event: ev.Name(), Data: ev})
}
