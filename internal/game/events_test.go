package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEnvelope(t *testing.T) {
	data, err := Encode(WordPlayed{Username: "alice", Word: "apple", Points: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"wordPlayed","data":{"username":"alice","word":"apple","points":5}}`, string(data))
}

func TestEncodeGameEndedOmitsWinnerOnTie(t *testing.T) {
	data, err := Encode(GameEnded{Winners: []string{"a", "b"}, PlayerScores: map[string]int{"a": 3, "b": 3}})
	require.NoError(t, err)

	var frame struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "gameEnded", frame.Event)
	_, hasWinner := frame.Data["winner"]
	assert.False(t, hasWinner)
	assert.Len(t, frame.Data["winners"], 2)
}

func TestEventNamesAreWireContract(t *testing.T) {
	cases := []struct {
		ev   Event
		name string
	}{
		{RoomCreated{}, "roomCreated"},
		{PlayerJoined{}, "playerJoined"},
		{RoomJoined{}, "roomJoined"},
		{PlayerLeft{}, "playerLeft"},
		{GameStarted{}, "gameStarted"},
		{GameStartedFailed{}, "gameStartedFailed"},
		{YourTurn{}, "yourTurn"},
		{TurnChanged{}, "turnChanged"},
		{WordPlayed{}, "wordPlayed"},
		{WordPlayFailed{}, "wordPlayFailed"},
		{TurnTimedOut{}, "turnTimedOut"},
		{GameEnded{}, "gameEnded"},
		{RoomDeleted{}, "roomDeleted"},
		{ErrorOccurred{}, "errorOccurred"},
	}
	for _, c := range cases {
		assert.Equal(t, c.name, string(c.ev.Name()))
	}
}
