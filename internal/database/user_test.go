package database

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordchain/internal/config"
	"github.com/jason-s-yu/wordchain/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireDB connects to the configured postgres or skips the test.
func requireDB(t *testing.T) context.Context {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	if err := ConnectDB(ctx, cfg.Postgres, logger); err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(Close)
	require.NoError(t, Migrate(ctx))
	return ctx
}

func TestUserStatsRoundTrip(t *testing.T) {
	ctx := requireDB(t)

	u := &models.User{Username: "test-" + uuid.NewString()[:8], IsEphemeral: true}
	require.NoError(t, CreateUser(ctx, u))
	t.Cleanup(func() { _, _ = DB.Exec(context.Background(), `DELETE FROM users WHERE id=$1`, u.ID) })

	got, err := GetUserByUsername(ctx, u.Username)
	require.NoError(t, err)
	assert.Equal(t, 0, got.GamesPlayed)

	got.GamesPlayed++
	got.GamesWon++
	require.NoError(t, SaveUserStats(ctx, got))

	again, err := Users{}.GetUserStats(ctx, u.Username)
	require.NoError(t, err)
	assert.Equal(t, 1, again.GamesPlayed)
	assert.Equal(t, 1, again.GamesWon)
}

func TestGetUnknownUser(t *testing.T) {
	ctx := requireDB(t)
	_, err := GetUserByUsername(ctx, "nobody-"+uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStatsForUnstoredUser(t *testing.T) {
	ctx := requireDB(t)
	name := "jwt-" + uuid.NewString()[:8]
	t.Cleanup(func() { _, _ = DB.Exec(context.Background(), `DELETE FROM users WHERE username=$1`, name) })

	u, err := Users{}.GetUserStats(ctx, name)
	require.NoError(t, err)
	assert.False(t, u.IsEphemeral)
	assert.Equal(t, 0, u.GamesWon)

	u.GamesPlayed++
	u.GamesWon++
	require.NoError(t, Users{}.SaveUserStats(ctx, u))

	// The second call finds the existing row instead of inserting again.
	again, err := Users{}.GetUserStats(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, 1, again.GamesWon)
}

func TestSaveRoomEvents(t *testing.T) {
	ctx := requireDB(t)
	roomID := uuid.New()
	t.Cleanup(func() { _, _ = DB.Exec(context.Background(), `DELETE FROM room_events WHERE room_id=$1`, roomID) })

	recs := []models.RoomEventRecord{
		{RoomID: roomID, Event: "gameStarted", Payload: json.RawMessage(`{"turnOrder":["a","b"]}`), Timestamp: time.Now().UnixMilli()},
		{RoomID: roomID, Session: "s1", Event: "yourTurn", Payload: json.RawMessage(`{"timeRemaining":30}`), Timestamp: time.Now().UnixMilli()},
	}
	require.NoError(t, SaveRoomEvents(ctx, recs))

	var n int
	require.NoError(t, DB.QueryRow(ctx, `SELECT COUNT(*) FROM room_events WHERE room_id=$1`, roomID).Scan(&n))
	assert.Equal(t, 2, n)
}
