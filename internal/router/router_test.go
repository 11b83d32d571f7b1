package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordchain/internal/dictionary"
	"github.com/jason-s-yu/wordchain/internal/game"
	"github.com/jason-s-yu/wordchain/internal/hub"
	"github.com/jason-s-yu/wordchain/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	mu      sync.Mutex
	users   map[string]*models.User
	failGet map[string]bool
}

func newFakeStats(names ...string) *fakeStats {
	fs := &fakeStats{users: map[string]*models.User{}, failGet: map[string]bool{}}
	for _, n := range names {
		fs.users[n] = &models.User{ID: uuid.New(), Username: n}
	}
	return fs
}

func (f *fakeStats) GetUserStats(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet[username] {
		return nil, errors.New("db unavailable")
	}
	u, ok := f.users[username]
	if !ok {
		u = &models.User{ID: uuid.New(), Username: username}
		f.users[username] = u
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStats) SaveUserStats(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.Username] = &cp
	return nil
}

func (f *fakeStats) get(name string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[name]
}

type fixture struct {
	router *Router
	reg    *game.Registry
	hub    *hub.Hub
	stats  *fakeStats
	conns  map[string]*hub.Connection
}

func newFixture(t *testing.T, opts game.RegistryOptions) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := hub.New(logger)
	dict := dictionary.FromWords([]string{"apple", "elephant", "tiger", "rabbit", "tomato", "orange", "egg", "goat"})
	if opts.Room.Seed == 0 {
		opts.Room.Seed = 7
	}
	reg := game.NewRegistry(dict, h, opts, logger)
	stats := newFakeStats("alice", "bob", "carol")
	f := &fixture{
		router: New(reg, h, h, stats, logger),
		reg:    reg,
		hub:    h,
		stats:  stats,
		conns:  map[string]*hub.Connection{},
	}
	t.Cleanup(func() {
		for _, r := range reg.List() {
			r.Delete("test cleanup")
		}
		f.router.Wait()
	})
	return f
}

func (f *fixture) client(name string) Client {
	c, ok := f.conns[name]
	if !ok {
		c = hub.NewConnection(name, 64, nil)
		f.hub.Register(c)
		f.conns[name] = c
	}
	return Client{Username: name, Session: c.Session}
}

type frame struct {
	Event game.EventName  `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// drain returns every frame queued for name.
func (f *fixture) drain(t *testing.T, name string) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case data := <-f.conns[name].OutChan:
			var fr frame
			require.NoError(t, json.Unmarshal(data, &fr))
			out = append(out, fr)
		default:
			return out
		}
	}
}

func names(frames []frame) []game.EventName {
	out := make([]game.EventName, len(frames))
	for i, fr := range frames {
		out[i] = fr.Event
	}
	return out
}

func find(t *testing.T, frames []frame, name game.EventName, into any) {
	t.Helper()
	for _, fr := range frames {
		if fr.Event == name {
			require.NoError(t, json.Unmarshal(fr.Data, into))
			return
		}
	}
	t.Fatalf("no %s frame in %v", name, names(frames))
}

func (f *fixture) createRoom(t *testing.T, creator string) uuid.UUID {
	t.Helper()
	require.NoError(t, f.router.Dispatch(context.Background(), f.client(creator), Inbound{Type: TypeCreateRoom}))
	var created game.RoomCreated
	find(t, f.drain(t, creator), game.EventRoomCreated, &created)
	return created.RoomID
}

func TestCreateAndJoin(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	ctx := context.Background()
	roomID := f.createRoom(t, "alice")

	require.NoError(t, f.router.Dispatch(ctx, f.client("bob"), Inbound{Type: TypeJoinRoom, RoomID: roomID.String()}))

	bobFrames := f.drain(t, "bob")
	var joined game.RoomJoined
	find(t, bobFrames, game.EventRoomJoined, &joined)
	assert.Equal(t, "alice", joined.Creator)
	assert.Equal(t, []string{"alice", "bob"}, joined.Players)

	var pj game.PlayerJoined
	find(t, f.drain(t, "alice"), game.EventPlayerJoined, &pj)
	assert.Equal(t, "bob", pj.Username)
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	err := f.router.Dispatch(context.Background(), f.client("bob"), Inbound{Type: TypeJoinRoom, RoomID: uuid.NewString()})
	assert.ErrorIs(t, err, game.ErrRoomNotFound)

	var eo game.ErrorOccurred
	find(t, f.drain(t, "bob"), game.EventErrorOccurred, &eo)
	assert.Equal(t, game.CodeRoomNotFound, eo.Code)
}

func TestJoinWithBadRoomID(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	err := f.router.Dispatch(context.Background(), f.client("bob"), Inbound{Type: TypeJoinRoom, RoomID: "lobby-1"})
	assert.Error(t, err)

	var eo game.ErrorOccurred
	find(t, f.drain(t, "bob"), game.EventErrorOccurred, &eo)
	assert.Equal(t, game.CodeBadRequest, eo.Code)
}

func TestUnknownRequestType(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	err := f.router.Dispatch(context.Background(), f.client("bob"), Inbound{Type: "dance"})
	assert.ErrorIs(t, err, ErrUnknownRequest)
	assert.Equal(t, []game.EventName{game.EventErrorOccurred}, names(f.drain(t, "bob")))
}

func TestStartGameRequiresMembership(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	roomID := f.createRoom(t, "alice")

	err := f.router.Dispatch(context.Background(), f.client("mallory"), Inbound{Type: TypeStartGame, RoomID: roomID.String()})
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestStartWithOnePlayerIsReported(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	roomID := f.createRoom(t, "alice")

	err := f.router.Dispatch(context.Background(), f.client("alice"), Inbound{Type: TypeStartGame, RoomID: roomID.String()})
	assert.ErrorIs(t, err, game.ErrInsufficientPlayers)
	assert.Equal(t, []game.EventName{game.EventGameStartedFailed}, names(f.drain(t, "alice")))
}

func TestFullGameFlowRecordsWinnerStats(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	ctx := context.Background()
	roomID := f.createRoom(t, "alice")
	id := roomID.String()

	require.NoError(t, f.router.Dispatch(ctx, f.client("bob"), Inbound{Type: TypeJoinRoom, RoomID: id}))
	require.NoError(t, f.router.Dispatch(ctx, f.client("alice"), Inbound{Type: TypeStartGame, RoomID: id}))

	var started game.GameStarted
	find(t, f.drain(t, "alice"), game.EventGameStarted, &started)
	assert.Equal(t, []string{"alice", "bob"}, started.TurnOrder)
	f.drain(t, "bob")

	require.NoError(t, f.router.Dispatch(ctx, f.client("alice"), Inbound{Type: TypeSubmitWord, RoomID: id, Word: "Apple"}))
	err := f.router.Dispatch(ctx, f.client("alice"), Inbound{Type: TypeSubmitWord, RoomID: id, Word: "elephant"})
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	require.NoError(t, f.router.Dispatch(ctx, f.client("alice"), Inbound{Type: TypeEndGame, RoomID: id}))

	var ended game.GameEnded
	find(t, f.drain(t, "bob"), game.EventGameEnded, &ended)
	assert.Equal(t, "alice", ended.Winner)
	assert.Equal(t, map[string]int{"alice": 5, "bob": 0}, ended.PlayerScores)

	f.router.Wait()
	assert.Equal(t, 1, f.stats.get("alice").GamesWon)
	assert.Equal(t, 1, f.stats.get("alice").GamesPlayed)
	assert.Equal(t, 0, f.stats.get("bob").GamesWon)
}

func TestEndGameOutsideGame(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	roomID := f.createRoom(t, "alice")

	err := f.router.Dispatch(context.Background(), f.client("alice"), Inbound{Type: TypeEndGame, RoomID: roomID.String()})
	assert.ErrorIs(t, err, game.ErrGameNotInProgress)
	var eo game.ErrorOccurred
	find(t, f.drain(t, "alice"), game.EventErrorOccurred, &eo)
	assert.Equal(t, game.CodeGameNotInProgress, eo.Code)
}

func TestStatsFailureDoesNotBlockOtherWinners(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	ctx := context.Background()
	f.stats.failGet["alice"] = true
	roomID := f.createRoom(t, "alice")
	id := roomID.String()

	require.NoError(t, f.router.Dispatch(ctx, f.client("bob"), Inbound{Type: TypeJoinRoom, RoomID: id}))
	require.NoError(t, f.router.Dispatch(ctx, f.client("alice"), Inbound{Type: TypeStartGame, RoomID: id}))
	// 0-0 tie: both win.
	require.NoError(t, f.router.Dispatch(ctx, f.client("bob"), Inbound{Type: TypeEndGame, RoomID: id}))

	f.router.Wait()
	assert.Equal(t, 1, f.stats.get("bob").GamesWon)
	assert.Equal(t, 0, f.stats.get("alice").GamesWon)
}

func TestWinnerWithoutStoredRecordIsCounted(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	f.stats.mu.Lock()
	f.stats.users = map[string]*models.User{}
	f.stats.mu.Unlock()

	ctx := context.Background()
	roomID := f.createRoom(t, "alice")
	id := roomID.String()
	require.NoError(t, f.router.Dispatch(ctx, f.client("bob"), Inbound{Type: TypeJoinRoom, RoomID: id}))
	require.NoError(t, f.router.Dispatch(ctx, f.client("alice"), Inbound{Type: TypeStartGame, RoomID: id}))
	require.NoError(t, f.router.Dispatch(ctx, f.client("alice"), Inbound{Type: TypeSubmitWord, RoomID: id, Word: "apple"}))
	require.NoError(t, f.router.Dispatch(ctx, f.client("alice"), Inbound{Type: TypeEndGame, RoomID: id}))

	f.router.Wait()
	assert.Equal(t, 1, f.stats.get("alice").GamesWon)
	assert.Equal(t, 1, f.stats.get("alice").GamesPlayed)
}

func TestLeaveNotifiesRoom(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	ctx := context.Background()
	roomID := f.createRoom(t, "alice")
	id := roomID.String()
	require.NoError(t, f.router.Dispatch(ctx, f.client("bob"), Inbound{Type: TypeJoinRoom, RoomID: id}))
	require.NoError(t, f.router.Dispatch(ctx, f.client("carol"), Inbound{Type: TypeJoinRoom, RoomID: id}))
	f.drain(t, "alice")
	f.drain(t, "bob")
	f.drain(t, "carol")

	require.NoError(t, f.router.Dispatch(ctx, f.client("bob"), Inbound{Type: TypeLeaveRoom, RoomID: id}))

	var left game.PlayerLeft
	find(t, f.drain(t, "alice"), game.EventPlayerLeft, &left)
	assert.Equal(t, "bob", left.Username)
	assert.Equal(t, []string{"alice", "carol"}, left.Players)
	assert.Empty(t, f.drain(t, "bob"))
	assert.Empty(t, f.hub.RoomsOf(f.client("bob").Session))
}

func TestLastPlayerLeavingDeletesRoom(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{})
	roomID := f.createRoom(t, "alice")

	require.NoError(t, f.router.Dispatch(context.Background(), f.client("alice"), Inbound{Type: TypeLeaveRoom, RoomID: roomID.String()}))

	_, err := f.reg.Get(roomID)
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
	assert.Empty(t, f.hub.Members(roomID))
}

func TestDisconnectEndsGameAndCleansUp(t *testing.T) {
	f := newFixture(t, game.RegistryOptions{FinishedRetention: 20 * time.Millisecond})
	ctx := context.Background()
	roomID := f.createRoom(t, "alice")
	id := roomID.String()
	require.NoError(t, f.router.Dispatch(ctx, f.client("bob"), Inbound{Type: TypeJoinRoom, RoomID: id}))
	require.NoError(t, f.router.Dispatch(ctx, f.client("alice"), Inbound{Type: TypeStartGame, RoomID: id}))
	require.NoError(t, f.router.Dispatch(ctx, f.client("alice"), Inbound{Type: TypeSubmitWord, RoomID: id, Word: "apple"}))
	f.drain(t, "alice")
	f.drain(t, "bob")

	f.router.Disconnect(ctx, f.client("alice"))

	bobFrames := f.drain(t, "bob")
	var ended game.GameEnded
	find(t, bobFrames, game.EventGameEnded, &ended)
	// Departed players are not scored.
	assert.Equal(t, []string{"bob"}, ended.Winners)
	// bob learns alice left before learning the game is over.
	require.GreaterOrEqual(t, len(bobFrames), 2)
	assert.Equal(t, []game.EventName{game.EventPlayerLeft, game.EventGameEnded}, names(bobFrames)[:2])
	assert.Empty(t, f.drain(t, "alice"))

	require.Eventually(t, func() bool { return f.reg.Len() == 0 }, time.Second, 5*time.Millisecond)
	f.router.Wait()
	assert.Equal(t, 1, f.stats.get("bob").GamesWon)
	assert.Equal(t, 0, f.stats.get("alice").GamesWon)
}
