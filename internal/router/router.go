// internal/router/router.go
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordchain/internal/game"
	"github.com/jason-s-yu/wordchain/internal/models"
	"github.com/sirupsen/logrus"
)

// InboundType names a client request.
type InboundType string

const (
	TypeCreateRoom InboundType = "createRoom"
	TypeJoinRoom   InboundType = "joinRoom"
	TypeStartGame  InboundType = "startGame"
	TypeSubmitWord InboundType = "submitWord"
	TypeLeaveRoom  InboundType = "leaveRoom"
	TypeEndGame    InboundType = "endGame"
)

// ReasonAllPlayersLeft is sent with roomDeleted when the last player leaves.
const ReasonAllPlayersLeft = "All players left"

// ErrUnknownRequest is returned for inbound types the router does not handle.
var ErrUnknownRequest = errors.New("unknown request type")

// Inbound is one decoded client request.
type Inbound struct {
	Type   InboundType `json:"type"`
	RoomID string      `json:"roomId,omitempty"`
	Word   string      `json:"word,omitempty"`
}

// Client identifies who sent a request.
type Client struct {
	Username string
	Session  game.SessionRef
}

// Membership tracks which sessions receive a room's broadcasts.
type Membership interface {
	Join(roomID uuid.UUID, session game.SessionRef)
	Leave(roomID uuid.UUID, session game.SessionRef)
	CloseRoom(roomID uuid.UUID)
	RoomsOf(session game.SessionRef) []uuid.UUID
}

// StatsStore persists per-player counters. GetUserStats must create a zeroed
// record for a username it has never seen, since players authenticated by
// token may never have been stored.
type StatsStore interface {
	GetUserStats(ctx context.Context, username string) (*models.User, error)
	SaveUserStats(ctx context.Context, u *models.User) error
}

// Router turns client requests into room operations. It holds no game state
// of its own; rooms serialize themselves.
type Router struct {
	registry *game.Registry
	notifier game.Notifier
	members  Membership
	stats    StatsStore
	logger   *logrus.Logger

	statsTimeout time.Duration
	wg           sync.WaitGroup
}

// New wires the router into the registry's lifecycle hooks. stats may be nil,
// in which case results are not persisted.
func New(registry *game.Registry, notifier game.Notifier, members Membership, stats StatsStore, logger *logrus.Logger) *Router {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &Router{
		registry:     registry,
		notifier:     notifier,
		members:      members,
		stats:        stats,
		logger:       logger,
		statsTimeout: 5 * time.Second,
	}
	registry.OnGameEnd(r.recordResults)
	registry.OnDelete(members.CloseRoom)
	return r
}

// Dispatch handles one inbound request. Failures the client needs to hear
// about are sent to it as errorOccurred (or by the room itself) before the
// error is returned.
func (r *Router) Dispatch(ctx context.Context, c Client, in Inbound) error {
	switch in.Type {
	case TypeCreateRoom:
		return r.createRoom(c)
	case TypeJoinRoom:
		return r.joinRoom(c, in.RoomID)
	case TypeStartGame:
		return r.startGame(c, in.RoomID)
	case TypeSubmitWord:
		return r.submitWord(c, in.RoomID, in.Word)
	case TypeLeaveRoom:
		return r.leaveRoom(c, in.RoomID)
	case TypeEndGame:
		return r.endGame(c, in.RoomID)
	default:
		r.sendError(c, uuid.Nil, game.CodeBadRequest, fmt.Sprintf("Unknown request type %q.", in.Type))
		return fmt.Errorf("%w: %q", ErrUnknownRequest, in.Type)
	}
}

// Disconnect removes the client from every room it joined.
func (r *Router) Disconnect(ctx context.Context, c Client) {
	for _, roomID := range r.members.RoomsOf(c.Session) {
		if err := r.leaveRoom(c, roomID.String()); err != nil && !errors.Is(err, game.ErrPlayerNotFound) {
			r.logger.WithError(err).WithFields(logrus.Fields{"room": roomID.String(), "player": c.Username}).Warn("Leave on disconnect failed")
		}
	}
}

// Wait blocks until in-flight stats updates finish.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) createRoom(c Client) error {
	room, err := r.registry.Create(c.Username, c.Session)
	if err != nil {
		r.sendError(c, uuid.Nil, game.CodeFor(err), game.ReasonFor(err))
		return err
	}
	r.members.Join(room.ID, c.Session)
	r.notifyPlayer(c, room.ID, game.RoomCreated{RoomID: room.ID, Creator: room.Creator})
	if r.registry.DictionaryDegraded() {
		r.sendError(c, room.ID, game.CodeDictionaryLoad, "Dictionary unavailable; no words will be accepted.")
	}
	return nil
}

func (r *Router) joinRoom(c Client, rawID string) error {
	room, err := r.lookup(c, rawID)
	if err != nil {
		return err
	}
	if err := room.AddPlayer(c.Username, c.Session); err != nil {
		r.sendError(c, room.ID, game.CodeFor(err), game.ReasonFor(err))
		return err
	}
	r.members.Join(room.ID, c.Session)

	players := room.Players()
	r.notifyPlayer(c, room.ID, game.RoomJoined{RoomID: room.ID, Creator: room.Creator, Players: players})
	r.notifyRoom(room.ID, game.PlayerJoined{Username: c.Username, Players: players})
	return nil
}

func (r *Router) startGame(c Client, rawID string) error {
	room, err := r.memberRoom(c, rawID)
	if err != nil {
		return err
	}
	err = room.StartGame()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, game.ErrInsufficientPlayers), errors.Is(err, game.ErrGameInProgress):
		// The room already told everyone, or there was nothing to do.
		return err
	default:
		r.sendError(c, room.ID, game.CodeFor(err), game.ReasonFor(err))
		return err
	}
}

func (r *Router) submitWord(c Client, rawID, word string) error {
	room, err := r.memberRoom(c, rawID)
	if err != nil {
		return err
	}
	// The room reports wordPlayFailed to the player itself.
	return room.PlayWord(c.Username, word)
}

func (r *Router) leaveRoom(c Client, rawID string) error {
	room, err := r.lookup(c, rawID)
	if err != nil {
		return err
	}
	// Unsubscribe first so the leaver hears nothing the departure triggers.
	r.members.Leave(room.ID, c.Session)
	// The room announces playerLeft ahead of any turn change or gameEnded.
	remaining, err := room.Leave(c.Username)
	if err != nil {
		r.sendError(c, room.ID, game.CodeFor(err), game.ReasonFor(err))
		return err
	}
	if remaining == 0 {
		room.Delete(ReasonAllPlayersLeft)
	}
	return nil
}

func (r *Router) endGame(c Client, rawID string) error {
	room, err := r.memberRoom(c, rawID)
	if err != nil {
		return err
	}
	if _, ok := room.EndGame(); !ok {
		r.sendError(c, room.ID, game.CodeGameNotInProgress, game.ReasonFor(game.ErrGameNotInProgress))
		return game.ErrGameNotInProgress
	}
	return nil
}

// lookup resolves a room id, reporting failures to the client.
func (r *Router) lookup(c Client, rawID string) (*game.Room, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		r.sendError(c, uuid.Nil, game.CodeBadRequest, "Invalid room id.")
		return nil, fmt.Errorf("parse room id %q: %w", rawID, err)
	}
	room, err := r.registry.Get(id)
	if err != nil {
		r.sendError(c, id, game.CodeFor(err), game.ReasonFor(err))
		return nil, err
	}
	return room, nil
}

// memberRoom is lookup plus a check that the client plays in the room.
func (r *Router) memberRoom(c Client, rawID string) (*game.Room, error) {
	room, err := r.lookup(c, rawID)
	if err != nil {
		return nil, err
	}
	if !room.HasPlayer(c.Username) {
		r.sendError(c, room.ID, game.CodePlayerNotFound, game.ReasonFor(game.ErrPlayerNotFound))
		return nil, game.ErrPlayerNotFound
	}
	return room, nil
}

// recordResults bumps counters for every winner. It runs off the room lock
// and returns immediately.
func (r *Router) recordResults(room *game.Room, res game.GameResult) {
	if r.stats == nil || len(res.Winners) == 0 {
		return
	}
	winners := append([]string(nil), res.Winners...)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for _, username := range winners {
			if err := r.bumpStats(username); err != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{"room": res.RoomID.String(), "player": username}).Warn("Stats update failed")
			}
		}
	}()
}

func (r *Router) bumpStats(username string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.statsTimeout)
	defer cancel()

	u, err := r.stats.GetUserStats(ctx, username)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	u.GamesPlayed++
	u.GamesWon++
	if err := r.stats.SaveUserStats(ctx, u); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// sendError reports a failure to one client. roomID is uuid.Nil when the
// request never resolved to a room.
func (r *Router) sendError(c Client, roomID uuid.UUID, code, message string) {
	r.notifyPlayer(c, roomID, game.ErrorOccurred{Message: message, Code: code})
}

func (r *Router) notifyPlayer(c Client, roomID uuid.UUID, ev game.Event) {
	if err := r.notifier.NotifyPlayer(roomID, c.Session, ev); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{"player": c.Username, "event": ev.Name()}).Warn("Failed to notify player")
	}
}

func (r *Router) notifyRoom(roomID uuid.UUID, ev game.Event) {
	if err := r.notifier.NotifyRoom(roomID, ev); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{"room": roomID.String(), "event": ev.Name()}).Warn("Failed to notify room")
	}
}
