// internal/game/registry.go
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordchain/internal/dictionary"
	"github.com/sirupsen/logrus"
)

// DefaultFinishedRetention is how long a finished room lingers so clients can
// read the results before it is deleted.
const DefaultFinishedRetention = 10 * time.Second

// Registry maps room IDs to rooms. It only guards the map; each room
// serializes its own state, so work on different rooms never contends here.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*Room

	dict      *dictionary.Dictionary
	notifier  Notifier
	roomOpts  RoomOptions
	retention time.Duration
	logger    *logrus.Logger

	onGameEnd func(room *Room, res GameResult)
	onDelete  func(roomID uuid.UUID)
}

// RegistryOptions configures rooms created by a Registry. RoomOptions hooks
// are owned by the registry and are overwritten.
type RegistryOptions struct {
	Room              RoomOptions
	FinishedRetention time.Duration
}

func NewRegistry(dict *dictionary.Dictionary, notifier Notifier, opts RegistryOptions, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.FinishedRetention <= 0 {
		opts.FinishedRetention = DefaultFinishedRetention
	}
	opts.Room.Logger = logger
	return &Registry{
		rooms:     make(map[uuid.UUID]*Room),
		dict:      dict,
		notifier:  notifier,
		roomOpts:  opts.Room,
		retention: opts.FinishedRetention,
		logger:    logger,
	}
}

// OnGameEnd registers a callback run (outside any room lock) whenever a game ends.
func (s *Registry) OnGameEnd(fn func(room *Room, res GameResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onGameEnd = fn
}

// OnDelete registers a callback run after a room is dropped from the registry.
func (s *Registry) OnDelete(fn func(roomID uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = fn
}

// Create builds a room owned by creator and stores it.
func (s *Registry) Create(creator string, session SessionRef) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	for _, taken := s.rooms[id]; taken; _, taken = s.rooms[id] {
		id = uuid.New()
	}

	opts := s.roomOpts
	var room *Room
	opts.OnGameEnd = func(res GameResult) { s.handleGameEnd(room, res) }
	opts.OnDelete = s.Delete
	room = NewRoom(id, creator, session, s.dict, s.notifier, opts)

	s.rooms[id] = room
	s.logger.WithFields(logrus.Fields{"room": id.String(), "creator": creator}).Info("Room created")
	return room, nil
}

// Get looks up a room.
func (s *Registry) Get(id uuid.UUID) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// ReasonRoomClosed is the roomDeleted reason when the registry drops a room
// that had not already deleted itself.
const ReasonRoomClosed = "Room closed"

// Delete drops the mapping for id and deletes the room, which stops its
// timers. Deleting an unknown id is a no-op.
func (s *Registry) Delete(id uuid.UUID) {
	s.mu.Lock()
	room, existed := s.rooms[id]
	delete(s.rooms, id)
	hook := s.onDelete
	s.mu.Unlock()

	if !existed {
		return
	}
	s.logger.WithField("room", id.String()).Info("Room removed from registry")
	// A room that deleted itself is already marked, so this does nothing.
	// Otherwise its OnDelete re-enters here and finds the mapping gone.
	room.Delete(ReasonRoomClosed)
	if hook != nil {
		hook(id)
	}
}

// DictionaryDegraded reports whether rooms are running on the empty fallback dictionary.
func (s *Registry) DictionaryDegraded() bool {
	return s.dict.Degraded()
}

func (s *Registry) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// List returns the current rooms in no particular order.
func (s *Registry) List() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// handleGameEnd forwards the result and schedules the finished room for deletion.
func (s *Registry) handleGameEnd(room *Room, res GameResult) {
	s.mu.RLock()
	hook := s.onGameEnd
	s.mu.RUnlock()

	if hook != nil {
		hook(room, res)
	}
	time.AfterFunc(s.retention, func() {
		room.Delete("Game finished")
	})
}
