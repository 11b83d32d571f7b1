// internal/hub/hub.go
package hub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordchain/internal/game"
	"github.com/sirupsen/logrus"
)

// Connection is one live client session. The websocket write pump drains OutChan.
type Connection struct {
	Session  game.SessionRef
	Username string
	OutChan  chan []byte
	Cancel   func()
}

// NewConnection allocates a connection with a fresh session reference.
func NewConnection(username string, buffer int, cancel func()) *Connection {
	return &Connection{
		Session:  game.SessionRef(uuid.NewString()),
		Username: username,
		OutChan:  make(chan []byte, buffer),
		Cancel:   cancel,
	}
}

// write enqueues without blocking; a full buffer is a delivery failure.
func (c *Connection) write(data []byte) error {
	select {
	case c.OutChan <- data:
		return nil
	default:
		return fmt.Errorf("%w: outbound buffer full for %s", game.ErrNotificationDelivery, c.Username)
	}
}

// Hub tracks live sessions and which rooms they belong to. It implements
// game.Notifier; sends never block, so rooms may call it under their own lock.
type Hub struct {
	mu       sync.RWMutex
	conns    map[game.SessionRef]*Connection
	rooms    map[uuid.UUID]map[game.SessionRef]struct{}
	memberOf map[game.SessionRef]map[uuid.UUID]struct{}
	logger   *logrus.Logger
}

func New(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		conns:    make(map[game.SessionRef]*Connection),
		rooms:    make(map[uuid.UUID]map[game.SessionRef]struct{}),
		memberOf: make(map[game.SessionRef]map[uuid.UUID]struct{}),
		logger:   logger,
	}
}

// Register makes a connection addressable.
func (h *Hub) Register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.Session] = c
}

// Unregister forgets a session, drops its memberships and closes its OutChan.
func (h *Hub) Unregister(session game.SessionRef) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[session]
	if !ok {
		return
	}
	delete(h.conns, session)
	for roomID := range h.memberOf[session] {
		h.leaveLocked(roomID, session)
	}
	delete(h.memberOf, session)
	// Sends hold the read lock, so nothing can be writing to OutChan here.
	close(c.OutChan)
}

// Join subscribes session to a room's broadcasts.
func (h *Hub) Join(roomID uuid.UUID, session game.SessionRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[game.SessionRef]struct{})
	}
	h.rooms[roomID][session] = struct{}{}
	if h.memberOf[session] == nil {
		h.memberOf[session] = make(map[uuid.UUID]struct{})
	}
	h.memberOf[session][roomID] = struct{}{}
}

// Leave unsubscribes session from a room.
func (h *Hub) Leave(roomID uuid.UUID, session game.SessionRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(roomID, session)
}

func (h *Hub) leaveLocked(roomID uuid.UUID, session game.SessionRef) {
	if members, ok := h.rooms[roomID]; ok {
		delete(members, session)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if rooms, ok := h.memberOf[session]; ok {
		delete(rooms, roomID)
	}
}

// CloseRoom drops every membership for a deleted room.
func (h *Hub) CloseRoom(roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for session := range h.rooms[roomID] {
		if rooms, ok := h.memberOf[session]; ok {
			delete(rooms, roomID)
		}
	}
	delete(h.rooms, roomID)
}

// RoomsOf lists the rooms a session has joined.
func (h *Hub) RoomsOf(session game.SessionRef) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(h.memberOf[session]))
	for id := range h.memberOf[session] {
		out = append(out, id)
	}
	return out
}

// Members returns the sessions subscribed to a room.
func (h *Hub) Members(roomID uuid.UUID) []game.SessionRef {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]game.SessionRef, 0, len(h.rooms[roomID]))
	for s := range h.rooms[roomID] {
		out = append(out, s)
	}
	return out
}

// NotifyPlayer sends ev to a single session. The room ID is only used by
// decorators that record history.
func (h *Hub) NotifyPlayer(_ uuid.UUID, session game.SessionRef, ev game.Event) error {
	data, err := game.Encode(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Name(), err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[session]
	if !ok {
		return fmt.Errorf("%w: unknown session %s", game.ErrNotificationDelivery, session)
	}
	return c.write(data)
}

// NotifyRoom sends ev to every session in the room. Every member is tried;
// the ones that could not be reached come back in a *game.DeliveryError.
func (h *Hub) NotifyRoom(roomID uuid.UUID, ev game.Event) error {
	data, err := game.Encode(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Name(), err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	var (
		failed []game.SessionRef
		errs   []error
	)
	for session := range h.rooms[roomID] {
		c, ok := h.conns[session]
		if !ok {
			continue
		}
		if err := c.write(data); err != nil {
			failed = append(failed, session)
			errs = append(errs, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	h.logger.WithFields(logrus.Fields{"room": roomID.String(), "event": ev.Name(), "failed": len(failed)}).Warn("Room broadcast partially failed")
	return &game.DeliveryError{Sessions: failed, Err: errors.Join(errs...)}
}
