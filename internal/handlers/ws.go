// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/wordchain/internal/game"
	"github.com/jason-s-yu/wordchain/internal/hub"
	"github.com/jason-s-yu/wordchain/internal/middleware"
	"github.com/jason-s-yu/wordchain/internal/router"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "wordchain"

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// RoomWSHandler upgrades the caller and feeds their messages to the router
// until the socket closes. Closing the socket counts as leaving every room.
func RoomWSHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Auth happens before the upgrade so a guest cookie can ride on the 101.
		id, err := s.authenticate(w, r)
		if err != nil {
			s.Logger.WithError(err).Warn("WebSocket authentication failed")
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			s.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the wordchain subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := hub.NewConnection(id.Username, s.outBuffer(), cancel)
		s.Hub.Register(conn)
		client := router.Client{Username: id.Username, Session: conn.Session}
		middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, id.Username)

		done := make(chan struct{})
		go func() {
			defer close(done)
			writePump(ctx, c, conn, s.Logger)
		}()

		readErr := readPump(ctx, c, s, client)

		s.Router.Disconnect(context.Background(), client)
		s.Hub.Unregister(conn.Session)
		cancel()
		<-done
		middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, id.Username, readErr)

		if r.Context().Err() != nil {
			c.Close(ServerShuttingDown, "server shutting down")
			return
		}
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes inbound requests and dispatches them in arrival order.
// It returns the error that ended the connection, nil for a normal close.
func readPump(ctx context.Context, c *websocket.Conn, s *Server, client router.Client) error {
	log := s.Logger.WithField("player", client.Username)
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			log.Warnf("Ignoring non-text message type %d", typ)
			continue
		}

		var in router.Inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			log.WithError(err).Debug("Invalid JSON")
			_ = s.Hub.NotifyPlayer(uuid.Nil, client.Session, game.ErrorOccurred{Message: "Invalid JSON format.", Code: game.CodeBadRequest})
			continue
		}

		if err := s.Router.Dispatch(ctx, client, in); err != nil {
			log.WithFields(logrus.Fields{"type": in.Type, "room": in.RoomID}).WithError(err).Debug("Request rejected")
		}
	}
}

// writePump drains the connection's queue onto the socket and keeps it alive
// with pings. It exits when the queue is closed or ctx ends.
func writePump(ctx context.Context, c *websocket.Conn, conn *hub.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-conn.OutChan:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithError(err).WithField("player", conn.Username).Warn("Failed to write to websocket")
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithError(err).WithField("player", conn.Username).Debug("Ping failed")
				conn.Cancel()
				return
			}
		}
	}
}
