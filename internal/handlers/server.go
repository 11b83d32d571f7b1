// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/jason-s-yu/wordchain/internal/auth"
	"github.com/jason-s-yu/wordchain/internal/game"
	"github.com/jason-s-yu/wordchain/internal/hub"
	"github.com/jason-s-yu/wordchain/internal/middleware"
	"github.com/jason-s-yu/wordchain/internal/models"
	"github.com/jason-s-yu/wordchain/internal/router"
	"github.com/sirupsen/logrus"
)

// UserStore is the slice of persistence the HTTP layer needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, username string) (*models.User, error)
}

// Server bundles what the HTTP and websocket handlers share.
type Server struct {
	Registry *game.Registry
	Hub      *hub.Hub
	Router   *router.Router
	Signer   *auth.Signer
	// Users may be nil when running without a database; guests are then
	// not persisted and /stats answers 503.
	Users  UserStore
	Logger *logrus.Logger

	// OutBuffer is the per-connection outbound queue length.
	OutBuffer int
}

// Routes builds the HTTP mux.
func (s *Server) Routes() http.Handler {
	logged := middleware.LogMiddleware(s.Logger)

	mux := http.NewServeMux()
	mux.Handle("GET /ws", logged(RoomWSHandler(s)))
	mux.Handle("GET /rooms", logged(ListRoomsHandler(s)))
	mux.Handle("GET /stats/{username}", logged(StatsHandler(s)))
	mux.Handle("POST /session/guest", logged(GuestSessionHandler(s)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (s *Server) outBuffer() int {
	if s.OutBuffer <= 0 {
		return 32
	}
	return s.OutBuffer
}
