package handlers

import (
	"errors"
	"net/http"

	"github.com/jason-s-yu/wordchain/internal/database"
)

type statsResponse struct {
	Username    string `json:"username"`
	GamesPlayed int    `json:"gamesPlayed"`
	GamesWon    int    `json:"gamesWon"`
}

// StatsHandler reports a player's persisted counters.
func StatsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.PathValue("username")
		if username == "" {
			http.Error(w, "missing username", http.StatusBadRequest)
			return
		}
		if s.Users == nil {
			s.Logger.WithError(errNoStore).Debug("Stats requested without a database")
			http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
			return
		}

		u, err := s.Users.GetUser(r.Context(), username)
		if errors.Is(err, database.ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		if err != nil {
			s.Logger.WithError(err).WithField("player", username).Error("Stats lookup failed")
			http.Error(w, "stats lookup failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{Username: u.Username, GamesPlayed: u.GamesPlayed, GamesWon: u.GamesWon})
	}
}
