package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
)

type roomSummary struct {
	ID         uuid.UUID `json:"id"`
	Creator    string    `json:"creator"`
	Phase      string    `json:"phase"`
	Players    []string  `json:"players"`
	MaxPlayers int       `json:"maxPlayers"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ListRoomsHandler lists live rooms, oldest first. ?phase=lobby narrows the
// list to rooms that can still be joined.
func ListRoomsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phase := r.URL.Query().Get("phase")

		out := make([]roomSummary, 0)
		for _, room := range s.Registry.List() {
			snap := room.Snapshot()
			if phase != "" && snap.Phase != phase {
				continue
			}
			out = append(out, roomSummary{
				ID:         snap.ID,
				Creator:    snap.Creator,
				Phase:      snap.Phase,
				Players:    snap.Players,
				MaxPlayers: snap.MaxPlayers,
				CreatedAt:  snap.CreatedAt,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		writeJSON(w, http.StatusOK, out)
	}
}
