package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jason-s-yu/wordchain/internal/auth"
	"github.com/jason-s-yu/wordchain/internal/models"
	"github.com/sirupsen/logrus"
)

const authCookie = "auth_token"

// authenticate resolves the caller from the auth_token cookie or the token
// query parameter. Callers without a valid token become guests.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (auth.Identity, error) {
	token := tokenFromRequest(r)
	if token != "" {
		id, err := s.Signer.AuthenticateJWT(token)
		if err == nil {
			return id, nil
		}
		s.Logger.WithError(err).WithField("remote", r.RemoteAddr).Debug("Rejected token, issuing guest session")
	}
	id, _, err := s.issueGuest(r.Context(), w)
	return id, err
}

// issueGuest mints a guest identity, persists it when a store is configured,
// and sets the auth cookie.
func (s *Server) issueGuest(ctx context.Context, w http.ResponseWriter) (auth.Identity, string, error) {
	id := auth.Identity{Username: auth.GuestName(), Guest: true}

	if s.Users != nil {
		u := &models.User{Username: id.Username, IsEphemeral: true}
		if err := s.Users.CreateUser(ctx, u); err != nil {
			// Guests can still play; only their stats are lost.
			s.Logger.WithError(err).WithField("player", id.Username).Warn("Failed to persist guest user")
		}
	}

	token, err := s.Signer.CreateJWT(id.Username, true)
	if err != nil {
		return auth.Identity{}, "", fmt.Errorf("failed to create guest JWT: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return id, token, nil
}

type guestSessionResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// GuestSessionHandler issues a fresh guest token.
func GuestSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, token, err := s.issueGuest(r.Context(), w)
		if err != nil {
			s.Logger.WithError(err).Error("Guest session failed")
			http.Error(w, "could not create session", http.StatusInternalServerError)
			return
		}
		s.Logger.WithFields(logrus.Fields{"player": id.Username}).Info("Guest session issued")
		writeJSON(w, http.StatusOK, guestSessionResponse{Username: id.Username, Token: token})
	}
}

// tokenFromRequest prefers the cookie, then the query string.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(authCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

var errNoStore = errors.New("user store not configured")
