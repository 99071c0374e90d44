package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/web/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      *database.User `json:"user"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Login checks credentials, opens a session and sets the session cookie.
// The token is also returned for clients that send it as a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		JSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	cookie := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
	}
	h.applyCookieSecurity(cookie)
	http.SetCookie(w, cookie)

	respond(w, http.StatusOK, loginResponse{User: user, Token: session.ID, ExpiresAt: session.ExpiresAt})
}

// Logout ends the current session and clears the cookie.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if id := middleware.SessionToken(r); id != "" {
		if err := h.authService.Logout(r.Context(), id); err != nil {
			log.Error().Err(err).Msg("Failed to delete session")
		}
	}

	cookie := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
	h.applyCookieSecurity(cookie)
	http.SetCookie(w, cookie)

	respond(w, http.StatusOK, map[string]bool{"logged_out": true})
}

// Me returns the signed-in user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	respond(w, http.StatusOK, user)
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the signed-in user's password. Every session of
// the user is ended, so the client must log in again.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := h.authService.Authenticate(r.Context(), user.Email, req.CurrentPassword); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.authService.UpdatePassword(r.Context(), user.ID, req.NewPassword); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]bool{"updated": true})
}
