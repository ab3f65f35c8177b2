package handlers

import (
	"net/http"
	"time"

	"github.com/solarmaint/backend/internal/api/middleware"
	"github.com/solarmaint/backend/internal/application/services"
)

// AuthHandler handles registration, login and session introspection.
type AuthHandler struct {
	auth   *services.AuthService
	secure bool
}

// NewAuthHandler creates a new auth handler. secure controls the cookie's
// Secure flag and should be true outside development.
func NewAuthHandler(auth *services.AuthService, secure bool) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		secure: secure,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	user, token, err := h.auth.Register(r.Context(), body.Email, body.Password, body.Name)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	h.setAuthCookie(w, token)
	respondWithJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	user, token, err := h.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	h.setAuthCookie(w, token)
	respondWithJSON(w, http.StatusOK, user)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.auth.GetUser(r.Context(), identity)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.auth.TokenTTL()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
