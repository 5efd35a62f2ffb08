package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roastline/api/internal/platform/auth"
	"github.com/roastline/api/internal/platform/httpx"
)

const maxAuthRequestBody = 4 * 1024

// AuthHandlers exchanges the bootstrap admin credential for a session cookie.
type AuthHandlers struct {
	sessions *SessionIssuer
}

// SessionIssuer couples the session manager with the configured admin credential.
type SessionIssuer struct {
	manager *auth.SessionManager
	apiKey  string
}

// NewSessionIssuer constructs a SessionIssuer validating required configuration.
func NewSessionIssuer(manager *auth.SessionManager, apiKey string) (*SessionIssuer, error) {
	if manager == nil {
		return nil, errors.New("auth handlers: session manager is required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("auth handlers: admin api key is required")
	}
	return &SessionIssuer{manager: manager, apiKey: apiKey}, nil
}

// NewAuthHandlers constructs the admin session endpoints.
func NewAuthHandlers(sessions *SessionIssuer) *AuthHandlers {
	return &AuthHandlers{sessions: sessions}
}

// Routes registers session endpoints under the provided router.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
}

type loginRequest struct {
	APIKey string `json:"apiKey"`
	Email  string `json:"email"`
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "authentication unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAuthRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(req.APIKey)), []byte(h.sessions.apiKey)) != 1 {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "invalid credentials", http.StatusUnauthorized))
		return
	}

	token, err := h.sessions.manager.Issue("admin", strings.TrimSpace(req.Email))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to issue session", http.StatusInternalServerError))
		return
	}

	http.SetCookie(w, h.sessions.manager.Cookie(token))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		http.SetCookie(w, h.sessions.manager.ClearCookie())
	}
	w.WriteHeader(http.StatusNoContent)
}
