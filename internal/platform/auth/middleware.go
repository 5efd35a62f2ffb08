package auth

import (
	"net/http"

	"github.com/roastline/api/internal/platform/httpx"
)

// RequireAdmin rejects requests that do not carry a valid admin session. Any
// authenticated principal is an administrator; there is no role hierarchy.
func RequireAdmin(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessions.TokenFromRequest(r)
			if token == "" {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
				return
			}
			identity, err := sessions.Verify(token)
			if err != nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "invalid or expired session", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
