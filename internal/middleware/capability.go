package middleware

import (
	"net/http"

	"asset-console/internal/model"
)

// SessionSource exposes the console's current backend session.
type SessionSource interface {
	Current() (model.SessionData, bool)
}

// RequireSession answers 401 until the console has logged in to the backend.
func RequireSession(sessions SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := sessions.Current(); !ok {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "No backend session")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability answers 403 when the session's role lacks capability.
// Checked per request, since the session can change.
func RequireCapability(sessions SessionSource, capability model.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := sessions.Current()
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "No backend session")
				return
			}
			if !session.Capabilities.Has(capability) {
				writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
