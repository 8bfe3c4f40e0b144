package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/kbengine/internal/scope"
)

// ScopeHeader names the header that carries the caller's owner scope.
const ScopeHeader = "X-Owner-Scope"

// RequireScope rejects requests without a valid owner scope and puts the
// parsed scope on the context for the handlers.
func RequireScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(ScopeHeader)
		if raw == "" {
			scopeError(w, "missing "+ScopeHeader+" header")
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			scopeError(w, "invalid "+ScopeHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(scope.WithScope(r.Context(), id)))
	})
}

func scopeError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
