package middleware

import (
	"net/http"
	"strings"

	"github.com/auripay/auripay-backend/internal/api/httpx"
	"github.com/auripay/auripay-backend/internal/auth"
)

// AdminAuth guards the dashboard API with the operator's session token.
func AdminAuth(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := r.Header.Get("Authorization")
			if !strings.HasPrefix(ah, "Bearer ") {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
				return
			}
			if _, err := tm.Parse(strings.TrimPrefix(ah, "Bearer ")); err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
