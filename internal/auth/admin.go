package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"clawnema/internal/logger"
	"clawnema/internal/utils"
)

// AdminMiddleware guards the admin routes with a static bearer key.
// An empty key disables them with 503 rather than leaving them open.
func AdminMiddleware(apiKey string, l *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte("Bearer " + apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				utils.Failure(w, http.StatusServiceUnavailable, "Admin API not configured", nil)
				return
			}

			got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				l.LogSecurity("ADMIN_AUTH_FAILED", fmt.Sprintf("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr))
				utils.Failure(w, http.StatusUnauthorized, "Invalid admin key", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
