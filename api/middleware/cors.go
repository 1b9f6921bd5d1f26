package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{"http://localhost:3000"}

// CORS applies the storefront origin allow-list. A "*" entry opens the API to
// any origin, in which case cookies and auth headers are not shared.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	wildcard := false
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		wildcard = wildcard || origin == "*"
		allowed = append(allowed, origin)
	}
	if len(allowed) == 0 {
		allowed = defaultCORSOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, SessionHeader, RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Idempotent-Replayed", "Retry-After",
			"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}
