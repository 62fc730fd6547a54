package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS lets the listed browser origins call the API; "*" allows any.
// Preflights are answered here and never reach the router. A preflight from
// a foreign origin gets no Access-Control headers, which the browser treats
// as a refusal.
func CORS(allowOrigins []string) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(allowOrigins))
	for _, o := range allowOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderCorrelationID, "Idempotency-Key"},
		ExposedHeaders: []string{HeaderCorrelationID, "Idempotent-Replayed", "Location"},
		MaxAge:         600,
	})
}
