package middleware

import (
	"net/http"
	"slices"

	"github.com/rs/cors"
)

// CORS allows the console UI to call the API from another origin. Credentials
// are only allowed when the origin list is explicit.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID", "X-Confirm"},
		ExposedHeaders:   []string{"Content-Disposition", "Content-Length", "X-Request-ID"},
		MaxAge:           600,
		AllowCredentials: !slices.Contains(origins, "*"),
	})

	return handler.Handler
}
