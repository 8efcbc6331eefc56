// ABOUTME: Cross-origin policy stage built on rs/cors
// ABOUTME: "*" permits every origin while still allowing credentials

package pipeline

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS permits the given origins with any method and header. A "*" entry
// echoes the caller's origin, which browsers require when credentials are allowed.
func CORS(allowedOrigins []string) Stage {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodOptions, http.MethodHead,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{HeaderServedBy, HeaderCorrelationID, "Mcp-Session-Id"},
		AllowCredentials: true,
	}

	wildcard := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
		}
	}
	if wildcard {
		opts.AllowOriginFunc = func(string) bool { return true }
	} else {
		opts.AllowedOrigins = allowedOrigins
	}

	c := cors.New(opts)
	return c.Handler
}
