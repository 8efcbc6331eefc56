// ABOUTME: HTTP middleware enforcing bearer-token authentication
// ABOUTME: Exempt paths bypass the check; rejections are JSON {"error": ...}

package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ExemptPaths are reachable without credentials.
var ExemptPaths = []string{"/healthz", "/health", "/health/deep", "/version", "/_info"}

// Settings supplies the live authentication configuration.
type Settings interface {
	AuthEnabled() bool
	AuthToken() string
}

// IsExempt reports whether path skips authentication.
func IsExempt(path string) bool {
	for _, p := range ExemptPaths {
		if p == path {
			return true
		}
	}
	return false
}

// Middleware rejects unauthenticated requests before they reach next.
func Middleware(settings Settings, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if !settings.AuthEnabled() {
				logger.Debug("authentication disabled - allowing request", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			d := Check(r.Header.Get("Authorization"), settings.AuthToken())
			if !d.Allowed {
				logger.Warn("request rejected",
					"path", r.URL.Path,
					"status", d.Status,
					"reason", d.Message,
				)
				WriteError(w, d.Status, d.Message)
				return
			}

			logger.Debug("authentication successful", "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes {"error": msg} with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
