// ABOUTME: Tags every response with the serving instance's identity
// ABOUTME: Lets operators verify load balancing across replicas

package pipeline

import (
	"net/http"
	"os"
)

// HeaderServedBy names the serving replica.
const HeaderServedBy = "X-Served-By"

// Hostname returns os.Hostname or "unknown".
func Hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}

// ServedBy sets X-Served-By on every response, including short-circuited ones
// produced by inner stages.
func ServedBy(hostname string) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(HeaderServedBy, hostname)
			next.ServeHTTP(w, r)
		})
	}
}
