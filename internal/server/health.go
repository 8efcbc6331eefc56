// ABOUTME: Liveness, deep health and version endpoints
// ABOUTME: Deep health probes config, registry, database and rate limiter backends

package server

import (
	"context"
	"net/http"
	"time"
)

// deepCheckTimeout bounds each backend probe.
const deepCheckTimeout = 2 * time.Second

// Check outcomes reported by /health/deep.
const (
	CheckOK      = "ok"
	CheckFailed  = "failed"
	CheckSkipped = "skipped"
)

// CheckResult is one entry under "checks".
type CheckResult struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// DeepHealth is the /health/deep body.
type DeepHealth struct {
	Status   string                 `json:"status"`
	Hostname string                 `json:"hostname"`
	Mode     string                 `json:"mode"`
	Checks   map[string]CheckResult `json:"checks"`
}

// VersionInfo is the /version body.
type VersionInfo struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Status   string `json:"status"`
	Hostname string `json:"hostname"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionInfo{
		Name:     s.cfg.Name(),
		Version:  s.cfg.Version(),
		Status:   "running",
		Hostname: s.hostname,
	})
}

func (s *Server) mode() string {
	if s.cfg.Stateless() {
		return "stateless"
	}
	return "stateful"
}

// DeepHealth runs every check. Any failure makes the status "degraded".
func (s *Server) DeepHealth(ctx context.Context) DeepHealth {
	checks := map[string]CheckResult{
		"config":    s.checkConfig(),
		"registry":  s.checkRegistry(),
		"database":  s.probe(ctx, s.database != nil, func(ctx context.Context) error { return s.database.HealthCheck(ctx) }),
		"ratelimit": s.probe(ctx, s.limiter != nil, func(ctx context.Context) error { return s.limiter.Ping(ctx) }),
	}

	status := "healthy"
	for name, c := range checks {
		if c.Status == CheckFailed {
			status = "degraded"
			s.logger.Warn("health check failed", "check", name, "detail", c.Detail)
		}
	}
	return DeepHealth{
		Status:   status,
		Hostname: s.hostname,
		Mode:     s.mode(),
		Checks:   checks,
	}
}

func (s *Server) handleDeepHealth(w http.ResponseWriter, r *http.Request) {
	h := s.DeepHealth(r.Context())
	code := http.StatusOK
	if h.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) checkConfig() CheckResult {
	if s.cfg.Tree() == nil {
		return CheckResult{Status: CheckFailed, Detail: "configuration not loaded"}
	}
	return CheckResult{Status: CheckOK}
}

func (s *Server) checkRegistry() CheckResult {
	if s.registry.Len() == 0 {
		return CheckResult{Status: CheckFailed, Detail: "no capabilities registered"}
	}
	return CheckResult{Status: CheckOK}
}

func (s *Server) probe(ctx context.Context, configured bool, fn func(context.Context) error) CheckResult {
	if !configured {
		return CheckResult{Status: CheckSkipped}
	}
	ctx, cancel := context.WithTimeout(ctx, deepCheckTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return CheckResult{Status: CheckFailed, Detail: err.Error()}
	}
	return CheckResult{Status: CheckOK}
}
