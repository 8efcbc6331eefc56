// ABOUTME: Startup validation gate for configuration consistency
// ABOUTME: Accumulates every error and warning in one pass instead of stopping early

package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/2389/mcp-scaffold/internal/config"
)

// Token length thresholds. Short tokens only warn.
const (
	MinTokenLength         = 16
	RecommendedTokenLength = 32
)

// Sentinels matched by callers and tests.
var (
	ErrInvalidPort  = errors.New("invalid port")
	ErrInvalidName  = errors.New("invalid server name")
	ErrMissingToken = errors.New("missing authentication token")
)

// Source is the configuration surface the gate inspects.
type Source interface {
	Get(path string, def any) any
	AuthEnabled() bool
	AuthToken() string
}

// Report holds the outcome of a validation pass.
type Report struct {
	Errors   []error
	Warnings []string
}

// OK reports whether no errors were found.
func (r *Report) OK() bool { return len(r.Errors) == 0 }

// Err joins every error, or returns nil.
func (r *Report) Err() error { return errors.Join(r.Errors...) }

// Log writes the whole report: every error, then every warning.
func (r *Report) Log(logger *slog.Logger) {
	for _, err := range r.Errors {
		logger.Error("configuration error", "error", err)
	}
	for _, w := range r.Warnings {
		logger.Warn("configuration warning", "warning", w)
	}
	if r.OK() {
		logger.Info("configuration validation passed", "warnings", len(r.Warnings))
	} else {
		logger.Error("configuration validation failed", "errors", len(r.Errors), "warnings", len(r.Warnings))
	}
}

func (r *Report) errorf(sentinel error, format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

// Run checks cfg and the process environment.
func Run(cfg Source) *Report {
	r := &Report{}
	checkPort(r, cfg.Get("server.port", nil))
	checkName(r, cfg.Get("mcp.name", nil))
	checkAuth(r, cfg)
	checkPortOverride(r, os.Getenv("MCP_PORT"))
	return r
}

func validPort(n int) bool { return n >= 1 && n <= 65535 }

func checkPort(r *Report, v any) {
	if v == nil {
		r.Warnings = append(r.Warnings, "server.port not set, using default 8000")
		return
	}
	n, ok := config.AsInt(v)
	if !ok {
		r.errorf(ErrInvalidPort, "server.port must be an integer, got %v", v)
		return
	}
	if !validPort(n) {
		r.errorf(ErrInvalidPort, "server.port must be between 1 and 65535, got %d", n)
	}
}

func checkName(r *Report, v any) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		r.errorf(ErrInvalidName, "mcp.name must be a non-empty string")
	}
}

func checkAuth(r *Report, cfg Source) {
	if !cfg.AuthEnabled() {
		r.Warnings = append(r.Warnings, "authentication is disabled")
		return
	}
	tok := cfg.AuthToken()
	switch {
	case tok == "":
		r.errorf(ErrMissingToken, "authentication is enabled but no token is set (AUTH_TOKEN or security.authentication.bearer_token)")
	case len(tok) < MinTokenLength:
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"authentication token is shorter than %d characters, use at least %d",
			MinTokenLength, RecommendedTokenLength))
	}
}

func checkPortOverride(r *Report, env string) {
	if env == "" {
		return
	}
	n, err := strconv.Atoi(env)
	if err != nil {
		r.errorf(ErrInvalidPort, "MCP_PORT must be an integer, got %q", env)
		return
	}
	if !validPort(n) {
		r.errorf(ErrInvalidPort, "MCP_PORT must be between 1 and 65535, got %d", n)
	}
}
