// ABOUTME: Provider owns the live configuration tree and applies env overrides
// ABOUTME: Reload builds a fresh tree and swaps it atomically for readers

package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Provider hands out the current configuration tree. Readers never block
// and never observe a partially loaded tree.
type Provider struct {
	path   string
	logger *slog.Logger

	reloadMu sync.Mutex
	tree     atomic.Pointer[Tree]
}

// ResolvePath picks the config path: explicit flag value, then MCP_CONFIG, then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("MCP_CONFIG"); env != "" {
		return env
	}
	return DefaultPath
}

// NewProvider loads the file at path and returns a Provider serving it.
func NewProvider(path string, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{path: path, logger: logger.With("component", "config")}

	tree, err := Load(path)
	if err != nil {
		p.logger.Error("failed to load configuration", "path", path, "error", err)
		return nil, err
	}
	p.warnUnresolved(tree)
	p.tree.Store(tree)
	p.logger.Info("configuration loaded", "path", path)
	return p, nil
}

// NewStaticProvider serves a fixed tree. Reload on it fails with ErrConfigNotFound.
func NewStaticProvider(tree *Tree, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{logger: logger.With("component", "config")}
	if tree == nil {
		tree = FromMap(nil)
	}
	p.warnUnresolved(tree)
	p.tree.Store(tree)
	return p
}

// Reload re-reads the file and replaces the tree wholesale. On error the
// previous tree stays in place.
func (p *Provider) Reload() error {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	if p.path == "" {
		return ErrConfigNotFound
	}
	tree, err := Load(p.path)
	if err != nil {
		p.logger.Error("configuration reload failed", "path", p.path, "error", err)
		return err
	}
	p.warnUnresolved(tree)
	p.tree.Store(tree)
	p.logger.Info("configuration reloaded", "path", p.path)
	return nil
}

// Tree returns the current snapshot.
func (p *Provider) Tree() *Tree { return p.tree.Load() }

// Path returns the file this provider loads from.
func (p *Provider) Path() string { return p.path }

// Get is shorthand for p.Tree().Get.
func (p *Provider) Get(path string, def any) any { return p.Tree().Get(path, def) }

// GetString is shorthand for p.Tree().GetString.
func (p *Provider) GetString(path, def string) string { return p.Tree().GetString(path, def) }

// GetInt is shorthand for p.Tree().GetInt.
func (p *Provider) GetInt(path string, def int) int { return p.Tree().GetInt(path, def) }

// GetBool is shorthand for p.Tree().GetBool.
func (p *Provider) GetBool(path string, def bool) bool { return p.Tree().GetBool(path, def) }

// GetDuration is shorthand for p.Tree().GetDuration.
func (p *Provider) GetDuration(path string, def time.Duration) time.Duration {
	return p.Tree().GetDuration(path, def)
}

// AuthEnabled reports whether bearer authentication is on. AUTH_ENABLED wins
// when it holds a recognized value; anything else falls through to the file.
func (p *Provider) AuthEnabled() bool {
	if v, ok := parseAuthFlag(os.Getenv("AUTH_ENABLED")); ok {
		return v
	}
	return p.GetBool("security.authentication.enabled", false)
}

// AuthToken returns the expected bearer token, AUTH_TOKEN first. A file value
// that still holds an unresolved ${VAR} placeholder counts as no token, so the
// literal placeholder text can never authenticate.
func (p *Provider) AuthToken() string {
	if tok := os.Getenv("AUTH_TOKEN"); tok != "" {
		return tok
	}
	tok := p.GetString("security.authentication.bearer_token", "")
	if HasPlaceholder(tok) {
		return ""
	}
	return tok
}

// Name is the advertised server name.
func (p *Provider) Name() string { return p.GetString("mcp.name", "template-mcp") }

// Version is the advertised server version.
func (p *Provider) Version() string { return p.GetString("server.version", "1.0.0") }

// Host is the listen host.
func (p *Provider) Host() string { return p.GetString("server.host", "0.0.0.0") }

// Port returns MCP_PORT when it parses, else server.port, else 8000.
func (p *Provider) Port() int {
	if env := os.Getenv("MCP_PORT"); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			return n
		}
	}
	return p.GetInt("server.port", 8000)
}

// Stateless reports whether protocol sessions are disabled (STATELESS_HTTP, default true).
func (p *Provider) Stateless() bool {
	if v, ok := ParseFlag(os.Getenv("STATELESS_HTTP")); ok {
		return v
	}
	return p.GetBool("mcp.stateless", true)
}

// AutoDiscover reports whether plugin directories are scanned (AUTO_DISCOVER, default true).
func (p *Provider) AutoDiscover() bool {
	if v, ok := ParseFlag(os.Getenv("AUTO_DISCOVER")); ok {
		return v
	}
	return p.GetBool("mcp.auto_discover", true)
}

// IsNotFound reports whether err came from a missing config file.
func IsNotFound(err error) bool { return errors.Is(err, ErrConfigNotFound) }

// parseAuthFlag is narrower than ParseFlag: "on"/"off" are not recognized.
func parseAuthFlag(s string) (value, ok bool) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

func (p *Provider) warnUnresolved(t *Tree) {
	for _, name := range t.Unresolved() {
		p.logger.Warn("environment variable not found", "variable", name)
	}
}
