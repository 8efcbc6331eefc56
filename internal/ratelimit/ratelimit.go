// ABOUTME: Per-client request rate limiting with in-memory and Redis backends
// ABOUTME: Memory uses token buckets; Redis uses a shared fixed one-minute window

package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter decides whether a client key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
	// Ping reports backend health. Memory limiters always succeed.
	Ping(ctx context.Context) error
	Close() error
	Backend() string
}

// Settings configure New.
type Settings struct {
	Enabled           bool
	Backend           string // memory or redis
	RequestsPerMinute int
	Burst             int
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	KeyPrefix         string
}

// Lookup is the slice of config.Tree that SettingsFrom needs.
type Lookup interface {
	GetString(path, def string) string
	GetInt(path string, def int) int
	GetBool(path string, def bool) bool
}

// SettingsFrom reads security.rate_limit.* keys.
func SettingsFrom(cfg Lookup) Settings {
	return Settings{
		Enabled:           cfg.GetBool("security.rate_limit.enabled", false),
		Backend:           cfg.GetString("security.rate_limit.backend", "memory"),
		RequestsPerMinute: cfg.GetInt("security.rate_limit.requests_per_minute", 60),
		Burst:             cfg.GetInt("security.rate_limit.burst", 10),
		RedisAddr:         cfg.GetString("security.rate_limit.redis.addr", "localhost:6379"),
		RedisPassword:     cfg.GetString("security.rate_limit.redis.password", ""),
		RedisDB:           cfg.GetInt("security.rate_limit.redis.db", 0),
		KeyPrefix:         cfg.GetString("security.rate_limit.redis.key_prefix", "mcp:ratelimit:"),
	}
}

// New builds the limiter for s. It returns nil when rate limiting is disabled.
func New(s Settings, logger *slog.Logger) (Limiter, error) {
	if !s.Enabled {
		return nil, nil
	}
	if s.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("security.rate_limit.requests_per_minute must be positive, got %d", s.RequestsPerMinute)
	}
	switch s.Backend {
	case "", "memory":
		return NewMemory(s.RequestsPerMinute, s.Burst), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		})
		return NewRedis(client, s.RequestsPerMinute, s.KeyPrefix, logger), nil
	}
	return nil, fmt.Errorf("unknown rate limit backend %q", s.Backend)
}
