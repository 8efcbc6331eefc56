// ABOUTME: Redis-backed fixed-window limiter shared by every replica
// ABOUTME: Uses INCR + EXPIRE per client per minute

package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis counts requests per key per wall-clock minute in a shared Redis.
type Redis struct {
	client    *redis.Client
	perMinute int64
	prefix    string
	logger    *slog.Logger
	now       func() time.Time
}

// NewRedis wraps client. The limiter owns the client and closes it.
func NewRedis(client *redis.Client, perMinute int, prefix string, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "mcp:ratelimit:"
	}
	return &Redis{
		client:    client,
		perMinute: int64(perMinute),
		prefix:    prefix,
		logger:    logger.With("component", "ratelimit", "backend", "redis"),
		now:       time.Now,
	}
}

func (l *Redis) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now()
	window := now.Unix() / 60
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Allowed: true}, fmt.Errorf("redis rate limit: %w", err)
	}

	if incr.Val() > l.perMinute {
		next := time.Unix((window+1)*60, 0)
		return Result{Allowed: false, RetryAfter: next.Sub(now)}, nil
	}
	return Result{Allowed: true}, nil
}

func (l *Redis) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Redis) Close() error    { return l.client.Close() }
func (l *Redis) Backend() string { return "redis" }
