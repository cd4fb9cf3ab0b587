package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Limiter decides whether a client may make another validation request.
type Limiter interface {
	Allow(ctx context.Context, client string) bool
}

// Noop is a Limiter that always allows.
type Noop struct{}

// Allow always returns true.
func (Noop) Allow(context.Context, string) bool { return true }

// RedisLimiter implements a fixed-window counter per client in redis.
// It fails open: any redis error allows the request.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter constructs a RedisLimiter allowing limit requests per window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: limit, window: window}
}

// Allow increments the client's counter for the current window and
// reports whether it is within the limit.
func (l *RedisLimiter) Allow(ctx context.Context, client string) bool {
	if l == nil || l.client == nil || client == "" {
		return true
	}

	windowStart := time.Now().Unix() / int64(l.window.Seconds())
	key := fmt.Sprintf("licensegate:ratelimit:%s:%d", client, windowStart)

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, errExec := pipe.Exec(ctx); errExec != nil {
		log.WithError(errExec).Warn("ratelimit: redis unavailable, failing open")
		return true
	}
	return count.Val() <= int64(l.limit)
}
