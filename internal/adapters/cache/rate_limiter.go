package cache

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/solarmaint/backend/internal/infrastructure/clients/redis"
)

// RateLimiter is a fixed-window per-user limiter backed by Redis INCR.
// Completion calls are the expensive resource being protected, so the chat
// endpoints consult it before dispatching to the model.
type RateLimiter struct {
	client *redisclient.Client
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(client *redisclient.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow consumes one slot for the key and reports whether the request may
// proceed. Redis errors fail open so a cache outage never blocks chat.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.client.Client().Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Client().Expire(ctx, redisKey, l.window).Err(); err != nil {
			return true, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}
