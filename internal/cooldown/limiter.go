package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "cooldown:"

// Limiter is a fixed-window counter in redis. A nil *Limiter allows
// everything, which is how cooldowns are switched off.
type Limiter struct {
	client      *redis.Client
	maxRequests int64
	window      time.Duration
}

func NewLimiter(client *redis.Client, maxRequests int, window time.Duration) (*Limiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if maxRequests <= 0 {
		return nil, fmt.Errorf("max requests must be positive, got %d", maxRequests)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}

	return &Limiter{
		client:      client,
		maxRequests: int64(maxRequests),
		window:      window,
	}, nil
}

// Allow counts one hit for key and reports whether it is within the limit.
// INCR and EXPIRE go in one pipeline; the window restarts on every hit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, keyPrefix+key)
	pipe.Expire(ctx, keyPrefix+key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to count request: %w", err)
	}

	count, err := incr.Result()
	if err != nil {
		return false, fmt.Errorf("failed to read request count: %w", err)
	}

	return count <= l.maxRequests, nil
}

// Window is how long a caller waits after hitting the limit at worst
func (l *Limiter) Window() time.Duration {
	if l == nil {
		return 0
	}
	return l.window
}
