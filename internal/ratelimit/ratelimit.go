package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is the atomic increment primitive behind the limiter.
// Increment must be a single atomic operation in the backing store; the
// returned count is the value after this call's increment.
type CounterStore interface {
	Increment(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RateLimiter enforces a fixed-window count per scope key. On any counter
// store error it rejects: ambiguity must bound cost exposure, not extend it.
type RateLimiter struct {
	store CounterStore
	now   func() time.Time
}

func NewRateLimiter(redisURL string) (*RateLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &RateLimiter{store: &redisCounter{client: redis.NewClient(opt)}, now: time.Now}, nil
}

// NewWithStore builds a limiter over any counter store.
func NewWithStore(store CounterStore) *RateLimiter {
	return &RateLimiter{store: store, now: time.Now}
}

// Allow admits at most limit calls per window for the given scope and key.
// The window boundary is wall-clock aligned so all gateway instances agree
// on which window a request falls into.
func (rl *RateLimiter) Allow(ctx context.Context, scope string, keyID int, limit int, window time.Duration) (bool, error) {
	windowStart := rl.now().Unix() / int64(window.Seconds())
	key := fmt.Sprintf("ratelimit:%s:key:%d:%d", scope, keyID, windowStart)

	count, err := rl.store.Increment(ctx, key, window)
	if err != nil {
		return false, err
	}

	return count <= int64(limit), nil
}

func (rl *RateLimiter) Close() error {
	if c, ok := rl.store.(*redisCounter); ok {
		if closer, ok := c.client.(interface{ Close() error }); ok {
			return closer.Close()
		}
	}
	return nil
}

// redisCmds is the slice of the redis client the counter needs. Narrowed
// so the expiry path can be exercised without a server.
type redisCmds interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type redisCounter struct {
	client redisCmds
}

func (c *redisCounter) Increment(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	if count == 1 {
		if err := c.client.Expire(ctx, key, expiry).Err(); err != nil {
			// The incremented count is still authoritative; a missing
			// expiry only delays cleanup of the window key.
			log.Printf("ratelimit: setting expiry on %s: %v", key, err)
		}
	}

	return count, nil
}
