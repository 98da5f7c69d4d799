// Package cache is the exact-match response cache for the execution
// pipeline. Entries live in a shared Redis so every gateway instance sees
// the same state; bounded eviction is delegated to Redis maxmemory LRU.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/promptops/prompt-gateway/internal/models"
)

// Key derives the deterministic cache key for one execution: the version
// actually served plus the variable set. The payload is JSON so the
// encoding is unambiguous (encoding/json escapes values and emits map
// keys in sorted order): insertion order never changes the key, any
// value change does, and no variable content can forge a pair boundary.
func Key(versionID string, variables map[string]string) string {
	payload, _ := json.Marshal(struct {
		Version   string            `json:"version"`
		Variables map[string]string `json:"variables"`
	}{versionID, variables})

	return fmt.Sprintf("%x", sha256.Sum256(payload))
}

// CLIKey derives the cache key for the raw-prompt endpoint, where there is
// no stored version to key on. Model and prompt are both caller-controlled,
// so they get the same unambiguous encoding as Key.
func CLIKey(model, prompt string) string {
	payload, _ := json.Marshal(struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}{model, prompt})

	return fmt.Sprintf("%x", sha256.Sum256(payload))
}

// Store is the shared key-value backend. Get returns ok=false on a miss.
type Store interface {
	Get(ctx context.Context, key string) (*models.RouterResult, bool, error)
	Set(ctx context.Context, key string, result *models.RouterResult, ttl time.Duration) error
}

// ResponseCache wraps a Store with per-instance singleflight so concurrent
// requests racing on one uncached key invoke the producer at most once.
type ResponseCache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
}

func NewResponseCache(redisURL string, ttl time.Duration) (*ResponseCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &ResponseCache{store: &redisStore{client: redis.NewClient(opt)}, ttl: ttl}, nil
}

// NewWithStore builds a cache over any backing store.
func NewWithStore(store Store, ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: store, ttl: ttl}
}

// GetOrCompute returns the cached result for key, or runs produce exactly
// once per in-flight key, stores its result, and returns it. Producer
// errors are returned to every coalesced caller and never stored.
func (c *ResponseCache) GetOrCompute(ctx context.Context, key string, produce func() (*models.RouterResult, error)) (*models.RouterResult, bool, error) {
	if result, ok, err := c.store.Get(ctx, key); err == nil && ok {
		return result, true, nil
	}

	type outcome struct {
		result *models.RouterResult
		hit    bool
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check inside the flight: a sibling instance may have
		// stored the entry while we waited on the group.
		if result, ok, err := c.store.Get(ctx, key); err == nil && ok {
			return outcome{result: result, hit: true}, nil
		}

		result, err := produce()
		if err != nil {
			return nil, err
		}

		if err := c.store.Set(ctx, key, result, c.ttl); err != nil {
			// A write failure costs a future cache hit, not this request.
			return outcome{result: result}, nil
		}

		return outcome{result: result}, nil
	})
	if err != nil {
		return nil, false, err
	}

	out := v.(outcome)
	return out.result, out.hit, nil
}

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Get(ctx context.Context, key string) (*models.RouterResult, bool, error) {
	data, err := s.client.Get(ctx, "response:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result models.RouterResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, err
	}

	return &result, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, result *models.RouterResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, "response:"+key, data, ttl).Err()
}
