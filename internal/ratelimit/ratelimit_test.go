package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func TestAllowBoundary(t *testing.T) {
	store := newFakeCounter()
	rl := NewWithStore(store)
	rl.now = func() time.Time { return time.Unix(1000, 0) }

	ctx := context.Background()
	limit := 5

	for i := 0; i < limit; i++ {
		ok, err := rl.Allow(ctx, "execute", 42, limit, time.Minute)
		if err != nil {
			t.Fatalf("Allow returned error on request %d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}

	ok, err := rl.Allow(ctx, "execute", 42, limit, time.Minute)
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if ok {
		t.Fatal("request limit+1 should be rejected within the same window")
	}

	// Next window admits again.
	rl.now = func() time.Time { return time.Unix(1000+60, 0) }
	ok, err = rl.Allow(ctx, "execute", 42, limit, time.Minute)
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if !ok {
		t.Fatal("first request of the next window should be admitted")
	}
}

func TestAllowScopesAreIndependent(t *testing.T) {
	store := newFakeCounter()
	rl := NewWithStore(store)
	rl.now = func() time.Time { return time.Unix(1000, 0) }

	ctx := context.Background()

	ok, _ := rl.Allow(ctx, "execute", 1, 1, time.Minute)
	if !ok {
		t.Fatal("execute scope should admit")
	}
	ok, _ = rl.Allow(ctx, "execute", 1, 1, time.Minute)
	if ok {
		t.Fatal("execute scope should be exhausted")
	}

	ok, _ = rl.Allow(ctx, "cli", 1, 1, time.Minute)
	if !ok {
		t.Fatal("cli scope must have its own budget")
	}

	ok, _ = rl.Allow(ctx, "execute", 2, 1, time.Minute)
	if !ok {
		t.Fatal("a different key must have its own budget")
	}
}

type fakeRedisCmds struct {
	count     int64
	expireErr error
	expiries  int
}

func (f *fakeRedisCmds) Incr(context.Context, string) *redis.IntCmd {
	f.count++
	return redis.NewIntResult(f.count, nil)
}

func (f *fakeRedisCmds) Expire(context.Context, string, time.Duration) *redis.BoolCmd {
	f.expiries++
	return redis.NewBoolResult(f.expireErr == nil, f.expireErr)
}

func TestRedisCounterSurvivesExpireError(t *testing.T) {
	cmds := &fakeRedisCmds{expireErr: errors.New("connection reset")}
	counter := &redisCounter{client: cmds}
	ctx := context.Background()

	count, err := counter.Increment(ctx, "ratelimit:execute:key:1:0", time.Minute)
	if err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if cmds.expiries != 1 {
		t.Fatalf("expiry set %d times, want 1", cmds.expiries)
	}

	// Only the window's first increment arms the expiry.
	count, err = counter.Increment(ctx, "ratelimit:execute:key:1:0", time.Minute)
	if err != nil || count != 2 {
		t.Fatalf("second increment: count=%d err=%v", count, err)
	}
	if cmds.expiries != 1 {
		t.Fatalf("expiry set %d times after second increment, want 1", cmds.expiries)
	}
}

func TestAllowFailsClosedOnStoreError(t *testing.T) {
	store := newFakeCounter()
	store.err = errors.New("connection refused")
	rl := NewWithStore(store)

	ok, err := rl.Allow(context.Background(), "execute", 1, 100, time.Minute)
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if ok {
		t.Fatal("storage errors must reject, not admit")
	}
}
