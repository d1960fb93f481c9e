package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memCache struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	setKeys []string
}

func newMemCache() *memCache {
	return &memCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	val, ok := c.values[key]
	if !ok {
		return "", ErrMiss
	}
	return val, nil
}

func (c *memCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.values[key] = value
	c.ttls[key] = ttl
	c.setKeys = append(c.setKeys, key)
	return nil
}

func newTestLimiter(cache Cache, now time.Time) *VisitorLimiter {
	l := NewVisitorLimiter(nil, cache, 50, time.Minute)
	l.now = func() time.Time { return now }
	return l
}

func TestConsumeWindowExhaustion(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	start := time.Unix(1_700_000_000, 0)
	l := newTestLimiter(cache, start)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		d, err := l.Consume(ctx, "session-a", 1)
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}

	d, err := l.Consume(ctx, "session-a", 1)
	if err != nil {
		t.Fatalf("51st call: %v", err)
	}
	if d.Allowed {
		t.Fatal("51st call within the window must be denied")
	}
	wantRetry := start.Add(time.Minute)
	if !d.RetryAfter.Equal(wantRetry) {
		t.Fatalf("retry after = %v, want %v", d.RetryAfter, wantRetry)
	}
}

func TestDenialDoesNotExtendWindow(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	start := time.Unix(1_700_000_000, 0)
	l := newTestLimiter(cache, start)
	ctx := context.Background()

	if _, err := l.Consume(ctx, "s", 50); err != nil {
		t.Fatal(err)
	}
	writes := len(cache.setKeys)
	for i := 0; i < 5; i++ {
		d, err := l.Consume(ctx, "s", 1)
		if err != nil {
			t.Fatal(err)
		}
		if d.Allowed {
			t.Fatal("window is full")
		}
	}
	if len(cache.setKeys) != writes {
		t.Fatal("denied calls must not touch the stored window")
	}
}

func TestWindowResetsAfterExpiry(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	start := time.Unix(1_700_000_000, 0)
	l := newTestLimiter(cache, start)
	ctx := context.Background()

	if _, err := l.Consume(ctx, "s", 50); err != nil {
		t.Fatal(err)
	}

	l.now = func() time.Time { return start.Add(time.Minute) }
	d, err := l.Consume(ctx, "s", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Fatal("a new window must open once the old one ends")
	}
	if d.Remaining != 49 {
		t.Fatalf("remaining = %d, want 49", d.Remaining)
	}
}

func TestTTLMatchesRemainingWindow(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	start := time.Unix(1_700_000_000, 0)
	l := newTestLimiter(cache, start)
	ctx := context.Background()

	if _, err := l.Consume(ctx, "s", 1); err != nil {
		t.Fatal(err)
	}
	// Second consume 20s later must keep the original window end.
	l.now = func() time.Time { return start.Add(20 * time.Second) }
	if _, err := l.Consume(ctx, "s", 1); err != nil {
		t.Fatal(err)
	}
	key := cache.setKeys[len(cache.setKeys)-1]
	if got := cache.ttls[key]; got != 40*time.Second {
		t.Fatalf("ttl = %v, want 40s", got)
	}
}

func TestSessionIDsAreHashed(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	l := newTestLimiter(cache, time.Unix(1_700_000_000, 0))
	if _, err := l.Consume(context.Background(), "visitor-raw-id", 1); err != nil {
		t.Fatal(err)
	}
	for key := range cache.values {
		if key == keyPrefix+"visitor-raw-id" {
			t.Fatal("raw session id leaked into the cache key")
		}
	}
}

func TestDistinctSessionsDistinctWindows(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	l := newTestLimiter(cache, time.Unix(1_700_000_000, 0))
	ctx := context.Background()

	if _, err := l.Consume(ctx, "a", 50); err != nil {
		t.Fatal(err)
	}
	d, err := l.Consume(ctx, "b", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Fatal("session b has its own window")
	}
}
