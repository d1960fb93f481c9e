package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const keyPrefix = "rl:visitor:"

// Decision is the outcome of one Consume call.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is when the current window expires. Only meaningful when
	// the call was denied.
	RetryAfter time.Time
}

// windowState is the serialized per-session counter.
type windowState struct {
	Count       int   `json:"count"`
	WindowStart int64 `json:"window_start"`
}

// VisitorLimiter enforces a fixed-window message quota per visitor session.
// Sessions are identified by an opaque id which is hashed before it becomes
// a cache key, so raw session ids never reach the cache server.
type VisitorLimiter struct {
	cache  Cache
	limit  int
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewVisitorLimiter creates a limiter allowing limit messages per window.
func NewVisitorLimiter(log *slog.Logger, cache Cache, limit int, window time.Duration) *VisitorLimiter {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = 50
	}
	if window <= 0 {
		window = time.Minute
	}
	return &VisitorLimiter{
		cache:  cache,
		limit:  limit,
		window: window,
		logger: log.With(slog.String("component", "ratelimit")),
		now:    time.Now,
	}
}

// Consume accounts tokens against the session's current window. A denied
// call does not mutate the window, so hammering a closed window never
// extends it.
func (l *VisitorLimiter) Consume(ctx context.Context, sessionID string, tokens int) (Decision, error) {
	if tokens <= 0 {
		tokens = 1
	}
	key := l.key(sessionID)
	now := l.now()

	state := windowState{WindowStart: now.Unix()}
	raw, err := l.cache.Get(ctx, key)
	switch err {
	case nil:
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			// Corrupt state starts a fresh window rather than locking the
			// visitor out.
			l.logger.Warn("discarding corrupt limiter state", slog.Any("error", err))
			state = windowState{WindowStart: now.Unix()}
		}
	case ErrMiss:
	default:
		return Decision{}, fmt.Errorf("limiter cache get: %w", err)
	}

	windowEnd := time.Unix(state.WindowStart, 0).Add(l.window)
	if !now.Before(windowEnd) {
		state = windowState{WindowStart: now.Unix()}
		windowEnd = now.Add(l.window)
	}

	if state.Count+tokens > l.limit {
		return Decision{
			Allowed:    false,
			Remaining:  max(l.limit-state.Count, 0),
			RetryAfter: windowEnd,
		}, nil
	}

	state.Count += tokens
	encoded, err := json.Marshal(state)
	if err != nil {
		return Decision{}, err
	}
	ttl := windowEnd.Sub(now)
	if err := l.cache.Set(ctx, key, string(encoded), ttl); err != nil {
		return Decision{}, fmt.Errorf("limiter cache set: %w", err)
	}
	return Decision{
		Allowed:   true,
		Remaining: l.limit - state.Count,
	}, nil
}

func (l *VisitorLimiter) key(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return keyPrefix + hex.EncodeToString(sum[:])
}
