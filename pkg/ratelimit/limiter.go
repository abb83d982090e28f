// Package ratelimit implements a sliding-window rate limiter over the
// key/value store's sorted sets. Adapter failures fail open: a broken
// store must not block requests.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SortedSetStore is the subset of the KV adapter the limiter needs.
// Satisfied by *kv.Store; faked in tests.
type SortedSetStore interface {
	ZRemRangeByScore(ctx context.Context, key, min, max string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]redis.Z, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Result is the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Current   int
	Remaining int
	ResetAt   time.Time
	Window    time.Duration
	// Note annotates fail-open outcomes with the adapter error.
	Note string
}

// Policy is one endpoint's limit and window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Limiter checks sliding-window limits per (client, endpoint) key.
type Limiter struct {
	store    SortedSetStore
	policies map[string]Policy // path prefix → policy
	fallback Policy
	now      func() time.Time
}

// New creates a limiter with the default policy table. The fallback
// policy applies to paths with no specific entry.
func New(store SortedSetStore, fallback Policy) *Limiter {
	return &Limiter{
		store: store,
		policies: map[string]Policy{
			"/api/v1/auth/login":    {Limit: 5, Window: 300 * time.Second},
			"/api/v1/auth/register": {Limit: 3, Window: 3600 * time.Second},
			"/api/v1/agents":        {Limit: 20, Window: 60 * time.Second},
			"/api/v1/projects":      {Limit: 60, Window: 60 * time.Second},
		},
		fallback: fallback,
		now:      time.Now,
	}
}

// PolicyFor returns the policy for the longest matching path prefix.
func (l *Limiter) PolicyFor(path string) Policy {
	best := ""
	policy := l.fallback
	for prefix, p := range l.policies {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(best) {
			best = prefix
			policy = p
		}
	}
	return policy
}

// Check runs the sliding-window algorithm for the given client/endpoint.
//
//  1. Evict members with score ≤ now − window.
//  2. Count members (= requests currently in the window).
//  3. At or over the limit: reset_at = oldest score + window, deny.
//  4. Otherwise record this request, bound the key's TTL, allow.
//
// Any adapter error returns an allowed result with a note — fail-open.
func (l *Limiter) Check(ctx context.Context, clientID, endpoint string, limit int, window time.Duration) Result {
	key := fmt.Sprintf("ratelimit:%s:%s", clientID, endpoint)
	now := l.now()
	windowSecs := int64(window.Seconds())

	failOpen := func(err error) Result {
		slog.Warn("Rate limiter check failed, allowing request",
			"key", key, "error", err)
		return Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   now.Add(window),
			Window:    window,
			Note:      "error",
		}
	}

	cutoff := now.Unix() - windowSecs
	if err := l.store.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff)); err != nil {
		return failOpen(err)
	}

	current, err := l.store.ZCard(ctx, key)
	if err != nil {
		return failOpen(err)
	}

	if current >= int64(limit) {
		resetAt := now.Add(window)
		if oldest, err := l.store.ZRangeWithScores(ctx, key, 0, 0); err == nil && len(oldest) > 0 {
			resetAt = time.Unix(int64(oldest[0].Score)+windowSecs, 0)
		}
		return Result{
			Allowed:   false,
			Limit:     limit,
			Current:   int(current),
			Remaining: 0,
			ResetAt:   resetAt,
			Window:    window,
		}
	}

	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())
	if err := l.store.ZAdd(ctx, key, float64(now.Unix()), member); err != nil {
		return failOpen(err)
	}
	if err := l.store.Expire(ctx, key, window); err != nil {
		// TTL is housekeeping; the eviction step keeps the window correct.
		slog.Debug("Failed to set rate-limit key TTL", "key", key, "error", err)
	}

	return Result{
		Allowed:   true,
		Limit:     limit,
		Current:   int(current) + 1,
		Remaining: limit - int(current) - 1,
		ResetAt:   now.Add(window),
		Window:    window,
	}
}
