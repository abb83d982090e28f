package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// KVStore is the subset of the KV adapter the blacklist needs.
type KVStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// Blacklist invalidates tokens per JTI and per user, always scoped to a
// tenant. Checks fail closed: an unreachable store treats the token as
// blacklisted rather than letting a revoked token through.
type Blacklist struct {
	store KVStore
	now   func() time.Time
}

// NewBlacklist creates a blacklist over the KV adapter.
func NewBlacklist(store KVStore) *Blacklist {
	return &Blacklist{store: store, now: time.Now}
}

func jtiKey(tenantID, jti string) string {
	return fmt.Sprintf("blacklist:tenant:%s:token:%s", tenantID, jti)
}

func userKey(tenantID, userID string) string {
	return fmt.Sprintf("blacklist:tenant:%s:user:%s", tenantID, userID)
}

func statsKey(tenantID string) string {
	return fmt.Sprintf("blacklist:tenant:%s:stats:revoked", tenantID)
}

// BlacklistToken records a token's JTI until its expiry. Already-expired
// tokens are skipped — they are invalid regardless.
func (b *Blacklist) BlacklistToken(ctx context.Context, tenantID, jti string, expiresAt time.Time) error {
	if tenantID == "" || jti == "" {
		return fmt.Errorf("tenant_id and jti are required for blacklisting")
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		slog.Debug("Skipping blacklist write for already-expired token", "tenant_id", tenantID)
		return nil
	}
	if err := b.store.Set(ctx, jtiKey(tenantID, jti), "1", ttl); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	if _, err := b.store.Incr(ctx, statsKey(tenantID)); err != nil {
		slog.Debug("Failed to bump blacklist counter", "tenant_id", tenantID, "error", err)
	}
	return nil
}

// BlacklistUser invalidates every outstanding token of a user for ttl.
func (b *Blacklist) BlacklistUser(ctx context.Context, tenantID, userID string, ttl time.Duration) error {
	if tenantID == "" || userID == "" {
		return fmt.Errorf("tenant_id and user_id are required for blacklisting")
	}
	if ttl <= 0 {
		return nil
	}
	if err := b.store.Set(ctx, userKey(tenantID, userID), "1", ttl); err != nil {
		return fmt.Errorf("failed to blacklist user: %w", err)
	}
	return nil
}

// IsTokenBlacklisted checks a verified token's claims. Missing jti or
// tenant_id, and any store error, count as blacklisted (fail closed) —
// unless the token is independently known to be expired, in which case
// it is already invalid and the answer is moot.
func (b *Blacklist) IsTokenBlacklisted(ctx context.Context, claims *Claims) bool {
	if claims == nil || claims.ID == "" || claims.TenantID == "" {
		return true
	}

	jtiHit, err := b.store.Exists(ctx, jtiKey(claims.TenantID, claims.ID))
	if err != nil {
		if claims.ExpiresAt != nil && b.now().After(claims.ExpiresAt.Time) {
			return true // expired anyway
		}
		slog.Warn("Blacklist check failed, failing closed",
			"tenant_id", claims.TenantID, "error", err)
		return true
	}
	if jtiHit {
		return true
	}

	userHit, err := b.store.Exists(ctx, userKey(claims.TenantID, claims.Subject))
	if err != nil {
		slog.Warn("Blacklist user check failed, failing closed",
			"tenant_id", claims.TenantID, "error", err)
		return true
	}
	return userHit
}

// IsUserBlacklisted reports whether the user-wide key exists. Fails closed.
func (b *Blacklist) IsUserBlacklisted(ctx context.Context, tenantID, userID string) bool {
	hit, err := b.store.Exists(ctx, userKey(tenantID, userID))
	if err != nil {
		slog.Warn("Blacklist user check failed, failing closed",
			"tenant_id", tenantID, "error", err)
		return true
	}
	return hit
}

// Stats returns the revocation counter for a tenant.
func (b *Blacklist) Stats(ctx context.Context, tenantID string) (map[string]any, error) {
	val, ok, err := b.store.Get(ctx, statsKey(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to read blacklist stats: %w", err)
	}
	revoked := "0"
	if ok {
		revoked = val
	}
	return map[string]any{
		"tenant_id":      tenantID,
		"tokens_revoked": revoked,
	}, nil
}
