package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	values map[string]string
	err    error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string]string)}
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.values[key] = value
	return nil
}

func (f *fakeKV) Exists(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.values[key]
	return ok, nil
}

func (f *fakeKV) Get(_ context.Context, key string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeKV) Incr(_ context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.values[key] = "1"
	return 1, nil
}

func claimsFor(tenantID, userID, jti string, expiresAt time.Time) *Claims {
	return &Claims{
		TenantID:  tenantID,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
}

func TestBlacklistTokenRoundTrip(t *testing.T) {
	kv := newFakeKV()
	b := NewBlacklist(kv)
	expires := time.Now().Add(time.Hour)

	claims := claimsFor("t1", "u1", "jti-1", expires)
	assert.False(t, b.IsTokenBlacklisted(context.Background(), claims))

	require.NoError(t, b.BlacklistToken(context.Background(), "t1", "jti-1", expires))
	assert.True(t, b.IsTokenBlacklisted(context.Background(), claims))
}

func TestBlacklistTenantIsolation(t *testing.T) {
	kv := newFakeKV()
	b := NewBlacklist(kv)
	expires := time.Now().Add(time.Hour)

	require.NoError(t, b.BlacklistToken(context.Background(), "tenant-a", "shared-jti", expires))

	// The same JTI under another tenant stays valid.
	other := claimsFor("tenant-b", "u1", "shared-jti", expires)
	assert.False(t, b.IsTokenBlacklisted(context.Background(), other))

	same := claimsFor("tenant-a", "u1", "shared-jti", expires)
	assert.True(t, b.IsTokenBlacklisted(context.Background(), same))
}

func TestBlacklistFailsClosed(t *testing.T) {
	kv := newFakeKV()
	b := NewBlacklist(kv)
	expires := time.Now().Add(time.Hour)
	claims := claimsFor("t1", "u1", "jti-1", expires)

	kv.err = errors.New("connection refused")
	assert.True(t, b.IsTokenBlacklisted(context.Background(), claims),
		"a broken store must treat the token as blacklisted")
}

func TestBlacklistRejectsIncompleteClaims(t *testing.T) {
	b := NewBlacklist(newFakeKV())

	assert.True(t, b.IsTokenBlacklisted(context.Background(), nil))

	noJTI := claimsFor("t1", "u1", "", time.Now().Add(time.Hour))
	assert.True(t, b.IsTokenBlacklisted(context.Background(), noJTI))

	noTenant := claimsFor("", "u1", "jti-1", time.Now().Add(time.Hour))
	assert.True(t, b.IsTokenBlacklisted(context.Background(), noTenant))
}

func TestBlacklistSkipsExpiredTokens(t *testing.T) {
	kv := newFakeKV()
	b := NewBlacklist(kv)

	require.NoError(t, b.BlacklistToken(context.Background(), "t1", "jti-1", time.Now().Add(-time.Minute)))
	assert.Empty(t, kv.values, "expired tokens need no blacklist entry")
}

func TestBlacklistUser(t *testing.T) {
	kv := newFakeKV()
	b := NewBlacklist(kv)
	expires := time.Now().Add(time.Hour)

	require.NoError(t, b.BlacklistUser(context.Background(), "t1", "u1", time.Hour))

	// Any token of the user is now rejected, regardless of JTI.
	assert.True(t, b.IsTokenBlacklisted(context.Background(), claimsFor("t1", "u1", "any-jti", expires)))
	assert.True(t, b.IsUserBlacklisted(context.Background(), "t1", "u1"))

	// Same user id under another tenant is unaffected.
	assert.False(t, b.IsTokenBlacklisted(context.Background(), claimsFor("t2", "u1", "any-jti", expires)))
}

func TestBlacklistStats(t *testing.T) {
	kv := newFakeKV()
	b := NewBlacklist(kv)

	stats, err := b.Stats(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "0", stats["tokens_revoked"])

	require.NoError(t, b.BlacklistToken(context.Background(), "t1", "jti-1", time.Now().Add(time.Hour)))
	stats, err = b.Stats(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "1", stats["tokens_revoked"])
}
