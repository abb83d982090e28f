package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager("test-secret", 30*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	return m
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestIssuePairAndVerify(t *testing.T) {
	m := newTestManager(t)

	access, refresh, err := m.IssuePair("u1", "t1")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := m.Verify(access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "t1", claims.TenantID)
	assert.NotEmpty(t, claims.ID, "every token carries a jti")

	rc, err := m.Verify(refresh, TokenTypeRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, rc.ID, "access and refresh have distinct jtis")
}

func TestVerifyRejectsWrongType(t *testing.T) {
	m := newTestManager(t)
	access, refresh, err := m.IssuePair("u1", "t1")
	require.NoError(t, err)

	_, err = m.Verify(access, TokenTypeRefresh)
	assert.True(t, errors.Is(err, ErrWrongTokenType))

	_, err = m.Verify(refresh, TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrWrongTokenType))
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	m := newTestManager(t)
	other, err := NewTokenManager("different-secret", time.Minute, time.Hour)
	require.NoError(t, err)

	access, _, err := other.IssuePair("u1", "t1")
	require.NoError(t, err)

	_, err = m.Verify(access, TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, err := NewTokenManager("test-secret", -time.Minute, time.Hour)
	require.NoError(t, err)

	access, _, err := m.IssuePair("u1", "t1")
	require.NoError(t, err)

	_, err = m.Verify(access, TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Verify("not-a-token", TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestParseUnverifiedExpiry(t *testing.T) {
	m := newTestManager(t)
	access, _, err := m.IssuePair("u1", "t1")
	require.NoError(t, err)

	expires, err := ParseUnverifiedExpiry(access)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expires, time.Minute)

	_, err = ParseUnverifiedExpiry("garbage")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}
