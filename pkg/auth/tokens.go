// Package auth provides bearer-token issuance and verification, the
// tenant-scoped token blacklist, and project-level access control.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type claim values.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken covers expired, malformed, and mis-signed tokens,
	// and tokens missing the jti or tenant_id claims.
	ErrInvalidToken = errors.New("invalid token")

	// ErrWrongTokenType is returned when a refresh token is presented
	// where an access token is required, or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims are the registered claims plus tenant scoping. Tokens lacking
// jti or tenant_id are invalid by definition.
type Claims struct {
	TenantID  string `json:"tenant_id"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies signed tokens.
type TokenManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewTokenManager creates a token manager. The secret must be non-empty.
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret must not be empty")
	}
	return &TokenManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}, nil
}

// IssuePair issues an access + refresh token pair for a user.
func (m *TokenManager) IssuePair(userID, tenantID string) (access, refresh string, err error) {
	access, err = m.issue(userID, tenantID, TokenTypeAccess, m.accessExpiry)
	if err != nil {
		return "", "", err
	}
	refresh, err = m.issue(userID, tenantID, TokenTypeRefresh, m.refreshExpiry)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// AccessExpiry returns the configured access token lifetime.
func (m *TokenManager) AccessExpiry() time.Duration {
	return m.accessExpiry
}

func (m *TokenManager) issue(userID, tenantID, tokenType string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID:  tenantID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token of the expected type. The returned
// claims always carry a non-empty Subject, TenantID, and ID (jti).
func (m *TokenManager) Verify(tokenStr, expectedType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.TenantID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing required claims", ErrInvalidToken)
	}
	if claims.TokenType != expectedType {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, claims.TokenType, expectedType)
	}
	return claims, nil
}

// ParseUnverifiedExpiry extracts the expiry from a token without
// validating the signature. Used when blacklisting an already-verified
// token on logout to bound the blacklist TTL.
func ParseUnverifiedExpiry(tokenStr string) (time.Time, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	return claims.ExpiresAt.Time, nil
}
