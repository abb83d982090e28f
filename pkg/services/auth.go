// Package services implements the application layer between the HTTP
// boundary and the repositories: authentication, project management,
// and progress assembly. All errors surface as the package sentinels.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/repository"
)

// DefaultTenantSlug is used when registration or login omits a tenant.
const DefaultTenantSlug = "default"

// AuthService handles registration, login, token rotation, and logout.
type AuthService struct {
	tenants   *repository.TenantRepository
	users     *repository.UserRepository
	tokens    *auth.TokenManager
	blacklist *auth.Blacklist
	logger    *slog.Logger
}

// NewAuthService wires the auth service.
func NewAuthService(repos *repository.Repositories, tokens *auth.TokenManager, blacklist *auth.Blacklist, logger *slog.Logger) *AuthService {
	return &AuthService{
		tenants:   repos.Tenants,
		users:     repos.Users,
		tokens:    tokens,
		blacklist: blacklist,
		logger:    logger.With("component", "auth_service"),
	}
}

// Register creates a user, creating and seeding the tenant when the
// slug is new. The first user of a new tenant becomes a superuser.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, *models.TokenResponse, error) {
	if err := validateRegistration(req); err != nil {
		return nil, nil, err
	}
	slug := req.TenantSlug
	if slug == "" {
		slug = DefaultTenantSlug
	}

	tenant, err := s.tenants.GetBySlug(ctx, slug)
	newTenant := false
	switch {
	case errors.Is(err, repository.ErrNotFound):
		name := req.TenantName
		if name == "" {
			name = slug
		}
		tenant, err = s.tenants.Create(ctx, slug, name)
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a create race; the winner's tenant serves us fine.
			tenant, err = s.tenants.GetBySlug(ctx, slug)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve tenant %q: %w", slug, err)
		}
		newTenant = true
	case err != nil:
		return nil, nil, fmt.Errorf("failed to resolve tenant %q: %w", slug, err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, nil, NewValidationError("password", err.Error())
	}

	user, err := s.users.Create(ctx, &models.User{
		TenantID:     tenant.ID,
		Email:        strings.ToLower(req.Email),
		Username:     req.Username,
		PasswordHash: hash,
		IsSuperuser:  newTenant,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, nil, fmt.Errorf("user %q: %w", req.Email, ErrAlreadyExists)
	}
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("User registered",
		"tenant_id", tenant.ID,
		"user_id", user.ID,
		"new_tenant", newTenant)
	return user, tokens, nil
}

// Login exchanges credentials for a token pair. Unknown tenant, unknown
// user, wrong password, and inactive accounts are indistinguishable to
// the caller.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.User, *models.TokenResponse, error) {
	slug := req.Tenant
	if slug == "" {
		slug = DefaultTenantSlug
	}

	tenant, err := s.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, ErrAuthFailed
	}
	user, err := s.users.GetByEmail(ctx, tenant.ID, strings.ToLower(req.Email))
	if err != nil {
		return nil, nil, ErrAuthFailed
	}
	if !user.IsActive || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, nil, ErrAuthFailed
	}
	if s.blacklist.IsUserBlacklisted(ctx, tenant.ID, user.ID) {
		return nil, nil, ErrAuthFailed
	}

	if err := s.users.TouchLogin(ctx, tenant.ID, user.ID); err != nil {
		s.logger.Warn("Failed to record login time", "user_id", user.ID, "error", err)
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Refresh rotates a token pair: the presented refresh token is verified,
// checked against the blacklist, blacklisted for the rest of its life,
// and replaced by a fresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	claims, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if s.blacklist.IsTokenBlacklisted(ctx, claims) {
		return nil, ErrAuthFailed
	}

	user, err := s.users.Get(ctx, claims.TenantID, claims.Subject)
	if err != nil || !user.IsActive {
		return nil, ErrAuthFailed
	}

	// One-shot refresh tokens: the old one dies with the rotation.
	if err := s.blacklist.BlacklistToken(ctx, claims.TenantID, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("failed to retire refresh token: %w", err)
	}

	return s.issueTokens(user)
}

// Logout blacklists the presented (already verified) access token until
// its natural expiry.
func (s *AuthService) Logout(ctx context.Context, tokenStr string, claims *auth.Claims) error {
	expiresAt, err := auth.ParseUnverifiedExpiry(tokenStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if err := s.blacklist.BlacklistToken(ctx, claims.TenantID, claims.ID, expiresAt); err != nil {
		return err
	}
	s.logger.Info("User logged out", "tenant_id", claims.TenantID, "user_id", claims.Subject)
	return nil
}

// ValidateToken confirms a token verifies and is not blacklisted, and
// returns its claims.
func (s *AuthService) ValidateToken(ctx context.Context, tokenStr string) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(tokenStr, auth.TokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if s.blacklist.IsTokenBlacklisted(ctx, claims) {
		return nil, ErrAuthFailed
	}
	return claims, nil
}

// CurrentUser loads the user behind a resolved identity.
func (s *AuthService) CurrentUser(ctx context.Context, id auth.Identity) (*models.User, error) {
	user, err := s.users.Get(ctx, id.TenantID, id.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAuthFailed
	}
	return user, err
}

// BlacklistStats returns the tenant's revocation counters. Superusers only.
func (s *AuthService) BlacklistStats(ctx context.Context, id auth.Identity) (map[string]any, error) {
	user, err := s.CurrentUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsSuperuser {
		return nil, ErrPermissionDenied
	}
	return s.blacklist.Stats(ctx, id.TenantID)
}

func (s *AuthService) issueTokens(user *models.User) (*models.TokenResponse, error) {
	access, refresh, err := s.tokens.IssuePair(user.ID, user.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return &models.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokens.AccessExpiry() / time.Second),
	}, nil
}

func validateRegistration(req models.RegisterRequest) error {
	if req.Email == "" {
		return NewValidationError("email", "is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return NewValidationError("email", "is not a valid address")
	}
	if req.Username == "" {
		return NewValidationError("username", "is required")
	}
	if len(req.Password) < 8 {
		return NewValidationError("password", "must be at least 8 characters")
	}
	return nil
}
