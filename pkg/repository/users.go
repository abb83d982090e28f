package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/specforge/specforge/pkg/models"
)

// UserRepository persists users scoped by tenant.
type UserRepository struct {
	db *sqlx.DB
}

type userRow struct {
	ID            string     `db:"id"`
	TenantID      string     `db:"tenant_id"`
	Email         string     `db:"email"`
	Username      string     `db:"username"`
	PasswordHash  *string    `db:"password_hash"`
	OAuthProvider *string    `db:"oauth_provider"`
	OAuthSubject  *string    `db:"oauth_subject"`
	IsActive      bool       `db:"is_active"`
	IsSuperuser   bool       `db:"is_superuser"`
	LastLoginAt   *time.Time `db:"last_login_at"`
	CreatedAt     time.Time  `db:"created_at"`
	IsDeleted     bool       `db:"is_deleted"`
}

func (r userRow) toModel() *models.User {
	u := &models.User{
		ID:          r.ID,
		TenantID:    r.TenantID,
		Email:       r.Email,
		Username:    r.Username,
		IsActive:    r.IsActive,
		IsSuperuser: r.IsSuperuser,
		LastLoginAt: r.LastLoginAt,
		CreatedAt:   r.CreatedAt,
		IsDeleted:   r.IsDeleted,
	}
	if r.PasswordHash != nil {
		u.PasswordHash = *r.PasswordHash
	}
	if r.OAuthProvider != nil {
		u.OAuthProvider = *r.OAuthProvider
	}
	if r.OAuthSubject != nil {
		u.OAuthSubject = *r.OAuthSubject
	}
	return u
}

// Create inserts a user. (tenant_id, email) and (tenant_id, username)
// collisions return ErrDuplicate.
func (u *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	user.IsActive = true

	_, err := u.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, username, password_hash, oauth_provider, oauth_subject,
		                   is_active, is_superuser, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)`,
		user.ID, user.TenantID, user.Email, user.Username, user.PasswordHash,
		user.OAuthProvider, user.OAuthSubject, user.IsActive, user.IsSuperuser, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, fmt.Errorf("user %q in tenant %s: %w", user.Email, user.TenantID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByEmail returns a non-deleted user by (tenant, email).
func (u *UserRepository) GetByEmail(ctx context.Context, tenantID, email string) (*models.User, error) {
	var row userRow
	err := u.db.GetContext(ctx, &row,
		`SELECT * FROM users WHERE tenant_id = $1 AND email = $2 AND NOT is_deleted`,
		tenantID, email)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

// Get returns a non-deleted user by (tenant, id).
func (u *UserRepository) Get(ctx context.Context, tenantID, id string) (*models.User, error) {
	var row userRow
	err := u.db.GetContext(ctx, &row,
		`SELECT * FROM users WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted`,
		tenantID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

// TouchLogin records a successful login.
func (u *UserRepository) TouchLogin(ctx context.Context, tenantID, id string) error {
	_, err := u.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = now() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// SoftDelete marks a user deleted.
func (u *UserRepository) SoftDelete(ctx context.Context, tenantID, id string) error {
	res, err := u.db.ExecContext(ctx,
		`UPDATE users SET is_deleted = TRUE, is_active = FALSE WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted`,
		tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
