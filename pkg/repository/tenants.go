package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/models"
)

// TenantRepository persists tenants and their seeded roles.
type TenantRepository struct {
	db *sqlx.DB
}

type tenantRow struct {
	ID           string    `db:"id"`
	Slug         string    `db:"slug"`
	Name         string    `db:"name"`
	IsActive     bool      `db:"is_active"`
	MaxProjects  *int      `db:"max_projects"`
	MaxStorageMB *int      `db:"max_storage_mb"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r tenantRow) toModel() *models.Tenant {
	t := &models.Tenant{
		ID:        r.ID,
		Slug:      r.Slug,
		Name:      r.Name,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
	if r.MaxProjects != nil {
		t.Limits.MaxProjects = *r.MaxProjects
	}
	if r.MaxStorageMB != nil {
		t.Limits.MaxStorageMB = *r.MaxStorageMB
	}
	return t
}

// Create inserts a tenant and seeds the three fixed roles for it.
// A duplicate slug returns ErrDuplicate.
func (r *TenantRepository) Create(ctx context.Context, slug, name string) (*models.Tenant, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := uuid.NewString()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tenants (id, slug, name, is_active, created_at) VALUES ($1, $2, $3, TRUE, $4)`,
		id, slug, name, now,
	); err != nil {
		if isUniqueViolation(err, "") {
			return nil, fmt.Errorf("tenant slug %q: %w", slug, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	// Seed the fixed role → permission mappings for this tenant.
	for roleName, perms := range auth.RolePermissions {
		permStrs := make([]string, len(perms))
		for i, p := range perms {
			permStrs[i] = string(p)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO roles (id, tenant_id, name, permissions) VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), id, roleName, "{"+strings.Join(permStrs, ",")+"}",
		); err != nil {
			return nil, fmt.Errorf("failed to seed role %s: %w", roleName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tenant create: %w", err)
	}

	return &models.Tenant{ID: id, Slug: slug, Name: name, IsActive: true, CreatedAt: now}, nil
}

// GetBySlug returns a tenant by its globally unique slug.
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var row tenantRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM tenants WHERE slug = $1`, slug)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

// Get returns a tenant by id.
func (r *TenantRepository) Get(ctx context.Context, id string) (*models.Tenant, error) {
	var row tenantRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM tenants WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

// RoleID returns the id of a seeded role within a tenant.
func (r *TenantRepository) RoleID(ctx context.Context, tenantID, roleName string) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id,
		`SELECT id FROM roles WHERE tenant_id = $1 AND name = $2`, tenantID, roleName)
	if err != nil {
		return "", notFound(err)
	}
	return id, nil
}

// RolePermissions returns the permission set of a role.
func (r *TenantRepository) RolePermissions(ctx context.Context, roleID string) ([]auth.Permission, error) {
	var perms []string
	err := r.db.GetContext(ctx, (*pqStringArray)(&perms),
		`SELECT permissions FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return nil, notFound(err)
	}
	out := make([]auth.Permission, len(perms))
	for i, p := range perms {
		out[i] = auth.Permission(p)
	}
	return out, nil
}
