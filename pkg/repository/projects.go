package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/models"
)

// ProjectRepository persists projects and project memberships.
type ProjectRepository struct {
	db *sqlx.DB
}

type projectRow struct {
	ID          string    `db:"id"`
	TenantID    string    `db:"tenant_id"`
	OwnerID     string    `db:"owner_id"`
	Name        string    `db:"name"`
	Description *string   `db:"description"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	IsDeleted   bool      `db:"is_deleted"`
}

func (r projectRow) toModel() *models.Project {
	p := &models.Project{
		ID:        r.ID,
		TenantID:  r.TenantID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Status:    models.ProjectStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		IsDeleted: r.IsDeleted,
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	return p
}

// Create inserts a project and an OWNER membership for its owner.
// A duplicate (tenant, name) returns ErrDuplicate.
func (p *ProjectRepository) Create(ctx context.Context, tenantID, ownerID, name, description, ownerRoleID string) (*models.Project, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := uuid.NewString()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projects (id, tenant_id, owner_id, name, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $7)`,
		id, tenantID, ownerID, name, description, string(models.ProjectStatusDraft), now,
	); err != nil {
		if isUniqueViolation(err, "projects_tenant_name_key") {
			return nil, fmt.Errorf("project name %q: %w", name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO project_members (tenant_id, project_id, user_id, role_id, joined_at, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)`,
		tenantID, id, ownerID, ownerRoleID, now,
	); err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project create: %w", err)
	}

	return &models.Project{
		ID: id, TenantID: tenantID, OwnerID: ownerID,
		Name: name, Description: description,
		Status: models.ProjectStatusDraft, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// Get returns a non-deleted project scoped by tenant.
func (p *ProjectRepository) Get(ctx context.Context, tenantID, id string) (*models.Project, error) {
	var row projectRow
	err := p.db.GetContext(ctx, &row,
		`SELECT * FROM projects WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted`,
		tenantID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

// List returns non-deleted projects in a tenant, newest first. The
// status filter is optional; soft delete is honored regardless.
func (p *ProjectRepository) List(ctx context.Context, tenantID string, status models.ProjectStatus) ([]*models.Project, error) {
	query := `SELECT * FROM projects WHERE tenant_id = $1 AND NOT is_deleted`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	var rows []projectRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := make([]*models.Project, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// Update applies non-nil fields. A name collision returns ErrDuplicate.
func (p *ProjectRepository) Update(ctx context.Context, tenantID, id string, req models.UpdateProjectRequest) (*models.Project, error) {
	current, err := p.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	name := current.Name
	if req.Name != nil {
		name = *req.Name
	}
	description := current.Description
	if req.Description != nil {
		description = *req.Description
	}
	status := current.Status
	if req.Status != nil {
		status = *req.Status
	}

	var row projectRow
	err = p.db.GetContext(ctx, &row, `
		UPDATE projects SET name = $3, description = NULLIF($4, ''), status = $5, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted
		RETURNING *`,
		tenantID, id, name, description, string(status))
	if err != nil {
		if isUniqueViolation(err, "projects_tenant_name_key") {
			return nil, fmt.Errorf("project name %q: %w", name, ErrDuplicate)
		}
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

// SetStatus updates only the status column.
func (p *ProjectRepository) SetStatus(ctx context.Context, tenantID, id string, status models.ProjectStatus) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE projects SET status = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted`,
		tenantID, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to set project status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete hides the project from all normal queries. Its document
// version numbers remain reserved.
func (p *ProjectRepository) SoftDelete(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE projects SET is_deleted = TRUE, updated_at = now() WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted`,
		tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MemberPermissions resolves the permission set a user carries in a
// project via its role. Cross-tenant lookups find nothing.
func (p *ProjectRepository) MemberPermissions(ctx context.Context, tenantID, projectID, userID string) ([]auth.Permission, error) {
	var perms []string
	err := p.db.GetContext(ctx, (*pqStringArray)(&perms), `
		SELECT r.permissions FROM project_members m
		JOIN roles r ON r.id = m.role_id
		WHERE m.tenant_id = $1 AND m.project_id = $2 AND m.user_id = $3 AND m.is_active`,
		tenantID, projectID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	out := make([]auth.Permission, len(perms))
	for i, s := range perms {
		out[i] = auth.Permission(s)
	}
	return out, nil
}

// AddMember inserts a membership. Duplicate membership returns ErrDuplicate.
func (p *ProjectRepository) AddMember(ctx context.Context, m *models.ProjectMember) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO project_members (tenant_id, project_id, user_id, role_id, invited_by_id, joined_at, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, now(), TRUE)`,
		m.TenantID, m.ProjectID, m.UserID, m.RoleID, m.InvitedByID)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("membership: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// CountByTenant returns the number of non-deleted projects in a tenant,
// used to enforce tenant limits.
func (p *ProjectRepository) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := p.db.GetContext(ctx, &n,
		`SELECT count(*) FROM projects WHERE tenant_id = $1 AND NOT is_deleted`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return n, nil
}
