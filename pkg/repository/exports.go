package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/specforge/specforge/pkg/models"
)

// ExportRepository persists deferred ZIP export requests.
type ExportRepository struct {
	db *sqlx.DB
}

type exportRow struct {
	ID          string    `db:"id"`
	TenantID    string    `db:"tenant_id"`
	ProjectID   string    `db:"project_id"`
	RequestedBy string    `db:"requested_by"`
	Status      string    `db:"status"`
	FilePath    *string   `db:"file_path"`
	Manifest    []byte    `db:"manifest"`
	Error       *string   `db:"error"`
	ExpiresAt   time.Time `db:"expires_at"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r exportRow) toModel() (*models.Export, error) {
	e := &models.Export{
		ID:          r.ID,
		TenantID:    r.TenantID,
		ProjectID:   r.ProjectID,
		RequestedBy: r.RequestedBy,
		Status:      models.ExportStatus(r.Status),
		ExpiresAt:   r.ExpiresAt,
		CreatedAt:   r.CreatedAt,
	}
	if r.FilePath != nil {
		e.FilePath = *r.FilePath
	}
	if r.Error != nil {
		e.Error = *r.Error
	}
	if len(r.Manifest) > 0 && string(r.Manifest) != "{}" {
		if err := json.Unmarshal(r.Manifest, &e.Manifest); err != nil {
			return nil, fmt.Errorf("failed to decode export manifest: %w", err)
		}
	}
	return e, nil
}

// Create inserts a PENDING export request.
func (e *ExportRepository) Create(ctx context.Context, tenantID, projectID, requestedBy string, ttl time.Duration) (*models.Export, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	exp := &models.Export{
		ID: id, TenantID: tenantID, ProjectID: projectID, RequestedBy: requestedBy,
		Status: models.ExportStatusPending, ExpiresAt: now.Add(ttl), CreatedAt: now,
	}
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO exports (id, tenant_id, project_id, requested_by, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, tenantID, projectID, requestedBy, string(exp.Status), exp.ExpiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create export: %w", err)
	}
	return exp, nil
}

// Get returns an export by id.
func (e *ExportRepository) Get(ctx context.Context, tenantID, id string) (*models.Export, error) {
	var row exportRow
	err := e.db.GetContext(ctx, &row,
		`SELECT * FROM exports WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

// ClaimPending atomically moves the oldest PENDING export to GENERATING
// and returns it, or ErrNotFound when the queue is empty. SKIP LOCKED
// lets multiple workers drain the queue without contention.
func (e *ExportRepository) ClaimPending(ctx context.Context) (*models.Export, error) {
	var row exportRow
	err := e.db.GetContext(ctx, &row, `
		UPDATE exports SET status = 'GENERATING'
		WHERE id = (
			SELECT id FROM exports WHERE status = 'PENDING'
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING *`)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

// Complete records a finished artifact and its manifest.
func (e *ExportRepository) Complete(ctx context.Context, tenantID, id, filePath string, manifest models.ExportManifest) error {
	m, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to encode export manifest: %w", err)
	}
	res, err := e.db.ExecContext(ctx, `
		UPDATE exports SET status = 'COMPLETED', file_path = $3, manifest = $4
		WHERE tenant_id = $1 AND id = $2 AND status = 'GENERATING'`,
		tenantID, id, filePath, m)
	if err != nil {
		return fmt.Errorf("failed to complete export: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Fail records a generation failure.
func (e *ExportRepository) Fail(ctx context.Context, tenantID, id, errMsg string) error {
	res, err := e.db.ExecContext(ctx, `
		UPDATE exports SET status = 'FAILED', error = $3
		WHERE tenant_id = $1 AND id = $2 AND status IN ('PENDING', 'GENERATING')`,
		tenantID, id, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark export failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireDue flips completed exports past their expiry to EXPIRED and
// returns them so the caller can delete the artifacts.
func (e *ExportRepository) ExpireDue(ctx context.Context, now time.Time) ([]*models.Export, error) {
	var rows []exportRow
	err := e.db.SelectContext(ctx, &rows, `
		UPDATE exports SET status = 'EXPIRED'
		WHERE status = 'COMPLETED' AND expires_at < $1
		RETURNING *`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire exports: %w", err)
	}
	out := make([]*models.Export, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ListByProject returns a project's exports, newest first.
func (e *ExportRepository) ListByProject(ctx context.Context, tenantID, projectID string) ([]*models.Export, error) {
	var rows []exportRow
	err := e.db.SelectContext(ctx, &rows, `
		SELECT * FROM exports WHERE tenant_id = $1 AND project_id = $2
		ORDER BY created_at DESC`,
		tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	out := make([]*models.Export, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
