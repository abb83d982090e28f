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

// DocumentRepository persists immutable document versions. Version
// numbers per (tenant, project, type[, epic]) key are assigned under a
// transaction-scoped advisory lock so concurrent writers serialize and
// never reuse a number, even across soft deletes.
type DocumentRepository struct {
	db *sqlx.DB
}

type documentRow struct {
	ID           string    `db:"id"`
	TenantID     string    `db:"tenant_id"`
	ProjectID    string    `db:"project_id"`
	DocumentType string    `db:"document_type"`
	Version      int       `db:"version"`
	Title        string    `db:"title"`
	Content      string    `db:"content"`
	EpicNumber   *int      `db:"epic_number"`
	EpicName     *string   `db:"epic_name"`
	Metadata     []byte    `db:"metadata"`
	CreatedBy    string    `db:"created_by"`
	CreatedAt    time.Time `db:"created_at"`
	IsDeleted    bool      `db:"is_deleted"`
}

func (r documentRow) toModel() (*models.DocumentVersion, error) {
	d := &models.DocumentVersion{
		ID:           r.ID,
		TenantID:     r.TenantID,
		ProjectID:    r.ProjectID,
		DocumentType: models.DocumentType(r.DocumentType),
		Version:      r.Version,
		Title:        r.Title,
		Content:      r.Content,
		EpicNumber:   r.EpicNumber,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
		IsDeleted:    r.IsDeleted,
	}
	if r.EpicName != nil {
		d.EpicName = *r.EpicName
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode document metadata: %w", err)
		}
	}
	return d, nil
}

// versionKey identifies one version sequence. Epic documents version
// independently per epic number; all other types version per type.
func versionKey(tenantID, projectID string, docType models.DocumentType, epicNumber *int) string {
	if docType == models.DocumentTypePlanEpic && epicNumber != nil {
		return fmt.Sprintf("%s/%s/%s/%d", tenantID, projectID, docType, *epicNumber)
	}
	return fmt.Sprintf("%s/%s/%s", tenantID, projectID, docType)
}

// CreateVersion assigns the next version number and inserts the row in
// one transaction. The advisory lock on the version key serializes
// concurrent writers; the MAX scan includes soft-deleted rows so
// numbers are never reused.
func (d *DocumentRepository) CreateVersion(ctx context.Context, doc *models.DocumentVersion) (*models.DocumentVersion, error) {
	if doc.DocumentType == models.DocumentTypePlanEpic && doc.EpicNumber == nil {
		return nil, fmt.Errorf("plan_epic document requires an epic number")
	}

	metadata := []byte("{}")
	if doc.Metadata != nil {
		var err error
		metadata, err = json.Marshal(doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document metadata: %w", err)
		}
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	key := versionKey(doc.TenantID, doc.ProjectID, doc.DocumentType, doc.EpicNumber)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return nil, fmt.Errorf("failed to take version lock: %w", err)
	}

	var next int
	if doc.DocumentType == models.DocumentTypePlanEpic {
		err = tx.GetContext(ctx, &next, `
			SELECT COALESCE(MAX(version), 0) + 1 FROM document_versions
			WHERE tenant_id = $1 AND project_id = $2 AND document_type = $3 AND epic_number = $4`,
			doc.TenantID, doc.ProjectID, string(doc.DocumentType), *doc.EpicNumber)
	} else {
		err = tx.GetContext(ctx, &next, `
			SELECT COALESCE(MAX(version), 0) + 1 FROM document_versions
			WHERE tenant_id = $1 AND project_id = $2 AND document_type = $3`,
			doc.TenantID, doc.ProjectID, string(doc.DocumentType))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compute next version: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO document_versions
			(id, tenant_id, project_id, document_type, version, title, content,
			 epic_number, epic_name, metadata, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)`,
		id, doc.TenantID, doc.ProjectID, string(doc.DocumentType), next,
		doc.Title, doc.Content, doc.EpicNumber, doc.EpicName, metadata, doc.CreatedBy, now,
	); err != nil {
		return nil, fmt.Errorf("failed to insert document version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit document version: %w", err)
	}

	created := *doc
	created.ID = id
	created.Version = next
	created.CreatedAt = now
	return &created, nil
}

// LatestByType returns the newest non-deleted version of a document type.
// For plan_epic pass the epic number; a nil epicNumber with plan_epic
// returns the latest version across all epics.
func (d *DocumentRepository) LatestByType(ctx context.Context, tenantID, projectID string, docType models.DocumentType, epicNumber *int) (*models.DocumentVersion, error) {
	query := `
		SELECT * FROM document_versions
		WHERE tenant_id = $1 AND project_id = $2 AND document_type = $3 AND NOT is_deleted`
	args := []any{tenantID, projectID, string(docType)}
	if epicNumber != nil {
		query += ` AND epic_number = $4`
		args = append(args, *epicNumber)
	}
	query += ` ORDER BY version DESC LIMIT 1`

	var row documentRow
	if err := d.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

// GetVersion returns a specific non-deleted version.
func (d *DocumentRepository) GetVersion(ctx context.Context, tenantID, projectID string, docType models.DocumentType, version int) (*models.DocumentVersion, error) {
	var row documentRow
	err := d.db.GetContext(ctx, &row, `
		SELECT * FROM document_versions
		WHERE tenant_id = $1 AND project_id = $2 AND document_type = $3 AND version = $4
		  AND NOT is_deleted AND document_type <> 'plan_epic'`,
		tenantID, projectID, string(docType), version)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

// Get returns a non-deleted version by id.
func (d *DocumentRepository) Get(ctx context.Context, tenantID, id string) (*models.DocumentVersion, error) {
	var row documentRow
	err := d.db.GetContext(ctx, &row,
		`SELECT * FROM document_versions WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted`,
		tenantID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

// ListByProject returns all non-deleted versions in a project, optionally
// filtered by type, newest first.
func (d *DocumentRepository) ListByProject(ctx context.Context, tenantID, projectID string, docType models.DocumentType) ([]*models.DocumentVersion, error) {
	query := `
		SELECT * FROM document_versions
		WHERE tenant_id = $1 AND project_id = $2 AND NOT is_deleted`
	args := []any{tenantID, projectID}
	if docType != "" {
		query += ` AND document_type = $3`
		args = append(args, string(docType))
	}
	query += ` ORDER BY document_type, epic_number NULLS FIRST, version DESC`

	var rows []documentRow
	if err := d.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list document versions: %w", err)
	}
	out := make([]*models.DocumentVersion, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// LatestSet returns the latest non-deleted version of every document type
// present in the project. For plan_epic that is the latest version per
// epic number, so a project with three epics yields three epic documents.
func (d *DocumentRepository) LatestSet(ctx context.Context, tenantID, projectID string) ([]*models.DocumentVersion, error) {
	var rows []documentRow
	err := d.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT ON (document_type, epic_number) *
		FROM document_versions
		WHERE tenant_id = $1 AND project_id = $2 AND NOT is_deleted
		ORDER BY document_type, epic_number NULLS FIRST, version DESC`,
		tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest document set: %w", err)
	}
	out := make([]*models.DocumentVersion, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// SoftDelete hides a version. Its number stays reserved: the next write
// to the same key continues past it, never back-fills.
func (d *DocumentRepository) SoftDelete(ctx context.Context, tenantID, id string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE document_versions SET is_deleted = TRUE WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted`,
		tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete document version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
