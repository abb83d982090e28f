package models

import "time"

// Tenant owns users, projects, and exports. Slug is globally unique.
type Tenant struct {
	ID        string       `json:"id" db:"id"`
	Slug      string       `json:"slug" db:"slug"`
	Name      string       `json:"name" db:"name"`
	IsActive  bool         `json:"is_active" db:"is_active"`
	Limits    TenantLimits `json:"limits" db:"-"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// TenantLimits bounds tenant resource usage. Zero means unlimited.
type TenantLimits struct {
	MaxProjects  int `json:"max_projects,omitempty"`
	MaxStorageMB int `json:"max_storage_mb,omitempty"`
}

// User belongs to exactly one tenant. (tenant_id, email) and
// (tenant_id, username) are unique. PasswordHash is empty only for
// OAuth-linked accounts.
type User struct {
	ID            string     `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	Email         string     `json:"email" db:"email"`
	Username      string     `json:"username" db:"username"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	OAuthProvider string     `json:"oauth_provider,omitempty" db:"oauth_provider"`
	OAuthSubject  string     `json:"-" db:"oauth_subject"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	IsSuperuser   bool       `json:"is_superuser" db:"is_superuser"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	IsDeleted     bool       `json:"-" db:"is_deleted"`
}

// Project is owned by a user within a tenant. (tenant_id, name) is unique.
type Project struct {
	ID          string        `json:"id" db:"id"`
	TenantID    string        `json:"tenant_id" db:"tenant_id"`
	OwnerID     string        `json:"owner_id" db:"owner_id"`
	Name        string        `json:"name" db:"name"`
	Description string        `json:"description,omitempty" db:"description"`
	Status      ProjectStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
	IsDeleted   bool          `json:"-" db:"is_deleted"`
}

// ProjectMember links a user to a project with a role.
// (tenant_id, project_id, user_id) is unique.
type ProjectMember struct {
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	RoleID      string    `json:"role_id" db:"role_id"`
	InvitedByID string    `json:"invited_by_id,omitempty" db:"invited_by_id"`
	JoinedAt    time.Time `json:"joined_at" db:"joined_at"`
	IsActive    bool      `json:"is_active" db:"is_active"`
}

// DocumentVersion is one immutable version of a project document.
// For non-epic types (tenant_id, project_id, document_type, version) is
// unique among non-deleted rows; for plan_epic the key includes epic_number.
// Version numbers per key are strictly monotonic and never reused.
type DocumentVersion struct {
	ID           string         `json:"id" db:"id"`
	TenantID     string         `json:"tenant_id" db:"tenant_id"`
	ProjectID    string         `json:"project_id" db:"project_id"`
	DocumentType DocumentType   `json:"document_type" db:"document_type"`
	Version      int            `json:"version" db:"version"`
	Title        string         `json:"title" db:"title"`
	Content      string         `json:"content" db:"content"`
	EpicNumber   *int           `json:"epic_number,omitempty" db:"epic_number"`
	EpicName     string         `json:"epic_name,omitempty" db:"epic_name"`
	Metadata     map[string]any `json:"metadata,omitempty" db:"-"`
	CreatedBy    string         `json:"created_by" db:"created_by"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	IsDeleted    bool           `json:"-" db:"is_deleted"`
}

// AgentExecution is the durable record of one stage agent invocation.
// The correlation id groups all executions belonging to one workflow run.
// Rows are append-only after reaching a terminal status.
type AgentExecution struct {
	ID            string          `json:"id" db:"id"`
	TenantID      string          `json:"tenant_id" db:"tenant_id"`
	ProjectID     string          `json:"project_id" db:"project_id"`
	AgentType     string          `json:"agent_type" db:"agent_type"`
	CorrelationID string          `json:"correlation_id" db:"correlation_id"`
	Status        ExecutionStatus `json:"status" db:"status"`
	Input         string          `json:"input" db:"input"`
	Output        string          `json:"output,omitempty" db:"output"`
	ErrorMessage  string          `json:"error,omitempty" db:"error_message"`
	StartedAt     time.Time       `json:"started_at" db:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	InitiatedBy   string          `json:"initiated_by" db:"initiated_by"`
}

// Export is a deferred ZIP export of a project's latest documents.
// Once Completed, the artifact at FilePath must exist until ExpiresAt.
type Export struct {
	ID          string         `json:"id" db:"id"`
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	ProjectID   string         `json:"project_id" db:"project_id"`
	RequestedBy string         `json:"requested_by" db:"requested_by"`
	Status      ExportStatus   `json:"status" db:"status"`
	FilePath    string         `json:"-" db:"file_path"`
	Manifest    ExportManifest `json:"manifest" db:"-"`
	Error       string         `json:"error,omitempty" db:"error"`
	ExpiresAt   time.Time      `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// IsDownloadable reports whether the export artifact can be served now.
// The file-existence check is the caller's responsibility.
func (e *Export) IsDownloadable(now time.Time) bool {
	return e.Status == ExportStatusCompleted && !now.After(e.ExpiresAt)
}

// ExportManifest is embedded in the ZIP and on the Export row.
type ExportManifest struct {
	ProjectID string                  `json:"project_id"`
	CreatedAt time.Time               `json:"created_at"`
	Documents []ExportManifestEntry   `json:"documents"`
}

// ExportManifestEntry describes one document inside the archive.
type ExportManifestEntry struct {
	Type      DocumentType `json:"type"`
	Version   int          `json:"version"`
	Title     string       `json:"title"`
	PathInZip string       `json:"path_in_zip"`
}
