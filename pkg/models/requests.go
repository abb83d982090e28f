package models

import "time"

// RegisterRequest creates a user, and a tenant when tenant_slug is new.
type RegisterRequest struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	TenantSlug string `json:"tenant_slug,omitempty"`
	TenantName string `json:"tenant_name,omitempty"`
}

// LoginRequest exchanges credentials for a token pair.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Tenant   string `json:"tenant,omitempty"`
}

// RefreshRequest rotates an access token using a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login, register, and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// CreateProjectRequest creates a project. Name is unique per tenant.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateProjectRequest modifies project fields. Nil fields are unchanged.
type UpdateProjectRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Status      *ProjectStatus `json:"status,omitempty"`
}

// ProjectListResponse is a paginated project listing.
type ProjectListResponse struct {
	Projects   []*Project `json:"projects"`
	TotalCount int        `json:"total_count"`
}

// WorkflowRequest drives the full four-stage workflow for a project.
type WorkflowRequest struct {
	ProjectID          string `json:"project_id"`
	IdeaDescription    string `json:"idea_description"`
	TargetAudience     string `json:"target_audience,omitempty"`
	UserClarifications string `json:"user_clarifications,omitempty"`
	TechnologyStack    string `json:"technology_stack,omitempty"`
	UserTechPreferences string `json:"user_tech_preferences,omitempty"`
	TeamSize           *int   `json:"team_size,omitempty"`
	Language           string `json:"language,omitempty"`
}

// StageRequest is the synchronous per-stage invocation body for
// POST /projects/{id}/step{N}.
type StageRequest struct {
	IdeaDescription     string `json:"idea_description,omitempty"`
	TargetAudience      string `json:"target_audience,omitempty"`
	UserClarifications  string `json:"user_clarifications,omitempty"`
	TechnologyStack     string `json:"technology_stack,omitempty"`
	UserTechPreferences string `json:"user_tech_preferences,omitempty"`
	TeamSize            *int   `json:"team_size,omitempty"`
	Language            string `json:"language,omitempty"`
}

// CreateExportRequest queues a ZIP export of the project's latest documents.
type CreateExportRequest struct {
	Format         string `json:"format,omitempty"`
	ExpiresInHours int    `json:"expires_in_hours,omitempty"`
}

// ExportResponse is returned when an export is queued or polled.
type ExportResponse struct {
	ExportID  string         `json:"export_id"`
	Status    ExportStatus   `json:"status"`
	ExpiresAt time.Time      `json:"expires_at"`
	Manifest  ExportManifest `json:"manifest,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ProgressSnapshot is the response of GET /projects/{id}/progress.
type ProgressSnapshot struct {
	ProjectID       string             `json:"project_id"`
	Status          ProjectStatus      `json:"status"`
	OverallProgress int                `json:"overall_progress"`
	Documents       []*DocumentVersion `json:"documents"`
	Executions      []*AgentExecution  `json:"executions,omitempty"`
}
