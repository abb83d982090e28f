package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/repository"
)

// maxProjectNameLen bounds project names at the validation layer.
const maxProjectNameLen = 200

// ProjectService manages projects with per-member permission checks.
type ProjectService struct {
	tenants    *repository.TenantRepository
	projects   *repository.ProjectRepository
	documents  *repository.DocumentRepository
	executions *repository.ExecutionRepository
	logger     *slog.Logger
}

// NewProjectService wires the project service.
func NewProjectService(repos *repository.Repositories, logger *slog.Logger) *ProjectService {
	return &ProjectService{
		tenants:    repos.Tenants,
		projects:   repos.Projects,
		documents:  repos.Documents,
		executions: repos.Executions,
		logger:     logger.With("component", "project_service"),
	}
}

// Create makes a project owned by the caller, who gets an OWNER
// membership. Duplicate names within the tenant map to ErrAlreadyExists.
func (s *ProjectService) Create(ctx context.Context, id auth.Identity, req models.CreateProjectRequest) (*models.Project, error) {
	if req.Name == "" {
		return nil, NewValidationError("name", "is required")
	}
	if len(req.Name) > maxProjectNameLen {
		return nil, NewValidationError("name", fmt.Sprintf("must be at most %d characters", maxProjectNameLen))
	}

	tenant, err := s.tenants.Get(ctx, id.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant.Limits.MaxProjects > 0 {
		count, err := s.projects.CountByTenant(ctx, id.TenantID)
		if err != nil {
			return nil, err
		}
		if count >= tenant.Limits.MaxProjects {
			return nil, NewValidationError("name",
				fmt.Sprintf("tenant project limit of %d reached", tenant.Limits.MaxProjects))
		}
	}

	ownerRoleID, err := s.tenants.RoleID(ctx, id.TenantID, auth.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner role: %w", err)
	}

	project, err := s.projects.Create(ctx, id.TenantID, id.UserID, req.Name, req.Description, ownerRoleID)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("project name %q is taken: %w", req.Name, ErrAlreadyExists)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("Project created",
		"tenant_id", id.TenantID,
		"project_id", project.ID,
		"name", project.Name)
	return project, nil
}

// Get returns a project the caller can read.
func (s *ProjectService) Get(ctx context.Context, id auth.Identity, projectID string) (*models.Project, error) {
	if err := s.Authorize(ctx, id, projectID, auth.PermProjectRead); err != nil {
		return nil, err
	}
	return s.loadProject(ctx, id.TenantID, projectID)
}

// List returns the tenant's projects, optionally filtered by status.
func (s *ProjectService) List(ctx context.Context, id auth.Identity, status models.ProjectStatus) (*models.ProjectListResponse, error) {
	if status != "" && !status.Valid() {
		return nil, NewValidationError("status", "is not a known project status")
	}
	projects, err := s.projects.List(ctx, id.TenantID, status)
	if err != nil {
		return nil, err
	}
	return &models.ProjectListResponse{Projects: projects, TotalCount: len(projects)}, nil
}

// Update applies non-nil fields. Status changes must follow the
// lifecycle; violations map to ErrPrecondition.
func (s *ProjectService) Update(ctx context.Context, id auth.Identity, projectID string, req models.UpdateProjectRequest) (*models.Project, error) {
	if err := s.Authorize(ctx, id, projectID, auth.PermProjectWrite); err != nil {
		return nil, err
	}
	if req.Name != nil && *req.Name == "" {
		return nil, NewValidationError("name", "must not be empty")
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, NewValidationError("status", "is not a known project status")
		}
		current, err := s.loadProject(ctx, id.TenantID, projectID)
		if err != nil {
			return nil, err
		}
		if !current.Status.CanTransitionTo(*req.Status) {
			return nil, fmt.Errorf("status %s cannot move to %s: %w", current.Status, *req.Status, ErrPrecondition)
		}
	}

	project, err := s.projects.Update(ctx, id.TenantID, projectID, req)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("project name is taken: %w", ErrAlreadyExists)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return project, err
}

// Delete soft-deletes a project. Its document version numbers stay reserved.
func (s *ProjectService) Delete(ctx context.Context, id auth.Identity, projectID string) error {
	if err := s.Authorize(ctx, id, projectID, auth.PermProjectDelete); err != nil {
		return err
	}
	err := s.projects.SoftDelete(ctx, id.TenantID, projectID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err == nil {
		s.logger.Info("Project soft-deleted", "tenant_id", id.TenantID, "project_id", projectID)
	}
	return err
}

// Progress assembles the snapshot for GET /projects/{id}/progress:
// overall percentage, latest documents, and recent executions.
func (s *ProjectService) Progress(ctx context.Context, id auth.Identity, projectID string) (*models.ProgressSnapshot, error) {
	if err := s.Authorize(ctx, id, projectID, auth.PermProjectRead); err != nil {
		return nil, err
	}
	project, err := s.loadProject(ctx, id.TenantID, projectID)
	if err != nil {
		return nil, err
	}

	docs, err := s.documents.LatestSet(ctx, id.TenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	executions, err := s.executions.ListByProject(ctx, id.TenantID, projectID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load executions: %w", err)
	}

	return &models.ProgressSnapshot{
		ProjectID:       projectID,
		Status:          project.Status,
		OverallProgress: overallProgress(docs),
		Documents:       docs,
		Executions:      executions,
	}, nil
}

// Authorize checks that the caller holds perm on the project. Missing
// membership is a 403; the project itself not existing is a 404 — the
// existence check runs first so the two are not conflated.
func (s *ProjectService) Authorize(ctx context.Context, id auth.Identity, projectID string, perm auth.Permission) error {
	if _, err := s.loadProject(ctx, id.TenantID, projectID); err != nil {
		return err
	}
	if id.IsSuperuser {
		return nil
	}
	perms, err := s.projects.MemberPermissions(ctx, id.TenantID, projectID, id.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPermissionDenied
	}
	if err != nil {
		return err
	}
	if !auth.HasPermission(perms, perm) {
		return ErrPermissionDenied
	}
	return nil
}

func (s *ProjectService) loadProject(ctx context.Context, tenantID, projectID string) (*models.Project, error) {
	project, err := s.projects.Get(ctx, tenantID, projectID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return project, err
}

// overallProgress counts each produced stage document type as 25%.
func overallProgress(docs []*models.DocumentVersion) int {
	stages := map[models.DocumentType]bool{}
	for _, d := range docs {
		switch d.DocumentType {
		case models.DocumentTypeAbout, models.DocumentTypeSpecs,
			models.DocumentTypeArchitecture, models.DocumentTypePlanOverview:
			stages[d.DocumentType] = true
		}
	}
	return len(stages) * 100 / models.StageCount
}
