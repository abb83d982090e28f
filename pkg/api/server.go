// Package api exposes the HTTP surface: authentication, project CRUD,
// stage invocations, event streaming, and exports. Handlers stay thin;
// all policy lives in the service layer.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/specforge/specforge/pkg/agent"
	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/config"
	"github.com/specforge/specforge/pkg/database"
	"github.com/specforge/specforge/pkg/kv"
	"github.com/specforge/specforge/pkg/llm/breaker"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/orchestrator"
	"github.com/specforge/specforge/pkg/ratelimit"
	"github.com/specforge/specforge/pkg/workflow"
)

// AuthService is the slice of the auth service the handlers use.
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, *models.TokenResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.User, *models.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error)
	Logout(ctx context.Context, tokenStr string, claims *auth.Claims) error
	ValidateToken(ctx context.Context, tokenStr string) (*auth.Claims, error)
	CurrentUser(ctx context.Context, id auth.Identity) (*models.User, error)
	BlacklistStats(ctx context.Context, id auth.Identity) (map[string]any, error)
}

// ProjectService is the slice of the project service the handlers use.
type ProjectService interface {
	Create(ctx context.Context, id auth.Identity, req models.CreateProjectRequest) (*models.Project, error)
	Get(ctx context.Context, id auth.Identity, projectID string) (*models.Project, error)
	List(ctx context.Context, id auth.Identity, status models.ProjectStatus) (*models.ProjectListResponse, error)
	Update(ctx context.Context, id auth.Identity, projectID string, req models.UpdateProjectRequest) (*models.Project, error)
	Delete(ctx context.Context, id auth.Identity, projectID string) error
	Progress(ctx context.Context, id auth.Identity, projectID string) (*models.ProgressSnapshot, error)
	Authorize(ctx context.Context, id auth.Identity, projectID string, perm auth.Permission) error
}

// Engine drives stage execution.
type Engine interface {
	Execute(ctx context.Context, tenantID, userID string, req models.WorkflowRequest) *workflow.Result
	ExecuteSingleStage(ctx context.Context, tenantID, userID, projectID string, stage models.Stage, req models.StageRequest) (*orchestrator.StageResult, error)
}

// ExportService manages export records and artifact downloads.
type ExportService interface {
	Create(ctx context.Context, tenantID, projectID, userID string, req models.CreateExportRequest) (*models.Export, error)
	Get(ctx context.Context, tenantID, id string) (*models.Export, error)
	OpenDownload(ctx context.Context, tenantID, id string) (string, error)
}

// EventSource delivers a project's workflow events.
type EventSource interface {
	Subscribe(ctx context.Context, tenantID, projectID string) (<-chan models.WorkflowEvent, func(), error)
}

// TokenVerifier verifies bearer tokens at the middleware boundary.
type TokenVerifier interface {
	Verify(tokenStr, expectedType string) (*auth.Claims, error)
}

// BlacklistChecker applies the fail-closed revocation check.
type BlacklistChecker interface {
	IsTokenBlacklisted(ctx context.Context, claims *auth.Claims) bool
}

// RateLimiter resolves and applies the per-endpoint policy.
type RateLimiter interface {
	PolicyFor(path string) ratelimit.Policy
	Check(ctx context.Context, clientID, endpoint string, limit int, window time.Duration) ratelimit.Result
}

// Deps bundles everything the server needs. Health-only collaborators
// (db, kv, breakers) may be nil; their checks are then skipped.
type Deps struct {
	Config    *config.Config
	Auth      AuthService
	Projects  ProjectService
	Engine    Engine
	Exports   ExportService
	Events    EventSource
	Tokens    TokenVerifier
	Blacklist BlacklistChecker
	Limiter   RateLimiter

	DB        *database.Client
	KV        *kv.Store
	Breakers  *breaker.Registry
	Providers []string

	Logger *slog.Logger
}

// Server is the HTTP server.
type Server struct {
	cfg       *config.Config
	auth      AuthService
	projects  ProjectService
	engine    Engine
	exports   ExportService
	events    EventSource
	tokens    TokenVerifier
	blacklist BlacklistChecker
	limiter   RateLimiter

	db        *database.Client
	kv        *kv.Store
	breakers  *breaker.Registry
	providers []string

	echo   *echo.Echo
	http   *http.Server
	logger *slog.Logger
}

// NewServer wires routes and middleware.
func NewServer(deps Deps) *Server {
	s := &Server{
		cfg:       deps.Config,
		auth:      deps.Auth,
		projects:  deps.Projects,
		engine:    deps.Engine,
		exports:   deps.Exports,
		events:    deps.Events,
		tokens:    deps.Tokens,
		blacklist: deps.Blacklist,
		limiter:   deps.Limiter,
		db:        deps.DB,
		kv:        deps.KV,
		breakers:  deps.Breakers,
		providers: deps.Providers,
		logger:    deps.Logger.With("component", "api"),
	}

	e := echo.New()
	e.Use(securityHeaders())
	e.Use(requestID())
	e.Use(bodyLimit(deps.Config.MaxRequestBody))
	e.Use(corsMiddleware(deps.Config.AllowedOrigins))

	v1 := e.Group("/api/v1")
	v1.Use(s.authenticate)
	v1.Use(s.rateLimit)

	v1.POST("/auth/register", s.registerHandler)
	v1.POST("/auth/login", s.loginHandler)
	v1.POST("/auth/refresh", s.refreshHandler)
	v1.POST("/auth/logout", s.logoutHandler)
	v1.GET("/auth/me", s.meHandler)
	v1.POST("/auth/validate-token", s.validateTokenHandler)
	v1.GET("/auth/blacklist/stats", s.blacklistStatsHandler)

	v1.GET("/projects", s.listProjectsHandler)
	v1.POST("/projects", s.createProjectHandler)
	v1.GET("/projects/:id", s.getProjectHandler)
	v1.PUT("/projects/:id", s.updateProjectHandler)
	v1.DELETE("/projects/:id", s.deleteProjectHandler)
	v1.GET("/projects/:id/progress", s.progressHandler)
	v1.GET("/projects/:id/events", s.eventsHandler)
	v1.POST("/projects/:id/export", s.createExportHandler)
	v1.GET("/exports/:id", s.downloadExportHandler)

	for n := models.StageAnalyst; n <= models.StagePlanner; n++ {
		v1.POST(fmt.Sprintf("/projects/:id/step%d", int(n)), s.stepHandler(n))
	}

	v1.POST("/agents/workflow/execute-stream", s.executeStreamHandler)
	v1.GET("/agents/health", s.agentsHealthHandler)

	s.echo = e
	return s
}

// ServeHTTP makes the server usable directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// stageResultResponse shapes the step{N} response body.
type stageResultResponse struct {
	Stage         int                       `json:"stage"`
	AgentType     string                    `json:"agent_type"`
	Document      *models.DocumentVersion   `json:"document"`
	EpicDocuments []*models.DocumentVersion `json:"epic_documents,omitempty"`
	ExecutionID   string                    `json:"execution_id"`
	Output        *agent.Output             `json:"output"`
}
