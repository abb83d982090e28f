// Package workflow drives the fixed four-stage document pipeline:
// Business Analyst → Engineering Standards → Solution Architect →
// Project Planner, all bound to one correlation id.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/specforge/specforge/pkg/agent"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/orchestrator"
	"github.com/specforge/specforge/pkg/repository"
	"github.com/specforge/specforge/pkg/services"
)

// StageRunner executes a single stage. Satisfied by the orchestrator.
type StageRunner interface {
	ExecuteStage(ctx context.Context, stage models.Stage, pc agent.ProjectContext, input agent.Input) (*orchestrator.StageResult, error)
}

// DocumentReader resolves latest documents for stage preconditions and
// input derivation.
type DocumentReader interface {
	LatestByType(ctx context.Context, tenantID, projectID string, docType models.DocumentType, epicNumber *int) (*models.DocumentVersion, error)
}

// ProjectUpdater advances project status as the workflow progresses.
type ProjectUpdater interface {
	SetStatus(ctx context.Context, tenantID, id string, status models.ProjectStatus) error
}

// EventSink receives workflow events in emission order.
type EventSink interface {
	Publish(ctx context.Context, tenantID, projectID string, ev models.WorkflowEvent)
}

// Config tunes the engine.
type Config struct {
	// StagePause is the best-effort system-stability delay between stages.
	StagePause time.Duration
	// DefaultTechnologyStack is used when the request names none.
	DefaultTechnologyStack []string
}

// DefaultConfig returns the production engine settings.
func DefaultConfig() Config {
	return Config{
		StagePause:             1 * time.Second,
		DefaultTechnologyStack: []string{"Go", "PostgreSQL", "Redis"},
	}
}

// Engine runs full workflows and enforces inter-stage preconditions for
// single-stage invocations.
type Engine struct {
	runner    StageRunner
	documents DocumentReader
	projects  ProjectUpdater
	sink      EventSink
	cfg       Config
	logger    *slog.Logger
}

// New wires the engine.
func New(runner StageRunner, documents DocumentReader, projects ProjectUpdater,
	sink EventSink, cfg Config, logger *slog.Logger) *Engine {
	if cfg.StagePause < 0 {
		cfg.StagePause = 0
	}
	return &Engine{
		runner:    runner,
		documents: documents,
		projects:  projects,
		sink:      sink,
		cfg:       cfg,
		logger:    logger.With("component", "workflow_engine"),
	}
}

// Result is the outcome of a full workflow run.
type Result struct {
	WorkflowID   string                                      `json:"workflow_id"`
	StageResults map[models.Stage]*orchestrator.StageResult  `json:"stage_results"`
	FailedStage  models.Stage                                `json:"failed_stage,omitempty"`
	Err          error                                       `json:"-"`
}

// Execute runs all four stages for one request under a fresh workflow
// id. On stage failure the workflow stops at that stage; the terminal
// complete event is emitted only when stage 4 succeeds.
func (e *Engine) Execute(ctx context.Context, tenantID, userID string, req models.WorkflowRequest) *Result {
	workflowID := uuid.NewString()
	pc := agent.ProjectContext{
		TenantID:      tenantID,
		ProjectID:     req.ProjectID,
		UserID:        userID,
		CorrelationID: workflowID,
		Language:      req.Language,
	}

	res := &Result{
		WorkflowID:   workflowID,
		StageResults: make(map[models.Stage]*orchestrator.StageResult, models.StageCount),
	}

	e.logger.Info("Workflow started",
		"workflow_id", workflowID,
		"tenant_id", tenantID,
		"project_id", req.ProjectID)
	e.publish(ctx, pc, models.NewStartEvent(workflowID))
	e.setStatus(ctx, pc, models.ProjectStatusInProgress)

	for stage := models.StageAnalyst; stage <= models.StagePlanner; stage++ {
		input, err := e.deriveInput(stage, req, res)
		if err != nil {
			e.failWorkflow(ctx, pc, res, stage, err)
			return res
		}

		e.publish(ctx, pc, models.NewStepStartEvent(workflowID, stage))
		stageRes, err := e.runner.ExecuteStage(ctx, stage, pc, input)
		if err != nil {
			e.publish(ctx, pc, models.NewStepErrorEvent(workflowID, stage, err.Error(), workflowID))
			e.failWorkflow(ctx, pc, res, stage, err)
			return res
		}
		res.StageResults[stage] = stageRes
		e.publish(ctx, pc, models.NewStepCompleteEvent(workflowID, stage, stageRes.Output.Confidence))

		if stage < models.StagePlanner && e.cfg.StagePause > 0 {
			e.pause(ctx)
		}
	}

	e.setStatus(ctx, pc, models.ProjectStatusCompleted)
	e.publish(ctx, pc, models.NewCompleteEvent(workflowID, e.summarize(res)))
	e.logger.Info("Workflow completed", "workflow_id", workflowID, "project_id", req.ProjectID)
	return res
}

// ExecuteSingleStage runs one stage of a project outside a full
// workflow run. The precondition document is read from storage, so a
// stage may build on work produced by an earlier request. A missing
// prerequisite surfaces as a precondition failure before any execution
// row is written.
func (e *Engine) ExecuteSingleStage(ctx context.Context, tenantID, userID, projectID string,
	stage models.Stage, req models.StageRequest) (*orchestrator.StageResult, error) {

	if !stage.Valid() {
		return nil, services.NewValidationError("stage", fmt.Sprintf("unknown stage %d", stage))
	}

	pc := agent.ProjectContext{
		TenantID:      tenantID,
		ProjectID:     projectID,
		UserID:        userID,
		CorrelationID: uuid.NewString(),
		Language:      req.Language,
	}

	input, err := e.deriveSingleStageInput(ctx, stage, pc, req)
	if err != nil {
		return nil, err
	}
	return e.runner.ExecuteStage(ctx, stage, pc, input)
}

// deriveInput builds stage inputs from the original request and the
// in-run outputs of earlier stages.
func (e *Engine) deriveInput(stage models.Stage, req models.WorkflowRequest, res *Result) (agent.Input, error) {
	switch stage {
	case models.StageAnalyst:
		return agent.AnalystInput{
			IdeaDescription:    req.IdeaDescription,
			TargetAudience:     req.TargetAudience,
			UserClarifications: splitList(req.UserClarifications),
		}, nil
	case models.StageStandards:
		analyst, err := e.priorOutput(res, models.StageAnalyst, stage)
		if err != nil {
			return nil, err
		}
		stack := splitList(req.TechnologyStack)
		if len(stack) == 0 {
			stack = e.cfg.DefaultTechnologyStack
		}
		return agent.StandardsInput{ProjectDescription: analyst, TechnologyStack: stack}, nil
	case models.StageArchitect:
		analyst, err := e.priorOutput(res, models.StageAnalyst, stage)
		if err != nil {
			return nil, err
		}
		return agent.ArchitectInput{
			ProjectDescription:  analyst,
			UserTechPreferences: splitList(req.UserTechPreferences),
		}, nil
	case models.StagePlanner:
		analyst, err := e.priorOutput(res, models.StageAnalyst, stage)
		if err != nil {
			return nil, err
		}
		architecture, err := e.priorOutput(res, models.StageArchitect, stage)
		if err != nil {
			return nil, err
		}
		teamSize := 0
		if req.TeamSize != nil {
			teamSize = *req.TeamSize
		}
		return agent.PlannerInput{
			ProjectDescription:  analyst,
			ArchitectureContent: architecture,
			TeamSize:            teamSize,
		}, nil
	}
	return nil, fmt.Errorf("unknown stage %d", stage)
}

// deriveSingleStageInput reads prerequisite documents from storage.
func (e *Engine) deriveSingleStageInput(ctx context.Context, stage models.Stage, pc agent.ProjectContext, req models.StageRequest) (agent.Input, error) {
	switch stage {
	case models.StageAnalyst:
		return agent.AnalystInput{
			IdeaDescription:    req.IdeaDescription,
			TargetAudience:     req.TargetAudience,
			UserClarifications: splitList(req.UserClarifications),
		}, nil
	case models.StageStandards:
		about, err := e.requireDocument(ctx, pc, stage, models.DocumentTypeAbout)
		if err != nil {
			return nil, err
		}
		stack := splitList(req.TechnologyStack)
		if len(stack) == 0 {
			stack = e.cfg.DefaultTechnologyStack
		}
		return agent.StandardsInput{ProjectDescription: about.Content, TechnologyStack: stack}, nil
	case models.StageArchitect:
		about, err := e.requireDocument(ctx, pc, stage, models.DocumentTypeAbout)
		if err != nil {
			return nil, err
		}
		return agent.ArchitectInput{
			ProjectDescription:  about.Content,
			UserTechPreferences: splitList(req.UserTechPreferences),
		}, nil
	case models.StagePlanner:
		about, err := e.requireDocument(ctx, pc, stage, models.DocumentTypeAbout)
		if err != nil {
			return nil, err
		}
		architecture, err := e.requireDocument(ctx, pc, stage, models.DocumentTypeArchitecture)
		if err != nil {
			return nil, err
		}
		teamSize := 0
		if req.TeamSize != nil {
			teamSize = *req.TeamSize
		}
		return agent.PlannerInput{
			ProjectDescription:  about.Content,
			ArchitectureContent: architecture.Content,
			TeamSize:            teamSize,
		}, nil
	}
	return nil, fmt.Errorf("unknown stage %d", stage)
}

// requireDocument loads the latest version of a prerequisite document,
// mapping absence to a precondition failure.
func (e *Engine) requireDocument(ctx context.Context, pc agent.ProjectContext, stage models.Stage, docType models.DocumentType) (*models.DocumentVersion, error) {
	doc, err := e.documents.LatestByType(ctx, pc.TenantID, pc.ProjectID, docType, nil)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &services.PreconditionError{Stage: int(stage), Missing: string(docType)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s document: %w", docType, err)
	}
	return doc, nil
}

// priorOutput returns the content of an earlier stage in this run.
func (e *Engine) priorOutput(res *Result, prior, stage models.Stage) (string, error) {
	sr, ok := res.StageResults[prior]
	if !ok || sr.Output == nil {
		return "", &services.PreconditionError{Stage: int(stage), Missing: string(prior.DocumentType())}
	}
	return sr.Output.Content, nil
}

func (e *Engine) failWorkflow(ctx context.Context, pc agent.ProjectContext, res *Result, stage models.Stage, err error) {
	res.FailedStage = stage
	res.Err = err
	e.publish(ctx, pc, models.NewErrorEvent(res.WorkflowID, err.Error()))
	e.logger.Error("Workflow failed",
		"workflow_id", res.WorkflowID,
		"project_id", pc.ProjectID,
		"stage", int(stage),
		"error", err)
}

func (e *Engine) summarize(res *Result) map[string]any {
	results := make(map[string]any, len(res.StageResults))
	for stage, sr := range res.StageResults {
		entry := map[string]any{
			"document_type": string(stage.DocumentType()),
			"document_id":   sr.Document.ID,
			"version":       sr.Document.Version,
			"confidence":    sr.Output.Confidence,
		}
		if len(sr.EpicDocuments) > 0 {
			entry["epic_count"] = len(sr.EpicDocuments)
		}
		results[stage.AgentType()] = entry
	}
	return results
}

func (e *Engine) publish(ctx context.Context, pc agent.ProjectContext, ev models.WorkflowEvent) {
	if e.sink != nil {
		e.sink.Publish(ctx, pc.TenantID, pc.ProjectID, ev)
	}
}

func (e *Engine) setStatus(ctx context.Context, pc agent.ProjectContext, status models.ProjectStatus) {
	if e.projects == nil {
		return
	}
	if err := e.projects.SetStatus(ctx, pc.TenantID, pc.ProjectID, status); err != nil {
		e.logger.Warn("Failed to update project status",
			"project_id", pc.ProjectID,
			"status", string(status),
			"error", err)
	}
}

// pause is the best-effort inter-stage delay.
func (e *Engine) pause(ctx context.Context) {
	t := time.NewTimer(e.cfg.StagePause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// splitList turns a comma- or newline-separated field into a list.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
