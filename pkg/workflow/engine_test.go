package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/agent"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/orchestrator"
	"github.com/specforge/specforge/pkg/repository"
	"github.com/specforge/specforge/pkg/services"
)

type fakeRunner struct {
	mu       sync.Mutex
	failAt   models.Stage
	inputs   map[models.Stage]agent.Input
	contexts map[models.Stage]agent.ProjectContext
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		inputs:   make(map[models.Stage]agent.Input),
		contexts: make(map[models.Stage]agent.ProjectContext),
	}
}

func (r *fakeRunner) ExecuteStage(_ context.Context, stage models.Stage, pc agent.ProjectContext, input agent.Input) (*orchestrator.StageResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs[stage] = input
	r.contexts[stage] = pc
	if r.failAt != 0 && stage == r.failAt {
		return nil, errors.New("stage blew up")
	}
	return &orchestrator.StageResult{
		Stage: stage,
		Output: &agent.Output{
			AgentType:  stage.AgentType(),
			Content:    "content of " + stage.Name(),
			Confidence: 0.9,
		},
		Document: &models.DocumentVersion{
			ID:           "doc-" + stage.AgentType(),
			DocumentType: stage.DocumentType(),
			Version:      1,
		},
	}, nil
}

type fakeDocs struct {
	docs map[models.DocumentType]*models.DocumentVersion
}

func (d *fakeDocs) LatestByType(_ context.Context, _, _ string, docType models.DocumentType, _ *int) (*models.DocumentVersion, error) {
	if doc, ok := d.docs[docType]; ok {
		return doc, nil
	}
	return nil, repository.ErrNotFound
}

type fakeProjects struct {
	statuses []models.ProjectStatus
}

func (p *fakeProjects) SetStatus(_ context.Context, _, _ string, status models.ProjectStatus) error {
	p.statuses = append(p.statuses, status)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.WorkflowEvent
}

func (s *recordingSink) Publish(_ context.Context, _, _ string, ev models.WorkflowEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func testEngine(runner *fakeRunner, docs *fakeDocs) (*Engine, *fakeProjects, *recordingSink) {
	projects := &fakeProjects{}
	sink := &recordingSink{}
	cfg := Config{StagePause: 0, DefaultTechnologyStack: []string{"Go", "PostgreSQL"}}
	if docs == nil {
		docs = &fakeDocs{docs: map[models.DocumentType]*models.DocumentVersion{}}
	}
	return New(runner, docs, projects, sink, cfg, slog.Default()), projects, sink
}

func workflowRequest() models.WorkflowRequest {
	return models.WorkflowRequest{
		ProjectID:       "p1",
		IdeaDescription: "A fitness-tracking mobile app",
		Language:        "en",
	}
}

func TestExecuteFullWorkflowEventOrder(t *testing.T) {
	runner := newFakeRunner()
	e, projects, sink := testEngine(runner, nil)

	res := e.Execute(context.Background(), "t1", "u1", workflowRequest())
	require.NoError(t, res.Err)
	require.Len(t, res.StageResults, 4)

	// start, then step_start/step_complete per stage in order, then complete.
	assert.Equal(t, []string{
		"start",
		"step_start", "step_complete",
		"step_start", "step_complete",
		"step_start", "step_complete",
		"step_start", "step_complete",
		"complete",
	}, sink.types())

	// step numbers ascend 1..4.
	var steps []int
	for _, ev := range sink.events {
		if ev.Type == models.EventTypeStepStart {
			steps = append(steps, ev.Step)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4}, steps)

	// Project advanced IN_PROGRESS then COMPLETED.
	assert.Equal(t, []models.ProjectStatus{models.ProjectStatusInProgress, models.ProjectStatusCompleted}, projects.statuses)

	// All stages share one correlation id.
	corr := runner.contexts[models.StageAnalyst].CorrelationID
	require.NotEmpty(t, corr)
	for st := models.StageAnalyst; st <= models.StagePlanner; st++ {
		assert.Equal(t, corr, runner.contexts[st].CorrelationID)
	}
	assert.Equal(t, res.WorkflowID, corr)
}

func TestExecuteStageInputDerivation(t *testing.T) {
	runner := newFakeRunner()
	e, _, _ := testEngine(runner, nil)

	req := workflowRequest()
	req.TargetAudience = "gym-goers"
	req.UserTechPreferences = "Go, gRPC"
	team := 5
	req.TeamSize = &team

	res := e.Execute(context.Background(), "t1", "u1", req)
	require.NoError(t, res.Err)

	analyst := runner.inputs[models.StageAnalyst].(agent.AnalystInput)
	assert.Equal(t, "A fitness-tracking mobile app", analyst.IdeaDescription)
	assert.Equal(t, "gym-goers", analyst.TargetAudience)

	// Standards gets the analyst content and the default stack.
	standards := runner.inputs[models.StageStandards].(agent.StandardsInput)
	assert.Equal(t, "content of Business Analyst", standards.ProjectDescription)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, standards.TechnologyStack)

	architect := runner.inputs[models.StageArchitect].(agent.ArchitectInput)
	assert.Equal(t, "content of Business Analyst", architect.ProjectDescription)
	assert.Equal(t, []string{"Go", "gRPC"}, architect.UserTechPreferences)

	planner := runner.inputs[models.StagePlanner].(agent.PlannerInput)
	assert.Equal(t, "content of Business Analyst", planner.ProjectDescription)
	assert.Equal(t, "content of Solution Architect", planner.ArchitectureContent)
	assert.Equal(t, 5, planner.TeamSize)
}

func TestExecuteStopsAtFailedStage(t *testing.T) {
	runner := newFakeRunner()
	runner.failAt = models.StageArchitect
	e, projects, sink := testEngine(runner, nil)

	res := e.Execute(context.Background(), "t1", "u1", workflowRequest())
	require.Error(t, res.Err)
	assert.Equal(t, models.StageArchitect, res.FailedStage)
	assert.Len(t, res.StageResults, 2)

	// Stage 4 never ran.
	_, ranPlanner := runner.inputs[models.StagePlanner]
	assert.False(t, ranPlanner)

	// Terminal event is error, not complete; step_error precedes it.
	types := sink.types()
	assert.Equal(t, "error", types[len(types)-1])
	assert.Contains(t, types, "step_error")
	assert.NotContains(t, types, "complete")

	// Project is left IN_PROGRESS, never COMPLETED.
	assert.Equal(t, []models.ProjectStatus{models.ProjectStatusInProgress}, projects.statuses)
}

func TestExecuteSingleStagePreconditions(t *testing.T) {
	runner := newFakeRunner()

	t.Run("architect without about document is a precondition failure", func(t *testing.T) {
		e, _, _ := testEngine(runner, &fakeDocs{docs: map[models.DocumentType]*models.DocumentVersion{}})
		_, err := e.ExecuteSingleStage(context.Background(), "t1", "u1", "p1", models.StageArchitect, models.StageRequest{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, services.ErrPrecondition))
	})

	t.Run("planner requires architecture too", func(t *testing.T) {
		docs := &fakeDocs{docs: map[models.DocumentType]*models.DocumentVersion{
			models.DocumentTypeAbout: {Content: "about content"},
		}}
		e, _, _ := testEngine(runner, docs)
		_, err := e.ExecuteSingleStage(context.Background(), "t1", "u1", "p1", models.StagePlanner, models.StageRequest{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, services.ErrPrecondition))
	})

	t.Run("standards runs from stored about document", func(t *testing.T) {
		docs := &fakeDocs{docs: map[models.DocumentType]*models.DocumentVersion{
			models.DocumentTypeAbout: {Content: "stored about content"},
		}}
		e, _, _ := testEngine(runner, docs)
		_, err := e.ExecuteSingleStage(context.Background(), "t1", "u1", "p1", models.StageStandards, models.StageRequest{})
		require.NoError(t, err)
		in := runner.inputs[models.StageStandards].(agent.StandardsInput)
		assert.Equal(t, "stored about content", in.ProjectDescription)
	})

	t.Run("unknown stage is invalid input", func(t *testing.T) {
		e, _, _ := testEngine(runner, nil)
		_, err := e.ExecuteSingleStage(context.Background(), "t1", "u1", "p1", models.Stage(7), models.StageRequest{})
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList("  "))
	assert.Equal(t, []string{"a", "b", "c"}, splitList("a, b,c"))
	assert.Equal(t, []string{"x", "y"}, splitList("x\ny"))
}
