package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/specforge/specforge/pkg/llm"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/quality"
)

// Generator is the slice of the LLM manager the executor needs.
type Generator interface {
	Generate(ctx context.Context, provider string, req llm.Request) (*llm.Response, error)
}

// ContextRetriever fetches prior-stage excerpts from the vector store,
// always scoped to one tenant and project.
type ContextRetriever interface {
	Retrieve(ctx context.Context, tenantID, projectID, query string, limit int) ([]string, error)
}

// Validator scores a generated document.
type Validator interface {
	Validate(ctx context.Context, content, agentType, correlationID string) (quality.Result, error)
}

// Config bounds agent executions.
type Config struct {
	// Timeout is the end-to-end budget for one execution.
	Timeout time.Duration
	// ContextLimit caps excerpts drawn from the vector store.
	ContextLimit int
	// Provider optionally pins a provider; empty uses the manager default.
	Provider string
}

// DefaultConfig returns the production execution bounds.
func DefaultConfig() Config {
	return Config{Timeout: 120 * time.Second, ContextLimit: 5}
}

// Executor runs any stage agent from its capability record.
type Executor struct {
	generator Generator
	contexts  ContextRetriever
	validator Validator
	cfg       Config
	logger    *slog.Logger
}

// NewExecutor wires the shared agent machinery.
func NewExecutor(g Generator, cr ContextRetriever, v Validator, cfg Config, logger *slog.Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = DefaultConfig().ContextLimit
	}
	return &Executor{
		generator: g,
		contexts:  cr,
		validator: v,
		cfg:       cfg,
		logger:    logger.With("component", "agent_executor"),
	}
}

// HasStage reports whether a capability record exists for the stage.
func (e *Executor) HasStage(stage models.Stage) bool {
	_, ok := stageSpecs[stage]
	return ok
}

// Process runs one stage agent. Input validation failures return as-is
// (they are the caller's 400); everything past validation is wrapped in
// *Error carrying the agent type, correlation id, and elapsed time.
func (e *Executor) Process(ctx context.Context, stage models.Stage, pc ProjectContext, input Input) (*Output, error) {
	spec, ok := stageSpecs[stage]
	if !ok {
		return nil, fmt.Errorf("no agent for stage %d", stage)
	}
	agentType := stage.AgentType()

	if err := inputForStage(stage, input); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.run(ctx, spec, agentType, pc, input)
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, e.cfg.Timeout, err)
		}
		e.logger.Error("Agent execution failed",
			"agent_type", agentType,
			"correlation_id", pc.CorrelationID,
			"elapsed_ms", elapsed,
			"error", err)
		return nil, WrapError(agentType, pc.CorrelationID, elapsed, err)
	}

	e.logger.Info("Agent execution completed",
		"agent_type", agentType,
		"correlation_id", pc.CorrelationID,
		"elapsed_ms", elapsed,
		"confidence", out.Confidence,
		"tokens_used", out.TokensUsed)
	return out, nil
}

func (e *Executor) run(ctx context.Context, spec stageSpec, agentType string, pc ProjectContext, input Input) (*Output, error) {
	excerpts := e.gatherContext(ctx, spec, pc)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: spec.systemPrompt(pc.Language)},
		{Role: llm.RoleUser, Content: spec.taskDesc(input, excerpts)},
	}

	resp, err := e.generator.Generate(ctx, e.cfg.Provider, llm.Request{
		Messages:      messages,
		CorrelationID: pc.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	doc := parseDocument(resp.Content)
	out := &Output{
		AgentType:  agentType,
		Title:      doc.Title,
		Content:    resp.Content,
		Sections:   doc.Sections,
		Lists:      doc.Lists,
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}
	if out.Title == "" {
		out.Title = spec.defaultTitle
	}
	if spec.stage == models.StagePlanner {
		out.Epics = parseEpics(resp.Content)
	}

	validation, err := e.validator.Validate(ctx, resp.Content, agentType, pc.CorrelationID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate output: %w", err)
	}
	out.Validation = validation
	out.Confidence = validation.Score
	return out, nil
}

// gatherContext pulls prior-stage excerpts. The first stage has no
// canned query and starts empty; retrieval failures degrade to an
// empty context rather than failing the stage.
func (e *Executor) gatherContext(ctx context.Context, spec stageSpec, pc ProjectContext) []string {
	if spec.contextQuery == "" || e.contexts == nil {
		return nil
	}
	excerpts, err := e.contexts.Retrieve(ctx, pc.TenantID, pc.ProjectID, spec.contextQuery, e.cfg.ContextLimit)
	if err != nil {
		e.logger.Warn("Context retrieval failed, continuing without context",
			"correlation_id", pc.CorrelationID,
			"error", err)
		return nil
	}
	return excerpts
}
