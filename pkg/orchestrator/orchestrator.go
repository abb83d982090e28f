// Package orchestrator runs single stage executions: agent invocation,
// document persistence, vector write-back, durable execution records,
// and ordered progress emission.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/specforge/specforge/pkg/agent"
	"github.com/specforge/specforge/pkg/models"
)

// ErrNoAgent is returned when no agent is registered for a stage.
var ErrNoAgent = errors.New("no agent for stage")

// DocumentStore is the slice of the repository the orchestrator needs.
type DocumentStore interface {
	CreateVersion(ctx context.Context, doc *models.DocumentVersion) (*models.DocumentVersion, error)
}

// ExecutionStore records durable agent execution rows.
type ExecutionStore interface {
	Start(ctx context.Context, exec *models.AgentExecution) (string, error)
	Finish(ctx context.Context, tenantID, id string, status models.ExecutionStatus, output, errMsg string) error
}

// MemoryWriter persists generated content to the vector store.
type MemoryWriter interface {
	StoreMemory(ctx context.Context, tenantID, projectID, content string, tags map[string]any) error
}

// EventSink receives workflow events in emission order.
type EventSink interface {
	Publish(ctx context.Context, tenantID, projectID string, ev models.WorkflowEvent)
}

// StageResult is the outcome of one successful stage execution.
type StageResult struct {
	Stage         models.Stage            `json:"stage"`
	Output        *agent.Output           `json:"output"`
	Document      *models.DocumentVersion `json:"document"`
	EpicDocuments []*models.DocumentVersion `json:"epic_documents,omitempty"`
	ExecutionID   string                  `json:"execution_id"`
}

// Orchestrator coordinates one stage execution end to end.
type Orchestrator struct {
	executor   *agent.Executor
	documents  DocumentStore
	executions ExecutionStore
	memory     MemoryWriter
	sink       EventSink
	logger     *slog.Logger
}

// New wires the orchestrator. memory may be nil to disable write-back.
func New(executor *agent.Executor, documents DocumentStore, executions ExecutionStore,
	memory MemoryWriter, sink EventSink, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		executor:   executor,
		documents:  documents,
		executions: executions,
		memory:     memory,
		sink:       sink,
		logger:     logger.With("component", "orchestrator"),
	}
}

// ExecuteStage runs one stage: validate, invoke the agent, persist the
// document version(s), write memory back, and record the execution row.
// Progress events are emitted in strict order for the correlation id.
func (o *Orchestrator) ExecuteStage(ctx context.Context, stage models.Stage, pc agent.ProjectContext, input agent.Input) (*StageResult, error) {
	o.progress(ctx, pc, stage, 0.0, "starting")

	if !o.executor.HasStage(stage) {
		return nil, fmt.Errorf("%w: stage %d", ErrNoAgent, stage)
	}
	if err := agent.ValidateInput(stage, input); err != nil {
		return nil, err
	}

	o.progress(ctx, pc, stage, 0.2, "executing")

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stage input: %w", err)
	}
	execID, err := o.executions.Start(ctx, &models.AgentExecution{
		TenantID:      pc.TenantID,
		ProjectID:     pc.ProjectID,
		AgentType:     stage.AgentType(),
		CorrelationID: pc.CorrelationID,
		Input:         string(inputJSON),
		InitiatedBy:   pc.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record execution start: %w", err)
	}

	out, err := o.executor.Process(ctx, stage, pc, input)
	if err != nil {
		o.finishExecution(pc.TenantID, execID, models.ExecutionStatusFailed, "", err.Error())
		o.progress(ctx, pc, stage, 0.0, "failed: "+err.Error())
		return nil, err
	}

	doc, epicDocs, err := o.persistDocuments(ctx, stage, pc, out)
	if err != nil {
		o.finishExecution(pc.TenantID, execID, models.ExecutionStatusFailed, "", err.Error())
		o.progress(ctx, pc, stage, 0.0, "failed: "+err.Error())
		return nil, err
	}

	o.progress(ctx, pc, stage, 0.8, "storing")
	o.writeMemory(ctx, stage, pc, out)

	outputJSON, err := json.Marshal(out)
	if err != nil {
		outputJSON = []byte("{}")
	}
	o.finishExecution(pc.TenantID, execID, models.ExecutionStatusCompleted, string(outputJSON), "")

	o.progress(ctx, pc, stage, 1.0, "completed")

	return &StageResult{
		Stage:         stage,
		Output:        out,
		Document:      doc,
		EpicDocuments: epicDocs,
		ExecutionID:   execID,
	}, nil
}

// persistDocuments writes the stage's primary document and, for the
// planner, one plan_epic version per extracted epic.
func (o *Orchestrator) persistDocuments(ctx context.Context, stage models.Stage, pc agent.ProjectContext, out *agent.Output) (*models.DocumentVersion, []*models.DocumentVersion, error) {
	metadata := map[string]any{
		"agent_type":        out.AgentType,
		"correlation_id":    pc.CorrelationID,
		"model":             out.Model,
		"tokens_used":       out.TokensUsed,
		"confidence":        out.Confidence,
		"validation_passed": out.Validation.Passed,
	}

	doc, err := o.documents.CreateVersion(ctx, &models.DocumentVersion{
		TenantID:     pc.TenantID,
		ProjectID:    pc.ProjectID,
		DocumentType: stage.DocumentType(),
		Title:        out.Title,
		Content:      out.Content,
		Metadata:     metadata,
		CreatedBy:    pc.UserID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to persist %s document: %w", stage.DocumentType(), err)
	}

	var epicDocs []*models.DocumentVersion
	if stage == models.StagePlanner {
		for _, epic := range out.Epics {
			number := epic.Number
			epicDoc, err := o.documents.CreateVersion(ctx, &models.DocumentVersion{
				TenantID:     pc.TenantID,
				ProjectID:    pc.ProjectID,
				DocumentType: models.DocumentTypePlanEpic,
				Title:        epic.Name,
				Content:      epic.Content,
				EpicNumber:   &number,
				EpicName:     epic.Name,
				Metadata:     metadata,
				CreatedBy:    pc.UserID,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("failed to persist epic %d: %w", epic.Number, err)
			}
			epicDocs = append(epicDocs, epicDoc)
		}
	}
	return doc, epicDocs, nil
}

// writeMemory pushes the produced content back to the vector store.
// Failures are logged, never fatal for the stage.
func (o *Orchestrator) writeMemory(ctx context.Context, stage models.Stage, pc agent.ProjectContext, out *agent.Output) {
	if o.memory == nil {
		return
	}
	err := o.memory.StoreMemory(ctx, pc.TenantID, pc.ProjectID, out.Content, map[string]any{
		"stage":          int(stage),
		"agent_type":     out.AgentType,
		"correlation_id": pc.CorrelationID,
		"document_type":  string(stage.DocumentType()),
	})
	if err != nil {
		o.logger.Warn("Vector write-back failed",
			"stage", int(stage),
			"correlation_id", pc.CorrelationID,
			"error", err)
	}
}

// finishExecution records a terminal status on the execution row. A
// bookkeeping failure is logged but never masks the stage outcome.
func (o *Orchestrator) finishExecution(tenantID, execID string, status models.ExecutionStatus, output, errMsg string) {
	// Detached context: the row must be finalized even when the stage
	// context is already cancelled.
	if err := o.executions.Finish(context.Background(), tenantID, execID, status, output, errMsg); err != nil {
		o.logger.Error("Failed to finalize execution row",
			"execution_id", execID,
			"status", string(status),
			"error", err)
	}
}

// progress emits a progress event for the correlation id.
func (o *Orchestrator) progress(ctx context.Context, pc agent.ProjectContext, stage models.Stage, value float64, message string) {
	if o.sink == nil {
		return
	}
	o.sink.Publish(ctx, pc.TenantID, pc.ProjectID, models.NewProgressEvent(pc.CorrelationID, stage, value, message))
}
