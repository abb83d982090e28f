package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/specforge/specforge/pkg/models"
)

// ExecutionRepository records stage agent invocations. Rows are
// append-only once they reach a terminal status.
type ExecutionRepository struct {
	db *sqlx.DB
}

type executionRow struct {
	ID            string     `db:"id"`
	TenantID      string     `db:"tenant_id"`
	ProjectID     string     `db:"project_id"`
	AgentType     string     `db:"agent_type"`
	CorrelationID string     `db:"correlation_id"`
	Status        string     `db:"status"`
	Input         []byte     `db:"input"`
	Output        []byte     `db:"output"`
	ErrorMessage  *string    `db:"error_message"`
	StartedAt     time.Time  `db:"started_at"`
	CompletedAt   *time.Time `db:"completed_at"`
	InitiatedBy   string     `db:"initiated_by"`
}

func (r executionRow) toModel() *models.AgentExecution {
	e := &models.AgentExecution{
		ID:            r.ID,
		TenantID:      r.TenantID,
		ProjectID:     r.ProjectID,
		AgentType:     r.AgentType,
		CorrelationID: r.CorrelationID,
		Status:        models.ExecutionStatus(r.Status),
		Input:         string(r.Input),
		Output:        string(r.Output),
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		InitiatedBy:   r.InitiatedBy,
	}
	if r.ErrorMessage != nil {
		e.ErrorMessage = *r.ErrorMessage
	}
	return e
}

// Start inserts a running execution and returns its id.
func (e *ExecutionRepository) Start(ctx context.Context, exec *models.AgentExecution) (string, error) {
	id := uuid.NewString()
	input := exec.Input
	if input == "" {
		input = "{}"
	}
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO agent_executions (id, tenant_id, project_id, agent_type, correlation_id,
		                              status, input, started_at, initiated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8)`,
		id, exec.TenantID, exec.ProjectID, exec.AgentType, exec.CorrelationID,
		string(models.ExecutionStatusRunning), input, exec.InitiatedBy)
	if err != nil {
		return "", fmt.Errorf("failed to record execution start: %w", err)
	}
	return id, nil
}

// Finish moves an execution into a terminal status. A non-terminal
// target status is rejected, and already-finished rows are untouched.
func (e *ExecutionRepository) Finish(ctx context.Context, tenantID, id string, status models.ExecutionStatus, output, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}
	var out any
	if output != "" {
		out = output
	}
	res, err := e.db.ExecContext(ctx, `
		UPDATE agent_executions
		SET status = $3, output = $4, error_message = NULLIF($5, ''), completed_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = 'running'`,
		tenantID, id, string(status), out, errMsg)
	if err != nil {
		return fmt.Errorf("failed to record execution finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns an execution by id.
func (e *ExecutionRepository) Get(ctx context.Context, tenantID, id string) (*models.AgentExecution, error) {
	var row executionRow
	err := e.db.GetContext(ctx, &row,
		`SELECT * FROM agent_executions WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

// ListByCorrelation returns all executions of one workflow run in start
// order.
func (e *ExecutionRepository) ListByCorrelation(ctx context.Context, tenantID, correlationID string) ([]*models.AgentExecution, error) {
	var rows []executionRow
	err := e.db.SelectContext(ctx, &rows, `
		SELECT * FROM agent_executions
		WHERE tenant_id = $1 AND correlation_id = $2
		ORDER BY started_at`,
		tenantID, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	out := make([]*models.AgentExecution, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// ListByProject returns recent executions for a project, newest first.
func (e *ExecutionRepository) ListByProject(ctx context.Context, tenantID, projectID string, limit int) ([]*models.AgentExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []executionRow
	err := e.db.SelectContext(ctx, &rows, `
		SELECT * FROM agent_executions
		WHERE tenant_id = $1 AND project_id = $2
		ORDER BY started_at DESC LIMIT $3`,
		tenantID, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	out := make([]*models.AgentExecution, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}
