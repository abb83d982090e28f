package models

import "time"

// Workflow event types delivered over the per-project SSE stream.
// Exactly one "start" precedes any step_* for a correlation id; at most
// one of {complete, error} terminates the sequence.
const (
	EventTypeStart        = "start"
	EventTypeStepStart    = "step_start"
	EventTypeStepComplete = "step_complete"
	EventTypeStepError    = "step_error"
	EventTypeComplete     = "complete"
	EventTypeProgress     = "progress"
	EventTypeError        = "error"
)

// WorkflowEvent is the envelope published to the project channel.
type WorkflowEvent struct {
	Type       string         `json:"type"`
	WorkflowID string         `json:"workflow_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`

	// Step fields, present on step_* events.
	Step       int     `json:"step,omitempty"`
	Name       string  `json:"name,omitempty"`
	Status     string  `json:"status,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Message    string  `json:"message,omitempty"`

	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewStartEvent builds the workflow start event.
func NewStartEvent(workflowID string) WorkflowEvent {
	return WorkflowEvent{
		Type:       EventTypeStart,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
	}
}

// NewStepStartEvent builds a step_start event for a stage.
func NewStepStartEvent(workflowID string, stage Stage) WorkflowEvent {
	return WorkflowEvent{
		Type:       EventTypeStepStart,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Step:       int(stage),
		Name:       stage.Name(),
		Status:     "running",
	}
}

// NewStepCompleteEvent builds a step_complete event with the stage's
// combined validation score.
func NewStepCompleteEvent(workflowID string, stage Stage, confidence float64) WorkflowEvent {
	return WorkflowEvent{
		Type:       EventTypeStepComplete,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Step:       int(stage),
		Status:     "completed",
		Confidence: confidence,
	}
}

// NewStepErrorEvent builds a step_error event.
func NewStepErrorEvent(workflowID string, stage Stage, message, correlationID string) WorkflowEvent {
	return WorkflowEvent{
		Type:          EventTypeStepError,
		WorkflowID:    workflowID,
		Timestamp:     time.Now().UTC(),
		Step:          int(stage),
		Message:       message,
		CorrelationID: correlationID,
	}
}

// NewCompleteEvent builds the terminal complete event.
func NewCompleteEvent(workflowID string, results map[string]any) WorkflowEvent {
	return WorkflowEvent{
		Type:       EventTypeComplete,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Status:     "completed",
		Payload:    results,
	}
}

// NewErrorEvent builds the terminal error event.
func NewErrorEvent(workflowID, message string) WorkflowEvent {
	return WorkflowEvent{
		Type:       EventTypeError,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Message:    message,
	}
}

// NewProgressEvent builds a transient progress event for a stage.
func NewProgressEvent(workflowID string, stage Stage, progress float64, message string) WorkflowEvent {
	return WorkflowEvent{
		Type:       EventTypeProgress,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Step:       int(stage),
		Message:    message,
		Payload:    map[string]any{"progress": progress},
	}
}
