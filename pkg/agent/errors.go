package agent

import (
	"errors"
	"fmt"
)

// ErrTimeout marks an agent execution that breached its deadline.
var ErrTimeout = errors.New("agent timeout")

// Error wraps any failure inside an agent execution with the agent
// identity and timing needed to correlate logs and execution rows.
type Error struct {
	AgentType       string
	CorrelationID   string
	ExecutionTimeMS int64
	cause           error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent %s failed (correlation_id=%s, elapsed=%dms): %v",
		e.AgentType, e.CorrelationID, e.ExecutionTimeMS, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// WrapError wraps err unless it is already an agent Error.
func WrapError(agentType, correlationID string, elapsedMS int64, err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{AgentType: agentType, CorrelationID: correlationID, ExecutionTimeMS: elapsedMS, cause: err}
}
