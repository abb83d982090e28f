package quality

import (
	"context"
	"fmt"
	"log/slog"
)

// Controller runs the markdown and readability validators plus the
// stage-specific validator for the agent type, and combines the results:
// mean score, conjunction of passed, deduplicated suggestions.
type Controller struct {
	markdown    Validator
	readability Validator
	stage       map[string]Validator
	logger      *slog.Logger
}

// NewController builds a controller with all built-in validators registered.
func NewController(logger *slog.Logger) *Controller {
	c := &Controller{
		markdown:    MarkdownValidator{},
		readability: ReadabilityValidator{},
		stage:       make(map[string]Validator),
		logger:      logger.With("component", "quality"),
	}
	for agentType := range requiredSections {
		v, _ := NewStageValidator(agentType)
		c.stage[agentType] = v
	}
	return c
}

// Register adds or replaces the stage validator for an agent type.
func (c *Controller) Register(agentType string, v Validator) {
	c.stage[agentType] = v
}

// Validate runs the validator set for agentType over content.
func (c *Controller) Validate(ctx context.Context, content, agentType, correlationID string) (Result, error) {
	stage, ok := c.stage[agentType]
	if !ok {
		return Result{}, fmt.Errorf("no validator registered for agent type %q", agentType)
	}

	validators := []Validator{c.markdown, c.readability, stage}
	combined := Result{
		Passed:  true,
		Details: make(map[string]any, len(validators)),
	}
	seenSuggestion := make(map[string]bool)
	seenMissing := make(map[string]bool)

	for _, v := range validators {
		r := v.Validate(ctx, content, nil)
		combined.Score += r.Score
		combined.Passed = combined.Passed && r.Passed
		combined.Details[v.Name()] = map[string]any{
			"passed":  r.Passed,
			"score":   r.Score,
			"details": r.Details,
		}
		for _, s := range r.Suggestions {
			if !seenSuggestion[s] {
				seenSuggestion[s] = true
				combined.Suggestions = append(combined.Suggestions, s)
			}
		}
		for _, m := range r.MissingSections {
			if !seenMissing[m] {
				seenMissing[m] = true
				combined.MissingSections = append(combined.MissingSections, m)
			}
		}
	}
	combined.Score /= float64(len(validators))

	c.logger.Debug("Document validated",
		"agent_type", agentType,
		"correlation_id", correlationID,
		"score", combined.Score,
		"passed", combined.Passed,
		"missing_sections", len(combined.MissingSections))
	return combined, nil
}
