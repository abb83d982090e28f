// Package quality scores generated documents. Validators are pluggable;
// the controller combines a markdown structural check, a readability
// check, and one stage-specific section check into a single result.
package quality

import "context"

// Result is the outcome of one validator or of the combined run.
type Result struct {
	Passed          bool           `json:"passed"`
	Score           float64        `json:"score"`
	Details         map[string]any `json:"details,omitempty"`
	MissingSections []string       `json:"missing_sections,omitempty"`
	Suggestions     []string       `json:"suggestions,omitempty"`
}

// Validator checks one aspect of a document. Implementations must be
// safe for concurrent use.
type Validator interface {
	Name() string
	Validate(ctx context.Context, content string, metadata map[string]any) Result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
