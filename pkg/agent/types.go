// Package agent implements the four stage agents as capability records
// run by a single executor: validate input, gather project context,
// build the prompt, call the LLM, parse, and score the output.
package agent

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/quality"
	"github.com/specforge/specforge/pkg/services"
)

// ProjectContext scopes one agent execution.
type ProjectContext struct {
	TenantID      string
	ProjectID     string
	UserID        string
	CorrelationID string
	Language      string
}

// Input is a typed per-stage input.
type Input interface {
	// Stage returns the stage this input feeds.
	Stage() models.Stage
	// Validate rejects malformed inputs before any I/O happens.
	Validate() error
}

// AnalystInput feeds the Business Analyst stage.
type AnalystInput struct {
	IdeaDescription    string
	TargetAudience     string
	UserClarifications []string
}

func (AnalystInput) Stage() models.Stage { return models.StageAnalyst }

func (in AnalystInput) Validate() error {
	if strings.TrimSpace(in.IdeaDescription) == "" {
		return services.NewValidationError("idea_description", "must not be empty")
	}
	if len(in.IdeaDescription) > 10000 {
		return services.NewValidationError("idea_description", "too long")
	}
	return nil
}

// StandardsInput feeds the Engineering Standards stage.
type StandardsInput struct {
	ProjectDescription string
	TechnologyStack    []string
}

func (StandardsInput) Stage() models.Stage { return models.StageStandards }

func (in StandardsInput) Validate() error {
	if strings.TrimSpace(in.ProjectDescription) == "" {
		return services.NewValidationError("project_description", "must not be empty")
	}
	return nil
}

// ArchitectInput feeds the Solution Architect stage.
type ArchitectInput struct {
	ProjectDescription  string
	UserTechPreferences []string
}

func (ArchitectInput) Stage() models.Stage { return models.StageArchitect }

func (in ArchitectInput) Validate() error {
	if strings.TrimSpace(in.ProjectDescription) == "" {
		return services.NewValidationError("project_description", "must not be empty")
	}
	return nil
}

// PlannerInput feeds the Project Planner stage.
type PlannerInput struct {
	ProjectDescription  string
	ArchitectureContent string
	TeamSize            int
}

func (PlannerInput) Stage() models.Stage { return models.StagePlanner }

func (in PlannerInput) Validate() error {
	if strings.TrimSpace(in.ProjectDescription) == "" {
		return services.NewValidationError("project_description", "must not be empty")
	}
	if strings.TrimSpace(in.ArchitectureContent) == "" {
		return services.NewValidationError("architecture_content", "must not be empty")
	}
	if in.TeamSize < 0 {
		return services.NewValidationError("team_size", "must not be negative")
	}
	return nil
}

// Epic is one implementation epic extracted from the planner output.
type Epic struct {
	Number  int    `json:"number"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Output is the result of one agent execution. Confidence is the
// quality controller's combined score.
type Output struct {
	AgentType  string              `json:"agent_type"`
	Title      string              `json:"title"`
	Content    string              `json:"content"`
	Sections   map[string]string   `json:"sections,omitempty"`
	Lists      map[string][]string `json:"lists,omitempty"`
	Epics      []Epic              `json:"epics,omitempty"`
	Validation quality.Result      `json:"validation"`
	Confidence float64             `json:"confidence"`
	Model      string              `json:"model,omitempty"`
	TokensUsed int                 `json:"tokens_used,omitempty"`
}

// ValidateInput asserts the input matches the stage and is well formed.
// Used by callers that must reject bad input before recording anything.
func ValidateInput(stage models.Stage, input Input) error {
	if err := inputForStage(stage, input); err != nil {
		return err
	}
	return input.Validate()
}

// inputForStage asserts the dynamic input type matches the stage.
func inputForStage(stage models.Stage, input Input) error {
	if input == nil {
		return services.NewValidationError("input", "must not be nil")
	}
	if input.Stage() != stage {
		return services.NewValidationError("input",
			fmt.Sprintf("input type %T does not match stage %d", input, stage))
	}
	return nil
}
