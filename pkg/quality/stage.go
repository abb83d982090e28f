package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/specforge/specforge/pkg/models"
)

// StageValidator asserts the presence of the topical sections one stage
// must produce. Matching is case-insensitive over heading lines, with a
// body-text fallback so a section mentioned inline still counts half.
type StageValidator struct {
	agentType string
	sections  []string
}

// requiredSections maps each stage agent to the section topics its
// document must cover.
var requiredSections = map[string][]string{
	models.StageAnalyst.AgentType(): {
		"problem", "target audience", "success metrics", "scope", "risks",
	},
	models.StageStandards.AgentType(): {
		"technology stack", "coding standards", "testing", "code review", "security",
	},
	models.StageArchitect.AgentType(): {
		"architecture overview", "components", "data model", "api", "deployment",
	},
	models.StagePlanner.AgentType(): {
		"epics", "milestones", "dependencies", "timeline",
	},
}

// NewStageValidator returns the validator for one stage agent, or an
// error for an unknown agent type.
func NewStageValidator(agentType string) (*StageValidator, error) {
	sections, ok := requiredSections[agentType]
	if !ok {
		return nil, fmt.Errorf("no validator registered for agent type %q", agentType)
	}
	return &StageValidator{agentType: agentType, sections: sections}, nil
}

func (v *StageValidator) Name() string { return v.agentType }

func (v *StageValidator) Validate(_ context.Context, content string, _ map[string]any) Result {
	lower := strings.ToLower(content)
	var headings []string
	for _, line := range strings.Split(lower, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			headings = append(headings, strings.TrimLeft(trimmed, "# "))
		}
	}

	found := 0.0
	result := Result{Details: map[string]any{"required_sections": len(v.sections)}}
	for _, section := range v.sections {
		switch {
		case headingMatches(headings, section):
			found++
		case strings.Contains(lower, section):
			found += 0.5
			result.Suggestions = append(result.Suggestions,
				fmt.Sprintf("promote %q to its own section heading", section))
		default:
			result.MissingSections = append(result.MissingSections, section)
			result.Suggestions = append(result.Suggestions,
				fmt.Sprintf("add a %q section", section))
		}
	}

	result.Score = clamp01(found / float64(len(v.sections)))
	result.Passed = len(result.MissingSections) == 0
	result.Details["matched"] = found
	return result
}

func headingMatches(headings []string, section string) bool {
	for _, h := range headings {
		if strings.Contains(h, section) {
			return true
		}
	}
	return false
}
