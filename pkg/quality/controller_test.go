package quality

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/models"
)

const analystDoc = `# Product Overview

## Problem
Teams lose track of requirements across scattered chat threads. The
current process produces no durable record of any decision.

## Target Audience
Small product teams of two to ten people who already use markdown.

## Success Metrics
- Time to first document under five minutes
- Weekly active projects

## Scope
- Document generation
- Review workflow

## Risks
- Generated content may need heavy editing
`

func TestMarkdownValidator(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantPassed bool
	}{
		{
			name:       "structured document passes",
			content:    analystDoc,
			wantPassed: true,
		},
		{
			name:       "missing top-level heading fails",
			content:    "## Only a subheading\n\nSome text.",
			wantPassed: false,
		},
		{
			name:       "unclosed code fence fails",
			content:    "# Title\n\n```go\nfunc main() {}\n",
			wantPassed: false,
		},
		{
			name:       "empty document fails",
			content:    "   \n  ",
			wantPassed: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := MarkdownValidator{}.Validate(context.Background(), tt.content, nil)
			assert.Equal(t, tt.wantPassed, r.Passed)
			assert.GreaterOrEqual(t, r.Score, 0.0)
			assert.LessOrEqual(t, r.Score, 1.0)
		})
	}
}

func TestMarkdownValidatorRewardsStructure(t *testing.T) {
	flat := MarkdownValidator{}.Validate(context.Background(), "# Title\n\nJust a paragraph.", nil)
	rich := MarkdownValidator{}.Validate(context.Background(), analystDoc, nil)
	assert.Greater(t, rich.Score, flat.Score)
}

func TestReadabilityValidatorNeverFails(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"normal prose", analystDoc},
		{"empty input", ""},
		{"only markup", "# \n- \n```\n```"},
		{"single word", "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ReadabilityValidator{}.Validate(context.Background(), tt.content, nil)
			assert.True(t, r.Passed, "readability is advisory and must not fail validation")
			assert.GreaterOrEqual(t, r.Score, 0.0)
			assert.LessOrEqual(t, r.Score, 1.0)
		})
	}
}

func TestReadabilityValidatorNeutralOnUnanalyzableInput(t *testing.T) {
	r := ReadabilityValidator{}.Validate(context.Background(), "", nil)
	assert.Equal(t, neutralScore, r.Score)
}

func TestStageValidator(t *testing.T) {
	v, err := NewStageValidator(models.StageAnalyst.AgentType())
	require.NoError(t, err)

	t.Run("complete document passes", func(t *testing.T) {
		r := v.Validate(context.Background(), analystDoc, nil)
		assert.True(t, r.Passed)
		assert.Empty(t, r.MissingSections)
		assert.Equal(t, 1.0, r.Score)
	})

	t.Run("missing sections are reported", func(t *testing.T) {
		partial := "# Overview\n\n## Problem\nSomething is broken.\n"
		r := v.Validate(context.Background(), partial, nil)
		assert.False(t, r.Passed)
		assert.Contains(t, r.MissingSections, "target audience")
		assert.Contains(t, r.MissingSections, "success metrics")
		assert.Less(t, r.Score, 1.0)
	})

	t.Run("inline mention scores half", func(t *testing.T) {
		inline := "# Overview\n\nThe target audience is small teams.\n"
		r := v.Validate(context.Background(), inline, nil)
		assert.NotContains(t, r.MissingSections, "target audience")
		assert.False(t, r.Passed)
	})
}

func TestNewStageValidatorUnknownAgent(t *testing.T) {
	_, err := NewStageValidator("copywriter")
	require.Error(t, err)
}

func TestStageValidatorsExistForAllStages(t *testing.T) {
	for st := models.StageAnalyst; st <= models.StagePlanner; st++ {
		_, err := NewStageValidator(st.AgentType())
		assert.NoError(t, err, "stage %d", st)
	}
}

func TestControllerCombinesResults(t *testing.T) {
	c := NewController(slog.Default())

	t.Run("mean score and conjunction of passed", func(t *testing.T) {
		r, err := c.Validate(context.Background(), analystDoc, models.StageAnalyst.AgentType(), "corr-1")
		require.NoError(t, err)
		assert.True(t, r.Passed)
		assert.Greater(t, r.Score, 0.5)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.Len(t, r.Details, 3)
	})

	t.Run("one failing validator fails the run", func(t *testing.T) {
		// Structurally fine but missing every analyst section.
		doc := "# Title\n\n## Notes\n- a point\n"
		r, err := c.Validate(context.Background(), doc, models.StageAnalyst.AgentType(), "corr-2")
		require.NoError(t, err)
		assert.False(t, r.Passed)
		assert.NotEmpty(t, r.MissingSections)
	})

	t.Run("suggestions are deduplicated", func(t *testing.T) {
		r, err := c.Validate(context.Background(), "", models.StageAnalyst.AgentType(), "corr-3")
		require.NoError(t, err)
		seen := make(map[string]int)
		for _, s := range r.Suggestions {
			seen[s]++
		}
		for s, n := range seen {
			assert.Equal(t, 1, n, "suggestion %q duplicated", s)
		}
	})

	t.Run("unknown agent type errors", func(t *testing.T) {
		_, err := c.Validate(context.Background(), analystDoc, "copywriter", "corr-4")
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "copywriter"))
	})
}
