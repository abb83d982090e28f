package agent

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/pkg/models"
)

// stageSpec is the capability record for one stage: everything that
// differs between the four agents. The executor supplies the shared
// behavior around it.
type stageSpec struct {
	stage        models.Stage
	defaultTitle string
	// contextQuery is the canned vector-store query for prior-stage
	// material. Empty for the first stage, which starts from nothing.
	contextQuery string
	systemPrompt func(language string) string
	taskDesc     func(input Input, excerpts []string) string
}

// stageSpecs is the static stage → capability table the executor and
// orchestrator dispatch on.
var stageSpecs = map[models.Stage]stageSpec{
	models.StageAnalyst: {
		stage:        models.StageAnalyst,
		defaultTitle: "Product Overview",
		systemPrompt: func(language string) string {
			return fmt.Sprintf(`You are a senior business analyst. Respond in %s.
Produce a structured markdown product overview with a top-level title and
these sections: Problem, Target Audience, Success Metrics, Scope, Risks.
Use bullet lists for enumerations.`, languageName(language))
		},
		taskDesc: func(input Input, _ []string) string {
			in := input.(AnalystInput)
			var b strings.Builder
			b.WriteString("Analyze the following product idea and produce the overview document.\n\n")
			b.WriteString("Idea description:\n" + in.IdeaDescription + "\n")
			if in.TargetAudience != "" {
				b.WriteString("\nStated target audience: " + in.TargetAudience + "\n")
			}
			if len(in.UserClarifications) > 0 {
				b.WriteString("\nUser clarifications:\n")
				for _, c := range in.UserClarifications {
					b.WriteString("- " + c + "\n")
				}
			}
			return b.String()
		},
	},
	models.StageStandards: {
		stage:        models.StageStandards,
		defaultTitle: "Engineering Standards",
		contextQuery: "product overview problem target audience scope",
		systemPrompt: func(language string) string {
			return fmt.Sprintf(`You are a principal engineer defining standards. Respond in %s.
Produce a structured markdown standards document with a top-level title and
these sections: Technology Stack, Coding Standards, Testing, Code Review,
Security. Use bullet lists for rules and tools.`, languageName(language))
		},
		taskDesc: func(input Input, excerpts []string) string {
			in := input.(StandardsInput)
			var b strings.Builder
			b.WriteString("Define engineering standards for the following project.\n\n")
			b.WriteString("Project description:\n" + in.ProjectDescription + "\n")
			if len(in.TechnologyStack) > 0 {
				b.WriteString("\nRequired technology stack:\n")
				for _, t := range in.TechnologyStack {
					b.WriteString("- " + t + "\n")
				}
			}
			writeExcerpts(&b, excerpts)
			return b.String()
		},
	},
	models.StageArchitect: {
		stage:        models.StageArchitect,
		defaultTitle: "Solution Architecture",
		contextQuery: "product overview engineering standards technology decisions",
		systemPrompt: func(language string) string {
			return fmt.Sprintf(`You are a solution architect. Respond in %s.
Produce a structured markdown architecture document with a top-level title
and these sections: Architecture Overview, Components, Data Model, API,
Deployment. Use bullet lists for component responsibilities.`, languageName(language))
		},
		taskDesc: func(input Input, excerpts []string) string {
			in := input.(ArchitectInput)
			var b strings.Builder
			b.WriteString("Design the architecture for the following project.\n\n")
			b.WriteString("Project description:\n" + in.ProjectDescription + "\n")
			if len(in.UserTechPreferences) > 0 {
				b.WriteString("\nUser technology preferences:\n")
				for _, p := range in.UserTechPreferences {
					b.WriteString("- " + p + "\n")
				}
			}
			writeExcerpts(&b, excerpts)
			return b.String()
		},
	},
	models.StagePlanner: {
		stage:        models.StagePlanner,
		defaultTitle: "Implementation Plan",
		contextQuery: "architecture components data model implementation",
		systemPrompt: func(language string) string {
			return fmt.Sprintf(`You are a project planner. Respond in %s.
Produce a structured markdown implementation plan with a top-level title
and these sections: Epics, Milestones, Dependencies, Timeline. Break the
work into epics, each under a heading of the form "## Epic N: Name" with
its scope and tasks as bullet lists.`, languageName(language))
		},
		taskDesc: func(input Input, excerpts []string) string {
			in := input.(PlannerInput)
			var b strings.Builder
			b.WriteString("Plan the implementation of the following project.\n\n")
			b.WriteString("Project description:\n" + in.ProjectDescription + "\n")
			b.WriteString("\nArchitecture:\n" + in.ArchitectureContent + "\n")
			if in.TeamSize > 0 {
				fmt.Fprintf(&b, "\nTeam size: %d\n", in.TeamSize)
			}
			writeExcerpts(&b, excerpts)
			return b.String()
		},
	},
}

func writeExcerpts(b *strings.Builder, excerpts []string) {
	if len(excerpts) == 0 {
		return
	}
	b.WriteString("\nRelevant material from earlier stages:\n")
	for _, e := range excerpts {
		b.WriteString("\n---\n" + e + "\n")
	}
}

// languageName expands common language codes for the prompt; anything
// unknown passes through as-is.
func languageName(code string) string {
	switch strings.ToLower(code) {
	case "", "en":
		return "English"
	case "de":
		return "German"
	case "es":
		return "Spanish"
	case "fr":
		return "French"
	case "ru":
		return "Russian"
	}
	return code
}
