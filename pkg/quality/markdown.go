package quality

import (
	"context"
	"strings"
)

// MarkdownValidator checks structural health of a markdown document.
// It fails when there is no top-level heading or the fencing is broken,
// and rewards deeper structure (subheadings, lists, code blocks).
type MarkdownValidator struct{}

func (MarkdownValidator) Name() string { return "markdown" }

func (MarkdownValidator) Validate(_ context.Context, content string, _ map[string]any) Result {
	var (
		h1, h2, h3 int
		listItems  int
		fences     int
	)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "### "):
			h3++
		case strings.HasPrefix(trimmed, "## "):
			h2++
		case strings.HasPrefix(trimmed, "# "):
			h1++
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			listItems++
		case strings.HasPrefix(trimmed, "```"):
			fences++
		}
	}

	result := Result{
		Details: map[string]any{
			"h1_count":     h1,
			"h2_count":     h2,
			"h3_count":     h3,
			"list_items":   listItems,
			"code_fences":  fences / 2,
			"length_chars": len(content),
		},
	}

	if strings.TrimSpace(content) == "" {
		result.Suggestions = append(result.Suggestions, "document is empty")
		return result
	}

	score := 0.0
	if h1 > 0 {
		score += 0.4
	} else {
		result.Suggestions = append(result.Suggestions, "add a top-level heading")
	}
	if h2 > 0 {
		score += 0.2
	} else {
		result.Suggestions = append(result.Suggestions, "break the document into sections with ## headings")
	}
	if h3 > 0 {
		score += 0.1
	}
	if listItems > 0 {
		score += 0.2
	} else {
		result.Suggestions = append(result.Suggestions, "use bullet lists for enumerations")
	}
	if fences >= 2 {
		score += 0.1
	}

	// An odd fence count means an unclosed code block.
	brokenFencing := fences%2 != 0
	if brokenFencing {
		score -= 0.3
		result.Suggestions = append(result.Suggestions, "close the unterminated code fence")
	}

	result.Score = clamp01(score)
	result.Passed = h1 > 0 && !brokenFencing
	return result
}
