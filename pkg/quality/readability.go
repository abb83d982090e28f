package quality

import (
	"context"
	"strings"
	"unicode"
)

// ReadabilityValidator scores prose readability from Flesch-style
// metrics. It is advisory only: Passed is always true, and an input it
// cannot analyze yields the neutral score 0.5.
type ReadabilityValidator struct{}

const neutralScore = 0.5

func (ReadabilityValidator) Name() string { return "readability" }

func (ReadabilityValidator) Validate(_ context.Context, content string, _ map[string]any) Result {
	prose := stripMarkup(content)
	sentences := splitSentences(prose)
	words := strings.Fields(prose)

	if len(sentences) == 0 || len(words) == 0 {
		return Result{Passed: true, Score: neutralScore, Details: map[string]any{"note": "not enough prose to analyze"}}
	}

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wordsPerSentence := float64(len(words)) / float64(len(sentences))
	syllablesPerWord := float64(syllables) / float64(len(words))

	// Flesch reading ease; grade via Flesch-Kincaid.
	ease := 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
	grade := 0.39*wordsPerSentence + 11.8*syllablesPerWord - 15.59

	score := neutralScore
	switch {
	case ease >= 30 && ease <= 70:
		// Target band for technical documentation.
		score = 1.0
	case ease >= 10 && ease < 30, ease > 70 && ease <= 90:
		score = 0.7
	default:
		score = 0.4
	}
	if wordsPerSentence > 35 {
		score -= 0.2
	}

	result := Result{
		Passed: true,
		Score:  clamp01(score),
		Details: map[string]any{
			"reading_ease":       ease,
			"grade_level":        grade,
			"words_per_sentence": wordsPerSentence,
			"sentence_count":     len(sentences),
			"word_count":         len(words),
		},
	}
	if wordsPerSentence > 35 {
		result.Suggestions = append(result.Suggestions, "shorten sentences; average length is very high")
	}
	return result
}

// stripMarkup drops headings markers, list markers, and fenced code so
// only prose is measured.
func stripMarkup(content string) string {
	var b strings.Builder
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		trimmed = strings.TrimLeft(trimmed, "#>*- ")
		if trimmed != "" {
			b.WriteString(trimmed)
			b.WriteString(" ")
		}
	}
	return b.String()
}

func splitSentences(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := parts[:0]
	for _, p := range parts {
		if len(strings.Fields(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// countSyllables estimates syllables by counting vowel groups.
func countSyllables(word string) int {
	word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	if word == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range word {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
