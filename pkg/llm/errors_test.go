package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateShortStringsPassThrough(t *testing.T) {
	assert.Equal(t, "ok", Truncate("ok"))
	s := strings.Repeat("a", maxDetailLen)
	assert.Equal(t, s, Truncate(s))
}

func TestTruncateBoundsLongStrings(t *testing.T) {
	got := Truncate(strings.Repeat("a", maxDetailLen+100))
	assert.Equal(t, maxDetailLen+3, len(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestTruncatePreservesRuneBoundaries(t *testing.T) {
	// Multi-byte runes placed so a naive byte cut at the limit would
	// split one in half.
	s := strings.Repeat("a", maxDetailLen-1) + strings.Repeat("é", 50)
	got := Truncate(s)

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxDetailLen+3)
	assert.True(t, strings.HasSuffix(got, "a..."), "the split rune is dropped, not mangled")
}
