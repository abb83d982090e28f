package vector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerShortTextIsOneChunk(t *testing.T) {
	c := NewChunker(1200, 200)

	chunks := c.Split("a short document")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "a short document", chunks[0].Text)

	assert.Nil(t, c.Split("   \n  "))
}

func TestChunkerOrderingAndCoverage(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("alpha bravo charlie delta echo. ", 40)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index, "indexes are contiguous from zero")
		assert.NotEmpty(t, ch.Text)
		assert.LessOrEqual(t, len([]rune(ch.Text)), 100)
	}

	// The tail of the source must land in the final chunk.
	last := chunks[len(chunks)-1]
	assert.True(t, strings.HasSuffix(strings.TrimSpace(text), last.Text[len(last.Text)-10:]))
}

func TestChunkerPrefersParagraphBreaks(t *testing.T) {
	c := NewChunker(60, 10)
	text := strings.Repeat("x", 50) + "\n\n" + strings.Repeat("y", 50)

	chunks := c.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, strings.Repeat("x", 50), chunks[0].Text,
		"the cut lands on the paragraph boundary")
}

func TestNewChunkerClampsOverlap(t *testing.T) {
	c := NewChunker(100, 100)
	assert.Less(t, c.Overlap, c.Size, "overlap below size guarantees progress")

	c = NewChunker(0, -5)
	assert.Equal(t, 1000, c.Size)
	assert.Equal(t, 0, c.Overlap)
}
