package vector

import "strings"

// Chunk is one ordered slice of a source text.
type Chunk struct {
	Index int
	Text  string
}

// Chunker splits text into overlapping chunks with stable ordering.
type Chunker struct {
	// Size is the target chunk length in runes.
	Size int
	// Overlap is how many runes consecutive chunks share.
	Overlap int
}

// NewChunker creates a chunker with sane bounds: overlap is clamped to
// less than size so progress is always made.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split breaks text into chunks. Break points prefer paragraph then
// sentence boundaries within the tail quarter of the window; ordering
// follows source order and indexes are contiguous from zero.
func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.Size {
		return []Chunk{{Index: 0, Text: text}}
	}

	var chunks []Chunk
	step := c.Size - c.Overlap
	start := 0
	for start < len(runes) {
		end := start + c.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.adjustBreak(runes, start, end)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: piece})
		}
		if end == len(runes) {
			break
		}
		start += step
		if start >= len(runes) {
			break
		}
	}
	return chunks
}

// adjustBreak pulls the cut back to the nearest paragraph or sentence
// boundary within the tail quarter of the window, if one exists.
func (c *Chunker) adjustBreak(runes []rune, start, end int) int {
	floor := end - c.Size/4
	if floor < start+1 {
		floor = start + 1
	}
	for i := end - 1; i >= floor; i-- {
		if runes[i] == '\n' && i > start && runes[i-1] == '\n' {
			return i
		}
	}
	for i := end - 1; i >= floor; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return end
}
