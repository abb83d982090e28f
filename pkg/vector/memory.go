package vector

import (
	"context"
	"fmt"
)

// Memory combines the chunker, the embedder, and the store into the two
// operations the agent pipeline needs: writing generated output back as
// project memory, and retrieving prior-stage excerpts for prompts.
type Memory struct {
	store    *Store
	embedder Embedder
	chunker  *Chunker
	lang     string
}

// NewMemory wires the memory pipeline. Chunks of 1200 runes with a
// 200-rune overlap keep single sections intact while bounding embedding
// input size.
func NewMemory(store *Store, embedder Embedder, lang string) *Memory {
	if lang == "" {
		lang = "en"
	}
	return &Memory{
		store:    store,
		embedder: embedder,
		chunker:  NewChunker(1200, 200),
		lang:     lang,
	}
}

// StoreMemory chunks, embeds, and upserts generated content as private
// project memory. Extra payload fields tag every chunk.
func (m *Memory) StoreMemory(ctx context.Context, tenantID, projectID, content string, tags map[string]any) error {
	chunks := m.chunker.Split(content)
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed memory chunks: %w", err)
	}

	payloads := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{
			"text":        c.Text,
			"chunk_index": c.Index,
		}
		for k, v := range tags {
			payload[k] = v
		}
		payloads[i] = payload
	}

	_, err = m.store.Upsert(ctx, tenantID, projectID, vectors, payloads,
		TypeMemory, VisibilityPrivate, 1, m.lang)
	return err
}

// Retrieve embeds the query and returns the text of the best-matching
// memory chunks, capped at limit. Satisfies the agent executor's
// context retriever.
func (m *Memory) Retrieve(ctx context.Context, tenantID, projectID, query string, limit int) ([]string, error) {
	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed context query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query embedding, got %d", len(vectors))
	}

	points, err := m.store.Search(ctx, tenantID, projectID, vectors[0], limit, 0.2,
		map[string]string{"type": TypeMemory})
	if err != nil {
		return nil, err
	}

	excerpts := make([]string, 0, len(points))
	for _, p := range points {
		if text, ok := p.Payload["text"].(string); ok && text != "" {
			excerpts = append(excerpts, text)
		}
	}
	return excerpts, nil
}
