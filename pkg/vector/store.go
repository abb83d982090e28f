// Package vector provides the multi-tenant vector store adapter and the
// chunking/embedding pipeline feeding it. Every operation requires a
// (tenant_id, project_id) pair and injects an equality filter on both
// into the underlying query — there is no API surface that can omit them.
package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

// Dimensions is the embedding width of the shared collection.
const Dimensions = 1536

// Point type payload values.
const (
	TypeKnowledge = "knowledge"
	TypeMemory    = "memory"
)

// Visibility payload values.
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

var (
	// ErrInvalidArgument is returned for shape mismatches (vector length,
	// vectors/payloads count mismatch).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable classifies connectivity failures so the caller may retry.
	ErrUnavailable = errors.New("vector store unavailable")
)

// Store is the adapter over the shared vector_points table.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps the database handle. The collection (table + HNSW index)
// is created by the embedded migrations; EnsureCollection re-checks it.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureCollection verifies the shared collection exists. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	var one int
	err := s.db.GetContext(ctx, &one, `SELECT 1 FROM vector_points LIMIT 1`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return s.wrap("ensure_collection", "", "", err)
	}
	return nil
}

// UpsertResult reports the outcome of an upsert.
type UpsertResult struct {
	Status      string `json:"status"`
	PointsCount int    `json:"points_count"`
	OperationID string `json:"operation_id"`
}

// Upsert writes vectors with enriched payloads. Vectors and payloads must
// have equal length. Each payload is enriched with the scoping metadata,
// created_at, and a stable vector_index preserving input order.
func (s *Store) Upsert(ctx context.Context, tenantID, projectID string,
	vectors [][]float32, payloads []map[string]any,
	docType, visibility string, version int, lang string) (*UpsertResult, error) {

	if err := requireScope(tenantID, projectID); err != nil {
		return nil, err
	}
	if len(vectors) != len(payloads) {
		return nil, fmt.Errorf("%w: %d vectors but %d payloads", ErrInvalidArgument, len(vectors), len(payloads))
	}
	if len(vectors) == 0 {
		return &UpsertResult{Status: "ok", OperationID: uuid.NewString()}, nil
	}
	for i, v := range vectors {
		if len(v) != Dimensions {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrInvalidArgument, i, len(v), Dimensions)
		}
	}
	if docType == "" {
		docType = TypeMemory
	}
	if visibility == "" {
		visibility = VisibilityPrivate
	}
	if lang == "" {
		lang = "en"
	}

	opID := uuid.NewString()
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, s.wrap("upsert", tenantID, projectID, err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `
		INSERT INTO vector_points (id, tenant_id, project_id, embedding, doc_type, visibility, lang, version, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload, version = EXCLUDED.version`

	for i, vec := range vectors {
		payload := make(map[string]any, len(payloads[i])+6)
		for k, v := range payloads[i] {
			payload[k] = v
		}
		payload["tenant_id"] = tenantID
		payload["project_id"] = projectID
		payload["type"] = docType
		payload["visibility"] = visibility
		payload["lang"] = lang
		payload["created_at"] = now.Format(time.RFC3339)
		payload["vector_index"] = i

		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload %d: %w", i, err)
		}

		pointID := uuid.NewString()
		if raw, ok := payload["point_id"].(string); ok && raw != "" {
			pointID = raw
		}

		if _, err := tx.ExecContext(ctx, insert,
			pointID, tenantID, projectID, pgvector.NewVector(vec),
			docType, visibility, lang, version, payloadJSON, now,
		); err != nil {
			return nil, s.wrap("upsert", tenantID, projectID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, s.wrap("upsert", tenantID, projectID, err)
	}

	return &UpsertResult{
		Status:      "ok",
		PointsCount: len(vectors),
		OperationID: opID,
	}, nil
}

// ScoredPoint is one search hit.
type ScoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search runs cosine similarity search. Caller-supplied filters are
// conjunctive payload-equality conditions and cannot override the
// mandatory tenant/project conjuncts.
func (s *Store) Search(ctx context.Context, tenantID, projectID string,
	queryVector []float32, limit int, scoreThreshold float64,
	filters map[string]string) ([]ScoredPoint, error) {

	if err := requireScope(tenantID, projectID); err != nil {
		return nil, err
	}
	if len(queryVector) != Dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, want %d", ErrInvalidArgument, len(queryVector), Dimensions)
	}
	if limit <= 0 {
		limit = 10
	}

	// 1 - cosine distance = cosine similarity.
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, 1 - (embedding <=> $1) AS score, payload
		FROM vector_points
		WHERE tenant_id = $2 AND project_id = $3`)

	args := []any{pgvector.NewVector(queryVector), tenantID, projectID}
	n := 3
	for _, col := range []string{"doc_type", "visibility", "lang"} {
		filterKey := col
		if col == "doc_type" {
			filterKey = "type"
		}
		if val, ok := filters[filterKey]; ok && val != "" {
			n++
			fmt.Fprintf(&query, " AND %s = $%d", col, n)
			args = append(args, val)
		}
	}
	n++
	fmt.Fprintf(&query, " AND 1 - (embedding <=> $1) >= $%d", n)
	args = append(args, scoreThreshold)
	n++
	fmt.Fprintf(&query, " ORDER BY embedding <=> $1 LIMIT $%d", n)
	args = append(args, limit)

	rows, err := s.db.QueryxContext(ctx, query.String(), args...)
	if err != nil {
		return nil, s.wrap("search", tenantID, projectID, err)
	}
	defer rows.Close()

	var results []ScoredPoint
	for rows.Next() {
		var (
			id          string
			score       float64
			payloadJSON []byte
		)
		if err := rows.Scan(&id, &score, &payloadJSON); err != nil {
			return nil, s.wrap("search", tenantID, projectID, err)
		}
		var payload map[string]any
		if err := json.Unmarshal(payloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal point payload: %w", err)
		}
		results = append(results, ScoredPoint{ID: id, Score: score, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("search", tenantID, projectID, err)
	}
	return results, nil
}

// Delete removes points. With ids: exactly those ids (still scoped).
// Without ids: everything matching the tenant/project filter.
func (s *Store) Delete(ctx context.Context, tenantID, projectID string, pointIDs ...string) error {
	if err := requireScope(tenantID, projectID); err != nil {
		return err
	}
	var err error
	if len(pointIDs) > 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM vector_points WHERE tenant_id = $1 AND project_id = $2 AND id = ANY($3)`,
			tenantID, projectID, pointIDs)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM vector_points WHERE tenant_id = $1 AND project_id = $2`,
			tenantID, projectID)
	}
	if err != nil {
		return s.wrap("delete", tenantID, projectID, err)
	}
	return nil
}

// Count returns the number of points in the project's scope.
func (s *Store) Count(ctx context.Context, tenantID, projectID string) (int, error) {
	if err := requireScope(tenantID, projectID); err != nil {
		return 0, err
	}
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT count(*) FROM vector_points WHERE tenant_id = $1 AND project_id = $2`,
		tenantID, projectID)
	if err != nil {
		return 0, s.wrap("count", tenantID, projectID, err)
	}
	return count, nil
}

func requireScope(tenantID, projectID string) error {
	if tenantID == "" || projectID == "" {
		return fmt.Errorf("%w: tenant_id and project_id are mandatory", ErrInvalidArgument)
	}
	return nil
}

// wrap surfaces store errors with operation context, tagging connectivity
// failures with ErrUnavailable so callers may retry.
func (s *Store) wrap(op, tenantID, projectID string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("vector %s (tenant=%s project=%s): %w: %w", op, tenantID, projectID, ErrUnavailable, err)
	}
	return fmt.Errorf("vector %s (tenant=%s project=%s): %w", op, tenantID, projectID, err)
}
