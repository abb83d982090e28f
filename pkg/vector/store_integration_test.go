package vector_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/vector"
	"github.com/specforge/specforge/test/util"
)

// unitVector returns a 1536-dimension basis vector. Distinct axes are
// orthogonal, so cosine similarity is exactly 1 against itself and 0
// against any other axis.
func unitVector(axis int) []float32 {
	v := make([]float32, vector.Dimensions)
	v[axis] = 1
	return v
}

func TestSearchNeverCrossesTenants(t *testing.T) {
	db := util.SetupTestDatabase(t)
	store := vector.NewStore(db)
	ctx := t.Context()

	tenantA, tenantB := uuid.NewString(), uuid.NewString()
	projectID := uuid.NewString()

	_, err := store.Upsert(ctx, tenantA, projectID,
		[][]float32{unitVector(0)},
		[]map[string]any{{"text": "alpha doc"}},
		vector.TypeKnowledge, vector.VisibilityPrivate, 1, "en")
	require.NoError(t, err)

	_, err = store.Upsert(ctx, tenantB, projectID,
		[][]float32{unitVector(1)},
		[]map[string]any{{"text": "bravo doc"}},
		vector.TypeKnowledge, vector.VisibilityPrivate, 1, "en")
	require.NoError(t, err)

	// Query with tenant B's exact embedding while scoped to tenant A.
	// B's point would score a perfect 1.0, but the mandatory tenant
	// conjunct must keep it invisible.
	hits, err := store.Search(ctx, tenantA, projectID, unitVector(1), 10, 0, nil)
	require.NoError(t, err)
	for _, hit := range hits {
		assert.Equal(t, tenantA, hit.Payload["tenant_id"])
	}

	// Scoped to its own embedding, tenant A sees exactly its own point.
	hits, err = store.Search(ctx, tenantA, projectID, unitVector(0), 10, 0.5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "alpha doc", hits[0].Payload["text"])
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestDeleteAndCountAreScoped(t *testing.T) {
	db := util.SetupTestDatabase(t)
	store := vector.NewStore(db)
	ctx := t.Context()

	tenantA, tenantB := uuid.NewString(), uuid.NewString()
	projectID := uuid.NewString()

	for _, tenant := range []string{tenantA, tenantB} {
		_, err := store.Upsert(ctx, tenant, projectID,
			[][]float32{unitVector(0), unitVector(1)},
			[]map[string]any{{"text": "one"}, {"text": "two"}},
			vector.TypeMemory, vector.VisibilityPrivate, 1, "en")
		require.NoError(t, err)
	}

	require.NoError(t, store.Delete(ctx, tenantA, projectID))

	countA, err := store.Count(ctx, tenantA, projectID)
	require.NoError(t, err)
	assert.Zero(t, countA)

	// Tenant B's points survive tenant A's unfiltered delete.
	countB, err := store.Count(ctx, tenantB, projectID)
	require.NoError(t, err)
	assert.Equal(t, 2, countB)
}

func TestSearchFiltersStayInsideScope(t *testing.T) {
	db := util.SetupTestDatabase(t)
	store := vector.NewStore(db)
	ctx := t.Context()

	tenantID, projectID := uuid.NewString(), uuid.NewString()

	_, err := store.Upsert(ctx, tenantID, projectID,
		[][]float32{unitVector(0)},
		[]map[string]any{{"text": "knowledge"}},
		vector.TypeKnowledge, vector.VisibilityPublic, 1, "en")
	require.NoError(t, err)

	_, err = store.Upsert(ctx, tenantID, projectID,
		[][]float32{unitVector(0)},
		[]map[string]any{{"text": "memory"}},
		vector.TypeMemory, vector.VisibilityPrivate, 1, "en")
	require.NoError(t, err)

	hits, err := store.Search(ctx, tenantID, projectID, unitVector(0), 10, 0,
		map[string]string{"type": vector.TypeKnowledge})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "knowledge", hits[0].Payload["text"])
}
