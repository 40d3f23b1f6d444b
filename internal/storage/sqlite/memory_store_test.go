package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// stubEmbedder produces deterministic low-dimension vectors for tests,
// without pulling in a real embedding backend.
type stubEmbedder struct {
	dim int
}

func (e *stubEmbedder) Dimension() int     { return e.dim }
func (e *stubEmbedder) MaxInputChars() int { return 0 }
func (e *stubEmbedder) Model() string      { return "stub-test-embedder" }

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dim)
		for j := range v {
			// A cheap hash-free signal: vary by rune sum so near-identical
			// strings land near each other in the test's small space.
			v[j] = float32((len(t)+j)%7) / 7
		}
		out[i] = v
	}
	return out, nil
}

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(":memory:", &stubEmbedder{dim: 4})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newMemory(hash, content string, tags []string) *types.Memory {
	return &types.Memory{
		ContentHash: hash,
		Content:     content,
		Tags:        tags,
		MemoryType:  "note",
		Metadata:    map[string]interface{}{"origin": "test"},
		Embedding:   []float32{0.1, 0.2, 0.3, 0.4},
	}
}

func TestStoreAndGetByHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := newMemory("hash-1", "first memory", []string{"alpha", "beta"})
	res, err := store.Store(ctx, mem)
	require.NoError(t, err)
	require.True(t, res.Success)

	got, err := store.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.Equal(t, "first memory", got.Content)
	require.ElementsMatch(t, []string{"alpha", "beta"}, got.Tags)
	require.False(t, got.IsDeleted())
}

func TestStoreDuplicateRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := newMemory("hash-dup", "dup content", nil)
	_, err := store.Store(ctx, mem)
	require.NoError(t, err)

	_, err = store.Store(ctx, newMemory("hash-dup", "dup content", nil))
	require.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestUpdateMemoryPreservesCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := newMemory("hash-upd", "to update", []string{"one"})
	_, err := store.Store(ctx, mem)
	require.NoError(t, err)

	original, err := store.GetByHash(ctx, "hash-upd")
	require.NoError(t, err)

	original.Tags = []string{"one", "two"}
	time.Sleep(time.Millisecond)
	require.NoError(t, store.UpdateMemory(ctx, original))

	updated, err := store.GetByHash(ctx, "hash-upd")
	require.NoError(t, err)
	require.Equal(t, original.CreatedAt, updated.CreatedAt)
	require.Greater(t, updated.UpdatedAt, original.CreatedAt)
	require.ElementsMatch(t, []string{"one", "two"}, updated.Tags)
}

func TestDeleteIsTombstoneNotPhysical(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-del", "gone soon", nil))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "hash-del"))

	_, err = store.GetAllMemories(ctx, storage.ListOptions{})
	require.NoError(t, err)

	deleted, err := store.IsDeleted(ctx, "hash-del")
	require.NoError(t, err)
	require.True(t, deleted)

	// Still retrievable by direct hash lookup (tombstone-visible read path).
	m, err := store.GetByHash(ctx, "hash-del")
	require.NoError(t, err)
	require.True(t, m.IsDeleted())
}

func TestPurgeDeletedRemovesOldTombstonesOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-old", "old tombstone", nil))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "hash-old"))

	// Backdate the tombstone far enough to be eligible for purge.
	old := types.NowEpoch(time.Now().UTC().AddDate(0, 0, -40))
	_, err = store.db.ExecContext(ctx, `UPDATE memories SET deleted_at = ? WHERE content_hash = ?`, old, "hash-old")
	require.NoError(t, err)

	_, err = store.Store(ctx, newMemory("hash-recent", "recent tombstone", nil))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "hash-recent"))

	purged, err := store.PurgeDeleted(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	_, err = store.GetByHash(ctx, "hash-old")
	require.ErrorIs(t, err, storage.ErrNotFound)

	stillThere, err := store.GetByHash(ctx, "hash-recent")
	require.NoError(t, err)
	require.True(t, stillThere.IsDeleted())
}

func TestTagExactMatchNoSubstringCollision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-test", "tagged test", []string{"test"}))
	require.NoError(t, err)
	_, err = store.Store(ctx, newMemory("hash-testing", "tagged testing", []string{"testing"}))
	require.NoError(t, err)

	results, err := store.SearchByTag(ctx, []string{"test"}, storage.TagOpOR, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "hash-test", results[0].ContentHash)
}

func TestRecallReturnsScoreAndDistance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-r1", "a short memory", nil))
	require.NoError(t, err)

	results, err := store.Recall(ctx, "a short memory", 5, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.NotNil(t, results[0].SimilarityScore)
	require.NotNil(t, results[0].Distance)
	require.GreaterOrEqual(t, *results[0].SimilarityScore, 0.0)
	require.LessOrEqual(t, *results[0].SimilarityScore, 1.0)
}

func TestStoreAssociationAndFindConnected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-a", "memory a", nil))
	require.NoError(t, err)
	_, err = store.Store(ctx, newMemory("hash-b", "memory b", nil))
	require.NoError(t, err)

	assoc := &types.Association{
		SourceHash:       "hash-a",
		TargetHash:       "hash-b",
		RelationshipType: types.RelRelated,
		Similarity:       0.9,
	}
	require.NoError(t, store.StoreAssociation(ctx, assoc))

	connected, err := store.FindConnected(ctx, "hash-a", 1, storage.DirectionOut)
	require.NoError(t, err)
	require.Len(t, connected, 1)
	require.Equal(t, "hash-b", connected[0].ContentHash)

	path, err := store.ShortestPath(ctx, "hash-a", "hash-b")
	require.NoError(t, err)
	require.Equal(t, []string{"hash-a", "hash-b"}, path)
}

func TestUpdateMemoriesBatchIsSingleTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-b1", "batch one", nil))
	require.NoError(t, err)
	_, err = store.Store(ctx, newMemory("hash-b2", "batch two", nil))
	require.NoError(t, err)

	m1, err := store.GetByHash(ctx, "hash-b1")
	require.NoError(t, err)
	m2, err := store.GetByHash(ctx, "hash-b2")
	require.NoError(t, err)

	m1.Tags = []string{"batched"}
	m2.Tags = []string{"batched"}

	// One item references a hash that doesn't exist; its failure must not
	// roll back the others under UpdateMemory's per-row semantics, since
	// each row succeeds or fails independently within the shared tx.
	missing := newMemory("hash-missing", "never stored", nil)

	results, err := store.UpdateMemoriesBatch(ctx, []*types.Memory{m1, m2, missing})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	require.ErrorIs(t, results[2].Err, storage.ErrNotFound)

	got, err := store.GetByHash(ctx, "hash-b1")
	require.NoError(t, err)
	require.Equal(t, []string{"batched"}, got.Tags)
}
