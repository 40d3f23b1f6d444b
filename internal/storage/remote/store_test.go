package remote

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// testDSNEnv names the environment variable pointing at a scratch Postgres
// database. These tests are skipped unless it is set, since unlike the
// local store there is no embeddable in-process Postgres.
const testDSNEnv = "MEMVAULT_TEST_POSTGRES_DSN"

type stubEmbedder struct{ dim int }

func (e *stubEmbedder) Dimension() int     { return e.dim }
func (e *stubEmbedder) MaxInputChars() int { return 0 }
func (e *stubEmbedder) Model() string      { return "stub-test-embedder" }

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dim)
		for j := range v {
			v[j] = float32((len(t)+j)%7) / 7
		}
		out[i] = v
	}
	return out, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("skipping: %s not set", testDSNEnv)
	}

	store, err := NewStore(dsn, &stubEmbedder{dim: 4}, Limits{MaxContentLength: 0, MaxVectors: 0, BatchSize: 10})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))

	t.Cleanup(func() {
		_, _ = store.db.Exec(`DROP TABLE IF EXISTS memory_graph, memories, settings CASCADE`)
		_ = store.Close()
	})
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

func TestRemoteStoreAndGetByHash(t *testing.T) {
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

func TestRemoteStoreDuplicateRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-dup", "dup content", nil))
	require.NoError(t, err)

	_, err = store.Store(ctx, newMemory("hash-dup", "dup content", nil))
	require.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestRemoteDeleteIsTombstoneNotPhysical(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-del", "gone soon", nil))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "hash-del"))

	deleted, err := store.IsDeleted(ctx, "hash-del")
	require.NoError(t, err)
	require.True(t, deleted)

	m, err := store.GetByHash(ctx, "hash-del")
	require.NoError(t, err)
	require.True(t, m.IsDeleted())

	all, err := store.GetAllMemories(ctx, storage.ListOptions{})
	require.NoError(t, err)
	for _, mm := range all {
		require.NotEqual(t, "hash-del", mm.ContentHash)
	}
}

func TestRemoteContentTooLargeRejected(t *testing.T) {
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("skipping: %s not set", testDSNEnv)
	}
	store, err := NewStore(dsn, &stubEmbedder{dim: 4}, Limits{MaxContentLength: 8, BatchSize: 10})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() {
		_, _ = store.db.Exec(`DROP TABLE IF EXISTS memory_graph, memories, settings CASCADE`)
		_ = store.Close()
	})

	_, err = store.Store(context.Background(), newMemory("hash-big", "this content is way too long", nil))
	require.ErrorIs(t, err, storage.ErrContentTooLarge)
}

func TestRemoteStoreAssociationAndFindConnected(t *testing.T) {
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

func TestRemoteRecallReturnsScoreAndDistance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-r1", "a short memory", nil))
	require.NoError(t, err)

	results, err := store.Recall(ctx, "a short memory", 5, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.NotNil(t, results[0].SimilarityScore)
}

func TestRemoteGetStatsShapeMatchesLocal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-s1", "stat memory", []string{"tag1"}))
	require.NoError(t, err)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.TotalMemories, int64(1))
	require.Equal(t, "stub-test-embedder", stats.EmbeddingModel)
	require.Equal(t, 4, stats.EmbeddingDim)
}

func TestRemotePurgeDeletedRemovesOldTombstonesOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, newMemory("hash-old", "old tombstone", nil))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "hash-old"))

	old := types.NowEpoch(time.Now().UTC().AddDate(0, 0, -40))
	_, err = store.db.ExecContext(ctx, `UPDATE memories SET deleted_at = $1 WHERE content_hash = $2`, old, "hash-old")
	require.NoError(t, err)

	purged, err := store.PurgeDeleted(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	_, err = store.GetByHash(ctx, "hash-old")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
