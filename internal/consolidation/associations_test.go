package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/types"
)

func TestInferRelationshipTypeDetectsCues(t *testing.T) {
	fix := &types.Memory{Content: "the outage was fixed by rolling back the deploy"}
	cause := &types.Memory{Content: "latency spiked because the cache was cold"}
	contradict := &types.Memory{Content: "however, it turned out to be wrong"}
	support := &types.Memory{Content: "this confirms the earlier finding"}
	plain := &types.Memory{Content: "a completely unrelated note"}

	require.Equal(t, types.RelFixes, inferRelationshipType(fix, plain))
	require.Equal(t, types.RelCauses, inferRelationshipType(cause, plain))
	require.Equal(t, types.RelContradicts, inferRelationshipType(contradict, plain))
	require.Equal(t, types.RelSupports, inferRelationshipType(support, plain))
	require.Equal(t, types.RelRelated, inferRelationshipType(plain, plain))
}

func TestInferRelationshipTypeFollowsForSameTypeSharedTagCloseInTime(t *testing.T) {
	base := types.NowEpoch(time.Now().UTC())
	a := &types.Memory{Content: "step one of the migration", MemoryType: "standard", Tags: []string{"migration"}, CreatedAt: base}
	b := &types.Memory{Content: "step two of the migration", MemoryType: "standard", Tags: []string{"migration"}, CreatedAt: base + 60}

	require.Equal(t, types.RelFollows, inferRelationshipType(a, b))
}

func TestDiscoverAssociationsOnlyKeepsCreativeBand(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	vecs, err := embedder.Embed(ctx, []string{"alpha content", "beta content"})
	require.NoError(t, err)

	a := &types.Memory{ContentHash: "a", Content: "alpha content", MemoryType: "standard", Embedding: vecs[0], CreatedAt: types.NowEpoch(time.Now().UTC())}
	b := &types.Memory{ContentHash: "b", Content: "beta content", MemoryType: "standard", Embedding: vecs[1], CreatedAt: types.NowEpoch(time.Now().UTC()) - 10}
	a.SyncISO()
	b.SyncISO()
	_, err = store.Store(ctx, a)
	require.NoError(t, err)
	_, err = store.Store(ctx, b)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.CreativeBandMin = 0
	cfg.CreativeBandMax = 1
	assocs, err := discoverAssociations(ctx, store, cfg, []*types.Memory{a, b})
	require.NoError(t, err)
	require.Len(t, assocs, 1)
	require.Equal(t, "a", assocs[0].SourceHash)
	require.Equal(t, "b", assocs[0].TargetHash)
}

func TestDiscoverAssociationsSkipsOutOfBandSimilarity(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	vecs, err := embedder.Embed(ctx, []string{"alpha content", "alpha content"})
	require.NoError(t, err)

	a := &types.Memory{ContentHash: "a2", Content: "alpha content", Embedding: vecs[0], CreatedAt: types.NowEpoch(time.Now().UTC())}
	b := &types.Memory{ContentHash: "b2", Content: "alpha content", Embedding: vecs[1], CreatedAt: types.NowEpoch(time.Now().UTC()) - 10}
	a.SyncISO()
	b.SyncISO()
	_, err = store.Store(ctx, a)
	require.NoError(t, err)
	_, err = store.Store(ctx, b)
	require.NoError(t, err)

	cfg := DefaultConfig() // default band [0.3, 0.7]; identical vectors => similarity 1.0, out of band
	assocs, err := discoverAssociations(ctx, store, cfg, []*types.Memory{a, b})
	require.NoError(t, err)
	require.Empty(t, assocs)
}
