package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/internal/storage/sqlite"
	"github.com/memvault/memvault/pkg/types"
)

// stubEmbedder mirrors the sqlite package's own test embedder (see
// internal/service/service_test.go) so consolidation tests exercise the
// real vector-backed store instead of a hand-rolled fake.
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

func newTestStore(t *testing.T) (storage.Store, *stubEmbedder) {
	t.Helper()
	embedder := &stubEmbedder{dim: 4}
	store, err := sqlite.NewMemoryStore(":memory:", embedder)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store, embedder
}

func mustStore(t *testing.T, store storage.Store, embedder *stubEmbedder, content, memType string, tags []string, createdAgo time.Duration) *types.Memory {
	t.Helper()
	now := types.NowEpoch(time.Now().UTC()) - createdAgo.Seconds()
	vecs, err := embedder.Embed(context.Background(), []string{content})
	require.NoError(t, err)
	mem := &types.Memory{
		ContentHash: content + memType,
		Content:     content,
		MemoryType:  memType,
		Tags:        tags,
		Metadata:    map[string]interface{}{},
		Embedding:   vecs[0],
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	mem.SyncISO()
	_, err = store.Store(context.Background(), mem)
	require.NoError(t, err)
	return mem
}

func TestRunScoresRelevanceAndWritesBatch(t *testing.T) {
	store, embedder := newTestStore(t)
	mustStore(t, store, embedder, "the quarterly report is due Friday", "standard", []string{"work"}, 100*24*time.Hour)
	mustStore(t, store, embedder, "critical deploy runbook for the payments service", "critical", []string{"ops"}, 100*24*time.Hour)

	c, err := New(store, quality.NewImplicit(), DefaultConfig())
	require.NoError(t, err)

	result, err := c.Run(context.Background(), HorizonDaily)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	require.Equal(t, 2, result.MemoriesScored)

	all, err := store.GetAllMemories(context.Background(), storage.ListOptions{})
	require.NoError(t, err)
	for _, mem := range all {
		relevance, ok := mem.Metadata[keyRelevance].(float64)
		require.True(t, ok, "relevance should be written to metadata")
		require.GreaterOrEqual(t, relevance, 0.0)
		require.LessOrEqual(t, relevance, 1.0)
	}
}

func TestRunArchivesLowRelevanceIdleMemories(t *testing.T) {
	store, embedder := newTestStore(t)
	mem := mustStore(t, store, embedder, "a throwaway note nobody cares about anymore", "temporary", nil, 365*24*time.Hour)
	_ = mem

	cfg := DefaultConfig()
	cfg.ForgettingMinIdleDays = 1
	cfg.ForgettingRelevanceThreshold = 0.99

	c, err := New(store, quality.NewImplicit(), cfg)
	require.NoError(t, err)

	result, err := c.Run(context.Background(), HorizonDaily)
	require.NoError(t, err)
	require.Equal(t, 1, result.MemoriesArchived)

	got, err := store.GetByHash(context.Background(), mem.ContentHash)
	require.NoError(t, err)
	require.True(t, IsArchived(got))
}

func TestPauseStopsRun(t *testing.T) {
	store, embedder := newTestStore(t)
	mustStore(t, store, embedder, "paused run should not touch this", "standard", nil, 0)

	c, err := New(store, quality.NewImplicit(), DefaultConfig())
	require.NoError(t, err)
	c.Pause()

	_, err = c.Run(context.Background(), HorizonDaily)
	require.Error(t, err)

	c.Resume()
	_, err = c.Run(context.Background(), HorizonDaily)
	require.NoError(t, err)
}

func TestRecommendationsSurfacesArchivalEligibleCount(t *testing.T) {
	store, embedder := newTestStore(t)
	mustStore(t, store, embedder, "old idle note", "temporary", nil, 365*24*time.Hour)

	cfg := DefaultConfig()
	cfg.ForgettingMinIdleDays = 1
	cfg.ForgettingRelevanceThreshold = 0.99

	c, err := New(store, quality.NewImplicit(), cfg)
	require.NoError(t, err)

	recs, err := c.Recommendations(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, recs)
}
