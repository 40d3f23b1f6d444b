package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/internal/storage/sqlite"
)

// stubEmbedder mirrors the sqlite package's test embedder so Service tests
// exercise real embedding plumbing without a live provider.
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

func newTestService(t *testing.T, cfg Config) (*Service, storage.Store) {
	t.Helper()
	embedder := &stubEmbedder{dim: 4}
	store, err := sqlite.NewMemoryStore(":memory:", embedder)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	svc, err := New(store, embedder, cfg)
	require.NoError(t, err)
	return svc, store
}

func TestStoreSingleRecordAssignsContentHashAndEmbedding(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	out, err := svc.Store(ctx, StoreRequest{Content: "hello world", Tags: "a, b, a"})
	require.Nil(t, err)
	require.True(t, out.Success)
	require.NotEmpty(t, out.ContentHash)
	require.Equal(t, []string{"a", "b"}, out.Memory.Tags)
	require.NotNil(t, out.Memory.Embedding)
}

func TestStoreDuplicateContentReturnsFailureNotError(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	first, err := svc.Store(ctx, StoreRequest{Content: "same content"})
	require.Nil(t, err)
	require.True(t, first.Success)

	second, err := svc.Store(ctx, StoreRequest{Content: "same content"})
	require.Nil(t, err)
	require.False(t, second.Success)
	require.Equal(t, "duplicate", second.Reason)
	require.Equal(t, first.ContentHash, second.ContentHash)
}

func TestStoreChunksContentExceedingMaxLen(t *testing.T) {
	svc, _ := newTestService(t, Config{BackendMaxContentLength: 20, ChunkOverlap: 5})
	ctx := context.Background()

	content := strings.Repeat("word ", 20) // 100 chars, well over 20
	out, err := svc.Store(ctx, StoreRequest{Content: content})
	require.Nil(t, err)
	require.True(t, out.Success)
	require.Greater(t, out.TotalChunks, 1)
	require.Len(t, out.ChunkHashes, out.TotalChunks)
	for _, mem := range out.Memories {
		require.LessOrEqual(t, len([]rune(mem.Content)), 20)
		require.Equal(t, true, mem.Metadata["is_chunk"])
	}
}

func TestStoreRejectsEmptyContent(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	_, err := svc.Store(context.Background(), StoreRequest{Content: ""})
	require.NotNil(t, err)
}

func TestGetByHashUsesDirectLookup(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	out, serr := svc.Store(ctx, StoreRequest{Content: "lookup me"})
	require.Nil(t, serr)

	mem, err := svc.GetByHash(ctx, out.ContentHash)
	require.Nil(t, err)
	require.Equal(t, "lookup me", mem.Content)
}

func TestUpdateMemoryMetadataPreservesCreatedAt(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	out, serr := svc.Store(ctx, StoreRequest{Content: "immutable creation time"})
	require.Nil(t, serr)
	originalCreatedAt := out.Memory.CreatedAt

	err := svc.UpdateMemoryMetadata(ctx, UpdateMetadataRequest{
		ContentHash:        out.ContentHash,
		Updates:            map[string]interface{}{"tags": []string{"x"}},
		PreserveTimestamps: true,
	})
	require.Nil(t, err)

	mem, gerr := svc.GetByHash(ctx, out.ContentHash)
	require.Nil(t, gerr)
	require.Equal(t, originalCreatedAt, mem.CreatedAt)
	require.Equal(t, []string{"x"}, mem.Tags)
	require.Greater(t, mem.UpdatedAt, originalCreatedAt-1) // advanced, not reset backwards
}

func TestUpdateMemoryMetadataRejectsUnknownKey(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	out, serr := svc.Store(ctx, StoreRequest{Content: "guarded update"})
	require.Nil(t, serr)

	err := svc.UpdateMemoryMetadata(ctx, UpdateMetadataRequest{
		ContentHash:        out.ContentHash,
		Updates:            map[string]interface{}{"content": "rewrite everything"},
		PreserveTimestamps: true,
	})
	require.NotNil(t, err)
}

func TestDeleteUntaggedMemoriesRequiresExactConfirmCount(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	_, err := svc.Store(ctx, StoreRequest{Content: "untagged one"})
	require.Nil(t, err)
	_, err = svc.Store(ctx, StoreRequest{Content: "untagged two"})
	require.Nil(t, err)
	_, err = svc.Store(ctx, StoreRequest{Content: "tagged", Tags: []string{"keep"}})
	require.Nil(t, err)

	count, cerr := svc.CountUntaggedMemories(ctx)
	require.Nil(t, cerr)
	require.Equal(t, 2, count)

	_, derr := svc.DeleteUntaggedMemories(ctx, count-1)
	require.NotNil(t, derr)

	deleted, derr := svc.DeleteUntaggedMemories(ctx, count)
	require.Nil(t, derr)
	require.Equal(t, 2, deleted)
}

func TestRetrieveReturnsResultsEnvelope(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	_, err := svc.Store(ctx, StoreRequest{Content: "the quick brown fox"})
	require.Nil(t, err)

	out, rerr := svc.Retrieve(ctx, "fox", 5)
	require.Nil(t, rerr)
	require.NotEmpty(t, out.Results)
}

func TestHealthCheckReportsBackendAndEmbeddingInfo(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	report, err := svc.HealthCheck(ctx)
	require.Nil(t, err)
	require.True(t, report.Connected)
	require.Equal(t, "sqlite", report.BackendKind)
	require.Equal(t, "stub-test-embedder", report.EmbeddingModel)
	require.Nil(t, report.SyncStatus)
}
