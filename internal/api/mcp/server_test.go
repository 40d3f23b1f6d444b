package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/api/mcp"
	"github.com/memvault/memvault/internal/consolidation"
	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/internal/service"
	"github.com/memvault/memvault/internal/storage/sqlite"
)

// stubEmbedder mirrors internal/service's test embedder so MCP tests exercise
// real embedding plumbing without a live provider.
type stubEmbedder struct{ dim int }

func (e *stubEmbedder) Dimension() int     { return e.dim }
func (e *stubEmbedder) MaxInputChars() int { return 0 }
func (e *stubEmbedder) Model() string      { return "stub-test-embedder" }

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
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

func newTestServer(t *testing.T) *mcp.Server {
	t.Helper()
	embedder := &stubEmbedder{dim: 4}
	store, err := sqlite.NewMemoryStore(":memory:", embedder)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	svc, err := service.New(store, embedder, service.Config{})
	require.NoError(t, err)

	cons, err := consolidation.New(store, quality.NewImplicit(), consolidation.DefaultConfig())
	require.NoError(t, err)

	return mcp.NewServer(svc, mcp.WithConsolidator(cons), mcp.WithQualityProvider(quality.NewImplicit()))
}

func TestStoreAndSearchRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	storeResult, err := srv.Store(ctx, mcp.StoreArgs{Content: "the quick brown fox", Tags: "animals,speed"})
	require.NoError(t, err)
	require.True(t, storeResult.Success)
	require.NotEmpty(t, storeResult.ContentHash)
	require.ElementsMatch(t, []string{"animals", "speed"}, storeResult.Memory.Tags)

	searchResult, err := srv.Search(ctx, mcp.SearchArgs{Query: "quick brown fox", Limit: 5})
	require.NoError(t, err)
	require.True(t, searchResult.Success)
	require.NotEmpty(t, searchResult.Results)
	require.Equal(t, storeResult.ContentHash, searchResult.Results[0].Memory.ContentHash)
}

func TestStoreDuplicateReportsFailureNotError(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	first, err := srv.Store(ctx, mcp.StoreArgs{Content: "duplicate content"})
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := srv.Store(ctx, mcp.StoreArgs{Content: "duplicate content"})
	require.NoError(t, err)
	require.False(t, second.Success)
	require.NotEmpty(t, second.Error)
}

func TestListPaginatesAndFiltersByTag(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.Store(ctx, mcp.StoreArgs{Content: "tagged memory one", Tags: "keep"})
	require.NoError(t, err)
	_, err = srv.Store(ctx, mcp.StoreArgs{Content: "untagged memory two"})
	require.NoError(t, err)

	listResult, err := srv.List(ctx, mcp.ListArgs{Tag: "keep", PageSize: 10})
	require.NoError(t, err)
	require.True(t, listResult.Success)
	require.Len(t, listResult.Results, 1)
	require.Equal(t, "tagged memory one", listResult.Results[0].Content)
}

func TestDeleteByContentHash(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	storeResult, err := srv.Store(ctx, mcp.StoreArgs{Content: "to be deleted"})
	require.NoError(t, err)

	deleteResult, err := srv.Delete(ctx, mcp.DeleteArgs{ContentHash: storeResult.ContentHash})
	require.NoError(t, err)
	require.True(t, deleteResult.Success)
	require.Equal(t, 1, deleteResult.DeletedCount)

	searchResult, err := srv.Search(ctx, mcp.SearchArgs{Query: "to be deleted", Mode: "exact"})
	require.NoError(t, err)
	require.Empty(t, searchResult.Results)
}

func TestDeleteRequiresASelector(t *testing.T) {
	srv := newTestServer(t)
	result, err := srv.Delete(context.Background(), mcp.DeleteArgs{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)
}

func TestUpdateMetadataPreservesCreatedAt(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	storeResult, err := srv.Store(ctx, mcp.StoreArgs{Content: "needs an update"})
	require.NoError(t, err)
	createdAt := storeResult.Memory.CreatedAt

	updateResult, err := srv.Update(ctx, mcp.UpdateArgs{
		ContentHash: storeResult.ContentHash,
		Updates:     map[string]interface{}{"tags": []interface{}{"updated"}},
	})
	require.NoError(t, err)
	require.True(t, updateResult.Success)

	listResult, err := srv.List(ctx, mcp.ListArgs{Tag: "updated"})
	require.NoError(t, err)
	require.Len(t, listResult.Results, 1)
	require.Equal(t, createdAt, listResult.Results[0].CreatedAt)
}

func TestQualityRateThenGet(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	storeResult, err := srv.Store(ctx, mcp.StoreArgs{Content: "rate me please"})
	require.NoError(t, err)

	rated, err := srv.Quality(ctx, mcp.QualityArgs{Action: "rate", ContentHash: storeResult.ContentHash})
	require.NoError(t, err)
	require.True(t, rated.Success)
	require.NotNil(t, rated.Memory)

	got, err := srv.Quality(ctx, mcp.QualityArgs{Action: "get", ContentHash: storeResult.ContentHash})
	require.NoError(t, err)
	require.True(t, got.Success)
	require.Equal(t, rated.Memory.Metadata["quality_score"], got.Memory.Metadata["quality_score"])
}

func TestQualityAnalyzeReportsDistribution(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.Store(ctx, mcp.StoreArgs{Content: "memory one for analysis"})
	require.NoError(t, err)
	_, err = srv.Store(ctx, mcp.StoreArgs{Content: "memory two for analysis"})
	require.NoError(t, err)

	result, err := srv.Quality(ctx, mcp.QualityArgs{Action: "analyze"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.AverageScore)
	total := 0
	for _, count := range result.Distribution {
		total += count
	}
	require.Equal(t, 2, total)
}

func TestGraphConnectedRequiresAHash(t *testing.T) {
	srv := newTestServer(t)
	result, err := srv.Graph(context.Background(), mcp.GraphArgs{Action: "connected"})
	require.NoError(t, err)
	require.False(t, result.Success)
}

func TestHealthAndStatsReportSuccess(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.Store(ctx, mcp.StoreArgs{Content: "one memory for stats"})
	require.NoError(t, err)

	health, err := srv.Health(ctx)
	require.NoError(t, err)
	require.True(t, health.Success)
	require.True(t, health.Connected)

	stats, err := srv.Stats(ctx)
	require.NoError(t, err)
	require.True(t, stats.Success)
	require.Equal(t, int64(1), stats.TotalMemories)
}

func TestConsolidateRunAndStatus(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.Store(ctx, mcp.StoreArgs{Content: "consolidate candidate"})
	require.NoError(t, err)

	runResult, err := srv.Consolidate(ctx, mcp.ConsolidateArgs{Action: "run", Horizon: "daily"})
	require.NoError(t, err)
	require.True(t, runResult.Success)
	require.NotNil(t, runResult.Run)

	statusResult, err := srv.Consolidate(ctx, mcp.ConsolidateArgs{Action: "status"})
	require.NoError(t, err)
	require.True(t, statusResult.Success)
	require.NotNil(t, statusResult.Status)
}

func TestConsolidateWithoutEngineConfiguredFails(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	store, err := sqlite.NewMemoryStore(":memory:", embedder)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	svc, err := service.New(store, embedder, service.Config{})
	require.NoError(t, err)
	srv := mcp.NewServer(svc)

	result, err := srv.Consolidate(context.Background(), mcp.ConsolidateArgs{Action: "run"})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)
}

func TestHandleRequestInitialize(t *testing.T) {
	srv := newTestServer(t)
	req := `{"jsonrpc":"2.0","method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test","version":"1.0"}},"id":1}`

	respJSON, err := srv.HandleRequest(context.Background(), []byte(req))
	require.NoError(t, err)

	var resp mcp.JSONRPCResponse
	require.NoError(t, json.Unmarshal(respJSON, &resp))
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestHandleRequestToolsList(t *testing.T) {
	srv := newTestServer(t)
	req := `{"jsonrpc":"2.0","method":"tools/list","id":2}`

	respJSON, err := srv.HandleRequest(context.Background(), []byte(req))
	require.NoError(t, err)

	var resp struct {
		Result mcp.MCPToolsListResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respJSON, &resp))
	require.Len(t, resp.Result.Tools, 11)
}

func TestHandleRequestToolsCallMemoryStore(t *testing.T) {
	srv := newTestServer(t)
	req := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"memory_store","arguments":{"content":"via tools/call"}},"id":3}`

	respJSON, err := srv.HandleRequest(context.Background(), []byte(req))
	require.NoError(t, err)

	var resp struct {
		Result mcp.MCPToolCallResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respJSON, &resp))
	require.False(t, resp.Result.IsError)
	require.Len(t, resp.Result.Content, 1)

	var storeResult mcp.StoreResult
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &storeResult))
	require.True(t, storeResult.Success)
}

func TestHandleRequestLegacyToolNameForwards(t *testing.T) {
	srv := newTestServer(t)
	req := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"store_memory","arguments":{"content":"via legacy name"}},"id":4}`

	respJSON, err := srv.HandleRequest(context.Background(), []byte(req))
	require.NoError(t, err)

	var resp struct {
		Result mcp.MCPToolCallResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respJSON, &resp))
	require.False(t, resp.Result.IsError)

	var storeResult mcp.StoreResult
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &storeResult))
	require.True(t, storeResult.Success)
}

func TestHandleRequestUnknownMethod(t *testing.T) {
	srv := newTestServer(t)
	req := `{"jsonrpc":"2.0","method":"does_not_exist","id":5}`

	respJSON, err := srv.HandleRequest(context.Background(), []byte(req))
	require.NoError(t, err)

	var resp mcp.JSONRPCResponse
	require.NoError(t, json.Unmarshal(respJSON, &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, mcp.ErrCodeMethodNotFound, resp.Error.Code)
}
