package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/service"
	"github.com/memvault/memvault/internal/storage/sqlite"
)

// stubEmbedder is shared across the HTTP surface's tests; a deterministic
// in-memory provider rather than a live model (spec §1: "embedding function
// is an injected capability").
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

func newTestServer(t *testing.T) *Server {
	t.Helper()
	embedder := &stubEmbedder{dim: 4}
	store, err := sqlite.NewMemoryStore(":memory:", embedder)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	svc, err := service.New(store, embedder, service.Config{})
	require.NoError(t, err)
	return New(svc, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStoreThenGetByHashRoundTrips(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/memories", map[string]interface{}{
		"content": "the mitochondria is the powerhouse of the cell",
		"tags":    "biology,quote",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var storeResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &storeResp))
	require.True(t, storeResp["success"].(bool))
	hash := storeResp["content_hash"].(string)
	require.NotEmpty(t, hash)

	rec = doJSON(t, h, http.MethodGet, "/api/memories/"+hash, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var getResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &getResp))
	mem := getResp["memory"].(map[string]interface{})
	require.Equal(t, hash, mem["content_hash"])
}

func TestGetByHashNotFoundReturns404(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/memories/"+"0000000000000000000000000000000000000000000000000000000000000000", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteThenListExcludesTombstone(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/memories", map[string]interface{}{"content": "ephemeral note"})
	var storeResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &storeResp))
	hash := storeResp["content_hash"].(string)

	rec = doJSON(t, h, http.MethodDelete, "/api/memories/"+hash, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/memories/"+hash, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/memories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	results := listResp["results"].([]interface{})
	require.Empty(t, results)
}

func TestSearchByTagExactMatchExcludesSupersetTag(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	doJSON(t, h, http.MethodPost, "/api/memories", map[string]interface{}{"content": "a", "tags": []string{"test"}})
	doJSON(t, h, http.MethodPost, "/api/memories", map[string]interface{}{"content": "b", "tags": []string{"testing"}})

	rec := doJSON(t, h, http.MethodPost, "/api/search/by-tag", map[string]interface{}{
		"tags":      []string{"test"},
		"operation": "any",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	results := resp["results"].([]interface{})
	require.Len(t, results, 1)
}

func TestSyncEndpointsReturn404WithoutHybridBackend(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/sync/status", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
