package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStubOllamaServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = float32((len(req.Input) + i) % 5)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{vec}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaProviderEmbedPreservesOrderAndDimension(t *testing.T) {
	srv := newStubOllamaServer(t, 8)
	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Dim: 8})

	vecs, err := p.Embed(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		require.Len(t, v, 8)
	}
	require.Equal(t, 8, p.Dimension())
}

func TestOllamaProviderDimensionMismatchFails(t *testing.T) {
	srv := newStubOllamaServer(t, 4)
	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Dim: 99})

	_, err := p.Embed(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestOllamaProviderServerErrorIsEmbeddingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Dim: 4})
	_, err := p.Embed(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrEmbedding)
}
