package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStubOpenAIServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		vec := make([]float64, dim)
		for i := range vec {
			vec[i] = float64(i) / 10
		}
		_ = json.NewEncoder(w).Encode(openAIEmbedResponse{
			Data: []struct {
				Embedding []float64 `json:"embedding"`
			}{{Embedding: vec}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProviderEmbedSendsAuthAndReturnsVectors(t *testing.T) {
	srv := newStubOpenAIServer(t, 6)
	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Dim: 6})

	vecs, err := p.Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Len(t, vecs[0], 6)
}

func TestFactorySelectsProviderByName(t *testing.T) {
	srv := newStubOpenAIServer(t, 4)

	p, err := New(Config{Provider: "openai", BaseURL: srv.URL, APIKey: "test-key", Dim: 4})
	require.NoError(t, err)
	require.Equal(t, 4, p.Dimension())

	_, err = New(Config{Provider: "bogus"})
	require.Error(t, err)
}
