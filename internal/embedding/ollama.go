package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/memvault/memvault/internal/storage"
)

// OllamaConfig configures an OllamaProvider. Mirrors the teacher's
// llm.OllamaConfig shape.
type OllamaConfig struct {
	BaseURL string        // default http://localhost:11434
	Model   string        // default nomic-embed-text
	Timeout time.Duration // default 30s

	// Dim is the vector length the configured model is known to produce.
	// Ollama's API does not report this, so the caller must declare it.
	Dim int

	// RatePerSecond bounds outbound request rate (spec §C: rate limiting on
	// the embedding-provider client). 0 disables limiting.
	RatePerSecond float64
}

// OllamaProvider implements storage.EmbeddingProvider against a local Ollama
// server's /api/embed endpoint, grounded on the teacher's
// internal/llm/ollama.go OllamaClient.Embed (same request/response shapes,
// generalized here to a batch-returning Embed and wrapped with a client-side
// rate limiter the teacher's single-text client did not need).
type OllamaProvider struct {
	baseURL string
	model   string
	dim     int
	timeout time.Duration

	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Dim == 0 {
		cfg.Dim = 768
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &OllamaProvider{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		dim:     cfg.Dim,
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newCircuitBreaker("ollama-embedding"),
		limiter: limiter,
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates one vector per text, preserving order. Ollama's /api/embed
// endpoint takes one input per call in the shape the teacher used, so batch
// requests are issued sequentially rather than as a single multi-input call.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: rate limiter: %w", ErrEmbedding, err)
			}
		}
		vec, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (p *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := guarded(ctx, p.breaker, func() error {
		v, err := p.doEmbed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vec) != p.dim {
		return nil, fmt.Errorf("%w: model %q returned %d dims, want %d",
			ErrDimensionMismatch, p.model, len(vec), p.dim)
	}
	return vec, nil
}

func (p *OllamaProvider) doEmbed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Embeddings) == 0 || len(decoded.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding vector")
	}
	return decoded.Embeddings[0], nil
}

func (p *OllamaProvider) Dimension() int     { return p.dim }
func (p *OllamaProvider) MaxInputChars() int { return 0 }
func (p *OllamaProvider) Model() string      { return p.model }

var _ storage.EmbeddingProvider = (*OllamaProvider)(nil)
