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

// OpenAIConfig configures an OpenAIProvider. Mirrors the teacher's
// llm.OpenAIEmbeddingConfig shape.
type OpenAIConfig struct {
	APIKey  string
	Model   string        // default text-embedding-3-small
	BaseURL string        // default https://api.openai.com
	Timeout time.Duration // default 30s
	Dim     int           // default 1536 (text-embedding-3-small's native size)

	RatePerSecond float64
	MaxChars      int // declared hard input limit, spec §4.1 max_input_chars
}

// OpenAIProvider implements storage.EmbeddingProvider against OpenAI's
// /v1/embeddings endpoint, grounded on the teacher's
// internal/llm/openai.go OpenAIEmbeddingClient.Embed.
type OpenAIProvider struct {
	apiKey   string
	baseURL  string
	model    string
	dim      int
	timeout  time.Duration
	maxChars int

	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Dim == 0 {
		cfg.Dim = 1536
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &OpenAIProvider{
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		model:    cfg.Model,
		dim:      cfg.Dim,
		timeout:  cfg.Timeout,
		maxChars: cfg.MaxChars,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  newCircuitBreaker("openai-embedding"),
		limiter:  limiter,
	}
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
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

func (p *OpenAIProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
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

func (p *OpenAIProvider) doEmbed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(openAIEmbedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding")
	}

	raw := decoded.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (p *OpenAIProvider) Dimension() int     { return p.dim }
func (p *OpenAIProvider) MaxInputChars() int { return p.maxChars }
func (p *OpenAIProvider) Model() string      { return p.model }

var _ storage.EmbeddingProvider = (*OpenAIProvider)(nil)
