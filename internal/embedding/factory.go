package embedding

import (
	"fmt"

	"github.com/memvault/memvault/internal/storage"
)

// Config selects and configures a provider, generalizing the teacher's
// connections.LLMConfig (provider/model/api-key/base-url) to the embedding-
// only surface spec §6.4 exposes via MCP_EMBEDDING_MODEL /
// MCP_EXTERNAL_EMBEDDING_URL / _MODEL / _API_KEY.
type Config struct {
	// Provider selects the backend: "ollama" (default), "openai", or
	// "external" (any OpenAI-compatible or Ollama-compatible HTTP endpoint
	// reachable at a caller-supplied URL).
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Dim      int

	RatePerSecond float64
	MaxChars      int
}

// New builds the configured storage.EmbeddingProvider, mirroring the
// teacher's llm.NewEmbeddingGenerator provider-string switch.
func New(cfg Config) (storage.EmbeddingProvider, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaProvider(OllamaConfig{
			BaseURL:       cfg.BaseURL,
			Model:         cfg.Model,
			Dim:           cfg.Dim,
			RatePerSecond: cfg.RatePerSecond,
		}), nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:        cfg.APIKey,
			Model:         cfg.Model,
			BaseURL:       cfg.BaseURL,
			Dim:           cfg.Dim,
			RatePerSecond: cfg.RatePerSecond,
			MaxChars:      cfg.MaxChars,
		}), nil
	case "external":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("embedding: external provider requires MCP_EXTERNAL_EMBEDDING_URL")
		}
		// External endpoints are assumed Ollama-compatible (model+input,
		// embeddings[0] response) since that is the common shape for
		// self-hosted embedding servers; OpenAI-compatible endpoints should
		// use provider "openai" with a custom BaseURL instead.
		return NewOllamaProvider(OllamaConfig{
			BaseURL:       cfg.BaseURL,
			Model:         cfg.Model,
			Dim:           cfg.Dim,
			RatePerSecond: cfg.RatePerSecond,
		}), nil
	default:
		return nil, fmt.Errorf("embedding: unsupported provider %q", cfg.Provider)
	}
}
