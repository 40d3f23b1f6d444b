// Package service implements the single business-logic layer shared by the
// HTTP and JSON-RPC surfaces (spec §4.5): tag normalization, chunking,
// store/retrieve/update/delete, and health reporting, all returning
// uniformly shaped envelopes regardless of which storage.Store backend
// answers. Grounded on the teacher's internal/services layer (thin
// orchestration structs holding a dependency and exposing typed methods,
// wrapping every storage error with fmt.Errorf("%w: ...", ...)).
package service

import (
	"fmt"
	"time"

	"github.com/memvault/memvault/internal/storage"
)

// Config bounds chunking and hostname-tagging behavior (spec §4.5.2/§4.5.3,
// §6.4 MCP_ENABLE_AUTO_SPLIT/MCP_CONTENT_SPLIT_OVERLAP/
// MCP_MEMORY_INCLUDE_HOSTNAME).
type Config struct {
	// ChunkOverlap is the character overlap between consecutive chunks.
	// Default 50.
	ChunkOverlap int

	// BackendMaxContentLength is the configured backend's declared
	// max_content_length (e.g. remote.Limits.MaxContentLength), or 0 if the
	// active backend does not enforce one. The wiring layer sets this from
	// whichever concrete backend it constructed, since storage.Store itself
	// does not expose the limit generically.
	BackendMaxContentLength int

	// IncludeHostname, when true, stamps metadata.hostname from the
	// caller-supplied client_hostname (falling back to the server's own
	// hostname) and auto-tags the memory with the same hostname.
	IncludeHostname bool

	// ServerHostname is used as the metadata.hostname fallback when
	// IncludeHostname is true and the caller did not supply one.
	ServerHostname string
}

func (c *Config) normalize() {
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = 50
	}
}

// Service is the memory service (C5): a thin orchestration layer over a
// storage.Store and an embedding provider. It never talks to a concrete
// backend directly, so the same Service works whether store is a bare
// sqlite/remote backend or a *hybrid.Engine.
type Service struct {
	store     storage.Store
	embedder  storage.EmbeddingProvider
	cfg       Config
	startedAt time.Time
}

// New builds a Service. embedder may be nil only if the store itself embeds
// internally (neither C2 nor C3 do; this is for tests using a stub store).
func New(store storage.Store, embedder storage.EmbeddingProvider, cfg Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("service: storage backend is required")
	}
	cfg.normalize()
	return &Service{store: store, embedder: embedder, cfg: cfg, startedAt: time.Now()}, nil
}

// maxContentLen computes spec §4.5.2 step 3: the smaller of the backend's
// declared max_content_length and the embedding provider's max_input_chars,
// treating 0/absent as unbounded (returns 0 if neither bounds it).
func (s *Service) maxContentLen() int {
	limit := s.cfg.BackendMaxContentLength
	if s.embedder != nil {
		if m := s.embedder.MaxInputChars(); m > 0 && (limit == 0 || m < limit) {
			limit = m
		}
	}
	return limit
}
