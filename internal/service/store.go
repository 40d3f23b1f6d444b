package service

import (
	"context"
	"fmt"
	"time"

	"github.com/memvault/memvault/internal/errs"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// StoreRequest is the caller-facing shape for memory_store (spec §4.5.2):
// Tags accepts any of the shapes normalizeTags understands.
type StoreRequest struct {
	Content        string
	Tags           interface{}
	MemoryType     string
	Metadata       map[string]interface{}
	ClientHostname string
}

// StoreOutcome is the uniform result of Store: exactly one of Memory
// (single-record path) or Memories (chunked path) is populated on success.
type StoreOutcome struct {
	Success      bool
	Reason       string // "duplicate" when Success is false for that cause
	ContentHash  string
	Memory       *types.Memory
	Memories     []*types.Memory
	TotalChunks  int
	ChunkHashes  []string
	FailedChunks int
}

// Store implements spec §4.5.2: validate, normalize tags, decide
// single-vs-chunked by max_len, detect duplicates by content_hash, embed,
// and persist. Content that needs chunking is split by chunkContent and each
// piece stored as its own memory sharing a chunk-family metadata.
func (s *Service) Store(ctx context.Context, req StoreRequest) (*StoreOutcome, *errs.Error) {
	if req.Content == "" {
		return nil, errs.Validation("content is required")
	}

	tags, err := normalizeTags(req.Tags, req.Metadata)
	if err != nil {
		return nil, err
	}

	metadata := cloneMetadata(req.Metadata)
	s.stampHostname(metadata, req.ClientHostname)
	if host, ok := metadata["hostname"].(string); ok && s.cfg.IncludeHostname && host != "" {
		hasTag := false
		for _, t := range tags {
			hasTag = hasTag || t == host
		}
		if !hasTag {
			tags = append(tags, host)
		}
	}

	maxLen := s.maxContentLen()
	if maxLen <= 0 || len([]rune(req.Content)) <= maxLen {
		return s.storeSingle(ctx, req.Content, tags, req.MemoryType, metadata)
	}
	return s.storeChunked(ctx, req.Content, tags, req.MemoryType, metadata, maxLen)
}

func (s *Service) storeSingle(ctx context.Context, content string, tags []string, memoryType string, metadata map[string]interface{}) (*StoreOutcome, *errs.Error) {
	hash := computeContentHash(content, memoryType, tags, metadata)

	mem := &types.Memory{
		ContentHash: hash,
		Content:     content,
		Tags:        tags,
		MemoryType:  memoryType,
		Metadata:    metadata,
	}
	mem.Touch(time.Now())

	if err := s.embed(ctx, mem); err != nil {
		return nil, err
	}

	res, err := s.store.Store(ctx, mem)
	if err != nil {
		if res != nil && res.Reason == "duplicate" {
			return &StoreOutcome{Success: false, Reason: "duplicate", ContentHash: hash}, nil
		}
		return nil, errs.Wrap(err)
	}
	return &StoreOutcome{Success: true, ContentHash: hash, Memory: mem}, nil
}

func (s *Service) storeChunked(ctx context.Context, content string, tags []string, memoryType string, metadata map[string]interface{}, maxLen int) (*StoreOutcome, *errs.Error) {
	pieces := chunkContent(content, maxLen, s.cfg.ChunkOverlap)
	total := len(pieces)

	out := &StoreOutcome{Success: true, TotalChunks: total}
	for i, piece := range pieces {
		index := i + 1 // chunk_index is 1-based (spec §4.5.2 step 5)

		chunkMeta := cloneMetadata(metadata)
		chunkMeta["is_chunk"] = true
		chunkMeta["chunk_index"] = index
		chunkMeta["total_chunks"] = total
		chunkMeta["original_length"] = len([]rune(content))

		chunkTags := append(append([]string(nil), tags...), fmt.Sprintf("chunk:%d/%d", index, total))

		single, serr := s.storeSingle(ctx, piece, chunkTags, memoryType, chunkMeta)
		if serr != nil {
			out.FailedChunks++
			continue
		}
		if !single.Success {
			// Duplicate chunk content: not a failure, just not newly created.
			out.ChunkHashes = append(out.ChunkHashes, single.ContentHash)
			continue
		}
		out.Memories = append(out.Memories, single.Memory)
		out.ChunkHashes = append(out.ChunkHashes, single.ContentHash)
	}

	// Any chunk failure flips the overall result to failure even though
	// the chunks that did succeed remain stored (spec §4.5.2 step 6).
	if out.FailedChunks > 0 {
		out.Success = false
	}
	return out, nil
}

// embed computes and assigns mem.Embedding via the configured provider.
// Storage backends require Embedding to already be set on the Memory passed
// to Store (spec §4.5: "C5 ... embeds, and stores").
func (s *Service) embed(ctx context.Context, mem *types.Memory) *errs.Error {
	if s.embedder == nil {
		return errs.Wrap(fmt.Errorf("%w: no embedding provider configured", storage.ErrInvalidInput))
	}
	vecs, err := s.embedder.Embed(ctx, []string{mem.Content})
	if err != nil {
		return errs.Wrap(fmt.Errorf("embedding: %w", err))
	}
	if len(vecs) != 1 {
		return errs.Wrap(fmt.Errorf("embedding: expected 1 vector, got %d", len(vecs)))
	}
	mem.Embedding = vecs[0]
	return nil
}

func (s *Service) stampHostname(metadata map[string]interface{}, clientHostname string) {
	if !s.cfg.IncludeHostname {
		return
	}
	host := clientHostname
	if host == "" {
		host = s.cfg.ServerHostname
	}
	if host == "" {
		return
	}
	metadata["hostname"] = host
}

func cloneMetadata(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
