package service

import (
	"context"
	"fmt"
	"time"

	"github.com/memvault/memvault/internal/errs"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// allowedUpdateKeys is the whitelist update_memory_metadata accepts (spec
// §4.5.5). Anything else is rejected rather than silently merged, since the
// full-dict-overwrite shape was the shipped bug this guards against.
var allowedUpdateKeys = map[string]bool{
	"tags":             true,
	"memory_type":      true,
	"metadata":         true,
	"quality_score":    true,
	"quality_feedback": true,
}

// GetByHash is an O(1) direct lookup; never falls back to listing and
// filtering (spec §4.5.5 regression guard).
func (s *Service) GetByHash(ctx context.Context, hash string) (*types.Memory, *errs.Error) {
	mem, err := s.store.GetByHash(ctx, hash)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return mem, nil
}

// Delete soft-deletes a single memory by hash.
func (s *Service) Delete(ctx context.Context, hash string) *errs.Error {
	if err := s.store.Delete(ctx, hash); err != nil {
		return errs.Wrap(err)
	}
	return nil
}

// DeleteByTag soft-deletes every memory carrying tag.
func (s *Service) DeleteByTag(ctx context.Context, tag string) (int, *errs.Error) {
	n, err := s.store.DeleteByTag(ctx, tag)
	if err != nil {
		return 0, errs.Wrap(err)
	}
	return n, nil
}

// DeleteByTags soft-deletes memories matching tags under op.
func (s *Service) DeleteByTags(ctx context.Context, tags []string, op storage.TagOp) (int, *errs.Error) {
	n, err := s.store.DeleteByTags(ctx, tags, op)
	if err != nil {
		return 0, errs.Wrap(err)
	}
	return n, nil
}

// DeleteByTimeframe soft-deletes memories created within [start,end].
func (s *Service) DeleteByTimeframe(ctx context.Context, start, end float64, tag string) (int, *errs.Error) {
	n, err := s.store.DeleteByTimeframe(ctx, start, end, tag)
	if err != nil {
		return 0, errs.Wrap(err)
	}
	return n, nil
}

// DeleteBeforeDate soft-deletes memories created before ts.
func (s *Service) DeleteBeforeDate(ctx context.Context, ts float64, tag string) (int, *errs.Error) {
	n, err := s.store.DeleteBeforeDate(ctx, ts, tag)
	if err != nil {
		return 0, errs.Wrap(err)
	}
	return n, nil
}

// UpdateMetadataRequest is the caller-facing shape for update_memory_metadata.
// Only the keys in allowedUpdateKeys may appear in Updates.
type UpdateMetadataRequest struct {
	ContentHash        string
	Updates            map[string]interface{}
	PreserveTimestamps bool // default true at the transport layer
}

// UpdateMemoryMetadata implements spec §4.5.5. created_at is never touched
// regardless of PreserveTimestamps; only the key whitelist in
// allowedUpdateKeys is honored.
func (s *Service) UpdateMemoryMetadata(ctx context.Context, req UpdateMetadataRequest) *errs.Error {
	for k := range req.Updates {
		// updated_at is only meaningful in the preserve_timestamps=false
		// path (sync reconciliation replaying a remote timestamp); it is
		// never a freeform caller field otherwise.
		if k == "updated_at" && !req.PreserveTimestamps {
			continue
		}
		if !allowedUpdateKeys[k] {
			return errs.Validation("update_memory_metadata: unsupported key %q", k)
		}
	}

	existing, err := s.store.GetByHash(ctx, req.ContentHash)
	if err != nil {
		return errs.Wrap(err)
	}

	mem := &types.Memory{
		ContentHash:  existing.ContentHash,
		Content:      existing.Content,
		Tags:         existing.Tags,
		MemoryType:   existing.MemoryType,
		Metadata:     cloneMetadata(existing.Metadata),
		Embedding:    existing.Embedding,
		CreatedAt:    existing.CreatedAt,
		CreatedAtISO: existing.CreatedAtISO,
		UpdatedAt:    existing.UpdatedAt,
		UpdatedAtISO: existing.UpdatedAtISO,
	}

	if rawTags, ok := req.Updates["tags"]; ok {
		tags, terr := normalizeTags(rawTags, nil)
		if terr != nil {
			return terr
		}
		mem.Tags = tags
	}
	if mt, ok := req.Updates["memory_type"]; ok {
		s, ok := mt.(string)
		if !ok {
			return errs.Validation("update_memory_metadata: memory_type must be a string")
		}
		mem.MemoryType = s
	}
	if patch, ok := req.Updates["metadata"]; ok {
		m, ok := patch.(map[string]interface{})
		if !ok {
			return errs.Validation("update_memory_metadata: metadata must be an object")
		}
		for k, v := range m {
			mem.Metadata[k] = v
		}
	}
	for _, qualityKey := range []string{"quality_score", "quality_feedback"} {
		if v, ok := req.Updates[qualityKey]; ok {
			mem.Metadata[qualityKey] = v
		}
	}

	now := time.Now()
	if !req.PreserveTimestamps {
		if raw, ok := req.Updates["updated_at"]; ok {
			ts, ok := raw.(float64)
			if !ok {
				return errs.Validation("update_memory_metadata: updated_at must be a numeric epoch")
			}
			mem.UpdatedAt = ts
			mem.UpdatedAtISO = types.EpochToTime(ts).Format(time.RFC3339)
		} else {
			mem.StampUpdated(now)
		}
	} else {
		mem.StampUpdated(now)
	}
	// CreatedAt/CreatedAtISO are copied from existing above and never
	// reassigned here under either PreserveTimestamps branch.

	if err := s.store.UpdateMemory(ctx, mem, storage.StoreOptions{PreserveTimestamps: true}); err != nil {
		return errs.Wrap(fmt.Errorf("update memory: %w", err))
	}
	return nil
}
