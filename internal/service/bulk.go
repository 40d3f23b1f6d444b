package service

import (
	"context"

	"github.com/memvault/memvault/internal/errs"
	"github.com/memvault/memvault/internal/storage"
)

const untaggedPageSize = 500

// untaggedHashes pages through every non-deleted memory and collects the
// hashes carrying no tags. Storage's capability set has no "is untagged"
// filter, so this walks get_all_memories rather than inventing a new
// backend primitive for one dangerous, rarely-used operation.
func (s *Service) untaggedHashes(ctx context.Context) ([]string, *errs.Error) {
	var hashes []string
	opts := storage.ListOptions{Limit: untaggedPageSize}
	for {
		opts.Normalize()
		page, err := s.store.GetAllMemories(ctx, opts)
		if err != nil {
			return nil, errs.Wrap(err)
		}
		for _, m := range page {
			if len(m.Tags) == 0 {
				hashes = append(hashes, m.ContentHash)
			}
		}
		if len(page) < opts.Limit {
			break
		}
		opts.Offset += opts.Limit
	}
	return hashes, nil
}

// CountUntaggedMemories returns the number of non-deleted memories with no
// tags (spec §4.5.6).
func (s *Service) CountUntaggedMemories(ctx context.Context) (int, *errs.Error) {
	hashes, err := s.untaggedHashes(ctx)
	if err != nil {
		return 0, err
	}
	return len(hashes), nil
}

// DeleteUntaggedMemories soft-deletes every untagged memory, but only if
// confirmCount equals the current untagged count exactly. This is the
// regression guard against the shipped bug where a stale or omitted count
// caused an unintended mass deletion.
func (s *Service) DeleteUntaggedMemories(ctx context.Context, confirmCount int) (int, *errs.Error) {
	hashes, err := s.untaggedHashes(ctx)
	if err != nil {
		return 0, err
	}
	if confirmCount != len(hashes) {
		return 0, errs.Validation("delete_untagged_memories: confirm_count %d does not match current untagged count %d", confirmCount, len(hashes))
	}

	deleted := 0
	for _, hash := range hashes {
		if err := s.store.Delete(ctx, hash); err != nil {
			continue
		}
		deleted++
	}
	return deleted, nil
}
