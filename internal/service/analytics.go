package service

import (
	"context"

	"github.com/memvault/memvault/internal/errs"
	"github.com/memvault/memvault/internal/storage"
)

// Count implements count_all_memories: a database-level count, never an
// in-memory filter over a full listing (spec §4.2.4, invariant §8.1.14).
func (s *Service) Count(ctx context.Context, opts storage.ListOptions) (int64, *errs.Error) {
	n, err := s.store.CountAllMemories(ctx, opts)
	if err != nil {
		return 0, errs.Wrap(err)
	}
	return n, nil
}

// Timestamps returns (hash, created_at, updated_at) for every non-deleted
// memory via the single optimized query get_memory_timestamps (spec
// §4.2.4), used by the REST analytics surface to compute trend buckets
// without loading full memory bodies.
func (s *Service) Timestamps(ctx context.Context) ([]storage.MemoryTimestamp, *errs.Error) {
	rows, err := s.store.GetMemoryTimestamps(ctx)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return rows, nil
}
