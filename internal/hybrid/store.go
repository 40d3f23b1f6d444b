package hybrid

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// Store writes to the primary synchronously, then mirrors the write to the
// secondary via the sync queue (spec §4.4.2). When the queue has been full
// for longer than Config.BackpressureAfter, it falls back to a direct,
// synchronous secondary write instead of enqueuing (spec §4.4.3).
func (e *Engine) Store(ctx context.Context, memory *types.Memory, opts ...storage.StoreOptions) (*storage.StoreResult, error) {
	res, err := e.primary.Store(ctx, memory, opts...)
	if err != nil {
		return res, err
	}
	e.mirrorStore(ctx, memory)
	return res, nil
}

func (e *Engine) UpdateMemory(ctx context.Context, memory *types.Memory, opts ...storage.StoreOptions) error {
	if err := e.primary.UpdateMemory(ctx, memory, opts...); err != nil {
		return err
	}
	e.mirrorStore(ctx, memory)
	return nil
}

func (e *Engine) UpdateMemoriesBatch(ctx context.Context, memories []*types.Memory) ([]storage.BatchResult, error) {
	results, err := e.primary.UpdateMemoriesBatch(ctx, memories)
	if err != nil {
		return results, err
	}
	for i, r := range results {
		if r.Err == nil && i < len(memories) {
			e.mirrorStore(ctx, memories[i])
		}
	}
	return results, nil
}

func (e *Engine) Delete(ctx context.Context, hash string) error {
	if err := e.primary.Delete(ctx, hash); err != nil {
		return err
	}
	e.mirrorDelete(ctx, hash)
	return nil
}

// DeleteByTag, DeleteByTags, DeleteByTimeframe, and DeleteBeforeDate affect a
// set of rows whose hashes are not known ahead of time; rather than fan out
// per-hash sync ops immediately, the next drift-detection pass (spec §4.4.6)
// picks up every resulting tombstone via updated_at, so only the primary
// write needs to happen synchronously here.
func (e *Engine) DeleteByTag(ctx context.Context, tag string) (int, error) {
	return e.primary.DeleteByTag(ctx, tag)
}

func (e *Engine) DeleteByTags(ctx context.Context, tags []string, op storage.TagOp) (int, error) {
	return e.primary.DeleteByTags(ctx, tags, op)
}

func (e *Engine) DeleteByTimeframe(ctx context.Context, start, end float64, tag string) (int, error) {
	return e.primary.DeleteByTimeframe(ctx, start, end, tag)
}

func (e *Engine) DeleteBeforeDate(ctx context.Context, ts float64, tag string) (int, error) {
	return e.primary.DeleteBeforeDate(ctx, ts, tag)
}

// mirrorStore enqueues (or, under sustained backpressure, synchronously
// applies) a store/update sync op. Errors are logged, never returned: the
// caller already has a durable primary write and must not fail on the
// secondary's behalf (spec §4.4.2, "return immediately").
func (e *Engine) mirrorStore(ctx context.Context, memory *types.Memory) {
	if e.secondary == nil || e.isPaused() {
		return
	}

	entry := types.SyncQueueEntry{
		OpKind:             types.SyncOpStore,
		ContentHash:        memory.ContentHash,
		Memory:             memory,
		PreserveTimestamps: true,
	}

	if e.queue.overCapacityFor(e.cfg.BackpressureAfter) {
		if err := e.dispatcher.apply(ctx, entry); err != nil {
			log.Warn().Err(err).Str("content_hash", memory.ContentHash).
				Msg("hybrid: synchronous backpressure fallback write failed")
		}
		return
	}

	if ok, err := e.queue.enqueue(entry); err != nil {
		log.Warn().Err(err).Str("content_hash", memory.ContentHash).Msg("hybrid: enqueue sync op failed")
	} else if !ok {
		log.Warn().Str("content_hash", memory.ContentHash).Msg("hybrid: sync queue full, op dropped pending backpressure fallback")
	}
}

func (e *Engine) mirrorDelete(ctx context.Context, hash string) {
	if e.secondary == nil || e.isPaused() {
		return
	}

	entry := types.SyncQueueEntry{
		OpKind:      types.SyncOpDelete,
		ContentHash: hash,
	}

	if e.queue.overCapacityFor(e.cfg.BackpressureAfter) {
		if err := e.dispatcher.apply(ctx, entry); err != nil {
			log.Warn().Err(err).Str("content_hash", hash).
				Msg("hybrid: synchronous backpressure fallback delete failed")
		}
		return
	}

	if ok, err := e.queue.enqueue(entry); err != nil {
		log.Warn().Err(err).Str("content_hash", hash).Msg("hybrid: enqueue delete sync op failed")
	} else if !ok {
		log.Warn().Str("content_hash", hash).Msg("hybrid: sync queue full, delete dropped pending backpressure fallback")
	}
}

// --- Read-path passthroughs (spec §4.4.1: reads always go to primary) ---

func (e *Engine) GetByHash(ctx context.Context, hash string) (*types.Memory, error) {
	return e.primary.GetByHash(ctx, hash)
}

func (e *Engine) GetAllMemories(ctx context.Context, opts storage.ListOptions) ([]*types.Memory, error) {
	return e.primary.GetAllMemories(ctx, opts)
}

func (e *Engine) GetRecentMemories(ctx context.Context, n int) ([]*types.Memory, error) {
	return e.primary.GetRecentMemories(ctx, n)
}

// GetAllMemoriesWithEmbeddings implements storage.EmbeddingLister by
// delegating to the primary, if it supports the capability (spec §4.4.1:
// consolidation, like every other read, never touches the secondary).
func (e *Engine) GetAllMemoriesWithEmbeddings(ctx context.Context, opts storage.ListOptions) ([]*types.Memory, error) {
	lister, ok := e.primary.(storage.EmbeddingLister)
	if !ok {
		return nil, fmt.Errorf("hybrid: primary store does not implement EmbeddingLister")
	}
	return lister.GetAllMemoriesWithEmbeddings(ctx, opts)
}

func (e *Engine) CountAllMemories(ctx context.Context, opts storage.ListOptions) (int64, error) {
	return e.primary.CountAllMemories(ctx, opts)
}

func (e *Engine) Retrieve(ctx context.Context, queryText string, k int) ([]types.MemoryQueryResult, error) {
	return e.primary.Retrieve(ctx, queryText, k)
}

func (e *Engine) Recall(ctx context.Context, queryText string, k int, timeStart, timeEnd *float64) ([]types.MemoryQueryResult, error) {
	return e.primary.Recall(ctx, queryText, k, timeStart, timeEnd)
}

func (e *Engine) SearchByTag(ctx context.Context, tags []string, op storage.TagOp, timeStart, timeEnd *float64) ([]*types.Memory, error) {
	return e.primary.SearchByTag(ctx, tags, op, timeStart, timeEnd)
}

func (e *Engine) SearchByTimeframe(ctx context.Context, start, end float64, tag string) ([]*types.Memory, error) {
	return e.primary.SearchByTimeframe(ctx, start, end, tag)
}

func (e *Engine) GetByExactContent(ctx context.Context, text string) ([]*types.Memory, error) {
	return e.primary.GetByExactContent(ctx, text)
}

func (e *Engine) GetMemoryTimestamps(ctx context.Context) ([]storage.MemoryTimestamp, error) {
	return e.primary.GetMemoryTimestamps(ctx)
}

func (e *Engine) GetMemoriesUpdatedSince(ctx context.Context, ts float64) ([]*types.Memory, error) {
	return e.primary.GetMemoriesUpdatedSince(ctx, ts)
}

func (e *Engine) GetAllContentHashes(ctx context.Context) (map[string]bool, error) {
	return e.primary.GetAllContentHashes(ctx)
}

func (e *Engine) GetStats(ctx context.Context) (*storage.Stats, error) {
	return e.primary.GetStats(ctx)
}

func (e *Engine) IsDeleted(ctx context.Context, hash string) (bool, error) {
	return e.primary.IsDeleted(ctx, hash)
}

func (e *Engine) PurgeDeleted(ctx context.Context, olderThanDays int) (int, error) {
	return e.primary.PurgeDeleted(ctx, olderThanDays)
}

func (e *Engine) StoreAssociation(ctx context.Context, assoc *types.Association) error {
	if err := e.primary.StoreAssociation(ctx, assoc); err != nil {
		return err
	}
	if e.secondary != nil && !e.isPaused() {
		if err := e.secondary.StoreAssociation(ctx, assoc); err != nil {
			log.Warn().Err(err).Str("source_hash", assoc.SourceHash).
				Msg("hybrid: secondary association mirror failed")
		}
	}
	return nil
}

func (e *Engine) FindConnected(ctx context.Context, hash string, hops int, direction storage.Direction) ([]*types.Memory, error) {
	return e.primary.FindConnected(ctx, hash, hops, direction)
}

func (e *Engine) ShortestPath(ctx context.Context, a, b string) ([]string, error) {
	return e.primary.ShortestPath(ctx, a, b)
}

func (e *Engine) GetSubgraph(ctx context.Context, hash string, radius int) (*storage.Subgraph, error) {
	return e.primary.GetSubgraph(ctx, hash, radius)
}
