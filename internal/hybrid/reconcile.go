package hybrid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/memvault/memvault/internal/storage"
)

// Reconcile performs the initial bulk reconciliation described in spec
// §4.4.5: it loads every local content_hash once, pages through the
// secondary in batches, and inserts any remote record missing locally
// (unless it is a local tombstone, in which case a delete is pushed to the
// secondary instead so tombstones are never resurrected).
func (e *Engine) Reconcile(ctx context.Context) (*ReconcileStats, error) {
	if e.secondary == nil {
		return &ReconcileStats{}, nil
	}

	localHashes, err := e.primary.GetAllContentHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("hybrid: reconcile load local hashes: %w", err)
	}

	stats := &ReconcileStats{}
	var statsMu sync.Mutex
	sem := make(chan struct{}, e.cfg.ReconcileWorkers)
	var wg sync.WaitGroup

	offset := 0
	for {
		batch, err := e.secondary.GetAllMemories(ctx, storage.ListOptions{
			Limit:  e.cfg.ReconcileBatch,
			Offset: offset,
		})
		if err != nil {
			return stats, fmt.Errorf("hybrid: reconcile page remote at offset %d: %w", offset, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, mem := range batch {
			mem := mem
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				if _, present := localHashes[mem.ContentHash]; present {
					if err := e.checkDrift(ctx, mem); err != nil {
						log.Warn().Err(err).Str("content_hash", mem.ContentHash).
							Msg("hybrid: drift check during reconciliation failed")
					}
					statsMu.Lock()
					stats.Matched++
					statsMu.Unlock()
					return
				}

				deleted, err := e.primary.IsDeleted(ctx, mem.ContentHash)
				if err == nil && deleted {
					_ = e.primary.Delete(ctx, mem.ContentHash)
					if serr := e.secondary.Delete(ctx, mem.ContentHash); serr != nil && !errors.Is(serr, storage.ErrNotFound) {
						log.Warn().Err(serr).Str("content_hash", mem.ContentHash).
							Msg("hybrid: failed to push tombstone to secondary during reconciliation")
					}
					statsMu.Lock()
					stats.TombstonesPreserved++
					statsMu.Unlock()
					return
				}

				if _, serr := e.primary.Store(ctx, mem, storage.StoreOptions{PreserveTimestamps: true}); serr != nil && !errors.Is(serr, storage.ErrDuplicate) {
					log.Warn().Err(serr).Str("content_hash", mem.ContentHash).
						Msg("hybrid: failed to insert remote-only memory during reconciliation")
					statsMu.Lock()
					stats.Failed++
					statsMu.Unlock()
					return
				}
				statsMu.Lock()
				stats.Inserted++
				statsMu.Unlock()
			}()
		}
		wg.Wait()

		if len(batch) < e.cfg.ReconcileBatch {
			break
		}
		offset += e.cfg.ReconcileBatch
	}

	return stats, nil
}

// ReconcileStats summarizes one Reconcile run for operators/tests.
type ReconcileStats struct {
	Matched             int
	Inserted            int
	TombstonesPreserved int
	Failed              int
}
