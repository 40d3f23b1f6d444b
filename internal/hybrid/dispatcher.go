package hybrid

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// dispatcher is the single background sync service of spec §4.4.3: it
// drains the queue with bounded concurrency (a semaphore, default width 15)
// and applies each op to the secondary store.
type dispatcher struct {
	e      *Engine
	sem    chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}
}

func newDispatcher(e *Engine) *dispatcher {
	return &dispatcher{
		e:   e,
		sem: make(chan struct{}, e.cfg.DispatchWorkers),
	}
}

func (d *dispatcher) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		for {
			select {
			case <-runCtx.Done():
				return
			case item, ok := <-d.e.queue.ch:
				if !ok {
					return
				}
				d.wg.Add(1)
				d.sem <- struct{}{}
				go func(it queued) {
					defer d.wg.Done()
					defer func() { <-d.sem }()
					d.dispatch(runCtx, it)
				}(item)
			}
		}
	}()
}

func (d *dispatcher) stop() {
	if d.cancel != nil {
		d.cancel()
		<-d.done
		d.wg.Wait()
	}
}

// dispatch applies one queued op to the secondary, honoring sync ownership,
// pause state, and the permanent/transient error split described in spec
// §4.4.3/§4.4.10. The underlying remote Store already retries transient
// failures internally (its own circuit breaker + backoff); this layer only
// decides whether a failure should be requeued or marked permanently failed.
func (d *dispatcher) dispatch(ctx context.Context, item queued) {
	e := d.e
	if e.secondary == nil {
		e.queue.ack(item.id)
		return
	}
	if e.cfg.Owner != OwnerBoth && !e.owner.isOwner() {
		// Not this instance's turn; re-enqueue for whichever instance is
		// owner to pick up, without counting it as a failure.
		if ok, _ := e.queue.enqueue(item.entry); ok {
			e.queue.ack(item.id)
		}
		return
	}
	if e.isPaused() {
		if ok, _ := e.queue.enqueue(item.entry); ok {
			e.queue.ack(item.id)
		}
		return
	}

	e.setActivelySyncing(true)
	defer e.setActivelySyncing(false)

	err := d.apply(ctx, item.entry)
	if err == nil {
		e.queue.ack(item.id)
		e.recordSuccess()
		return
	}

	if errors.Is(err, storage.ErrPermanent) {
		e.queue.ack(item.id)
		e.recordFailure()
		log.Error().Err(err).Str("content_hash", item.entry.ContentHash).
			Str("op", string(item.entry.OpKind)).Msg("hybrid: sync op permanently failed")
		return
	}

	item.entry.AttemptCount++
	log.Warn().Err(err).Str("content_hash", item.entry.ContentHash).
		Int("attempt", item.entry.AttemptCount).Msg("hybrid: sync op transient failure, requeuing")
	e.queue.ack(item.id)
	if ok, _ := e.queue.enqueue(item.entry); !ok {
		e.recordFailure()
	}
}

func (d *dispatcher) apply(ctx context.Context, entry types.SyncQueueEntry) error {
	opts := storage.StoreOptions{PreserveTimestamps: entry.PreserveTimestamps}
	switch entry.OpKind {
	case types.SyncOpStore:
		if entry.Memory == nil {
			return nil
		}
		_, err := d.e.secondary.Store(ctx, entry.Memory, opts)
		if errors.Is(err, storage.ErrDuplicate) {
			return d.e.secondary.UpdateMemory(ctx, entry.Memory, opts)
		}
		return err
	case types.SyncOpUpdateMetadata:
		mem, err := d.e.secondary.GetByHash(ctx, entry.ContentHash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) && entry.Memory != nil {
				_, serr := d.e.secondary.Store(ctx, entry.Memory, opts)
				return serr
			}
			return err
		}
		applyMetadataPatch(mem, entry.MetadataPatch)
		return d.e.secondary.UpdateMemory(ctx, mem, opts)
	case types.SyncOpDelete:
		err := d.e.secondary.Delete(ctx, entry.ContentHash)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	default:
		return nil
	}
}

func applyMetadataPatch(mem *types.Memory, patch map[string]interface{}) {
	if patch == nil {
		return
	}
	if mem.Metadata == nil {
		mem.Metadata = map[string]interface{}{}
	}
	for k, v := range patch {
		mem.Metadata[k] = v
	}
}

func (e *Engine) isPaused() bool {
	e.pauseMu.RLock()
	defer e.pauseMu.RUnlock()
	return e.paused
}

func (e *Engine) setActivelySyncing(v bool) {
	e.statsMu.Lock()
	e.stats.activelySync = v
	e.statsMu.Unlock()
}

func (e *Engine) recordSuccess() {
	e.statsMu.Lock()
	e.stats.lastSuccessAt = time.Now().UTC()
	e.statsMu.Unlock()
}

func (e *Engine) recordFailure() {
	e.statsMu.Lock()
	e.stats.failed++
	e.statsMu.Unlock()
}
