package hybrid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// clockSkewTolerance is the grace window spec §4.4.6 allows before treating
// two differing updated_at values as a real conflict.
const clockSkewTolerance = 1.0 // seconds

// driftDetector runs the periodic reconciliation pass of spec §4.4.6: for
// each side, fetch memories updated since the last checkpoint and resolve
// any conflict by newer-updated_at-wins.
type driftDetector struct {
	e      *Engine
	cancel context.CancelFunc
	done   chan struct{}

	mu             sync.Mutex
	lastCheck      float64
	dryRun         bool
}

func newDriftDetector(e *Engine) *driftDetector {
	return &driftDetector{e: e}
}

func (d *driftDetector) start(ctx context.Context) {
	if d.e == nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.e.cfg.DriftInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := d.run(runCtx); err != nil {
					log.Warn().Err(err).Msg("hybrid: drift detection pass failed")
				}
			}
		}
	}()
}

func (d *driftDetector) stop() {
	if d.cancel != nil {
		d.cancel()
		<-d.done
	}
}

// run performs one drift-detection pass across both sides.
func (d *driftDetector) run(ctx context.Context) error {
	if d.e.secondary == nil {
		return nil
	}

	d.mu.Lock()
	since := d.lastCheck
	d.mu.Unlock()

	localChanged, err := d.e.primary.GetMemoriesUpdatedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("hybrid: drift load local changes: %w", err)
	}
	for _, mem := range localChanged {
		if err := d.e.pushToSecondary(ctx, mem); err != nil {
			log.Warn().Err(err).Str("content_hash", mem.ContentHash).
				Msg("hybrid: drift push to secondary failed")
		}
	}

	remoteChanged, err := d.e.secondary.GetMemoriesUpdatedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("hybrid: drift load remote changes: %w", err)
	}
	for _, mem := range remoteChanged {
		if err := d.e.checkDrift(ctx, mem); err != nil {
			log.Warn().Err(err).Str("content_hash", mem.ContentHash).
				Msg("hybrid: drift resolve failed")
		}
	}

	d.mu.Lock()
	d.lastCheck = types.NowEpoch(time.Now().UTC())
	d.mu.Unlock()
	return nil
}

// checkDrift compares a remote-side memory against the local copy of the
// same hash and resolves any conflict with newer-updated_at-wins, within
// clockSkewTolerance. remote is the candidate (already loaded by the
// caller); local is fetched fresh.
func (e *Engine) checkDrift(ctx context.Context, remote *types.Memory) error {
	local, err := e.primary.GetByHash(ctx, remote.ContentHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	diff := remote.UpdatedAt - local.UpdatedAt
	if math.Abs(diff) <= clockSkewTolerance {
		return nil
	}

	if diff > 0 {
		// Remote is newer: apply to local, preserving local's created_at.
		remote.CreatedAt = local.CreatedAt
		remote.CreatedAtISO = local.CreatedAtISO
		if e.isDryRun() {
			log.Info().Str("content_hash", remote.ContentHash).Msg("hybrid: dry-run would update local from remote")
			return nil
		}
		return e.primary.UpdateMemory(ctx, remote, storage.StoreOptions{PreserveTimestamps: true})
	}

	// Local is newer: push to remote, preserving remote's created_at.
	local.CreatedAt = remote.CreatedAt
	local.CreatedAtISO = remote.CreatedAtISO
	if e.isDryRun() {
		log.Info().Str("content_hash", local.ContentHash).Msg("hybrid: dry-run would update remote from local")
		return nil
	}
	return e.secondary.UpdateMemory(ctx, local, storage.StoreOptions{PreserveTimestamps: true})
}

// pushToSecondary mirrors a just-changed local memory to the secondary by
// writing it directly: Store when the secondary has no row for it, otherwise
// UpdateMemory carrying the secondary's own created_at. Both writes use
// PreserveTimestamps, so the local updated_at is kept.
func (e *Engine) pushToSecondary(ctx context.Context, mem *types.Memory) error {
	if e.isDryRun() {
		log.Info().Str("content_hash", mem.ContentHash).Msg("hybrid: dry-run would push local change to remote")
		return nil
	}
	existing, err := e.secondary.GetByHash(ctx, mem.ContentHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_, serr := e.secondary.Store(ctx, mem, storage.StoreOptions{PreserveTimestamps: true})
			return serr
		}
		return err
	}
	mem.CreatedAt = existing.CreatedAt
	mem.CreatedAtISO = existing.CreatedAtISO
	return e.secondary.UpdateMemory(ctx, mem, storage.StoreOptions{PreserveTimestamps: true})
}

func (e *Engine) isDryRun() bool {
	return e.drift != nil && e.drift.dryRun
}

// SetDriftDryRun toggles dry-run mode: intended writes are logged but never
// applied (spec §4.4.6).
func (e *Engine) SetDriftDryRun(v bool) {
	e.drift.mu.Lock()
	e.drift.dryRun = v
	e.drift.mu.Unlock()
}
