package backup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Purger is the capability backup.TombstonePurger needs from a storage
// backend: physically remove tombstoned rows older than a retention window
// (spec §4.2.4 purge_deleted / §4.4.7 "tombstone-purge daemon runs daily").
type Purger interface {
	PurgeDeleted(ctx context.Context, olderThanDays int) (int, error)
}

// TombstonePurgeConfig configures the daily purge daemon.
type TombstonePurgeConfig struct {
	// RetentionDays is TOMBSTONE_RETENTION_DAYS (spec §4.2.2, default 30).
	RetentionDays int
	// Interval is how often the daemon sweeps; spec §4.4.7 says "runs
	// daily" but this is left configurable for tests.
	Interval time.Duration
}

func (c *TombstonePurgeConfig) normalize() {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.Interval <= 0 {
		c.Interval = 24 * time.Hour
	}
}

// TombstonePurger physically removes soft-deleted rows once they age past
// the retention window, repurposing BackupService's periodic-ticker idiom
// for spec §4.4.7's tombstone-purge daemon rather than file-backup
// retention (SPEC_FULL.md §D.4).
type TombstonePurger struct {
	store  Purger
	cfg    TombstonePurgeConfig
	mu     sync.Mutex
	stopCh chan struct{}
}

// NewTombstonePurger builds a purger over store.
func NewTombstonePurger(store Purger, cfg TombstonePurgeConfig) *TombstonePurger {
	cfg.normalize()
	return &TombstonePurger{store: store, cfg: cfg, stopCh: make(chan struct{})}
}

// Start runs the sweep loop until ctx is cancelled or Stop is called.
func (p *TombstonePurger) Start(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.cfg.Interval).Int("retention_days", p.cfg.RetentionDays).
		Msg("backup: tombstone purge daemon started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweepOnce(ctx)
		}
	}
}

// Stop ends the sweep loop.
func (p *TombstonePurger) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.stopCh:
		// already stopped
	default:
		close(p.stopCh)
	}
}

// SweepOnce runs a single purge pass immediately, for an operator-triggered
// sweep outside the daemon's own interval.
func (p *TombstonePurger) SweepOnce(ctx context.Context) (int, error) {
	return p.store.PurgeDeleted(ctx, p.cfg.RetentionDays)
}

func (p *TombstonePurger) sweepOnce(ctx context.Context) {
	n, err := p.store.PurgeDeleted(ctx, p.cfg.RetentionDays)
	if err != nil {
		log.Error().Err(err).Msg("backup: tombstone purge failed")
		return
	}
	if n > 0 {
		log.Info().Int("purged", n).Msg("backup: tombstone purge completed")
	}
}
