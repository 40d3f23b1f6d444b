package consolidation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler drives periodic Consolidator.Run calls at daily/weekly/monthly
// cadence (spec §4.6.6: "the scheduler runs inside that process"). Grounded
// on the teacher's internal/engine worker-goroutine-plus-context-cancel
// shutdown idiom (memory_engine.go's workerCtx/workerCancel pair), scaled
// down to a single ticker goroutine per horizon rather than a worker pool,
// since consolidation runs are infrequent and CPU-bound rather than
// per-request work needing concurrency.
type Scheduler struct {
	consolidator *Consolidator
	horizons     []Horizon

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler builds a Scheduler for the given horizons (e.g. daily,
// weekly, monthly — matching the MCP_SCHEDULE_DAILY/WEEKLY/MONTHLY keys of
// spec §6.4, one of which may be disabled by omitting it from horizons).
func NewScheduler(c *Consolidator, horizons ...Horizon) *Scheduler {
	return &Scheduler{consolidator: c, horizons: horizons}
}

// Start launches one ticker goroutine per configured horizon. Start is
// idempotent-unsafe: callers must not call it twice without an intervening
// Stop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	var active int
	for _, h := range s.horizons {
		active++
		go s.runLoop(ctx, h)
	}
	if active == 0 {
		close(s.done)
	}
}

func (s *Scheduler) runLoop(ctx context.Context, horizon Horizon) {
	ticker := time.NewTicker(HorizonInterval(horizon))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.consolidator.Run(ctx, horizon); err != nil {
				log.Error().Err(err).Str("horizon", string(horizon)).Msg("consolidation: scheduled run failed")
			}
		}
	}
}

// Stop cancels every running ticker goroutine. Safe to call once.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}
