// Package hybrid composes a primary (local, fast) and secondary (remote,
// durable) storage.Store behind a single storage.Store-shaped facade: reads
// always go to the primary, writes go to the primary synchronously and are
// mirrored to the secondary through a background sync queue.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// SyncOwner selects which process role is responsible for driving the
// background sync dispatcher in a deployment running both an HTTP and a
// JSON-RPC server instance over the same backends (spec §4.4.4).
type SyncOwner string

const (
	OwnerHTTP SyncOwner = "http"
	OwnerRPC  SyncOwner = "rpc"
	OwnerBoth SyncOwner = "both"
)

// Config bundles the hybrid engine's tunables, all defaulted by normalize.
type Config struct {
	QueueCapacity     int           // default 2000
	BatchSize         int           // default 50, max 100
	DispatchWorkers   int           // default 15 (semaphore width)
	BackpressureAfter time.Duration // default 5s before synchronous fallback
	DriftInterval     time.Duration // default 1h
	ReconcileBatch    int           // default 500
	ReconcileWorkers  int           // default 15
	Owner             SyncOwner     // default "both"

	// BadgerPath, when set, persists queued-but-undispatched sync ops so a
	// process restart does not silently drop them. Empty disables spillover
	// (in-memory queue only).
	BadgerPath string

	// RedisAddr, when set, arbitrates sync ownership across processes via a
	// lease held in Redis. Empty means this instance always owns the queue
	// (single-process deployment).
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func (c *Config) normalize() {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 2000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.BatchSize > 100 {
		c.BatchSize = 100
	}
	if c.DispatchWorkers <= 0 {
		c.DispatchWorkers = 15
	}
	if c.BackpressureAfter <= 0 {
		c.BackpressureAfter = 5 * time.Second
	}
	if c.DriftInterval <= 0 {
		c.DriftInterval = time.Hour
	}
	if c.ReconcileBatch <= 0 {
		c.ReconcileBatch = 500
	}
	if c.ReconcileWorkers <= 0 {
		c.ReconcileWorkers = 15
	}
	if c.Owner == "" {
		c.Owner = OwnerBoth
	}
}

// Engine is the hybrid storage facade described by spec §4.4. It implements
// storage.Store so C5 can hold either a bare backend or an Engine behind the
// same interface.
type Engine struct {
	primary   storage.Store
	secondary storage.Store
	cfg       Config

	queue      *syncQueue
	owner      *ownerLease
	dispatcher *dispatcher
	drift      *driftDetector

	pauseMu sync.RWMutex
	paused  bool

	statsMu sync.Mutex
	stats   syncStats
}

type syncStats struct {
	pending       int64
	failed        int64
	lastSuccessAt time.Time
	activelySync  bool
}

// NewEngine wires primary and secondary behind the sync queue/dispatcher.
// Both stores must already be Initialize()d. NewEngine does not start the
// background dispatcher or drift loop; call Start for that.
func NewEngine(primary, secondary storage.Store, cfg Config) (*Engine, error) {
	if primary == nil {
		return nil, errors.New("hybrid: primary store is required")
	}
	cfg.normalize()

	q, err := newSyncQueue(cfg.QueueCapacity, cfg.BadgerPath)
	if err != nil {
		return nil, fmt.Errorf("hybrid: sync queue: %w", err)
	}

	owner, err := newOwnerLease(cfg)
	if err != nil {
		return nil, fmt.Errorf("hybrid: owner lease: %w", err)
	}

	e := &Engine{
		primary:   primary,
		secondary: secondary,
		cfg:       cfg,
		queue:     q,
		owner:     owner,
	}
	e.dispatcher = newDispatcher(e)
	e.drift = newDriftDetector(e)
	return e, nil
}

// Start begins the owner-lease renewal, background dispatcher and
// drift-detection loops. It is a
// no-op (but not an error) when secondary is nil — primary-only deployments
// skip sync entirely.
func (e *Engine) Start(ctx context.Context) {
	if e.secondary == nil {
		return
	}
	e.owner.start(ctx)
	e.dispatcher.start(ctx)
	e.drift.start(ctx)
}

// Close stops background work and releases the queue's spillover store and
// owner lease, without closing the underlying primary/secondary stores
// (callers opened those and own their lifecycle).
func (e *Engine) Close() error {
	e.dispatcher.stop()
	e.drift.stop()
	e.owner.close()
	return e.queue.close()
}

// Initialize is a pass-through; C5 callers may hold either a raw backend or
// an Engine and call Initialize uniformly.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.primary.Initialize(ctx); err != nil {
		return err
	}
	if e.secondary != nil {
		if err := e.secondary.Initialize(ctx); err != nil {
			log.Warn().Err(err).Msg("hybrid: secondary initialize failed, continuing primary-only")
		}
	}
	return nil
}

var _ storage.Store = (*Engine)(nil)
