package consolidation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// Consolidator runs the decay/association/clustering/forgetting passes of
// spec §4.6 against a storage.Store, gated by a quality.Provider for the
// connection-count-based quality boost and retention-tier checks.
//
// Grounded on the teacher's internal/engine.MemoryEngine state-management
// shape (mu sync.RWMutex guarding started/shuttingDown-style flags), generalized
// to a pause/resume scheduler instead of a worker-pool lifecycle; the
// per-invocation Run/Status/Trigger/Pause/Resume/Recommendations surface has
// no direct teacher equivalent and is built against spec §4.6.6 directly.
type Consolidator struct {
	store    storage.Store
	provider quality.Provider
	cfg      Config

	mu     sync.Mutex
	paused bool
	status Status
}

// New constructs a Consolidator. provider defaults to quality.NewImplicit()
// when nil, matching the spec's "implicit is the default everywhere a
// Provider is required" rule (SPEC_FULL.md §E.4).
func New(store storage.Store, provider quality.Provider, cfg Config) (*Consolidator, error) {
	if store == nil {
		return nil, fmt.Errorf("consolidation: store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		provider = quality.NewImplicit()
	}
	return &Consolidator{store: store, provider: provider, cfg: cfg}, nil
}

// Pause suspends Run until Resume is called; a paused Consolidator still
// reports Status accurately but Trigger/Run return immediately with no
// work done.
func (c *Consolidator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	c.status.Paused = true
}

func (c *Consolidator) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.status.Paused = false
}

func (c *Consolidator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Trigger runs a single consolidation pass at the given horizon immediately,
// independent of any scheduler loop (spec §4.6.6's "trigger" operation).
func (c *Consolidator) Trigger(ctx context.Context, horizon Horizon) (*RunResult, error) {
	return c.Run(ctx, horizon)
}

// Run executes one full consolidation pass: fetch memories with embeddings,
// score relevance, discover associations, cluster, evaluate forgetting, then
// batch-write every changed memory in a single transaction (spec §4.6.1:
// "sequential updates are forbidden").
func (c *Consolidator) Run(ctx context.Context, horizon Horizon) (*RunResult, error) {
	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		return nil, fmt.Errorf("consolidation: paused")
	}
	c.mu.Unlock()

	result := &RunResult{Horizon: horizon, StartedAt: time.Now().UTC()}

	lister, ok := c.store.(storage.EmbeddingLister)
	if !ok {
		result.Err = fmt.Errorf("consolidation: store does not implement EmbeddingLister, cannot score without embeddings (spec §4.6.5)")
		return result, result.Err
	}

	memories, err := lister.GetAllMemoriesWithEmbeddings(ctx, storage.ListOptions{Limit: 0})
	if err != nil {
		result.Err = fmt.Errorf("consolidation: fetch memories with embeddings: %w", err)
		return result, result.Err
	}

	now := time.Now().UTC()
	connCounts, err := c.connectionCounts(ctx, memories)
	if err != nil {
		log.Warn().Err(err).Msg("consolidation: connection counts unavailable, quality boost gating disabled for this run")
	}

	changed := make([]*types.Memory, 0, len(memories))
	for _, mem := range memories {
		relevance, boosted := computeRelevance(c.cfg, mem, connCounts[mem.ContentHash], now)
		if mem.Metadata == nil {
			mem.Metadata = map[string]interface{}{}
		}
		prior, _ := mem.Metadata[keyRelevance].(float64)
		mem.Metadata[keyRelevance] = relevance
		if boosted {
			result.QualityBoosted++
		}

		archived := false
		if forgettingEligible(c.cfg, mem, relevance, now) && !IsArchived(mem) {
			archive(mem, now)
			result.MemoriesArchived++
			archived = true
		}

		if boosted || archived || differs(prior, relevance, c.cfg.RelevanceWriteThreshold) {
			mem.StampUpdated(now)
			changed = append(changed, mem)
		}
		result.MemoriesScored++
	}

	if err := c.writeBatches(ctx, changed); err != nil {
		result.Err = err
		return result, err
	}

	associations, err := discoverAssociations(ctx, c.store, c.cfg, memories)
	if err != nil {
		result.Err = fmt.Errorf("consolidation: discover associations: %w", err)
		return result, result.Err
	}
	result.AssociationsFound = len(associations)

	clusters := clusterMemories(memories, c.cfg)
	for _, cluster := range clusters {
		if _, err := c.store.Store(ctx, cluster.Memory); err != nil {
			log.Warn().Err(err).Str("content_hash", cluster.Memory.ContentHash).
				Msg("consolidation: failed to store compressed cluster memory")
			continue
		}
	}
	result.ClustersFound = len(clusters)

	result.FinishedAt = time.Now().UTC()

	c.mu.Lock()
	c.status.LastRun = result.FinishedAt
	c.status.LastHorizon = horizon
	c.status.LastResult = result
	c.mu.Unlock()

	return result, nil
}

// differs reports whether the relevance update is large enough to justify a
// write-back, mirroring the teacher's DecayManager write-back threshold.
func differs(prior, next, threshold float64) bool {
	d := next - prior
	if d < 0 {
		d = -d
	}
	return d > threshold
}

// writeBatches splits changed into cfg.BatchSize-sized groups and commits
// each with a single UpdateMemoriesBatch call (spec §4.6.1).
func (c *Consolidator) writeBatches(ctx context.Context, changed []*types.Memory) error {
	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	for start := 0; start < len(changed); start += batchSize {
		end := start + batchSize
		if end > len(changed) {
			end = len(changed)
		}
		if _, err := c.store.UpdateMemoriesBatch(ctx, changed[start:end]); err != nil {
			return fmt.Errorf("consolidation: batch update relevance: %w", err)
		}
	}
	return nil
}

// connectionCounts fetches each memory's 1-hop connection count via
// FindConnected, used for the quality-boost connection-count gate (spec
// §4.6.1 step 3).
func (c *Consolidator) connectionCounts(ctx context.Context, memories []*types.Memory) (map[string]int, error) {
	counts := make(map[string]int, len(memories))
	var firstErr error
	for _, mem := range memories {
		connected, err := c.store.FindConnected(ctx, mem.ContentHash, 1, storage.DirectionBoth)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		counts[mem.ContentHash] = len(connected)
	}
	return counts, firstErr
}

// Recommendations surfaces actionable signals without mutating anything
// (spec §4.6.6): e.g. how many memories are archival-eligible right now.
func (c *Consolidator) Recommendations(ctx context.Context) ([]Recommendation, error) {
	lister, ok := c.store.(storage.EmbeddingLister)
	if !ok {
		return nil, fmt.Errorf("consolidation: store does not implement EmbeddingLister")
	}
	memories, err := lister.GetAllMemoriesWithEmbeddings(ctx, storage.ListOptions{Limit: 0})
	if err != nil {
		return nil, fmt.Errorf("consolidation: fetch memories: %w", err)
	}

	now := time.Now().UTC()
	archivalEligible := 0
	for _, mem := range memories {
		relevance, _ := mem.Metadata[keyRelevance].(float64)
		if forgettingEligible(c.cfg, mem, relevance, now) && !IsArchived(mem) {
			archivalEligible++
		}
	}

	var recs []Recommendation
	if archivalEligible > 0 {
		recs = append(recs, Recommendation{
			Kind:    "archival_eligible",
			Message: fmt.Sprintf("%d memories are eligible for archival", archivalEligible),
			Count:   archivalEligible,
		})
	}
	return recs, nil
}
