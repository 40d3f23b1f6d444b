package consolidation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/pkg/types"
)

func TestComputeRelevanceDecaysSlowerForCriticalThanTemporary(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now().UTC()
	createdAt := types.NowEpoch(time.Now().UTC()) - (60 * 24 * 60 * 60) // 60 days old

	critical := &types.Memory{MemoryType: "critical", CreatedAt: createdAt, Metadata: map[string]interface{}{}}
	temporary := &types.Memory{MemoryType: "temporary", CreatedAt: createdAt, Metadata: map[string]interface{}{}}

	criticalRelevance, _ := computeRelevance(cfg, critical, 0, now)
	temporaryRelevance, _ := computeRelevance(cfg, temporary, 0, now)

	require.Greater(t, criticalRelevance, temporaryRelevance)
}

func TestComputeRelevanceAppliesAccessBonusForRecentAccess(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now().UTC()
	createdAt := types.NowEpoch(time.Now().UTC()) - (365 * 24 * 60 * 60)

	recentlyAccessed := &types.Memory{
		MemoryType: "standard",
		CreatedAt:  createdAt,
		Metadata: map[string]interface{}{
			quality.KeyLastAccessed: now.Add(-2 * 24 * time.Hour).Format(time.RFC3339),
		},
	}
	neverAccessed := &types.Memory{
		MemoryType: "standard",
		CreatedAt:  createdAt,
		Metadata:   map[string]interface{}{},
	}

	recentRelevance, _ := computeRelevance(cfg, recentlyAccessed, 0, now)
	staleRelevance, _ := computeRelevance(cfg, neverAccessed, 0, now)

	require.Greater(t, recentRelevance, staleRelevance)
}

func TestComputeRelevanceSlowsDecayForHighQuality(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now().UTC()
	createdAt := types.NowEpoch(time.Now().UTC()) - (200 * 24 * 60 * 60)

	highQuality := &types.Memory{
		MemoryType: "standard",
		CreatedAt:  createdAt,
		Metadata:   map[string]interface{}{quality.KeyScore: 0.9},
	}
	lowQuality := &types.Memory{
		MemoryType: "standard",
		CreatedAt:  createdAt,
		Metadata:   map[string]interface{}{quality.KeyScore: 0.2},
	}

	highRelevance, _ := computeRelevance(cfg, highQuality, 0, now)
	lowRelevance, _ := computeRelevance(cfg, lowQuality, 0, now)

	require.Greater(t, highRelevance, lowRelevance)
}

func TestComputeRelevanceAppliesQualityBoostAboveConnectionThreshold(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now().UTC()
	mem := &types.Memory{
		MemoryType: "standard",
		CreatedAt:  types.NowEpoch(time.Now().UTC()),
		Metadata:   map[string]interface{}{quality.KeyScore: 0.5},
	}

	_, boosted := computeRelevance(cfg, mem, cfg.MinConnectionsForBoost, now)
	require.True(t, boosted)
	require.Equal(t, true, mem.Metadata[keyBoostApplied])
	require.InDelta(t, 0.6, mem.Metadata[quality.KeyScore], 1e-9)
	require.Equal(t, cfg.MinConnectionsForBoost, mem.Metadata[keyBoostConnCount])
}

func TestComputeRelevanceClampsToUnitInterval(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now().UTC()
	mem := &types.Memory{
		MemoryType: "critical",
		CreatedAt:  types.NowEpoch(time.Now().UTC()),
		Metadata: map[string]interface{}{
			quality.KeyLastAccessed: now.Format(time.RFC3339),
		},
	}
	relevance, _ := computeRelevance(cfg, mem, 0, now)
	require.LessOrEqual(t, relevance, 1.0)
	require.GreaterOrEqual(t, relevance, 0.0)
}
