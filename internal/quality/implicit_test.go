package quality

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/types"
)

func TestImplicitScoreRewardsAccessConnectivityAndRecency(t *testing.T) {
	p := NewImplicit()

	fresh := &types.Memory{
		MemoryType: "standard",
		CreatedAt:  types.NowEpoch(time.Now().UTC()),
		Metadata: map[string]interface{}{
			KeyAccessCount:  float64(15),
			KeyLastAccessed: time.Now().UTC().Format(time.RFC3339),
		},
	}
	stale := &types.Memory{
		MemoryType: "standard",
		CreatedAt:  types.NowEpoch(time.Now().UTC()),
		Metadata: map[string]interface{}{
			KeyAccessCount:  float64(0),
			KeyLastAccessed: time.Now().AddDate(0, 0, -200).UTC().Format(time.RFC3339),
		},
	}

	freshResult, err := p.Score(context.Background(), fresh, 8)
	require.NoError(t, err)
	staleResult, err := p.Score(context.Background(), stale, 0)
	require.NoError(t, err)

	require.Greater(t, freshResult.Score, staleResult.Score)
	require.Equal(t, "implicit", freshResult.Provider)
	require.InDelta(t, 0.6, freshResult.Confidence, 1e-9)
}

func TestImplicitScoreIsClampedToUnitInterval(t *testing.T) {
	p := NewImplicit()
	mem := &types.Memory{
		CreatedAt: types.NowEpoch(time.Now().UTC()),
		Metadata: map[string]interface{}{
			KeyAccessCount:  float64(1000),
			KeyLastAccessed: time.Now().UTC().Format(time.RFC3339),
		},
	}
	res, err := p.Score(context.Background(), mem, 1000)
	require.NoError(t, err)
	require.LessOrEqual(t, res.Score, 1.0)
	require.GreaterOrEqual(t, res.Score, 0.0)
}

func TestApplyPushesPreviousScoreIntoHistory(t *testing.T) {
	mem := &types.Memory{Metadata: map[string]interface{}{}}
	Apply(mem, &Result{Score: 0.4, Confidence: 0.5, Provider: "implicit", CalculatedAt: time.Now()})
	Apply(mem, &Result{Score: 0.6, Confidence: 0.5, Provider: "implicit", CalculatedAt: time.Now()})
	Apply(mem, &Result{Score: 0.8, Confidence: 0.5, Provider: "implicit", CalculatedAt: time.Now()})
	Apply(mem, &Result{Score: 0.9, Confidence: 0.5, Provider: "implicit", CalculatedAt: time.Now()})

	history, ok := mem.Metadata[KeyHistory].([]interface{})
	require.True(t, ok)
	require.Len(t, history, maxHistoryEntries)
	require.InDelta(t, 0.9, ScoreOf(mem), 1e-9)
}
