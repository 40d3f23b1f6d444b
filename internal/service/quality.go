package service

import (
	"context"

	"github.com/memvault/memvault/internal/errs"
	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// QualityOutcome is the uniform envelope for the memory_quality tool's three
// actions (spec §6.1/§6.3). Distribution is populated only for "analyze".
type QualityOutcome struct {
	Memory       *types.Memory
	Distribution map[quality.Tier]int
	AverageScore float64
}

// RateMemory scores hash with provider, persists the result onto the
// memory's metadata, and returns the updated memory (memory_quality
// action=rate, spec §6.3).
func (s *Service) RateMemory(ctx context.Context, hash string, provider quality.Provider) (*QualityOutcome, *errs.Error) {
	if hash == "" {
		return nil, errs.Validation("content hash is required")
	}
	mem, err := s.store.GetByHash(ctx, hash)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	connections, err := s.store.FindConnected(ctx, hash, 1, storage.DirectionBoth)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	res, scoreErr := provider.Score(ctx, mem, len(connections))
	if scoreErr != nil {
		return nil, errs.Wrap(scoreErr)
	}
	quality.Apply(mem, res)

	if err := s.store.UpdateMemory(ctx, mem); err != nil {
		return nil, errs.Wrap(err)
	}
	return &QualityOutcome{Memory: mem}, nil
}

// GetQuality returns hash's current quality metadata without rescoring
// (memory_quality action=get).
func (s *Service) GetQuality(ctx context.Context, hash string) (*QualityOutcome, *errs.Error) {
	if hash == "" {
		return nil, errs.Validation("content hash is required")
	}
	mem, err := s.store.GetByHash(ctx, hash)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &QualityOutcome{Memory: mem}, nil
}

// AnalyzeQuality reports the tier distribution and average score across
// every non-deleted memory (memory_quality action=analyze).
func (s *Service) AnalyzeQuality(ctx context.Context) (*QualityOutcome, *errs.Error) {
	memories, err := s.store.GetAllMemories(ctx, storage.ListOptions{})
	if err != nil {
		return nil, errs.Wrap(err)
	}

	dist := map[quality.Tier]int{quality.TierHigh: 0, quality.TierMedium: 0, quality.TierLow: 0}
	var total float64
	for _, mem := range memories {
		score := quality.ScoreOf(mem)
		dist[quality.TierOf(score)]++
		total += score
	}
	avg := 0.0
	if len(memories) > 0 {
		avg = total / float64(len(memories))
	}
	return &QualityOutcome{Distribution: dist, AverageScore: avg}, nil
}
