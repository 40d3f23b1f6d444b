package service

import (
	"context"
	"sort"

	"github.com/memvault/memvault/internal/errs"
	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/pkg/types"
)

// SearchMode selects how memory_search/POST /api/search resolves a query
// (spec §6.1 memory_search "mode" parameter).
type SearchMode string

const (
	SearchModeSemantic SearchMode = "semantic"
	SearchModeExact    SearchMode = "exact"
	SearchModeHybrid   SearchMode = "hybrid"
)

// SearchRequest bundles memory_search's inputs (spec §6.1/§6.2).
type SearchRequest struct {
	Query         string
	Limit         int
	Mode          SearchMode
	Before        *float64
	After         *float64
	QualityBoost  bool
	QualityWeight float64
}

// normalize fills in the documented defaults: limit 5, mode semantic,
// quality_weight 0.3 (spec §6.1, §6.3).
func (r *SearchRequest) normalize() {
	if r.Limit <= 0 {
		r.Limit = 5
	}
	if r.Mode == "" {
		r.Mode = SearchModeSemantic
	}
	if r.QualityWeight <= 0 {
		r.QualityWeight = 0.3
	}
}

// Search resolves a memory_search request. Semantic and hybrid modes embed
// the query and rank by similarity; exact mode matches Content verbatim.
// When QualityBoost is set, the engine over-fetches 3x candidates and
// re-ranks by a (1-w)*semantic + w*quality composite score, off by default
// per spec §6.3.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*RetrieveOutcome, *errs.Error) {
	req.normalize()
	if req.Query == "" {
		return nil, errs.Validation("query is required")
	}

	if req.Mode == SearchModeExact {
		memories, err := s.store.GetByExactContent(ctx, req.Query)
		if err != nil {
			return nil, errs.Wrap(err)
		}
		memories = filterByWindow(memories, req.Before, req.After)
		if len(memories) > req.Limit {
			memories = memories[:req.Limit]
		}
		results := make([]types.MemoryQueryResult, 0, len(memories))
		for _, m := range memories {
			results = append(results, types.MemoryQueryResult{Memory: m})
		}
		return &RetrieveOutcome{Results: results}, nil
	}

	fetchLimit := req.Limit
	if req.QualityBoost {
		fetchLimit = req.Limit * 3
	}
	results, err := s.store.Retrieve(ctx, req.Query, fetchLimit)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	filtered := make([]types.MemoryQueryResult, 0, len(results))
	for _, r := range results {
		if inWindow(r.Memory, req.Before, req.After) {
			filtered = append(filtered, r)
		}
	}

	if req.QualityBoost {
		filtered = rerankByQuality(filtered, req.QualityWeight)
	}
	if len(filtered) > req.Limit {
		filtered = filtered[:req.Limit]
	}
	return &RetrieveOutcome{Results: filtered}, nil
}

func inWindow(mem *types.Memory, before, after *float64) bool {
	if mem == nil {
		return false
	}
	if before != nil && mem.CreatedAt > *before {
		return false
	}
	if after != nil && mem.CreatedAt < *after {
		return false
	}
	return true
}

func filterByWindow(memories []*types.Memory, before, after *float64) []*types.Memory {
	out := make([]*types.Memory, 0, len(memories))
	for _, m := range memories {
		if inWindow(m, before, after) {
			out = append(out, m)
		}
	}
	return out
}

// rerankByQuality composites each result's semantic similarity with its
// quality_score (spec §6.3: "over-fetching 3x and re-ranking").
func rerankByQuality(results []types.MemoryQueryResult, weight float64) []types.MemoryQueryResult {
	type scored struct {
		result    types.MemoryQueryResult
		composite float64
	}
	scoredResults := make([]scored, 0, len(results))
	for _, r := range results {
		semantic := 0.0
		if r.SimilarityScore != nil {
			semantic = *r.SimilarityScore
		}
		composite := (1-weight)*semantic + weight*quality.ScoreOf(r.Memory)
		scoredResults = append(scoredResults, scored{result: r, composite: composite})
	}
	sort.SliceStable(scoredResults, func(i, j int) bool {
		return scoredResults[i].composite > scoredResults[j].composite
	})
	out := make([]types.MemoryQueryResult, len(scoredResults))
	for i, sr := range scoredResults {
		out[i] = sr.result
	}
	return out
}
