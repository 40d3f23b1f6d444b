package service

import (
	"context"

	"github.com/memvault/memvault/internal/errs"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// RetrieveOutcome is the uniform envelope for every search-shaped operation
// (spec §4.5.4: results live under "results", never "memories", so callers
// can't accidentally treat a similarity list and a raw listing the same way).
type RetrieveOutcome struct {
	Results []types.MemoryQueryResult
}

// Retrieve runs a semantic similarity search for queryText and returns the k
// nearest memories.
func (s *Service) Retrieve(ctx context.Context, queryText string, k int) (*RetrieveOutcome, *errs.Error) {
	if queryText == "" {
		return nil, errs.Validation("query text is required")
	}
	if k <= 0 {
		k = 10
	}
	results, err := s.store.Retrieve(ctx, queryText, k)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &RetrieveOutcome{Results: results}, nil
}

// Recall combines semantic search with an optional time window; an empty
// queryText degrades to most-recent-within-window (spec §4.2.4).
func (s *Service) Recall(ctx context.Context, queryText string, k int, timeStart, timeEnd *float64) (*RetrieveOutcome, *errs.Error) {
	if k <= 0 {
		k = 10
	}
	results, err := s.store.Recall(ctx, queryText, k, timeStart, timeEnd)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &RetrieveOutcome{Results: results}, nil
}

// ListOutcome wraps a plain (non-scored) memory listing under the same
// "results" key convention as RetrieveOutcome.
type ListOutcome struct {
	Results []*types.Memory
}

// SearchByTag returns memories matching tags under op, optionally windowed.
func (s *Service) SearchByTag(ctx context.Context, tags []string, op storage.TagOp, timeStart, timeEnd *float64) (*ListOutcome, *errs.Error) {
	if len(tags) == 0 {
		return nil, errs.Validation("at least one tag is required")
	}
	results, err := s.store.SearchByTag(ctx, tags, op, timeStart, timeEnd)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &ListOutcome{Results: results}, nil
}

// SearchByTimeframe returns memories created within [start,end], optionally
// restricted to a single tag.
func (s *Service) SearchByTimeframe(ctx context.Context, start, end float64, tag string) (*ListOutcome, *errs.Error) {
	results, err := s.store.SearchByTimeframe(ctx, start, end, tag)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &ListOutcome{Results: results}, nil
}

// List returns a filtered, paginated listing via GetAllMemories.
func (s *Service) List(ctx context.Context, opts storage.ListOptions) (*ListOutcome, *errs.Error) {
	opts.Normalize()
	results, err := s.store.GetAllMemories(ctx, opts)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &ListOutcome{Results: results}, nil
}
