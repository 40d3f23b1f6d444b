package service

import (
	"context"

	"github.com/memvault/memvault/internal/errs"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// GraphOutcome is the uniform envelope for the memory_graph tool's three
// actions (spec §6.1). Exactly one of Connected/Path/Subgraph is populated.
type GraphOutcome struct {
	Connected []*types.Memory
	Path      []string
	Subgraph  *storage.Subgraph
}

// Connected returns memories reachable from hash within hops edges in the
// given direction (spec §4.6.4 connected_memories).
func (s *Service) Connected(ctx context.Context, hash string, hops int, direction storage.Direction) (*GraphOutcome, *errs.Error) {
	if hash == "" {
		return nil, errs.Validation("content hash is required")
	}
	if hops <= 0 {
		hops = 1
	}
	memories, err := s.store.FindConnected(ctx, hash, hops, direction)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &GraphOutcome{Connected: memories}, nil
}

// Path returns the shortest sequence of content hashes from a to b,
// inclusive (spec §4.6.4 find_path).
func (s *Service) Path(ctx context.Context, a, b string) (*GraphOutcome, *errs.Error) {
	if a == "" || b == "" {
		return nil, errs.Validation("both content hashes are required")
	}
	path, err := s.store.ShortestPath(ctx, a, b)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &GraphOutcome{Path: path}, nil
}

// Subgraph returns every node and edge within radius hops of hash (spec
// §4.6.4 get_subgraph).
func (s *Service) Subgraph(ctx context.Context, hash string, radius int) (*GraphOutcome, *errs.Error) {
	if hash == "" {
		return nil, errs.Validation("content hash is required")
	}
	if radius <= 0 {
		radius = 1
	}
	sub, err := s.store.GetSubgraph(ctx, hash, radius)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &GraphOutcome{Subgraph: sub}, nil
}

// evolutionChainLimit bounds how many supersedes hops GetEvolutionChain
// walks, mirroring the graph operations' general cost bound (spec §4.2.4).
const evolutionChainLimit = 64

// GetEvolutionChain returns the version history of hash: hash itself,
// followed by each memory it supersedes in order, walking `supersedes`
// edges (RelSupersedes) recorded when a content-changing edit replaces a
// memory (spec.md §3.5 delete+create). Stops when a hop has no outgoing
// supersedes edge, revisits a hash already seen, or hits
// evolutionChainLimit.
func (s *Service) GetEvolutionChain(ctx context.Context, hash string) ([]*types.Memory, *errs.Error) {
	if hash == "" {
		return nil, errs.Validation("content hash is required")
	}

	sub, err := s.store.GetSubgraph(ctx, hash, evolutionChainLimit)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	supersedes := make(map[string]string, len(sub.Edges))
	for _, e := range sub.Edges {
		if e.RelationshipType == types.RelSupersedes {
			supersedes[e.SourceHash] = e.TargetHash
		}
	}

	chain := []string{hash}
	seen := map[string]bool{hash: true}
	for cur := hash; len(chain) < evolutionChainLimit; {
		next, ok := supersedes[cur]
		if !ok || seen[next] {
			break
		}
		chain = append(chain, next)
		seen[next] = true
		cur = next
	}

	out := make([]*types.Memory, 0, len(chain))
	for _, h := range chain {
		mem, err := s.store.GetByHash(ctx, h)
		if err != nil {
			continue
		}
		out = append(out, mem)
	}
	return out, nil
}

// Stats returns the backend's aggregate counts (spec §4.5.7/§6.2 api/stats).
func (s *Service) Stats(ctx context.Context) (*storage.Stats, *errs.Error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return stats, nil
}
