package consolidation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/service"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// causeCues, fixCues, etc. are simple lowercase substring cues used to infer
// a relationship_type from content when two memories fall in the creative
// similarity band (spec §4.6.2, §3.3). No teacher precedent; grounded
// directly on the spec's "content cues" phrase with the smallest heuristic
// that satisfies it — a cue table, checked in a fixed priority order so a
// memory with multiple cues still gets one deterministic answer.
var (
	causeCues      = []string{"because", "caused by", "due to", "results in", "leads to"}
	fixCues        = []string{"fixed by", "resolved by", "patched", "workaround", "fix:"}
	contradictCues = []string{"however", "but actually", "contrary to", "instead of", "turned out to be wrong"}
	supportCues    = []string{"confirms", "consistent with", "validates", "reinforces"}
)

// inferRelationshipType applies tag/type/temporal heuristics plus content
// cues, defaulting to types.RelRelated when nothing matches (spec §4.6.2).
func inferRelationshipType(a, b *types.Memory) types.RelationshipType {
	contentPair := strings.ToLower(a.Content + " " + b.Content)

	for _, cue := range fixCues {
		if strings.Contains(contentPair, cue) {
			return types.RelFixes
		}
	}
	for _, cue := range causeCues {
		if strings.Contains(contentPair, cue) {
			return types.RelCauses
		}
	}
	for _, cue := range contradictCues {
		if strings.Contains(contentPair, cue) {
			return types.RelContradicts
		}
	}
	for _, cue := range supportCues {
		if strings.Contains(contentPair, cue) {
			return types.RelSupports
		}
	}

	if a.MemoryType == b.MemoryType && sharesTag(a, b) && closeInTime(a, b) {
		return types.RelFollows
	}

	return types.RelRelated
}

func sharesTag(a, b *types.Memory) bool {
	tagSet := make(map[string]struct{}, len(a.Tags))
	for _, t := range a.Tags {
		tagSet[t] = struct{}{}
	}
	for _, t := range b.Tags {
		if _, ok := tagSet[t]; ok {
			return true
		}
	}
	return false
}

// closeInTime reports whether a and b were created within 24h of each
// other, a loose signal for a "follows" (sequential/procedural) relation.
func closeInTime(a, b *types.Memory) bool {
	const followWindowSeconds = 24 * 60 * 60
	diff := a.CreatedAt - b.CreatedAt
	if diff < 0 {
		diff = -diff
	}
	return diff <= followWindowSeconds
}

// discoverAssociations samples up to cfg.MaxCandidatesPerMemory neighbors
// per memory (the most recently created, to keep this O(N*C) rather than
// O(N^2) on large stores), keeps pairs whose cosine similarity falls in the
// creative band, infers a relationship type, and persists the resulting
// edges per cfg.GraphStorageMode (spec §4.6.2).
func discoverAssociations(ctx context.Context, store storage.Store, cfg Config, memories []*types.Memory) ([]*types.Association, error) {
	ordered := make([]*types.Memory, len(memories))
	copy(ordered, memories)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].CreatedAt > ordered[j].CreatedAt })

	var created []*types.Association
	seen := map[[2]string]bool{}

	for i, mem := range ordered {
		if len(mem.Embedding) == 0 {
			continue
		}
		candidateEnd := i + 1 + cfg.MaxCandidatesPerMemory
		if candidateEnd > len(ordered) {
			candidateEnd = len(ordered)
		}
		for _, other := range ordered[i+1 : candidateEnd] {
			if len(other.Embedding) == 0 {
				continue
			}
			key := pairKey(mem.ContentHash, other.ContentHash)
			if seen[key] {
				continue
			}
			sim := cosineSimilarity(mem.Embedding, other.Embedding)
			if sim < cfg.CreativeBandMin || sim > cfg.CreativeBandMax {
				continue
			}
			seen[key] = true

			relType := inferRelationshipType(mem, other)
			assoc := &types.Association{
				SourceHash:       mem.ContentHash,
				TargetHash:       other.ContentHash,
				RelationshipType: relType,
				Similarity:       sim,
			}
			if err := persistAssociation(ctx, store, cfg.GraphStorageMode, assoc); err != nil {
				return created, err
			}
			created = append(created, assoc)
		}
	}
	return created, nil
}

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// persistAssociation writes assoc according to mode. In graph_only and
// dual_write, symmetric relationship types are stored as two directed edges,
// matching spec §3.3/§4.6.2; graph_only and dual_write both write the memory_graph edge(s)
// via store.StoreAssociation, memories_only and dual_write additionally
// create a Memory record representing the association (the legacy shape).
func persistAssociation(ctx context.Context, store storage.Store, mode GraphStorageMode, assoc *types.Association) error {
	if mode == GraphModeGraphOnly || mode == GraphModeDualWrite {
		if err := store.StoreAssociation(ctx, assoc); err != nil {
			return err
		}
		if types.IsSymmetric(assoc.RelationshipType) {
			reverse := &types.Association{
				SourceHash:       assoc.TargetHash,
				TargetHash:       assoc.SourceHash,
				RelationshipType: assoc.RelationshipType,
				Similarity:       assoc.Similarity,
				Metadata:         assoc.Metadata,
			}
			if err := store.StoreAssociation(ctx, reverse); err != nil {
				return err
			}
		}
	}

	if mode == GraphModeMemoriesOnly || mode == GraphModeDualWrite {
		legacy := associationMemory(assoc)
		if _, err := store.Store(ctx, legacy); err != nil {
			return err
		}
	}

	return nil
}

// associationMemory builds a Memory record representing assoc, for the
// legacy memories_only graph storage mode.
func associationMemory(assoc *types.Association) *types.Memory {
	content := "Association: " + assoc.SourceHash + " " + string(assoc.RelationshipType) + " " + assoc.TargetHash
	now := types.NowEpoch(time.Now().UTC())
	tags := []string{"compressed_cluster_edge", string(assoc.RelationshipType)}
	memType := "association"
	metadata := map[string]interface{}{
		"source_hash":       assoc.SourceHash,
		"target_hash":       assoc.TargetHash,
		"relationship_type": string(assoc.RelationshipType),
		"similarity":        assoc.Similarity,
	}
	mem := &types.Memory{
		ContentHash: service.ComputeContentHash(content, memType, tags, metadata),
		Content:     content,
		MemoryType:  memType,
		Tags:        tags,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	mem.SyncISO()
	return mem
}
