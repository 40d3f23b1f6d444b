package consolidation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/service"
	"github.com/memvault/memvault/pkg/types"
)

const (
	clusterNoise     = -1
	clusterUnvisited = 0
)

// dbscan clusters memories by cosine distance with cfg.DBSCANEpsilon radius
// and cfg.DBSCANMinSamples density (spec §4.6.3). No teacher precedent;
// implemented as the textbook DBSCAN algorithm directly against the pack's
// cosine-distance metric. Returns a label per input index: >=1 is a cluster
// id, clusterNoise (-1) means the point was never assigned to a cluster.
func dbscan(memories []*types.Memory, epsilon float64, minSamples int) []int {
	n := len(memories)
	labels := make([]int, n)
	visited := make([]bool, n)
	nextCluster := 0

	regionQuery := func(i int) []int {
		var neighbors []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if cosineDistance(memories[i].Embedding, memories[j].Embedding) <= epsilon {
				neighbors = append(neighbors, j)
			}
		}
		return neighbors
	}

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		neighbors := regionQuery(i)
		// The point itself counts toward minSamples, as in textbook DBSCAN.
		if len(neighbors)+1 < minSamples {
			labels[i] = clusterNoise
			continue
		}

		nextCluster++
		labels[i] = nextCluster
		seeds := append([]int(nil), neighbors...)
		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if !visited[j] {
				visited[j] = true
				jNeighbors := regionQuery(j)
				if len(jNeighbors)+1 >= minSamples {
					seeds = append(seeds, jNeighbors...)
				}
			}
			if labels[j] == clusterUnvisited || labels[j] == clusterNoise {
				labels[j] = nextCluster
			}
		}
	}
	return labels
}

// ClusterSummary describes one discovered semantic cluster before it's
// synthesized into a compressed-cluster Memory.
type ClusterSummary struct {
	SourceHashes []string
	SpanDays     float64
	Count        int
	Memory       *types.Memory
}

// clusterMemories groups memories with dbscan and synthesizes a compressed-
// cluster Memory per non-noise cluster (spec §4.6.3). Originals are left
// untouched; only the synthetic summary memory is created and linked via
// metadata.source_memory_hashes.
func clusterMemories(memories []*types.Memory, cfg Config) []ClusterSummary {
	withEmbeddings := make([]*types.Memory, 0, len(memories))
	for _, m := range memories {
		if len(m.Embedding) > 0 {
			withEmbeddings = append(withEmbeddings, m)
		}
	}
	if len(withEmbeddings) == 0 {
		return nil
	}

	labels := dbscan(withEmbeddings, cfg.DBSCANEpsilon, cfg.DBSCANMinSamples)

	grouped := map[int][]*types.Memory{}
	for i, label := range labels {
		if label == clusterNoise {
			continue
		}
		grouped[label] = append(grouped[label], withEmbeddings[i])
	}

	clusterIDs := make([]int, 0, len(grouped))
	for id := range grouped {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Ints(clusterIDs)

	summaries := make([]ClusterSummary, 0, len(grouped))
	for _, id := range clusterIDs {
		members := grouped[id]
		summaries = append(summaries, summarizeCluster(members))
	}
	return summaries
}

func summarizeCluster(members []*types.Memory) ClusterSummary {
	hashes := make([]string, 0, len(members))
	minCreated, maxCreated := members[0].CreatedAt, members[0].CreatedAt
	themeCounts := map[string]int{}
	for _, m := range members {
		hashes = append(hashes, m.ContentHash)
		if m.CreatedAt < minCreated {
			minCreated = m.CreatedAt
		}
		if m.CreatedAt > maxCreated {
			maxCreated = m.CreatedAt
		}
		for _, tag := range m.Tags {
			themeCounts[tag]++
		}
	}
	spanDays := (maxCreated - minCreated) / 86400

	themes := topThemes(themeCounts, 5)
	content := fmt.Sprintf(
		"Compressed cluster of %d related memories spanning %.1f days. Themes: %s.",
		len(members), spanDays, strings.Join(themes, ", "),
	)

	metadata := map[string]interface{}{
		"temporal_span":        map[string]interface{}{"span_days": spanDays},
		"source_memory_hashes": hashes,
		"member_count":         len(members),
		"themes":               themes,
	}
	tags := []string{"compressed_cluster"}
	memType := "cluster_summary"
	now := types.NowEpoch(time.Now().UTC())

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

	return ClusterSummary{SourceHashes: hashes, SpanDays: spanDays, Count: len(members), Memory: mem}
}

func topThemes(counts map[string]int, limit int) []string {
	type kv struct {
		tag   string
		count int
	}
	all := make([]kv, 0, len(counts))
	for tag, count := range counts {
		all = append(all, kv{tag, count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].tag < all[j].tag
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]string, 0, len(all))
	for _, kv := range all {
		out = append(out, kv.tag)
	}
	return out
}
