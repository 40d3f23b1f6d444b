package consolidation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/types"
)

func vec(vals ...float32) []float32 { return vals }

func TestDbscanGroupsDenseNeighborsAndMarksNoise(t *testing.T) {
	memories := []*types.Memory{
		{ContentHash: "a", Embedding: vec(1, 0, 0, 0)},
		{ContentHash: "b", Embedding: vec(0.99, 0.01, 0, 0)},
		{ContentHash: "c", Embedding: vec(0.98, 0.02, 0, 0)},
		{ContentHash: "d", Embedding: vec(0.97, 0.03, 0, 0)},
		{ContentHash: "e", Embedding: vec(0.96, 0.04, 0, 0)},
		{ContentHash: "noise", Embedding: vec(0, 0, 0, 1)},
	}

	labels := dbscan(memories, 0.05, 5)
	require.Equal(t, clusterNoise, labels[5])
	cluster := labels[0]
	require.NotEqual(t, clusterNoise, cluster)
	for i := 0; i < 5; i++ {
		require.Equal(t, cluster, labels[i])
	}
}

func TestClusterMemoriesSynthesizesCompressedClusterMemory(t *testing.T) {
	memories := make([]*types.Memory, 0, 6)
	now := types.NowEpoch(time.Now().UTC())
	for i := 0; i < 6; i++ {
		memories = append(memories, &types.Memory{
			ContentHash: string(rune('a' + i)),
			Content:     "clustered note",
			MemoryType:  "standard",
			Tags:        []string{"project-x"},
			Embedding:   vec(1, float32(i)*0.001, 0, 0),
			CreatedAt:   now - float64(i*3600),
		})
	}

	cfg := DefaultConfig()
	cfg.DBSCANEpsilon = 0.01
	cfg.DBSCANMinSamples = 5

	summaries := clusterMemories(memories, cfg)
	require.Len(t, summaries, 1)
	require.Equal(t, 6, summaries[0].Count)
	require.Contains(t, summaries[0].Memory.Tags, "compressed_cluster")
	require.Len(t, summaries[0].Memory.Metadata["source_memory_hashes"], 6)
}

func TestClusterMemoriesSkipsMemoriesWithoutEmbeddings(t *testing.T) {
	memories := []*types.Memory{
		{ContentHash: "x", Embedding: nil},
	}
	summaries := clusterMemories(memories, DefaultConfig())
	require.Empty(t, summaries)
}
