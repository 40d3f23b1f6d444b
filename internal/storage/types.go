package storage

import "github.com/memvault/memvault/pkg/types"

// TagOp selects boolean combination semantics for multi-tag queries
// (spec §4.2.3).
type TagOp string

const (
	TagOpAND TagOp = "AND"
	TagOpOR  TagOp = "OR"
)

// Direction selects which edges FindConnected follows relative to the
// starting hash.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// ListOptions bounds and filters GetAllMemories/CountAllMemories. Zero value
// means "no filter" for every optional field; Normalize applies defaults.
type ListOptions struct {
	Limit      int
	Offset     int
	MemoryType string
	Tags       []string
	TagOp      TagOp
	TimeStart  *float64
	TimeEnd    *float64
}

// Normalize clamps Limit/Offset and defaults TagOp.
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.TagOp != TagOpAND && o.TagOp != TagOpOR {
		o.TagOp = TagOpOR
	}
}

// Stats is the shape returned by GetStats, identical across C2 and C3 so C5
// can report health without knowing which backend answered (spec §4.3,
// "Health check").
type Stats struct {
	TotalMemories   int64
	CreatedThisWeek int64
	UniqueTagCount  int64
	DBSizeBytes     int64
	EmbeddingModel  string
	EmbeddingDim    int
}

// MemoryTimestamp is the lightweight row returned by GetMemoryTimestamps,
// used for analytics without loading full Memory bodies.
type MemoryTimestamp struct {
	ContentHash string
	CreatedAt   float64
	UpdatedAt   float64
}

// Subgraph is the result of GetSubgraph: every node and edge within radius
// hops of a starting hash.
type Subgraph struct {
	Hashes []string
	Edges  []types.Association
}

// StoreResult reports the outcome of a single Store call. Reason is set
// only when Success is false (currently always "duplicate").
type StoreResult struct {
	Success     bool
	Reason      string
	ContentHash string
}

// BatchResult reports the per-item outcome of UpdateMemoriesBatch.
type BatchResult struct {
	ContentHash string
	Err         error
}

// StoreOptions customizes how Store/UpdateMemory persist a memory's
// timestamps. The zero value is the default write path: UpdatedAt (and its
// ISO mirror) is stamped to the current time before the row is written.
type StoreOptions struct {
	// PreserveTimestamps, when true, persists memory's CreatedAt/UpdatedAt
	// (and their ISO mirrors) exactly as the caller set them instead of
	// stamping UpdatedAt to now. Required whenever the caller is the source
	// of truth for those timestamps rather than the party performing the
	// write: hybrid sync mirroring a primary write to the secondary (spec
	// §4.4.3), initial reconciliation inserting a remote-only memory (spec
	// §4.4.5), drift detection propagating the winning side's updated_at
	// (spec §4.4.6), and a metadata update that already computed its own
	// UpdatedAt under preserve_timestamps=false (spec §4.5.5).
	PreserveTimestamps bool
}

// ResolveStoreOptions returns the effective options for a variadic opts
// parameter: the zero value if opts is empty, otherwise its first element.
func ResolveStoreOptions(opts []StoreOptions) StoreOptions {
	if len(opts) > 0 {
		return opts[0]
	}
	return StoreOptions{}
}
