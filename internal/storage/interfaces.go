package storage

import (
	"context"

	"github.com/memvault/memvault/pkg/types"
)

// Store is the capability set a local (C2) or remote (C3) backend must
// implement. The hybrid engine (C4) wraps two Stores; the memory service
// (C5) talks only to this interface, never to a concrete backend, so both
// surfaces get identical behavior regardless of which Store answers.
type Store interface {
	// Initialize opens the backend, applies migrations, and loads any
	// native extensions (e.g. the local store's vector index). Safe to
	// call on an already-initialized backend: existing tables are
	// detected and DDL is skipped (spec §4.2.6).
	Initialize(ctx context.Context) error

	// Store inserts a new memory. If a non-deleted row with the same
	// ContentHash already exists, it returns StoreResult{Success:false,
	// Reason:"duplicate"} and storage.ErrDuplicate, without rewriting. By
	// default UpdatedAt is stamped to now before the row is written; pass
	// StoreOptions{PreserveTimestamps: true} to persist memory's timestamps
	// exactly as given (spec §4.4.3/§4.4.5 sync and reconciliation paths).
	Store(ctx context.Context, memory *types.Memory, opts ...StoreOptions) (*StoreResult, error)

	// UpdateMemory mutates the tags/memory_type/metadata of an existing
	// memory, identified by ContentHash. CreatedAt is always preserved. By
	// default UpdatedAt always advances to now; pass
	// StoreOptions{PreserveTimestamps: true} to persist the UpdatedAt
	// already set on memory instead (spec §4.4.6 drift resolution, §4.5.5
	// preserve_timestamps=false-with-patch).
	UpdateMemory(ctx context.Context, memory *types.Memory, opts ...StoreOptions) error

	// UpdateMemoriesBatch applies UpdateMemory semantics to every item in
	// memories as a single transaction. Implementations must not fall back
	// to a per-item loop of separate transactions (spec §4.6.1 regression
	// guard: batch transactions are required, not merely allowed).
	UpdateMemoriesBatch(ctx context.Context, memories []*types.Memory) ([]BatchResult, error)

	// Delete soft-deletes the memory with the given hash (sets DeletedAt).
	// Returns ErrNotFound only if no row (deleted or not) exists.
	Delete(ctx context.Context, hash string) error

	// DeleteByTag soft-deletes every non-deleted memory carrying tag
	// (exact match) and returns the count affected.
	DeleteByTag(ctx context.Context, tag string) (int, error)

	// DeleteByTags soft-deletes every non-deleted memory matching tags
	// under the given boolean operation.
	DeleteByTags(ctx context.Context, tags []string, op TagOp) (int, error)

	// DeleteByTimeframe soft-deletes memories created within [start,end],
	// optionally restricted to a single tag. Pass an empty tag for no
	// restriction.
	DeleteByTimeframe(ctx context.Context, start, end float64, tag string) (int, error)

	// DeleteBeforeDate soft-deletes memories created before ts, optionally
	// restricted to a single tag.
	DeleteBeforeDate(ctx context.Context, ts float64, tag string) (int, error)

	// GetByHash is an O(1) direct lookup. Tombstoned rows are returned too
	// (Memory.IsDeleted reports them); ErrNotFound means no row exists.
	GetByHash(ctx context.Context, hash string) (*types.Memory, error)

	// GetAllMemories lists non-deleted memories ordered by CreatedAt
	// descending, honoring opts.MemoryType/Tags/TagOp/pagination.
	GetAllMemories(ctx context.Context, opts ListOptions) ([]*types.Memory, error)

	// GetRecentMemories returns the n most recently created memories.
	GetRecentMemories(ctx context.Context, n int) ([]*types.Memory, error)

	// CountAllMemories counts non-deleted memories matching opts at the
	// database level; implementations must not load rows into memory to
	// count them.
	CountAllMemories(ctx context.Context, opts ListOptions) (int64, error)

	// Retrieve embeds queryText via the backend's embedding provider and
	// returns the k nearest memories by cosine similarity.
	Retrieve(ctx context.Context, queryText string, k int) ([]types.MemoryQueryResult, error)

	// Recall combines semantic search with an optional time window. An
	// empty queryText degrades to most-recent-within-window.
	Recall(ctx context.Context, queryText string, k int, timeStart, timeEnd *float64) ([]types.MemoryQueryResult, error)

	// SearchByTag returns non-deleted memories matching tags under op,
	// optionally restricted to a time window.
	SearchByTag(ctx context.Context, tags []string, op TagOp, timeStart, timeEnd *float64) ([]*types.Memory, error)

	// SearchByTimeframe returns non-deleted memories created within
	// [start,end], optionally restricted to a single tag.
	SearchByTimeframe(ctx context.Context, start, end float64, tag string) ([]*types.Memory, error)

	// GetByExactContent returns every non-deleted memory whose Content
	// equals text exactly. Backend-agnostic; does not touch embeddings.
	GetByExactContent(ctx context.Context, text string) ([]*types.Memory, error)

	// GetMemoryTimestamps returns (hash, created_at, updated_at) for every
	// non-deleted memory in a single query, for analytics callers that do
	// not need full bodies.
	GetMemoryTimestamps(ctx context.Context) ([]MemoryTimestamp, error)

	// GetMemoriesUpdatedSince returns non-deleted memories with
	// updated_at > ts, using the numeric index (never an ISO string
	// comparison).
	GetMemoriesUpdatedSince(ctx context.Context, ts float64) ([]*types.Memory, error)

	// GetAllContentHashes returns every content_hash present, including
	// tombstoned rows, for O(1) bulk existence checks during reconciliation.
	GetAllContentHashes(ctx context.Context) (map[string]bool, error)

	// GetStats returns aggregate counts and backend info.
	GetStats(ctx context.Context) (*Stats, error)

	// IsDeleted reports whether hash exists and is tombstoned. Returns
	// ErrNotFound if hash has no row at all.
	IsDeleted(ctx context.Context, hash string) (bool, error)

	// PurgeDeleted physically removes tombstoned rows older than
	// olderThanDays and returns the count removed.
	PurgeDeleted(ctx context.Context, olderThanDays int) (int, error)

	// StoreAssociation inserts a graph edge. Callers are responsible for
	// inserting the reverse edge when the relationship type is symmetric.
	StoreAssociation(ctx context.Context, assoc *types.Association) error

	// FindConnected returns memories reachable from hash within hops edges
	// in the given direction.
	FindConnected(ctx context.Context, hash string, hops int, direction Direction) ([]*types.Memory, error)

	// ShortestPath returns the sequence of content hashes from a to b,
	// inclusive, or ErrNotFound if no path exists within a bounded search.
	ShortestPath(ctx context.Context, a, b string) ([]string, error)

	// GetSubgraph returns every node and edge within radius hops of hash.
	GetSubgraph(ctx context.Context, hash string, radius int) (*Subgraph, error)

	// Close releases any resources (connections, file handles) held by
	// the store.
	Close() error
}

// EmbeddingLister is an optional capability a Store may implement to return
// non-deleted memories joined with their embedding vectors in a single query.
// Consolidation (C6) requires this: spec §4.6.5 calls operating on
// zero-embedding memories a bug, so the consolidator prefers this path and
// only falls back to a per-memory vector fetch when a Store doesn't
// implement it (e.g. a future backend with no vector index at all).
type EmbeddingLister interface {
	GetAllMemoriesWithEmbeddings(ctx context.Context, opts ListOptions) ([]*types.Memory, error)
}

// EmbeddingProvider is the contract C1 implementations expose to C2/C3/C5.
// A given provider instance always reports the same Dimension.
type EmbeddingProvider interface {
	// Embed returns one vector per input text, in order. Deterministic for
	// a given text within a process lifetime; results may be cached by
	// content hash.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector length this provider produces.
	Dimension() int

	// MaxInputChars returns the provider's declared hard input limit, or 0
	// if unset (C5 then falls back to the storage backend's
	// max_content_length).
	MaxInputChars() int

	// Model returns a human-readable model identifier for stats/health
	// reporting.
	Model() string
}
