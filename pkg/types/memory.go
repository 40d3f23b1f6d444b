// Package types defines the core data structures shared across memvault's
// storage, service, and transport layers.
package types

import "time"

// Memory is the fundamental stored unit: a piece of content addressed by the
// SHA-256 hash of its body, carrying an embedding vector, free-form tags and
// metadata, and the timestamp pair used for decay and sync conflict
// resolution.
type Memory struct {
	// ContentHash is the primary identity of the memory: SHA-256 over
	// content || "\x00" || a canonical subset of metadata. Immutable after
	// creation — any change that would alter it is modeled as delete+create.
	ContentHash string `json:"content_hash"`

	// Content is the raw memory text. Never empty for a stored memory.
	Content string `json:"content"`

	// Tags are exact-match labels, each at most 100 characters.
	Tags []string `json:"tags,omitempty"`

	// MemoryType is a free-form classification label (e.g. "note", "decision").
	MemoryType string `json:"memory_type,omitempty"`

	// Metadata holds arbitrary JSON-scalar-or-short-object values. Reserved
	// keys are documented alongside the packages that use them: chunking
	// (is_chunk, chunk_index, total_chunks, original_length), quality
	// (quality_score, quality_provider, ...), and consolidation
	// (quality_boost_applied, archived, ...).
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Embedding is the fixed-dimension vector produced by an EmbeddingProvider.
	// Nil until computed.
	Embedding []float32 `json:"embedding,omitempty"`

	// CreatedAt/UpdatedAt are UTC seconds since epoch. CreatedAt is never
	// overwritten by a metadata update; UpdatedAt always advances on mutation.
	CreatedAt float64 `json:"created_at"`
	UpdatedAt float64 `json:"updated_at"`

	// *ISO mirror the float fields in RFC3339 UTC. On any mismatch the float
	// form is authoritative and the ISO form must be recomputed from it.
	CreatedAtISO string `json:"created_at_iso"`
	UpdatedAtISO string `json:"updated_at_iso"`

	// DeletedAt is non-nil once the memory is soft-deleted (a tombstone). A
	// tombstoned memory is excluded from every user-visible read path but
	// remains visible to synchronization and purge code.
	DeletedAt *float64 `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether m carries a tombstone.
func (m *Memory) IsDeleted() bool {
	return m != nil && m.DeletedAt != nil
}

// Touch stamps CreatedAt/UpdatedAt (and their ISO mirrors) to now for a
// brand-new memory. Existing memories must instead advance only UpdatedAt —
// see StampUpdated.
func (m *Memory) Touch(now time.Time) {
	sec := timeToEpoch(now)
	m.CreatedAt = sec
	m.UpdatedAt = sec
	m.CreatedAtISO = timeToISO(now)
	m.UpdatedAtISO = m.CreatedAtISO
}

// StampUpdated advances UpdatedAt/UpdatedAtISO to now without touching
// CreatedAt. This is the only timestamp mutation a metadata update may
// perform.
func (m *Memory) StampUpdated(now time.Time) {
	m.UpdatedAt = timeToEpoch(now)
	m.UpdatedAtISO = timeToISO(now)
}

// SyncISO recomputes the *_iso fields from the float epoch fields, which are
// always authoritative. Call after any path that sets the float fields
// directly (e.g. scanning from a database row) so the two representations
// never drift apart beyond rounding.
func (m *Memory) SyncISO() {
	m.CreatedAtISO = epochToISO(m.CreatedAt)
	m.UpdatedAtISO = epochToISO(m.UpdatedAt)
}

func timeToEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeToISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func epochToISO(sec float64) string {
	return timeToISO(epochToTime(sec))
}

func epochToTime(sec float64) time.Time {
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*1e9)).UTC()
}

// EpochToTime converts a float UTC-seconds timestamp to a time.Time, for
// callers outside this package doing arithmetic on Memory timestamps (decay,
// drift detection, retention).
func EpochToTime(sec float64) time.Time {
	return epochToTime(sec)
}

// NowEpoch returns t as float UTC seconds, matching the representation used
// by Memory.CreatedAt/UpdatedAt/DeletedAt.
func NowEpoch(t time.Time) float64 {
	return timeToEpoch(t)
}

// MemoryQueryResult wraps a Memory returned from a similarity or recall
// query together with its score. SimilarityScore is always in [0,1] (higher
// is more similar); Distance is the backend-native distance value and is
// informational only.
type MemoryQueryResult struct {
	Memory          *Memory  `json:"memory"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
	Distance        *float64 `json:"distance,omitempty"`
}
