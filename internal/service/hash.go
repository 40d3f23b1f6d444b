package service

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// computeContentHash implements spec's content_hash formula: SHA-256 over
// content, a NUL separator, and a canonical encoding of the identity-bearing
// metadata subset (memory_type, sorted tags, and metadata, which together
// means two stores of the same text under different tags/type are distinct
// memories rather than colliding as duplicates). encoding/json already
// serializes map keys in sorted order, so the metadata component is
// canonical without a custom encoder. Grounded on the teacher's
// internal/storage/sqlite/memory_store.go, which hashes content alone; this
// extends that to cover the identity fields the spec adds.
func computeContentHash(content, memoryType string, tags []string, metadata map[string]interface{}) string {
	return ComputeContentHash(content, memoryType, tags, metadata)
}

// ComputeContentHash is the exported form of the identity-hash formula, so
// callers that synthesize Memory records outside the Service layer (e.g.
// consolidation's compressed-cluster and association memories) stay
// consistent with the same content_hash derivation.
func ComputeContentHash(content, memoryType string, tags []string, metadata map[string]interface{}) string {
	sortedTags := append([]string(nil), tags...)
	sort.Strings(sortedTags)

	subset := struct {
		MemoryType string                 `json:"memory_type,omitempty"`
		Tags       []string               `json:"tags,omitempty"`
		Metadata   map[string]interface{} `json:"metadata,omitempty"`
	}{MemoryType: memoryType, Tags: sortedTags, Metadata: metadata}

	canonical, err := json.Marshal(subset)
	if err != nil {
		// Metadata is always JSON-scalar-or-short-object (validated on the
		// way in); a marshal failure here means a caller bypassed that
		// validation. Fall back to a stable, if less informative, hash
		// rather than panicking.
		canonical = []byte(memoryType)
	}

	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write(canonical)
	return fmt.Sprintf("%x", h.Sum(nil))
}
