// Package quality implements the pluggable quality-scoring surface (spec
// §6.3): an interface producing a quality_score in [0,1] plus ancillary
// metadata, a default implicit (no-network) provider, an opt-in AI provider,
// a CSV compression codec for syncing quality metadata to a remote store
// under a hard size cap, and the retention-tier lookup consolidation's
// forgetting logic consults.
//
// Grounded on the teacher's internal/llm provider-interface idiom
// (internal/llm/interfaces.go's TextGenerator contract + factory.go's
// string-switch construction), narrowed to a single Score method instead of
// generation/extraction.
package quality

import (
	"context"
	"time"

	"github.com/memvault/memvault/pkg/types"
)

// Metadata keys this package reads/writes on Memory.Metadata (spec §6.3).
const (
	KeyScore        = "quality_score"
	KeyProvider     = "quality_provider"
	KeyConfidence   = "quality_confidence"
	KeyCalculatedAt = "quality_calculated_at"
	KeyAccessCount  = "access_count"
	KeyLastAccessed = "last_accessed_at"
	KeyHistory      = "quality_history"
)

// maxHistoryEntries caps quality_history at the 3 most recent entries (spec
// §6.3), not including debug-only components.
const maxHistoryEntries = 3

// Result is what a Provider produces for a single memory.
type Result struct {
	Score        float64
	Confidence   float64
	Provider     string
	CalculatedAt time.Time
}

// Provider computes a quality score for a memory. ConnectionCount is the
// number of graph associations the memory currently has, since some
// providers (implicit) fold connectivity into the score.
type Provider interface {
	// Score returns a Result for mem. Must not mutate mem.
	Score(ctx context.Context, mem *types.Memory, connectionCount int) (*Result, error)
	// Name identifies the provider for quality_provider/short-code encoding.
	Name() string
}

// Apply writes a Result onto mem.Metadata, pushing the previous quality_score
// (if any) onto a capped quality_history, per spec §6.3.
func Apply(mem *types.Memory, res *Result) {
	if mem.Metadata == nil {
		mem.Metadata = map[string]interface{}{}
	}
	if prevScore, ok := mem.Metadata[KeyScore]; ok {
		pushHistory(mem, prevScore, mem.Metadata[KeyCalculatedAt])
	}
	mem.Metadata[KeyScore] = res.Score
	mem.Metadata[KeyProvider] = res.Provider
	mem.Metadata[KeyConfidence] = res.Confidence
	mem.Metadata[KeyCalculatedAt] = res.CalculatedAt.UTC().Format(time.RFC3339)
}

func pushHistory(mem *types.Memory, score, calculatedAt interface{}) {
	raw, _ := mem.Metadata[KeyHistory].([]interface{})
	entry := map[string]interface{}{"score": score, "calculated_at": calculatedAt}
	raw = append(raw, entry)
	if len(raw) > maxHistoryEntries {
		raw = raw[len(raw)-maxHistoryEntries:]
	}
	mem.Metadata[KeyHistory] = raw
}

// ScoreOf reads the current quality_score from mem.Metadata, defaulting to 0
// if absent or not a float64 (e.g. freshly unmarshaled JSON numbers decode
// as float64, so this is the common case; a missing key just means "never
// scored").
func ScoreOf(mem *types.Memory) float64 {
	if mem == nil || mem.Metadata == nil {
		return 0
	}
	if v, ok := mem.Metadata[KeyScore]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}

// AccessCountOf reads access_count, defaulting to 0.
func AccessCountOf(mem *types.Memory) int {
	if mem == nil || mem.Metadata == nil {
		return 0
	}
	switch v := mem.Metadata[KeyAccessCount].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// LastAccessedOf reads last_accessed_at as a UTC time.Time, falling back to
// createdAt when absent — mirroring the teacher's DecayManager.refTime
// fallback-to-CreatedAt idiom, kept UTC-aware throughout per spec §4.6.1's
// explicit "mixing naive and aware datetimes is a bug" regression guard.
func LastAccessedOf(mem *types.Memory) time.Time {
	if mem != nil && mem.Metadata != nil {
		if s, ok := mem.Metadata[KeyLastAccessed].(string); ok && s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t.UTC()
			}
		}
	}
	return types.EpochToTime(mem.CreatedAt).UTC()
}
