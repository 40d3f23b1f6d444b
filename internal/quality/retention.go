package quality

import (
	"time"

	"github.com/memvault/memvault/pkg/types"
)

// Tier names a retention band by quality_score (spec §6.3).
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// RetentionDays maps a Tier to its default retention window.
type RetentionDays struct {
	High   int
	Medium int
	Low    int
}

// DefaultRetentionDays returns the spec's documented defaults: high 365d,
// medium 180d, low 30-90d (the low end of the low-tier range is used as the
// conservative default; operators needing the full 90d window can override).
func DefaultRetentionDays() RetentionDays {
	return RetentionDays{High: 365, Medium: 180, Low: 30}
}

// TierOf classifies a quality_score into a retention tier (spec §6.3
// boundaries: high >= 0.7, medium [0.5, 0.7), low < 0.5).
func TierOf(score float64) Tier {
	switch {
	case score >= 0.7:
		return TierHigh
	case score >= 0.5:
		return TierMedium
	default:
		return TierLow
	}
}

// RetentionDaysFor returns how many days a memory scored at score should be
// retained before it becomes forgetting-eligible, per d.
func (d RetentionDays) RetentionDaysFor(score float64) int {
	switch TierOf(score) {
	case TierHigh:
		return d.High
	case TierMedium:
		return d.Medium
	default:
		return d.Low
	}
}

// Protected reports whether mem's retention tier still protects it from
// archival at idleDays of inactivity, gating the relevance/idle-based
// eligibility check in spec §4.6.4: "high-quality memories are protected
// longer."
func (d RetentionDays) Protected(mem *types.Memory, idleDays float64) bool {
	score := ScoreOf(mem)
	return idleDays < float64(d.RetentionDaysFor(score))
}

// ToRecord converts the quality_* fields stored in mem.Metadata into a
// Record, for handing to Encode when syncing to a size-capped remote store.
func ToRecord(mem *types.Memory) Record {
	rec := Record{
		Score:        ScoreOf(mem),
		AccessCount:  AccessCountOf(mem),
		LastAccessed: LastAccessedOf(mem),
	}
	if mem.Metadata == nil {
		return rec
	}
	if p, ok := mem.Metadata[KeyProvider].(string); ok {
		rec.Provider = p
	}
	if c, ok := mem.Metadata[KeyConfidence].(float64); ok {
		rec.Confidence = c
	}
	if s, ok := mem.Metadata[KeyCalculatedAt].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			rec.CalculatedAt = t.UTC()
		}
	}
	if raw, ok := mem.Metadata[KeyHistory].([]interface{}); ok {
		for _, e := range raw {
			entry, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			var h HistoryEntry
			if s, ok := entry["score"].(float64); ok {
				h.Score = s
			}
			if ts, ok := entry["calculated_at"].(string); ok {
				if t, err := time.Parse(time.RFC3339, ts); err == nil {
					h.CalculatedAt = t.UTC()
				}
			}
			rec.History = append(rec.History, h)
		}
	}
	return rec
}

// FromRecord writes rec's fields back onto mem.Metadata, the inverse of
// ToRecord, used when decoding a CSV-compressed quality blob read back from
// a remote store.
func FromRecord(mem *types.Memory, rec Record) {
	if mem.Metadata == nil {
		mem.Metadata = map[string]interface{}{}
	}
	mem.Metadata[KeyScore] = rec.Score
	mem.Metadata[KeyProvider] = rec.Provider
	mem.Metadata[KeyConfidence] = rec.Confidence
	mem.Metadata[KeyCalculatedAt] = formatTime(rec.CalculatedAt)
	mem.Metadata[KeyAccessCount] = rec.AccessCount
	mem.Metadata[KeyLastAccessed] = formatTime(rec.LastAccessed)
	if len(rec.History) > 0 {
		hist := make([]interface{}, 0, len(rec.History))
		for _, h := range rec.History {
			hist = append(hist, map[string]interface{}{
				"score":         h.Score,
				"calculated_at": formatTime(h.CalculatedAt),
			})
		}
		mem.Metadata[KeyHistory] = hist
	}
}
