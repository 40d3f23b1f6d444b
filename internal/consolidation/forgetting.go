package consolidation

import (
	"time"

	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/pkg/types"
)

const keyArchived = "archived"

// forgettingEligible reports whether mem should be archived: relevance below
// threshold, idle for at least MinIdleDays, and not protected by its quality
// retention tier (spec §4.6.4).
func forgettingEligible(cfg Config, mem *types.Memory, relevance float64, now time.Time) bool {
	if relevance >= cfg.ForgettingRelevanceThreshold {
		return false
	}
	idleDays := now.Sub(quality.LastAccessedOf(mem)).Hours() / 24
	if idleDays < cfg.ForgettingMinIdleDays {
		return false
	}
	retention := quality.DefaultRetentionDays()
	if retention.Protected(mem, idleDays) {
		return false
	}
	return true
}

// archive marks mem as archived in place (spec §4.6.4): excluded from
// default retrieval, still queryable via an explicit flag, never physically
// removed (archival is not deletion).
func archive(mem *types.Memory, now time.Time) {
	if mem.Metadata == nil {
		mem.Metadata = map[string]interface{}{}
	}
	mem.Metadata[keyArchived] = true
	mem.Metadata["archived_at"] = now.UTC().Format(time.RFC3339)
	mem.StampUpdated(now)
}

// IsArchived reports whether mem carries the archived flag.
func IsArchived(mem *types.Memory) bool {
	if mem == nil || mem.Metadata == nil {
		return false
	}
	v, _ := mem.Metadata[keyArchived].(bool)
	return v
}
