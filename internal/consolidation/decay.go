package consolidation

import (
	"math"
	"time"

	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/pkg/types"
)

// Quality boost audit metadata keys (spec §4.6.1 step 3).
const (
	keyBoostApplied       = "quality_boost_applied"
	keyBoostDate          = "quality_boost_applied_date"
	keyBoostReason        = "quality_boost_applied_reason"
	keyBoostConnCount     = "quality_boost_applied_connection_count"
	keyBoostOriginalScore = "quality_boost_original_quality_before_boost"
	keyRelevance          = "relevance"
)

// computeRelevance implements the 4-step relevance formula of spec §4.6.1,
// grounded on the teacher's internal/engine/decay.go
// baseScore*2^(-days/halfLife) exponential-decay idiom, generalized from a
// single fixed half-life to cfg.DecayRates's per-memory-type lambda table,
// and composed with the quality-based decay-slowdown/boost step the teacher
// has no equivalent for.
//
// now is passed in rather than read from time.Now() so a full consolidation
// run scores every memory against one consistent instant.
func computeRelevance(cfg Config, mem *types.Memory, connectionCount int, now time.Time) (relevance float64, qualityBoosted bool) {
	ageDays := now.Sub(types.EpochToTime(mem.CreatedAt)).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	lambda := cfg.DecayRates.lambdaFor(mem.MemoryType)

	qualityScore := quality.ScoreOf(mem)
	slowdown := 1.0
	if qualityScore >= cfg.QualityDecayThreshold {
		slowdown = 1.0 / cfg.QualityDecayFactor
	}

	relevance = math.Exp(-lambda * slowdown * ageDays)

	relevance += accessBonus(cfg.AccessTiers, mem, now)

	if cfg.QualityBoostEnabled && connectionCount >= cfg.MinConnectionsForBoost {
		applyQualityBoost(mem, qualityScore, cfg.QualityBoostFactor, connectionCount, now)
		qualityBoosted = true
	}

	return clamp01(relevance), qualityBoosted
}

// accessBonus returns the first (smallest max-age) matching tier's bonus,
// using UTC-aware subtraction throughout per spec §4.6.1's explicit
// naive/aware-datetime regression guard.
func accessBonus(tiers []AccessTier, mem *types.Memory, now time.Time) float64 {
	lastAccessed := quality.LastAccessedOf(mem)
	daysSinceAccess := now.Sub(lastAccessed).Hours() / 24
	if daysSinceAccess < 0 {
		daysSinceAccess = 0
	}
	for _, tier := range tiers {
		if daysSinceAccess < tier.MaxAgeDays {
			return tier.Bonus
		}
	}
	return 0
}

// applyQualityBoost multiplies quality_score by factor (capped at 1.0) and
// records full audit metadata, per spec §4.6.1 step 3.
func applyQualityBoost(mem *types.Memory, currentScore, factor float64, connectionCount int, now time.Time) {
	if mem.Metadata == nil {
		mem.Metadata = map[string]interface{}{}
	}
	boosted := currentScore * factor
	if boosted > 1.0 {
		boosted = 1.0
	}
	mem.Metadata[quality.KeyScore] = boosted
	mem.Metadata[keyBoostApplied] = true
	mem.Metadata[keyBoostDate] = now.UTC().Format(time.RFC3339)
	mem.Metadata[keyBoostReason] = "connection_count_threshold"
	mem.Metadata[keyBoostConnCount] = connectionCount
	mem.Metadata[keyBoostOriginalScore] = currentScore
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
