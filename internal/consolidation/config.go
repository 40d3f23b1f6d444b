// Package consolidation implements the Consolidation Engine (C6): exponential
// decay relevance scoring, creative association discovery, DBSCAN-based
// semantic clustering, statistical compression of clusters, and controlled
// forgetting with archival (spec §4.6).
//
// Grounded on the teacher's internal/engine/decay.go and decay_manager.go
// (half-life/lambda decay formula, access-count boost, write-back-only-if-
// changed-enough threshold), generalized from the teacher's single fixed
// half-life to spec §4.6.1's per-memory-type lambda table, and on
// internal/engine/types.go's Config/Validate idiom for the scheduler
// configuration. DBSCAN clustering has no teacher precedent and is built
// fresh against the general shape of a background-job engine.
package consolidation

import "time"

// Horizon selects how far back / how aggressively a consolidation Run
// operates, mirroring the MCP_SCHEDULE_DAILY/WEEKLY/MONTHLY configuration
// keys (spec §6.4) and the memory_consolidate tool's horizon parameter
// (spec §6.1).
type Horizon string

const (
	HorizonDaily   Horizon = "daily"
	HorizonWeekly  Horizon = "weekly"
	HorizonMonthly Horizon = "monthly"
)

// GraphStorageMode selects how discovered associations are persisted (spec
// §4.6.2, Open Question 3 / SPEC_FULL.md §E.3).
type GraphStorageMode string

const (
	// GraphModeMemoriesOnly creates Memory records representing associations
	// (the legacy shape some callers may still depend on).
	GraphModeMemoriesOnly GraphStorageMode = "memories_only"
	// GraphModeGraphOnly writes only edges into the memory_graph table.
	GraphModeGraphOnly GraphStorageMode = "graph_only"
	// GraphModeDualWrite writes both, to support a migration window.
	GraphModeDualWrite GraphStorageMode = "dual_write"
)

// DecayRates maps a memory_type to its decay lambda (1/half-life-in-days).
// Defaults per spec §4.6.1: critical 1/365, reference 1/180, standard 1/30,
// temporary 1/7.
type DecayRates map[string]float64

// DefaultDecayRates returns the spec's default per-type decay lambdas.
func DefaultDecayRates() DecayRates {
	return DecayRates{
		"critical":  1.0 / 365.0,
		"reference": 1.0 / 180.0,
		"standard":  1.0 / 30.0,
		"temporary": 1.0 / 7.0,
	}
}

// lambdaFor returns the configured lambda for memType, falling back to
// "standard" for any type not explicitly listed.
func (d DecayRates) lambdaFor(memType string) float64 {
	if l, ok := d[memType]; ok {
		return l
	}
	return d["standard"]
}

// AccessTier is one step of the access-recency bonus ladder (spec §4.6.1
// step 2): a memory accessed within MaxAgeDays of now gets +Bonus, the
// first matching (smallest MaxAgeDays) tier wins.
type AccessTier struct {
	MaxAgeDays float64
	Bonus      float64
}

// DefaultAccessTiers returns the spec's example tiers: <7d +0.15, <14d +0.10,
// <30d +0.05.
func DefaultAccessTiers() []AccessTier {
	return []AccessTier{
		{MaxAgeDays: 7, Bonus: 0.15},
		{MaxAgeDays: 14, Bonus: 0.10},
		{MaxAgeDays: 30, Bonus: 0.05},
	}
}

// Config bounds every tunable the consolidation engine exposes, mirroring
// the MCP_CONSOLIDATION_* environment keys in spec §6.4.
type Config struct {
	// DecayRates maps memory_type -> lambda (spec §4.6.1 step 1).
	DecayRates DecayRates
	// AccessTiers is the access-boost ladder (spec §4.6.1 step 2).
	AccessTiers []AccessTier

	// QualityDecayThreshold/-Factor implement spec §4.6.1 step 3's "quality
	// >= threshold decays `Factor`x slower" rule.
	QualityDecayThreshold float64
	QualityDecayFactor    float64

	// MinConnectionsForBoost/QualityBoostFactor implement the connection-
	// count based quality boost (spec §4.6.1 step 3, MCP_CONSOLIDATION_
	// MIN_CONNECTIONS_FOR_BOOST / _QUALITY_BOOST_FACTOR).
	MinConnectionsForBoost int
	QualityBoostFactor     float64
	QualityBoostEnabled    bool

	// CreativeBandMin/Max bound the "creative" similarity band associations
	// are drawn from (spec §4.6.2), default [0.3, 0.7].
	CreativeBandMin float64
	CreativeBandMax float64
	// MaxCandidatesPerMemory bounds how many neighbors are sampled per
	// memory during association discovery, to keep a pass O(N*C) rather
	// than O(N^2) on large stores.
	MaxCandidatesPerMemory int

	// GraphStorageMode selects association persistence (spec §4.6.2).
	GraphStorageMode GraphStorageMode

	// DBSCANEpsilon/MinSamples configure semantic clustering (spec §4.6.3).
	// Epsilon is a cosine-distance radius; MinSamples must be >= 5 per spec.
	DBSCANEpsilon  float64
	DBSCANMinSamples int

	// ForgettingRelevanceThreshold/MinIdleDays gate archival eligibility
	// (spec §4.6.4): relevance < threshold AND idle >= MinIdleDays.
	ForgettingRelevanceThreshold float64
	ForgettingMinIdleDays        float64

	// BatchSize bounds how many memories are sent to UpdateMemoriesBatch in
	// one transaction (spec §4.6.1: "single batch transaction").
	BatchSize int

	// RelevanceWriteThreshold skips a write-back when the new relevance
	// hasn't moved enough to matter (mirrors the teacher's
	// decayScoreThreshold).
	RelevanceWriteThreshold float64
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		DecayRates:                   DefaultDecayRates(),
		AccessTiers:                  DefaultAccessTiers(),
		QualityDecayThreshold:        0.7,
		QualityDecayFactor:           3.0,
		MinConnectionsForBoost:       5,
		QualityBoostFactor:           1.2,
		QualityBoostEnabled:          true,
		CreativeBandMin:              0.3,
		CreativeBandMax:              0.7,
		MaxCandidatesPerMemory:       25,
		GraphStorageMode:             GraphModeGraphOnly,
		DBSCANEpsilon:                0.35,
		DBSCANMinSamples:             5,
		ForgettingRelevanceThreshold: 0.1,
		ForgettingMinIdleDays:        90,
		BatchSize:                    500,
		RelevanceWriteThreshold:      0.001,
	}
}

// Validate reports a config error, mirroring the teacher's
// engine.Config.Validate idiom.
func (c *Config) Validate() error {
	if c.DBSCANMinSamples < 5 {
		return errMinSamplesTooLow
	}
	if c.CreativeBandMin >= c.CreativeBandMax {
		return errCreativeBandInverted
	}
	if c.BatchSize < 1 {
		c.BatchSize = 500
	}
	return nil
}

// HorizonInterval maps a Horizon to the scheduler tick it represents.
func HorizonInterval(h Horizon) time.Duration {
	switch h {
	case HorizonDaily:
		return 24 * time.Hour
	case HorizonWeekly:
		return 7 * 24 * time.Hour
	case HorizonMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
