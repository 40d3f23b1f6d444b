package consolidation

import "time"

// Status reports the consolidator's current scheduler state (spec §4.6.6).
type Status struct {
	Running     bool
	Paused      bool
	LastRun     time.Time
	LastHorizon Horizon
	LastResult  *RunResult
	NextRunAt   time.Time
}

// RunResult summarizes one completed Run (spec §4.6.1-§4.6.4).
type RunResult struct {
	Horizon            Horizon
	StartedAt          time.Time
	FinishedAt         time.Time
	MemoriesScored     int
	QualityBoosted     int
	AssociationsFound  int
	ClustersFound      int
	MemoriesArchived   int
	Err                error
}

// Recommendation is one piece of actionable feedback surfaced by
// Recommendations(), e.g. "N memories are archival-eligible" or "graph
// storage mode X has no effect because quality boost is disabled".
type Recommendation struct {
	Kind    string
	Message string
	Count   int
}
