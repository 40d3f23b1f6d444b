package http

import (
	"net/http"

	"github.com/memvault/memvault/internal/consolidation"
)

// requireConsolidator resolves s.consolidator or writes a 404 when no
// consolidation engine is wired into this deployment (spec §4.6.6: "runs
// inside that process" — a deployment without one simply has no surface).
func (s *Server) requireConsolidator(w http.ResponseWriter) (*consolidation.Consolidator, bool) {
	if s.consolidator == nil {
		respondError(w, http.StatusNotFound, "consolidation is not enabled on this deployment", nil)
		return nil, false
	}
	return s.consolidator, true
}

// handleConsolidationStatus implements GET /api/consolidation/status.
func (s *Server) handleConsolidationStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requireConsolidator(w)
	if !ok {
		return
	}
	status := c.Status()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"running":      status.Running,
		"paused":       status.Paused,
		"last_horizon": status.LastHorizon,
		"next_run_at":  status.NextRunAt.Unix(),
	})
}

type consolidationRunBody struct {
	Horizon string `json:"horizon"`
}

// handleConsolidationRun implements POST /api/consolidation/run.
func (s *Server) handleConsolidationRun(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requireConsolidator(w)
	if !ok {
		return
	}
	var body consolidationRunBody
	_ = decodeJSON(r, &body)
	horizon := consolidation.Horizon(body.Horizon)
	if horizon == "" {
		horizon = consolidation.HorizonDaily
	}

	result, err := c.Trigger(r.Context(), horizon)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "consolidation run failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"memories_scored":    result.MemoriesScored,
		"quality_boosted":    result.QualityBoosted,
		"associations_found": result.AssociationsFound,
		"clusters_found":     result.ClustersFound,
		"memories_archived":  result.MemoriesArchived,
	})
}

// handleConsolidationRecommendations implements GET /api/consolidation/recommendations.
func (s *Server) handleConsolidationRecommendations(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requireConsolidator(w)
	if !ok {
		return
	}
	recs, err := c.Recommendations(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute recommendations", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "recommendations": recs})
}
