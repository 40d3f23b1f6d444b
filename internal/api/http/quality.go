package http

import (
	"net/http"
	"strings"

	"github.com/memvault/memvault/internal/quality"
)

type qualityRateBody struct {
	Rating   float64 `json:"rating"`
	Feedback string  `json:"feedback"`
}

// handleQualityRate implements POST /api/quality/memories/{hash}/rate: runs
// the configured quality.Provider against the memory and persists the score
// (spec §6.3). The request body's rating and feedback are decoded but not
// used: the stored score is always the provider's.
func (s *Server) handleQualityRate(w http.ResponseWriter, r *http.Request, hash string) {
	var body qualityRateBody
	_ = decodeJSON(r, &body) // body is optional; an empty rate re-scores via the provider

	outcome, serr := s.svc.RateMemory(r.Context(), hash, s.qualityProvider)
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "memory": toWireMemory(outcome.Memory)})
}

// handleQualityEvaluate implements POST /api/quality/memories/{hash}/evaluate:
// returns the memory's stored quality score and tier without rescoring or
// writing anything (spec §6.3 — distinguished from "rate" which rescores and
// writes metadata.quality_* back).
func (s *Server) handleQualityEvaluate(w http.ResponseWriter, r *http.Request, hash string) {
	outcome, serr := s.svc.GetQuality(r.Context(), hash)
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"quality_score": quality.ScoreOf(outcome.Memory),
		"tier":          string(quality.TierOf(quality.ScoreOf(outcome.Memory))),
	})
}

// handleQualityDistribution implements GET /api/quality/distribution.
func (s *Server) handleQualityDistribution(w http.ResponseWriter, r *http.Request) {
	outcome, serr := s.svc.AnalyzeQuality(r.Context())
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	dist := map[string]int{}
	for tier, count := range outcome.Distribution {
		dist[string(tier)] = count
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"distribution":  dist,
		"average_score": outcome.AverageScore,
	})
}

// handleQualityTrends implements GET /api/quality/trends: currently the
// same aggregate the distribution endpoint reports, since spec.md does not
// define a historical quality-trend data model beyond the capped 3-entry
// metadata history already carried on each memory (spec §6.3).
func (s *Server) handleQualityTrends(w http.ResponseWriter, r *http.Request) {
	s.handleQualityDistribution(w, r)
}

// qualityMemoryResource dispatches /api/quality/memories/{hash}/rate and
// /evaluate by trailing path segment.
func (s *Server) qualityMemoryResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/quality/memories/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		respondError(w, http.StatusNotFound, "not found", nil)
		return
	}
	hash, action := parts[0], parts[1]
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	switch action {
	case "rate":
		s.handleQualityRate(w, r, hash)
	case "evaluate":
		s.handleQualityEvaluate(w, r, hash)
	default:
		respondError(w, http.StatusNotFound, "not found", nil)
	}
}
