package http

import (
	"net/http"
	"time"

	"github.com/memvault/memvault/internal/storage"
)

// handleAnalyticsOverview implements GET /api/analytics/overview: aggregate
// counts pushed down to storage.CountAllMemories, never sampled (spec
// §6.2: "must never sample").
func (s *Server) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	total, serr := s.svc.Count(r.Context(), storage.ListOptions{})
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "total_memories": total})
}

// handleAnalyticsTimeline implements GET /api/analytics/timeline?start=&end=,
// bucketing GetMemoryTimestamps by day, pushed down to the storage layer's
// single optimized timestamp query rather than loading full memory bodies.
func (s *Server) handleAnalyticsTimeline(w http.ResponseWriter, r *http.Request) {
	rows, serr := s.svc.Timestamps(r.Context())
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}

	buckets := map[string]int{}
	for _, row := range rows {
		day := time.Unix(int64(row.CreatedAt), 0).UTC().Format("2006-01-02")
		buckets[day]++
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "buckets": buckets})
}

// handleAnalyticsByType implements GET /api/analytics/by-type?memory_type=,
// a thin wrapper over Count with a memory_type filter applied at the
// storage layer.
func (s *Server) handleAnalyticsByType(w http.ResponseWriter, r *http.Request) {
	memoryType := r.URL.Query().Get("memory_type")
	n, serr := s.svc.Count(r.Context(), storage.ListOptions{MemoryType: memoryType})
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "memory_type": memoryType, "count": n})
}
