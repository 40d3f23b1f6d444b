package http

import (
	"net/http"
	"runtime"
)

// handleHealth implements GET /api/health: a minimal liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report, serr := s.svc.HealthCheck(r.Context())
	if serr != nil {
		respondError(w, http.StatusInternalServerError, serr.Error(), serr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "ok", "connected": report.Connected})
}

// handleHealthDetailed implements GET /api/health/detailed (spec §6.2): adds
// backend type, memory count, DB size, embedding model/dim, platform,
// uptime, and (hybrid only) sync status.
func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	report, serr := s.svc.HealthCheck(r.Context())
	if serr != nil {
		respondError(w, http.StatusInternalServerError, serr.Error(), serr)
		return
	}

	resp := map[string]interface{}{
		"success":         true,
		"backend":         report.BackendKind,
		"connected":       report.Connected,
		"memory_count":    report.MemoryCount,
		"db_size_bytes":   report.DBSizeBytes,
		"embedding_model": report.EmbeddingModel,
		"embedding_dim":   report.EmbeddingDim,
		"platform":        runtime.GOOS + "/" + runtime.GOARCH,
		"uptime_seconds":  report.UptimeSeconds,
	}
	if report.SyncStatus != nil {
		resp["sync_status"] = syncStatusWire(report.SyncStatus)
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleStats implements GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, serr := s.svc.Stats(r.Context())
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"total_memories":    stats.TotalMemories,
		"created_this_week": stats.CreatedThisWeek,
		"unique_tag_count":  stats.UniqueTagCount,
		"db_size_bytes":     stats.DBSizeBytes,
		"embedding_model":   stats.EmbeddingModel,
		"embedding_dim":     stats.EmbeddingDim,
	})
}
