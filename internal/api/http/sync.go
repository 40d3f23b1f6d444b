package http

import (
	"net/http"

	"github.com/memvault/memvault/internal/hybrid"
)

// syncStatusWire shapes a hybrid.SyncStatus into the REST envelope
// (spec §4.4.9).
func syncStatusWire(st *hybrid.SyncStatus) map[string]interface{} {
	resp := map[string]interface{}{
		"service_up":       st.ServiceUp,
		"paused":           st.Paused,
		"actively_syncing": st.ActivelySyncing,
		"pending":          st.Pending,
		"failed":           st.Failed,
		"owner":            string(st.Owner),
		"is_owner":         st.IsOwner,
	}
	if st.LastSuccessAt != nil {
		resp["last_success_at"] = st.LastSuccessAt.Unix()
	}
	return resp
}

// requireHybrid resolves the hybrid engine backing s.svc, or writes a 404
// and returns false when the active backend is not hybrid (spec §4.4.8:
// "hybrid-only; return 404/400 on non-hybrid backends").
func (s *Server) requireHybrid(w http.ResponseWriter) (*hybrid.Engine, bool) {
	if s.hybridEngine == nil {
		respondError(w, http.StatusNotFound, "sync control requires a hybrid storage backend", nil)
		return nil, false
	}
	return s.hybridEngine, true
}

// handleSyncStatus implements GET /api/sync/status.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.requireHybrid(w)
	if !ok {
		return
	}
	status := engine.GetSyncStatus()
	resp := syncStatusWire(&status)
	resp["success"] = true
	respondJSON(w, http.StatusOK, resp)
}

// handleSyncPause implements POST /api/sync/pause.
func (s *Server) handleSyncPause(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.requireHybrid(w)
	if !ok {
		return
	}
	engine.PauseSync()
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "paused": true})
}

// handleSyncResume implements POST /api/sync/resume.
func (s *Server) handleSyncResume(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.requireHybrid(w)
	if !ok {
		return
	}
	engine.ResumeSync()
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "paused": false})
}

// handleSyncForce implements POST /api/sync/force: runs initial
// reconciliation on demand, for an operator-triggered resync rather than
// waiting for the periodic drift check (spec §4.4.5/§4.4.6).
func (s *Server) handleSyncForce(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.requireHybrid(w)
	if !ok {
		return
	}
	stats, err := engine.Reconcile(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "reconciliation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": stats})
}
