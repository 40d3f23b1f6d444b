package hybrid

import "time"

// SyncStatus answers spec §4.4.9's get_sync_status(): enough for a caller to
// distinguish "service alive but 0 pending" from "service paused".
type SyncStatus struct {
	ServiceUp      bool
	Paused         bool
	ActivelySyncing bool
	Pending        int
	Failed         int64
	LastSuccessAt  *time.Time
	Owner          SyncOwner
	IsOwner        bool
}

// GetSyncStatus reports the current state of the background sync service.
func (e *Engine) GetSyncStatus() SyncStatus {
	e.statsMu.Lock()
	failed := e.stats.failed
	active := e.stats.activelySync
	var lastSuccess *time.Time
	if !e.stats.lastSuccessAt.IsZero() {
		t := e.stats.lastSuccessAt
		lastSuccess = &t
	}
	e.statsMu.Unlock()

	return SyncStatus{
		ServiceUp:       e.secondary != nil,
		Paused:          e.isPaused(),
		ActivelySyncing: active,
		Pending:         e.queue.pendingCount(),
		Failed:          failed,
		LastSuccessAt:   lastSuccess,
		Owner:           e.cfg.Owner,
		IsOwner:         e.owner.isOwner(),
	}
}

// PauseSync prevents the dispatcher from consuming the queue and prevents
// new ops from being enqueued, so the queue does not drift during
// maintenance (spec §4.4.8, Open Question decision: pause blocks enqueue).
func (e *Engine) PauseSync() {
	e.pauseMu.Lock()
	e.paused = true
	e.pauseMu.Unlock()
}

// ResumeSync resumes both enqueueing and dispatching.
func (e *Engine) ResumeSync() {
	e.pauseMu.Lock()
	e.paused = false
	e.pauseMu.Unlock()
}
