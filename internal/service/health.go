package service

import (
	"context"
	"time"

	"github.com/memvault/memvault/internal/errs"
	"github.com/memvault/memvault/internal/hybrid"
	"github.com/memvault/memvault/internal/storage"
)

// HealthReport is the shape health_check() returns (spec §4.5.7).
type HealthReport struct {
	BackendKind     string
	Connected       bool
	MemoryCount     int64
	DBSizeBytes     int64
	EmbeddingModel  string
	EmbeddingDim    int
	UptimeSeconds   float64
	SyncStatus      *hybrid.SyncStatus // non-nil only when the backend is hybrid
}

// HealthCheck reports backend identity, connection status, memory count, DB
// size, embedding model/dimension, process uptime, and (for a hybrid
// backend) the embedded sync status. Grounded on the teacher's
// settings_service-style thin aggregation over whatever the underlying
// store reports, with a type switch standing in for the hybrid-specific
// sync_status field that only one backend variant can answer.
func (s *Service) HealthCheck(ctx context.Context) (*HealthReport, *errs.Error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return &HealthReport{BackendKind: s.backendKind(), Connected: false}, nil
	}

	report := &HealthReport{
		BackendKind:    s.backendKind(),
		Connected:      true,
		MemoryCount:    stats.TotalMemories,
		DBSizeBytes:    stats.DBSizeBytes,
		EmbeddingModel: stats.EmbeddingModel,
		EmbeddingDim:   stats.EmbeddingDim,
		UptimeSeconds:  time.Since(s.startedAt).Seconds(),
	}
	if s.embedder != nil {
		report.EmbeddingModel = s.embedder.Model()
		report.EmbeddingDim = s.embedder.Dimension()
	}

	if engine, ok := s.store.(*hybrid.Engine); ok {
		status := engine.GetSyncStatus()
		report.SyncStatus = &status
	}

	return report, nil
}

func (s *Service) backendKind() string {
	switch s.store.(type) {
	case *hybrid.Engine:
		return "hybrid"
	default:
		return storeKind(s.store)
	}
}

// storeKind reports a best-effort label for a non-hybrid backend. Both C2
// and C3 are otherwise opaque behind storage.Store, so this only needs to
// distinguish the two for operator-facing health output.
func storeKind(store storage.Store) string {
	type kinder interface{ Kind() string }
	if k, ok := store.(kinder); ok {
		return k.Kind()
	}
	return "storage"
}
