package hybrid

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/internal/storage/sqlite"
	"github.com/memvault/memvault/pkg/types"
)

// stubEmbedder mirrors the sqlite package's test embedder so the primary
// store's vector column has something deterministic to index.
type stubEmbedder struct{ dim int }

func (e *stubEmbedder) Dimension() int     { return e.dim }
func (e *stubEmbedder) MaxInputChars() int { return 0 }
func (e *stubEmbedder) Model() string      { return "stub-test-embedder" }

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dim)
		for j := range v {
			v[j] = float32((len(t)+j)%7) / 7
		}
		out[i] = v
	}
	return out, nil
}

// memStore is a minimal in-process storage.Store used as the secondary in
// tests, so hybrid behavior can be exercised without a live Postgres/Redis.
type memStore struct {
	mu   sync.Mutex
	rows map[string]*types.Memory
}

func newMemStore() *memStore { return &memStore{rows: map[string]*types.Memory{}} }

func (s *memStore) Initialize(ctx context.Context) error { return nil }

func (s *memStore) Store(ctx context.Context, m *types.Memory, opts ...storage.StoreOptions) (*storage.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[m.ContentHash]; ok && !existing.IsDeleted() {
		return &storage.StoreResult{Success: false, Reason: "duplicate", ContentHash: m.ContentHash}, storage.ErrDuplicate
	}
	cp := *m
	s.rows[m.ContentHash] = &cp
	return &storage.StoreResult{Success: true, ContentHash: m.ContentHash}, nil
}

func (s *memStore) UpdateMemory(ctx context.Context, m *types.Memory, opts ...storage.StoreOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.rows[m.ContentHash] = &cp
	return nil
}

func (s *memStore) UpdateMemoriesBatch(ctx context.Context, memories []*types.Memory) ([]storage.BatchResult, error) {
	out := make([]storage.BatchResult, len(memories))
	for i, m := range memories {
		err := s.UpdateMemory(ctx, m)
		out[i] = storage.BatchResult{ContentHash: m.ContentHash, Err: err}
	}
	return out, nil
}

func (s *memStore) Delete(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[hash]
	if !ok {
		return storage.ErrNotFound
	}
	now := time.Now().UTC()
	sec := float64(now.Unix())
	m.DeletedAt = &sec
	return nil
}

func (s *memStore) DeleteByTag(ctx context.Context, tag string) (int, error)         { return 0, nil }
func (s *memStore) DeleteByTags(ctx context.Context, tags []string, op storage.TagOp) (int, error) {
	return 0, nil
}
func (s *memStore) DeleteByTimeframe(ctx context.Context, start, end float64, tag string) (int, error) {
	return 0, nil
}
func (s *memStore) DeleteBeforeDate(ctx context.Context, ts float64, tag string) (int, error) {
	return 0, nil
}

func (s *memStore) GetByHash(ctx context.Context, hash string) (*types.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[hash]
	if !ok || m.IsDeleted() {
		return nil, storage.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) GetAllMemories(ctx context.Context, opts storage.ListOptions) ([]*types.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Memory
	for _, m := range s.rows {
		if !m.IsDeleted() {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) GetRecentMemories(ctx context.Context, n int) ([]*types.Memory, error) {
	return s.GetAllMemories(ctx, storage.ListOptions{})
}

func (s *memStore) CountAllMemories(ctx context.Context, opts storage.ListOptions) (int64, error) {
	all, _ := s.GetAllMemories(ctx, opts)
	return int64(len(all)), nil
}

func (s *memStore) Retrieve(ctx context.Context, queryText string, k int) ([]types.MemoryQueryResult, error) {
	return nil, nil
}

func (s *memStore) Recall(ctx context.Context, queryText string, k int, timeStart, timeEnd *float64) ([]types.MemoryQueryResult, error) {
	return nil, nil
}

func (s *memStore) SearchByTag(ctx context.Context, tags []string, op storage.TagOp, timeStart, timeEnd *float64) ([]*types.Memory, error) {
	return nil, nil
}

func (s *memStore) SearchByTimeframe(ctx context.Context, start, end float64, tag string) ([]*types.Memory, error) {
	return nil, nil
}

func (s *memStore) GetByExactContent(ctx context.Context, text string) ([]*types.Memory, error) {
	return nil, nil
}

func (s *memStore) GetMemoryTimestamps(ctx context.Context) ([]storage.MemoryTimestamp, error) {
	return nil, nil
}

func (s *memStore) GetMemoriesUpdatedSince(ctx context.Context, ts float64) ([]*types.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Memory
	for _, m := range s.rows {
		if m.UpdatedAt > ts {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) GetAllContentHashes(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.rows))
	for h := range s.rows {
		out[h] = true
	}
	return out, nil
}

func (s *memStore) GetStats(ctx context.Context) (*storage.Stats, error) {
	all, _ := s.GetAllMemories(ctx, storage.ListOptions{})
	return &storage.Stats{TotalMemories: int64(len(all))}, nil
}

func (s *memStore) IsDeleted(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[hash]
	if !ok {
		return false, storage.ErrNotFound
	}
	return m.IsDeleted(), nil
}

func (s *memStore) PurgeDeleted(ctx context.Context, olderThanDays int) (int, error) { return 0, nil }

func (s *memStore) StoreAssociation(ctx context.Context, assoc *types.Association) error { return nil }

func (s *memStore) FindConnected(ctx context.Context, hash string, hops int, direction storage.Direction) ([]*types.Memory, error) {
	return nil, nil
}

func (s *memStore) ShortestPath(ctx context.Context, a, b string) ([]string, error) {
	return nil, storage.ErrNotFound
}

func (s *memStore) GetSubgraph(ctx context.Context, hash string, radius int) (*storage.Subgraph, error) {
	return &storage.Subgraph{}, nil
}

func (s *memStore) Close() error { return nil }

var _ storage.Store = (*memStore)(nil)

func newTestEngine(t *testing.T) (*Engine, *sqlite.MemoryStore, *memStore) {
	t.Helper()
	primary, err := sqlite.NewMemoryStore(":memory:", &stubEmbedder{dim: 4})
	require.NoError(t, err)
	require.NoError(t, primary.Initialize(context.Background()))
	t.Cleanup(func() { _ = primary.Close() })

	secondary := newMemStore()

	e, err := NewEngine(primary, secondary, Config{
		QueueCapacity:   10,
		DispatchWorkers: 2,
	})
	require.NoError(t, err)
	return e, primary, secondary
}

func waitForPending(t *testing.T, e *Engine, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.queue.pendingCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("queue pending count never reached %d", want)
}

func newMemory(hash, content string) *types.Memory {
	return &types.Memory{
		ContentHash: hash,
		Content:     content,
		MemoryType:  "note",
		Embedding:   []float32{0.1, 0.2, 0.3, 0.4},
	}
}

func TestStoreWritesPrimarySynchronouslyAndMirrorsToSecondary(t *testing.T) {
	e, _, secondary := newTestEngine(t)
	ctx := context.Background()
	e.Start(ctx)
	defer e.Close()

	res, err := e.Store(ctx, newMemory("h1", "hello"))
	require.NoError(t, err)
	require.True(t, res.Success)

	got, err := e.GetByHash(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, "hello", got.Content)

	require.Eventually(t, func() bool {
		_, err := secondary.GetByHash(ctx, "h1")
		return err == nil
	}, time.Second, 5*time.Millisecond, "secondary should eventually receive the mirrored write")
}

func TestDeletePropagatesTombstoneToSecondary(t *testing.T) {
	e, _, secondary := newTestEngine(t)
	ctx := context.Background()
	e.Start(ctx)
	defer e.Close()

	_, err := e.Store(ctx, newMemory("h2", "to delete"))
	require.NoError(t, err)
	waitForPending(t, e, 0, time.Second)

	require.NoError(t, e.Delete(ctx, "h2"))

	_, err = e.GetByHash(ctx, "h2")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.Eventually(t, func() bool {
		deleted, err := secondary.IsDeleted(ctx, "h2")
		return err == nil && deleted
	}, time.Second, 5*time.Millisecond)
}

func TestReadsNeverTouchSecondaryWhenPrimaryHasData(t *testing.T) {
	e, _, secondary := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Store(ctx, newMemory("h3", "only on primary"))
	require.NoError(t, err)

	// Secondary has nothing yet (dispatcher never started), reads must still
	// succeed purely off primary.
	got, err := e.GetByHash(ctx, "h3")
	require.NoError(t, err)
	require.Equal(t, "only on primary", got.Content)

	_, err = secondary.GetByHash(ctx, "h3")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPauseSyncStopsMirroring(t *testing.T) {
	e, _, secondary := newTestEngine(t)
	ctx := context.Background()
	e.Start(ctx)
	defer e.Close()

	e.PauseSync()
	_, err := e.Store(ctx, newMemory("h4", "paused"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, err = secondary.GetByHash(ctx, "h4")
	require.ErrorIs(t, err, storage.ErrNotFound)

	e.ResumeSync()
	_, err = e.Store(ctx, newMemory("h5", "resumed"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := secondary.GetByHash(ctx, "h5")
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestGetSyncStatusReportsPendingAndOwnership(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	status := e.GetSyncStatus()
	require.True(t, status.ServiceUp)
	require.True(t, status.IsOwner)
	require.False(t, status.Paused)

	_, err := e.Store(ctx, newMemory("h6", "queued"))
	require.NoError(t, err)

	status = e.GetSyncStatus()
	require.Equal(t, 1, status.Pending)
}

func TestReconcileInsertsRemoteOnlyMemoriesAndSkipsTombstones(t *testing.T) {
	e, primary, secondary := newTestEngine(t)
	ctx := context.Background()

	_, err := secondary.Store(ctx, newMemory("remote-only", "from secondary"))
	require.NoError(t, err)

	tombstoned := newMemory("remote-tombstoned", "deleted locally")
	require.NoError(t, primary.Initialize(ctx))
	_, err = primary.Store(ctx, tombstoned)
	require.NoError(t, err)
	require.NoError(t, primary.Delete(ctx, "remote-tombstoned"))
	_, err = secondary.Store(ctx, newMemory("remote-tombstoned", "deleted locally"))
	require.NoError(t, err)

	stats, err := e.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Inserted)
	require.Equal(t, 1, stats.TombstonesPreserved)

	_, err = primary.GetByHash(ctx, "remote-only")
	require.NoError(t, err)

	deleted, err := secondary.IsDeleted(ctx, "remote-tombstoned")
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestCheckDriftPrefersNewerUpdatedAt(t *testing.T) {
	e, primary, secondary := newTestEngine(t)
	ctx := context.Background()

	local := newMemory("drift-1", "local version")
	_, err := primary.Store(ctx, local)
	require.NoError(t, err)
	stored, err := primary.GetByHash(ctx, "drift-1")
	require.NoError(t, err)

	remote := newMemory("drift-1", "remote version, newer")
	remote.CreatedAt = stored.CreatedAt
	remote.UpdatedAt = stored.UpdatedAt + 10
	_, err = secondary.Store(ctx, remote)
	require.NoError(t, err)

	require.NoError(t, e.checkDrift(ctx, remote))

	updated, err := primary.GetByHash(ctx, "drift-1")
	require.NoError(t, err)
	require.Equal(t, "remote version, newer", updated.Content)
	require.Equal(t, stored.CreatedAt, updated.CreatedAt)
}
