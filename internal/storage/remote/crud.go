package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// Store inserts memory, enforcing the remote adapter's size and capacity
// constraints (spec §4.3 constraints 1-3) before ever touching the network.
func (s *Store) Store(ctx context.Context, memory *types.Memory, opts ...storage.StoreOptions) (*storage.StoreResult, error) {
	if memory == nil || memory.Content == "" {
		return nil, fmt.Errorf("%w: content is required", storage.ErrInvalidInput)
	}
	if memory.ContentHash == "" {
		return nil, fmt.Errorf("%w: content hash is required", storage.ErrInvalidInput)
	}
	// Vector ID is content_hash directly; the remote service rejects IDs
	// over 64 bytes (spec §4.3 constraint 4).
	if len(memory.ContentHash) > 64 {
		return nil, fmt.Errorf("%w: content hash exceeds 64 bytes", storage.ErrInvalidInput)
	}
	if s.limits.MaxContentLength > 0 && len(memory.Content) > s.limits.MaxContentLength {
		return nil, fmt.Errorf("%w: content length %d exceeds max %d", storage.ErrContentTooLarge, len(memory.Content), s.limits.MaxContentLength)
	}

	metaJSON, err := json.Marshal(memory.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", storage.ErrInvalidInput, err)
	}
	if len(metaJSON) > maxMetadataBytes {
		return nil, fmt.Errorf("%w: metadata is %d bytes, limit %d", storage.ErrMetadataTooLarge, len(metaJSON), maxMetadataBytes)
	}

	if err := s.checkCapacity(ctx); err != nil {
		return nil, err
	}

	existing, err := s.GetByHash(ctx, memory.ContentHash)
	if err == nil && existing != nil && !existing.IsDeleted() {
		return &storage.StoreResult{Success: false, Reason: "duplicate", ContentHash: memory.ContentHash}, storage.ErrDuplicate
	}

	now := time.Now().UTC()
	if memory.CreatedAt == 0 {
		memory.Touch(now)
	}
	if !storage.ResolveStoreOptions(opts).PreserveTimestamps {
		memory.StampUpdated(now)
	}

	err = guarded(ctx, s.breaker.write, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("remote: begin store tx: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO memories (
				content_hash, content, tags_csv, memory_type, metadata_json,
				created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL)
			ON CONFLICT(content_hash) DO UPDATE SET
				content = excluded.content,
				tags_csv = excluded.tags_csv,
				memory_type = excluded.memory_type,
				metadata_json = excluded.metadata_json,
				updated_at = excluded.updated_at,
				updated_at_iso = excluded.updated_at_iso,
				deleted_at = NULL
		`, memory.ContentHash, memory.Content, tagsToCSV(memory.Tags), memory.MemoryType, string(metaJSON),
			memory.CreatedAt, memory.CreatedAtISO, memory.UpdatedAt, memory.UpdatedAtISO)
		if err != nil {
			return fmt.Errorf("remote: store upsert: %w", err)
		}

		if s.vectorAvailable && s.dimension > 0 && len(memory.Embedding) == s.dimension {
			if _, err := tx.ExecContext(ctx,
				`UPDATE memories SET embedding = $1 WHERE content_hash = $2`,
				pgvector.NewVector(memory.Embedding), memory.ContentHash); err != nil {
				return fmt.Errorf("remote: store embedding: %w", err)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	return &storage.StoreResult{Success: true, ContentHash: memory.ContentHash}, nil
}

// checkCapacity logs at warn/critical thresholds and hard-fails at the
// configured limit (spec §4.3 constraint 2).
func (s *Store) checkCapacity(ctx context.Context) error {
	if s.limits.MaxVectors <= 0 {
		return nil
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL`).Scan(&count); err != nil {
		return fmt.Errorf("remote: capacity check: %w", err)
	}
	ratio := float64(count) / float64(s.limits.MaxVectors)
	if ratio >= 1.0 {
		return fmt.Errorf("%w: %d/%d vectors", storage.ErrCapacityExceeded, count, s.limits.MaxVectors)
	}
	return nil
}

// CapacityStatus reports the current fill ratio against configured limits
// for health/monitoring callers, without failing the request.
type CapacityStatus struct {
	Used     int64
	Limit    int
	Warning  bool
	Critical bool
}

// Capacity returns the current capacity status (spec §4.3 constraint 2's
// warn/critical thresholds).
func (s *Store) Capacity(ctx context.Context) (*CapacityStatus, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL`).Scan(&count); err != nil {
		return nil, fmt.Errorf("remote: capacity: %w", err)
	}
	status := &CapacityStatus{Used: count, Limit: s.limits.MaxVectors}
	if s.limits.MaxVectors > 0 {
		ratio := float64(count) / float64(s.limits.MaxVectors)
		status.Warning = ratio >= capacityWarnThreshold
		status.Critical = ratio >= capacityCriticalThreshold
	}
	return status, nil
}

// UpdateMemory mutates tags/memory_type/metadata. CreatedAt is always
// preserved; UpdatedAt advances to now unless opts requests
// PreserveTimestamps, in which case memory's own UpdatedAt is persisted
// as-is.
func (s *Store) UpdateMemory(ctx context.Context, memory *types.Memory, opts ...storage.StoreOptions) error {
	return s.updateOne(ctx, s.db, memory, storage.ResolveStoreOptions(opts))
}

func (s *Store) updateOne(ctx context.Context, execer execer, memory *types.Memory, opts storage.StoreOptions) error {
	if memory == nil || memory.ContentHash == "" {
		return fmt.Errorf("%w: content hash is required", storage.ErrInvalidInput)
	}
	metaJSON, err := json.Marshal(memory.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", storage.ErrInvalidInput, err)
	}
	if len(metaJSON) > maxMetadataBytes {
		return fmt.Errorf("%w: metadata is %d bytes, limit %d", storage.ErrMetadataTooLarge, len(metaJSON), maxMetadataBytes)
	}

	if !opts.PreserveTimestamps {
		memory.StampUpdated(time.Now().UTC())
	}

	res, err := execer.ExecContext(ctx, `
		UPDATE memories SET
			tags_csv = $1, memory_type = $2, metadata_json = $3,
			updated_at = $4, updated_at_iso = $5
		WHERE content_hash = $6 AND deleted_at IS NULL
	`, tagsToCSV(memory.Tags), memory.MemoryType, string(metaJSON),
		memory.UpdatedAt, memory.UpdatedAtISO, memory.ContentHash)
	if err != nil {
		return fmt.Errorf("remote: update memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpdateMemoriesBatch applies UpdateMemory semantics to every item as one
// transaction, in configured batch sizes (spec §4.3 constraint 6).
func (s *Store) UpdateMemoriesBatch(ctx context.Context, memories []*types.Memory) ([]storage.BatchResult, error) {
	var results []storage.BatchResult

	for start := 0; start < len(memories); start += s.limits.BatchSize {
		end := start + s.limits.BatchSize
		if end > len(memories) {
			end = len(memories)
		}
		batch := memories[start:end]

		err := guarded(ctx, s.breaker.write, func() error {
			tx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("remote: begin batch update tx: %w", err)
			}
			defer tx.Rollback()

			for _, m := range batch {
				uerr := s.updateOne(ctx, tx, m, storage.StoreOptions{})
				hash := ""
				if m != nil {
					hash = m.ContentHash
				}
				results = append(results, storage.BatchResult{ContentHash: hash, Err: uerr})
			}
			return tx.Commit()
		})
		if err != nil {
			return results, err
		}
	}

	return results, nil
}

// Delete issues a soft delete (sets deleted_at) rather than a hard row
// removal, so sync from a peer can never resurrect a deleted memory
// (spec §4.3 constraint 7).
func (s *Store) Delete(ctx context.Context, hash string) error {
	now := time.Now().UTC()
	epoch := types.NowEpoch(now)
	return guarded(ctx, s.breaker.write, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE memories SET deleted_at = $1, updated_at = $2, updated_at_iso = $3
			 WHERE content_hash = $4 AND deleted_at IS NULL`,
			epoch, epoch, now.Format(time.RFC3339), hash)
		if err != nil {
			return fmt.Errorf("remote: delete: %w", err)
		}
		n, _ := res.RowsAffected()
		if n > 0 {
			return nil
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE content_hash = $1`, hash).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return storage.ErrNotFound
			}
			return fmt.Errorf("remote: delete existence check: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteByTag(ctx context.Context, tag string) (int, error) {
	return s.deleteByTagFilter(ctx, []string{tag}, storage.TagOpOR)
}

func (s *Store) DeleteByTags(ctx context.Context, tags []string, op storage.TagOp) (int, error) {
	return s.deleteByTagFilter(ctx, tags, op)
}

func (s *Store) deleteByTagFilter(ctx context.Context, tags []string, op storage.TagOp) (int, error) {
	clause, args := tagWhereClause(tags, op, 4)
	if clause == "" {
		return 0, fmt.Errorf("%w: at least one tag is required", storage.ErrInvalidInput)
	}
	now := time.Now().UTC()
	epoch := types.NowEpoch(now)
	args = append([]any{epoch, epoch, now.Format(time.RFC3339)}, args...)

	var n int64
	err := guarded(ctx, s.breaker.write, func() error {
		query := fmt.Sprintf(`UPDATE memories SET deleted_at = $1, updated_at = $2, updated_at_iso = $3
			WHERE deleted_at IS NULL AND (%s)`, clause)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("remote: delete by tag: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return int(n), err
}

func (s *Store) DeleteByTimeframe(ctx context.Context, start, end float64, tag string) (int, error) {
	now := time.Now().UTC()
	epoch := types.NowEpoch(now)
	query := `UPDATE memories SET deleted_at = $1, updated_at = $2, updated_at_iso = $3
		WHERE deleted_at IS NULL AND created_at BETWEEN $4 AND $5`
	args := []any{epoch, epoch, now.Format(time.RFC3339), start, end}
	if tag != "" {
		query += ` AND (',' || tags_csv) LIKE '%,' || $6 || ',%'`
		args = append(args, tag)
	}
	var n int64
	err := guarded(ctx, s.breaker.write, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("remote: delete by timeframe: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return int(n), err
}

func (s *Store) DeleteBeforeDate(ctx context.Context, ts float64, tag string) (int, error) {
	now := time.Now().UTC()
	epoch := types.NowEpoch(now)
	query := `UPDATE memories SET deleted_at = $1, updated_at = $2, updated_at_iso = $3
		WHERE deleted_at IS NULL AND created_at < $4`
	args := []any{epoch, epoch, now.Format(time.RFC3339), ts}
	if tag != "" {
		query += ` AND (',' || tags_csv) LIKE '%,' || $5 || ',%'`
		args = append(args, tag)
	}
	var n int64
	err := guarded(ctx, s.breaker.write, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("remote: delete before date: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return int(n), err
}

// GetByHash is a direct lookup, including tombstoned rows.
func (s *Store) GetByHash(ctx context.Context, hash string) (*types.Memory, error) {
	var m *types.Memory
	err := guarded(ctx, s.breaker.read, func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT content_hash, content, tags_csv, memory_type, metadata_json,
			       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
			FROM memories WHERE content_hash = $1`, hash)
		var err error
		m, err = scanMemory(row)
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("remote: get by hash: %w", err)
		}
		return nil
	})
	return m, err
}

// GetAllMemories lists non-deleted memories, filtering deleted_at at the
// source (spec §4.3 constraint 8).
func (s *Store) GetAllMemories(ctx context.Context, opts storage.ListOptions) ([]*types.Memory, error) {
	opts.Normalize()

	where := []string{"deleted_at IS NULL"}
	args := []any{}
	idx := 1

	next := func() string { idx++; return fmt.Sprintf("$%d", idx-1) }

	if opts.MemoryType != "" {
		where = append(where, "memory_type = "+next())
		args = append(args, opts.MemoryType)
	}
	if clause, targs := tagWhereClause(opts.Tags, opts.TagOp, idx); clause != "" {
		where = append(where, clause)
		args = append(args, targs...)
		idx += len(targs)
	}
	if opts.TimeStart != nil {
		where = append(where, "created_at >= "+next())
		args = append(args, *opts.TimeStart)
	}
	if opts.TimeEnd != nil {
		where = append(where, "created_at <= "+next())
		args = append(args, *opts.TimeEnd)
	}

	query := fmt.Sprintf(`
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE %s
		ORDER BY created_at DESC LIMIT %s OFFSET %s`,
		strings.Join(where, " AND "), next(), next())
	args = append(args, opts.Limit, opts.Offset)

	var out []*types.Memory
	err := guarded(ctx, s.breaker.read, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("remote: get all memories: %w", err)
		}
		defer rows.Close()
		out, err = scanMemories(rows)
		return err
	})
	return out, err
}

// GetAllMemoriesWithEmbeddings implements storage.EmbeddingLister: same
// filters as GetAllMemories, but only rows with a non-null pgvector
// embedding, so consolidation (spec §4.6.5) never sees a zero-embedding row.
func (s *Store) GetAllMemoriesWithEmbeddings(ctx context.Context, opts storage.ListOptions) ([]*types.Memory, error) {
	opts.Normalize()

	where := []string{"deleted_at IS NULL", "embedding IS NOT NULL"}
	args := []any{}
	idx := 1
	next := func() string { idx++; return fmt.Sprintf("$%d", idx-1) }

	if opts.MemoryType != "" {
		where = append(where, "memory_type = "+next())
		args = append(args, opts.MemoryType)
	}
	if clause, targs := tagWhereClause(opts.Tags, opts.TagOp, idx); clause != "" {
		where = append(where, clause)
		args = append(args, targs...)
		idx += len(targs)
	}
	if opts.TimeStart != nil {
		where = append(where, "created_at >= "+next())
		args = append(args, *opts.TimeStart)
	}
	if opts.TimeEnd != nil {
		where = append(where, "created_at <= "+next())
		args = append(args, *opts.TimeEnd)
	}

	query := fmt.Sprintf(`
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at, embedding
		FROM memories WHERE %s
		ORDER BY created_at DESC LIMIT %s OFFSET %s`,
		strings.Join(where, " AND "), next(), next())
	args = append(args, opts.Limit, opts.Offset)

	var out []*types.Memory
	err := guarded(ctx, s.breaker.read, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("remote: get all memories with embeddings: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				m       types.Memory
				tagsCSV string
				meta    string
				deleted sql.NullFloat64
				vec     pgvector.Vector
			)
			if err := rows.Scan(
				&m.ContentHash, &m.Content, &tagsCSV, &m.MemoryType, &meta,
				&m.CreatedAt, &m.CreatedAtISO, &m.UpdatedAt, &m.UpdatedAtISO, &deleted, &vec,
			); err != nil {
				return fmt.Errorf("remote: scan memory with embedding: %w", err)
			}
			m.Tags = csvToTags(tagsCSV)
			if meta != "" {
				if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
					return fmt.Errorf("remote: unmarshal metadata: %w", err)
				}
			}
			if deleted.Valid {
				v := deleted.Float64
				m.DeletedAt = &v
			}
			m.Embedding = vec.Slice()
			out = append(out, &m)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) GetRecentMemories(ctx context.Context, n int) ([]*types.Memory, error) {
	if n <= 0 {
		n = 10
	}
	var out []*types.Memory
	err := guarded(ctx, s.breaker.read, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT content_hash, content, tags_csv, memory_type, metadata_json,
			       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
			FROM memories WHERE deleted_at IS NULL
			ORDER BY created_at DESC LIMIT $1`, n)
		if err != nil {
			return fmt.Errorf("remote: get recent memories: %w", err)
		}
		defer rows.Close()
		out, err = scanMemories(rows)
		return err
	})
	return out, err
}

func (s *Store) CountAllMemories(ctx context.Context, opts storage.ListOptions) (int64, error) {
	where := []string{"deleted_at IS NULL"}
	args := []any{}
	idx := 1
	next := func() string { idx++; return fmt.Sprintf("$%d", idx-1) }

	if opts.MemoryType != "" {
		where = append(where, "memory_type = "+next())
		args = append(args, opts.MemoryType)
	}
	if clause, targs := tagWhereClause(opts.Tags, opts.TagOp, idx); clause != "" {
		where = append(where, clause)
		args = append(args, targs...)
	}
	if opts.TimeStart != nil {
		where = append(where, "created_at >= "+next())
		args = append(args, *opts.TimeStart)
	}
	if opts.TimeEnd != nil {
		where = append(where, "created_at <= "+next())
		args = append(args, *opts.TimeEnd)
	}

	var count int64
	err := guarded(ctx, s.breaker.read, func() error {
		query := fmt.Sprintf(`SELECT COUNT(*) FROM memories WHERE %s`, strings.Join(where, " AND "))
		return s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	})
	return count, err
}

// SearchByTag returns non-deleted memories matching tags under op,
// filtering deleted_at at the source (spec §4.3 constraint 8).
func (s *Store) SearchByTag(ctx context.Context, tags []string, op storage.TagOp, timeStart, timeEnd *float64) ([]*types.Memory, error) {
	clause, args := tagWhereClause(tags, op, 1)
	if clause == "" {
		return nil, fmt.Errorf("%w: at least one tag is required", storage.ErrInvalidInput)
	}
	where := []string{"deleted_at IS NULL", clause}
	idx := len(args) + 1
	if timeStart != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, *timeStart)
		idx++
	}
	if timeEnd != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, *timeEnd)
	}
	query := fmt.Sprintf(`
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE %s ORDER BY created_at DESC`, strings.Join(where, " AND "))

	var out []*types.Memory
	err := guarded(ctx, s.breaker.read, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("remote: search by tag: %w", err)
		}
		defer rows.Close()
		out, err = scanMemories(rows)
		return err
	})
	return out, err
}

func (s *Store) SearchByTimeframe(ctx context.Context, start, end float64, tag string) ([]*types.Memory, error) {
	query := `
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE deleted_at IS NULL AND created_at BETWEEN $1 AND $2`
	args := []any{start, end}
	if tag != "" {
		query += ` AND (',' || tags_csv) LIKE '%,' || $3 || ',%'`
		args = append(args, tag)
	}
	query += ` ORDER BY created_at DESC`

	var out []*types.Memory
	err := guarded(ctx, s.breaker.read, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("remote: search by timeframe: %w", err)
		}
		defer rows.Close()
		out, err = scanMemories(rows)
		return err
	})
	return out, err
}

func (s *Store) GetByExactContent(ctx context.Context, text string) ([]*types.Memory, error) {
	var out []*types.Memory
	err := guarded(ctx, s.breaker.read, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT content_hash, content, tags_csv, memory_type, metadata_json,
			       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
			FROM memories WHERE deleted_at IS NULL AND content = $1`, text)
		if err != nil {
			return fmt.Errorf("remote: get by exact content: %w", err)
		}
		defer rows.Close()
		out, err = scanMemories(rows)
		return err
	})
	return out, err
}

func (s *Store) GetMemoryTimestamps(ctx context.Context) ([]storage.MemoryTimestamp, error) {
	var out []storage.MemoryTimestamp
	err := guarded(ctx, s.breaker.read, func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT content_hash, created_at, updated_at FROM memories WHERE deleted_at IS NULL`)
		if err != nil {
			return fmt.Errorf("remote: get memory timestamps: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var t storage.MemoryTimestamp
			if err := rows.Scan(&t.ContentHash, &t.CreatedAt, &t.UpdatedAt); err != nil {
				return fmt.Errorf("remote: scan timestamp: %w", err)
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) GetMemoriesUpdatedSince(ctx context.Context, ts float64) ([]*types.Memory, error) {
	var out []*types.Memory
	err := guarded(ctx, s.breaker.read, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT content_hash, content, tags_csv, memory_type, metadata_json,
			       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
			FROM memories WHERE deleted_at IS NULL AND updated_at > $1
			ORDER BY updated_at ASC`, ts)
		if err != nil {
			return fmt.Errorf("remote: get memories updated since: %w", err)
		}
		defer rows.Close()
		out, err = scanMemories(rows)
		return err
	})
	return out, err
}

func (s *Store) GetAllContentHashes(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	err := guarded(ctx, s.breaker.read, func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT content_hash FROM memories`)
		if err != nil {
			return fmt.Errorf("remote: get all content hashes: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var hash string
			if err := rows.Scan(&hash); err != nil {
				return fmt.Errorf("remote: scan hash: %w", err)
			}
			out[hash] = true
		}
		return rows.Err()
	})
	return out, err
}

// GetStats returns the same shape as the local store so C4/C5 can report
// health without knowing which backend answered (spec §4.3 "Health check").
func (s *Store) GetStats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{}
	err := guarded(ctx, s.breaker.read, func() error {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL`).Scan(&stats.TotalMemories); err != nil {
			return fmt.Errorf("remote: stats total: %w", err)
		}
		weekAgo := types.NowEpoch(time.Now().UTC().Add(-7 * 24 * time.Hour))
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL AND created_at >= $1`,
			weekAgo).Scan(&stats.CreatedThisWeek); err != nil {
			return fmt.Errorf("remote: stats created this week: %w", err)
		}

		rows, err := s.db.QueryContext(ctx, `SELECT tags_csv FROM memories WHERE deleted_at IS NULL`)
		if err != nil {
			return fmt.Errorf("remote: stats tags: %w", err)
		}
		unique := make(map[string]bool)
		for rows.Next() {
			var csv string
			if err := rows.Scan(&csv); err != nil {
				rows.Close()
				return fmt.Errorf("remote: scan tags: %w", err)
			}
			for _, t := range csvToTags(csv) {
				unique[t] = true
			}
		}
		rows.Close()
		stats.UniqueTagCount = int64(len(unique))

		if s.embedder != nil {
			stats.EmbeddingModel = s.embedder.Model()
			stats.EmbeddingDim = s.embedder.Dimension()
		}
		return nil
	})
	return stats, err
}

func (s *Store) IsDeleted(ctx context.Context, hash string) (bool, error) {
	var deletedAt sql.NullFloat64
	err := guarded(ctx, s.breaker.read, func() error {
		e := s.db.QueryRowContext(ctx, `SELECT deleted_at FROM memories WHERE content_hash = $1`, hash).Scan(&deletedAt)
		if e == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return e
	})
	if err != nil {
		return false, err
	}
	return deletedAt.Valid, nil
}

// PurgeDeleted physically removes tombstoned rows older than olderThanDays.
func (s *Store) PurgeDeleted(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := types.NowEpoch(time.Now().UTC().AddDate(0, 0, -olderThanDays))
	var n int
	err := guarded(ctx, s.breaker.write, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM memories WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff)
		if err != nil {
			return fmt.Errorf("remote: purge deleted: %w", err)
		}
		affected, _ := res.RowsAffected()
		n = int(affected)
		return nil
	})
	return n, err
}

func tagsToCSV(tags []string) string {
	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return ""
	}
	return "," + strings.Join(tags, ",") + ","
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func csvToTags(csv string) []string {
	csv = strings.Trim(csv, ",")
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

// tagWhereClause builds a $N-parameterized fragment starting at paramIdx.
func tagWhereClause(tags []string, op storage.TagOp, paramIdx int) (string, []any) {
	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return "", nil
	}
	joiner := " OR "
	if op == storage.TagOpAND {
		joiner = " AND "
	}
	parts := make([]string, 0, len(tags))
	args := make([]any, 0, len(tags))
	for i, t := range tags {
		parts = append(parts, fmt.Sprintf("(',' || tags_csv) LIKE '%%,' || $%d || ',%%'", paramIdx+i))
		args = append(args, t)
	}
	return strings.Join(parts, joiner), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*types.Memory, error) {
	var m types.Memory
	var tagsCSV, metaJSON string
	var deletedAt sql.NullFloat64

	if err := row.Scan(
		&m.ContentHash, &m.Content, &tagsCSV, &m.MemoryType, &metaJSON,
		&m.CreatedAt, &m.CreatedAtISO, &m.UpdatedAt, &m.UpdatedAtISO, &deletedAt,
	); err != nil {
		return nil, err
	}

	m.Tags = csvToTags(tagsCSV)
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			return nil, fmt.Errorf("remote: unmarshal metadata: %w", err)
		}
	}
	if deletedAt.Valid {
		v := deletedAt.Float64
		m.DeletedAt = &v
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]*types.Memory, error) {
	var out []*types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("remote: scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
