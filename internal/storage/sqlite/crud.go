package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// Store inserts memory. A non-deleted row with the same ContentHash is a
// no-op duplicate (spec §4.2.3: content hash is the identity; the same
// content+metadata can never produce two live rows).
func (s *MemoryStore) Store(ctx context.Context, memory *types.Memory, opts ...storage.StoreOptions) (*storage.StoreResult, error) {
	if memory == nil || memory.Content == "" {
		return nil, fmt.Errorf("%w: content is required", storage.ErrInvalidInput)
	}
	if memory.ContentHash == "" {
		return nil, fmt.Errorf("%w: content hash is required", storage.ErrInvalidInput)
	}

	existing, err := s.GetByHash(ctx, memory.ContentHash)
	if err == nil && existing != nil && !existing.IsDeleted() {
		return &storage.StoreResult{Success: false, Reason: "duplicate", ContentHash: memory.ContentHash}, storage.ErrDuplicate
	}

	metaJSON, err := json.Marshal(memory.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", storage.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	if memory.CreatedAt == 0 {
		memory.Touch(now)
	}
	if !storage.ResolveStoreOptions(opts).PreserveTimestamps {
		memory.StampUpdated(now)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin store tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (
			content_hash, content, tags_csv, memory_type, metadata_json,
			created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(content_hash) DO UPDATE SET
			content = excluded.content,
			tags_csv = excluded.tags_csv,
			memory_type = excluded.memory_type,
			metadata_json = excluded.metadata_json,
			updated_at = excluded.updated_at,
			updated_at_iso = excluded.updated_at_iso,
			deleted_at = NULL
	`,
		memory.ContentHash, memory.Content, tagsToCSV(memory.Tags), memory.MemoryType, string(metaJSON),
		memory.CreatedAt, memory.CreatedAtISO, memory.UpdatedAt, memory.UpdatedAtISO,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: store upsert: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memories_fts (content_hash, content) VALUES (?, ?)`,
		memory.ContentHash, memory.Content); err != nil {
		return nil, fmt.Errorf("sqlite: fts insert: %w", err)
	}

	if s.dimension > 0 && len(memory.Embedding) == s.dimension {
		if err := insertVector(ctx, tx, memory.ContentHash, memory.Embedding); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit store: %w", err)
	}

	return &storage.StoreResult{Success: true, ContentHash: memory.ContentHash}, nil
}

// UpdateMemory mutates tags/memory_type/metadata, always preserving
// CreatedAt. UpdatedAt advances to now unless opts requests
// PreserveTimestamps, in which case memory's own UpdatedAt is persisted
// as-is.
func (s *MemoryStore) UpdateMemory(ctx context.Context, memory *types.Memory, opts ...storage.StoreOptions) error {
	return s.updateOne(ctx, s.db, memory, storage.ResolveStoreOptions(opts))
}

func (s *MemoryStore) updateOne(ctx context.Context, execer execer, memory *types.Memory, opts storage.StoreOptions) error {
	if memory == nil || memory.ContentHash == "" {
		return fmt.Errorf("%w: content hash is required", storage.ErrInvalidInput)
	}

	metaJSON, err := json.Marshal(memory.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", storage.ErrInvalidInput, err)
	}

	if !opts.PreserveTimestamps {
		memory.StampUpdated(time.Now().UTC())
	}

	res, err := execer.ExecContext(ctx, `
		UPDATE memories SET
			tags_csv = ?, memory_type = ?, metadata_json = ?,
			updated_at = ?, updated_at_iso = ?
		WHERE content_hash = ? AND deleted_at IS NULL
	`, tagsToCSV(memory.Tags), memory.MemoryType, string(metaJSON),
		memory.UpdatedAt, memory.UpdatedAtISO, memory.ContentHash)
	if err != nil {
		return fmt.Errorf("sqlite: update memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpdateMemoriesBatch applies UpdateMemory semantics to every item as a
// single transaction (spec §4.6.1's batch-transaction regression guard).
func (s *MemoryStore) UpdateMemoriesBatch(ctx context.Context, memories []*types.Memory) ([]storage.BatchResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin batch update tx: %w", err)
	}
	defer tx.Rollback()

	results := make([]storage.BatchResult, 0, len(memories))
	for _, m := range memories {
		err := s.updateOne(ctx, tx, m, storage.StoreOptions{})
		hash := ""
		if m != nil {
			hash = m.ContentHash
		}
		results = append(results, storage.BatchResult{ContentHash: hash, Err: err})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit batch update: %w", err)
	}
	return results, nil
}

// Delete soft-deletes the memory with the given hash.
func (s *MemoryStore) Delete(ctx context.Context, hash string) error {
	now := time.Now().UTC()
	epoch := types.NowEpoch(now)
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET deleted_at = ?, updated_at = ?, updated_at_iso = ?
		 WHERE content_hash = ? AND deleted_at IS NULL`,
		epoch, epoch, now.UTC().Format(time.RFC3339), hash)
	if err != nil {
		return fmt.Errorf("sqlite: delete: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE content_hash = ?`, hash).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return fmt.Errorf("sqlite: delete existence check: %w", err)
	}
	return nil // already deleted, idempotent
}

// DeleteByTag soft-deletes every non-deleted memory carrying tag exactly.
func (s *MemoryStore) DeleteByTag(ctx context.Context, tag string) (int, error) {
	return s.deleteByTagFilter(ctx, []string{tag}, storage.TagOpOR)
}

// DeleteByTags soft-deletes every non-deleted memory matching tags under op.
func (s *MemoryStore) DeleteByTags(ctx context.Context, tags []string, op storage.TagOp) (int, error) {
	return s.deleteByTagFilter(ctx, tags, op)
}

func (s *MemoryStore) deleteByTagFilter(ctx context.Context, tags []string, op storage.TagOp) (int, error) {
	clause, args := tagWhereClause(tags, op)
	if clause == "" {
		return 0, fmt.Errorf("%w: at least one tag is required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	epoch := types.NowEpoch(now)
	args = append([]any{epoch, epoch, now.UTC().Format(time.RFC3339)}, args...)

	query := fmt.Sprintf(`UPDATE memories SET deleted_at = ?, updated_at = ?, updated_at_iso = ?
		WHERE deleted_at IS NULL AND (%s)`, clause)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete by tag: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteByTimeframe soft-deletes memories created within [start,end],
// optionally restricted to tag.
func (s *MemoryStore) DeleteByTimeframe(ctx context.Context, start, end float64, tag string) (int, error) {
	now := time.Now().UTC()
	epoch := types.NowEpoch(now)
	query := `UPDATE memories SET deleted_at = ?, updated_at = ?, updated_at_iso = ?
		WHERE deleted_at IS NULL AND created_at BETWEEN ? AND ?`
	args := []any{epoch, epoch, now.UTC().Format(time.RFC3339), start, end}
	if tag != "" {
		query += ` AND (',' || tags_csv) LIKE '%,' || ? || ',%'`
		args = append(args, tag)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete by timeframe: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteBeforeDate soft-deletes memories created before ts, optionally
// restricted to tag.
func (s *MemoryStore) DeleteBeforeDate(ctx context.Context, ts float64, tag string) (int, error) {
	now := time.Now().UTC()
	epoch := types.NowEpoch(now)
	query := `UPDATE memories SET deleted_at = ?, updated_at = ?, updated_at_iso = ?
		WHERE deleted_at IS NULL AND created_at < ?`
	args := []any{epoch, epoch, now.UTC().Format(time.RFC3339), ts}
	if tag != "" {
		query += ` AND (',' || tags_csv) LIKE '%,' || ? || ',%'`
		args = append(args, tag)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete before date: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetByHash is an O(1) direct lookup, including tombstoned rows so callers
// can distinguish "never existed" from "deleted".
func (s *MemoryStore) GetByHash(ctx context.Context, hash string) (*types.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE content_hash = ?`, hash)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get by hash: %w", err)
	}
	return m, nil
}

// GetAllMemories lists non-deleted memories ordered by CreatedAt descending.
func (s *MemoryStore) GetAllMemories(ctx context.Context, opts storage.ListOptions) ([]*types.Memory, error) {
	opts.Normalize()

	where := []string{"deleted_at IS NULL"}
	args := []any{}

	if opts.MemoryType != "" {
		where = append(where, "memory_type = ?")
		args = append(args, opts.MemoryType)
	}
	if clause, targs := tagWhereClause(opts.Tags, opts.TagOp); clause != "" {
		where = append(where, clause)
		args = append(args, targs...)
	}
	if opts.TimeStart != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *opts.TimeStart)
	}
	if opts.TimeEnd != nil {
		where = append(where, "created_at <= ?")
		args = append(args, *opts.TimeEnd)
	}

	query := fmt.Sprintf(`
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE %s
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, strings.Join(where, " AND "))
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get all memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetRecentMemories returns the n most recently created memories.
func (s *MemoryStore) GetRecentMemories(ctx context.Context, n int) ([]*types.Memory, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE deleted_at IS NULL
		ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get recent memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// CountAllMemories counts non-deleted memories matching opts at the
// database level.
func (s *MemoryStore) CountAllMemories(ctx context.Context, opts storage.ListOptions) (int64, error) {
	where := []string{"deleted_at IS NULL"}
	args := []any{}

	if opts.MemoryType != "" {
		where = append(where, "memory_type = ?")
		args = append(args, opts.MemoryType)
	}
	if clause, targs := tagWhereClause(opts.Tags, opts.TagOp); clause != "" {
		where = append(where, clause)
		args = append(args, targs...)
	}
	if opts.TimeStart != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *opts.TimeStart)
	}
	if opts.TimeEnd != nil {
		where = append(where, "created_at <= ?")
		args = append(args, *opts.TimeEnd)
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM memories WHERE %s`, strings.Join(where, " AND "))
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count all memories: %w", err)
	}
	return count, nil
}

// SearchByTag returns non-deleted memories matching tags under op.
func (s *MemoryStore) SearchByTag(ctx context.Context, tags []string, op storage.TagOp, timeStart, timeEnd *float64) ([]*types.Memory, error) {
	clause, args := tagWhereClause(tags, op)
	if clause == "" {
		return nil, fmt.Errorf("%w: at least one tag is required", storage.ErrInvalidInput)
	}
	where := []string{"deleted_at IS NULL", clause}
	if timeStart != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *timeStart)
	}
	if timeEnd != nil {
		where = append(where, "created_at <= ?")
		args = append(args, *timeEnd)
	}
	query := fmt.Sprintf(`
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE %s ORDER BY created_at DESC`, strings.Join(where, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search by tag: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// SearchByTimeframe returns non-deleted memories created within [start,end].
func (s *MemoryStore) SearchByTimeframe(ctx context.Context, start, end float64, tag string) ([]*types.Memory, error) {
	query := `
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE deleted_at IS NULL AND created_at BETWEEN ? AND ?`
	args := []any{start, end}
	if tag != "" {
		query += ` AND (',' || tags_csv) LIKE '%,' || ? || ',%'`
		args = append(args, tag)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search by timeframe: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetByExactContent returns every non-deleted memory whose Content equals
// text exactly.
func (s *MemoryStore) GetByExactContent(ctx context.Context, text string) ([]*types.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE deleted_at IS NULL AND content = ?`, text)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get by exact content: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetMemoryTimestamps returns (hash, created_at, updated_at) for every
// non-deleted memory.
func (s *MemoryStore) GetMemoryTimestamps(ctx context.Context) ([]storage.MemoryTimestamp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, created_at, updated_at FROM memories WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memory timestamps: %w", err)
	}
	defer rows.Close()

	var out []storage.MemoryTimestamp
	for rows.Next() {
		var t storage.MemoryTimestamp
		if err := rows.Scan(&t.ContentHash, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan timestamp: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetMemoriesUpdatedSince returns non-deleted memories with updated_at > ts.
func (s *MemoryStore) GetMemoriesUpdatedSince(ctx context.Context, ts float64) ([]*types.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE deleted_at IS NULL AND updated_at > ?
		ORDER BY updated_at ASC`, ts)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memories updated since: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetAllContentHashes returns every content_hash present, including
// tombstoned rows, for O(1) bulk existence checks during reconciliation.
func (s *MemoryStore) GetAllContentHashes(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content_hash FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get all content hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("sqlite: scan hash: %w", err)
		}
		out[hash] = true
	}
	return out, rows.Err()
}

// GetStats returns aggregate counts and backend info.
func (s *MemoryStore) GetStats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL`).Scan(&stats.TotalMemories); err != nil {
		return nil, fmt.Errorf("sqlite: stats total: %w", err)
	}

	weekAgo := types.NowEpoch(time.Now().UTC().Add(-7 * 24 * time.Hour))
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL AND created_at >= ?`,
		weekAgo).Scan(&stats.CreatedThisWeek); err != nil {
		return nil, fmt.Errorf("sqlite: stats created this week: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT tags_csv FROM memories WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: stats tags: %w", err)
	}
	unique := make(map[string]bool)
	for rows.Next() {
		var csv string
		if err := rows.Scan(&csv); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scan tags: %w", err)
		}
		for _, t := range csvToTags(csv) {
			unique[t] = true
		}
	}
	rows.Close()
	stats.UniqueTagCount = int64(len(unique))

	var pageCount, pageSize int64
	_ = s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount)
	_ = s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize)
	stats.DBSizeBytes = pageCount * pageSize

	if s.embedder != nil {
		stats.EmbeddingModel = s.embedder.Model()
		stats.EmbeddingDim = s.embedder.Dimension()
	}

	return stats, nil
}

// IsDeleted reports whether hash exists and is tombstoned.
func (s *MemoryStore) IsDeleted(ctx context.Context, hash string) (bool, error) {
	var deletedAt sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT deleted_at FROM memories WHERE content_hash = ?`, hash).Scan(&deletedAt)
	if err == sql.ErrNoRows {
		return false, storage.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: is deleted: %w", err)
	}
	return deletedAt.Valid, nil
}

// PurgeDeleted physically removes tombstoned rows older than olderThanDays.
func (s *MemoryStore) PurgeDeleted(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := types.NowEpoch(time.Now().UTC().AddDate(0, 0, -olderThanDays))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin purge tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT content_hash FROM memories WHERE deleted_at IS NOT NULL AND deleted_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge select: %w", err)
	}
	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			rows.Close()
			return 0, fmt.Errorf("sqlite: purge scan: %w", err)
		}
		hashes = append(hashes, h)
	}
	rows.Close()

	for _, h := range hashes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE content_hash = ?`, h); err != nil {
			return 0, fmt.Errorf("sqlite: purge delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE content_hash = ?`, h); err != nil {
			return 0, fmt.Errorf("sqlite: purge fts delete: %w", err)
		}
		if s.dimension > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE content_hash = ?`, h); err != nil {
				return 0, fmt.Errorf("sqlite: purge vector delete: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_graph WHERE source_hash = ? OR target_hash = ?`, h, h); err != nil {
			return 0, fmt.Errorf("sqlite: purge graph delete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit purge: %w", err)
	}
	return len(hashes), nil
}

// tagWhereClause builds a SQL fragment and arg list for matching tags under
// op. Returns ("", nil) for an empty tag list.
func tagWhereClause(tags []string, op storage.TagOp) (string, []any) {
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
	for _, t := range tags {
		parts = append(parts, "(',' || tags_csv) LIKE '%,' || ? || ',%'")
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
			return nil, fmt.Errorf("sqlite: unmarshal metadata: %w", err)
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
			return nil, fmt.Errorf("sqlite: scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
