package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// serializeFloat32 packs a vector into the little-endian contiguous byte
// layout vec0 expects for a FLOAT[n] column.
func serializeFloat32(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func insertVector(ctx context.Context, tx *sql.Tx, hash string, vec []float32) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO memory_embeddings (content_hash, vector) VALUES (?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET vector = excluded.vector`,
		hash, serializeFloat32(vec))
	if err != nil {
		return fmt.Errorf("sqlite: insert vector: %w", err)
	}
	return nil
}

// Retrieve embeds queryText and returns the k nearest memories by cosine
// similarity, scored as 1 - d/2 over vec0's d in [0,2] (spec §4.2.5 — an L2
// score would need a different normalization and is explicitly rejected).
func (s *MemoryStore) Retrieve(ctx context.Context, queryText string, k int) ([]types.MemoryQueryResult, error) {
	return s.Recall(ctx, queryText, k, nil, nil)
}

// Recall combines semantic search with an optional time window. An empty
// queryText degrades to most-recent-within-window, since there is nothing
// to embed.
func (s *MemoryStore) Recall(ctx context.Context, queryText string, k int, timeStart, timeEnd *float64) ([]types.MemoryQueryResult, error) {
	if k <= 0 {
		k = 10
	}

	if queryText == "" {
		opts := storage.ListOptions{Limit: k, TimeStart: timeStart, TimeEnd: timeEnd}
		mems, err := s.GetAllMemories(ctx, opts)
		if err != nil {
			return nil, err
		}
		out := make([]types.MemoryQueryResult, 0, len(mems))
		for _, m := range mems {
			out = append(out, types.MemoryQueryResult{Memory: m})
		}
		return out, nil
	}

	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", storage.ErrInvalidInput)
	}

	vecs, err := s.embedder.Embed(ctx, []string{queryText})
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("sqlite: embed query: %w", err)
	}
	queryBlob := serializeFloat32(vecs[0])

	query := `
		SELECT m.content_hash, m.content, m.tags_csv, m.memory_type, m.metadata_json,
		       m.created_at, m.created_at_iso, m.updated_at, m.updated_at_iso, m.deleted_at,
		       v.distance
		FROM memory_embeddings v
		JOIN memories m ON m.content_hash = v.content_hash
		WHERE v.vector MATCH ? AND k = ? AND m.deleted_at IS NULL`
	args := []any{queryBlob, k}

	if timeStart != nil {
		query += " AND m.created_at >= ?"
		args = append(args, *timeStart)
	}
	if timeEnd != nil {
		query += " AND m.created_at <= ?"
		args = append(args, *timeEnd)
	}
	query += " ORDER BY v.distance ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recall query: %w", err)
	}
	defer rows.Close()

	var out []types.MemoryQueryResult
	for rows.Next() {
		var (
			m        types.Memory
			tagsCSV  string
			metaJSON string
			deleted  sql.NullFloat64
			distance float64
		)
		if err := rows.Scan(
			&m.ContentHash, &m.Content, &tagsCSV, &m.MemoryType, &metaJSON,
			&m.CreatedAt, &m.CreatedAtISO, &m.UpdatedAt, &m.UpdatedAtISO, &deleted,
			&distance,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan recall row: %w", err)
		}
		m.Tags = csvToTags(tagsCSV)
		if err := unmarshalMetadata(metaJSON, &m); err != nil {
			return nil, err
		}
		if deleted.Valid {
			v := deleted.Float64
			m.DeletedAt = &v
		}

		score := 1 - distance/2
		out = append(out, types.MemoryQueryResult{
			Memory:          &m,
			SimilarityScore: &score,
			Distance:        &distance,
		})
	}
	return out, rows.Err()
}

// deserializeFloat32 is the inverse of serializeFloat32, reading vec0's
// little-endian FLOAT[n] blob layout back into a vector.
func deserializeFloat32(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// GetAllMemoriesWithEmbeddings implements storage.EmbeddingLister: the same
// filters as GetAllMemories, but joined against memory_embeddings so
// consolidation (spec §4.6.5) never operates on a zero-embedding memory.
func (s *MemoryStore) GetAllMemoriesWithEmbeddings(ctx context.Context, opts storage.ListOptions) ([]*types.Memory, error) {
	opts.Normalize()

	where := []string{"m.deleted_at IS NULL"}
	args := []any{}
	if opts.MemoryType != "" {
		where = append(where, "m.memory_type = ?")
		args = append(args, opts.MemoryType)
	}
	if clause, targs := tagWhereClause(opts.Tags, opts.TagOp); clause != "" {
		where = append(where, strings.ReplaceAll(clause, "tags_csv", "m.tags_csv"))
		args = append(args, targs...)
	}
	if opts.TimeStart != nil {
		where = append(where, "m.created_at >= ?")
		args = append(args, *opts.TimeStart)
	}
	if opts.TimeEnd != nil {
		where = append(where, "m.created_at <= ?")
		args = append(args, *opts.TimeEnd)
	}

	query := fmt.Sprintf(`
		SELECT m.content_hash, m.content, m.tags_csv, m.memory_type, m.metadata_json,
		       m.created_at, m.created_at_iso, m.updated_at, m.updated_at_iso, m.deleted_at,
		       v.vector
		FROM memories m
		JOIN memory_embeddings v ON v.content_hash = m.content_hash
		WHERE %s
		ORDER BY m.created_at DESC LIMIT ? OFFSET ?`, strings.Join(where, " AND "))
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get all memories with embeddings: %w", err)
	}
	defer rows.Close()

	var out []*types.Memory
	for rows.Next() {
		var (
			m       types.Memory
			tagsCSV string
			meta    string
			deleted sql.NullFloat64
			vecBlob []byte
		)
		if err := rows.Scan(
			&m.ContentHash, &m.Content, &tagsCSV, &m.MemoryType, &meta,
			&m.CreatedAt, &m.CreatedAtISO, &m.UpdatedAt, &m.UpdatedAtISO, &deleted,
			&vecBlob,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan memory with embedding: %w", err)
		}
		m.Tags = csvToTags(tagsCSV)
		if err := unmarshalMetadata(meta, &m); err != nil {
			return nil, err
		}
		if deleted.Valid {
			v := deleted.Float64
			m.DeletedAt = &v
		}
		m.Embedding = deserializeFloat32(vecBlob)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func unmarshalMetadata(raw string, m *types.Memory) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &m.Metadata); err != nil {
		return fmt.Errorf("sqlite: unmarshal metadata: %w", err)
	}
	return nil
}
