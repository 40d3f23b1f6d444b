package remote

import (
	"context"
	"encoding/json"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// Retrieve is Recall without a time window.
func (s *Store) Retrieve(ctx context.Context, queryText string, k int) ([]types.MemoryQueryResult, error) {
	return s.Recall(ctx, queryText, k, nil, nil)
}

// Recall runs cosine-similarity search via pgvector's <=> operator, falling
// back to recency when the query is empty or pgvector is unavailable
// (mirrors the teacher's VectorSearch degrade-to-List posture).
func (s *Store) Recall(ctx context.Context, queryText string, k int, timeStart, timeEnd *float64) ([]types.MemoryQueryResult, error) {
	if k <= 0 {
		k = 10
	}

	if queryText == "" || !s.vectorAvailable || s.embedder == nil {
		recents, err := s.GetAllMemories(ctx, storage.ListOptions{
			Limit:     k,
			TimeStart: timeStart,
			TimeEnd:   timeEnd,
		})
		if err != nil {
			return nil, err
		}
		out := make([]types.MemoryQueryResult, len(recents))
		for i, m := range recents {
			out[i] = types.MemoryQueryResult{Memory: m}
		}
		return out, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("remote: embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vectors", storage.ErrInvalidInput)
	}
	query := pgvector.NewVector(vecs[0])

	where := []string{"embedding IS NOT NULL", "deleted_at IS NULL"}
	args := []any{query}
	idx := 2
	if timeStart != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, *timeStart)
		idx++
	}
	if timeEnd != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, *timeEnd)
		idx++
	}
	args = append(args, k)

	query_ := fmt.Sprintf(`
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at,
		       embedding <=> $1 AS distance
		FROM memories
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d`, joinWhere(where), idx)

	var out []types.MemoryQueryResult
	err = guarded(ctx, s.breaker.read, func() error {
		rows, err := s.db.QueryContext(ctx, query_, args...)
		if err != nil {
			return fmt.Errorf("remote: recall query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			m, dist, scanErr := scanMemoryWithDistance(rows)
			if scanErr != nil {
				return fmt.Errorf("remote: recall scan: %w", scanErr)
			}
			// pgvector cosine distance is in [0,2]; rescale to a [0,1] score
			// the same way the local store does.
			score := 1 - dist/2
			out = append(out, types.MemoryQueryResult{
				Memory:          m,
				SimilarityScore: &score,
				Distance:        &dist,
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func joinWhere(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " AND " + p
	}
	return out
}

func scanMemoryWithDistance(rows interface{ Scan(dest ...any) error }) (*types.Memory, float64, error) {
	var (
		m         types.Memory
		tagsCSV   string
		metaJSON  string
		deletedAt *float64
		distance  float64
	)
	if err := rows.Scan(
		&m.ContentHash, &m.Content, &tagsCSV, &m.MemoryType, &metaJSON,
		&m.CreatedAt, &m.CreatedAtISO, &m.UpdatedAt, &m.UpdatedAtISO, &deletedAt,
		&distance,
	); err != nil {
		return nil, 0, err
	}
	m.Tags = csvToTags(tagsCSV)
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			return nil, 0, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	m.DeletedAt = deletedAt
	return &m, distance, nil
}
