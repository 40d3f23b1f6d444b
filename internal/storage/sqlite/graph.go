package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// StoreAssociation inserts a graph edge. Callers insert the reverse edge
// themselves when the relationship type is symmetric (types.IsSymmetric);
// this keeps the storage layer from having to know relationship semantics.
func (s *MemoryStore) StoreAssociation(ctx context.Context, assoc *types.Association) error {
	if assoc == nil || assoc.SourceHash == "" || assoc.TargetHash == "" {
		return fmt.Errorf("%w: source and target hashes are required", storage.ErrInvalidInput)
	}
	if !types.IsValidRelationshipType(assoc.RelationshipType) {
		return fmt.Errorf("%w: unknown relationship type %q", storage.ErrInvalidInput, assoc.RelationshipType)
	}

	metaJSON, err := json.Marshal(assoc.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", storage.ErrInvalidInput, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_graph (source_hash, target_hash, relationship_type, similarity, metadata_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_hash, target_hash, relationship_type) DO UPDATE SET
			similarity = excluded.similarity,
			metadata_json = excluded.metadata_json
	`, assoc.SourceHash, assoc.TargetHash, string(assoc.RelationshipType), assoc.Similarity, string(metaJSON))
	if err != nil {
		return fmt.Errorf("sqlite: store association: %w", err)
	}
	return nil
}

// graphBoundsLimit caps BFS expansion so a pathological graph cannot make a
// single request walk the entire database (spec §4.2.4 graph operations
// bound cost).
const graphBoundsLimit = 2000

// FindConnected returns memories reachable from hash within hops edges in
// the given direction, via breadth-first expansion with cycle detection.
func (s *MemoryStore) FindConnected(ctx context.Context, hash string, hops int, direction storage.Direction) ([]*types.Memory, error) {
	if hops < 1 {
		hops = 1
	}

	visited := map[string]bool{hash: true}
	frontier := []string{hash}
	var reached []string

	for hop := 0; hop < hops && len(frontier) > 0; hop++ {
		next, err := s.neighbors(ctx, frontier, direction)
		if err != nil {
			return nil, err
		}

		var nextFrontier []string
		for _, n := range next {
			if visited[n] {
				continue
			}
			visited[n] = true
			nextFrontier = append(nextFrontier, n)
			reached = append(reached, n)
			if len(reached) >= graphBoundsLimit {
				return s.hydrateMemories(ctx, reached)
			}
		}
		frontier = nextFrontier
	}

	return s.hydrateMemories(ctx, reached)
}

func (s *MemoryStore) neighbors(ctx context.Context, hashes []string, direction storage.Direction) ([]string, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(hashes))
	args := make([]any, len(hashes))
	for i, h := range hashes {
		placeholders[i] = "?"
		args[i] = h
	}
	inClause := "(" + joinPlaceholders(placeholders) + ")"

	var query string
	switch direction {
	case storage.DirectionOut:
		query = fmt.Sprintf(`SELECT target_hash FROM memory_graph WHERE source_hash IN %s`, inClause)
	case storage.DirectionIn:
		query = fmt.Sprintf(`SELECT source_hash FROM memory_graph WHERE target_hash IN %s`, inClause)
	default:
		query = fmt.Sprintf(`
			SELECT target_hash FROM memory_graph WHERE source_hash IN %s
			UNION
			SELECT source_hash FROM memory_graph WHERE target_hash IN %s`, inClause, inClause)
		args = append(args, args...)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: neighbors: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("sqlite: scan neighbor: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func joinPlaceholders(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func (s *MemoryStore) hydrateMemories(ctx context.Context, hashes []string) ([]*types.Memory, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(hashes))
	args := make([]any, len(hashes))
	for i, h := range hashes {
		placeholders[i] = "?"
		args[i] = h
	}
	query := fmt.Sprintf(`
		SELECT content_hash, content, tags_csv, memory_type, metadata_json,
		       created_at, created_at_iso, updated_at, updated_at_iso, deleted_at
		FROM memories WHERE deleted_at IS NULL AND content_hash IN (%s)`, joinPlaceholders(placeholders))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: hydrate memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ShortestPath returns the sequence of content hashes from a to b, inclusive,
// via unweighted BFS bounded by graphBoundsLimit expansions.
func (s *MemoryStore) ShortestPath(ctx context.Context, a, b string) ([]string, error) {
	if a == b {
		return []string{a}, nil
	}

	type node struct {
		hash string
		prev string
	}
	visited := map[string]string{a: ""}
	queue := []string{a}
	expansions := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		next, err := s.neighbors(ctx, []string{cur}, storage.DirectionOut)
		if err != nil {
			return nil, err
		}
		expansions++
		if expansions > graphBoundsLimit {
			break
		}

		for _, n := range next {
			if _, ok := visited[n]; ok {
				continue
			}
			visited[n] = cur
			if n == b {
				return reconstructPath(visited, a, b), nil
			}
			queue = append(queue, n)
		}
	}

	return nil, storage.ErrNotFound
}

func reconstructPath(visited map[string]string, a, b string) []string {
	path := []string{b}
	cur := b
	for cur != a {
		cur = visited[cur]
		path = append([]string{cur}, path...)
	}
	return path
}

// GetSubgraph returns every node and edge within radius hops of hash.
func (s *MemoryStore) GetSubgraph(ctx context.Context, hash string, radius int) (*storage.Subgraph, error) {
	if radius < 1 {
		radius = 1
	}

	visited := map[string]bool{hash: true}
	frontier := []string{hash}
	var edges []types.Association

	for hop := 0; hop < radius && len(frontier) > 0; hop++ {
		rows, err := s.edgesFrom(ctx, frontier)
		if err != nil {
			return nil, err
		}
		var nextFrontier []string
		for _, e := range rows {
			edges = append(edges, e)
			for _, h := range []string{e.SourceHash, e.TargetHash} {
				if !visited[h] {
					visited[h] = true
					nextFrontier = append(nextFrontier, h)
				}
			}
		}
		frontier = nextFrontier
	}

	hashes := make([]string, 0, len(visited))
	for h := range visited {
		hashes = append(hashes, h)
	}

	return &storage.Subgraph{Hashes: hashes, Edges: edges}, nil
}

func (s *MemoryStore) edgesFrom(ctx context.Context, hashes []string) ([]types.Association, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(hashes))
	args := make([]any, len(hashes))
	for i, h := range hashes {
		placeholders[i] = "?"
		args[i] = h
	}
	inClause := joinPlaceholders(placeholders)
	args = append(args, args...)

	query := fmt.Sprintf(`
		SELECT source_hash, target_hash, relationship_type, similarity, metadata_json
		FROM memory_graph WHERE source_hash IN (%s) OR target_hash IN (%s)`, inClause, inClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: edges from: %w", err)
	}
	defer rows.Close()

	var out []types.Association
	for rows.Next() {
		var a types.Association
		var rt, metaJSON string
		if err := rows.Scan(&a.SourceHash, &a.TargetHash, &rt, &a.Similarity, &metaJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan edge: %w", err)
		}
		a.RelationshipType = types.RelationshipType(rt)
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal edge metadata: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
