// Package remote implements the Remote Vector Store adapter (C3): a
// PostgreSQL + pgvector backed Store for durable, shared storage behind the
// Hybrid Storage Engine.
package remote

import "fmt"

// schema is the base DDL, mirroring the local store's table shape so C4 can
// treat either backend identically. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS memories (
	content_hash TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	tags_csv TEXT NOT NULL DEFAULT '',
	memory_type TEXT NOT NULL DEFAULT '',
	metadata_json JSONB NOT NULL DEFAULT '{}',
	created_at DOUBLE PRECISION NOT NULL,
	created_at_iso TEXT NOT NULL,
	updated_at DOUBLE PRECISION NOT NULL,
	updated_at_iso TEXT NOT NULL,
	deleted_at DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_memories_deleted_at ON memories(deleted_at);
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories(updated_at);
CREATE INDEX IF NOT EXISTS idx_memories_memory_type ON memories(memory_type);

CREATE TABLE IF NOT EXISTS memory_graph (
	source_hash TEXT NOT NULL,
	target_hash TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
	metadata_json JSONB NOT NULL DEFAULT '{}',
	PRIMARY KEY (source_hash, target_hash, relationship_type)
);

CREATE INDEX IF NOT EXISTS idx_memory_graph_source ON memory_graph(source_hash);
CREATE INDEX IF NOT EXISTS idx_memory_graph_target ON memory_graph(target_hash);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// enableVectorExtension is attempted once at Initialize; a server without
// pgvector installed fails this statement and the store falls back to
// text-only search, logged but not fatal (spec §4.3 has no hard pgvector
// requirement, only that vector search degrades gracefully).
const enableVectorExtension = `CREATE EXTENSION IF NOT EXISTS vector`

// vectorColumnStmt adds the embedding column once the dimension is known.
// Adding a column (rather than declaring it in schema) lets one remote
// database serve embedders of different widths across deployments, same as
// the local store's vecTableStmt.
func vectorColumnStmt(dimension int) string {
	return fmt.Sprintf(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'memories' AND column_name = 'embedding'
			) THEN
				ALTER TABLE memories ADD COLUMN embedding vector(%d);
			END IF;
		END
		$$;
	`, dimension)
}

// vectorIndexStmt creates the approximate nearest-neighbor index once rows
// exist to index (ivfflat requires a non-empty table to train on).
const vectorIndexStmt = `
DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_memories_embedding_cosine') THEN
		IF EXISTS (SELECT 1 FROM memories LIMIT 1) THEN
			EXECUTE 'CREATE INDEX idx_memories_embedding_cosine ON memories USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
		END IF;
	END IF;
END$$;
`
