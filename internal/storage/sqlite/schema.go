package sqlite

import "fmt"

// schema creates the tables and indices for the local store (spec §4.2.1).
// It is re-run on every Initialize; every statement is idempotent
// (IF NOT EXISTS) so an already-initialized database is detected and DDL is
// effectively skipped (spec §4.2.6).
const schema = `
CREATE TABLE IF NOT EXISTS memories (
	content_hash TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	tags_csv TEXT NOT NULL DEFAULT '',
	memory_type TEXT NOT NULL DEFAULT '',
	metadata_json TEXT NOT NULL DEFAULT '{}',
	created_at REAL NOT NULL,
	created_at_iso TEXT NOT NULL,
	updated_at REAL NOT NULL,
	updated_at_iso TEXT NOT NULL,
	deleted_at REAL
);

CREATE INDEX IF NOT EXISTS idx_memories_deleted_at ON memories(deleted_at);
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories(updated_at);
CREATE INDEX IF NOT EXISTS idx_memories_memory_type ON memories(memory_type);

CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	content_hash UNINDEXED,
	content,
	tokenize = 'porter unicode61'
);

CREATE TABLE IF NOT EXISTS memory_graph (
	source_hash TEXT NOT NULL,
	target_hash TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	similarity REAL NOT NULL DEFAULT 0,
	metadata_json TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (source_hash, target_hash, relationship_type)
);

CREATE INDEX IF NOT EXISTS idx_memory_graph_source ON memory_graph(source_hash);
CREATE INDEX IF NOT EXISTS idx_memory_graph_target ON memory_graph(target_hash);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// vecTableStmt creates the sqlite-vec virtual table holding embeddings. It is
// issued separately from schema because the dimension is only known once the
// embedding provider is constructed (spec §3.1: "D is embedding-provider-
// defined").
func vecTableStmt(dimension int) string {
	return fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_embeddings USING vec0(
			content_hash TEXT PRIMARY KEY,
			vector FLOAT[%d] distance_metric=cosine
		)`, dimension)
}
