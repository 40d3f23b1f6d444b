// Package sqlite implements the Local Vector Store (C2): a single-file,
// embedded store co-locating memory metadata, a full-text index, and a
// cosine k-NN vector index in one SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces" // loads the vec0 extension
	_ "github.com/ncruces/go-sqlite3/driver"              // pure-Go/WASM sqlite3 driver

	"github.com/memvault/memvault/internal/storage"
)

// MemoryStore implements storage.Store over a local SQLite database. It
// replaces the teacher's modernc.org/sqlite-backed store: modernc.org/sqlite
// is pure Go but cannot load native or WASM SQLite extensions, so it cannot
// host the vec0 virtual table spec §4.2.1/§4.2.5 requires for true cosine
// k-NN. ncruces/go-sqlite3 can, via its WASM runtime, and
// sqlite-vec-go-bindings/ncruces ships the matching vec0 build.
type MemoryStore struct {
	db        *sql.DB
	embedder  storage.EmbeddingProvider
	dimension int
}

// busyTimeoutMS matches spec §4.2.6's "busy_timeout >= 15 s".
const busyTimeoutMS = 15000

// NewMemoryStore opens (or creates) the database at path and constructs a
// MemoryStore bound to embedder. If the initial open fails with an error
// pattern characteristic of a stale WAL left by a crashed process, it
// verifies no other process holds the WAL files and retries once after
// removing them, carried from the teacher's self-healing open.
func NewMemoryStore(path string, embedder storage.EmbeddingProvider) (*MemoryStore, error) {
	store, err := openMemoryStore(path, embedder)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(path)
	if dbPath == "" || dbPath == ":memory:" {
		return nil, err
	}

	if !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := openMemoryStore(path, embedder)
	if retryErr != nil {
		return nil, fmt.Errorf("sqlite: failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

func openMemoryStore(path string, embedder storage.EmbeddingProvider) (*MemoryStore, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dsn = fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on", path, busyTimeoutMS)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// A single writer connection serializes writes and keeps us off
	// SQLITE_BUSY; WAL mode still lets readers proceed without blocking it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS)); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}

	dim := 0
	if embedder != nil {
		dim = embedder.Dimension()
	}

	return &MemoryStore{db: db, embedder: embedder, dimension: dim}, nil
}

// Initialize applies the schema (and the vec0 table once the embedding
// dimension is known) and records the schema version and embedding model in
// settings. Safe to call against an already-initialized database: every DDL
// statement is IF NOT EXISTS, so a second process opening the same file
// detects existing tables and performs no destructive work (spec §4.2.6).
func (s *MemoryStore) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrSchema, err)
	}

	if s.dimension > 0 {
		if _, err := s.db.ExecContext(ctx, vecTableStmt(s.dimension)); err != nil {
			return fmt.Errorf("%w: vec0 table: %v", storage.ErrSchema, err)
		}
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES ('schema_version', '1')
		 ON CONFLICT(key) DO NOTHING`); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrSchema, err)
	}

	if s.embedder != nil {
		if model := s.embedder.Model(); model != "" {
			if _, err := s.db.ExecContext(ctx,
				`INSERT INTO settings(key, value) VALUES ('embedding_model', ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, model); err != nil {
				return fmt.Errorf("%w: %v", storage.ErrSchema, err)
			}
		}
	}

	return nil
}

// Close releases the database handle.
func (s *MemoryStore) Close() error {
	return s.db.Close()
}

// normalizeTags trims whitespace and drops empties, preserving order and
// deduping exact repeats. Matches spec §4.5.1's normalization rules at the
// point tags are persisted.
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

// tagsToCSV renders tags as a comma-delimited string with leading and
// trailing commas, so exact-match lookups can use
// `(','||tags_csv||',') LIKE '%,'||?||',%'` without substring collisions
// (spec §4.2.3: "test" must never match "testing").
func tagsToCSV(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "," + strings.Join(normalizeTags(tags), ",") + ","
}

func csvToTags(csv string) []string {
	csv = strings.Trim(csv, ",")
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

// --- WAL self-healing, carried from the teacher's open-retry pattern ---

func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}
	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}
	return dsn
}

// isRecoverableWALError reports whether err matches the pattern left by
// stale WAL files after a crashed process (SIGKILL, OOM).
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "unable to open database file")
}

// isWALStale checks whether -shm/-wal files exist for dbPath and no other
// process currently holds them open. Returns false (conservative: no
// deletion) if lsof is unavailable.
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"

	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}

	cmd := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath)
	output, err := cmd.Output()
	if err != nil {
		return true
	}
	return strings.TrimSpace(string(output)) == ""
}

func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: failed to remove stale %s: %v", path, err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Kind identifies this backend for health reporting.
func (s *MemoryStore) Kind() string { return "sqlite" }

var _ storage.Store = (*MemoryStore)(nil)
