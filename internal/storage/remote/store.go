package remote

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sony/gobreaker"

	"github.com/memvault/memvault/internal/storage"
)

// maxMetadataBytes is the per-record vector metadata size limit (spec
// §4.3 constraint 1).
const maxMetadataBytes = 10 * 1024

// capacityWarnThreshold / capacityCriticalThreshold are the fractions of
// Limits.MaxVectors at which Capacity reports Warning and Critical. Store
// refuses writes once the live row count reaches MaxVectors (spec §4.3
// constraint 2).
const (
	capacityWarnThreshold     = 0.80
	capacityCriticalThreshold = 0.95
)

// Limits bundles the adapter's configurable ceilings.
type Limits struct {
	MaxContentLength int // spec §4.3 constraint 3; 0 disables the check
	MaxVectors       int // approximate capacity; 0 disables capacity checks
	BatchSize        int // default batch size for batch endpoints (50-100)
}

func (l *Limits) normalize() {
	if l.BatchSize <= 0 {
		l.BatchSize = 100
	}
}

// Store implements storage.Store over PostgreSQL with pgvector for cosine
// similarity search. It replaces the teacher's entity/relationship-aware
// postgres.MemoryStore with the spec's simpler single-table shape, and adds
// the capacity/size/retry guarantees a remote adapter must enforce that an
// embedded local store does not need.
type Store struct {
	db              *sql.DB
	embedder        storage.EmbeddingProvider
	dimension       int
	vectorAvailable bool
	limits          Limits
	breaker         *circuitBreakers
}

type circuitBreakers struct {
	write *gobreaker.CircuitBreaker
	read  *gobreaker.CircuitBreaker
}

// NewStore opens a PostgreSQL connection pool and constructs a Store bound
// to embedder. dsn is a standard postgres:// connection string.
func NewStore(dsn string, embedder storage.EmbeddingProvider, limits Limits) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("remote: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("remote: failed to ping database: %w", err)
	}

	limits.normalize()

	dim := 0
	if embedder != nil {
		dim = embedder.Dimension()
	}

	return &Store{
		db:        db,
		embedder:  embedder,
		dimension: dim,
		limits:    limits,
		breaker: &circuitBreakers{
			write: newCircuitBreaker("remote-write"),
			read:  newCircuitBreaker("remote-read"),
		},
	}, nil
}

// Initialize applies the base schema, attempts to enable pgvector (logging
// and continuing in text-only mode if unavailable — matching the teacher's
// graceful-degradation posture), and adds the embedding column/index once
// the dimension is known.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrSchema, err)
	}

	if _, err := s.db.ExecContext(ctx, enableVectorExtension); err != nil {
		log.Printf("remote: pgvector extension not available (vector search disabled): %v", err)
		s.vectorAvailable = false
	} else {
		s.vectorAvailable = true
	}

	if s.vectorAvailable && s.dimension > 0 {
		if _, err := s.db.ExecContext(ctx, vectorColumnStmt(s.dimension)); err != nil {
			log.Printf("remote: failed to add embedding column (vector search disabled): %v", err)
			s.vectorAvailable = false
		} else if _, err := s.db.ExecContext(ctx, vectorIndexStmt); err != nil {
			log.Printf("remote: failed to build embedding index: %v", err)
		}
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES ('schema_version', '1')
		 ON CONFLICT(key) DO NOTHING`); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrSchema, err)
	}

	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Kind identifies this backend for health reporting.
func (s *Store) Kind() string { return "remote" }

var _ storage.Store = (*Store)(nil)
