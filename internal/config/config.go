// Package config loads memvault's configuration from environment variables
// (spec §6.4), generalizing the teacher's MEMENTO_-prefixed env-with-
// defaults layout to the MCP_MEMORY_*/MCP_HYBRID_*/MCP_CONSOLIDATION_* key
// surface. User-facing settings that must survive restarts (the display
// name) are still persisted to the settings table and read back via
// LoadConfigFromDB, exactly as the teacher does.
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every configuration surface memvault's entrypoints need.
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Remote        RemoteConfig
	Hybrid        HybridConfig
	Embedding     EmbeddingConfig
	Consolidation ConsolidationConfig
	Tombstone     TombstoneConfig
	Chunking      ChunkingConfig
	Security      SecurityConfig
	User          UserConfig
	Backup        BackupConfig

	// GraphStorageMode selects memories_only | graph_only | dual_write
	// (spec §4.6.6); internal/consolidation.Config.GraphStorageMode mirrors
	// the same three values.
	GraphStorageMode string

	// IncludeHostname, when true, auto-tags stored memories and stamps
	// metadata.hostname from the caller-supplied client_hostname, falling
	// back to the server's own hostname (spec §6.4).
	IncludeHostname bool

	// MaxResponseChars truncates retrieval responses at memory boundaries
	// for LLM context budgets; 0 disables truncation.
	MaxResponseChars int
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int
	Host string
}

// StorageConfig selects and configures the local storage backend.
type StorageConfig struct {
	// Backend is sqlite_vec | hybrid | cloudflare (remote-only), per
	// MCP_MEMORY_STORAGE_BACKEND. Default sqlite_vec for single-device use.
	Backend string
	// SQLitePath is the local DB file path (MCP_MEMORY_SQLITE_PATH).
	SQLitePath string
	// SQLitePragmas is the raw comma-separated pragma list
	// (MCP_MEMORY_SQLITE_PRAGMAS), kept for operational visibility; the
	// store itself already applies busy_timeout/WAL at the values the spec
	// recommends regardless of this setting (see internal/storage/sqlite).
	SQLitePragmas string
}

// RemoteConfig configures the remote vector store adapter (C3). The spec's
// Cloudflare fields are retained for operator visibility, but this
// module's remote adapter is PostgreSQL+pgvector (see DESIGN.md's
// rationale under internal/storage/remote), so PostgresDSN is the field
// actually consumed by cmd/* wiring.
type RemoteConfig struct {
	PostgresDSN string

	CloudflareAPIToken   string
	CloudflareAccountID  string
	CloudflareVectorize  string
	CloudflareD1Database string
	CloudflareR2Bucket   string
}

// HybridConfig tunes the background sync dispatcher (spec §4.4.4),
// generalizing directly to internal/hybrid.Config's fields.
type HybridConfig struct {
	SyncIntervalSeconds    int    // MCP_HYBRID_SYNC_INTERVAL, default 300
	BatchSize              int    // MCP_HYBRID_BATCH_SIZE, default 50-100
	MaxQueueSize           int    // MCP_HYBRID_MAX_QUEUE_SIZE, default 2000
	DriftCheckIntervalSecs int    // MCP_HYBRID_DRIFT_CHECK_INTERVAL, default 3600
	DriftBatchSize         int    // MCP_HYBRID_DRIFT_BATCH_SIZE
	SyncOwner              string // MCP_HYBRID_SYNC_OWNER: http | rpc | both
	SyncUpdates            bool   // MCP_HYBRID_SYNC_UPDATES
}

// EmbeddingConfig selects and configures the embedding provider (C1),
// generalizing directly to internal/embedding.Config's fields.
type EmbeddingConfig struct {
	// Provider selects ollama (default) | openai | external, mirroring
	// internal/embedding.Config.Provider.
	Provider      string // MCP_EMBEDDING_PROVIDER
	Model         string // MCP_EMBEDDING_MODEL
	ExternalURL   string // MCP_EXTERNAL_EMBEDDING_URL
	ExternalModel string // MCP_EXTERNAL_EMBEDDING_MODEL
	APIKey        string // MCP_EXTERNAL_EMBEDDING_API_KEY
}

// ConsolidationConfig mirrors internal/consolidation.Config's schedule and
// quality-boost knobs so they can be overridden from the environment
// without touching consolidation's own defaulting logic.
type ConsolidationConfig struct {
	Enabled                bool
	ScheduleDaily          bool
	ScheduleWeekly         bool
	ScheduleMonthly        bool
	QualityBoostEnabled    bool
	MinConnectionsForBoost int
	QualityBoostFactor     float64
}

// TombstoneConfig controls the soft-delete purge daemon (spec §4.4.7).
type TombstoneConfig struct {
	RetentionDays int // TOMBSTONE_RETENTION_DAYS, default 30
}

// BackupConfig controls cmd/memvault-backup's periodic snapshot daemon
// (spec §6.5 "persisted state layout"), generalizing internal/backup's
// interval/retention knobs to the environment.
type BackupConfig struct {
	Dir             string // MCP_BACKUP_DIR, default ./data/backups
	IntervalSeconds int    // MCP_BACKUP_INTERVAL_SECONDS, default 21600 (6h)
	RetentionCount  int    // MCP_BACKUP_RETENTION_COUNT, default 7
}

// ChunkingConfig controls automatic long-content splitting.
type ChunkingConfig struct {
	EnableAutoSplit    bool // MCP_ENABLE_AUTO_SPLIT
	SplitOverlap       int  // MCP_CONTENT_SPLIT_OVERLAP
	PreserveBoundaries bool // CONTENT_PRESERVE_BOUNDARIES
}

// SecurityConfig contains authentication settings for the REST surface.
type SecurityConfig struct {
	APIToken string
}

// UserConfig contains user-specific settings persisted across restarts via
// the settings table.
type UserConfig struct {
	UserName string
}

// rootMarker is the file whose presence identifies the project root when
// walking up from the working directory in search of a .env file.
const rootMarker = "go.mod"

// LoadDotEnv loads a .env file from, in order: the current working
// directory, the project root (the nearest ancestor containing a go.mod),
// then ~/.mcp-memory/.env. Only the first existing file in that order is
// loaded, and godotenv.Load never overrides a variable already present in
// the environment, matching spec §6.4's "loaded on startup without
// overriding already-set environment variables."
func LoadDotEnv() error {
	for _, path := range dotEnvCandidates() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return godotenv.Load(path)
	}
	return nil
}

func dotEnvCandidates() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
		if root := findProjectRoot(cwd); root != "" && root != cwd {
			paths = append(paths, filepath.Join(root, ".env"))
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".mcp-memory", ".env"))
	}
	return paths
}

// findProjectRoot walks up from dir looking for rootMarker, returning the
// first ancestor that contains it, or "" if none does.
func findProjectRoot(dir string) string {
	for {
		if _, err := os.Stat(filepath.Join(dir, rootMarker)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// requiredKeysForBackend lists the environment variables a given storage
// backend cannot start without (spec §6.4: "Missing required keys for a
// selected backend fail the startup with a specific error naming the
// missing variables").
func requiredKeysForBackend(backend string) []string {
	switch backend {
	case "hybrid":
		return []string{"MCP_MEMORY_SQLITE_PATH", "MCP_REMOTE_DSN"}
	case "cloudflare":
		return []string{"CLOUDFLARE_API_TOKEN", "CLOUDFLARE_ACCOUNT_ID", "CLOUDFLARE_VECTORIZE_INDEX"}
	default: // sqlite_vec
		return []string{"MCP_MEMORY_SQLITE_PATH"}
	}
}

// LoadConfig loads configuration from environment variables, first loading
// a .env file per LoadDotEnv's search order, then validates that every
// required key for the selected storage backend is set.
func LoadConfig() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("config: failed to load .env: %w", err)
	}

	cfg := buildBaseConfig()
	if err := validateRequiredKeys(cfg.Storage.Backend); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateRequiredKeys(backend string) error {
	var missing []string
	for _, key := range requiredKeysForBackend(backend) {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variable(s) for backend %q: %s",
			backend, strings.Join(missing, ", "))
	}
	return nil
}

// LoadConfigFromDB loads configuration from both environment variables and
// the database. The database value takes precedence over the environment
// variable for user settings, falling back to the environment variable
// when no DB entry exists.
func LoadConfigFromDB(db *sql.DB) (*Config, error) {
	if db == nil {
		return nil, errors.New("config: database connection is required")
	}

	cfg := buildBaseConfig()

	userName, err := getSetting(db, "user_name")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config: failed to load user_name from database: %w", err)
	}
	if userName != "" {
		cfg.User.UserName = userName
	}

	return cfg, nil
}

// SaveConfig persists user configuration settings to the settings table
// using upsert semantics.
func (c *Config) SaveConfig(db *sql.DB) error {
	if db == nil {
		return errors.New("config: database connection is required")
	}
	if err := setSetting(db, "user_name", c.User.UserName); err != nil {
		return fmt.Errorf("config: failed to save user_name: %w", err)
	}
	return nil
}

func getSetting(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

func setSetting(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("MCP_MEMORY_PORT", 6363),
			Host: getEnv("MCP_MEMORY_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			Backend:       getEnv("MCP_MEMORY_STORAGE_BACKEND", "sqlite_vec"),
			SQLitePath:    getEnv("MCP_MEMORY_SQLITE_PATH", "./data/memvault.db"),
			SQLitePragmas: getEnv("MCP_MEMORY_SQLITE_PRAGMAS", "busy_timeout=15000,cache_size=20000"),
		},
		Remote: RemoteConfig{
			PostgresDSN:          getEnv("MCP_REMOTE_DSN", ""),
			CloudflareAPIToken:   getEnv("CLOUDFLARE_API_TOKEN", ""),
			CloudflareAccountID:  getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
			CloudflareVectorize:  getEnv("CLOUDFLARE_VECTORIZE_INDEX", ""),
			CloudflareD1Database: getEnv("CLOUDFLARE_D1_DATABASE_ID", ""),
			CloudflareR2Bucket:   getEnv("CLOUDFLARE_R2_BUCKET", ""),
		},
		Hybrid: HybridConfig{
			SyncIntervalSeconds:    getEnvInt("MCP_HYBRID_SYNC_INTERVAL", 300),
			BatchSize:              getEnvInt("MCP_HYBRID_BATCH_SIZE", 50),
			MaxQueueSize:           getEnvInt("MCP_HYBRID_MAX_QUEUE_SIZE", 2000),
			DriftCheckIntervalSecs: getEnvInt("MCP_HYBRID_DRIFT_CHECK_INTERVAL", 3600),
			DriftBatchSize:         getEnvInt("MCP_HYBRID_DRIFT_BATCH_SIZE", 100),
			SyncOwner:              getEnv("MCP_HYBRID_SYNC_OWNER", "both"),
			SyncUpdates:            getEnvBool("MCP_HYBRID_SYNC_UPDATES", true),
		},
		Embedding: EmbeddingConfig{
			Provider:      getEnv("MCP_EMBEDDING_PROVIDER", "ollama"),
			Model:         getEnv("MCP_EMBEDDING_MODEL", "nomic-embed-text"),
			ExternalURL:   getEnv("MCP_EXTERNAL_EMBEDDING_URL", ""),
			ExternalModel: getEnv("MCP_EXTERNAL_EMBEDDING_MODEL", ""),
			APIKey:        getEnv("MCP_EXTERNAL_EMBEDDING_API_KEY", ""),
		},
		Consolidation: ConsolidationConfig{
			Enabled:                getEnvBool("MCP_CONSOLIDATION_ENABLED", true),
			ScheduleDaily:          getEnvBool("MCP_SCHEDULE_DAILY", true),
			ScheduleWeekly:         getEnvBool("MCP_SCHEDULE_WEEKLY", true),
			ScheduleMonthly:        getEnvBool("MCP_SCHEDULE_MONTHLY", true),
			QualityBoostEnabled:    getEnvBool("MCP_CONSOLIDATION_QUALITY_BOOST_ENABLED", true),
			MinConnectionsForBoost: getEnvInt("MCP_CONSOLIDATION_MIN_CONNECTIONS_FOR_BOOST", 5),
			QualityBoostFactor:     getEnvFloat("MCP_CONSOLIDATION_QUALITY_BOOST_FACTOR", 1.2),
		},
		Tombstone: TombstoneConfig{
			RetentionDays: getEnvInt("TOMBSTONE_RETENTION_DAYS", 30),
		},
		Chunking: ChunkingConfig{
			EnableAutoSplit:    getEnvBool("MCP_ENABLE_AUTO_SPLIT", false),
			SplitOverlap:       getEnvInt("MCP_CONTENT_SPLIT_OVERLAP", 200),
			PreserveBoundaries: getEnvBool("CONTENT_PRESERVE_BOUNDARIES", true),
		},
		Security: SecurityConfig{
			APIToken: getEnv("MCP_MEMORY_API_TOKEN", ""),
		},
		User: UserConfig{
			UserName: getEnv("MCP_MEMORY_USER_NAME", ""),
		},
		Backup: BackupConfig{
			Dir:             getEnv("MCP_BACKUP_DIR", "./data/backups"),
			IntervalSeconds: getEnvInt("MCP_BACKUP_INTERVAL_SECONDS", 21600),
			RetentionCount:  getEnvInt("MCP_BACKUP_RETENTION_COUNT", 7),
		},
		GraphStorageMode: getEnv("GRAPH_STORAGE_MODE", "graph_only"),
		IncludeHostname:  getEnvBool("MCP_MEMORY_INCLUDE_HOSTNAME", false),
		MaxResponseChars: getEnvInt("MCP_MAX_RESPONSE_CHARS", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
