package config_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/config"
)

func clearBackendEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MCP_MEMORY_HOST", "MCP_MEMORY_STORAGE_BACKEND", "MCP_MEMORY_SQLITE_PATH",
		"MCP_MEMORY_USER_NAME", "MCP_REMOTE_DSN",
	} {
		_ = os.Unsetenv(key)
	}
}

func TestLoadConfig_DefaultHostIsLocalhost(t *testing.T) {
	clearBackendEnv(t)
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "Default host must be 127.0.0.1 for security")
}

func TestLoadConfig_CanOverrideHost(t *testing.T) {
	clearBackendEnv(t)
	t.Setenv("MCP_MEMORY_HOST", "0.0.0.0")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadConfig_DefaultBackendIsSqliteVec(t *testing.T) {
	clearBackendEnv(t)
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite_vec", cfg.Storage.Backend)
}

func TestLoadConfig_HybridBackendRequiresRemoteDSN(t *testing.T) {
	clearBackendEnv(t)
	t.Setenv("MCP_MEMORY_STORAGE_BACKEND", "hybrid")

	_, err := config.LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP_REMOTE_DSN")
}

func TestLoadConfig_HybridBackendSucceedsWhenRemoteDSNSet(t *testing.T) {
	clearBackendEnv(t)
	t.Setenv("MCP_MEMORY_STORAGE_BACKEND", "hybrid")
	t.Setenv("MCP_REMOTE_DSN", "postgres://localhost/memvault")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/memvault", cfg.Remote.PostgresDSN)
}

func TestUserConfig_DefaultValues(t *testing.T) {
	clearBackendEnv(t)
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.User.UserName, "Default UserName must be empty string when not configured")
}

func TestUserConfig_EnvVarFallback(t *testing.T) {
	clearBackendEnv(t)
	t.Setenv("MCP_MEMORY_USER_NAME", "alice")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.User.UserName)
}

func TestSaveConfig_PersistsUserName(t *testing.T) {
	db := openTestDB(t)
	defer func() { _ = db.Close() }()

	cfg := &config.Config{}
	cfg.User.UserName = "bob"

	err := cfg.SaveConfig(db)
	require.NoError(t, err, "SaveConfig must not return an error")

	var value string
	err = db.QueryRow("SELECT value FROM settings WHERE key = 'user_name'").Scan(&value)
	require.NoError(t, err, "user_name must be stored in settings table")
	assert.Equal(t, "bob", value, "stored user_name must match saved value")
}

func TestLoadConfigFromDB_ReadsUserName(t *testing.T) {
	db := openTestDB(t)
	defer func() { _ = db.Close() }()

	_, err := db.Exec(`INSERT INTO settings (key, value) VALUES ('user_name', 'charlie')`)
	require.NoError(t, err)

	clearBackendEnv(t)
	cfg, err := config.LoadConfigFromDB(db)
	require.NoError(t, err, "LoadConfigFromDB must not return an error")
	assert.Equal(t, "charlie", cfg.User.UserName, "UserName must be read from settings table")
}

func TestLoadConfigFromDB_DBOverridesEnvVar(t *testing.T) {
	db := openTestDB(t)
	defer func() { _ = db.Close() }()

	t.Setenv("MCP_MEMORY_USER_NAME", "env-user")

	_, err := db.Exec(`INSERT INTO settings (key, value) VALUES ('user_name', 'db-user')`)
	require.NoError(t, err)

	cfg, err := config.LoadConfigFromDB(db)
	require.NoError(t, err)
	assert.Equal(t, "db-user", cfg.User.UserName, "Database value must take precedence over environment variable")
}

func TestLoadConfigFromDB_FallsBackToEnvVar(t *testing.T) {
	db := openTestDB(t)
	defer func() { _ = db.Close() }()

	t.Setenv("MCP_MEMORY_USER_NAME", "fallback-user")

	cfg, err := config.LoadConfigFromDB(db)
	require.NoError(t, err)
	assert.Equal(t, "fallback-user", cfg.User.UserName, "Must fall back to env var when no DB entry exists")
}

func TestLoadConfigFromDB_NilDB(t *testing.T) {
	_, err := config.LoadConfigFromDB(nil)
	assert.Error(t, err, "LoadConfigFromDB with nil db must return an error")
}

func TestSaveConfig_NilDB(t *testing.T) {
	cfg := &config.Config{}
	cfg.User.UserName = "test"
	err := cfg.SaveConfig(nil)
	assert.Error(t, err, "SaveConfig with nil db must return an error")
}

func TestLoadDotEnv_LoadsFromWorkingDirectoryWithoutOverridingSetEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("MCP_MEMORY_TEST_ONLY_KEY=from-file\n"), 0o600))

	origWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(origWD) }()
	require.NoError(t, os.Chdir(dir))

	_ = os.Unsetenv("MCP_MEMORY_TEST_ONLY_KEY")
	require.NoError(t, config.LoadDotEnv())
	assert.Equal(t, "from-file", os.Getenv("MCP_MEMORY_TEST_ONLY_KEY"))

	t.Setenv("MCP_MEMORY_TEST_ONLY_KEY", "from-env")
	require.NoError(t, config.LoadDotEnv())
	assert.Equal(t, "from-env", os.Getenv("MCP_MEMORY_TEST_ONLY_KEY"),
		"an already-set environment variable must not be overridden by .env")
}

// openTestDB creates an in-memory SQLite database with the settings schema.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err, "Failed to open in-memory SQLite database")

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	require.NoError(t, err, "Failed to create settings table")

	return db
}
