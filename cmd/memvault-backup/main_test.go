package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func createTestDB(t *testing.T, dbPath string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(dbPath), 0o755))

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(`CREATE TABLE memories (content_hash TEXT PRIMARY KEY, content TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO memories (content_hash, content) VALUES ('abc', 'hello')`)
	require.NoError(t, err)
}

func newFlaggedCmd(t *testing.T, dbPath, backupDir string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("db", dbPath, "")
	cmd.Flags().String("backup-dir", backupDir, "")
	return cmd
}

func TestBuildServiceUsesExplicitFlagsOverConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	backupDir := filepath.Join(dir, "backups")
	createTestDB(t, dbPath)

	svc, err := buildService(newFlaggedCmd(t, dbPath, backupDir))
	require.NoError(t, err)
	require.NotNil(t, svc)

	result, err := svc.BackupNow(context.Background())
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.FileExists(t, result.Path)
}

func TestBackupThenRestoreRoundTrips(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	backupDir := filepath.Join(dir, "backups")
	createTestDB(t, dbPath)

	svc, err := buildService(newFlaggedCmd(t, dbPath, backupDir))
	require.NoError(t, err)

	result, err := svc.BackupNow(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(dbPath))
	require.NoError(t, svc.RestoreBackup(context.Background(), result.Path))
	require.FileExists(t, dbPath)
}

func TestListBackupsReflectsBackupNow(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	backupDir := filepath.Join(dir, "backups")
	createTestDB(t, dbPath)

	svc, err := buildService(newFlaggedCmd(t, dbPath, backupDir))
	require.NoError(t, err)

	_, err = svc.BackupNow(context.Background())
	require.NoError(t, err)

	backups, err := svc.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
}
