// cmd/memvault-backup is the operational surface backing spec §6.5's
// persisted-state layout: periodic SQLite snapshots with tiered retention,
// plus one-shot backup/restore/list/health operations for operators.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/internal/backup"
	"github.com/memvault/memvault/internal/config"
	"github.com/memvault/memvault/internal/storage/sqlite"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "memvault-backup",
	Short: "Back up and restore memvault's local SQLite store",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd, runCmd, restoreCmd, listCmd, healthCmd, purgeCmd)

	for _, cmd := range []*cobra.Command{serveCmd, runCmd, restoreCmd, listCmd, healthCmd, purgeCmd} {
		cmd.Flags().String("db", "", "Path to the SQLite database file (defaults to MCP_MEMORY_SQLITE_PATH)")
		cmd.Flags().String("backup-dir", "", "Directory to store backups in (defaults to MCP_BACKUP_DIR)")
	}
	serveCmd.Flags().Duration("interval", 0, "Backup interval (defaults to MCP_BACKUP_INTERVAL_SECONDS)")
	restoreCmd.Flags().String("from", "", "Backup file path to restore from (required)")
	_ = restoreCmd.MarkFlagRequired("from")
	purgeCmd.Flags().Int("retention-days", 0, "Tombstone retention in days (defaults to TOMBSTONE_RETENTION_DAYS)")
}

func initLogging() {
	levelStr, _ := rootCmd.PersistentFlags().GetString("log-level")
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// buildService resolves config plus any --db/--backup-dir/--interval
// overrides into a ready backup.BackupService.
func buildService(cmd *cobra.Command) (*backup.BackupService, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = cfg.Storage.SQLitePath
	}
	backupDir, _ := cmd.Flags().GetString("backup-dir")
	if backupDir == "" {
		backupDir = cfg.Backup.Dir
	}
	interval := time.Duration(cfg.Backup.IntervalSeconds) * time.Second
	if d, _ := cmd.Flags().GetDuration("interval"); d > 0 {
		interval = d
	}

	return backup.NewBackupService(backup.BackupConfig{
		DBPath:        dbPath,
		BackupDir:     backupDir,
		Interval:      interval,
		VerifyBackups: true,
		Retention: backup.RetentionPolicy{
			Daily: cfg.Backup.RetentionCount,
		},
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backup service as a daemon, snapshotting on a fixed interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			log.Info().Msg("backup: received shutdown signal")
			_ = svc.Stop()
			cancel()
		}()

		if err := svc.Start(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("backup service: %w", err)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform a single backup immediately and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cmd)
		if err != nil {
			return err
		}
		result, err := svc.BackupNow(cmd.Context())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("backup written to %s (%d bytes, verified=%v, took %s)\n",
			result.Path, result.Size, result.Verified, result.Duration)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the database from a backup file",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cmd)
		if err != nil {
			return err
		}
		from, _ := cmd.Flags().GetString("from")
		if err := svc.RestoreBackup(cmd.Context(), from); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("restored from %s\n", from)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cmd)
		if err != nil {
			return err
		}
		backups, err := svc.ListBackups()
		if err != nil {
			return fmt.Errorf("list backups: %w", err)
		}
		if len(backups) == 0 {
			fmt.Println("no backups found")
			return nil
		}
		for _, b := range backups {
			fmt.Printf("%s\t%s\t%d bytes\tverified=%v\n",
				b.Timestamp.Format(time.RFC3339), b.Path, b.Size, b.Verified)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report the backup service's health",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService(cmd)
		if err != nil {
			return err
		}
		status, err := svc.HealthCheck()
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		fmt.Printf("status=%s message=%q total_backups=%d disk_used=%d bytes dir=%s\n",
			status.Status, status.Message, status.TotalBackups, status.DiskSpaceUsed, status.BackupDir)
		if status.Status != "healthy" {
			os.Exit(1)
		}
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Physically remove tombstoned (soft-deleted) rows older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dbPath, _ := cmd.Flags().GetString("db")
		if dbPath == "" {
			dbPath = cfg.Storage.SQLitePath
		}
		retentionDays, _ := cmd.Flags().GetInt("retention-days")
		if retentionDays == 0 {
			retentionDays = cfg.Tombstone.RetentionDays
		}

		store, err := sqlite.NewMemoryStore(dbPath, nil)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() { _ = store.Close() }()
		if err := store.Initialize(cmd.Context()); err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}

		purger := backup.NewTombstonePurger(store, backup.TombstonePurgeConfig{RetentionDays: retentionDays})
		n, err := purger.SweepOnce(cmd.Context())
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		fmt.Printf("purged %d tombstoned row(s) older than %d day(s)\n", n, retentionDays)
		return nil
	},
}
