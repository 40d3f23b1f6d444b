// cmd/memvault-web is the entry point for memvault's REST surface (spec
// §6.2): a standalone HTTP server over the same service.Service boundary
// cmd/memvault-mcp serves over JSON-RPC, for deployments that want a
// dashboard or HTTP integration alongside (or instead of) stdio MCP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/memvault/memvault/internal/api/http"
	"github.com/memvault/memvault/internal/backup"
	"github.com/memvault/memvault/internal/config"
	"github.com/memvault/memvault/internal/consolidation"
	"github.com/memvault/memvault/internal/embedding"
	"github.com/memvault/memvault/internal/hybrid"
	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/internal/service"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/internal/storage/remote"
	"github.com/memvault/memvault/internal/storage/sqlite"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "memvault-web",
	Short: "Serve memvault's REST API over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cobra.OnInitialize(initLogging)
}

func initLogging() {
	levelStr, _ := rootCmd.PersistentFlags().GetString("log-level")
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	embedder, err := embedding.New(embedding.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		APIKey:   cfg.Embedding.APIKey,
		BaseURL:  cfg.Embedding.ExternalURL,
	})
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, hybridEngine, err := openStore(ctx, cfg, embedder)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("web: error closing store")
		}
	}()

	svc, err := service.New(store, embedder, service.Config{
		IncludeHostname: cfg.IncludeHostname,
	})
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	qualityProvider := quality.NewImplicit()

	var consolidator *consolidation.Consolidator
	if cfg.Consolidation.Enabled {
		consolCfg := consolidation.DefaultConfig()
		consolCfg.QualityBoostEnabled = cfg.Consolidation.QualityBoostEnabled
		consolCfg.MinConnectionsForBoost = cfg.Consolidation.MinConnectionsForBoost
		consolCfg.QualityBoostFactor = cfg.Consolidation.QualityBoostFactor
		consolCfg.GraphStorageMode = consolidation.GraphStorageMode(cfg.GraphStorageMode)

		consolidator, err = consolidation.New(store, qualityProvider, consolCfg)
		if err != nil {
			return fmt.Errorf("build consolidator: %w", err)
		}

		var horizons []consolidation.Horizon
		if cfg.Consolidation.ScheduleDaily {
			horizons = append(horizons, consolidation.HorizonDaily)
		}
		if cfg.Consolidation.ScheduleWeekly {
			horizons = append(horizons, consolidation.HorizonWeekly)
		}
		if cfg.Consolidation.ScheduleMonthly {
			horizons = append(horizons, consolidation.HorizonMonthly)
		}
		if len(horizons) > 0 && (cfg.Hybrid.SyncOwner == "http" || cfg.Hybrid.SyncOwner == "both" || hybridEngine == nil) {
			scheduler := consolidation.NewScheduler(consolidator, horizons...)
			scheduler.Start(ctx)
			defer scheduler.Stop()
		}
	}

	purger := backup.NewTombstonePurger(store, backup.TombstonePurgeConfig{
		RetentionDays: cfg.Tombstone.RetentionDays,
	})
	go purger.Start(ctx)
	defer purger.Stop()

	eventHub := httpapi.NewEventHub()
	go eventHub.Run()
	defer eventHub.Stop()

	opts := []httpapi.Option{httpapi.WithQualityProvider(qualityProvider), httpapi.WithEventHub(eventHub)}
	if hybridEngine != nil {
		opts = append(opts, httpapi.WithHybridEngine(hybridEngine))
	}
	if consolidator != nil {
		opts = append(opts, httpapi.WithConsolidator(consolidator))
	}
	srv := httpapi.New(svc, cfg, opts...)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("web: received shutdown signal")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("web: graceful shutdown failed")
		}
		cancel()
	}()

	log.Info().Str("addr", addr).Str("storage_backend", cfg.Storage.Backend).Msg("web: REST API listening")

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// openStore mirrors cmd/memvault-mcp's backend-selection logic: each
// entrypoint owns its own storage wiring rather than sharing a helper
// package, matching the teacher's one-setup-per-binary layout.
func openStore(ctx context.Context, cfg *config.Config, embedder storage.EmbeddingProvider) (storage.Store, *hybrid.Engine, error) {
	switch cfg.Storage.Backend {
	case "hybrid":
		local, err := sqlite.NewMemoryStore(cfg.Storage.SQLitePath, embedder)
		if err != nil {
			return nil, nil, fmt.Errorf("open local store: %w", err)
		}
		remoteStore, err := remote.NewStore(cfg.Remote.PostgresDSN, embedder, remote.Limits{})
		if err != nil {
			return nil, nil, fmt.Errorf("open remote store: %w", err)
		}
		engine, err := hybrid.NewEngine(local, remoteStore, hybrid.Config{
			BatchSize: cfg.Hybrid.BatchSize,
			Owner:     hybrid.SyncOwner(cfg.Hybrid.SyncOwner),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build hybrid engine: %w", err)
		}
		if err := engine.Initialize(ctx); err != nil {
			return nil, nil, fmt.Errorf("initialize hybrid engine: %w", err)
		}
		return engine, engine, nil

	case "cloudflare", "remote":
		remoteStore, err := remote.NewStore(cfg.Remote.PostgresDSN, embedder, remote.Limits{})
		if err != nil {
			return nil, nil, fmt.Errorf("open remote store: %w", err)
		}
		if err := remoteStore.Initialize(ctx); err != nil {
			return nil, nil, fmt.Errorf("initialize remote store: %w", err)
		}
		return remoteStore, nil, nil

	default: // sqlite_vec
		local, err := sqlite.NewMemoryStore(cfg.Storage.SQLitePath, embedder)
		if err != nil {
			return nil, nil, fmt.Errorf("open local store: %w", err)
		}
		if err := local.Initialize(ctx); err != nil {
			return nil, nil, fmt.Errorf("initialize local store: %w", err)
		}
		return local, nil, nil
	}
}
