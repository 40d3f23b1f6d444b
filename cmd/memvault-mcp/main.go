// cmd/memvault-mcp is the entry point for memvault's JSON-RPC 2.0 server
// (spec §6.1), serving MCP tool calls over stdin/stdout so an editor or
// agent harness can exec it directly.
//
// CRITICAL: all logging MUST go to stderr. Any bytes written to stdout that
// are not valid JSON-RPC 2.0 response frames will corrupt the protocol;
// zerolog's default writer is already stderr, so no redirection is needed,
// but nothing in this package or its dependencies may call fmt.Println or
// write to os.Stdout outside the transport itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/internal/api/mcp"
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
	Use:   "memvault-mcp",
	Short: "Serve memvault's JSON-RPC 2.0 memory tools over stdio",
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
			log.Error().Err(err).Msg("mcp: error closing store")
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
	var scheduler *consolidation.Scheduler
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
		if len(horizons) > 0 && (cfg.Hybrid.SyncOwner == "rpc" || cfg.Hybrid.SyncOwner == "both" || hybridEngine == nil) {
			scheduler = consolidation.NewScheduler(consolidator, horizons...)
			scheduler.Start(ctx)
			defer scheduler.Stop()
		}
	}

	srvOpts := []mcp.ServerOption{
		mcp.WithConfig(cfg),
		mcp.WithQualityProvider(qualityProvider),
	}
	if consolidator != nil {
		srvOpts = append(srvOpts, mcp.WithConsolidator(consolidator))
	}
	if scheduler != nil {
		srvOpts = append(srvOpts, mcp.WithScheduler(scheduler))
	}
	srv := mcp.NewServer(svc, srvOpts...)
	transport := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("mcp: received shutdown signal")
		cancel()
	}()

	log.Info().Str("storage_backend", cfg.Storage.Backend).Msg("mcp: ready, serving JSON-RPC 2.0 on stdin/stdout")

	if err := transport.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("transport: %w", err)
	}
	return nil
}

// openStore builds the storage.Store selected by cfg.Storage.Backend,
// returning the non-nil hybrid.Engine alongside it when the backend is
// "hybrid" so callers can wire its scheduler/sync surface.
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
