package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lootex/aggregatord/internal/chain"
	"github.com/lootex/aggregatord/internal/config"
	"github.com/lootex/aggregatord/internal/opensea"
	"github.com/lootex/aggregatord/internal/reconciler"
	"github.com/lootex/aggregatord/internal/store"
)

// runCmd starts the daemon (default action).
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the order aggregation daemon",
	Long: `Start aggregatord: open the order mirror database, connect to the
configured chain RPC endpoints, backfill marketplace events since the last
checkpoint, then run the reconciliation sweeps and, when enabled, the
marketplace push-event stream.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd, args)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	readers := make(map[uint64]chain.Reader, len(cfg.Chains))
	for tag, cc := range cfg.Chains {
		client, err := chain.Dial(cc.RPCURL, cc.ChainID)
		if err != nil {
			return fmt.Errorf("dial chain %s: %w", tag, err)
		}
		readers[cc.ChainID] = client
		logger.Info("chain connected", "chain", tag, "chain_id", cc.ChainID)
	}

	// api stays a nil interface when no key is configured so the
	// reconciler skips its marketplace jobs.
	var api reconciler.MarketAPI
	if cfg.OpenSea.APIKey != "" {
		client, err := opensea.NewClient(cfg.OpenSea.APIKey, logger,
			opensea.WithBaseURL(cfg.OpenSea.BaseURL),
			opensea.WithPageDelay(cfg.OpenSea.PageDelay))
		if err != nil {
			return fmt.Errorf("opensea client: %w", err)
		}
		api = client
	} else {
		logger.Warn("no opensea api key configured, mirroring disabled")
	}

	var chk *reconciler.Checkpoints
	if cfg.Reconciler.CheckpointPath != "" {
		chk, err = reconciler.OpenCheckpoints(cfg.Reconciler.CheckpointPath)
		if err != nil {
			return fmt.Errorf("open checkpoints: %w", err)
		}
		defer chk.Close()
	}

	rec, err := reconciler.New(st, readers, api, chk, logger, reconciler.Options{
		SoldMarkerTTL:        cfg.Reconciler.SoldMarkerTTL,
		RemovalTTL:           cfg.Reconciler.RemovalTTL,
		ExpiryInterval:       cfg.Reconciler.ExpiryInterval,
		RepairInterval:       cfg.Reconciler.RepairInterval,
		ReloadInterval:       cfg.Reconciler.ReloadInterval,
		BackfillWindow:       cfg.Reconciler.BackfillWindow,
		RecomputeParallelism: cfg.Reconciler.RecomputeParallelism,
	})
	if err != nil {
		return err
	}

	if api != nil {
		if err := rec.ReloadWatched(ctx); err != nil {
			return fmt.Errorf("load watched collections: %w", err)
		}
		logger.Info("backfilling marketplace events")
		if err := rec.Backfill(ctx); err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rec.Run(ctx)
	})

	if api != nil && cfg.OpenSea.Stream {
		var streamOpts []opensea.StreamOption
		if cfg.OpenSea.StreamURL != "" {
			streamOpts = append(streamOpts, opensea.WithStreamURL(cfg.OpenSea.StreamURL))
		}
		stream, err := opensea.NewStream(cfg.OpenSea.APIKey, func(eventType string, ev *opensea.Event) error {
			return rec.HandleEvent(ctx, eventType, ev)
		}, logger, streamOpts...)
		if err != nil {
			return fmt.Errorf("opensea stream: %w", err)
		}
		for _, w := range rec.Watched() {
			if w.Selected && w.Slug != "" {
				if err := stream.Subscribe(w.Slug); err != nil {
					return fmt.Errorf("subscribe %s: %w", w.Slug, err)
				}
			}
		}
		stream.Start(ctx)
		defer stream.Stop()
	}

	logger.Info("aggregatord started", "chains", len(readers), "stream", cfg.OpenSea.Stream)

	err = g.Wait()
	if ctx.Err() != nil {
		logger.Info("shutting down")
		return nil
	}
	return err
}

// buildLogger constructs the process logger from the logging section.
func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler), nil
}
