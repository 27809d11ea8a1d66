package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marketScope/internal/chain"
	"marketScope/internal/config"
	"marketScope/internal/history"
	"marketScope/internal/storage"
	"marketScope/internal/storage/postgres"
)

const backfillStateName = "backfill"

func runBackfill(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadBackfill(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry, codec, err := newMarket(cfg.Contracts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, logger)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	out := storage.NewJSONL(cfg.Out)
	sinks := storage.MultiSink{out}
	var checkpoint history.Checkpointer
	if cfg.CheckpointEnabled {
		checkpoint = history.FileCheckpoint{Path: cfg.Checkpoint}
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store.Sink(ctx))
		if cfg.CheckpointEnabled {
			checkpoint = store.Checkpoint(backfillStateName)
		}
	}

	backfiller, err := history.NewBackfiller(history.Config{
		Labels:     cfg.Labels,
		Range:      history.BlockRange{From: cfg.FromBlock, To: cfg.ToBlock},
		BatchSize:  cfg.BatchSize,
		Retry:      history.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff},
		Timestamps: cfg.Timestamps,
	}, client, registry, codec, sinks, logger)
	if err != nil {
		return err
	}
	backfiller.WithErrorSink(storage.NewJSONL(cfg.Errors))
	if checkpoint != nil {
		backfiller.WithCheckpoint(checkpoint)
	}

	logger.Info("backfill start",
		zap.String("rpc", cfg.RPCURL),
		zap.Strings("labels", cfg.Labels),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	stats, err := backfiller.Run(ctx)
	logger.Info("backfill finished",
		zap.Int("batches", stats.Batches),
		zap.Int("logs", stats.Logs),
		zap.Int("events", stats.Events),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("decode_errors", stats.DecodeErrors),
	)
	return err
}
