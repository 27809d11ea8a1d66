package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marketScope/internal/chain"
	"marketScope/internal/config"
	"marketScope/internal/filters"
	"marketScope/internal/history"
	"marketScope/internal/market"
	"marketScope/internal/model"
	"marketScope/internal/status"
	"marketScope/internal/storage"
	"marketScope/internal/storage/postgres"
)

func runListen(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadListen(cfgFile, cmd.Flags())
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
	labels := cfg.Labels
	if len(labels) == 0 {
		labels = defaultListenLabels(registry)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, logger)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	sinks := storage.MultiSink{storage.NewJSONL(cfg.Out)}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store.Sink(context.Background()))
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orchestrator, err := filters.NewOrchestrator(client, registry, codec, filters.Config{
		Driver: filters.DriverConfig{
			PollInterval: cfg.PollInterval,
			PollRate:     cfg.PollRate,
			PollBurst:    cfg.PollBurst,
		},
		Metrics: filters.NewMetrics(promRegistry),
	}, logger)
	if err != nil {
		return err
	}

	rec := &recorder{
		chainID: chainID.Uint64(),
		sink:    sinks,
		prices:  history.NewPriceHistory(),
		logger:  logger,
	}
	handlers := make(filters.Handlers, len(labels))
	for _, label := range labels {
		handlers[label] = rec.handle
	}

	if cfg.StatusAddr != "" {
		srv := status.NewServer(cfg.StatusAddr, status.Options{
			Filters:  orchestrator,
			Prices:   rec.prices,
			Gatherer: promRegistry,
			Logger:   logger,
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("status server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("listen start",
		zap.String("rpc", cfg.RPCURL),
		zap.Bool("subscriptions", client.SubscriptionsSupported()),
		zap.Strings("labels", labels),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("out", cfg.Out),
	)

	snapshot, err := orchestrator.Listen(ctx, handlers)
	active := 0
	for _, entry := range snapshot {
		if entry.Active() {
			active++
		}
	}
	if err != nil {
		if active == 0 {
			return fmt.Errorf("no filters installed: %w", err)
		}
		logger.Warn("some filters failed to install", zap.Error(err))
	}
	logger.Info("listening", zap.Int("active_filters", active))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := orchestrator.Close(shutdownCtx); err != nil {
		logger.Warn("remove filters", zap.Error(err))
	}
	logger.Info("listen stopped", zap.Bool("all_filters_removed", orchestrator.AllFiltersRemoved()))
	return nil
}

// defaultListenLabels is the block label plus every event whose contract
// address is configured.
func defaultListenLabels(registry *market.Registry) []string {
	labels := []string{market.LabelBlock}
	for _, label := range registry.Labels() {
		if spec, ok := registry.Event(label); ok && spec.HasAddress() {
			labels = append(labels, label)
		}
	}
	return labels
}

type recorder struct {
	chainID uint64
	sink    storage.Sink
	prices  *history.PriceHistory
	logger  *zap.Logger
}

func (r *recorder) handle(msg filters.Message) {
	switch {
	case msg.Err != nil:
		r.logger.Warn("undecodable message", zap.String("label", msg.Label), zap.ByteString("raw", msg.Raw), zap.Error(msg.Err))
	case msg.Block != nil:
		r.logger.Info("new block", zap.String("hash", msg.Block.Hash), zap.Uint64("number", uint64(msg.Block.Number)))
	case msg.Log != nil:
		r.logger.Info("contract log",
			zap.String("address", msg.Log.Address),
			zap.String("topic0", msg.Log.Topic0()),
			zap.String("tx_hash", msg.Log.TransactionHash),
		)
	case msg.Event != nil:
		r.prices.Add(msg.Event)
		record, err := model.NewEventRecord(r.chainID, msg.Event, time.Now())
		if err != nil {
			r.logger.Warn("build record", zap.String("label", msg.Label), zap.Error(err))
			return
		}
		if err := r.sink.PutEvents([]model.EventRecord{record}); err != nil {
			r.logger.Error("store event", zap.String("label", msg.Label), zap.Error(err))
			return
		}
		r.logger.Debug("event", zap.String("label", msg.Label), zap.String("tx_hash", record.TxHash), zap.Uint64("log_index", record.LogIndex))
	}
}
