package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"marketScope/internal/market"
)

func main() {
	root := &cobra.Command{
		Use:          "marketscope",
		Short:        "Prediction market event listener",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	listenCmd := &cobra.Command{
		Use:   "listen",
		Short: "Install filters and stream decoded events",
		RunE:  runListen,
	}
	addCommonFlags(listenCmd)
	listenCmd.Flags().StringSlice("labels", nil, "event labels to listen for (default: block plus every configured event)")
	listenCmd.Flags().Duration("poll-interval", 500*time.Millisecond, "filter poll interval")
	listenCmd.Flags().Float64("poll-rate", 20, "max eth_getFilterChanges calls per second, 0 disables")
	listenCmd.Flags().Int("poll-burst", 5, "poll rate burst")
	listenCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path, - for stdout")
	listenCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	listenCmd.Flags().String("status-addr", "", "status server address, empty disables")
	root.AddCommand(listenCmd)

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Fetch and decode historical events",
		RunE:  runBackfill,
	}
	addCommonFlags(backfillCmd)
	backfillCmd.Flags().StringSlice("labels", nil, "event labels to fetch (default: every configured event)")
	backfillCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	backfillCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	backfillCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	backfillCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path")
	backfillCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	backfillCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	backfillCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	backfillCmd.Flags().String("pg-dsn", "", "optional Postgres DSN; also stores the checkpoint")
	backfillCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	backfillCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	backfillCmd.Flags().Bool("timestamps", false, "attach block timestamps to records")
	root.AddCommand(backfillCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw node logs from a JSONL file",
		RunE:  runDecode,
	}
	addCommonFlags(decodeCmd)
	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/events.jsonl", "output event records JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	root.AddCommand(decodeCmd)

	pricesCmd := &cobra.Command{
		Use:   "prices",
		Short: "Print fill price history from event records",
		RunE:  runPrices,
	}
	addCommonFlags(pricesCmd)
	pricesCmd.Flags().String("in", "./data/events.jsonl", "input event records JSONL")
	pricesCmd.Flags().String("market", "", "market id, empty lists markets")
	root.AddCommand(pricesCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "node RPC URL (http, ws or IPC path)")
	cmd.Flags().StringToString("contracts", nil, "contract addresses (Name=0x...,...)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newMarket(contracts map[string]string) (*market.Registry, *market.Codec, error) {
	registry, err := market.NewRegistry(contracts)
	if err != nil {
		return nil, nil, fmt.Errorf("build market registry: %w", err)
	}
	codec, err := market.NewCodec(registry)
	if err != nil {
		return nil, nil, fmt.Errorf("build codec: %w", err)
	}
	return registry, codec, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
