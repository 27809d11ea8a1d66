package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marketScope/internal/config"
	"marketScope/internal/history"
	"marketScope/internal/model"
	"marketScope/internal/storage"
)

func runPrices(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPrices(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	input, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	prices := history.NewPriceHistory()
	err = storage.ReadLines(input, func(lineNo int, line []byte) error {
		var rec model.EventRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("skip line", zap.Int("line", lineNo), zap.Error(err))
			return nil
		}
		if _, err := prices.AddRecord(rec); err != nil {
			logger.Warn("skip record", zap.Int("line", lineNo), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if cfg.Market == "" {
		return enc.Encode(prices.Markets())
	}
	return enc.Encode(prices.Market(cfg.Market))
}
