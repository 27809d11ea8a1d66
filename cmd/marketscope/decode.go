package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marketScope/internal/config"
	"marketScope/internal/market"
	"marketScope/internal/model"
	"marketScope/internal/storage"
)

// runDecode decodes node log records offline. Chain id is unknown here and
// recorded as zero.
func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	_, codec, err := newMarket(cfg.Contracts)
	if err != nil {
		return err
	}

	input, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	out := storage.NewJSONL(cfg.Out)
	errOut := storage.NewJSONL(cfg.Errors)

	logger.Info("decode start", zap.String("in", cfg.In), zap.String("out", cfg.Out), zap.String("errors", cfg.Errors))

	var total, decoded, skipped, failed int
	now := time.Now()
	err = storage.ReadLines(input, func(lineNo int, line []byte) error {
		total++

		var raw model.RawLog
		if err := json.Unmarshal(line, &raw); err != nil {
			failed++
			return errOut.PutDecodeErrors([]model.DecodeError{{Error: fmt.Sprintf("line %d: %v", lineNo, err)}})
		}

		ev, err := codec.DecodeLog(raw)
		if errors.Is(err, market.ErrUnknownLabel) {
			skipped++
			return nil
		}
		if err != nil {
			failed++
			label, _ := codec.EventLabel(raw.Topic0())
			return errOut.PutDecodeErrors([]model.DecodeError{model.NewDecodeError(label, raw, err)})
		}

		record, err := model.NewEventRecord(0, ev, now)
		if err != nil {
			return err
		}
		decoded++
		return out.PutEvents([]model.EventRecord{record})
	})
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}
