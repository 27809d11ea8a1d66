package history

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"marketScope/internal/market"
	"marketScope/internal/model"
	"marketScope/internal/storage"
)

// LogSource is the subset of the chain client a backfill needs.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Config holds backfill settings. A zero Range.To means the latest block.
type Config struct {
	Labels     []string
	Range      BlockRange
	BatchSize  uint64
	Retry      RetryPolicy
	Timestamps bool
}

// Stats summarizes a backfill run.
type Stats struct {
	Batches      int
	Logs         int
	Events       int
	Duplicates   int
	DecodeErrors int
	From         uint64
	To           uint64
}

// Backfiller fetches historical logs for a set of event labels, decodes them
// and writes event records to a sink.
type Backfiller struct {
	cfg        Config
	source     LogSource
	registry   *market.Registry
	codec      *market.Codec
	sink       storage.Sink
	errSink    storage.ErrorSink
	checkpoint Checkpointer
	logger     *zap.Logger
	now        func() time.Time

	labels    map[string]struct{}
	addresses []common.Address
	topics    []common.Hash
	seen      map[string]struct{}
}

// NewBackfiller resolves cfg.Labels against the registry. Every label must be
// a known event with a configured contract address. No labels selects every
// event whose contract address is configured.
func NewBackfiller(cfg Config, source LogSource, registry *market.Registry, codec *market.Codec, sink storage.Sink, logger *zap.Logger) (*Backfiller, error) {
	if source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if registry == nil || codec == nil {
		return nil, fmt.Errorf("registry and codec are required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	if cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Backfiller{
		cfg:      cfg,
		source:   source,
		registry: registry,
		codec:    codec,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
		labels:   make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
	if err := b.resolve(); err != nil {
		return nil, err
	}
	return b, nil
}

// WithCheckpoint enables resuming from and saving to cp.
func (b *Backfiller) WithCheckpoint(cp Checkpointer) *Backfiller {
	b.checkpoint = cp
	return b
}

// WithErrorSink records logs that fail to decode instead of only logging them.
func (b *Backfiller) WithErrorSink(sink storage.ErrorSink) *Backfiller {
	b.errSink = sink
	return b
}

func (b *Backfiller) resolve() error {
	labels := b.cfg.Labels
	explicit := len(labels) > 0
	if !explicit {
		labels = b.registry.Labels()
	}

	seenAddr := make(map[common.Address]struct{})
	for _, label := range labels {
		spec, ok := b.registry.Event(label)
		if !ok {
			return fmt.Errorf("%w: %s", market.ErrUnknownLabel, label)
		}
		if !spec.HasAddress() {
			if explicit {
				return fmt.Errorf("no address configured for %s (contract %s)", label, spec.Contract)
			}
			continue
		}
		b.labels[label] = struct{}{}
		b.topics = append(b.topics, spec.Topics()...)
		if _, ok := seenAddr[spec.Address]; !ok {
			seenAddr[spec.Address] = struct{}{}
			b.addresses = append(b.addresses, spec.Address)
		}
	}
	if len(b.labels) == 0 {
		return fmt.Errorf("no event labels with configured addresses")
	}
	return nil
}

// Run walks the configured range in batches. Each batch is written before its
// last block is checkpointed.
func (b *Backfiller) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	chainID, err := retry(ctx, b.cfg.Retry, b.logger, "chain_id", b.source.GetChainID)
	if err != nil {
		return stats, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return stats, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	window := b.cfg.Range
	if window.To == 0 {
		latest, err := retry(ctx, b.cfg.Retry, b.logger, "latest_block", b.source.LatestBlockNumber)
		if err != nil {
			return stats, fmt.Errorf("get latest block: %w", err)
		}
		window.To = latest
	}

	if b.checkpoint != nil {
		last, ok, err := b.checkpoint.Load(ctx)
		if err != nil {
			return stats, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok && last >= window.From {
			window.From = last + 1
			b.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", window.From))
		}
	}
	stats.From, stats.To = window.From, window.To

	if window.From > window.To {
		b.logger.Info("nothing to backfill", zap.Uint64("from", window.From), zap.Uint64("to", window.To))
		return stats, nil
	}

	batches, err := window.Batches(b.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := b.runBatch(ctx, chainID.Uint64(), batch, &stats); err != nil {
			return stats, err
		}
		stats.Batches++
	}
	return stats, nil
}

func (b *Backfiller) runBatch(ctx context.Context, chainID uint64, batch BlockRange, stats *Stats) error {
	logs, err := retry(ctx, b.cfg.Retry, b.logger, "filter_logs", func(ctx context.Context) ([]types.Log, error) {
		return b.source.FilterLogs(ctx, batch.From, batch.To, b.addresses, b.topics)
	})
	if err != nil {
		return fmt.Errorf("filter logs %d-%d: %w", batch.From, batch.To, err)
	}
	stats.Logs += len(logs)

	ingestedAt := b.now()
	records := make([]model.EventRecord, 0, len(logs))
	var failures []model.DecodeError
	for _, log := range logs {
		if b.isDuplicate(log) {
			stats.Duplicates++
			continue
		}
		raw := rawLogFromTypes(log)
		label, ok := b.codec.EventLabel(raw.Topic0())
		if !ok {
			continue
		}
		if _, wanted := b.labels[label]; !wanted {
			continue
		}

		ev, err := b.codec.DecodeLog(raw)
		if err != nil {
			b.logger.Warn("decode failed", zap.String("label", label), zap.String("tx_hash", raw.TransactionHash), zap.Uint("log_index", log.Index), zap.Error(err))
			failures = append(failures, model.NewDecodeError(label, raw, err))
			continue
		}

		record, err := model.NewEventRecord(chainID, ev, ingestedAt)
		if err != nil {
			return fmt.Errorf("build record: %w", err)
		}
		if b.cfg.Timestamps {
			ts, err := retry(ctx, b.cfg.Retry, b.logger, "block_timestamp", func(ctx context.Context) (uint64, error) {
				return b.source.BlockTimestamp(ctx, log.BlockNumber)
			})
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			record.BlockTimestamp = ts
		}
		records = append(records, record)
	}

	if err := b.sink.PutEvents(records); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	stats.Events += len(records)

	stats.DecodeErrors += len(failures)
	if b.errSink != nil {
		if err := b.errSink.PutDecodeErrors(failures); err != nil {
			return fmt.Errorf("store decode errors: %w", err)
		}
	}

	if b.checkpoint != nil {
		if err := b.checkpoint.Save(ctx, batch.To); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}

	b.logger.Info("batch complete",
		zap.Uint64("from", batch.From),
		zap.Uint64("to", batch.To),
		zap.Int("events", len(records)),
		zap.Int("decode_errors", len(failures)),
	)
	return nil
}

func (b *Backfiller) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := b.seen[id]; ok {
		return true
	}
	b.seen[id] = struct{}{}
	return false
}
