package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketScope/internal/model"
	"marketScope/internal/storage"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS market_events (
	chain_id        BIGINT      NOT NULL,
	label           TEXT        NOT NULL,
	address         TEXT        NOT NULL,
	block_number    BIGINT      NOT NULL,
	block_hash      TEXT        NOT NULL,
	block_timestamp BIGINT,
	tx_hash         TEXT        NOT NULL,
	log_index       BIGINT      NOT NULL,
	removed         BOOLEAN     NOT NULL DEFAULT false,
	fields          JSONB       NOT NULL,
	ingested_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tx_hash, log_index)
);
CREATE INDEX IF NOT EXISTS market_events_label_block ON market_events (label, block_number);
CREATE TABLE IF NOT EXISTS listener_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT      NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for decoded events and listener state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertEvents stores records, skipping any (tx_hash, log_index) already
// present. A removed record updates the stored flag.
func (s *Store) InsertEvents(ctx context.Context, records []model.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		var ts *int64
		if r.BlockTimestamp != 0 {
			v := int64(r.BlockTimestamp)
			ts = &v
		}
		fields := string(r.Fields)
		if fields == "" {
			fields = "{}"
		}
		batch.Queue(`
			INSERT INTO market_events (
				chain_id, label, address, block_number, block_hash, block_timestamp,
				tx_hash, log_index, removed, fields, ingested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::timestamptz)
			ON CONFLICT (tx_hash, log_index)
			DO UPDATE SET removed = EXCLUDED.removed
			WHERE market_events.removed IS DISTINCT FROM EXCLUDED.removed
		`,
			int64(r.ChainID),
			r.Label,
			r.Address,
			int64(r.BlockNumber),
			r.BlockHash,
			ts,
			r.TxHash,
			int64(r.LogIndex),
			r.Removed,
			fields,
			r.IngestedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

// LoadState returns the last processed block for name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM listener_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO listener_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}

// Checkpoint exposes the named listener state as a backfill checkpoint.
func (s *Store) Checkpoint(name string) *StateCheckpoint {
	return &StateCheckpoint{store: s, name: name}
}

// StateCheckpoint adapts a listener_state row to history.Checkpointer.
type StateCheckpoint struct {
	store *Store
	name  string
}

func (c *StateCheckpoint) Load(ctx context.Context) (uint64, bool, error) {
	return c.store.LoadState(ctx, c.name)
}

func (c *StateCheckpoint) Save(ctx context.Context, block uint64) error {
	return c.store.SaveState(ctx, c.name, block)
}

// Sink binds the store to ctx so it can be used as a storage.Sink.
func (s *Store) Sink(ctx context.Context) storage.Sink {
	return eventSink{ctx: ctx, store: s}
}

type eventSink struct {
	ctx   context.Context
	store *Store
}

func (e eventSink) PutEvents(records []model.EventRecord) error {
	return e.store.InsertEvents(e.ctx, records)
}
