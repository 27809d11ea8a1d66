package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a decoded platform event. Fields values are decimal strings,
// int64, bool or 0x-prefixed hex strings depending on the field kind.
type Event struct {
	Label       string                 `json:"label"`
	Address     string                 `json:"address"`
	BlockNumber uint64                 `json:"block_number"`
	BlockHash   string                 `json:"block_hash"`
	TxHash      string                 `json:"tx_hash"`
	LogIndex    uint64                 `json:"log_index"`
	Removed     bool                   `json:"removed,omitempty"`
	Fields      map[string]interface{} `json:"fields"`
}

// String returns the field as a string, or "" when absent or not a string.
func (e *Event) String(name string) string {
	if e == nil {
		return ""
	}
	s, _ := e.Fields[name].(string)
	return s
}

// Int returns the field as an int64.
func (e *Event) Int(name string) (int64, bool) {
	if e == nil {
		return 0, false
	}
	v, ok := e.Fields[name].(int64)
	return v, ok
}

// EventRecord is the flat storage form of an Event.
type EventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	Label       string          `json:"label"`
	Address     string          `json:"address"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Removed     bool            `json:"removed"`
	Fields      json.RawMessage `json:"fields"`
	IngestedAt  string          `json:"ingested_at"`

	// BlockTimestamp is only known for backfilled records.
	BlockTimestamp uint64 `json:"block_timestamp,omitempty"`
}

// NewEventRecord flattens ev for storage.
func NewEventRecord(chainID uint64, ev *Event, now time.Time) (EventRecord, error) {
	if ev == nil {
		return EventRecord{}, fmt.Errorf("nil event")
	}
	fields, err := json.Marshal(ev.Fields)
	if err != nil {
		return EventRecord{}, fmt.Errorf("marshal fields: %w", err)
	}
	return EventRecord{
		ChainID:     chainID,
		Label:       ev.Label,
		Address:     ev.Address,
		BlockNumber: ev.BlockNumber,
		BlockHash:   ev.BlockHash,
		TxHash:      ev.TxHash,
		LogIndex:    ev.LogIndex,
		Removed:     ev.Removed,
		Fields:      fields,
		IngestedAt:  now.UTC().Format(time.RFC3339),
	}, nil
}

// DecodeError is a log that could not be decoded, kept for inspection.
type DecodeError struct {
	Label       string `json:"label,omitempty"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Error       string `json:"error"`
}

// NewDecodeError describes why log failed to decode as label.
func NewDecodeError(label string, log RawLog, err error) DecodeError {
	out := DecodeError{
		Label:       label,
		Address:     log.Address,
		Topic0:      log.Topic0(),
		BlockNumber: uint64(log.BlockNumber),
		TxHash:      log.TransactionHash,
		LogIndex:    uint64(log.LogIndex),
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
