package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewEventRecord(t *testing.T) {
	ev := &Event{
		Label:       "withdraw",
		Address:     "0xa34c9f6fc047cea795f69b34a063d32e6cb6288c",
		BlockNumber: 300,
		TxHash:      "0xaacf",
		LogIndex:    1,
		Fields: map[string]interface{}{
			"to":    "0x0000000000000000000000000000000000000001",
			"value": "0.000000001482123703",
		},
	}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	rec, err := NewEventRecord(1, ev, now)
	if err != nil {
		t.Fatalf("NewEventRecord error: %v", err)
	}
	if rec.Label != "withdraw" || rec.BlockNumber != 300 || rec.LogIndex != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.IngestedAt != "2024-01-02T03:04:05Z" {
		t.Fatalf("ingested_at mismatch: %s", rec.IngestedAt)
	}

	var fields map[string]string
	if err := json.Unmarshal(rec.Fields, &fields); err != nil {
		t.Fatalf("fields not json: %v", err)
	}
	if fields["value"] != "0.000000001482123703" {
		t.Fatalf("value mismatch: %s", fields["value"])
	}
}

func TestNewEventRecordNil(t *testing.T) {
	if _, err := NewEventRecord(1, nil, time.Now()); err == nil {
		t.Fatalf("expected error for nil event")
	}
}

func TestEventAccessors(t *testing.T) {
	ev := &Event{Fields: map[string]interface{}{"type": "buy", "outcome": int64(2)}}
	if ev.String("type") != "buy" {
		t.Fatalf("type mismatch")
	}
	if v, ok := ev.Int("outcome"); !ok || v != 2 {
		t.Fatalf("outcome mismatch: %d %v", v, ok)
	}
	if ev.String("missing") != "" {
		t.Fatalf("missing field should be empty")
	}
	var nilEv *Event
	if nilEv.String("type") != "" {
		t.Fatalf("nil event should be empty")
	}
}
