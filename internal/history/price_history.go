package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"marketScope/internal/model"
)

// Trade fill labels that carry a price.
const (
	LabelFill      = "log_fill_tx"
	LabelShortFill = "log_short_fill_tx"
)

// PricePoint is one fill of a market outcome.
type PricePoint struct {
	Price       string `json:"price"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	IsShortSell bool   `json:"isShortSell"`
	Sender      string `json:"sender"`
	Owner       string `json:"owner"`
	TradeID     string `json:"tradeid"`
	BlockNumber uint64 `json:"blockNumber"`
	LogIndex    uint64 `json:"logIndex"`
	TxHash      string `json:"transactionHash"`
	Timestamp   uint64 `json:"timestamp,omitempty"`
}

// OutcomeHistory maps an outcome index to its fills in chain order.
type OutcomeHistory map[int64][]PricePoint

// PriceHistory accumulates fills per market and outcome. It is safe for
// concurrent use.
type PriceHistory struct {
	mu      sync.RWMutex
	markets map[string]OutcomeHistory
	seen    map[string]struct{}
}

func NewPriceHistory() *PriceHistory {
	return &PriceHistory{
		markets: make(map[string]OutcomeHistory),
		seen:    make(map[string]struct{}),
	}
}

// Add records ev if it is a fill. It reports whether the event was used.
// Removed events and repeats of the same (tx, log index) are ignored.
func (h *PriceHistory) Add(ev *model.Event) bool {
	return h.add(ev, 0)
}

func (h *PriceHistory) add(ev *model.Event, timestamp uint64) bool {
	if ev == nil || ev.Removed || (ev.Label != LabelFill && ev.Label != LabelShortFill) {
		return false
	}
	marketID := strings.ToLower(ev.String("market"))
	outcome, ok := ev.Int("outcome")
	if marketID == "" || !ok {
		return false
	}
	isShortSell, _ := ev.Fields["isShortSell"].(bool)

	point := PricePoint{
		Price:       ev.String("price"),
		Amount:      ev.String("amount"),
		Type:        ev.String("type"),
		IsShortSell: isShortSell,
		Sender:      ev.String("sender"),
		Owner:       ev.String("owner"),
		TradeID:     ev.String("tradeid"),
		BlockNumber: ev.BlockNumber,
		LogIndex:    ev.LogIndex,
		TxHash:      ev.TxHash,
		Timestamp:   timestamp,
	}
	key := fmt.Sprintf("%d:%s:%d", ev.BlockNumber, ev.TxHash, ev.LogIndex)

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, dup := h.seen[key]; dup {
		return false
	}
	h.seen[key] = struct{}{}

	outcomes, ok := h.markets[marketID]
	if !ok {
		outcomes = make(OutcomeHistory)
		h.markets[marketID] = outcomes
	}
	outcomes[outcome] = append(outcomes[outcome], point)
	return true
}

// AddRecord decodes a stored event record and adds it.
func (h *PriceHistory) AddRecord(rec model.EventRecord) (bool, error) {
	if rec.Label != LabelFill && rec.Label != LabelShortFill {
		return false, nil
	}
	ev, err := EventFromRecord(rec)
	if err != nil {
		return false, err
	}
	return h.add(ev, rec.BlockTimestamp), nil
}

// Market returns a copy of the history of one market with fills ordered by
// block and log index. Unknown markets yield an empty history.
func (h *PriceHistory) Market(marketID string) OutcomeHistory {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(OutcomeHistory)
	for outcome, points := range h.markets[strings.ToLower(marketID)] {
		cp := append([]PricePoint(nil), points...)
		sort.SliceStable(cp, func(i, j int) bool {
			if cp[i].BlockNumber != cp[j].BlockNumber {
				return cp[i].BlockNumber < cp[j].BlockNumber
			}
			return cp[i].LogIndex < cp[j].LogIndex
		})
		out[outcome] = cp
	}
	return out
}

// Markets returns the ids of markets with at least one fill, sorted.
func (h *PriceHistory) Markets() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.markets))
	for id := range h.markets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EventFromRecord rebuilds an Event from its storage form. Integer fields
// come back as int64, other numbers as their literal text.
func EventFromRecord(rec model.EventRecord) (*model.Event, error) {
	fields := make(map[string]interface{})
	if len(rec.Fields) > 0 {
		dec := json.NewDecoder(bytes.NewReader(rec.Fields))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", rec.Label, err)
		}
	}
	for name, v := range fields {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			fields[name] = i
		} else {
			fields[name] = n.String()
		}
	}
	return &model.Event{
		Label:       rec.Label,
		Address:     rec.Address,
		BlockNumber: rec.BlockNumber,
		BlockHash:   rec.BlockHash,
		TxHash:      rec.TxHash,
		LogIndex:    rec.LogIndex,
		Removed:     rec.Removed,
		Fields:      fields,
	}, nil
}
