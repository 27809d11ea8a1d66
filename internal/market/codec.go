package market

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"marketScope/internal/model"
)

var (
	// ErrUnknownLabel is returned for labels with no decoder.
	ErrUnknownLabel = errors.New("unknown event label")
	// ErrNotSingleton is returned when an array input does not hold exactly one record.
	ErrNotSingleton = errors.New("expected a record or a one-element array")
	// ErrMalformedLog is returned when a record does not match its event schema.
	ErrMalformedLog = errors.New("malformed log record")
)

type fieldKind int

const (
	kindFixed fieldKind = iota
	kindNegFixed
	kindInt
	kindBool
	kindTradeType
	kindAddress
	kindHash
	kindText
)

var kindByName = map[string]fieldKind{
	"outcome":       kindInt,
	"period":        kindInt,
	"timestamp":     kindInt,
	"penalizedFrom": kindInt,
	"penalizedUpTo": kindInt,
	"isShortAsk":    kindBool,
	"type":          kindTradeType,
	"topic":         kindText,
	"repLost":       kindNegFixed,
}

// penalize reports a fixed-point outcome rather than an outcome index.
var kindByLabel = map[string]map[string]fieldKind{
	"penalize": {"outcome": kindFixed},
}

// Fills that arrive without a trade type were short sells.
var shortSellDefault = map[string]bool{
	"log_fill_tx":       true,
	"log_short_fill_tx": true,
}

type field struct {
	name    string
	kind    fieldKind
	indexed bool
	word    abi.Arguments
}

type eventDecoder struct {
	spec      EventSpec
	fields    []field
	shortSell bool
}

// Codec decodes raw node messages into domain values. It holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	decoders map[string]*eventDecoder
	topics   map[string]string
}

// NewCodec resolves one decoder per event label in the registry.
func NewCodec(registry *Registry) (*Codec, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	c := &Codec{
		decoders: make(map[string]*eventDecoder),
		topics:   make(map[string]string),
	}
	for _, label := range registry.Labels() {
		spec, _ := registry.Event(label)
		dec, err := newEventDecoder(spec)
		if err != nil {
			return nil, err
		}
		c.decoders[label] = dec
		for _, topic := range spec.Topics() {
			c.topics[strings.ToLower(topic.Hex())] = label
		}
	}
	return c, nil
}

func newEventDecoder(spec EventSpec) (*eventDecoder, error) {
	dec := &eventDecoder{
		spec:      spec,
		shortSell: shortSellDefault[spec.Label],
	}
	for _, arg := range spec.Inputs {
		kind, err := resolveKind(spec.Label, arg)
		if err != nil {
			return nil, err
		}
		// Topics and data words share the static 32-byte encoding.
		word := abi.Argument{Name: arg.Name, Type: arg.Type}
		dec.fields = append(dec.fields, field{
			name:    arg.Name,
			kind:    kind,
			indexed: arg.Indexed,
			word:    abi.Arguments{word},
		})
	}
	return dec, nil
}

func resolveKind(label string, arg abi.Argument) (fieldKind, error) {
	if kind, ok := kindByLabel[label][arg.Name]; ok {
		return kind, nil
	}
	switch arg.Type.T {
	case abi.AddressTy:
		return kindAddress, nil
	case abi.FixedBytesTy:
		if kindByName[arg.Name] == kindText {
			return kindText, nil
		}
		return kindHash, nil
	case abi.IntTy, abi.UintTy:
		if kind, ok := kindByName[arg.Name]; ok {
			return kind, nil
		}
		return kindFixed, nil
	default:
		return 0, fmt.Errorf("%s.%s: unsupported abi type %s", label, arg.Name, arg.Type.String())
	}
}

// EventLabel reverse-maps a topic-0 signature hash to its label.
func (c *Codec) EventLabel(topic0 string) (string, bool) {
	label, ok := c.topics[strings.ToLower(strings.TrimSpace(topic0))]
	return label, ok
}

// DecodeEvent decodes a log record, or a one-element array holding one, as
// the event named by label.
func (c *Codec) DecodeEvent(label string, raw json.RawMessage) (*model.Event, error) {
	dec, ok := c.decoders[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	var log model.RawLog
	if err := decodeSingleton(raw, &log); err != nil {
		return nil, err
	}
	return dec.decode(log)
}

// DecodeLog decodes an already parsed log, resolving its label from topic 0.
func (c *Codec) DecodeLog(log model.RawLog) (*model.Event, error) {
	label, ok := c.EventLabel(log.Topic0())
	if !ok {
		return nil, fmt.Errorf("%w: topic0 %s", ErrUnknownLabel, log.Topic0())
	}
	return c.decoders[label].decode(log)
}

// DecodeBlockHeader decodes a new-block message: a header object, a bare
// block hash, or a one-element array of either.
func (c *Codec) DecodeBlockHeader(raw json.RawMessage) (*model.BlockHeader, error) {
	var header model.BlockHeader
	if err := decodeSingleton(raw, &header); err != nil {
		return nil, err
	}
	return &header, nil
}

// DecodeContractsMessage normalizes a message from the all-contracts filter.
func (c *Codec) DecodeContractsMessage(raw json.RawMessage) (*model.RawLog, error) {
	var log model.RawLog
	if err := decodeSingleton(raw, &log); err != nil {
		return nil, err
	}
	return &log, nil
}

// SplitMessages splits a filter-changes result into individual messages.
// A non-array result is returned as a single message; null yields none.
func SplitMessages(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '[' {
		return []json.RawMessage{trimmed}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	return items, nil
}

func decodeSingleton(raw json.RawMessage, out interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty message", ErrMalformedLog)
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedLog, err)
		}
		if len(items) != 1 {
			return fmt.Errorf("%w: got %d elements", ErrNotSingleton, len(items))
		}
		trimmed = bytes.TrimSpace(items[0])
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	return nil
}

// decode assigns inputs positionally. Indexed inputs take topics 1..n while
// they last and fall back to the data words, which are consumed in
// declaration order. Inputs with nothing left to read are omitted, so short
// topic lists and truncated data decode to partial events.
func (d *eventDecoder) decode(log model.RawLog) (*model.Event, error) {
	var topics [][]byte
	if len(log.Topics) > 1 {
		parsed, err := parseTopicWords(log.Topics[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
		}
		topics = parsed
	}
	words, err := splitWords(log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s data: %v", ErrMalformedLog, d.spec.Label, err)
	}

	fields := make(map[string]interface{}, len(d.fields)+2)
	for _, f := range d.fields {
		var word []byte
		switch {
		case f.indexed && len(topics) > 0:
			word, topics = topics[0], topics[1:]
		case len(words) > 0:
			word, words = words[0], words[1:]
		default:
			continue
		}
		values, err := f.word.Unpack(word)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrMalformedLog, d.spec.Label, f.name, err)
		}
		formatted, err := formatValue(f.kind, values[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrMalformedLog, d.spec.Label, f.name, err)
		}
		fields[f.name] = formatted
	}
	if _, ok := fields["type"]; d.shortSell && !ok {
		fields["type"] = "sell"
		fields["isShortSell"] = true
	}

	return &model.Event{
		Label:       d.spec.Label,
		Address:     strings.ToLower(log.Address),
		BlockNumber: uint64(log.BlockNumber),
		BlockHash:   log.BlockHash,
		TxHash:      log.TransactionHash,
		LogIndex:    uint64(log.LogIndex),
		Removed:     log.Removed,
		Fields:      fields,
	}, nil
}

func formatValue(kind fieldKind, v interface{}) (interface{}, error) {
	switch kind {
	case kindAddress:
		addr, ok := v.(common.Address)
		if !ok {
			return nil, fmt.Errorf("expected address, got %T", v)
		}
		return strings.ToLower(addr.Hex()), nil
	case kindHash, kindText:
		word, ok := v.([32]byte)
		if !ok {
			return nil, fmt.Errorf("expected bytes32, got %T", v)
		}
		if kind == kindText {
			return strings.TrimRight(string(word[:]), "\x00"), nil
		}
		return hexutil.Encode(word[:]), nil
	}

	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected integer, got %T", v)
	}
	switch kind {
	case kindFixed:
		return FormatFixed(n), nil
	case kindNegFixed:
		return FormatFixed(new(big.Int).Neg(n)), nil
	case kindInt:
		if !n.IsInt64() {
			return nil, fmt.Errorf("integer overflow: %s", n.String())
		}
		return n.Int64(), nil
	case kindBool:
		return n.Sign() != 0, nil
	case kindTradeType:
		return tradeType(n), nil
	default:
		return nil, fmt.Errorf("unsupported field kind %d", kind)
	}
}

func parseTopicWords(topics []string) ([][]byte, error) {
	out := make([][]byte, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.LeftPadBytes(data, 32))
	}
	return out, nil
}

// splitWords cuts log data into 32-byte words. The 0x prefix is optional.
func splitWords(data string) ([][]byte, error) {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, "0x") && !strings.HasPrefix(data, "0X") {
		data = "0x" + data
	}
	if data == "0x" || data == "0X" {
		return nil, nil
	}
	payload, err := hexutil.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(payload)%32 != 0 {
		return nil, fmt.Errorf("length %d is not a multiple of 32", len(payload))
	}
	words := make([][]byte, 0, len(payload)/32)
	for i := 0; i < len(payload); i += 32 {
		words = append(words, payload[i:i+32])
	}
	return words, nil
}
