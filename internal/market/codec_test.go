package market

import (
	"encoding/json"
	"errors"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"marketScope/internal/model"
)

func newTestCodec(t *testing.T) (*Registry, *Codec) {
	t.Helper()
	registry, err := NewRegistry(map[string]string{
		"Cash":  "0xa34c9f6fc047cea795f69b34a063d32e6cb6288c",
		"Trade": "0x13cef2d86d4024f102e480627239359b5cb7bf52",
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	codec, err := NewCodec(registry)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return registry, codec
}

func buildRawLog(address string, topic0 common.Hash, data []byte, topics ...common.Hash) model.RawLog {
	all := []string{topic0.Hex()}
	for _, topic := range topics {
		all = append(all, topic.Hex())
	}
	return model.RawLog{
		Address:         address,
		Topics:          all,
		Data:            hexutil.Encode(data),
		BlockNumber:     300,
		LogIndex:        0,
		BlockHash:       "0xb897e8ec0d06fb504e9b7e5ab876ad59d725f63ed9c0271bd990c2e807371e58",
		TransactionHash: "0xaacffeb38e31e4e8ff5c5da0a6bbf07c2e4c253cb84be14781d57a8aab763b31",
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func fixed(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := ParseFixed(s)
	if !ok {
		t.Fatalf("parse fixed %s", s)
	}
	return v
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func withdrawLog(t *testing.T, registry *Registry) model.RawLog {
	t.Helper()
	spec, _ := registry.Event("withdraw")
	data, err := spec.Inputs.NonIndexed().Pack(big.NewInt(0x585769b7))
	if err != nil {
		t.Fatalf("pack withdraw: %v", err)
	}
	to := common.HexToAddress("0x189d2692d3050fe77543a099105af20d14ccc697")
	return buildRawLog("0xa34c9f6fc047cea795f69b34a063d32e6cb6288c", spec.Topic, data, topicFromAddress(to))
}

func TestDecodeWithdraw(t *testing.T) {
	registry, codec := newTestCodec(t)
	raw := mustJSON(t, withdrawLog(t, registry))

	event, err := codec.DecodeEvent("withdraw", raw)
	if err != nil {
		t.Fatalf("decode withdraw: %v", err)
	}
	if event.String("to") != "0x189d2692d3050fe77543a099105af20d14ccc697" {
		t.Fatalf("to mismatch: %s", event.String("to"))
	}
	if event.String("value") != "0.000000001482123703" {
		t.Fatalf("value mismatch: %s", event.String("value"))
	}
	if event.BlockNumber != 300 || event.Label != "withdraw" {
		t.Fatalf("event header mismatch: %+v", event)
	}
}

func TestDecodeSingletonArrayMatchesBareRecord(t *testing.T) {
	registry, codec := newTestCodec(t)
	log := withdrawLog(t, registry)

	bare, err := codec.DecodeEvent("withdraw", mustJSON(t, log))
	if err != nil {
		t.Fatalf("decode bare: %v", err)
	}
	wrapped, err := codec.DecodeEvent("withdraw", mustJSON(t, []model.RawLog{log}))
	if err != nil {
		t.Fatalf("decode wrapped: %v", err)
	}
	if !reflect.DeepEqual(bare, wrapped) {
		t.Fatalf("singleton mismatch: %+v != %+v", bare, wrapped)
	}
}

func TestDecodeRejectsMultiElementArrays(t *testing.T) {
	registry, codec := newTestCodec(t)
	log := withdrawLog(t, registry)

	for _, input := range []interface{}{[]model.RawLog{}, []model.RawLog{log, log}} {
		_, err := codec.DecodeEvent("withdraw", mustJSON(t, input))
		if !errors.Is(err, ErrNotSingleton) {
			t.Fatalf("expected ErrNotSingleton, got %v", err)
		}
	}
	if _, err := codec.DecodeBlockHeader(json.RawMessage(`["0x1","0x2"]`)); !errors.Is(err, ErrNotSingleton) {
		t.Fatalf("expected ErrNotSingleton for headers, got %v", err)
	}
}

func TestDecodeUnknownLabel(t *testing.T) {
	registry, codec := newTestCodec(t)
	_, err := codec.DecodeEvent("nope", mustJSON(t, withdrawLog(t, registry)))
	if !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	registry, codec := newTestCodec(t)

	ragged := withdrawLog(t, registry)
	ragged.Data = ragged.Data + "00"
	if _, err := codec.DecodeEvent("withdraw", mustJSON(t, ragged)); !errors.Is(err, ErrMalformedLog) {
		t.Fatalf("expected ErrMalformedLog for partial word, got %v", err)
	}

	badHex := withdrawLog(t, registry)
	badHex.Data = "0xzz"
	if _, err := codec.DecodeEvent("withdraw", mustJSON(t, badHex)); !errors.Is(err, ErrMalformedLog) {
		t.Fatalf("expected ErrMalformedLog for bad hex, got %v", err)
	}

	badTopic := withdrawLog(t, registry)
	badTopic.Topics[1] = "0x" + strings.Repeat("ab", 33)
	if _, err := codec.DecodeEvent("withdraw", mustJSON(t, badTopic)); !errors.Is(err, ErrMalformedLog) {
		t.Fatalf("expected ErrMalformedLog for oversized topic, got %v", err)
	}

	if _, err := codec.DecodeEvent("withdraw", json.RawMessage(`{"topics": 7}`)); !errors.Is(err, ErrMalformedLog) {
		t.Fatalf("expected ErrMalformedLog for bad json, got %v", err)
	}
}

func TestDecodeToleratesShortInput(t *testing.T) {
	registry, codec := newTestCodec(t)

	empty := withdrawLog(t, registry)
	empty.Data = "0x"
	event, err := codec.DecodeEvent("withdraw", mustJSON(t, empty))
	if err != nil {
		t.Fatalf("decode empty data: %v", err)
	}
	if _, ok := event.Fields["value"]; ok || event.String("to") != "0x189d2692d3050fe77543a099105af20d14ccc697" {
		t.Fatalf("empty data fields mismatch: %+v", event.Fields)
	}

	// Without the indexed topic the recipient is read from the first data word.
	bare := withdrawLog(t, registry)
	bare.Topics = bare.Topics[:1]
	event, err = codec.DecodeEvent("withdraw", mustJSON(t, bare))
	if err != nil {
		t.Fatalf("decode bare topics: %v", err)
	}
	if event.String("to") != "0x00000000000000000000000000000000585769b7" {
		t.Fatalf("shifted recipient mismatch: %+v", event.Fields)
	}
	if _, ok := event.Fields["value"]; ok {
		t.Fatalf("value should be absent: %+v", event.Fields)
	}
}

func TestDecodeEventIgnoresTopicZero(t *testing.T) {
	registry, codec := newTestCodec(t)

	event, err := codec.DecodeEvent("deposit", mustJSON(t, withdrawLog(t, registry)))
	if err != nil {
		t.Fatalf("decode as deposit: %v", err)
	}
	if event.Label != "deposit" || event.String("sender") != "0x189d2692d3050fe77543a099105af20d14ccc697" {
		t.Fatalf("deposit mismatch: %+v", event)
	}
	if event.String("value") != "0.000000001482123703" {
		t.Fatalf("deposit value mismatch: %s", event.String("value"))
	}
}

func TestDecodeDataWithoutPrefix(t *testing.T) {
	registry, codec := newTestCodec(t)
	log := withdrawLog(t, registry)
	log.Data = log.Data[2:]

	event, err := codec.DecodeEvent("withdraw", mustJSON(t, log))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.String("value") != "0.000000001482123703" {
		t.Fatalf("value mismatch: %s", event.String("value"))
	}
}

func TestDecodeFillVariants(t *testing.T) {
	registry, codec := newTestCodec(t)
	market := common.HexToHash("0xebb0d4c04bc87d3b401a5baad3b093a5e7cc3f4e996dc53e36db78c8b374cc9a")
	sender := common.HexToAddress("0x7c0d52faab596c08f484e3478aebc6205f3f5d8c")
	owner := common.HexToAddress("0x15f6400a88fb320822b689607d425272bea2175f")
	var tradeID [32]byte
	copy(tradeID[:], common.FromHex("0x640ce61af3b560a54f2f41dcba10ef6337df02e650c30f651789a090b02c312f"))

	fill, _ := registry.Event("log_fill_tx")
	data, err := fill.Inputs.NonIndexed().Pack(big.NewInt(1), fixed(t, "0.01"), fixed(t, "1"), tradeID, big.NewInt(1))
	if err != nil {
		t.Fatalf("pack fill: %v", err)
	}
	log := buildRawLog("0x13cef2d86d4024f102e480627239359b5cb7bf52", fill.Topic, data, market, topicFromAddress(sender), topicFromAddress(owner))

	event, err := codec.DecodeEvent("log_fill_tx", mustJSON(t, log))
	if err != nil {
		t.Fatalf("decode fill: %v", err)
	}
	if event.String("type") != "buy" {
		t.Fatalf("fill type mismatch: %+v", event.Fields)
	}
	if _, ok := event.Fields["isShortSell"]; ok {
		t.Fatalf("typed fill should not carry isShortSell: %+v", event.Fields)
	}
	if event.String("price") != "0.01" || event.String("amount") != "1" {
		t.Fatalf("fill amounts mismatch: %+v", event.Fields)
	}
	if event.String("market") != market.Hex() || event.String("owner") != "0x15f6400a88fb320822b689607d425272bea2175f" {
		t.Fatalf("fill topics mismatch: %+v", event.Fields)
	}
	if outcome, ok := event.Int("outcome"); !ok || outcome != 1 {
		t.Fatalf("fill outcome mismatch: %+v", event.Fields)
	}

	untyped := log
	untyped.Data = "0x"
	event, err = codec.DecodeEvent("log_fill_tx", mustJSON(t, untyped))
	if err != nil {
		t.Fatalf("decode untyped fill: %v", err)
	}
	if event.String("type") != "sell" || event.Fields["isShortSell"] != true {
		t.Fatalf("untyped fill mismatch: %+v", event.Fields)
	}

	short, _ := registry.Event("log_short_fill_tx")
	data, err = short.Inputs.NonIndexed().Pack(fixed(t, "0.6"), fixed(t, "2"), tradeID, big.NewInt(2))
	if err != nil {
		t.Fatalf("pack short fill: %v", err)
	}
	log = buildRawLog("0x13cef2d86d4024f102e480627239359b5cb7bf52", short.Topic, data, market, topicFromAddress(sender), topicFromAddress(owner))

	event, err = codec.DecodeEvent("log_short_fill_tx", mustJSON(t, log))
	if err != nil {
		t.Fatalf("decode short fill: %v", err)
	}
	if event.String("type") != "sell" || event.Fields["isShortSell"] != true {
		t.Fatalf("short fill type mismatch: %+v", event.Fields)
	}
	if event.String("price") != "0.6" {
		t.Fatalf("short fill price mismatch: %s", event.String("price"))
	}
}

func TestDecodeFieldKinds(t *testing.T) {
	registry, codec := newTestCodec(t)
	sender := common.HexToAddress("0x0e52ec96687f8281dae987934f4619d1990ecbde")
	var branch [32]byte
	branch[31] = 0x01

	created, _ := registry.Event("marketCreated")
	data, err := created.Inputs.NonIndexed().Pack(branch, fixed(t, "1500"), fixed(t, "1000"), big.NewInt(1482198510))
	if err != nil {
		t.Fatalf("pack marketCreated: %v", err)
	}
	topic := common.BytesToHash(common.RightPadBytes([]byte("roflcopter"), 32))
	log := buildRawLog("0x2e5a882aa53805f1a9da3cf18f73673bca98fa0f", created.Topic, data,
		topicFromAddress(sender),
		common.HexToHash("0xbcec0378dfeeb59908c886aff93b0e820bb579f63acaeb4b3d4004ec01153115"),
		topic,
	)
	event, err := codec.DecodeEvent("marketCreated", mustJSON(t, log))
	if err != nil {
		t.Fatalf("decode marketCreated: %v", err)
	}
	if event.String("topic") != "roflcopter" {
		t.Fatalf("topic mismatch: %q", event.String("topic"))
	}
	if event.String("marketCreationFee") != "1500" || event.String("eventBond") != "1000" {
		t.Fatalf("fee mismatch: %+v", event.Fields)
	}
	if ts, ok := event.Int("timestamp"); !ok || ts != 1482198510 {
		t.Fatalf("timestamp mismatch: %+v", event.Fields)
	}

	added, _ := registry.Event("log_add_tx")
	var tradeID [32]byte
	tradeID[0] = 0x01
	data, err = added.Inputs.NonIndexed().Pack(big.NewInt(2), fixed(t, "0.5"), fixed(t, "2"), big.NewInt(2), tradeID, big.NewInt(1))
	if err != nil {
		t.Fatalf("pack log_add_tx: %v", err)
	}
	log = buildRawLog("0x8d28df956673fa4a8bc30cd0b3cb657445bc820e", added.Topic, data,
		common.HexToHash("0xf3efc5085628de2b511a0243bdc9dc7b50ee2440398e626d93280601e3a15634"),
		topicFromAddress(sender),
	)
	event, err = codec.DecodeEvent("log_add_tx", mustJSON(t, log))
	if err != nil {
		t.Fatalf("decode log_add_tx: %v", err)
	}
	if event.String("type") != "sell" || event.Fields["isShortAsk"] != true {
		t.Fatalf("log_add_tx flags mismatch: %+v", event.Fields)
	}

	caughtUp, _ := registry.Event("penalizationCaughtUp")
	data, err = caughtUp.Inputs.NonIndexed().Pack(big.NewInt(10), big.NewInt(100), fixed(t, "78.39"), fixed(t, "221.71"), big.NewInt(0))
	if err != nil {
		t.Fatalf("pack penalizationCaughtUp: %v", err)
	}
	log = buildRawLog("0xc1c4e2f32e4b84a60b8b7983b6356af4269aab79", caughtUp.Topic, data, common.Hash(branch), topicFromAddress(sender))
	event, err = codec.DecodeEvent("penalizationCaughtUp", mustJSON(t, log))
	if err != nil {
		t.Fatalf("decode penalizationCaughtUp: %v", err)
	}
	if event.String("repLost") != "-78.39" || event.String("newRepBalance") != "221.71" {
		t.Fatalf("rep mismatch: %+v", event.Fields)
	}
	if from, ok := event.Int("penalizedFrom"); !ok || from != 10 {
		t.Fatalf("penalizedFrom mismatch: %+v", event.Fields)
	}
}

func TestEventLabelAndDecodeLog(t *testing.T) {
	registry, codec := newTestCodec(t)
	spec, _ := registry.Event("withdraw")

	label, ok := codec.EventLabel(spec.Topic.Hex())
	if !ok || label != "withdraw" {
		t.Fatalf("label mismatch: %s %v", label, ok)
	}
	if _, ok := codec.EventLabel("0x1234"); ok {
		t.Fatalf("expected unknown topic")
	}
	added, _ := registry.Event("log_add_tx")
	if len(added.Aliases) != 1 {
		t.Fatalf("expected one legacy log_add_tx signature, got %v", added.Aliases)
	}
	if label, ok := codec.EventLabel(added.Aliases[0].Hex()); !ok || label != "log_add_tx" {
		t.Fatalf("legacy signature mismatch: %s %v", label, ok)
	}

	event, err := codec.DecodeLog(withdrawLog(t, registry))
	if err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if event.Label != "withdraw" {
		t.Fatalf("label mismatch: %s", event.Label)
	}
	if _, err := codec.DecodeLog(model.RawLog{Topics: []string{"0x1234"}}); !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestDecodeBlockAndContractsMessages(t *testing.T) {
	registry, codec := newTestCodec(t)

	header, err := codec.DecodeBlockHeader(json.RawMessage(`["0x96a9e1fd64969355521cbfd125569d6bb0088f36685200db58b77ca7a7fbebd6"]`))
	if err != nil {
		t.Fatalf("decode hash: %v", err)
	}
	if header.Hash != "0x96a9e1fd64969355521cbfd125569d6bb0088f36685200db58b77ca7a7fbebd6" {
		t.Fatalf("hash mismatch: %s", header.Hash)
	}

	header, err = codec.DecodeBlockHeader(json.RawMessage(`{"hash":"0xabc","number":"0x11941a","timestamp":"0x576469fe"}`))
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if header.Number != 0x11941a {
		t.Fatalf("number mismatch: %d", header.Number)
	}

	log := withdrawLog(t, registry)
	msg, err := codec.DecodeContractsMessage(mustJSON(t, []model.RawLog{log}))
	if err != nil {
		t.Fatalf("decode contracts: %v", err)
	}
	if !reflect.DeepEqual(*msg, log) {
		t.Fatalf("contracts passthrough mismatch: %+v", msg)
	}
}

func TestSplitMessages(t *testing.T) {
	items, err := SplitMessages(json.RawMessage(`[{"a":1},{"b":2}]`))
	if err != nil || len(items) != 2 {
		t.Fatalf("split array: %v %d", err, len(items))
	}
	items, err = SplitMessages(json.RawMessage(`"0xabc"`))
	if err != nil || len(items) != 1 {
		t.Fatalf("split scalar: %v %d", err, len(items))
	}
	items, err = SplitMessages(json.RawMessage(`null`))
	if err != nil || len(items) != 0 {
		t.Fatalf("split null: %v %d", err, len(items))
	}
}
