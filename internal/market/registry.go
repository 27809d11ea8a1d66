package market

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Reserved labels that do not map to a single contract event.
const (
	LabelBlock     = "block"
	LabelContracts = "contracts"
)

// eventContracts maps each event label to the contract that emits it.
var eventContracts = map[string]string{
	"withdraw":             "Cash",
	"deposit":              "Cash",
	"sentCash":             "Cash",
	"Transfer":             "SendReputation",
	"Approval":             "SendReputation",
	"payout":               "Payout",
	"marketCreated":        "CreateMarket",
	"tradingFeeUpdated":    "CreateMarket",
	"log_add_tx":           "BuyAndSellShares",
	"log_cancel":           "BuyAndSellShares",
	"log_fill_tx":          "Trade",
	"log_short_fill_tx":    "Trade",
	"penalize":             "Consensus",
	"penalizationCaughtUp": "Consensus",
	"slashedRep":           "Consensus",
	"submittedReport":      "MakeReports",
	"submittedReportHash":  "MakeReports",
	"collectedFees":        "CollectFees",
	"fundedAccount":        "Faucets",
}

// eventSignatures holds the topic-0 hash each label is emitted with. The
// contracts declare every parameter as int256, so the hash is taken over that
// canonical form rather than the typed inputs used for decoding.
var eventSignatures = map[string]string{
	"withdraw":             "0x44b6aeb7b38bb1ad04b4d0daf588cff086ff8829f0a34c30ddbb4d38695428de",
	"deposit":              "0x34a501c7333ea92b0cf92686a6a375317e717114a9850e9a10661c6e4b873971",
	"sentCash":             "0xae8ab9b13c08da596a84ac5e018517fd37ef5ff3f3883d4ce517f8c4f558efde",
	"Transfer":             "0x66e05b8a99642b6a77335be485dc593f0217aee37e6180f32909449b16ed7eca",
	"Approval":             "0xe64e66bf3e94c88742c041103133494023640d143db88ec4aec44744744d85f1",
	"payout":               "0xa2bf9dad859f137c8894b41a4e89182a27fa82c48ed42019e924af83fefc1f81",
	"marketCreated":        "0x8f9d87fc01c4c1a9057249423e7e9c38c4f8899a494502d7aaa64c0b7c40cf9e",
	"tradingFeeUpdated":    "0xb8c735cc6495f8dac2581d532413dea78d7e03e0ff0880c32b4648c2145fba41",
	"log_add_tx":           "0x331abc0b32c392f5cdc23a50af9497ab6b82f29ec2274cc33a409e7ab3aedc6c",
	"log_cancel":           "0x9ecf4903f3efaf1549dc51545bd945f94d51923f37ce198a3b838125a2f397d5",
	"log_fill_tx":          "0x715b9a9cb6dfb4fa9cb1ebc2eba40d2a7bd66aa8cef75f87a77d1ff05d29a3b6",
	"log_short_fill_tx":    "0xfb068388d1a18c2be95d99e4879561267ea60083c13d6f167fde9c33bbff8813",
	"penalize":             "0xa865e521626cec7891279a54f112b20abe52888a42df585b51ca9ff03c4249b7",
	"penalizationCaughtUp": "0x31dc9507ffec8f6f69d9f2b7a9bd206108312323de6ba468056af9c269881ea0",
	"slashedRep":           "0xcc9436d20fc96bc634d12281b916903ab7c9d6bbdc5d1a73f1c60d7479c006ae",
	"submittedReport":      "0xa6947592b50b1143536435c37404960f6cd671bba88e5132eaab5e4b3b2c86eb",
	"submittedReportHash":  "0xe8f8544e3319f0811318e4fe055fcfbda248abaea92c463457e881c872e0faa0",
	"collectedFees":        "0xc81e036aceff1b9ec18111ca6754e12887ad248f60557e154c5ba9a383c24c69",
	"fundedAccount":        "0x2b655a1e1983fd18a039a0a1d52ed2a339435d3f1d024b9c99f1ab4804ddcc59",
}

// Older deployments emitted log_add_tx with seven parameters and only the
// market indexed.
var legacySignatures = map[string][]string{
	"log_add_tx": {"0x8dbed7bffe37a9907a92186110f23d8104f5967a71fb059f3b907ca9001fd160"},
}

// EventSpec describes one filterable contract event.
type EventSpec struct {
	Label    string
	Contract string
	Address  common.Address
	Topic    common.Hash
	Aliases  []common.Hash
	Inputs   abi.Arguments
}

// Topics returns the current signature followed by any legacy ones.
func (s EventSpec) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(s.Aliases)+1)
	out = append(out, s.Topic)
	return append(out, s.Aliases...)
}

// HasAddress reports whether a contract address is configured for the event.
func (s EventSpec) HasAddress() bool {
	return s.Address != (common.Address{})
}

// Registry joins the static event table with configured contract addresses.
type Registry struct {
	specs     map[string]EventSpec
	labels    []string
	contracts map[string]common.Address
}

// NewRegistry builds a registry from contract name -> address. Contract names
// are matched case-insensitively; unknown names are rejected.
func NewRegistry(contracts map[string]string) (*Registry, error) {
	parsed, err := EventsABI()
	if err != nil {
		return nil, fmt.Errorf("parse events abi: %w", err)
	}

	known := make(map[string]string)
	for _, name := range eventContracts {
		known[strings.ToLower(name)] = name
	}

	addrs := make(map[string]common.Address, len(contracts))
	for name, addr := range contracts {
		canonical, ok := known[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown contract: %s", name)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid address for %s: %s", name, addr)
		}
		addrs[canonical] = common.HexToAddress(addr)
	}

	r := &Registry{
		specs:     make(map[string]EventSpec, len(eventContracts)),
		contracts: addrs,
	}
	for label, contract := range eventContracts {
		event, ok := parsed.Events[label]
		if !ok {
			return nil, fmt.Errorf("event %s missing from abi", label)
		}
		signature, ok := eventSignatures[label]
		if !ok {
			return nil, fmt.Errorf("event %s has no signature", label)
		}
		spec := EventSpec{
			Label:    label,
			Contract: contract,
			Address:  addrs[contract],
			Topic:    common.HexToHash(signature),
			Inputs:   event.Inputs,
		}
		for _, alias := range legacySignatures[label] {
			spec.Aliases = append(spec.Aliases, common.HexToHash(alias))
		}
		r.specs[label] = spec
		r.labels = append(r.labels, label)
	}
	sort.Strings(r.labels)
	return r, nil
}

// Event returns the spec for an event label.
func (r *Registry) Event(label string) (EventSpec, bool) {
	spec, ok := r.specs[label]
	return spec, ok
}

// Labels returns every event label, sorted. Reserved labels are not included.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// IsKnown reports whether label is a reserved label or an event label.
func (r *Registry) IsKnown(label string) bool {
	if label == LabelBlock || label == LabelContracts {
		return true
	}
	_, ok := r.specs[label]
	return ok
}

// Addresses returns all configured contract addresses, deduplicated and sorted.
func (r *Registry) Addresses() []common.Address {
	seen := make(map[common.Address]struct{}, len(r.contracts))
	out := make([]common.Address, 0, len(r.contracts))
	for _, addr := range r.contracts {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].Hex(), out[j].Hex()) < 0
	})
	return out
}

// Contracts returns the configured contract name -> address map.
func (r *Registry) Contracts() map[string]common.Address {
	out := make(map[string]common.Address, len(r.contracts))
	for k, v := range r.contracts {
		out[k] = v
	}
	return out
}
