package market

import (
	"strings"
	"testing"
)

func TestRegistryJoinsAddresses(t *testing.T) {
	registry, err := NewRegistry(map[string]string{
		"cash":    "0xA34C9F6FC047CEA795F69B34A063D32E6CB6288C",
		"Faucets": "0x0000000000000000000000000000000000000042",
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	spec, ok := registry.Event("withdraw")
	if !ok {
		t.Fatalf("withdraw missing")
	}
	if spec.Contract != "Cash" || !spec.HasAddress() {
		t.Fatalf("withdraw spec mismatch: %+v", spec)
	}
	if !strings.EqualFold(spec.Address.Hex(), "0xa34c9f6fc047cea795f69b34a063d32e6cb6288c") {
		t.Fatalf("address mismatch: %s", spec.Address.Hex())
	}

	payout, _ := registry.Event("payout")
	if payout.HasAddress() {
		t.Fatalf("payout should have no address")
	}

	if got := len(registry.Addresses()); got != 2 {
		t.Fatalf("addresses mismatch: %d", got)
	}
	if !registry.IsKnown(LabelBlock) || !registry.IsKnown(LabelContracts) || !registry.IsKnown("log_fill_tx") {
		t.Fatalf("expected known labels")
	}
	if registry.IsKnown("nope") {
		t.Fatalf("unexpected known label")
	}
	if len(registry.Labels()) != len(eventContracts) {
		t.Fatalf("labels mismatch: %d", len(registry.Labels()))
	}
}

func TestRegistryRejectsBadConfig(t *testing.T) {
	if _, err := NewRegistry(map[string]string{"Unknown": "0x0000000000000000000000000000000000000001"}); err == nil {
		t.Fatalf("expected unknown contract error")
	}
	if _, err := NewRegistry(map[string]string{"Cash": "0x12"}); err == nil {
		t.Fatalf("expected invalid address error")
	}
}

func TestRegistrySignatures(t *testing.T) {
	registry, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	seen := make(map[string]string)
	for _, label := range registry.Labels() {
		spec, _ := registry.Event(label)
		for _, topic := range spec.Topics() {
			if other, dup := seen[topic.Hex()]; dup {
				t.Fatalf("%s shares topic %s with %s", label, topic.Hex(), other)
			}
			seen[topic.Hex()] = label
		}
	}

	withdraw, _ := registry.Event("withdraw")
	if withdraw.Topic.Hex() != "0x44b6aeb7b38bb1ad04b4d0daf588cff086ff8829f0a34c30ddbb4d38695428de" {
		t.Fatalf("withdraw topic mismatch: %s", withdraw.Topic.Hex())
	}
	fill, _ := registry.Event("log_fill_tx")
	if fill.Topic.Hex() != "0x715b9a9cb6dfb4fa9cb1ebc2eba40d2a7bd66aa8cef75f87a77d1ff05d29a3b6" {
		t.Fatalf("log_fill_tx topic mismatch: %s", fill.Topic.Hex())
	}
	if got := fill.Topics(); len(got) != 1 || got[0] != fill.Topic {
		t.Fatalf("log_fill_tx topics mismatch: %v", got)
	}
}
