package filters

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum"
)

// Transport is the node connection the filters are created on.
type Transport interface {
	// SubscribeLogs creates a log filter and returns its id.
	SubscribeLogs(ctx context.Context, q ethereum.FilterQuery) (string, error)
	// SubscribeNewBlocks creates a new-block filter and returns its id.
	SubscribeNewBlocks(ctx context.Context) (string, error)
	Unsubscribe(ctx context.Context, id string) (bool, error)
	// GetFilterChanges returns the messages accumulated since the last poll.
	GetFilterChanges(ctx context.Context, id string) (json.RawMessage, error)
	RegisterSubscriptionCallback(id string, cb func(json.RawMessage))
	UnregisterSubscriptionCallback(id string)
	// SubscriptionsSupported reports whether the node pushes messages.
	SubscriptionsSupported() bool
}

// Resetter is implemented by transports that can lose all their filters,
// for example when a persistent connection drops.
type Resetter interface {
	OnReset(fn func())
}
