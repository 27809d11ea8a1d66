package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SubscriptionsSupported reports whether filters are delivered by push.
func (c *Client) SubscriptionsSupported() bool {
	return c.subscriptions
}

// SubscribeLogs creates a log filter: eth_newFilter in poll mode, a "logs"
// subscription in push mode. Push subscriptions only see new blocks, so the
// block range of q is ignored there.
func (c *Client) SubscribeLogs(ctx context.Context, q ethereum.FilterQuery) (string, error) {
	if c.subscriptions {
		return c.subscribe(ctx, "logs", toFilterArg(ethereum.FilterQuery{Addresses: q.Addresses, Topics: q.Topics}))
	}
	var id string
	if err := c.rpcClient.CallContext(ctx, &id, "eth_newFilter", toFilterArg(q)); err != nil {
		return "", fmt.Errorf("eth_newFilter: %w", err)
	}
	return id, nil
}

// SubscribeNewBlocks creates a new-block filter.
func (c *Client) SubscribeNewBlocks(ctx context.Context) (string, error) {
	if c.subscriptions {
		return c.subscribe(ctx, "newHeads")
	}
	var id string
	if err := c.rpcClient.CallContext(ctx, &id, "eth_newBlockFilter"); err != nil {
		return "", fmt.Errorf("eth_newBlockFilter: %w", err)
	}
	return id, nil
}

// Unsubscribe removes a filter. It reports whether the filter existed.
func (c *Client) Unsubscribe(ctx context.Context, id string) (bool, error) {
	if c.subscriptions {
		return c.unsubscribe(id), nil
	}
	var ok bool
	if err := c.rpcClient.CallContext(ctx, &ok, "eth_uninstallFilter", id); err != nil {
		return false, fmt.Errorf("eth_uninstallFilter: %w", err)
	}
	return ok, nil
}

// GetFilterChanges polls a node-side filter.
func (c *Client) GetFilterChanges(ctx context.Context, id string) (json.RawMessage, error) {
	if c.subscriptions {
		return nil, fmt.Errorf("filter %s is a push subscription", id)
	}
	var raw json.RawMessage
	if err := c.rpcClient.CallContext(ctx, &raw, "eth_getFilterChanges", id); err != nil {
		return nil, fmt.Errorf("eth_getFilterChanges: %w", err)
	}
	return raw, nil
}

func toFilterArg(q ethereum.FilterQuery) map[string]interface{} {
	arg := map[string]interface{}{}
	if len(q.Addresses) > 0 {
		arg["address"] = q.Addresses
	}
	if len(q.Topics) > 0 {
		arg["topics"] = q.Topics
	}
	if q.FromBlock != nil {
		arg["fromBlock"] = toBlockNumArg(q.FromBlock)
	}
	if q.ToBlock != nil {
		arg["toBlock"] = toBlockNumArg(q.ToBlock)
	} else if q.FromBlock != nil {
		arg["toBlock"] = "latest"
	}
	return arg
}

func toBlockNumArg(number *big.Int) string {
	if number.Sign() < 0 {
		return "latest"
	}
	return hexutil.EncodeBig(number)
}
