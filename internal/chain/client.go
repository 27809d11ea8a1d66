package chain

import (
	"context"
	"math/big"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Client wraps go-ethereum RPC. It serves historical queries and acts as the
// filter transport: node-side filters over HTTP, push subscriptions over
// WebSocket or IPC.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	logger    *zap.Logger

	subscriptions bool

	mu      sync.RWMutex
	tsCache map[uint64]uint64

	subMu   sync.Mutex
	subSeq  uint64
	subs    map[string]*subscription

	resetMu   sync.Mutex
	resets    []func()
	resetting atomic.Bool
}

// NewClient dials rpcURL. Push subscriptions are enabled for ws://, wss://
// and IPC endpoints.
func NewClient(ctx context.Context, rpcURL string, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return newClient(rpcClient, SupportsSubscriptions(rpcURL), logger), nil
}

func newClient(rpcClient *rpc.Client, subscriptions bool, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		rpcClient:     rpcClient,
		ethClient:     ethclient.NewClient(rpcClient),
		logger:        logger,
		subscriptions: subscriptions,
		tsCache:       make(map[uint64]uint64),
		subs:          make(map[string]*subscription),
	}
}

// SupportsSubscriptions reports whether rpcURL names a persistent transport.
func SupportsSubscriptions(rpcURL string) bool {
	u, err := url.Parse(rpcURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return true
	case "http", "https", "stdio":
		return false
	case "":
		return rpcURL != ""
	default:
		return false
	}
}

// Close drops every push subscription and closes the RPC client.
func (c *Client) Close() {
	c.subMu.Lock()
	subs := c.subs
	c.subs = make(map[string]*subscription)
	c.subMu.Unlock()
	for _, s := range subs {
		s.sub.Unsubscribe()
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.ethClient.HeaderByNumber(ctx, number)
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}
