package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	subscriptionBuffer = 128
	pendingLimit       = 256
)

// subscription is one push subscription. Messages arriving before a callback
// is registered are held in pending, oldest dropped first.
type subscription struct {
	id      string
	sub     *rpc.ClientSubscription
	ch      chan json.RawMessage
	cb      func(json.RawMessage)
	pending []json.RawMessage
}

func (c *Client) subscribe(ctx context.Context, args ...interface{}) (string, error) {
	ch := make(chan json.RawMessage, subscriptionBuffer)
	sub, err := c.rpcClient.EthSubscribe(ctx, ch, args...)
	if err != nil {
		return "", fmt.Errorf("eth_subscribe %v: %w", args[0], err)
	}

	c.subMu.Lock()
	c.subSeq++
	s := &subscription{
		id:  fmt.Sprintf("0x%x", c.subSeq),
		sub: sub,
		ch:  ch,
	}
	c.subs[s.id] = s
	c.subMu.Unlock()

	go c.pump(s)
	c.logger.Debug("subscription created", zap.String("filter_id", s.id), zap.Any("kind", args[0]))
	return s.id, nil
}

func (c *Client) pump(s *subscription) {
	for {
		select {
		case msg := <-s.ch:
			c.deliver(s, msg)
		case err, ok := <-s.sub.Err():
			if !ok || err == nil {
				return
			}
			c.logger.Warn("subscription failed", zap.String("filter_id", s.id), zap.Error(err))
			c.drop(s.id)
			c.fireReset()
			return
		}
	}
}

func (c *Client) deliver(s *subscription, msg json.RawMessage) {
	c.subMu.Lock()
	cb := s.cb
	if cb == nil {
		if len(s.pending) >= pendingLimit {
			s.pending = s.pending[1:]
		}
		s.pending = append(s.pending, msg)
	}
	c.subMu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

// RegisterSubscriptionCallback routes push messages of id to cb, flushing
// anything received before registration.
func (c *Client) RegisterSubscriptionCallback(id string, cb func(json.RawMessage)) {
	c.subMu.Lock()
	s, ok := c.subs[id]
	if !ok {
		c.subMu.Unlock()
		c.logger.Warn("callback for unknown subscription", zap.String("filter_id", id))
		return
	}
	s.cb = cb
	pending := s.pending
	s.pending = nil
	c.subMu.Unlock()

	for _, msg := range pending {
		cb(msg)
	}
}

// UnregisterSubscriptionCallback stops routing messages of id. Later
// messages are buffered again.
func (c *Client) UnregisterSubscriptionCallback(id string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if s, ok := c.subs[id]; ok {
		s.cb = nil
	}
}

// OnReset registers fn to run when a push subscription fails.
func (c *Client) OnReset(fn func()) {
	c.resetMu.Lock()
	defer c.resetMu.Unlock()
	c.resets = append(c.resets, fn)
}

// fireReset runs the reset hooks once for a burst of failures.
func (c *Client) fireReset() {
	if !c.resetting.CompareAndSwap(false, true) {
		return
	}
	c.resetMu.Lock()
	fns := append([]func(){}, c.resets...)
	c.resetMu.Unlock()
	go func() {
		defer c.resetting.Store(false)
		for _, fn := range fns {
			fn()
		}
	}()
}

func (c *Client) unsubscribe(id string) bool {
	s := c.drop(id)
	if s == nil {
		return false
	}
	s.sub.Unsubscribe()
	return true
}

func (c *Client) drop(id string) *subscription {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	s, ok := c.subs[id]
	if !ok {
		return nil
	}
	delete(c.subs, id)
	return s
}
