package filters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
)

type fakeTransport struct {
	mu sync.Mutex

	push    bool
	nextID  int
	emptyID bool
	failFor map[string]bool

	failUnsubscribe bool

	logQueries   []ethereum.FilterQuery
	blockCalls   int
	unsubscribed []string
	changes      map[string][]json.RawMessage
	callbacks    map[string]func(json.RawMessage)
	resetFns     []func()
}

func newFakeTransport(push bool) *fakeTransport {
	return &fakeTransport{
		push:      push,
		failFor:   make(map[string]bool),
		changes:   make(map[string][]json.RawMessage),
		callbacks: make(map[string]func(json.RawMessage)),
	}
}

func (f *fakeTransport) newID(kind string) (string, error) {
	if f.failFor[kind] {
		return "", errors.New("node refused filter")
	}
	if f.emptyID {
		return "0x", nil
	}
	f.nextID++
	return fmt.Sprintf("0x%x", f.nextID), nil
}

func (f *fakeTransport) SubscribeLogs(_ context.Context, q ethereum.FilterQuery) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logQueries = append(f.logQueries, q)
	return f.newID("logs")
}

func (f *fakeTransport) SubscribeNewBlocks(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockCalls++
	return f.newID("block")
}

func (f *fakeTransport) Unsubscribe(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, id)
	if f.failUnsubscribe {
		return false, errors.New("connection closed")
	}
	return true, nil
}

func (f *fakeTransport) GetFilterChanges(_ context.Context, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.changes[id]
	if len(queue) == 0 {
		return json.RawMessage(`[]`), nil
	}
	f.changes[id] = queue[1:]
	return queue[0], nil
}

func (f *fakeTransport) RegisterSubscriptionCallback(id string, cb func(json.RawMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[id] = cb
}

func (f *fakeTransport) UnregisterSubscriptionCallback(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.callbacks, id)
}

func (f *fakeTransport) SubscriptionsSupported() bool {
	return f.push
}

func (f *fakeTransport) OnReset(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetFns = append(f.resetFns, fn)
}

func (f *fakeTransport) queue(id string, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes[id] = append(f.changes[id], json.RawMessage(raw))
}

func (f *fakeTransport) callback(id string) func(json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callbacks[id]
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	fns := append([]func(){}, f.resetFns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (f *fakeTransport) unsubscribedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsubscribed...)
}

func (f *fakeTransport) counts() (blocks, logs, unsubscribed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockCalls, len(f.logQueries), len(f.unsubscribed)
}
