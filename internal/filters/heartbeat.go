package filters

import (
	"context"
	"sync"
	"sync/atomic"
)

// Heartbeat is the poll loop of one filter.
type Heartbeat struct {
	label   string
	id      string
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
	onStop  func()
}

func newHeartbeat(ctx context.Context, label, id string, onStop func()) (*Heartbeat, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Heartbeat{
		label:  label,
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		onStop: onStop,
	}, ctx
}

// Label returns the label the heartbeat polls for.
func (h *Heartbeat) Label() string { return h.label }

// ID returns the filter id the heartbeat polls.
func (h *Heartbeat) ID() string { return h.id }

// Running reports whether Stop has not been called yet.
func (h *Heartbeat) Running() bool {
	return !h.stopped.Load()
}

// Stop cancels the poll loop. It does not wait for an in-flight poll and is
// safe to call more than once, including from a handler.
func (h *Heartbeat) Stop() {
	h.once.Do(func() {
		h.stopped.Store(true)
		h.cancel()
		if h.onStop != nil {
			h.onStop()
		}
	})
}

// Done is closed once the poll loop has exited.
func (h *Heartbeat) Done() <-chan struct{} {
	return h.done
}
