package filters

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"marketScope/internal/market"
)

// DefaultPollInterval is the heartbeat period in poll mode.
const DefaultPollInterval = 500 * time.Millisecond

// DriverConfig configures message delivery.
type DriverConfig struct {
	PollInterval time.Duration
	// PollRate caps eth_getFilterChanges calls per second across all
	// heartbeats. Zero disables the cap.
	PollRate  float64
	PollBurst int
}

// Driver delivers node messages to handlers, either by polling each filter
// on a heartbeat or by registering push callbacks on the transport.
type Driver struct {
	transport Transport
	codec     *market.Codec
	registry  *Registry
	logger    *zap.Logger
	metrics   *Metrics

	interval time.Duration
	limiter  *rate.Limiter

	base   context.Context
	cancel context.CancelFunc

	active atomic.Int64

	mu     sync.Mutex
	pushed map[string]string
}

// NewDriver creates a driver bound to registry.
func NewDriver(transport Transport, codec *market.Codec, registry *Registry, cfg DriverConfig, metrics *Metrics, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.PollRate > 0 {
		burst := cfg.PollBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.PollRate), burst)
	}
	base, cancel := context.WithCancel(context.Background())
	return &Driver{
		transport: transport,
		codec:     codec,
		registry:  registry,
		logger:    logger,
		metrics:   metrics,
		interval:  interval,
		limiter:   limiter,
		base:      base,
		cancel:    cancel,
		pushed:    make(map[string]string),
	}
}

// ActiveHeartbeats returns the number of running poll heartbeats.
func (d *Driver) ActiveHeartbeats() int {
	return int(d.active.Load())
}

// Poll starts the heartbeat for label. It is a no-op when label already has
// a heartbeat or no longer holds id.
func (d *Driver) Poll(label, id string, handler Handler) *Heartbeat {
	hb, ctx := newHeartbeat(d.base, label, id, func() {
		d.active.Add(-1)
		d.metrics.ActiveHeartbeats.Dec()
	})
	d.active.Add(1)
	d.metrics.ActiveHeartbeats.Inc()
	if !d.registry.attachHeartbeat(label, id, hb) {
		hb.Stop()
		close(hb.done)
		return d.registry.Get(label).Heartbeat
	}

	go d.run(ctx, hb, handler)
	d.logger.Debug("heartbeat started", zap.String("label", label), zap.String("filter_id", id))
	return hb
}

func (d *Driver) run(ctx context.Context, hb *Heartbeat, handler Handler) {
	defer close(hb.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if d.registry.Get(hb.label).Heartbeat != hb {
			hb.Stop()
			return
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}

		start := time.Now()
		raw, err := d.transport.GetFilterChanges(ctx, hb.id)
		d.metrics.PollDuration.WithLabelValues(hb.label).Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.metrics.PollErrors.WithLabelValues(hb.label).Inc()
			d.logger.Warn("poll filter changes failed",
				zap.String("label", hb.label),
				zap.String("filter_id", hb.id),
				zap.Error(err),
			)
			continue
		}
		// The entry may have been cleared while the poll was in flight.
		if ctx.Err() != nil || d.registry.Get(hb.label).ID != hb.id {
			return
		}
		d.dispatch(hb.label, raw, handler)
	}
}

// Push registers a transport callback for label's filter.
func (d *Driver) Push(label, id string, handler Handler) {
	d.mu.Lock()
	if prev, ok := d.pushed[label]; ok {
		if prev == id {
			d.mu.Unlock()
			return
		}
		d.transport.UnregisterSubscriptionCallback(prev)
	}
	d.pushed[label] = id
	d.mu.Unlock()

	d.transport.RegisterSubscriptionCallback(id, func(raw json.RawMessage) {
		if d.registry.Get(label).ID != id {
			return
		}
		d.dispatch(label, raw, handler)
	})
	d.logger.Debug("push callback registered", zap.String("label", label), zap.String("filter_id", id))
}

// Stop ends delivery for label: the heartbeat is stopped and any push
// callback is unregistered. The registry entry is not cleared.
func (d *Driver) Stop(label string) {
	if hb := d.registry.Get(label).Heartbeat; hb != nil {
		hb.Stop()
	}
	d.mu.Lock()
	id, ok := d.pushed[label]
	delete(d.pushed, label)
	d.mu.Unlock()
	if ok {
		d.transport.UnregisterSubscriptionCallback(id)
	}
}

// Close stops every heartbeat owned by the driver.
func (d *Driver) Close() {
	for _, label := range d.registry.Labels() {
		d.Stop(label)
	}
	d.cancel()
}

func (d *Driver) dispatch(label string, raw json.RawMessage, handler Handler) {
	items, err := market.SplitMessages(raw)
	if err != nil {
		d.deliver(Message{Label: label, Raw: raw, Err: err}, handler)
		return
	}
	for _, item := range items {
		d.deliver(d.decode(label, item), handler)
	}
}

func (d *Driver) decode(label string, raw json.RawMessage) Message {
	msg := Message{Label: label}
	var err error
	switch label {
	case market.LabelBlock:
		msg.Block, err = d.codec.DecodeBlockHeader(raw)
	case market.LabelContracts:
		msg.Log, err = d.codec.DecodeContractsMessage(raw)
	default:
		msg.Event, err = d.codec.DecodeEvent(label, raw)
	}
	if err != nil {
		return Message{Label: label, Raw: raw, Err: err}
	}
	return msg
}

func (d *Driver) deliver(msg Message, handler Handler) {
	if msg.Err != nil {
		d.metrics.DecodeFailures.WithLabelValues(msg.Label).Inc()
		d.logger.Debug("delivering raw message", zap.String("label", msg.Label), zap.Error(msg.Err))
	}
	d.metrics.MessagesDelivered.WithLabelValues(msg.Label).Inc()
	if handler != nil {
		handler(msg)
	}
}
