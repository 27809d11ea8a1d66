package filters

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketScope/internal/market"
)

// Orchestrator drives the lifecycle of every label: inactive, requesting,
// active (polling or pushed), and back to inactive on teardown.
type Orchestrator struct {
	transport Transport
	markets   *market.Registry
	registry  *Registry
	driver    *Driver
	metrics   *Metrics
	logger    *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu        sync.Mutex
	handlers  Handlers
	resetHook bool
}

// Config configures an Orchestrator.
type Config struct {
	Driver  DriverConfig
	Metrics *Metrics
}

// IgnoreOptions controls teardown in Ignore.
type IgnoreOptions struct {
	// Uninstall also forgets the handlers remembered by Listen, so a
	// transport reset no longer rebuilds the filters.
	Uninstall bool
	// Teardown replaces the default unsubscribe for the labels it names.
	Teardown map[string]TeardownFunc
}

// NewOrchestrator wires a registry and a driver for the market's labels.
func NewOrchestrator(transport Transport, markets *market.Registry, codec *market.Codec, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is nil")
	}
	if markets == nil || codec == nil {
		return nil, fmt.Errorf("market registry and codec are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	labels := append([]string{market.LabelBlock, market.LabelContracts}, markets.Labels()...)
	registry := NewRegistry(labels)
	return &Orchestrator{
		transport: transport,
		markets:   markets,
		registry:  registry,
		driver:    NewDriver(transport, codec, registry, cfg.Driver, metrics, logger),
		metrics:   metrics,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// Registry exposes the filter registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Driver exposes the delivery driver.
func (o *Orchestrator) Driver() *Driver { return o.driver }

// StartBlockListener creates the new-block filter, or returns the active id.
func (o *Orchestrator) StartBlockListener(ctx context.Context) (string, error) {
	return o.start(ctx, market.LabelBlock, func(ctx context.Context) (string, error) {
		return o.transport.SubscribeNewBlocks(ctx)
	})
}

// StartContractsListener creates a log filter over every configured
// contract, from block 1 to latest, or returns the active id.
func (o *Orchestrator) StartContractsListener(ctx context.Context) (string, error) {
	return o.start(ctx, market.LabelContracts, func(ctx context.Context) (string, error) {
		return o.transport.SubscribeLogs(ctx, ethereum.FilterQuery{
			Addresses: o.markets.Addresses(),
			FromBlock: big.NewInt(1),
		})
	})
}

// StartEventListener creates a filter on the event's contract address and
// topic signature, or returns the active id.
func (o *Orchestrator) StartEventListener(ctx context.Context, label string) (string, error) {
	spec, ok := o.markets.Event(label)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	q := ethereum.FilterQuery{Topics: [][]common.Hash{spec.Topics()}}
	if spec.HasAddress() {
		q.Addresses = []common.Address{spec.Address}
	}
	return o.start(ctx, label, func(ctx context.Context) (string, error) {
		return o.transport.SubscribeLogs(ctx, q)
	})
}

func (o *Orchestrator) startListener(ctx context.Context, label string) (string, error) {
	switch label {
	case market.LabelBlock:
		return o.StartBlockListener(ctx)
	case market.LabelContracts:
		return o.StartContractsListener(ctx)
	default:
		return o.StartEventListener(ctx, label)
	}
}

func (o *Orchestrator) start(ctx context.Context, label string, create func(context.Context) (string, error)) (string, error) {
	lock := o.labelLock(label)
	lock.Lock()
	defer lock.Unlock()

	if e := o.registry.Get(label); e.Active() {
		return e.ID, nil
	}

	id, err := create(ctx)
	if err == nil && (id == "" || id == "0x") {
		err = fmt.Errorf("empty filter id")
	}
	if err != nil {
		o.registry.Clear(label)
		o.metrics.CreateFailures.WithLabelValues(label).Inc()
		o.logger.Warn("filter not created", zap.String("label", label), zap.Error(err))
		return "", fmt.Errorf("%w: %s: %w", ErrFilterNotCreated, label, err)
	}

	if err := o.registry.Set(label, id, nil); err != nil {
		return "", fmt.Errorf("%s: %w", label, err)
	}
	o.metrics.FiltersCreated.WithLabelValues(label).Inc()
	o.logger.Info("filter created", zap.String("label", label), zap.String("filter_id", id))
	return id, nil
}

// Pacemaker begins delivery for every label in handlers that holds an
// active filter. Labels without one are skipped.
func (o *Orchestrator) Pacemaker(handlers Handlers) {
	if len(handlers) == 0 {
		return
	}
	push := o.transport.SubscriptionsSupported()
	for label, handler := range handlers {
		e := o.registry.Get(label)
		if !e.Active() {
			continue
		}
		if push {
			o.driver.Push(label, e.ID, handler)
		} else {
			o.driver.Poll(label, e.ID, handler)
		}
	}
}

// Listen replaces the filter of every known label in handlers with a fresh
// one, waits for all of them to settle, and starts delivery. It returns the
// registry snapshot together with the failures of individual labels.
// Unknown labels are skipped. The handlers are remembered for Reset.
func (o *Orchestrator) Listen(ctx context.Context, handlers Handlers) (map[string]Entry, error) {
	remembered := make(Handlers, len(handlers))
	for label, handler := range handlers {
		if !o.registry.Has(label) {
			o.logger.Debug("skipping unknown label", zap.String("label", label))
			continue
		}
		remembered[label] = handler
	}

	var (
		errMu sync.Mutex
		errs  error
	)
	g, gctx := errgroup.WithContext(ctx)
	for label := range remembered {
		label := label
		g.Go(func() error {
			if err := o.ClearFilter(gctx, label); err != nil {
				o.logger.Warn("clear stale filter failed", zap.String("label", label), zap.Error(err))
			}
			if _, err := o.startListener(gctx, label); err != nil {
				errMu.Lock()
				errs = multierr.Append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	o.mu.Lock()
	o.handlers = remembered
	installHook := !o.resetHook
	o.resetHook = true
	o.mu.Unlock()

	if r, ok := o.transport.(Resetter); ok && installHook {
		r.OnReset(func() {
			if err := o.Reset(context.Background()); err != nil {
				o.logger.Warn("rebuild filters after reset failed", zap.Error(err))
			}
		})
	}

	o.Pacemaker(remembered)
	return o.registry.Snapshot(), errs
}

// Reset rebuilds every filter with the handlers of the last Listen call. It
// is a no-op if Listen was never called or Ignore uninstalled the handlers.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.mu.Lock()
	handlers := o.handlers
	o.mu.Unlock()
	if len(handlers) == 0 {
		return nil
	}
	o.logger.Info("rebuilding filters", zap.Int("labels", len(handlers)))
	for label := range handlers {
		// The node may already have dropped filters from the old connection.
		if err := o.teardown(ctx, label, nil); err != nil {
			o.logger.Warn("stale filter not removed", zap.String("label", label), zap.Error(err))
		}
	}
	_, err := o.Listen(ctx, handlers)
	return err
}

// ClearFilter stops delivery for label, unsubscribes its filter and resets
// the entry. An inactive label is already cleared.
func (o *Orchestrator) ClearFilter(ctx context.Context, label string) error {
	return o.teardown(ctx, label, nil)
}

// Ignore tears down every label in handlers, or every label when handlers is
// empty. Delivery always stops and the registry entry is always cleared;
// the filter is unsubscribed unless opts names a custom teardown for the
// label. Ignore returns once every targeted label is inactive.
func (o *Orchestrator) Ignore(ctx context.Context, opts IgnoreOptions, handlers Handlers) error {
	var targets []string
	if len(handlers) == 0 {
		targets = o.registry.Labels()
	} else {
		for label := range handlers {
			if o.registry.Has(label) {
				targets = append(targets, label)
			}
		}
	}

	if opts.Uninstall {
		o.mu.Lock()
		o.handlers = nil
		o.mu.Unlock()
	}

	var (
		errMu sync.Mutex
		errs  error
	)
	var g errgroup.Group
	for _, label := range targets {
		label := label
		g.Go(func() error {
			if err := o.teardown(ctx, label, opts.Teardown[label]); err != nil {
				errMu.Lock()
				errs = multierr.Append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (o *Orchestrator) teardown(ctx context.Context, label string, custom TeardownFunc) error {
	lock := o.labelLock(label)
	lock.Lock()
	defer lock.Unlock()

	o.driver.Stop(label)
	prev := o.registry.Clear(label)
	if !prev.Active() {
		return nil
	}
	o.metrics.FiltersRemoved.WithLabelValues(label).Inc()

	var err error
	if custom != nil {
		err = custom(ctx, label, prev.ID)
	} else {
		var ok bool
		ok, err = o.transport.Unsubscribe(ctx, prev.ID)
		if err == nil && !ok {
			o.logger.Debug("node did not know filter", zap.String("label", label), zap.String("filter_id", prev.ID))
		}
	}
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", label, err)
	}
	o.logger.Info("filter removed", zap.String("label", label), zap.String("filter_id", prev.ID))
	return nil
}

// AllFiltersRemoved reports whether every registry entry is inactive.
func (o *Orchestrator) AllFiltersRemoved() bool {
	return o.registry.AllRemoved()
}

// Snapshot copies the registry.
func (o *Orchestrator) Snapshot() map[string]Entry {
	return o.registry.Snapshot()
}

// Close tears down every filter and stops the driver.
func (o *Orchestrator) Close(ctx context.Context) error {
	err := o.Ignore(ctx, IgnoreOptions{Uninstall: true}, nil)
	o.driver.Close()
	return err
}

func (o *Orchestrator) labelLock(label string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	lock, ok := o.locks[label]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[label] = lock
	}
	return lock
}
