package adapter

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Default watcher settings.
const (
	DefaultPollInterval = 4 * time.Second
	DefaultMaxFailures  = 3
)

// pollTarget is the part of an adapter the watcher polls.
type pollTarget interface {
	NetworkID(ctx context.Context) (uint64, error)
	ListAccounts(ctx context.Context) ([]common.Address, error)
}

// watcher polls an endpoint and turns observed changes into events.
// After maxFailures consecutive transport errors it emits Closed once and stops.
type watcher struct {
	target      pollTarget
	events      *emitter
	interval    time.Duration
	maxFailures int
	logger      Logger
	label       string

	network  uint64
	accounts []common.Address
	failures int

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func startWatcher(p pollTarget, events *emitter, interval time.Duration, maxFailures int, network uint64, accounts []common.Address, logger Logger, label string) *watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		target:      p,
		events:      events,
		interval:    interval,
		maxFailures: maxFailures,
		logger:      logger,
		label:       label,
		network:     network,
		accounts:    slices.Clone(accounts),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

func (w *watcher) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.poll(ctx) {
				return
			}
		}
	}
}

// poll performs one observation. It returns false when the watcher must stop.
func (w *watcher) poll(ctx context.Context) bool {
	pollCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	network, err := w.target.NetworkID(pollCtx)
	if err == nil {
		var accounts []common.Address
		accounts, err = w.target.ListAccounts(pollCtx)
		if err == nil {
			w.failures = 0
			w.observe(network, accounts)
			return true
		}
	}

	if ctx.Err() != nil {
		return false
	}

	w.failures++
	w.debug("%s watcher poll failed (%d/%d): %v", w.label, w.failures, w.maxFailures, err)
	if w.failures < w.maxFailures {
		return true
	}

	w.logError("%s endpoint unreachable, reporting closed: %v", w.label, err)
	w.events.emit(Event{Kind: Closed, Err: err})
	return false
}

func (w *watcher) observe(network uint64, accounts []common.Address) {
	if network != w.network {
		w.debug("%s network changed %d -> %d", w.label, w.network, network)
		w.network = network
		w.events.emit(Event{Kind: NetworkChanged, NetworkID: network})
	}

	if !slices.Equal(accounts, w.accounts) {
		w.debug("%s accounts changed: %d account(s)", w.label, len(accounts))
		w.accounts = slices.Clone(accounts)
		w.events.emit(Event{Kind: AccountsChanged, Accounts: slices.Clone(accounts)})
	}
}

// stop cancels the poll loop and waits for it to exit. It must not be
// called from the watcher goroutine.
func (w *watcher) stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		<-w.done
	})
}

func (w *watcher) debug(format string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(format, args...)
	}
}

func (w *watcher) logError(format string, args ...any) {
	if w.logger != nil {
		w.logger.Error(format, args...)
	}
}
