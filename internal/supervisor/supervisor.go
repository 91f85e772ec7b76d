// Package supervisor owns the active connection adapter. It applies the
// failover policy on startup and on every lifecycle event, keeps listener
// registration in step with the active adapter, and publishes status
// snapshots to subscribers.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/conduit/internal/adapter"
	"github.com/mrz1836/conduit/internal/failover"
	"github.com/mrz1836/conduit/internal/metrics"
	"github.com/mrz1836/conduit/internal/pending"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// Defaults for the event worker.
const (
	DefaultQueueSize    = 64
	DefaultEventTimeout = 30 * time.Second
)

var errNoFallback = errors.New("no fallback connector configured")

// Logger is the interface for supervisor logging. State transitions are
// logged as structured records.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
	DebugAttrs(msg string, attrs ...slog.Attr)
	ErrorAttrs(msg string, attrs ...slog.Attr)
}

// AccountHook is called when account-scoped data should be refreshed.
// It runs while the supervisor holds its reload lock and must not call
// back into the supervisor.
type AccountHook func(ctx context.Context, account common.Address, a adapter.Adapter)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithAccountHook sets the account-data hook.
func WithAccountHook(h AccountHook) Option {
	return func(s *Supervisor) { s.accountHook = h }
}

// WithPending clears a departing account's pending set and re-checks the
// arriving account's set in the background whenever the active account
// changes.
func WithPending(tracker *pending.Tracker, checker *pending.Checker) Option {
	return func(s *Supervisor) {
		s.tracker = tracker
		s.checker = checker
	}
}

// WithQueueSize sets the lifecycle event queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithEventTimeout bounds the work done for one queued lifecycle event.
func WithEventTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.eventTimeout = d
		}
	}
}

// queuedEvent is an adapter event tagged with the listener generation that
// received it.
type queuedEvent struct {
	generation uint64
	parked     bool
	event      adapter.Event
}

type observer struct {
	id uint64
	fn func(Status)
}

// Supervisor owns the connection status. Create one with New and share it.
type Supervisor struct {
	target   uint64
	env      adapter.Environment
	fallback adapter.Connector

	logger       Logger
	accountHook  AccountHook
	tracker      *pending.Tracker
	checker      *pending.Checker
	queueSize    int
	eventTimeout time.Duration

	// reloadMu serializes every status mutation.
	reloadMu   sync.Mutex
	generation uint64
	listeners  []adapter.Subscription
	injected   adapter.Adapter
	pinned     adapter.Adapter
	backup     adapter.Adapter
	closed     bool

	// mu guards status and observers for readers.
	mu        sync.RWMutex
	status    Status
	observers []observer
	nextObs   uint64

	checks sync.WaitGroup

	events   chan queuedEvent
	overflow atomic.Bool
	ctx      context.Context //nolint:containedctx // Worker lifetime
	cancel   context.CancelFunc
	done     chan struct{}
}

// New returns a supervisor targeting network target and starts its event
// worker. env reports the injected wallet; fallback builds the bridge adapter.
func New(target uint64, env adapter.Environment, fallback adapter.Connector, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		target:       target,
		env:          env,
		fallback:     fallback,
		queueSize:    DefaultQueueSize,
		eventTimeout: DefaultEventTimeout,
		status:       Status{State: Uninitialized, TargetNetworkID: target},
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = make(chan queuedEvent, s.queueSize)

	go s.run()
	return s
}

// Initialize performs the first load and returns the resulting status.
// Calling it again behaves like Reload(ctx, nil).
func (s *Supervisor) Initialize(ctx context.Context) Status {
	return s.Reload(ctx, nil)
}

// Reload re-runs adapter selection. A nil override looks again in the
// environment for an injected wallet; a non-nil override is used as the
// injected adapter and is owned, and eventually closed, by the supervisor
// from then on. Concurrent calls are queued, never interleaved.
func (s *Supervisor) Reload(ctx context.Context, override adapter.Adapter) Status {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	s.pinned = override
	s.reloadLocked(ctx)
	return s.Snapshot()
}

// Snapshot returns the current status.
func (s *Supervisor) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.clone()
}

// Subscribe registers fn to receive every published status, in order.
// fn runs on the goroutine that changed the status and must not call back
// into the supervisor. The returned function removes the subscription.
func (s *Supervisor) Subscribe(fn func(Status)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextObs++
	id := s.nextObs
	s.observers = append(s.observers, observer{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.observers = slices.DeleteFunc(s.observers, func(o observer) bool { return o.id == id })
		})
	}
}

// HandleNetworkChanged reloads when a connection is active.
func (s *Supervisor) HandleNetworkChanged(ctx context.Context, networkID uint64) Status {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.networkChangedLocked(ctx, networkID)
	return s.Snapshot()
}

// HandleAccountsChanged adopts the first account. An empty list means the
// connection is unusable and is handled as a close.
func (s *Supervisor) HandleAccountsChanged(ctx context.Context, accounts []common.Address) Status {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.accountsChangedLocked(ctx, accounts)
	return s.Snapshot()
}

// HandleClosed reloads when a connection is active.
func (s *Supervisor) HandleClosed(ctx context.Context) Status {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.closedLocked(ctx, nil)
	return s.Snapshot()
}

// Close stops the event worker, waits for background pending checks,
// removes all listeners and closes every adapter the supervisor holds.
// It is idempotent.
func (s *Supervisor) Close() error {
	s.cancel()
	<-s.done

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.checks.Wait()

	s.detachLocked()
	for _, a := range []adapter.Adapter{s.injected, s.backup, s.pinned} {
		if a != nil {
			_ = a.Close()
		}
	}
	s.injected, s.backup, s.pinned = nil, nil, nil

	s.mu.Lock()
	s.status = Status{State: Uninitialized, TargetNetworkID: s.target, LastError: cerr.ErrAdapterClosed}
	s.observers = nil
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) networkChangedLocked(ctx context.Context, networkID uint64) {
	cur := s.current()
	s.debug("network changed to %d (active=%t)", networkID, cur.Active)
	if cur.Active {
		s.reloadLocked(ctx)
	}
}

func (s *Supervisor) closedLocked(ctx context.Context, cause error) {
	cur := s.current()
	s.debug("connection closed (active=%t): %v", cur.Active, cause)
	if cur.Active {
		s.reloadLocked(ctx)
	}
}

func (s *Supervisor) accountsChangedLocked(ctx context.Context, accounts []common.Address) {
	if len(accounts) == 0 {
		s.closedLocked(ctx, nil)
		return
	}

	cur := s.current()
	if !cur.Active {
		s.debug("accounts changed while inactive, ignoring")
		return
	}

	next := accounts[0]
	s.debug("accounts changed, primary account %s", next.Hex())

	updated := cur.clone()
	updated.Account = &next
	s.accountSwitched(cur.Account, updated.Account, cur.Adapter)
	s.publishLocked(updated)

	if s.accountHook != nil {
		s.accountHook(ctx, next, cur.Adapter)
	}
}

// reloadLocked selects the active adapter. Callers hold reloadMu.
//
//nolint:gocognit,gocyclo // Adapter selection is a single sequential state transition
func (s *Supervisor) reloadLocked(ctx context.Context) {
	if s.closed {
		return
	}

	// Listeners from the previous cycle go first so that nothing they
	// deliver from here on can be mistaken for the new cycle.
	s.detachLocked()
	prev := s.current()

	// The outgoing adapter may be closed during the load, so it is not
	// offered to readers of the loading status.
	loading := prev.clone()
	loading.State = Loading
	loading.Active = false
	loading.InjectedActive = false
	loading.Adapter = nil
	loading.Account = nil
	loading.ActiveNetworkID = nil
	s.publishLocked(loading)

	injected, injectedErr := s.loadInjected(ctx)

	var injectedNetwork *uint64
	if injected != nil {
		id, err := injected.NetworkID(ctx)
		if err != nil {
			s.logError("injected wallet network unavailable: %v", err)
			injectedErr = cerr.WithCause(cerr.ErrInjectedUnavailable, err)
			s.dropInjected(injected)
			injected = nil
		} else {
			injectedNetwork = &id
		}
	}

	in := failover.Inputs{
		InjectedLoaded:    injected != nil,
		InjectedNetworkID: injectedNetwork,
		TargetNetworkID:   s.target,
	}
	decision := failover.Decide(in)
	metrics.Global.RecordReload(decision == failover.UseFallback)

	next := Status{
		TargetNetworkID:   s.target,
		InjectedLoaded:    injected != nil,
		InjectedNetworkID: injectedNetwork,
	}

	if decision == failover.UseInjected {
		s.debug("injected wallet active on network %d", *injectedNetwork)
		s.closeBackup()

		next.State = InjectedActive
		next.Active = true
		next.InjectedActive = true
		next.ActiveNetworkID = copyID(injectedNetwork)
		next.Adapter = injected
		next.Account = s.primaryAccount(ctx, injected)

		s.injected = injected
		s.attachLocked(injected, false)
		s.accountSwitched(prev.Account, next.Account, injected)
		s.publishLocked(next)

		// Not on the first injected load, which could be a change of provider.
		if prev.InjectedActive && prev.Account != nil && next.Account != nil && s.accountHook != nil {
			s.accountHook(ctx, *next.Account, injected)
		}
		return
	}

	s.debug("using fallback: %s", failover.Reason(in))
	switch {
	case injected != nil:
		next.LastError = cerr.WithDetails(cerr.ErrNetworkMismatch, map[string]string{
			"network": strconv.FormatUint(*injectedNetwork, 10),
			"target":  strconv.FormatUint(s.target, 10),
		})
	case injectedErr != nil:
		next.LastError = injectedErr
	}

	backup, backupNetwork, err := s.loadBackup(ctx)
	if err != nil {
		s.logError("fallback connection failed: %v", err)
		next.State = Failed
		next.LastError = cerr.WithCause(cerr.ErrFallbackConnectFailed, err)
	} else {
		next.State = FallbackActive
		next.Active = true
		next.BackupLoaded = true
		next.ActiveNetworkID = &backupNetwork
		next.Adapter = backup
		next.Account = s.primaryAccount(ctx, backup)
		s.attachLocked(backup, false)
	}

	// A wallet on the wrong network stays loaded and watched so that
	// switching its network recovers.
	s.injected = injected
	if injected != nil {
		s.attachLocked(injected, true)
	}

	s.accountSwitched(prev.Account, next.Account, next.Adapter)
	s.publishLocked(next)
}

// loadInjected returns the injected adapter for this cycle. The pinned
// override wins; otherwise the environment is asked again. The previous
// injected adapter is closed unless it is returned again. A construction
// failure is returned as a soft error.
func (s *Supervisor) loadInjected(ctx context.Context) (adapter.Adapter, error) {
	old := s.injected
	s.injected = nil

	var (
		a   adapter.Adapter
		err error
	)
	if s.pinned != nil {
		a = s.pinned
	} else {
		a, err = s.discoverInjected(ctx)
	}

	if old != nil && old != a {
		_ = old.Close()
	}
	return a, err
}

func (s *Supervisor) discoverInjected(ctx context.Context) (adapter.Adapter, error) {
	if s.env == nil {
		return nil, nil
	}
	conn, ok := s.env.Injected()
	if !ok {
		s.debug("no injected wallet advertised")
		return nil, nil
	}

	a, err := conn.Connect(ctx)
	if err != nil {
		s.logError("injected wallet unavailable: %v", err)
		if cerr.Is(err, cerr.ErrInjectedUnavailable) {
			return nil, err
		}
		return nil, cerr.WithCause(cerr.ErrInjectedUnavailable, err)
	}
	return a, nil
}

// loadBackup reuses a live fallback adapter or builds a new one.
func (s *Supervisor) loadBackup(ctx context.Context) (adapter.Adapter, uint64, error) {
	if s.backup != nil {
		id, err := s.backup.NetworkID(ctx)
		if err == nil {
			return s.backup, id, nil
		}
		s.debug("fallback adapter unhealthy, rebuilding: %v", err)
		s.closeBackup()
	}

	if s.fallback == nil {
		return nil, 0, errNoFallback
	}

	a, err := s.fallback.Connect(ctx)
	if err != nil {
		return nil, 0, err
	}
	id, err := a.NetworkID(ctx)
	if err != nil {
		_ = a.Close()
		return nil, 0, err
	}
	s.backup = a
	return a, id, nil
}

func (s *Supervisor) primaryAccount(ctx context.Context, a adapter.Adapter) *common.Address {
	accounts, err := a.ListAccounts(ctx)
	if err != nil {
		s.logError("listing accounts on %s adapter: %v", a.Kind(), err)
		return nil
	}
	if len(accounts) == 0 {
		return nil
	}
	acct := accounts[0]
	return &acct
}

// accountSwitched keeps the pending set in step with the active account.
// The departing set is cleared at once; the arriving set is checked off the
// reload lock so a slow receipt endpoint never delays a transition.
func (s *Supervisor) accountSwitched(prev, next *common.Address, a adapter.Adapter) {
	if s.tracker == nil || sameAccount(prev, next) {
		return
	}
	if prev != nil {
		s.tracker.Clear(*prev)
	}
	if next == nil || a == nil || s.checker == nil {
		return
	}

	account := *next
	s.checks.Add(1)
	go func() {
		defer s.checks.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.eventTimeout)
		defer cancel()
		if _, err := s.checker.Check(ctx, account, a); err != nil {
			s.logError("re-checking pending transactions for %s: %v", account.Hex(), err)
		}
	}()
}

func (s *Supervisor) closeBackup() {
	if s.backup != nil {
		_ = s.backup.Close()
		s.backup = nil
	}
}

// dropInjected closes a failed injected adapter and forgets a pinned one.
func (s *Supervisor) dropInjected(a adapter.Adapter) {
	_ = a.Close()
	if s.pinned == a {
		s.pinned = nil
	}
	if s.injected == a {
		s.injected = nil
	}
}

// attachLocked subscribes to a's lifecycle events under the current generation.
func (s *Supervisor) attachLocked(a adapter.Adapter, parked bool) {
	gen := s.generation
	for _, kind := range []adapter.EventKind{adapter.NetworkChanged, adapter.AccountsChanged, adapter.Closed} {
		sub := a.Subscribe(kind, func(ev adapter.Event) {
			s.enqueue(queuedEvent{generation: gen, parked: parked, event: ev})
		})
		s.listeners = append(s.listeners, sub)
	}
}

// detachLocked removes every listener and starts a new generation.
// Events already queued under the old generation are dropped by the worker.
func (s *Supervisor) detachLocked() {
	if len(s.listeners) > 0 {
		s.debug("removing %d old listener(s)", len(s.listeners))
	}
	for _, sub := range s.listeners {
		sub.Unsubscribe()
	}
	s.listeners = nil
	s.generation++
}

// enqueue never blocks; it runs on adapter watcher goroutines.
func (s *Supervisor) enqueue(ev queuedEvent) {
	select {
	case s.events <- ev:
	default:
		s.overflow.Store(true)
		s.logError("lifecycle event queue full, dropping %s; a resync will follow", ev.event.Kind)
	}
}

func (s *Supervisor) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.process(ev)
			if s.overflow.CompareAndSwap(true, false) {
				s.resync()
			}
		}
	}
}

func (s *Supervisor) process(qe queuedEvent) {
	ctx, cancel := context.WithTimeout(s.ctx, s.eventTimeout)
	defer cancel()

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if qe.generation != s.generation || s.closed {
		metrics.Global.RecordStaleEvent()
		s.debug("ignoring %s from superseded adapter", qe.event.Kind)
		return
	}

	if qe.parked {
		// Only network and connection changes of a parked wallet matter.
		switch qe.event.Kind {
		case adapter.NetworkChanged, adapter.Closed:
			s.debug("parked wallet reported %s, reloading", qe.event.Kind)
			s.reloadLocked(ctx)
		case adapter.AccountsChanged:
			s.debug("parked wallet accounts changed, ignoring")
		}
		return
	}

	switch qe.event.Kind {
	case adapter.NetworkChanged:
		s.networkChangedLocked(ctx, qe.event.NetworkID)
	case adapter.AccountsChanged:
		s.accountsChangedLocked(ctx, qe.event.Accounts)
	case adapter.Closed:
		s.closedLocked(ctx, qe.event.Err)
	}
}

func (s *Supervisor) resync() {
	ctx, cancel := context.WithTimeout(s.ctx, s.eventTimeout)
	defer cancel()

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.reloadLocked(ctx)
}

func (s *Supervisor) current() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// publishLocked stores st and notifies observers in registration order.
// Callers hold reloadMu, so notifications are ordered.
func (s *Supervisor) publishLocked(st Status) {
	s.mu.Lock()
	prev := s.status
	s.status = st
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	s.logTransition(prev, st)
	for _, o := range observers {
		o.fn(st.clone())
	}
}

// logTransition records state changes. Failures are logged at error level.
func (s *Supervisor) logTransition(prev, next Status) {
	if s.logger == nil || prev.State == next.State {
		return
	}

	attrs := []slog.Attr{
		slog.String("from", prev.State.String()),
		slog.String("to", next.State.String()),
		slog.Uint64("generation", s.generation),
		slog.Uint64("target_network", s.target),
	}
	if kind := next.AdapterKind(); kind != "" {
		attrs = append(attrs, slog.String("adapter", string(kind)))
	}
	if next.ActiveNetworkID != nil {
		attrs = append(attrs, slog.Uint64("network", *next.ActiveNetworkID))
	}
	if next.Account != nil {
		attrs = append(attrs, slog.String("account", next.Account.Hex()))
	}

	if next.State == Failed {
		if next.LastError != nil {
			attrs = append(attrs, slog.String("error", next.LastError.Error()))
		}
		s.logger.ErrorAttrs("connection state changed", attrs...)
		return
	}
	s.logger.DebugAttrs("connection state changed", attrs...)
}

func (s *Supervisor) debug(format string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(format, args...)
	}
}

func (s *Supervisor) logError(format string, args ...any) {
	if s.logger != nil {
		s.logger.Error(format, args...)
	}
}
