// Package dispatch submits contract transactions through the supervisor's
// active adapter and records what was submitted.
package dispatch

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/conduit/internal/adapter"
	"github.com/mrz1836/conduit/internal/chain/eth/rpc"
	"github.com/mrz1836/conduit/internal/contract"
	"github.com/mrz1836/conduit/internal/metrics"
	"github.com/mrz1836/conduit/internal/pending"
	"github.com/mrz1836/conduit/internal/supervisor"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// DefaultWaitInterval is the receipt polling interval used by Wait.
const DefaultWaitInterval = 5 * time.Second

// StatusSource provides the current connection status.
type StatusSource interface {
	Snapshot() supervisor.Status
}

// Logger is the interface for dispatch logging.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Request describes one contract write.
type Request struct {
	Kind      string
	Address   common.Address
	Method    string
	Args      []any
	Overrides *contract.Overrides
}

// Result holds either a submitted transaction hash or the failure.
type Result struct {
	TxHash common.Hash
	Err    error
}

// Submitted reports whether the transaction reached the network.
func (r Result) Submitted() bool {
	return r.Err == nil
}

// Dispatcher is the single entry point for contract writes.
type Dispatcher struct {
	status  StatusSource
	factory contract.Factory
	tracker *pending.Tracker
	logger  Logger
}

// New returns a dispatcher. tracker may be nil when nothing needs to follow
// submitted transactions.
func New(status StatusSource, factory contract.Factory, tracker *pending.Tracker, logger Logger) *Dispatcher {
	return &Dispatcher{
		status:  status,
		factory: factory,
		tracker: tracker,
		logger:  logger,
	}
}

// Dispatch submits req from the active account. It does not retry and adds
// no timeout of its own; ctx is honored by the adapter's transport.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (res Result) {
	defer func() { metrics.Global.RecordDispatch(res.Err) }()

	st := d.status.Snapshot()
	if st.Account == nil {
		return Result{Err: cerr.ErrNoAccount}
	}
	if st.ActiveNetworkID == nil {
		return Result{Err: cerr.ErrNoNetwork}
	}
	account := *st.Account

	handle, err := d.factory.Contract(req.Kind, req.Address, st.Adapter, &account)
	if err != nil {
		return Result{Err: err}
	}

	var overrides contract.Overrides
	if req.Overrides != nil {
		overrides = *req.Overrides
	}

	d.debug("sending %s.%s to %s from %s on network %d",
		req.Kind, req.Method, req.Address.Hex(), account.Hex(), *st.ActiveNetworkID)

	hash, err := handle.Transact(ctx, req.Method, req.Args, overrides)
	switch {
	case err != nil:
		if rpc.IsCode(err, rpc.CodeUserRejected) {
			d.debug("%s.%s rejected by the wallet user", req.Kind, req.Method)
			return Result{Err: cerr.WithSuggestion(cerr.WithCause(cerr.ErrSubmissionFailed, err), "the transaction was rejected in the wallet")}
		}
		d.debug("%s.%s failed: %v", req.Kind, req.Method, err)
		return Result{Err: cerr.WithCause(cerr.ErrSubmissionFailed, err)}

	case hash == (common.Hash{}):
		d.logError("%s.%s returned neither a transaction hash nor an error", req.Kind, req.Method)
		return Result{Err: cerr.ErrInvariantViolation}
	}

	if d.tracker != nil {
		d.tracker.Add(account, hash)
	}
	d.debug("submitted %s", hash.Hex())
	return Result{TxHash: hash}
}

// Call performs an unsigned read of method on the contract at address.
// The active account, when there is one, is used as the call's sender.
func (d *Dispatcher) Call(ctx context.Context, kind string, address common.Address, method string, args ...any) ([]any, error) {
	st := d.status.Snapshot()
	if st.Adapter == nil {
		return nil, cerr.ErrNoNetwork
	}

	handle, err := d.factory.Contract(kind, address, st.Adapter, st.Account)
	if err != nil {
		return nil, err
	}
	return handle.Call(ctx, method, args...)
}

// Wait polls the active adapter until hash is no longer pending for the
// active account, then returns whether it succeeded. interval <= 0 uses
// DefaultWaitInterval.
func (d *Dispatcher) Wait(ctx context.Context, hash common.Hash, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = DefaultWaitInterval
	}
	if d.tracker == nil {
		return false, cerr.Wrap(cerr.ErrGeneral, "no pending tracker configured")
	}
	checker := pending.NewChecker(d.tracker, d.logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st := d.status.Snapshot()
		if st.Account == nil || st.Adapter == nil {
			return false, cerr.ErrNoAccount
		}

		outcomes, err := checker.Check(ctx, *st.Account, st.Adapter)
		if err != nil {
			d.debug("receipt check failed, retrying: %v", err)
		}
		for _, o := range outcomes {
			if o.Hash == hash && o.Status != adapter.TxPending {
				return o.Status == adapter.TxSucceeded, nil
			}
		}
		if !d.tracker.Contains(*st.Account, hash) {
			return false, cerr.WithDetails(cerr.ErrNotFound, map[string]string{"tx": hash.Hex()})
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) debug(format string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(format, args...)
	}
}

func (d *Dispatcher) logError(format string, args ...any) {
	if d.logger != nil {
		d.logger.Error(format, args...)
	}
}
