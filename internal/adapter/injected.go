package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/conduit/internal/chain"
	"github.com/mrz1836/conduit/internal/chain/eth"
	"github.com/mrz1836/conduit/internal/chain/eth/rpc"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// InjectedOptions configures an injected wallet adapter.
type InjectedOptions struct {
	PollInterval time.Duration
	MaxFailures  int
	DialTimeout  time.Duration
	Retry        chain.RetryConfig
	Limiter      *chain.RateLimiter
	HTTPClient   *http.Client
	Logger       Logger
}

// InjectedAdapter talks to a wallet that holds its own keys.
// Writes go through eth_sendTransaction and are signed by the wallet.
type InjectedAdapter struct {
	client *rpc.Client
	events *emitter
	watch  *watcher
	logger Logger
	closed atomic.Bool
}

// DialInjected connects to the wallet endpoint at url and performs the
// handshake: eth_chainId, then eth_requestAccounts with an eth_accounts fallback.
func DialInjected(ctx context.Context, url string, opts InjectedOptions) (*InjectedAdapter, error) {
	if url == "" {
		return nil, cerr.ErrInjectedUnavailable
	}

	rpcOpts := []rpc.Option{rpc.WithMetricsLabel(string(KindInjected)), rpc.WithRateLimiter(opts.Limiter)}
	if opts.HTTPClient != nil {
		rpcOpts = append(rpcOpts, rpc.WithHTTPClient(opts.HTTPClient))
	}
	a := &InjectedAdapter{
		client: rpc.NewClient(url, rpcOpts...),
		events: newEmitter(),
		logger: opts.Logger,
	}

	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = chain.DefaultRetryConfig()
	}

	network, err := chain.RetryWithConfig(ctx, retry, func() (uint64, error) {
		return a.NetworkID(ctx)
	})
	if err != nil {
		a.client.Close()
		return nil, cerr.WithCause(cerr.ErrInjectedUnavailable, fmt.Errorf("reading chain id: %w", err))
	}

	accounts, err := a.requestAccounts(ctx)
	if err != nil {
		a.client.Close()
		return nil, cerr.WithCause(cerr.ErrInjectedUnavailable, fmt.Errorf("reading accounts: %w", err))
	}

	a.debug("injected wallet %s loaded: network %d, %d account(s)", url, network, len(accounts))
	a.watch = startWatcher(a, a.events, opts.PollInterval, opts.MaxFailures, network, accounts, opts.Logger, string(KindInjected))

	return a, nil
}

// requestAccounts asks the wallet to expose accounts. Wallets that do not
// implement the request, or refuse it, are read with eth_accounts instead.
func (a *InjectedAdapter) requestAccounts(ctx context.Context) ([]common.Address, error) {
	raw, err := a.client.RequestAccounts(ctx)
	if err != nil {
		var rpcErr *rpc.Error
		if !errors.As(err, &rpcErr) {
			return nil, err
		}
		a.debug("eth_requestAccounts refused (%v), falling back to eth_accounts", err)
		return a.ListAccounts(ctx)
	}
	return eth.ParseAddresses(raw), nil
}

// Kind returns KindInjected.
func (a *InjectedAdapter) Kind() Kind { return KindInjected }

// Endpoint returns the wallet URL.
func (a *InjectedAdapter) Endpoint() string { return a.client.URL() }

// ListAccounts returns the wallet's exposed accounts.
func (a *InjectedAdapter) ListAccounts(ctx context.Context) ([]common.Address, error) {
	if a.closed.Load() {
		return nil, cerr.ErrAdapterClosed
	}
	raw, err := a.client.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	return eth.ParseAddresses(raw), nil
}

// NetworkID returns the wallet's current chain id.
func (a *InjectedAdapter) NetworkID(ctx context.Context) (uint64, error) {
	if a.closed.Load() {
		return 0, cerr.ErrAdapterClosed
	}
	id, err := a.client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}

// Subscribe registers a lifecycle handler.
func (a *InjectedAdapter) Subscribe(kind EventKind, h Handler) Subscription {
	return a.events.subscribe(kind, h)
}

// Call performs eth_call against the latest block.
func (a *InjectedAdapter) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if a.closed.Load() {
		return nil, cerr.ErrAdapterClosed
	}
	return a.client.EthCall(ctx, toRPCMsg(msg), "latest")
}

// SendTransaction asks the wallet to sign and submit req.
// A wallet that answers without a hash yields the zero hash and no error.
func (a *InjectedAdapter) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	if a.closed.Load() {
		return common.Hash{}, cerr.ErrAdapterClosed
	}

	msg := rpc.CallMsg{
		From:     req.From.Hex(),
		To:       req.To.Hex(),
		Gas:      req.GasLimit,
		GasPrice: req.GasPrice,
		Value:    req.Value,
		Data:     req.Data,
	}

	hash, err := a.client.SendTransaction(ctx, msg)
	if err != nil {
		return common.Hash{}, err
	}
	if hash == "" {
		return common.Hash{}, nil
	}
	return common.HexToHash(hash), nil
}

// TransactionStatus reads the receipt of hash.
func (a *InjectedAdapter) TransactionStatus(ctx context.Context, hash common.Hash) (TxStatus, error) {
	if a.closed.Load() {
		return TxPending, cerr.ErrAdapterClosed
	}
	receipt, err := a.client.GetTransactionReceipt(ctx, hash.Hex())
	if err != nil {
		return TxPending, err
	}
	if receipt == nil {
		return TxPending, nil
	}
	if receipt.Status == 1 {
		return TxSucceeded, nil
	}
	return TxReverted, nil
}

// Close stops the watcher and drops all subscriptions.
func (a *InjectedAdapter) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	if a.watch != nil {
		a.watch.stop()
	}
	a.events.clear()
	a.client.Close()
	return nil
}

func (a *InjectedAdapter) debug(format string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(format, args...)
	}
}

func toRPCMsg(msg ethereum.CallMsg) rpc.CallMsg {
	out := rpc.CallMsg{
		From:     msg.From.Hex(),
		Gas:      msg.Gas,
		GasPrice: msg.GasPrice,
		Value:    msg.Value,
		Data:     msg.Data,
	}
	if msg.From == (common.Address{}) {
		out.From = ""
	}
	if msg.To != nil {
		out.To = msg.To.Hex()
	}
	return out
}
