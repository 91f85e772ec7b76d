package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mrz1836/conduit/internal/chain"
	"github.com/mrz1836/conduit/internal/chain/eth"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// BridgeOptions configures a bridge adapter.
type BridgeOptions struct {
	// Endpoint is reported by Endpoint(); DialBridge sets it to the dialed URL.
	Endpoint     string
	PollInterval time.Duration
	MaxFailures  int
	Retry        chain.RetryConfig
	Limiter      *chain.RateLimiter
	Logger       Logger
}

// BridgeAdapter talks to an EVM endpoint reached through a protocol bridge.
// Its account is the locally held signer; writes are signed locally and
// broadcast as raw transactions.
type BridgeAdapter struct {
	backend  Backend
	signer   *Signer
	chainID  uint64
	endpoint string
	nonces   *eth.NonceManager
	events   *emitter
	watch    *watcher
	logger   Logger
	closer   func()
	closed   atomic.Bool
}

// DialBridge dials url with ethclient and builds a bridge adapter on it.
// A nil signer yields a read-only adapter with no accounts.
func DialBridge(ctx context.Context, url string, signer *Signer, opts BridgeOptions) (*BridgeAdapter, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, cerr.WithCause(cerr.ErrNetworkError, fmt.Errorf("dialing bridge %s: %w", url, err))
	}

	opts.Endpoint = url
	a, err := NewBridge(ctx, client, signer, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	a.closer = client.Close
	return a, nil
}

// NewBridge builds a bridge adapter on an existing backend and performs the
// chain id handshake.
func NewBridge(ctx context.Context, backend Backend, signer *Signer, opts BridgeOptions) (*BridgeAdapter, error) {
	a := &BridgeAdapter{
		backend:  newMeteredBackend(backend, opts.Limiter, opts.Endpoint),
		signer:   signer,
		endpoint: opts.Endpoint,
		nonces:   eth.NewNonceManager(),
		events:   newEmitter(),
		logger:   opts.Logger,
	}

	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = chain.DefaultRetryConfig()
	}

	network, err := chain.RetryWithConfig(ctx, retry, func() (uint64, error) {
		return a.NetworkID(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("reading bridge chain id: %w", err)
	}
	a.chainID = network

	accounts, _ := a.ListAccounts(ctx)
	a.debug("bridge %s loaded: network %d, %d account(s)", a.endpoint, network, len(accounts))
	a.watch = startWatcher(a, a.events, opts.PollInterval, opts.MaxFailures, network, accounts, opts.Logger, string(KindBridge))

	return a, nil
}

// Kind returns KindBridge.
func (a *BridgeAdapter) Kind() Kind { return KindBridge }

// Endpoint returns the bridge URL.
func (a *BridgeAdapter) Endpoint() string { return a.endpoint }

// ListAccounts returns the signer's account, or none for a read-only adapter.
func (a *BridgeAdapter) ListAccounts(context.Context) ([]common.Address, error) {
	if a.closed.Load() {
		return nil, cerr.ErrAdapterClosed
	}
	if a.signer == nil {
		return []common.Address{}, nil
	}
	return []common.Address{a.signer.Address()}, nil
}

// NetworkID returns the chain id reported by the bridge.
func (a *BridgeAdapter) NetworkID(ctx context.Context) (uint64, error) {
	if a.closed.Load() {
		return 0, cerr.ErrAdapterClosed
	}
	id, err := a.backend.ChainID(ctx)
	if err != nil {
		return 0, cerr.WithCause(cerr.ErrNetworkError, err)
	}
	return id.Uint64(), nil
}

// Subscribe registers a lifecycle handler.
func (a *BridgeAdapter) Subscribe(kind EventKind, h Handler) Subscription {
	return a.events.subscribe(kind, h)
}

// Call performs an unsigned read against the latest block.
func (a *BridgeAdapter) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if a.closed.Load() {
		return nil, cerr.ErrAdapterClosed
	}
	return a.backend.CallContract(ctx, msg, nil)
}

// SendTransaction signs req with the local signer and broadcasts it.
func (a *BridgeAdapter) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	if a.closed.Load() {
		return common.Hash{}, cerr.ErrAdapterClosed
	}
	if a.signer == nil || req.From != a.signer.Address() {
		return common.Hash{}, cerr.WithDetails(cerr.ErrNoSigner, map[string]string{
			"from": req.From.Hex(),
		})
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		var err error
		if gasPrice, err = a.backend.SuggestGasPrice(ctx); err != nil {
			return common.Hash{}, fmt.Errorf("suggesting gas price: %w", err)
		}
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		estimate, err := a.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  req.From,
			To:    &req.To,
			Value: req.Value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimating gas: %w", err)
		}
		gasLimit = eth.BufferedGasLimit(estimate)
	}

	pending, err := a.backend.PendingNonceAt(ctx, req.From)
	if err != nil {
		return common.Hash{}, fmt.Errorf("reading nonce: %w", err)
	}
	nonce := a.nonces.Next(req.From, pending)

	tx := eth.BuildTransaction(eth.TxParams{
		Nonce:    nonce,
		To:       req.To,
		Value:    req.Value,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signed, err := eth.SignTransaction(tx, a.signer.key, new(big.Int).SetUint64(a.chainID))
	if err != nil {
		a.nonces.Reset(req.From)
		return common.Hash{}, err
	}

	if err := a.backend.SendTransaction(ctx, signed); err != nil {
		a.nonces.Reset(req.From)
		return common.Hash{}, fmt.Errorf("broadcasting transaction: %w", err)
	}

	a.debug("bridge submitted %s nonce %d", signed.Hash().Hex(), nonce)
	return signed.Hash(), nil
}

// TransactionStatus reads the receipt of hash.
func (a *BridgeAdapter) TransactionStatus(ctx context.Context, hash common.Hash) (TxStatus, error) {
	if a.closed.Load() {
		return TxPending, cerr.ErrAdapterClosed
	}
	receipt, err := a.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return TxPending, nil
	}
	if err != nil {
		return TxPending, err
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return TxSucceeded, nil
	}
	return TxReverted, nil
}

// Close stops the watcher and closes the underlying client if this adapter dialed it.
func (a *BridgeAdapter) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	if a.watch != nil {
		a.watch.stop()
	}
	a.events.clear()
	if a.closer != nil {
		a.closer()
	}
	return nil
}

func (a *BridgeAdapter) debug(format string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(format, args...)
	}
}
