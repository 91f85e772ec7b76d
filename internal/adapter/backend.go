package adapter

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/conduit/internal/chain"
	"github.com/mrz1836/conduit/internal/metrics"
)

// Backend is the subset of an EVM client the bridge adapter needs.
// *ethclient.Client and the simulated backend's client satisfy it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// meteredBackend rate limits and records every backend call.
type meteredBackend struct {
	inner    Backend
	limiter  *chain.RateLimiter
	endpoint string
}

func newMeteredBackend(inner Backend, limiter *chain.RateLimiter, endpoint string) *meteredBackend {
	return &meteredBackend{inner: inner, limiter: limiter, endpoint: endpoint}
}

func observe[T any](ctx context.Context, b *meteredBackend, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.limiter.Wait(ctx, b.endpoint); err != nil {
		return zero, err
	}
	start := time.Now()
	v, err := fn()
	metrics.Global.RecordRPCCall(string(KindBridge), time.Since(start), err)
	return v, err
}

func (b *meteredBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return observe(ctx, b, func() (*big.Int, error) { return b.inner.ChainID(ctx) })
}

func (b *meteredBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return observe(ctx, b, func() ([]byte, error) { return b.inner.CallContract(ctx, msg, blockNumber) })
}

func (b *meteredBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return observe(ctx, b, func() (uint64, error) { return b.inner.PendingNonceAt(ctx, account) })
}

func (b *meteredBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return observe(ctx, b, func() (*big.Int, error) { return b.inner.SuggestGasPrice(ctx) })
}

func (b *meteredBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return observe(ctx, b, func() (uint64, error) { return b.inner.EstimateGas(ctx, msg) })
}

func (b *meteredBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := observe(ctx, b, func() (struct{}, error) { return struct{}{}, b.inner.SendTransaction(ctx, tx) })
	return err
}

func (b *meteredBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return observe(ctx, b, func() (*types.Receipt, error) { return b.inner.TransactionReceipt(ctx, txHash) })
}
