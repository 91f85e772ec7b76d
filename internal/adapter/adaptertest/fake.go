// Package adaptertest provides an in-memory adapter for tests.
package adaptertest

import (
	"context"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/conduit/internal/adapter"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// Fake is a scriptable adapter.Adapter. Events are delivered synchronously
// by Emit on the caller's goroutine.
type Fake struct {
	mu       sync.Mutex
	kind     adapter.Kind
	endpoint string
	network  uint64
	accounts []common.Address
	statuses map[common.Hash]adapter.TxStatus
	sent     []adapter.TxRequest
	subs     map[uint64]*fakeSub
	nextID   uint64
	closed   bool

	// SendFunc overrides SendTransaction when set.
	SendFunc func(ctx context.Context, req adapter.TxRequest) (common.Hash, error)

	// CallFunc overrides Call when set.
	CallFunc func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

type fakeSub struct {
	owner   *Fake
	id      uint64
	kind    adapter.EventKind
	handler adapter.Handler
}

func (s *fakeSub) Unsubscribe() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	delete(s.owner.subs, s.id)
}

// New returns a fake adapter on network with the given accounts.
func New(kind adapter.Kind, network uint64, accounts ...common.Address) *Fake {
	return &Fake{
		kind:     kind,
		endpoint: "fake://" + string(kind),
		network:  network,
		accounts: accounts,
		statuses: make(map[common.Hash]adapter.TxStatus),
		subs:     make(map[uint64]*fakeSub),
	}
}

// Kind implements adapter.Adapter.
func (f *Fake) Kind() adapter.Kind { return f.kind }

// Endpoint implements adapter.Adapter.
func (f *Fake) Endpoint() string { return f.endpoint }

// ListAccounts implements adapter.Adapter.
func (f *Fake) ListAccounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, cerr.ErrAdapterClosed
	}
	return slices.Clone(f.accounts), nil
}

// NetworkID implements adapter.Adapter.
func (f *Fake) NetworkID(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, cerr.ErrAdapterClosed
	}
	return f.network, nil
}

// Subscribe implements adapter.Adapter.
func (f *Fake) Subscribe(kind adapter.EventKind, h adapter.Handler) adapter.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s := &fakeSub{owner: f, id: f.nextID, kind: kind, handler: h}
	f.subs[s.id] = s
	return s
}

// Call implements adapter.Adapter.
func (f *Fake) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if f.CallFunc != nil {
		return f.CallFunc(ctx, msg)
	}
	return nil, nil
}

// SendTransaction implements adapter.Adapter. Without SendFunc it returns a
// hash derived from the number of transactions sent so far.
func (f *Fake) SendTransaction(ctx context.Context, req adapter.TxRequest) (common.Hash, error) {
	f.mu.Lock()
	f.sent = append(f.sent, req)
	n := len(f.sent)
	f.mu.Unlock()

	if f.SendFunc != nil {
		return f.SendFunc(ctx, req)
	}
	return common.BigToHash(big.NewInt(int64(n))), nil
}

// TransactionStatus implements adapter.Adapter. Unknown hashes are pending.
func (f *Fake) TransactionStatus(_ context.Context, hash common.Hash) (adapter.TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[hash], nil
}

// Close implements adapter.Adapter.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// SetNetwork changes the reported network without emitting an event.
func (f *Fake) SetNetwork(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.network = id
}

// SetAccounts changes the reported accounts without emitting an event.
func (f *Fake) SetAccounts(accounts ...common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = accounts
}

// SetStatus sets the status reported for hash.
func (f *Fake) SetStatus(hash common.Hash, status adapter.TxStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[hash] = status
}

// Emit delivers ev to every handler subscribed to its kind.
func (f *Fake) Emit(ev adapter.Event) {
	f.mu.Lock()
	var targets []adapter.Handler
	for _, s := range f.subs {
		if s.kind == ev.Kind {
			targets = append(targets, s.handler)
		}
	}
	f.mu.Unlock()

	for _, h := range targets {
		h(ev)
	}
}

// Listeners returns the number of live subscriptions.
func (f *Fake) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Sent returns the requests passed to SendTransaction.
func (f *Fake) Sent() []adapter.TxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent)
}

// Connector returns a connector that yields f, or err when non-nil.
func Connector(f *Fake, err error) adapter.Connector {
	return adapter.ConnectorFunc(func(context.Context) (adapter.Adapter, error) {
		if err != nil {
			return nil, err
		}
		return f, nil
	})
}
