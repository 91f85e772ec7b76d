// Package adapter defines the connection adapter abstraction and its two
// variants: an injected wallet endpoint and a bridged fallback endpoint.
//
// Every adapter runs a watcher that polls the endpoint and reports network,
// account and connection lifecycle changes to subscribed handlers.
package adapter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies an adapter variant.
type Kind string

// Adapter kinds.
const (
	KindInjected Kind = "injected"
	KindBridge   Kind = "bridge"
)

// TxStatus is the confirmation state of a submitted transaction.
type TxStatus int

// Transaction states.
const (
	TxPending TxStatus = iota
	TxSucceeded
	TxReverted
)

// String returns the lowercase state name.
func (s TxStatus) String() string {
	switch s {
	case TxSucceeded:
		return "succeeded"
	case TxReverted:
		return "reverted"
	default:
		return "pending"
	}
}

// TxRequest describes a write attributed to From.
// Zero GasLimit and nil GasPrice let the adapter choose.
type TxRequest struct {
	From     common.Address
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// Adapter is a live connection to an execution endpoint.
// Implementations are safe for concurrent use.
type Adapter interface {
	// Kind reports which variant this adapter is.
	Kind() Kind

	// Endpoint returns the URL the adapter is connected to.
	Endpoint() string

	// ListAccounts returns the accounts the adapter can act for. The first
	// entry is the primary account. An empty list is not an error.
	ListAccounts(ctx context.Context) ([]common.Address, error)

	// NetworkID returns the network id the endpoint reports.
	NetworkID(ctx context.Context) (uint64, error)

	// Subscribe registers h for events of the given kind.
	Subscribe(kind EventKind, h Handler) Subscription

	// Call performs an unsigned read.
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)

	// SendTransaction signs and submits a write, returning its hash.
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)

	// TransactionStatus reports whether a submitted transaction has been mined.
	TransactionStatus(ctx context.Context, hash common.Hash) (TxStatus, error)

	// Close stops the watcher and releases the connection. Close is idempotent.
	Close() error
}

// Connector constructs an adapter. Construction performs network I/O.
type Connector interface {
	Connect(ctx context.Context) (Adapter, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Adapter, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context) (Adapter, error) {
	return f(ctx)
}

// Logger is the interface for adapter logging.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}
