package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/conduit/internal/adapter"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// Overrides are optional transaction parameters. The zero value lets the
// adapter choose everything.
type Overrides struct {
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// Handle is a contract bound to an adapter and, optionally, a signing account.
type Handle interface {
	Kind() string
	Address() common.Address

	// Transact submits method as a signed write and returns the tx hash.
	Transact(ctx context.Context, method string, args []any, o Overrides) (common.Hash, error)

	// Call performs an unsigned read and returns the decoded outputs.
	Call(ctx context.Context, method string, args ...any) ([]any, error)
}

// Factory builds contract handles. A nil signer yields a read-only handle.
type Factory interface {
	Contract(kind string, address common.Address, a adapter.Adapter, signer *common.Address) (Handle, error)
}

// Contract implements Factory.
func (r *Registry) Contract(kind string, address common.Address, a adapter.Adapter, signer *common.Address) (Handle, error) {
	parsed, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, cerr.ErrNoNetwork
	}

	h := &BoundContract{kind: kind, address: address, abi: parsed, adapter: a}
	if signer != nil {
		s := *signer
		h.signer = &s
	}
	return h, nil
}

// BoundContract is the Handle returned by Registry.
type BoundContract struct {
	kind    string
	address common.Address
	abi     *abi.ABI
	adapter adapter.Adapter
	signer  *common.Address
}

// Kind returns the contract kind.
func (c *BoundContract) Kind() string { return c.kind }

// Address returns the contract address.
func (c *BoundContract) Address() common.Address { return c.address }

// ABI returns the contract ABI.
func (c *BoundContract) ABI() *abi.ABI { return c.abi }

// Transact implements Handle.
func (c *BoundContract) Transact(ctx context.Context, method string, args []any, o Overrides) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, cerr.ErrNoSigner
	}

	m, err := lookupMethod(c.kind, c.abi, method)
	if err != nil {
		return common.Hash{}, err
	}
	if o.Value != nil && o.Value.Sign() > 0 && !m.IsPayable() {
		return common.Hash{}, cerr.WithDetails(cerr.ErrInvalidArgument, map[string]string{
			"method": method,
			"reason": "method is not payable",
		})
	}

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, cerr.WithCause(cerr.ErrInvalidArgument, err)
	}

	return c.adapter.SendTransaction(ctx, adapter.TxRequest{
		From:     *c.signer,
		To:       c.address,
		Data:     data,
		Value:    o.Value,
		GasLimit: o.GasLimit,
		GasPrice: o.GasPrice,
	})
}

// Call implements Handle.
func (c *BoundContract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	m, err := lookupMethod(c.kind, c.abi, method)
	if err != nil {
		return nil, err
	}

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, cerr.WithCause(cerr.ErrInvalidArgument, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: data}
	if c.signer != nil {
		msg.From = *c.signer
	}

	out, err := c.adapter.Call(ctx, msg)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 && len(m.Outputs) > 0 {
		return nil, cerr.WithDetails(cerr.ErrNotFound, map[string]string{
			"address": c.address.Hex(),
			"reason":  "empty result, no contract code at address",
		})
	}

	values, err := m.Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", method, err)
	}
	return values, nil
}
