package supervisor

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/conduit/internal/adapter"
)

// State is the supervisor's connection state.
type State int

// Connection states.
const (
	Uninitialized State = iota
	Loading
	InjectedActive
	FallbackActive
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case InjectedActive:
		return "injected_active"
	case FallbackActive:
		return "fallback_active"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a snapshot of the connection. Snapshots are values; the
// supervisor replaces its status and never mutates a published one.
type Status struct {
	State State `json:"state"`

	// TargetNetworkID is the configured network.
	TargetNetworkID uint64 `json:"target_network_id"`

	// ActiveNetworkID is the network of the active adapter, nil until resolved.
	ActiveNetworkID *uint64 `json:"active_network_id,omitempty"`

	// Account is the primary account of the active adapter. It is nil
	// whenever Active is false.
	Account *common.Address `json:"account,omitempty"`

	// Active is true when exactly one adapter has been accepted as current.
	Active bool `json:"active"`

	InjectedLoaded    bool    `json:"injected_loaded"`
	InjectedActive    bool    `json:"injected_active"`
	InjectedNetworkID *uint64 `json:"injected_network_id,omitempty"`
	BackupLoaded      bool    `json:"backup_loaded"`

	// Adapter is the active adapter, nil when none is active.
	Adapter adapter.Adapter `json:"-"`

	// LastError explains the most recent degradation or failure.
	LastError error `json:"-"`
}

// FallbackActive reports whether the bridged fallback is the active adapter.
func (s Status) FallbackActive() bool {
	return s.State == FallbackActive
}

// WrongNetwork reports whether an injected wallet is loaded on a network
// other than the target.
func (s Status) WrongNetwork() bool {
	return s.InjectedLoaded && s.InjectedNetworkID != nil && *s.InjectedNetworkID != s.TargetNetworkID
}

// NoWallet reports whether no injected wallet is loaded.
func (s Status) NoWallet() bool {
	return !s.InjectedLoaded
}

// AdapterKind returns the kind of the active adapter, or "" when none.
func (s Status) AdapterKind() adapter.Kind {
	if s.Adapter == nil {
		return ""
	}
	return s.Adapter.Kind()
}

// clone returns a copy that shares no pointers with s.
func (s Status) clone() Status {
	out := s
	out.ActiveNetworkID = copyID(s.ActiveNetworkID)
	out.InjectedNetworkID = copyID(s.InjectedNetworkID)
	if s.Account != nil {
		acct := *s.Account
		out.Account = &acct
	}
	return out
}

func copyID(id *uint64) *uint64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameAccount(a, b *common.Address) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
