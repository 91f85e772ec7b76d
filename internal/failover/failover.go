// Package failover decides which connection adapter should be authoritative.
package failover

import "fmt"

// Decision is the outcome of the failover policy.
type Decision int

// Possible decisions.
const (
	UseFallback Decision = iota
	UseInjected
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case UseInjected:
		return "use_injected"
	case UseFallback:
		return "use_fallback"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Inputs are the facts the policy decides on.
type Inputs struct {
	// InjectedLoaded is true when the injected adapter was constructed.
	InjectedLoaded bool

	// InjectedNetworkID is the injected adapter's network, nil when unknown.
	InjectedNetworkID *uint64

	// TargetNetworkID is the configured network.
	TargetNetworkID uint64
}

// Decide returns UseInjected iff the injected adapter loaded and reports the
// target network. It holds no state and must be called again whenever the
// injected adapter's network may have changed.
func Decide(in Inputs) Decision {
	if in.InjectedLoaded && in.InjectedNetworkID != nil && *in.InjectedNetworkID == in.TargetNetworkID {
		return UseInjected
	}
	return UseFallback
}

// Reason describes why Decide picked the fallback, or "" for UseInjected.
func Reason(in Inputs) string {
	switch {
	case !in.InjectedLoaded:
		return "no injected wallet"
	case in.InjectedNetworkID == nil:
		return "injected wallet network unknown"
	case *in.InjectedNetworkID != in.TargetNetworkID:
		return fmt.Sprintf("injected wallet on network %d, want %d", *in.InjectedNetworkID, in.TargetNetworkID)
	default:
		return ""
	}
}
