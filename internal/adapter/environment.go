package adapter

import (
	"context"
	"os"

	"github.com/mrz1836/conduit/internal/config"
)

// Environment reports whether an injected wallet is available.
type Environment interface {
	// Injected returns a connector for the injected wallet, or false when
	// none is advertised. Absence is normal.
	Injected() (Connector, bool)
}

// WalletEnvironment advertises an injected wallet when CONDUIT_WALLET_RPC is
// set when Injected is called, falling back to the configured URL.
type WalletEnvironment struct {
	// ConfiguredURL is the injected.url config value.
	ConfiguredURL string
	Options       InjectedOptions

	// Lookup reads environment variables. Nil means os.LookupEnv.
	Lookup func(key string) (string, bool)
}

// Injected implements Environment.
func (p *WalletEnvironment) Injected() (Connector, bool) {
	url := p.walletURL()
	if url == "" {
		return nil, false
	}

	opts := p.Options
	return ConnectorFunc(func(ctx context.Context) (Adapter, error) {
		return DialInjected(ctx, url, opts)
	}), true
}

func (p *WalletEnvironment) walletURL() string {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(config.EnvWalletRPC); ok && v != "" {
		return config.SanitizeURL(v)
	}
	return config.SanitizeURL(p.ConfiguredURL)
}

// StaticEnvironment always reports the same connector. A nil Connector
// means no injected wallet.
type StaticEnvironment struct {
	Connector Connector
}

// Injected implements Environment.
func (s StaticEnvironment) Injected() (Connector, bool) {
	return s.Connector, s.Connector != nil
}
