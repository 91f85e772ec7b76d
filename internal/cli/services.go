package cli

import (
	"context"
	"os"

	"github.com/mrz1836/conduit/internal/adapter"
	"github.com/mrz1836/conduit/internal/chain"
	"github.com/mrz1836/conduit/internal/config"
	"github.com/mrz1836/conduit/internal/contract"
	"github.com/mrz1836/conduit/internal/dispatch"
	"github.com/mrz1836/conduit/internal/pending"
	"github.com/mrz1836/conduit/internal/supervisor"
)

// SignerMode controls how the bridge signer is unlocked.
type SignerMode int

// Signer modes.
const (
	// SignerIfUnlocked loads the signer only when no prompt is needed.
	SignerIfUnlocked SignerMode = iota
	// SignerPrompt may prompt for the keystore passphrase.
	SignerPrompt
)

// Services is the connection stack a command works with.
type Services struct {
	Supervisor *supervisor.Supervisor
	Dispatcher *dispatch.Dispatcher
	Registry   *contract.Registry
	Book       *contract.AddressBook
	Tracker    *pending.Tracker
}

// Close stops the supervisor and closes its adapters.
func (s *Services) Close() error {
	if s == nil || s.Supervisor == nil {
		return nil
	}
	return s.Supervisor.Close()
}

// ServicesFactory builds Services. The supervisor is created but not
// initialized.
type ServicesFactory func(ctx context.Context, cc *CommandContext, mode SignerMode) (*Services, error)

// newServices wires the adapters, supervisor and dispatcher from config.
func newServices(_ context.Context, cc *CommandContext, mode SignerMode) (*Services, error) {
	c := cc.Config

	registry, book, err := loadContracts(cc)
	if err != nil {
		return nil, err
	}

	signer, err := loadSigner(c, mode)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		cc.Logger.Debug("no bridge signer configured, bridge is read-only")
	}

	limiter := chain.NewRateLimiter(c.RPC.RateLimit, c.RPC.Burst)
	retry := chain.DefaultRetryConfig()
	retry.MaxAttempts = c.RPC.RetryAttempts
	retry.BaseDelay = c.RPC.RetryBaseDelay
	retry.OnRetry = func(attempt int, err error) {
		cc.Logger.Debug("attempt %d failed, retrying: %v", attempt, err)
	}

	env := &adapter.WalletEnvironment{
		ConfiguredURL: c.Injected.URL,
		Options: adapter.InjectedOptions{
			PollInterval: c.Injected.PollInterval,
			MaxFailures:  c.Injected.MaxFailures,
			DialTimeout:  c.Injected.DialTimeout,
			Retry:        retry,
			Limiter:      limiter,
			Logger:       cc.Logger,
		},
	}

	bridgeURL := config.SanitizeURL(c.Bridge.URL)
	bridgeOpts := adapter.BridgeOptions{
		PollInterval: c.Bridge.PollInterval,
		MaxFailures:  c.Bridge.MaxFailures,
		Retry:        retry,
		Limiter:      limiter,
		Logger:       cc.Logger,
	}
	fallback := adapter.ConnectorFunc(func(ctx context.Context) (adapter.Adapter, error) {
		if err := config.ValidateRPCURL(bridgeURL); err != nil {
			return nil, err
		}
		a, err := adapter.DialBridge(ctx, bridgeURL, signer, bridgeOpts)
		if err != nil {
			return nil, err
		}
		return a, nil
	})

	tracker := pending.NewTracker()
	checker := pending.NewChecker(tracker, cc.Logger)

	sup := supervisor.New(c.Network.TargetChainID, env, fallback,
		supervisor.WithLogger(cc.Logger),
		supervisor.WithPending(tracker, checker),
	)

	return &Services{
		Supervisor: sup,
		Dispatcher: dispatch.New(sup, registry, tracker, cc.Logger),
		Registry:   registry,
		Book:       book,
		Tracker:    tracker,
	}, nil
}

// loadContracts builds the ABI registry and the address book.
func loadContracts(cc *CommandContext) (*contract.Registry, *contract.AddressBook, error) {
	registry, err := contract.NewRegistry()
	if err != nil {
		return nil, nil, err
	}

	if dir := config.ExpandPath(cc.Config.Contracts.ABIDir); dir != "" {
		n, err := registry.LoadDir(dir)
		if err != nil {
			return nil, nil, err
		}
		if n > 0 {
			cc.Logger.Debug("loaded %d contract ABI(s) from %s", n, dir)
		}
	}

	book, err := contract.NewAddressBook(cc.Config.Contracts.Deployments)
	if err != nil {
		return nil, nil, err
	}
	return registry, book, nil
}

// loadSigner resolves the bridge signer: a hex key from the configured
// environment variable, else the keystore file. No key material yields nil.
func loadSigner(c *config.Config, mode SignerMode) (*adapter.Signer, error) {
	if name := c.Bridge.PrivateKeyEnv; name != "" {
		if key := os.Getenv(name); key != "" {
			return adapter.HexKeySigner(key)
		}
	}

	path := config.ExpandPath(c.Bridge.KeystoreFile)
	if path == "" {
		return nil, nil //nolint:nilnil // No signer configured is not an error
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil //nolint:nilnil // Missing keystore means a read-only bridge
	}

	passphrase := c.Bridge.KeystorePassphrase
	if passphrase == "" {
		if mode != SignerPrompt {
			return nil, nil //nolint:nilnil // Locked keystore stays locked without a prompt
		}
		var err error
		if passphrase, err = promptKeystorePassphrase(path); err != nil {
			return nil, err
		}
	}
	return adapter.LoadKeystoreSigner(path, passphrase)
}
