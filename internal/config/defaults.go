package config

import "time"

// DefaultBridgeURL is the default fallback endpoint, the Aurora relay on NEAR mainnet.
const DefaultBridgeURL = "https://mainnet.aurora.dev"

// DefaultBridgeKeyEnv is the environment variable holding a hex bridge key
// when no keystore file is configured.
const DefaultBridgeKeyEnv = "CONDUIT_BRIDGE_KEY" // #nosec G101 -- env var name, not a credential

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.conduit",
		Network: NetworkConfig{
			TargetChainID: 1,
		},
		Injected: InjectedConfig{
			URL:          "",
			PollInterval: 4 * time.Second,
			DialTimeout:  10 * time.Second,
			MaxFailures:  3,
		},
		Bridge: BridgeConfig{
			URL:           DefaultBridgeURL,
			KeystoreFile:  "~/.conduit/bridge.json",
			PrivateKeyEnv: DefaultBridgeKeyEnv,
			PollInterval:  4 * time.Second,
			MaxFailures:   3,
		},
		RPC: RPCConfig{
			RateLimit:      10,
			Burst:          20,
			RetryAttempts:  3,
			RetryBaseDelay: 500 * time.Millisecond,
		},
		Contracts: ContractsConfig{
			ABIDir:      "~/.conduit/abi",
			Deployments: map[string]map[string]DeploymentConfig{},
		},
		Pending: PendingConfig{
			PollInterval: 5 * time.Second,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level:  "error",
			File:   "~/.conduit/conduit.log",
			Format: LogFormatText,
		},
	}
}
