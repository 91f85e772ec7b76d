// Package config provides configuration management for conduit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Home      string          `yaml:"home"`
	Network   NetworkConfig   `yaml:"network"`
	Injected  InjectedConfig  `yaml:"injected"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	RPC       RPCConfig       `yaml:"rpc"`
	Contracts ContractsConfig `yaml:"contracts"`
	Pending   PendingConfig   `yaml:"pending"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Warnings collects non-fatal problems found while applying overrides.
	Warnings []string `yaml:"-"`
}

// NetworkConfig selects the network the application expects to operate on.
type NetworkConfig struct {
	TargetChainID uint64 `yaml:"target_chain_id"`
}

// InjectedConfig defines the injected wallet endpoint.
// An empty URL means no wallet is advertised.
type InjectedConfig struct {
	URL          string        `yaml:"url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	MaxFailures  int           `yaml:"max_failures"`
}

// BridgeConfig defines the fallback endpoint reached through a protocol bridge.
type BridgeConfig struct {
	URL           string        `yaml:"url"`
	KeystoreFile  string        `yaml:"keystore_file"`
	PrivateKeyEnv string        `yaml:"private_key_env"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxFailures   int           `yaml:"max_failures"`

	// KeystorePassphrase is only ever read from the environment.
	KeystorePassphrase string `yaml:"-"`
}

// RPCConfig defines transport settings shared by both adapters.
type RPCConfig struct {
	RateLimit      float64       `yaml:"rate_limit"`
	Burst          int           `yaml:"burst"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// DeploymentConfig is a named contract deployment.
type DeploymentConfig struct {
	Kind    string `yaml:"kind"`
	Address string `yaml:"address"`
}

// ContractsConfig defines ABI sources and the address book.
type ContractsConfig struct {
	ABIDir string `yaml:"abi_dir"`
	// Deployments maps network name to deployment name to deployment.
	Deployments map[string]map[string]DeploymentConfig `yaml:"deployments"`
}

// PendingConfig defines pending transaction polling.
type PendingConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	// Format selects how structured records are encoded: "text" or "json".
	Format string `yaml:"format"`
}

// Load reads configuration from the specified file.
// Missing keys keep their default values.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cerr.WithDetails(cerr.ErrConfigNotFound, map[string]string{"path": path})
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, cerr.WithCause(cerr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return writeAtomic(path, data, 0o600)
}

// writeAtomic replaces path with data through a synced temp file in the
// same directory, so a crash never leaves a half-written config.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err = tmp.Write(data); err == nil {
		if err = tmp.Chmod(perm); err == nil {
			err = tmp.Sync()
		}
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // G703: path comes from config.Path
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Network.TargetChainID == 0:
		return invalid("network.target_chain_id", "must be non-zero")
	case c.Injected.PollInterval <= 0:
		return invalid("injected.poll_interval", "must be positive")
	case c.Bridge.PollInterval <= 0:
		return invalid("bridge.poll_interval", "must be positive")
	case c.Pending.PollInterval <= 0:
		return invalid("pending.poll_interval", "must be positive")
	case c.RPC.Burst < 0:
		return invalid("rpc.burst", "must not be negative")
	case c.RPC.RetryAttempts < 1:
		return invalid("rpc.retry_attempts", "must be at least 1")
	case c.Logging.Format != "" && c.Logging.Format != LogFormatText && c.Logging.Format != LogFormatJSON:
		return invalid("logging.format", "must be text or json")
	}

	for network, deployments := range c.Contracts.Deployments {
		for name, d := range deployments {
			if d.Kind == "" || d.Address == "" {
				return invalid(fmt.Sprintf("contracts.deployments.%s.%s", network, name), "kind and address are required")
			}
		}
	}

	return nil
}

func invalid(key, reason string) error {
	return cerr.WithDetails(cerr.ErrConfigInvalid, map[string]string{"key": key, "reason": reason})
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GetHome returns the conduit home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetTargetChainID returns the network id the application expects.
func (c *Config) GetTargetChainID() uint64 {
	return c.Network.TargetChainID
}

// GetWalletURL returns the advertised injected wallet endpoint, if any.
func (c *Config) GetWalletURL() string {
	return c.Injected.URL
}

// GetBridgeURL returns the fallback bridge endpoint.
func (c *Config) GetBridgeURL() string {
	return c.Bridge.URL
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// Deployment looks up a named deployment on the given network.
func (c *Config) Deployment(network, name string) (DeploymentConfig, bool) {
	d, ok := c.Contracts.Deployments[strings.ToLower(network)][name]
	return d, ok
}

// DefaultHome returns the default conduit home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conduit"
	}
	return filepath.Join(home, ".conduit")
}

// ExpandPath expands a leading "~/" to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
