package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"

	"github.com/mrz1836/conduit/internal/chain"
)

// Environment variable names.
const (
	EnvHome               = "CONDUIT_HOME"
	EnvWalletRPC          = "CONDUIT_WALLET_RPC"
	EnvBridgeRPC          = "CONDUIT_BRIDGE_RPC"
	EnvTargetChainID      = "CONDUIT_TARGET_CHAIN_ID"
	EnvOutputFormat       = "CONDUIT_OUTPUT_FORMAT"
	EnvVerbose            = "CONDUIT_VERBOSE"
	EnvLogLevel           = "CONDUIT_LOG_LEVEL"
	EnvLogFormat          = "CONDUIT_LOG_FORMAT"
	EnvKeystorePassphrase = "CONDUIT_KEYSTORE_PASSPHRASE" // #nosec G101 -- false positive, this is a const name not a credential
)

var (
	// ErrInsecureRPCURL indicates a plain-http endpoint on a non-loopback host.
	ErrInsecureRPCURL = errors.New("insecure RPC URL: use https or wss for remote endpoints")

	// ErrInvalidRPCScheme indicates an endpoint scheme that is not http(s) or ws(s).
	ErrInvalidRPCScheme = errors.New("invalid RPC URL scheme")
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvWalletRPC); v != "" {
		cfg.Injected.URL = SanitizeURL(v)
		cfg.warnRPCURL(EnvWalletRPC, cfg.Injected.URL)
	}

	if v := os.Getenv(EnvBridgeRPC); v != "" {
		cfg.Bridge.URL = SanitizeURL(v)
		cfg.warnRPCURL(EnvBridgeRPC, cfg.Bridge.URL)
	}

	// Accepts a network name ("kovan") or a numeric id
	if v := os.Getenv(EnvTargetChainID); v != "" {
		if id, ok := chain.ParseNetwork(v); ok {
			cfg.Network.TargetChainID = id
		}
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}

	if v, ok := os.LookupEnv(EnvKeystorePassphrase); ok {
		cfg.Bridge.KeystorePassphrase = v
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// This is useful for cleaning user-provided RPC URLs that may contain copy-paste artifacts.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}

// ValidateRPCURL checks that an endpoint URL uses a supported scheme and that
// plain http is only used for loopback hosts. An empty URL is valid.
func ValidateRPCURL(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing RPC URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		return nil
	case "http", "ws":
		if isLoopback(u.Hostname()) {
			return nil
		}
		return ErrInsecureRPCURL
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRPCScheme, u.Scheme)
	}
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// warnRPCURL records a warning for an endpoint that fails validation.
func (c *Config) warnRPCURL(source, raw string) {
	if err := ValidateRPCURL(raw); err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s: %v", source, err))
	}
}
