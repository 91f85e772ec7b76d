package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"1", "1", true},
		{"true", "true", true},
		{"TRUE", "TRUE", true},
		{"yes", "yes", true},
		{"YES", "YES", true},
		{"on", "on", true},
		{"ON", "ON", true},
		{"with spaces", "  true  ", true},
		{"0", "0", false},
		{"false", "false", false},
		{"FALSE", "FALSE", false},
		{"no", "no", false},
		{"off", "off", false},
		{"empty", "", false},
		{"random", "random", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := parseBool(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean URL",
			input:    "https://mainnet.infura.io/v3/abc123",
			expected: "https://mainnet.infura.io/v3/abc123",
		},
		{
			name:     "with leading/trailing spaces",
			input:    "  https://mainnet.infura.io/v3/abc123  ",
			expected: "https://mainnet.infura.io/v3/abc123",
		},
		{
			name:     "localhost",
			input:    "http://localhost:8545",
			expected: "http://localhost:8545",
		},
		{
			name:     "127.0.0.1",
			input:    "http://127.0.0.1:8545",
			expected: "http://127.0.0.1:8545",
		},
		{
			name:     "websocket",
			input:    "wss://mainnet.infura.io/ws",
			expected: "wss://mainnet.infura.io/ws",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := SanitizeURL(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

//nolint:gocognit // Test function with comprehensive test cases
func TestValidateRPCURL(t *testing.T) {
	t.Parallel()

	t.Run("valid URLs", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			url  string
		}{
			{"https", "https://mainnet.infura.io/v3/abc123"},
			{"wss", "wss://mainnet.infura.io/ws"},
			{"localhost http", "http://localhost:8545"},
			{"127.0.0.1 http", "http://127.0.0.1:8545"},
			{"IPv6 loopback", "http://[::1]:8545"},
			{"empty", ""},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				err := ValidateRPCURL(tc.url)
				assert.NoError(t, err)
			})
		}
	})

	t.Run("malicious schemes must be rejected", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			url  string
		}{
			{"javascript", "javascript:alert(1)"},
			{"data", "data:text/html,<script>alert(1)</script>"},
			{"file", "file:///etc/passwd"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				err := ValidateRPCURL(tc.url)
				// These malicious schemes must be rejected
				require.Error(t, err, "malicious URL %q should be rejected", tc.url)
			})
		}
	})

	t.Run("insecure URLs", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			url  string
		}{
			{"http remote", "http://example.com:8545"},
			{"http remote with path", "http://example.com:8545/rpc"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				err := ValidateRPCURL(tc.url)
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInsecureRPCURL)
			})
		}
	})

	t.Run("invalid URLs", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			url  string
		}{
			{"invalid chars", "https://example .com"},
			{"missing scheme", "example.com:8545"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				err := ValidateRPCURL(tc.url)
				if err != nil {
					t.Logf("Invalid URL %q rejected: %v", tc.url, err)
				}
			})
		}
	})
}

func TestApplyEnvironment(t *testing.T) {
	// Cannot run in parallel because we modify environment variables

	t.Run("CONDUIT_HOME", func(t *testing.T) {
		cfg := Defaults()

		t.Setenv(EnvHome, "/custom/home")
		ApplyEnvironment(cfg)

		assert.Equal(t, "/custom/home", cfg.Home)
	})

	t.Run("CONDUIT_WALLET_RPC loopback", func(t *testing.T) {
		cfg := Defaults()

		t.Setenv(EnvWalletRPC, "  http://127.0.0.1:1248  ")
		ApplyEnvironment(cfg)

		assert.Equal(t, "http://127.0.0.1:1248", cfg.Injected.URL)
		assert.Empty(t, cfg.Warnings)
	})

	t.Run("CONDUIT_BRIDGE_RPC insecure", func(t *testing.T) {
		cfg := Defaults()

		t.Setenv(EnvBridgeRPC, "http://relay.example.com")
		ApplyEnvironment(cfg)

		assert.Equal(t, "http://relay.example.com", cfg.Bridge.URL)
		require.Len(t, cfg.Warnings, 1)
		assert.Contains(t, cfg.Warnings[0], EnvBridgeRPC)
	})

	t.Run("CONDUIT_TARGET_CHAIN_ID", func(t *testing.T) {
		tests := []struct {
			value    string
			expected uint64
		}{
			{"42", 42},
			{"kovan", 42},
			{"0x1", 1},
			{"betanet", 1313161556},
			{"garbage", 1}, // keeps default
		}

		for _, tc := range tests {
			t.Run(tc.value, func(t *testing.T) {
				cfg := Defaults()

				t.Setenv(EnvTargetChainID, tc.value)
				ApplyEnvironment(cfg)

				assert.Equal(t, tc.expected, cfg.Network.TargetChainID)
			})
		}
	})

	t.Run("CONDUIT_LOG_LEVEL", func(t *testing.T) {
		cfg := Defaults()

		t.Setenv(EnvLogLevel, "DEBUG")
		ApplyEnvironment(cfg)

		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("CONDUIT_LOG_FORMAT", func(t *testing.T) {
		cfg := Defaults()

		t.Setenv(EnvLogFormat, "JSON")
		ApplyEnvironment(cfg)

		assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
	})

	t.Run("CONDUIT_KEYSTORE_PASSPHRASE", func(t *testing.T) {
		cfg := Defaults()

		t.Setenv(EnvKeystorePassphrase, "hunter2")
		ApplyEnvironment(cfg)

		assert.Equal(t, "hunter2", cfg.Bridge.KeystorePassphrase)
	})

	t.Run("no environment keeps defaults", func(t *testing.T) {
		cfg := Defaults()
		ApplyEnvironment(cfg)

		assert.Empty(t, cfg.Injected.URL)
		assert.Equal(t, DefaultBridgeURL, cfg.Bridge.URL)
		assert.Empty(t, cfg.Bridge.KeystorePassphrase)
	})

	t.Run("multiple overrides", func(t *testing.T) {
		cfg := Defaults()

		t.Setenv(EnvHome, "/custom/home")
		t.Setenv(EnvWalletRPC, "https://wallet.example.com")
		t.Setenv(EnvOutputFormat, "JSON")
		t.Setenv(EnvVerbose, "true")

		ApplyEnvironment(cfg)

		assert.Equal(t, "/custom/home", cfg.Home)
		assert.Equal(t, "https://wallet.example.com", cfg.Injected.URL)
		assert.Equal(t, "json", cfg.Output.DefaultFormat)
		assert.True(t, cfg.Output.Verbose)
	})
}
