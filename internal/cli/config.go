package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/mrz1836/conduit/internal/chain"
	"github.com/mrz1836/conduit/internal/config"
	"github.com/mrz1836/conduit/internal/output"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify conduit configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.conduit/config.yaml.

An existing file is only replaced when --force is given.`,
	Example: `  conduit config init
  conduit config init --force`,
	RunE: runConfigInit,
}

// configShowCmd shows the effective configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display every configuration key with its effective value, after
environment overrides are applied.`,
	Example: `  conduit config show
  conduit config show -o json`,
	RunE: runConfigShow,
}

// configGetCmd gets a single configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  `Print one configuration value. Keys use dot notation, as listed by "config show".`,
	Example: `  conduit config get network.target_chain_id
  conduit config get bridge.url`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value in the config file.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set one configuration value and save the config file.

The value is validated before the file is written. Environment overrides are
not written back.`,
	Example: `  conduit config set network.target_chain_id kovan
  conduit config set injected.url http://127.0.0.1:8545
  conduit config set bridge.poll_interval 10s`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.GroupID = "config"
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	enrichParentLong(configCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

// configKey reads and writes one dotted configuration key.
type configKey struct {
	get func(c *config.Config) string
	set func(c *config.Config, value string) error
}

// configKeys lists every key exposed by config get/set/show.
//
//nolint:gochecknoglobals // Static key table
var configKeys = map[string]configKey{
	"home": {
		get: func(c *config.Config) string { return c.Home },
		set: func(c *config.Config, v string) error { c.Home = v; return nil },
	},
	"network.target_chain_id": {
		get: func(c *config.Config) string { return strconv.FormatUint(c.Network.TargetChainID, 10) },
		set: func(c *config.Config, v string) error {
			id, ok := chain.ParseNetwork(v)
			if !ok {
				return invalidValue("network.target_chain_id", v, "a positive id or one of "+strings.Join(networkNames(), ", "))
			}
			c.Network.TargetChainID = id
			return nil
		},
	},
	"injected.url": {
		get: func(c *config.Config) string { return c.Injected.URL },
		set: func(c *config.Config, v string) error { return setRPCURL(&c.Injected.URL, "injected.url", v, true) },
	},
	"injected.poll_interval": durationKey(func(c *config.Config) *time.Duration { return &c.Injected.PollInterval }),
	"injected.dial_timeout":  durationKey(func(c *config.Config) *time.Duration { return &c.Injected.DialTimeout }),
	"injected.max_failures":  intKey(func(c *config.Config) *int { return &c.Injected.MaxFailures }),
	"bridge.url": {
		get: func(c *config.Config) string { return c.Bridge.URL },
		set: func(c *config.Config, v string) error { return setRPCURL(&c.Bridge.URL, "bridge.url", v, false) },
	},
	"bridge.keystore_file":   stringKey(func(c *config.Config) *string { return &c.Bridge.KeystoreFile }),
	"bridge.private_key_env": stringKey(func(c *config.Config) *string { return &c.Bridge.PrivateKeyEnv }),
	"bridge.poll_interval":   durationKey(func(c *config.Config) *time.Duration { return &c.Bridge.PollInterval }),
	"bridge.max_failures":    intKey(func(c *config.Config) *int { return &c.Bridge.MaxFailures }),
	"rpc.rate_limit": {
		get: func(c *config.Config) string { return strconv.FormatFloat(c.RPC.RateLimit, 'f', -1, 64) },
		set: func(c *config.Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return invalidValue("rpc.rate_limit", v, "a non-negative number of requests per second")
			}
			c.RPC.RateLimit = f
			return nil
		},
	},
	"rpc.burst":             intKey(func(c *config.Config) *int { return &c.RPC.Burst }),
	"rpc.retry_attempts":    intKey(func(c *config.Config) *int { return &c.RPC.RetryAttempts }),
	"rpc.retry_base_delay":  durationKey(func(c *config.Config) *time.Duration { return &c.RPC.RetryBaseDelay }),
	"contracts.abi_dir":     stringKey(func(c *config.Config) *string { return &c.Contracts.ABIDir }),
	"pending.poll_interval": durationKey(func(c *config.Config) *time.Duration { return &c.Pending.PollInterval }),
	"output.default_format": {
		get: func(c *config.Config) string { return c.Output.DefaultFormat },
		set: func(c *config.Config, v string) error {
			if !slices.Contains([]string{"text", "json", "auto"}, v) {
				return invalidValue("output.default_format", v, "text, json, or auto")
			}
			c.Output.DefaultFormat = v
			return nil
		},
	},
	"output.verbose": {
		get: func(c *config.Config) string { return strconv.FormatBool(c.Output.Verbose) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return invalidValue("output.verbose", v, "true or false")
			}
			c.Output.Verbose = b
			return nil
		},
	},
	"logging.level": {
		get: func(c *config.Config) string { return c.Logging.Level },
		set: func(c *config.Config, v string) error {
			if !slices.Contains([]string{"off", "error", "debug"}, v) {
				return invalidValue("logging.level", v, "off, error, or debug")
			}
			c.Logging.Level = v
			return nil
		},
	},
	"logging.file": stringKey(func(c *config.Config) *string { return &c.Logging.File }),
	"logging.format": {
		get: func(c *config.Config) string { return c.Logging.Format },
		set: func(c *config.Config, v string) error {
			v = strings.ToLower(v)
			if v != config.LogFormatText && v != config.LogFormatJSON {
				return invalidValue("logging.format", v, "text or json")
			}
			c.Logging.Format = v
			return nil
		},
	},
}

func stringKey(field func(*config.Config) *string) configKey {
	return configKey{
		get: func(c *config.Config) string { return *field(c) },
		set: func(c *config.Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(field func(*config.Config) *int) configKey {
	return configKey{
		get: func(c *config.Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return invalidValue("", v, "a non-negative integer")
			}
			*field(c) = n
			return nil
		},
	}
}

func durationKey(field func(*config.Config) *time.Duration) configKey {
	return configKey{
		get: func(c *config.Config) string { return field(c).String() },
		set: func(c *config.Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return invalidValue("", v, "a positive duration such as 4s")
			}
			*field(c) = d
			return nil
		},
	}
}

// setRPCURL validates an endpoint before storing it. An empty value clears
// the endpoint when allowEmpty is set.
func setRPCURL(dst *string, key, v string, allowEmpty bool) error {
	v = config.SanitizeURL(v)
	if v == "" {
		if !allowEmpty {
			return invalidValue(key, v, "an endpoint URL")
		}
		*dst = ""
		return nil
	}
	if err := config.ValidateRPCURL(v); err != nil {
		return cerr.WithDetails(cerr.WithCause(cerr.ErrInvalidInput, err), map[string]string{"key": key, "value": v})
	}
	*dst = v
	return nil
}

// networkNames lists the known network names in declaration order.
func networkNames() []string {
	networks := chain.Networks()
	names := make([]string, len(networks))
	for i, n := range networks {
		names[i] = n.Name
	}
	return names
}

func invalidValue(key, value, valid string) error {
	details := map[string]string{"value": value, "valid": valid}
	if key != "" {
		details["key"] = key
	}
	return cerr.WithDetails(cerr.ErrInvalidInput, details)
}

// lookupConfigKey returns the accessor for key, suggesting a close match
// when the key is unknown.
func lookupConfigKey(key string) (configKey, error) {
	if k, ok := configKeys[key]; ok {
		return k, nil
	}

	err := cerr.WithDetails(cerr.ErrNotFound, map[string]string{"key": key})
	best, bestDist := "", len(key)/2+1
	for _, name := range sortedConfigKeys() {
		if d := levenshtein.ComputeDistance(key, name); d < bestDist {
			best, bestDist = name, d
		}
	}
	if best != "" {
		return configKey{}, cerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", best))
	}
	return configKey{}, cerr.WithSuggestion(err, `run "conduit config show" to list keys`)
}

func sortedConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cc := commandContextFn(cmd)
	configPath := config.Path(cc.Config.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return cerr.WithSuggestion(
			cerr.WithDetails(cerr.ErrGeneral, map[string]string{"path": configPath}),
			"configuration already exists, use --force to overwrite",
		)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cc.Config.Home
	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cc.Out()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - network.target_chain_id: network the application expects")
	outln(w, "  - injected.url: wallet endpoint (or set "+config.EnvWalletRPC+")")
	outln(w, "  - bridge.url: fallback endpoint")
	outln(w, "  - bridge.keystore_file: key used to sign on the fallback")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := commandContextFn(cmd)

	if cc.Formatter.IsJSON() {
		values := make(map[string]string, len(configKeys))
		for name, k := range configKeys {
			values[name] = k.get(cc.Config)
		}
		return cc.Formatter.Print(values)
	}

	table := output.NewTable("Key", "Value")
	for _, name := range sortedConfigKeys() {
		v := configKeys[name].get(cc.Config)
		if v == "" {
			v = "(not set)"
		}
		table.AddRow(name, v)
	}
	return cc.Formatter.Print(table)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cc := commandContextFn(cmd)

	k, err := lookupConfigKey(args[0])
	if err != nil {
		return err
	}
	outln(cc.Out(), k.get(cc.Config))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cc := commandContextFn(cmd)
	key, value := args[0], strings.TrimSpace(args[1])

	k, err := lookupConfigKey(key)
	if err != nil {
		return err
	}

	configPath := config.Path(cc.Config.Home)
	fileCfg, err := config.Load(configPath)
	switch {
	case cerr.Is(err, cerr.ErrConfigNotFound):
		fileCfg = config.Defaults()
		fileCfg.Home = cc.Config.Home
	case err != nil:
		return err
	}

	if err := k.set(fileCfg, value); err != nil {
		return err
	}
	if err := fileCfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(fileCfg, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out(cc.Out(), "Set %s = %s\n", key, k.get(fileCfg))
	return nil
}
