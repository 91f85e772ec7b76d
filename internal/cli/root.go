// Package cli implements the conduit command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/conduit/internal/config"
	"github.com/mrz1836/conduit/internal/output"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
	notifier  *output.Notifier
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Blockchain connection manager with wallet failover",
	Long: `Conduit connects to an EVM network through the best available provider.

An injected wallet (advertised with CONDUIT_WALLET_RPC or injected.url) is
used when it is on the target network. Otherwise conduit falls back to a
bridged endpoint signed with a local key. Lifecycle events from either side
trigger re-selection, and contract transactions are always sent through the
provider that is active at the time.`,
	Example: `  conduit status
  conduit watch
  conduit send --deployment weth --method approve --arg 0x... --arg 1000
  conduit call --contract TestToken --address 0x... --method balanceOf --arg 0x...`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		format := output.FormatText
		if formatter != nil {
			format = formatter.Format()
		}
		_ = output.FormatError(os.Stderr, err, format)
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return cerr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals() error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(home))
	switch {
	case cerr.Is(err, cerr.ErrConfigNotFound):
		cfg = config.Defaults()
	case err != nil:
		return err
	}
	cfg.Home = home

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}

	if err = cfg.Validate(); err != nil {
		return err
	}

	logger, err = config.OpenLogger(cfg.Logging)
	if err != nil {
		logger = config.NullLogger()
	}

	formatter = output.NewFormatter(output.ParseFormat(cfg.Output.DefaultFormat), os.Stdout)
	notifier = output.NewNotifier(os.Stderr, formatter.IsJSON() && !cfg.Output.Verbose)

	for _, w := range cfg.Warnings {
		notifier.Warnf("%s", w)
		logger.Error("config: %s", w)
	}

	return nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "connection", Title: "Connection:"},
		&cobra.Group{ID: "contracts", Title: "Contracts:"},
		&cobra.Group{ID: "config", Title: "Configuration:"},
	)
	rootCmd.SetHelpCommandGroupID("config")

	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "conduit data directory (default: ~/.conduit)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}
