package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/conduit/internal/config"
	"github.com/mrz1836/conduit/internal/output"
)

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config    *config.Config
	Logger    *config.Logger
	Formatter *output.Formatter
	Notifier  *output.Notifier

	// Services builds the connection stack. Tests replace it.
	Services ServicesFactory
}

// NewCommandContext creates a context from the global state.
func NewCommandContext(cfg *config.Config, logger *config.Logger, formatter *output.Formatter, notifier *output.Notifier) *CommandContext {
	return &CommandContext{
		Config:    cfg,
		Logger:    logger,
		Formatter: formatter,
		Notifier:  notifier,
		Services:  newServices,
	}
}

// WithServices sets the services factory.
func (c *CommandContext) WithServices(f ServicesFactory) *CommandContext {
	c.Services = f
	return c
}

// Out returns the formatter's writer.
func (c *CommandContext) Out() io.Writer {
	return c.Formatter.Writer()
}

// commandContextFn builds the context for a command. Tests replace it.
//
//nolint:gochecknoglobals // Test seam
var commandContextFn = func(*cobra.Command) *CommandContext {
	return NewCommandContext(cfg, logger, formatter, notifier)
}

// contextWithTimeout returns a context rooted in the command context.
// A non-positive d means no deadline.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, d)
}
