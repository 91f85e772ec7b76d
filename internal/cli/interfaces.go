package cli

import (
	"log/slog"

	"github.com/mrz1836/conduit/internal/config"
	"github.com/mrz1836/conduit/internal/output"
)

// Compile-time interface checks.
var (
	_ ConfigProvider = (*config.Config)(nil)
	_ LogWriter      = (*config.Logger)(nil)
	_ FormatProvider = (*output.Formatter)(nil)
)

// ConfigProvider provides read access to configuration values.
type ConfigProvider interface {
	GetHome() string
	GetTargetChainID() uint64
	GetWalletURL() string
	GetBridgeURL() string
	GetLoggingLevel() string
	GetLoggingFile() string
	GetOutputFormat() string
	IsVerbose() bool
}

// LogWriter provides logging capabilities. It satisfies the Logger
// interfaces of the adapter, supervisor, pending and dispatch packages.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
	DebugAttrs(msg string, attrs ...slog.Attr)
	ErrorAttrs(msg string, attrs ...slog.Attr)
	Close() error
}

// FormatProvider provides output format information.
type FormatProvider interface {
	Format() output.Format
}
