package output

import (
	"fmt"
	"io"
)

// Notifier writes progress notes, normally to stderr, so they never mix
// with the result on stdout. A quiet notifier only writes warnings.
type Notifier struct {
	w     io.Writer
	quiet bool
}

// NewNotifier returns a notifier writing to w.
func NewNotifier(w io.Writer, quiet bool) *Notifier {
	return &Notifier{w: w, quiet: quiet}
}

// Infof writes an informational note.
func (n *Notifier) Infof(format string, args ...any) {
	if n == nil || n.quiet {
		return
	}
	_, _ = fmt.Fprintf(n.w, "ℹ️  "+format+"\n", args...)
}

// Warnf writes a warning.
func (n *Notifier) Warnf(format string, args ...any) {
	if n == nil {
		return
	}
	_, _ = fmt.Fprintf(n.w, "⚠️  "+format+"\n", args...)
}

// Successf writes a success note.
func (n *Notifier) Successf(format string, args ...any) {
	if n == nil || n.quiet {
		return
	}
	_, _ = fmt.Fprintf(n.w, "✅ "+format+"\n", args...)
}
