// Package logging configures the process logger and keeps credentials out of
// anything that is logged or shown to the user.
package logging

import (
	"io"
	"os"

	"github.com/pterm/pterm"
)

// Options controls logger construction.
type Options struct {
	// Debug enables debug-level output (prompts, raw replies).
	Debug bool
	// JSON switches to the JSON formatter, useful when serving behind a collector.
	JSON bool
	// Writer defaults to stderr.
	Writer io.Writer
}

// New returns a pterm logger configured from opt.
func New(opt Options) *pterm.Logger {
	w := opt.Writer
	if w == nil {
		w = os.Stderr
	}
	level := pterm.LogLevelInfo
	if opt.Debug {
		level = pterm.LogLevelDebug
	}
	l := pterm.DefaultLogger.WithLevel(level).WithWriter(w)
	if opt.JSON {
		l = l.WithFormatter(pterm.LogFormatterJSON)
	}
	return l
}

// Discard returns a logger that writes nowhere. Tests use it.
func Discard() *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(io.Discard).WithLevel(pterm.LogLevelDisabled)
}
