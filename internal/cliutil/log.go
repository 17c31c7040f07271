// Package cliutil carries the CLI logger through context.Context, the
// way matzehuels-stacktower/internal/cli/log.go does, replacing the
// teacher's own bare fmt.Printf-based internal/cli.Logger, which has
// no level filtering and can't be threaded through the resolver loop's
// context-bearing calls.
package cliutil

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
)

type ctxKey int

const loggerKey ctxKey = 0

// NewLogger builds a logger writing to w at the given level.
func NewLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           level,
	})
}

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext retrieves the logger attached to ctx, falling back to
// log.Default() if none was attached.
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
