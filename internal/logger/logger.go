// Package logger provides a configured zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a new zerolog.Logger configured for the application.
// Logs go to stderr: stdout carries CLI output and the MCP stdio transport.
func New(serviceName string) zerolog.Logger {
	return NewWith(os.Stderr, serviceName, "info", false)
}

// NewWith builds a logger writing to w at the named level. An unknown level
// falls back to info. pretty selects the human-readable console writer.
func NewWith(w io.Writer, serviceName, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}
