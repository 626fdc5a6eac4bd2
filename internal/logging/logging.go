// Package logging builds the structured logger shared by all components.
package logging

import (
	"io"
	"os"

	"github.com/phuslu/log"
)

// New returns a logger writing human readable lines to w at the given level
// (trace, debug, info, warn, error).
func New(level string, w io.Writer) *log.Logger {
	return &log.Logger{
		Level:  log.ParseLevel(level),
		Writer: &log.ConsoleWriter{Writer: w},
	}
}

// ForMode returns the process logger. Output always goes to stderr: in stdio
// mode stdout carries the protocol. Stdio mode lowers the default info level
// to warn so an idle host sees no chatter.
func ForMode(level string, stdio bool) *log.Logger {
	if stdio && level == "info" {
		level = "warn"
	}
	logger := New(level, os.Stderr)
	if !stdio {
		logger.Caller = 1
	}
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return &log.Logger{
		Level:  log.ErrorLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}
