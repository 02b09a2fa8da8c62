// Package logger provides a structured zerolog logger for xpref.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// ParseLevel maps a config level name to a zerolog level.
// Supported levels: trace, debug, info, warn, error. Defaults to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init creates a zerolog.Logger writing to stderr. A human-readable console
// writer is used when stderr is a terminal, JSON lines otherwise.
func Init(level string) zerolog.Logger {
	return New(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level)
}

// New builds a logger on out. console selects the colored console format.
func New(out io.Writer, console bool, level string) zerolog.Logger {
	w := out
	if console {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}
