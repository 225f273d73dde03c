// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// EnvLogNoColor disables colors in console output.
const EnvLogNoColor = "JUPYTERMARIMOPROXY_LOG_NOCOLOR"

var configureOnce sync.Once

// Configure sets the global logger once. level is one of trace, debug, info,
// warn, error; anything else falls back to info.
func Configure(level string) {
	configureOnce.Do(func() {
		zerolog.SetGlobalLevel(ParseLevel(level))
		log.Logger = New(os.Stderr)
	})
}

// New returns a logger writing to w. Terminals get console output, anything
// else gets JSON lines.
func New(w io.Writer) zerolog.Logger {
	out := w
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		out = zerolog.ConsoleWriter{
			Out:        f,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv(EnvLogNoColor) != "",
		}
	}
	return zerolog.New(out).With().Timestamp().Str("component", "marimo-proxy").Logger()
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
