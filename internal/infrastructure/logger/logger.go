package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults mirror internal/config (LOG_LEVEL=info, LOG_FORMAT=console).
const (
	defaultLevel  = zerolog.InfoLevel
	formatJSON    = "json"
	formatConsole = "console"
)

var (
	mu     sync.Mutex
	global *zerolog.Logger
)

// GetLogger returns the shared logger. Before Setup runs it logs at
// the default level to a console writer, so failures during startup
// are visible without any configuration.
func GetLogger() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		l := build(defaultLevel, formatConsole)
		global = &l
	}
	return global
}

// Setup replaces the shared logger using the configured level and
// format and returns it. Unknown values fall back to the defaults; a
// bad environment or profile never prevents the client from starting.
func Setup(level, format string) *zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = defaultLevel
	}
	zerolog.SetGlobalLevel(lvl)

	l := build(lvl, strings.ToLower(format))
	mu.Lock()
	global = &l
	mu.Unlock()
	return &l
}

// build writes console output to stderr so the CLI's conversation
// transcript on stdout stays clean.
func build(lvl zerolog.Level, format string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if format != formatJSON {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(lvl)
}
