package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLogLevel converts a string level into zerolog.Level with a safe default.
func ParseLogLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// InitConsoleLogger points the global logger at a console writer on w.
func InitConsoleLogger(w io.Writer, level string) {
	zerolog.SetGlobalLevel(ParseLogLevel(level))
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

// InitFileLogger sends JSON logs to a rotating file. The TUI owns stdout and
// stderr while it runs, so interactive sessions log here.
func InitFileLogger(path string, level string) (io.Closer, error) {
	if path == "" {
		InitConsoleLogger(io.Discard, level)
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	zerolog.SetGlobalLevel(ParseLogLevel(level))
	log.Logger = zerolog.New(lj).With().Timestamp().Str("app", AppName).Logger()
	return lj, nil
}
