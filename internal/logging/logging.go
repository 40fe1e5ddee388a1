// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "HALDEX_LOG_LEVEL"
	EnvLogNoColor = "HALDEX_LOG_NOCOLOR"
)

// New returns a logger writing to stderr and installs it as the zerolog
// global logger. pretty selects the console writer over JSON lines.
// HALDEX_LOG_LEVEL and HALDEX_LOG_NOCOLOR override the arguments.
func New(app, level string, pretty bool) (zerolog.Logger, error) {
	logger, err := NewWriter(os.Stderr, app, level, pretty)
	if err != nil {
		return logger, err
	}
	log.Logger = logger
	return logger, nil
}

// NewWriter is New without touching the global logger.
func NewWriter(w io.Writer, app, level string, pretty bool) (zerolog.Logger, error) {
	if env, ok := os.LookupEnv(EnvLogLevel); ok && strings.TrimSpace(env) != "" {
		level = env
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := w
	if pretty {
		noColor, _ := parseBool(os.Getenv(EnvLogNoColor))
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("app", app).Logger(), nil
}

// ParseLevel accepts zerolog level names plus a few aliases.
func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "off", "none", "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("logging: unknown level %q", raw)
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
