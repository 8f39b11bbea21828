package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the console logger the server uses everywhere. Level strings
// follow zerolog (debug, info, warn, error); an unrecognized value falls back
// to info so a bad config value never silences logging entirely.
func New(level string) *zerolog.Logger {
	return NewWithOutput(level, os.Stderr)
}

// NewWithOutput builds a logger writing to the given sink. Split out so tests
// can capture output.
func NewWithOutput(level string, out io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}

	logger := zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "pulsechat").
		Logger()
	return &logger
}
