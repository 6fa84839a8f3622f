package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration options
type Config struct {
	// Level is the minimum log level to output (debug, info, warn, error)
	Level string

	// Format is console or json
	Format string

	// Output defaults to stderr when nil
	Output io.Writer
}

// New creates a zerolog logger from configuration
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if strings.ToLower(cfg.Format) != "json" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// Nop returns a disabled logger for callers that do not care about output
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Timing measures and logs execution time of an operation at debug level
func Timing(logger zerolog.Logger, operation string) func() {
	if logger.GetLevel() > zerolog.DebugLevel {
		return func() {}
	}

	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("starting")

	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("took", time.Since(start)).
			Msg("completed")
	}
}
