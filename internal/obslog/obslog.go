// Package obslog configures the process-wide zerolog logger for the
// long-running worker and API binaries. internal/metadata.Recorder wraps
// zerolog the same way for per-crawl observability; obslog is the
// equivalent setup for the server processes themselves (startup, shutdown,
// HTTP access, queue/scheduler lifecycle events) that metadata.Recorder does
// not cover.
package obslog

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Format selects how log lines are rendered.
type Format string

const (
	// FormatConsole renders human-readable, colorized lines for local/dev use.
	FormatConsole Format = "console"
	// FormatJSON renders one JSON object per line for production ingestion.
	FormatJSON Format = "json"
)

// Config controls the process-wide logger.
type Config struct {
	Level  string
	Format Format
}

// Setup configures zerolog's global level and returns a base Logger that
// cmd/forge attaches to every long-lived component (worker, httpapi,
// cronscheduler) via constructor injection, never a package-level global.
func Setup(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == FormatConsole {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
