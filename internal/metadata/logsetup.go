package metadata

import (
	"os"

	"github.com/rs/zerolog"
)

// LogConfig controls how Recorder loggers are constructed at process
// startup. Pretty is meant for local development (cmd/forge serve/worker
// run from a terminal); disabling it emits line-delimited JSON suitable for
// log aggregation in production.
type LogConfig struct {
	Pretty bool
	Level  zerolog.Level
}

// NewBaseLogger builds the root zerolog.Logger every Recorder in the
// process derives from via NewRecorderWithLogger.
func NewBaseLogger(cfg LogConfig) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level)

	if cfg.Pretty {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		return zerolog.New(writer).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
