/*
PURPOSE:
  Provides the structured logger for Forecast Runner.
  Wraps zerolog for consistent output.

REQUIREMENTS:
  User-specified:
  - "Sane" CLI output. Not spammy.

  Implementation-discovered:
  - Console output for humans, JSON output for the HTTP server behind a collector.
  - Components tag their lines with a "component" field.

ARCHITECTURE INTEGRATION:
  - Used everywhere.

ERROR HANDLING:
  - Unknown levels fall back to info.

IMPLEMENTATION RULES:
  - Use github.com/rs/zerolog.

USAGE:
  output.Logger.Info().Str("key", "value").Msg("message")
  log := output.Component("engine")

RELATED FILES:
  - internal/config/config.go
*/

package output

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// SetLogger allows overriding the default logger (e.g. for testing or config changes)
func SetLogger(l zerolog.Logger) {
	Logger = l
}

// Configure builds the global logger from a level name and a format
// ("console" or "json").
func Configure(w io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	Logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
