// Package logging configures the engine's structured logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Params controls how the global logger is configured.
type Params struct {
	Level       string // trace|debug|info|warn|error
	Format      string // "text" or "json"
	Destination string // "stdout" or a file path
}

// Setup configures the global zerolog logger per Params and returns a
// component-scoped child logger. Unknown levels fall back to info.
func Setup(p Params, component string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if p.Destination != "" && p.Destination != "stdout" {
		out = &lumberjack.Logger{
			Filename:   p.Destination,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	if p.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	switch p.Level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return log.Logger.With().Str("component", component).Logger()
}
