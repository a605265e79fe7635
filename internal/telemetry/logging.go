// Package telemetry wires the ambient logging and metrics stack every
// binary shares: a zerolog console writer configured from
// Config.LogLevel (grounded on cmd/cryptorun/main.go's startup
// logging setup) and a Prometheus registry generalizing the teacher's
// internal/interfaces/http/metrics.go MetricsRegistry from exchange
// pipeline steps to chain-RPC, job, and cache health.
package telemetry

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigureLogging sets the global zerolog logger's level and output
// writer. level accepts zerolog's usual names (debug, info, warn,
// error); an unrecognized name falls back to info.
func ConfigureLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
