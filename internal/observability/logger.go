// Package observability carries the structured-logging and per-request
// event-emission conventions used across the backend.
package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the global base logger. Component loggers below derive from it.
var Log zerolog.Logger

// Initialize configures the global zerolog logger. level is a zerolog level
// name ("debug", "info", ...); pretty switches between a human-readable
// console writer (development) and line-delimited JSON (production).
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().
		Str("service", "logintel-backend").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// GetLogger returns the global logger instance.
func GetLogger() *zerolog.Logger {
	return &Log
}

func component(name string) *zerolog.Logger {
	l := Log.With().Str("component", name).Logger()
	return &l
}

// Database returns the component logger for the row store adapter (B).
func Database() *zerolog.Logger { return component("database") }

// HTTP returns the component logger for the HTTP surface (H).
func HTTP() *zerolog.Logger { return component("http") }

// Ingest returns the component logger for the ingestion coordinator (D).
func Ingest() *zerolog.Logger { return component("ingest") }

// Analyzer returns the component logger for the batch ML analyzer (F).
func Analyzer() *zerolog.Logger { return component("analyzer") }

// Search returns the component logger for the index store adapter (C) and
// the search/correlation engine (E).
func Search() *zerolog.Logger { return component("search") }
