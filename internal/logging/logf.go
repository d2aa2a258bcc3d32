package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns the process logger configured by Configure.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// With returns a child logger carrying one extra string field.
func With(key, value string) zerolog.Logger {
	return log.Logger.With().Str(key, value).Logger()
}

func Debugf(format string, args ...any) {
	log.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	log.Error().Msgf(format, args...)
}

// Fatalf logs at fatal level and exits the process with status 1.
func Fatalf(format string, args ...any) {
	log.Fatal().Msgf(format, args...)
}
