package pebble

import (
	"github.com/rs/zerolog"
)

// eventLogger routes pebble's internal logging into zerolog.
type eventLogger struct {
	log zerolog.Logger
}

func (l eventLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l eventLogger) Fatalf(format string, args ...interface{}) {
	l.log.Fatal().Msgf(format, args...)
}
