package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetupAppliesLevelAndFormat(t *testing.T) {
	log := Setup("debug", "json")
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestSetupFallsBackOnUnknownValues(t *testing.T) {
	log := Setup("shouting", "xml")
	assert.Equal(t, defaultLevel, log.GetLevel())
}

func TestGetLoggerReturnsSharedInstance(t *testing.T) {
	assert.Same(t, GetLogger(), GetLogger())
}

func TestGetLoggerSupportsEventChaining(t *testing.T) {
	Setup("warn", "console")
	// Filtered below the configured level; the point is that event
	// methods chain directly off the shared instance.
	GetLogger().Debug().Str("component", "logger").Msg("chained")
}
