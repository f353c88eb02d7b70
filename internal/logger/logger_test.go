package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want logger.LogLevel
	}{
		{"debug", logger.DebugLevel},
		{"INFO", logger.InfoLevel},
		{"", logger.InfoLevel},
		{"warning", logger.WarnLevel},
		{"warn", logger.WarnLevel},
		{"error", logger.ErrorLevel},
	}

	for _, tt := range tests {
		level, err := logger.ParseLevel(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, level, tt.name)
	}

	_, err := logger.ParseLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.DebugLevel, true)

	log := logger.Default().With("sampler")
	log.Info().Int("sensors", 3).Msg("Sampling started")

	out := buf.String()
	assert.Contains(t, out, "Sampling started")
	assert.Contains(t, out, "component=sampler")
	assert.Contains(t, out, "sensors=3")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.WarnLevel, true)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	logger.Default().Info().Msg("hidden")
	logger.Default().Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.DebugLevel, true)

	err := errors.New().New(errors.ErrNoSensors)
	logger.ErrorWithCode(err).Msg("discovery failed")

	assert.Contains(t, buf.String(), "error_code=no_sensors_found")
}

func TestNopDiscards(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.DebugLevel, true)

	logger.Nop().With("x").Error().Msg("nothing")

	assert.Empty(t, buf.String())
}

func TestFilteredEventsAreDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.InfoLevel, true)

	log := logger.Default().With("sampler")
	assert.False(t, log.Debug().Enabled())
	assert.True(t, log.Info().Enabled())

	log.Debug().Int("tick", 1).Msg("hidden")
	assert.Empty(t, buf.String())

	logger.SetLogLevel(logger.DebugLevel)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })
	log.Debug().Int("tick", 2).Msg("shown")
	assert.Contains(t, buf.String(), "component=sampler")
}
