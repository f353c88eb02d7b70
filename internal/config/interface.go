package config

import (
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/sensor"
)

// Provider defines the interface for accessing configuration values.
// All values are immutable after loading.
type Provider interface {
	// GetFrequency returns the sampling rate in Hz
	GetFrequency() int

	// GetInterval returns the period between reports
	GetInterval() time.Duration

	// GetDuration returns how long to run, or zero to run until signalled
	GetDuration() time.Duration

	// GetReadTimeout returns the per-channel read bound, zero if disabled
	GetReadTimeout() time.Duration

	// GetSourceConfig returns the sensor discovery settings
	GetSourceConfig() sensor.Config

	// GetLogLevel returns the configured logging level
	GetLogLevel() LogLevel

	// IsTelemetryEnabled returns whether samples are recorded to sqlite
	IsTelemetryEnabled() bool

	// GetTelemetryDBPath returns the path to the telemetry database
	GetTelemetryDBPath() string

	// GetTelemetryBatchSize returns the number of rows buffered per flush
	GetTelemetryBatchSize() int

	// GetTextfilePath returns the Prometheus textfile path, or ""
	GetTextfilePath() string
}

// Option defines a configuration option that can be passed to Load
type Option func(*options)

type options struct {
	configPath string
	envPrefix  string
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithEnvPrefix specifies a custom environment variable prefix.
// Default is "XLNPWMON".
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}
