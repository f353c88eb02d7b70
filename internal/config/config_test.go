package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/config"
	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "xlnpwmon.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
frequency = 10
interval = 500
duration = 30
backend = "zynqmp"
hwmon_path = "/tmp/hwmon"
profile = "/etc/xlnpwmon/zcu102.yaml"
read_timeout = 200
log_level = "debug"
telemetry = true
telemetry_db = "/path/to/telemetry.db"
telemetry_batch = 10
textfile = "/var/lib/node_exporter/xlnpwmon.prom"
`)

	// Set environment variable to point to the test config file
	t.Setenv("XLNPWMON_CONFIG", configPath)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.GetFrequency())
	assert.Equal(t, 500*time.Millisecond, cfg.GetInterval())
	assert.Equal(t, 30*time.Second, cfg.GetDuration())
	assert.Equal(t, 200*time.Millisecond, cfg.GetReadTimeout())
	assert.Equal(t, config.LogLevelDebug, cfg.GetLogLevel())
	assert.True(t, cfg.IsTelemetryEnabled())
	assert.Equal(t, "/path/to/telemetry.db", cfg.GetTelemetryDBPath())
	assert.Equal(t, 10, cfg.GetTelemetryBatchSize())
	assert.Equal(t, "/var/lib/node_exporter/xlnpwmon.prom", cfg.GetTextfilePath())

	src := cfg.GetSourceConfig()
	assert.Equal(t, "zynqmp", src.Backend)
	assert.Equal(t, "/tmp/hwmon", src.HwmonPath)
	assert.Equal(t, "/etc/xlnpwmon/zcu102.yaml", src.ProfilePath)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(nil, config.WithConfigFile(writeConfig(t, "")))
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultFrequency, cfg.Frequency)
	assert.Equal(t, time.Second, cfg.GetInterval())
	assert.Zero(t, cfg.GetDuration())
	assert.Zero(t, cfg.GetReadTimeout())
	assert.Equal(t, "auto", cfg.Backend)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.Telemetry)
	assert.Equal(t, config.DefaultTelemetryDB, cfg.TelemetryDB)
	assert.Equal(t, config.DefaultTelemetryBatch, cfg.TelemetryBatch)
	assert.Empty(t, cfg.Textfile)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	t.Setenv("XLNPWMON_CONFIG", writeConfig(t, `
This is not a valid TOML file
`))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("XLNPWMON_CONFIG", filepath.Join(t.TempDir(), "missing.conf"))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	t.Setenv("XLNPWMON_CONFIG", writeConfig(t, `
log_level = "invalid"
`))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
	assert.Contains(t, err.Error(), "invalid")
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"zero frequency", []string{"--frequency", "0"}, errors.ErrInvalidFrequency},
		{"negative interval", []string{"--interval", "-5"}, errors.ErrInvalidInterval},
		{"unknown backend", []string{"--backend", "serial"}, errors.ErrInvalidBackend},
		{"negative read timeout", []string{"--read-timeout", "-1"}, errors.ErrInvalidConfig},
		{"unknown flag", []string{"--fanspeed", "80"}, errors.ErrBindFlags},
	}

	configPath := writeConfig(t, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(tt.args, config.WithConfigFile(configPath))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLogLevelFlag(t *testing.T) {
	configPath := writeConfig(t, `log_level = "error"`)

	cfg, err := config.Load([]string{"--log-level", "debug"}, config.WithConfigFile(configPath))
	require.NoError(t, err)
	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestEnvironmentOverridesFile(t *testing.T) {
	configPath := writeConfig(t, "frequency = 5\nbackend = \"sysfs\"\n")
	t.Setenv("XLNPWMON_FREQUENCY", "20")

	cfg, err := config.Load(nil, config.WithConfigFile(configPath))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Frequency)
	assert.Equal(t, "sysfs", cfg.Backend)

	cfg, err = config.Load([]string{"--frequency", "50"}, config.WithConfigFile(configPath))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Frequency)
}

func TestTestingModeFromEnvironment(t *testing.T) {
	t.Setenv("JTOP_TESTING", "1")

	cfg, err := config.Load(nil, config.WithConfigFile(writeConfig(t, "")))
	require.NoError(t, err)
	assert.False(t, cfg.Testing)
	assert.True(t, cfg.GetSourceConfig().Testing)
}

func TestLogLevelIsValid(t *testing.T) {
	for _, l := range []config.LogLevel{config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarning, config.LogLevelError} {
		assert.True(t, l.IsValid(), l.String())
	}
	assert.False(t, config.LogLevel("trace").IsValid())
}
