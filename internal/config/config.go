package config

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/sensor"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultConfigPath     = "/etc/xlnpwmon.conf"
	DefaultEnvPrefix      = "XLNPWMON"
	DefaultFrequency      = 1
	DefaultInterval       = 1000
	DefaultLogLevel       = LogLevelInfo
	DefaultTelemetryDB    = "/var/lib/xlnpwmon/telemetry.db"
	DefaultTelemetryBatch = 50

	// configEnvSuffix names the variable holding an explicit config path,
	// e.g. XLNPWMON_CONFIG.
	configEnvSuffix = "_CONFIG"
)

// Config holds the loaded settings. Durations are stored in the units
// used by the config file: milliseconds for interval and read_timeout,
// seconds for duration.
type Config struct {
	Frequency       int      `mapstructure:"frequency"`
	Interval        int      `mapstructure:"interval"`
	Duration        int      `mapstructure:"duration"`
	Backend         string   `mapstructure:"backend"`
	I2CPath         string   `mapstructure:"i2c_path"`
	PowerSupplyPath string   `mapstructure:"power_supply_path"`
	HwmonPath       string   `mapstructure:"hwmon_path"`
	Profile         string   `mapstructure:"profile"`
	Testing         bool     `mapstructure:"testing"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	LogLevel        LogLevel `mapstructure:"log_level"`
	Telemetry       bool     `mapstructure:"telemetry"`
	TelemetryDB     string   `mapstructure:"telemetry_db"`
	TelemetryBatch  int      `mapstructure:"telemetry_batch"`
	Textfile        string   `mapstructure:"textfile"`
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"frequency":         "frequency",
	"interval":          "interval",
	"duration":          "duration",
	"backend":           "backend",
	"i2c-path":          "i2c_path",
	"power-supply-path": "power_supply_path",
	"hwmon-path":        "hwmon_path",
	"profile":           "profile",
	"testing":           "testing",
	"read-timeout":      "read_timeout",
	"log-level":         "log_level",
	"telemetry":         "telemetry",
	"telemetry-db":      "telemetry_db",
	"telemetry-batch":   "telemetry_batch",
	"textfile":          "textfile",
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("xlnpwmon", pflag.ContinueOnError)

	flags.Int("frequency", DefaultFrequency, "Sampling frequency in Hz")
	flags.Int("interval", DefaultInterval, "Reporting interval in milliseconds")
	flags.Int("duration", 0, "Run time in seconds (0 runs until interrupted)")
	flags.String("backend", sensor.BackendAuto, "Sensor backend: "+strings.Join(sensor.Backends(), ", "))
	flags.String("i2c-path", "", "I2C devices root")
	flags.String("power-supply-path", "", "Power supply class root")
	flags.String("hwmon-path", "", "Hwmon class root")
	flags.String("profile", "", "Board profile (YAML) with names, groups and thresholds")
	flags.Bool("testing", false, "Use the /fake_sys tree and placeholder sensors")
	flags.Int("read-timeout", 0, "Per-sensor read timeout in milliseconds (0 disables)")
	flags.String("log-level", string(DefaultLogLevel), "Log level: debug, info, warning, error")
	flags.Bool("telemetry", false, "Record samples to the telemetry database")
	flags.String("telemetry-db", DefaultTelemetryDB, "Telemetry database path")
	flags.Int("telemetry-batch", DefaultTelemetryBatch, "Telemetry rows buffered per flush")
	flags.String("textfile", "", "Write Prometheus metrics to this file on every report")

	return flags
}

// Load reads configuration from the config file, the environment and
// args, in increasing order of precedence.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.LogLevel = LogLevel(strings.ToLower(string(cfg.LogLevel)))
	cfg.Backend = strings.ToLower(cfg.Backend)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("frequency", DefaultFrequency)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("duration", 0)
	v.SetDefault("backend", sensor.BackendAuto)
	v.SetDefault("testing", false)
	v.SetDefault("read_timeout", 0)
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("telemetry", false)
	v.SetDefault("telemetry_db", DefaultTelemetryDB)
	v.SetDefault("telemetry_batch", DefaultTelemetryBatch)
	v.SetDefault("textfile", "")
}

// readConfigFile loads the TOML config. A missing default file is not an
// error; a missing explicit file is.
func readConfigFile(v *viper.Viper, o options) error {
	path := o.configPath
	explicit := path != ""
	if !explicit {
		path = os.Getenv(o.envPrefix + configEnvSuffix)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.New().Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, string(c.LogLevel))
	}
	if c.Frequency <= 0 {
		return errFactory.WithData(errors.ErrInvalidFrequency, c.Frequency)
	}
	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.Duration < 0 || c.ReadTimeout < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "negative duration")
	}
	if !sensor.ValidBackend(c.Backend) {
		return errFactory.WithData(errors.ErrInvalidBackend, c.Backend)
	}
	if c.Telemetry && (c.TelemetryDB == "" || c.TelemetryBatch <= 0) {
		return errFactory.WithData(errors.ErrInvalidConfig, "telemetry requires telemetry_db and a positive telemetry_batch")
	}

	return nil
}

func (c *Config) GetFrequency() int { return c.Frequency }

func (c *Config) GetInterval() time.Duration {
	return time.Duration(c.Interval) * time.Millisecond
}

func (c *Config) GetDuration() time.Duration {
	return time.Duration(c.Duration) * time.Second
}

func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Millisecond
}

// GetSourceConfig enables testing mode when either the config or the
// JTOP_TESTING environment variable asks for it.
func (c *Config) GetSourceConfig() sensor.Config {
	return sensor.Config{
		Backend:         c.Backend,
		I2CPath:         c.I2CPath,
		PowerSupplyPath: c.PowerSupplyPath,
		HwmonPath:       c.HwmonPath,
		ProfilePath:     c.Profile,
		Testing:         c.Testing || sensor.DefaultConfig().Testing,
	}
}

func (c *Config) GetLogLevel() LogLevel { return c.LogLevel }
func (c *Config) IsTelemetryEnabled() bool { return c.Telemetry }
func (c *Config) GetTelemetryDBPath() string { return c.TelemetryDB }
func (c *Config) GetTelemetryBatchSize() int { return c.TelemetryBatch }
func (c *Config) GetTextfilePath() string { return c.Textfile }

var _ Provider = (*Config)(nil)
