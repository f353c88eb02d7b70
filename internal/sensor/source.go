package sensor

import (
	"fmt"
	"io"
	"os"
	"strings"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
)

// Backend names accepted by Config.Backend.
const (
	BackendAuto   = "auto"
	BackendSysfs  = "sysfs"
	BackendZynqMP = "zynqmp"
	BackendNVML   = "nvml"
	BackendFake   = "fake"
)

// TestingEnv enables testing mode when set to any value.
const TestingEnv = "JTOP_TESTING"

const (
	DefaultI2CPath         = "/sys/bus/i2c/devices"
	DefaultPowerSupplyPath = "/sys/class/power_supply"
	DefaultHwmonPath       = "/sys/class/hwmon"

	testingI2CPath         = "/fake_sys/bus/i2c/devices"
	testingPowerSupplyPath = "/fake_sys/class/power_supply"
	testingHwmonPath       = "/fake_sys/class/hwmon"
)

// Config selects a discovery strategy and its filesystem roots. Empty
// roots take their defaults.
type Config struct {
	Backend         string
	I2CPath         string
	PowerSupplyPath string
	HwmonPath       string
	ProfilePath     string
	// Testing swaps the default roots for the /fake_sys tree and falls
	// back to the placeholder channels when nothing is found.
	Testing bool
}

// DefaultConfig returns the auto backend on the live sysfs roots, with
// testing mode taken from the environment.
func DefaultConfig() Config {
	return Config{
		Backend: BackendAuto,
		Testing: testingFromEnv(),
	}
}

func testingFromEnv() bool {
	_, ok := os.LookupEnv(TestingEnv)
	return ok
}

// Backends lists the accepted backend names.
func Backends() []string {
	return []string{BackendAuto, BackendSysfs, BackendZynqMP, BackendNVML, BackendFake}
}

// ValidBackend reports whether name is an accepted backend.
func ValidBackend(name string) bool {
	for _, b := range Backends() {
		if b == name {
			return true
		}
	}

	return false
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendAuto
	}
	c.Backend = strings.ToLower(c.Backend)

	i2c, supply, hwmon := DefaultI2CPath, DefaultPowerSupplyPath, DefaultHwmonPath
	if c.Testing {
		i2c, supply, hwmon = testingI2CPath, testingPowerSupplyPath, testingHwmonPath
	}

	if c.I2CPath == "" {
		c.I2CPath = i2c
	}
	if c.PowerSupplyPath == "" {
		c.PowerSupplyPath = supply
	}
	if c.HwmonPath == "" {
		c.HwmonPath = hwmon
	}

	return c
}

// New builds the Source selected by cfg. Discovery happens on the first
// call to Discover.
func New(cfg Config, log logger.Logger) (Source, error) {
	errFactory := errors.New()

	if log == nil {
		log = logger.Nop()
	}
	log = log.With("sensor")

	cfg = cfg.withDefaults()
	if !ValidBackend(cfg.Backend) {
		return nil, errFactory.WithData(ErrInvalidBackend, cfg.Backend)
	}

	var profile Profile
	if cfg.ProfilePath != "" {
		p, err := LoadProfile(cfg.ProfilePath)
		if err != nil {
			return nil, err
		}
		profile = p
	}

	var candidates []Source
	switch cfg.Backend {
	case BackendAuto:
		candidates = []Source{
			newZynqMPSource(cfg.HwmonPath, profile, log),
			newSysfsSource(cfg.I2CPath, cfg.PowerSupplyPath, profile, log),
		}
	case BackendSysfs:
		candidates = []Source{newSysfsSource(cfg.I2CPath, cfg.PowerSupplyPath, profile, log)}
	case BackendZynqMP:
		candidates = []Source{newZynqMPSource(cfg.HwmonPath, profile, log)}
	case BackendNVML:
		candidates = []Source{newNVMLSource(nvmlBinding{}, profile, log)}
	case BackendFake:
		return newFakeSource(profile), nil
	}

	if cfg.Testing {
		candidates = append(candidates, newFakeSource(profile))
	}

	return &fallbackSource{
		name:       cfg.Backend,
		candidates: candidates,
		log:        log,
	}, nil
}

// fallbackSource tries its candidates in order and delegates to the first
// one that discovers at least one channel.
type fallbackSource struct {
	name       string
	candidates []Source
	active     Source
	log        logger.Logger
}

func (s *fallbackSource) Name() string {
	if s.active != nil {
		return s.active.Name()
	}

	return s.name
}

func (s *fallbackSource) Discover() ([]Descriptor, error) {
	errFactory := errors.New()

	var infraErr error
	for _, candidate := range s.candidates {
		descs, err := candidate.Discover()
		if err == nil && len(descs) > 0 {
			s.active = candidate
			s.log.Info().Str("backend", candidate.Name()).Int("sensors", len(descs)).Msg("Sensor discovery complete")
			return UniqueNames(descs), nil
		}

		if err != nil && !errors.HasCode(err, ErrNoSensors) && infraErr == nil {
			infraErr = err
		}
		s.log.Debug().Str("backend", candidate.Name()).Err(err).Msg("Backend found no sensors")
	}

	if infraErr != nil {
		return nil, errFactory.Wrap(ErrInitFailed, infraErr)
	}

	return nil, errFactory.New(ErrNoSensors)
}

func (s *fallbackSource) Read(d Descriptor) Reading {
	if s.active == nil {
		return Offline(d, "not discovered")
	}

	return s.active.Read(d)
}

// PrimaryRail reports the active candidate's primary rail, if any.
func (s *fallbackSource) PrimaryRail() string {
	if p, ok := s.active.(PrimaryRailer); ok {
		return p.PrimaryRail()
	}

	return ""
}

// Close releases every candidate holding resources.
func (s *fallbackSource) Close() error {
	var firstErr error
	for _, candidate := range s.candidates {
		if c, ok := candidate.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// UniqueNames returns a copy of descs in which every display name is
// distinct. A repeated name gets the raw name appended, then a counter.
func UniqueNames(descs []Descriptor) []Descriptor {
	out := append([]Descriptor(nil), descs...)
	used := make(map[string]bool, len(out))

	for i := range out {
		name := out[i].Name
		if used[name] {
			base := out[i].Name
			name = fmt.Sprintf("%s (%s)", base, out[i].RawName)
			for n := 2; used[name]; n++ {
				name = fmt.Sprintf("%s #%d", base, n)
			}
			out[i].Name = name
		}
		used[name] = true
	}

	return out
}
