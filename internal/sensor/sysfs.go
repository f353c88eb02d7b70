package sensor

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
)

const (
	i2cChipName      = "ina3221"
	ucsiSupplyPrefix = "ucsi-source-psy-"
	notConnected     = "NC"
	// Port 7 of an ina3221 reports the sum of shunt voltages.
	shuntSumPort = 7
	// defaultPrimaryRail is the board input rail on Jetson-class modules.
	defaultPrimaryRail = "VDD_IN"
)

var (
	hwmonLabelPattern = regexp.MustCompile(`^in(\d+)_label$`)
	iioLabelPattern   = regexp.MustCompile(`^rail_name_(\d+)$`)
)

// sysfsSource walks ina3221 chips on the I2C bus and power-supply class
// nodes.
type sysfsSource struct {
	i2cRoot         string
	powerSupplyRoot string
	profile         Profile
	log             logger.Logger
}

func newSysfsSource(i2cRoot, powerSupplyRoot string, profile Profile, log logger.Logger) *sysfsSource {
	return &sysfsSource{
		i2cRoot:         i2cRoot,
		powerSupplyRoot: powerSupplyRoot,
		profile:         profile,
		log:             log,
	}
}

func (s *sysfsSource) Name() string {
	return BackendSysfs
}

func (s *sysfsSource) PrimaryRail() string {
	if s.profile.Primary != "" {
		return s.profile.Primary
	}

	return defaultPrimaryRail
}

func (s *sysfsSource) Discover() ([]Descriptor, error) {
	errFactory := errors.New()

	i2c := s.discoverI2C()
	supplies := s.discoverPowerSupplies()

	descs := append(i2c, supplies...)
	if len(descs) == 0 {
		return nil, errFactory.WithData(ErrNoSensors,
			fmt.Sprintf("%s, %s", s.i2cRoot, s.powerSupplyRoot))
	}

	return descs, nil
}

func (s *sysfsSource) Read(d Descriptor) Reading {
	return readFileChannel(d)
}

func (s *sysfsSource) discoverI2C() []Descriptor {
	devices, err := visibleEntries(s.i2cRoot)
	if err != nil {
		s.log.Debug().Str("path", s.i2cRoot).Err(err).Msg("I2C device folder not available")
		return nil
	}

	var descs []Descriptor
	for _, device := range devices {
		devicePath := filepath.Join(s.i2cRoot, device)
		if !isDir(devicePath) {
			continue
		}

		name, err := readSysfsString(filepath.Join(devicePath, "name"))
		if err != nil || !strings.Contains(name, i2cChipName) {
			continue
		}

		s.log.Debug().Str("device", device).Str("chip", name).Msg("Found power monitor chip")
		descs = append(descs, s.discoverDriverFolders(devicePath)...)
	}

	return descs
}

// discoverDriverFolders finds the hwmon or iio folders below a chip.
func (s *sysfsSource) discoverDriverFolders(devicePath string) []Descriptor {
	entries, err := visibleEntries(devicePath)
	if err != nil {
		return nil
	}

	var descs []Descriptor
	for _, entry := range entries {
		driverPath := filepath.Join(devicePath, entry)

		switch {
		case strings.Contains(entry, "hwmon"):
			children, err := visibleEntries(driverPath)
			if err != nil {
				continue
			}
			for _, child := range children {
				descs = append(descs, s.discoverPorts(filepath.Join(driverPath, child), true)...)
			}
		case strings.Contains(entry, "iio:device"):
			descs = append(descs, s.discoverPorts(driverPath, false)...)
		}
	}

	return descs
}

// discoverPorts reads the rail label files of one driver folder.
func (s *sysfsSource) discoverPorts(dir string, hwmon bool) []Descriptor {
	entries, err := visibleEntries(dir)
	if err != nil {
		return nil
	}

	var descs []Descriptor
	for _, entry := range entries {
		port, ok := labelPort(entry)
		if !ok {
			continue
		}

		label, err := readSysfsString(filepath.Join(dir, entry))
		if err != nil || label == "" {
			continue
		}

		if strings.Contains(label, notConnected) {
			s.log.Debug().Str("rail", label).Msg("Skipping unconnected rail")
			continue
		}

		if port == shuntSumPort {
			continue
		}

		handle, ok := i2cHandle(dir, port, hwmon)
		if !ok {
			s.log.Debug().Str("rail", label).Str("path", dir).Msg("Skipping rail without readable attributes")
			continue
		}

		d := s.profile.describe(label, CategoryI2C, handle)
		s.log.Info().Str("sensor", d.Name).Int("port", port).Str("path", dir).Msg("Found I2C power sensor")
		descs = append(descs, d)
	}

	return descs
}

func labelPort(entry string) (int, bool) {
	m := hwmonLabelPattern.FindStringSubmatch(entry)
	if m == nil {
		m = iioLabelPattern.FindStringSubmatch(entry)
	}
	if m == nil {
		return 0, false
	}

	port, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}

	return port, true
}

// i2cHandle picks the first attribute naming scheme that is readable.
func i2cHandle(dir string, port int, hwmon bool) (fileHandle, bool) {
	var schemes [][2]string
	if hwmon {
		schemes = [][2]string{
			{"in%d_input", "curr%d_input"},
			{"voltage%d_input", "current%d_input"},
		}
	} else {
		schemes = [][2]string{
			{"in_voltage%d_input", "in_current%d_input"},
		}
	}

	for _, scheme := range schemes {
		voltage := filepath.Join(dir, fmt.Sprintf(scheme[0], port))
		current := filepath.Join(dir, fmt.Sprintf(scheme[1], port))
		if readable(voltage) && readable(current) {
			return fileHandle{
				voltagePath:  voltage,
				currentPath:  current,
				voltageScale: milli,
				currentScale: milli,
			}, true
		}
	}

	return fileHandle{}, false
}

func (s *sysfsSource) discoverPowerSupplies() []Descriptor {
	supplies, err := visibleEntries(s.powerSupplyRoot)
	if err != nil {
		s.log.Debug().Str("path", s.powerSupplyRoot).Err(err).Msg("Power supply folder not available")
		return nil
	}

	var descs []Descriptor
	for _, supply := range supplies {
		supplyPath := filepath.Join(s.powerSupplyRoot, supply)
		if !isDir(supplyPath) {
			continue
		}

		name := strings.TrimPrefix(supply, ucsiSupplyPrefix)
		voltage := filepath.Join(supplyPath, "voltage_now")
		current := filepath.Join(supplyPath, "current_now")

		if !readable(voltage) || !readable(current) {
			s.log.Debug().Str("supply", name).Msg("Skipping supply: missing voltage or current capability")
			continue
		}

		supplyType, err := readSysfsString(filepath.Join(supplyPath, "type"))
		if err != nil {
			supplyType = string(CategorySystem)
		}
		model, err := readSysfsString(filepath.Join(supplyPath, "model_name"))
		if err != nil {
			model = "<EMPTY>"
		}

		d := s.profile.describe(name, CategorySystem, fileHandle{
			voltagePath:  voltage,
			currentPath:  current,
			voltageScale: milli,
			currentScale: milli,
		})
		s.log.Info().Str("sensor", d.Name).Str("type", supplyType).Str("model", model).Msg("Found power supply sensor")
		descs = append(descs, d)
	}

	return descs
}
