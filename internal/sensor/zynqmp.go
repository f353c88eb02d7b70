package sensor

import (
	"path/filepath"
	"strings"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
)

// zynqmpRail is one entry of the fixed chip table.
type zynqmpRail struct {
	rail  string
	group string
}

// zcu102Rails maps the hwmon chip names of the ZCU102 evaluation board to
// their rails.
var zcu102Rails = map[string]zynqmpRail{
	"ina226_u76": {"VCCPSINTFP", GroupPS},
	"ina226_u77": {"VCCINTLP", GroupPS},
	"ina226_u78": {"VCCPSAUX", GroupPS},
	"ina226_u87": {"VCCPSPLL", GroupPS},
	"ina226_u85": {"MGTRAVCC", GroupPS},
	"ina226_u86": {"MGTRAVTT", GroupPS},
	"ina226_u93": {"VCCO_PSDDR_504", GroupPS},
	"ina226_u88": {"VCCOPS", GroupPS},
	"ina226_u15": {"VCCOPS3", GroupPS},
	"ina226_u92": {"VCCPSDDRPLL", GroupPS},
	"ina226_u79": {"VCCINT", GroupPL},
	"ina226_u81": {"VCCBRAM", GroupPL},
	"ina226_u80": {"VCCAUX", GroupPL},
	"ina226_u84": {"VCC1V2", GroupPL},
	"ina226_u16": {"VCC3V3", GroupPL},
	"ina226_u65": {"VADJ_FMC", GroupPL},
	"ina226_u74": {"MGTAVCC", GroupPL},
	"ina226_u75": {"MGTAVTT", GroupPL},
}

// zynqmpProfile expresses the chip table as a Profile so that user
// profiles can override it.
func zynqmpProfile() Profile {
	p := Profile{
		Names:  make(map[string]string, len(zcu102Rails)),
		Groups: make(map[string]string, len(zcu102Rails)),
	}
	for chip, r := range zcu102Rails {
		p.Names[chip] = r.rail
		p.Groups[chip] = r.group
	}

	return p
}

// zynqmpSource reads the ina226 monitors of Zynq UltraScale+ boards
// through the hwmon class.
type zynqmpSource struct {
	hwmonRoot string
	profile   Profile
	log       logger.Logger
}

func newZynqMPSource(hwmonRoot string, profile Profile, log logger.Logger) *zynqmpSource {
	return &zynqmpSource{
		hwmonRoot: hwmonRoot,
		profile:   zynqmpProfile().Merge(profile),
		log:       log,
	}
}

func (s *zynqmpSource) Name() string {
	return BackendZynqMP
}

func (s *zynqmpSource) Discover() ([]Descriptor, error) {
	errFactory := errors.New()

	entries, err := visibleEntries(s.hwmonRoot)
	if err != nil {
		return nil, errFactory.Wrap(ErrNoSensors, err)
	}

	var descs []Descriptor
	for _, entry := range entries {
		if !strings.HasPrefix(entry, "hwmon") {
			continue
		}

		dir := filepath.Join(s.hwmonRoot, entry)
		chip, err := readSysfsString(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}

		if _, ok := s.profile.Groups[chip]; !ok {
			continue
		}

		handle, ok := zynqmpHandle(dir)
		if !ok {
			s.log.Debug().Str("chip", chip).Msg("Skipping chip without readable attributes")
			continue
		}

		d := s.profile.describe(chip, CategoryI2C, handle)
		s.log.Info().Str("sensor", d.Name).Str("chip", chip).Str("group", d.Group).Msg("Found board power rail")
		descs = append(descs, d)
	}

	if len(descs) == 0 {
		return nil, errFactory.WithData(ErrNoSensors, s.hwmonRoot)
	}

	return descs, nil
}

func (s *zynqmpSource) Read(d Descriptor) Reading {
	return readFileChannel(d)
}

// zynqmpHandle requires voltage and at least one of current or power.
func zynqmpHandle(dir string) (fileHandle, bool) {
	h := fileHandle{
		voltagePath:  filepath.Join(dir, "in1_input"),
		voltageScale: milli,
		currentScale: milli,
		powerScale:   micro,
	}
	if !readable(h.voltagePath) {
		return fileHandle{}, false
	}

	if current := filepath.Join(dir, "curr1_input"); readable(current) {
		h.currentPath = current
	}
	if power := filepath.Join(dir, "power1_input"); readable(power) {
		h.powerPath = power
	}

	if h.currentPath == "" && h.powerPath == "" {
		return fileHandle{}, false
	}

	return h, true
}
