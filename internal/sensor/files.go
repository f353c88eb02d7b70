package sensor

import (
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"golang.org/x/sys/unix"
)

// Unit scales applied to raw sysfs integers.
const (
	milli = 1e-3
	micro = 1e-6
)

// readSysfsString reads a single-line sysfs file and returns its trimmed
// content.
func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New().Wrap(ErrFileAccess, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// readSysfsValue reads a numeric sysfs attribute and applies scale.
func readSysfsValue(path string, scale float64) (float64, error) {
	value, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}

	raw, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.New().Wrap(ErrParseValue, err)
	}

	return raw * scale, nil
}

// readable reports whether path exists and can be opened for reading.
func readable(path string) bool {
	return unix.Access(path, unix.R_OK) == nil
}

// isDir follows symlinks, as /sys/bus/i2c/devices entries are links.
func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.IsDir()
}

// visibleEntries lists the non-hidden entry names of dir in lexical order.
func visibleEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// fileHandle locates a channel's attributes. An empty path means the
// attribute is not exposed. Scales convert raw integers to SI units.
type fileHandle struct {
	voltagePath  string
	currentPath  string
	powerPath    string
	voltageScale float64
	currentScale float64
	powerScale   float64
}

// readFileChannel reads the attributes named by the descriptor's
// fileHandle. Power comes from the power attribute when there is one and
// is derived from voltage and current otherwise.
func readFileChannel(d Descriptor) Reading {
	h, ok := d.Handle.(fileHandle)
	if !ok {
		return Offline(d, "invalid handle")
	}

	voltage, err := readSysfsValue(h.voltagePath, h.voltageScale)
	if err != nil {
		return Offline(d, "voltage: "+errorReason(err))
	}

	var current, power float64
	haveCurrent, havePower := h.currentPath != "", h.powerPath != ""

	if haveCurrent {
		if current, err = readSysfsValue(h.currentPath, h.currentScale); err != nil {
			return Offline(d, "current: "+errorReason(err))
		}
	}

	if havePower {
		if power, err = readSysfsValue(h.powerPath, h.powerScale); err != nil {
			return Offline(d, "power: "+errorReason(err))
		}
	}

	switch {
	case !havePower:
		power = voltage * current
	case !haveCurrent && voltage != 0:
		current = power / voltage
	}

	r := newReading(d)
	r.Voltage = voltage
	r.Current = current
	r.Power = power
	r.Online = true
	r.Status = StatusNormal

	return r
}

// errorReason trims a wrapped error to its innermost message.
func errorReason(err error) string {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err.Error()
		}
		err = inner
	}
}
