// Package sensor discovers power sensors on the host and reads them.
//
// A Source enumerates channels once and then produces a Reading per
// channel on demand. Several discovery strategies are available: a
// generic sysfs walker for ina3221 chips and power-supply nodes, a
// fixed-chip table for Zynq UltraScale+ boards, NVIDIA GPUs through NVML,
// and a placeholder set for testing without hardware.
package sensor

import "time"

// Source discovers channels and reads them.
type Source interface {
	// Name returns the backend name (see the Backend constants).
	Name() string

	// Discover enumerates available channels. It returns an error with
	// code ErrNoSensors when no channel is found.
	Discover() ([]Descriptor, error)

	// Read produces one Reading for d. Failures never surface as errors;
	// they yield an offline Reading with a diagnostic status.
	Read(d Descriptor) Reading
}

// PrimaryRailer is implemented by sources that designate one channel as
// the whole-system input rail.
type PrimaryRailer interface {
	PrimaryRail() string
}

// Category classifies a channel by where it was discovered.
type Category string

const (
	CategoryUnknown Category = "UNKNOWN"
	CategoryI2C     Category = "I2C"
	CategorySystem  Category = "SYSTEM"
	CategoryGPU     Category = "GPU"
	CategoryTotal   Category = "TOTAL"
)

// Group names used by the grouped-total model.
const (
	GroupPS = "ps"
	GroupPL = "pl"
)

// Descriptor identifies one channel. It is created at discovery time and
// never modified afterwards.
type Descriptor struct {
	// Name is the display name.
	Name string
	// RawName is the identifier found during discovery (label, supply
	// directory or chip name).
	RawName  string
	Category Category
	// Group is the sub-system the channel belongs to, or "".
	Group    string
	Warning  float64
	Critical float64
	// Handle is owned by the source that produced the descriptor.
	Handle any
}

// Reading holds a channel's instantaneous values in volts, amperes and
// watts.
type Reading struct {
	Name              string
	Category          Category
	Group             string
	Voltage           float64
	Current           float64
	Power             float64
	Online            bool
	Status            string
	WarningThreshold  float64
	CriticalThreshold float64
	// Tick and Timestamp are stamped by the store on publish.
	Tick      uint64
	Timestamp time.Time
}

const (
	StatusNormal  = "Normal"
	StatusPartial = "Partial"
	StatusOffline = "Offline"
)

// newReading starts a Reading carrying d's identity and thresholds.
func newReading(d Descriptor) Reading {
	return Reading{
		Name:              d.Name,
		Category:          d.Category,
		Group:             d.Group,
		WarningThreshold:  d.Warning,
		CriticalThreshold: d.Critical,
	}
}

// Offline returns the offline Reading for d with a diagnostic status.
func Offline(d Descriptor, reason string) Reading {
	r := newReading(d)
	r.Status = "Error: " + reason

	return r
}
