package xlnpwmon

import (
	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/sensor"
	"codeberg.org/mutker/xlnpwmon/internal/stats"
	"codeberg.org/mutker/xlnpwmon/internal/store"
)

// Reading is one channel's instantaneous voltage, current and power.
type Reading = sensor.Reading

// Descriptor identifies a discovered channel.
type Descriptor = sensor.Descriptor

// Source discovers and reads channels. Custom sources can be passed with
// WithSource.
type Source = sensor.Source

// SourceConfig selects the discovery strategy and filesystem roots.
type SourceConfig = sensor.Config

// Backend names for SourceConfig.Backend.
const (
	BackendAuto   = sensor.BackendAuto
	BackendSysfs  = sensor.BackendSysfs
	BackendZynqMP = sensor.BackendZynqMP
	BackendNVML   = sensor.BackendNVML
	BackendFake   = sensor.BackendFake
)

// Category classifies a channel.
type Category = sensor.Category

// Stats is a running min/max/average accumulator.
type Stats = stats.Stats

// ChannelStats holds the voltage, current and power statistics of one
// channel.
type ChannelStats = stats.ChannelStats

// Snapshot is a consistent copy of every reading and total from one tick.
type Snapshot = store.Snapshot

// StatsSnapshot is a consistent copy of every channel's statistics.
type StatsSnapshot = store.StatsSnapshot

// ErrorCode identifies a failure class.
type ErrorCode = errors.ErrorCode

// Error codes returned by Monitor methods.
const (
	ErrInitFailed       = errors.ErrInitFailed
	ErrNotInitialized   = errors.ErrNotInitialized
	ErrAlreadyRunning   = errors.ErrAlreadyRunning
	ErrNotRunning       = errors.ErrNotRunning
	ErrInvalidFrequency = errors.ErrInvalidFrequency
	ErrNoSensors        = errors.ErrNoSensors
	ErrFileAccess       = errors.ErrFileAccess
	ErrMemory           = errors.ErrMemory
	ErrThread           = errors.ErrThread
	ErrNotSupported     = errors.ErrNotSupported
)

// ErrorString returns the human-readable message for code.
func ErrorString(code ErrorCode) string {
	return errors.Message(code)
}

// ErrorStringForNumber returns the message for a legacy integer code.
func ErrorStringForNumber(n int) string {
	return errors.MessageForNumber(n)
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	return errors.HasCode(err, code)
}

// State is the lifecycle state of a Monitor.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateSampling
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateSampling:
		return "sampling"
	case StateTerminated:
		return "terminated"
	default:
		return "uninitialized"
	}
}

// PowerSummary splits the latest totals into processing system,
// programmable logic and whole board.
type PowerSummary struct {
	PS    Reading
	PL    Reading
	Total Reading
}

// PowerSummaryStats is PowerSummary for statistics.
type PowerSummaryStats struct {
	PS    ChannelStats
	PL    ChannelStats
	Total ChannelStats
}
