package sensor

import (
	"fmt"
	"sync"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	milliWattsToWatts = 1000
	// gpuWarningRatio is the share of the enforced limit that raises a warning.
	gpuWarningRatio = 0.8
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// nvmlDevice is the subset of nvml.Device used for power readings.
type nvmlDevice interface {
	GetName() (string, nvml.Return)
	GetUUID() (string, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
	GetEnforcedPowerLimit() (uint32, nvml.Return)
}

// nvmlLibrary abstracts NVML operations for testing
type nvmlLibrary interface {
	Init() nvml.Return
	Shutdown() nvml.Return
	DeviceGetCount() (int, nvml.Return)
	DeviceGetHandleByIndex(index int) (nvmlDevice, nvml.Return)
}

type nvmlBinding struct{}

func (nvmlBinding) Init() nvml.Return     { return nvml.Init() }
func (nvmlBinding) Shutdown() nvml.Return { return nvml.Shutdown() }

func (nvmlBinding) DeviceGetCount() (int, nvml.Return) {
	return nvml.DeviceGetCount()
}

func (nvmlBinding) DeviceGetHandleByIndex(index int) (nvmlDevice, nvml.Return) {
	device, ret := nvml.DeviceGetHandleByIndex(index)
	return device, ret
}

// nvmlSource reports the board power draw of each NVIDIA GPU. Voltage and
// current are not exposed by NVML and read as zero.
type nvmlSource struct {
	lib     nvmlLibrary
	profile Profile
	log     logger.Logger

	mu          sync.Mutex
	initialized bool
}

func newNVMLSource(lib nvmlLibrary, profile Profile, log logger.Logger) *nvmlSource {
	return &nvmlSource{
		lib:     lib,
		profile: profile,
		log:     log,
	}
}

func (s *nvmlSource) Name() string {
	return BackendNVML
}

func (s *nvmlSource) Discover() ([]Descriptor, error) {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		if ret := s.lib.Init(); ret != nvml.SUCCESS {
			return nil, errFactory.Wrap(ErrNVMLInit, newNVMLError(ret))
		}
		s.initialized = true
	}

	count, ret := s.lib.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, errFactory.Wrap(ErrNVMLDeviceCount, newNVMLError(ret))
	}

	descs := make([]Descriptor, 0, count)
	for i := 0; i < count; i++ {
		device, ret := s.lib.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			s.log.Warn().Int("index", i).Str("error", nvml.ErrorString(ret)).Msg("Skipping GPU")
			continue
		}

		raw := fmt.Sprintf("GPU%d", i)
		if uuid, ret := device.GetUUID(); ret == nvml.SUCCESS {
			raw = uuid
		}

		name := raw
		if model, ret := device.GetName(); ret == nvml.SUCCESS {
			name = fmt.Sprintf("GPU%d %s", i, model)
		}

		d := s.profile.describe(raw, CategoryGPU, device)
		if _, ok := s.profile.Names[raw]; !ok {
			d.Name = name
		}
		if _, ok := s.profile.Thresholds[raw]; !ok {
			if limit, ret := device.GetEnforcedPowerLimit(); ret == nvml.SUCCESS && limit > 0 {
				d.Critical = float64(limit) / milliWattsToWatts
				d.Warning = d.Critical * gpuWarningRatio
			}
		}

		s.log.Info().Str("sensor", d.Name).Str("uuid", raw).Msg("Found GPU power sensor")
		descs = append(descs, d)
	}

	if len(descs) == 0 {
		return nil, errFactory.WithData(ErrNoSensors, "no NVIDIA GPU")
	}

	return descs, nil
}

func (s *nvmlSource) Read(d Descriptor) Reading {
	device, ok := d.Handle.(nvmlDevice)
	if !ok {
		return Offline(d, "invalid handle")
	}

	usage, ret := device.GetPowerUsage()
	if ret != nvml.SUCCESS {
		return Offline(d, nvml.ErrorString(ret))
	}

	r := newReading(d)
	r.Power = float64(usage) / milliWattsToWatts
	r.Online = true
	r.Status = StatusNormal

	return r
}

// Close shuts NVML down. It is safe to call more than once.
func (s *nvmlSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}

	if ret := s.lib.Shutdown(); ret != nvml.SUCCESS {
		return errors.New().Wrap(ErrNVMLShutdown, newNVMLError(ret))
	}
	s.initialized = false

	return nil
}
