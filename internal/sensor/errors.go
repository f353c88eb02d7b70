package sensor

import "codeberg.org/mutker/xlnpwmon/internal/errors"

const (
	// Discovery Errors
	ErrNoSensors      = errors.ErrNoSensors
	ErrInitFailed     = errors.ErrInitFailed
	ErrInvalidBackend = errors.ErrInvalidBackend
	ErrInvalidProfile = errors.ErrInvalidProfile

	// Read Errors
	ErrFileAccess = errors.ErrFileAccess
	ErrParseValue = errors.ErrorCode("sensor_parse_failed")

	// NVML Errors
	ErrNVMLInit        = errors.ErrorCode("sensor_nvml_init_failed")
	ErrNVMLDeviceCount = errors.ErrorCode("sensor_nvml_device_count_failed")
	ErrNVMLDevice      = errors.ErrorCode("sensor_nvml_device_failed")
	ErrNVMLShutdown    = errors.ErrorCode("sensor_nvml_shutdown_failed")
)
