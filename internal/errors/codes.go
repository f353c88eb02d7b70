package errors

// Monitor error codes. The numeric value of each code (see Number) matches
// the integer codes of the C library so bindings can translate both ways.
const (
	ErrInitFailed       ErrorCode = "initialization_failed"
	ErrNotInitialized   ErrorCode = "not_initialized"
	ErrAlreadyRunning   ErrorCode = "already_running"
	ErrNotRunning       ErrorCode = "not_running"
	ErrInvalidFrequency ErrorCode = "invalid_frequency"
	ErrNoSensors        ErrorCode = "no_sensors_found"
	ErrFileAccess       ErrorCode = "file_access_failed"
	ErrMemory           ErrorCode = "memory_error"
	ErrThread           ErrorCode = "thread_error"
	ErrNotSupported     ErrorCode = "not_supported"
)

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidBackend  ErrorCode = "invalid_backend"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"
	ErrInvalidProfile  ErrorCode = "invalid_profile"

	// Shutdown errors
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Operation errors
	ErrTimeout ErrorCode = "operation_timeout"

	// Export errors
	ErrInitTelemetry  ErrorCode = "init_telemetry_failed"
	ErrCloseTelemetry ErrorCode = "close_telemetry_failed"
	ErrWriteTextfile  ErrorCode = "write_textfile_failed"
)

const unknownErrorMessage = "Unknown error"

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInitFailed:       "Initialization failed",
	ErrNotInitialized:   "Library not initialized",
	ErrAlreadyRunning:   "Sampling already running",
	ErrNotRunning:       "Sampling not running",
	ErrInvalidFrequency: "Invalid sampling frequency",
	ErrNoSensors:        "No sensors found",
	ErrFileAccess:       "File access error",
	ErrMemory:           "Memory allocation error",
	ErrThread:           "Thread creation error",
	ErrNotSupported:     "Operation not supported by sensor backend",
	ErrInternal:         "Internal error occurred",
	ErrInvalidArgument:  "Invalid argument provided",
	ErrInvalidConfig:    "Invalid configuration",
	ErrReadConfig:       "Failed to read config file",
	ErrBindFlags:        "Failed to bind flags",
	ErrInvalidInterval:  "Invalid interval value",
	ErrInvalidBackend:   "Invalid sensor backend",
	ErrInvalidLogLevel:  "Invalid log level",
	ErrInvalidProfile:   "Invalid board profile",
	ErrShutdownFailed:   "Shutdown failed",
	ErrTimeout:          "Operation timed out",
	ErrInitTelemetry:    "Failed to initialize telemetry",
	ErrCloseTelemetry:   "Failed to close telemetry",
	ErrWriteTextfile:    "Failed to write metrics textfile",
}

// numbered lists the codes shared with the C API, indexed by -code.
var numbered = []ErrorCode{
	1: ErrInitFailed,
	2: ErrNotInitialized,
	3: ErrAlreadyRunning,
	4: ErrNotRunning,
	5: ErrInvalidFrequency,
	6: ErrNoSensors,
	7: ErrFileAccess,
	8: ErrMemory,
	9: ErrThread,
}

// Message returns the fixed human-readable message for a code, or
// "Unknown error" if the code is not known.
func Message(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return unknownErrorMessage
}

// MessageForNumber maps a legacy integer error code (0 for success,
// -1 to -9 for failures) to its message.
func MessageForNumber(n int) string {
	if n == 0 {
		return "Success"
	}

	index := -n
	if index <= 0 || index >= len(numbered) {
		return unknownErrorMessage
	}

	return Message(numbered[index])
}

// Number returns the legacy integer code for code, or -10 when the code
// has no numeric counterpart.
func Number(code ErrorCode) int {
	for i, c := range numbered {
		if i > 0 && c == code {
			return -i
		}
	}

	return -len(numbered)
}
