package logger

import "codeberg.org/mutker/xlnpwmon/internal/errors"

// Logger defines the interface for logging operations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err errors.Error) *LogEvent
	// With returns a child logger tagging every event with the component.
	With(component string) Logger
}
