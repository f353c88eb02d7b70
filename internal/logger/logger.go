package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.New(os.Stderr).With().Timestamp().Logger()

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger based on the given configuration
func Init(level LogLevel, isService bool) {
	InitWithWriter(os.Stdout, level, isService)
}

// InitWithWriter is Init with an explicit output, used by tests.
func InitWithWriter(out io.Writer, level LogLevel, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.NoColor = true
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()

	SetLogLevel(level)
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// ParseLevel maps a configured level name to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errors.New().WithData(errors.ErrInvalidLogLevel, name)
	}
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(log.Error(), err)}
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(log.Fatal(), err)}
}

func withCode(e *zerolog.Event, err errors.Error) *zerolog.Event {
	return e.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())
}

// componentLogger implements Logger on top of the package logger. The
// package logger is looked up on every call so that components built
// before Init still pick up its output and level.
type componentLogger struct {
	component string
	nop       bool
}

// Default returns a Logger writing through the package logger.
func Default() Logger {
	return &componentLogger{}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &componentLogger{nop: true}
}

func (l *componentLogger) base() *zerolog.Logger {
	if l.nop {
		nop := zerolog.Nop()
		return &nop
	}
	if l.component == "" {
		return &log
	}
	child := log.With().Str("component", l.component).Logger()
	return &child
}

// event returns nil for filtered levels without building a child logger.
// Every method of a nil *zerolog.Event is a no-op.
func (l *componentLogger) event(level zerolog.Level) *zerolog.Event {
	if l.nop || level < zerolog.GlobalLevel() || level < log.GetLevel() {
		return nil
	}

	return l.base().WithLevel(level)
}

func (l *componentLogger) Debug() *LogEvent {
	return &LogEvent{l.event(zerolog.DebugLevel)}
}

func (l *componentLogger) Info() *LogEvent {
	return &LogEvent{l.event(zerolog.InfoLevel)}
}

func (l *componentLogger) Warn() *LogEvent {
	return &LogEvent{l.event(zerolog.WarnLevel)}
}

func (l *componentLogger) Error() *LogEvent {
	return &LogEvent{l.event(zerolog.ErrorLevel)}
}

func (l *componentLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(l.event(zerolog.ErrorLevel), err)}
}

func (l *componentLogger) With(component string) Logger {
	return &componentLogger{component: component, nop: l.nop}
}
