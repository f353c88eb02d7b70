package errors

// ErrorCode represents a unique identifier for each error type. Its
// human-readable form comes from Message.
type ErrorCode string

// Error represents a domain-specific error with context. Two Errors
// match under errors.Is when their codes are equal.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory defines methods for creating domain errors
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
