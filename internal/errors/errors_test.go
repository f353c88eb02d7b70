package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestMessage(t *testing.T) {
	assert.Equal(t, "Sampling already running", errors.Message(errors.ErrAlreadyRunning))
	assert.Equal(t, "No sensors found", errors.Message(errors.ErrNoSensors))
	assert.Equal(t, "Unknown error", errors.Message(errors.ErrorCode("bogus")))
}

func TestMessageForNumber(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "Success"},
		{-1, "Initialization failed"},
		{-4, "Sampling not running"},
		{-9, "Thread creation error"},
		{-10, "Unknown error"},
		{3, "Unknown error"},
		{-1000, "Unknown error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, errors.MessageForNumber(tt.n), "code %d", tt.n)
	}
}

func TestNumber(t *testing.T) {
	assert.Equal(t, -5, errors.Number(errors.ErrInvalidFrequency))
	assert.Equal(t, -10, errors.Number(errors.ErrNotSupported))
}

func TestIsMatchesByCode(t *testing.T) {
	errFactory := errors.New()
	err := errFactory.WithData(errors.ErrNotRunning, "sampler stopped")
	wrapped := fmt.Errorf("stop: %w", err)

	assert.True(t, errors.Is(wrapped, errFactory.New(errors.ErrNotRunning)))
	assert.False(t, errors.Is(wrapped, errFactory.New(errors.ErrAlreadyRunning)))
	assert.True(t, errors.HasCode(wrapped, errors.ErrNotRunning))
	assert.Equal(t, errors.ErrNotRunning, errors.CodeOf(wrapped))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(fmt.Errorf("plain")))
}

func TestErrorString(t *testing.T) {
	errFactory := errors.New()

	assert.Equal(t, "Invalid sampling frequency", errFactory.New(errors.ErrInvalidFrequency).Error())
	assert.Equal(t, "Invalid sampling frequency: 0",
		errFactory.WithData(errors.ErrInvalidFrequency, 0).Error())
	assert.Equal(t, "custom", errFactory.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "File access error: boom",
		errFactory.Wrap(errors.ErrFileAccess, fmt.Errorf("boom")).Error())
}
