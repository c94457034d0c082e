package core

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "ErrTimeout is retryable",
			err:      ErrTimeout,
			expected: true,
		},
		{
			name:     "ErrConnectionFailed is retryable",
			err:      ErrConnectionFailed,
			expected: true,
		},
		{
			name:     "wrapped retryable error is retryable",
			err:      fmt.Errorf("operation failed: %w", ErrTimeout),
			expected: true,
		},
		{
			name:     "network timeout is retryable",
			err:      fmt.Errorf("read: %w", &net.OpError{Op: "read", Net: "tcp", Err: timeoutErr{}}),
			expected: true,
		},
		{
			name:     "ErrInvalidConfiguration is not retryable",
			err:      ErrInvalidConfiguration,
			expected: false,
		},
		{
			name:     "custom error is not retryable",
			err:      errors.New("custom error"),
			expected: false,
		},
		{
			name:     "nil is not retryable",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsConfigurationError(t *testing.T) {
	assert.True(t, IsConfigurationError(ErrInvalidConfiguration))
	assert.True(t, IsConfigurationError(ErrMissingConfiguration))
	assert.True(t, IsConfigurationError(&FrameworkError{Op: "x", Err: ErrMissingConfiguration}))
	assert.False(t, IsConfigurationError(ErrTimeout))
}

func TestFrameworkErrorString(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  *FrameworkError
		want string
	}{
		{"op and err", &FrameworkError{Op: "Get", Err: base}, "Get: boom"},
		{"op id and err", &FrameworkError{Op: "Get", ID: "k1", Err: base}, "Get [k1]: boom"},
		{"op message and err", &FrameworkError{Op: "Get", Message: "lookup", Err: base}, "Get: lookup: boom"},
		{"op id message and err", &FrameworkError{Op: "Get", ID: "k1", Message: "lookup", Err: base}, "Get [k1]: lookup: boom"},
		{"message only", &FrameworkError{Message: "plain"}, "plain"},
		{"err only", &FrameworkError{Err: base}, "boom"},
		{"kind only", &FrameworkError{Kind: "cache"}, "cache error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestFrameworkErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("install: %w", NewFrameworkError("cachetrace.Install", "config", ErrInvalidConfiguration))

	var fe *FrameworkError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "cachetrace.Install", fe.Op)
	assert.Equal(t, "config", fe.Kind)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
