package core

import (
	"context"
)

// Logger interface - minimal logging interface
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// ContextLogger extends Logger with context-aware variants. Implementations
// add trace correlation fields (trace_id, span_id) taken from ctx.
type ContextLogger interface {
	Logger
	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// Default no-op implementations

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

func (n *NoOpLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {}

// WithContext returns a ContextLogger for l. Loggers that only implement the
// plain interface are adapted so the context is ignored.
func WithContext(l Logger) ContextLogger {
	if l == nil {
		return &NoOpLogger{}
	}
	if cl, ok := l.(ContextLogger); ok {
		return cl
	}
	return plainLogger{l}
}

type plainLogger struct {
	Logger
}

func (p plainLogger) InfoWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	p.Info(msg, fields)
}

func (p plainLogger) ErrorWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	p.Error(msg, fields)
}

func (p plainLogger) WarnWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	p.Warn(msg, fields)
}

func (p plainLogger) DebugWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	p.Debug(msg, fields)
}
