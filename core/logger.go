// Package core provides the ambient building blocks shared by every cacheflight
// package: the Logger contract, structured errors and layered configuration.
//
// This file implements ZapLogger, the production Logger. It keeps the
// framework's map-based field API while delegating encoding, levels and
// output to zap. When an OpenTelemetry LoggerProvider is supplied, log
// entries are teed into OTel logs through the otelzap bridge so that they
// travel alongside the cache events emitted by the telemetry sinks.
//
// Usage:
//
//	logger, err := core.NewZapLogger(cfg.Logging, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//	logger.Info("Cache ready", map[string]interface{}{"cache": "orders"})
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements ContextLogger on top of a zap.Logger.
type ZapLogger struct {
	zap *zap.Logger
}

// NewZapLogger builds a logger from the logging section of Config.
// otelProvider may be nil, in which case only stdout output is produced.
func NewZapLogger(cfg LoggingConfig, otelProvider otellog.LoggerProvider) (*ZapLogger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, &FrameworkError{
			Op:      "core.NewZapLogger",
			Kind:    "config",
			Message: fmt.Sprintf("invalid log level %q", cfg.Level),
			Err:     ErrInvalidConfiguration,
		}
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(os.Stdout), level),
	}
	if cfg.OTelBridge && otelProvider != nil {
		cores = append(cores, otelzap.NewCore(cfg.ServiceName,
			otelzap.WithLoggerProvider(otelProvider),
		))
	}

	var zc zapcore.Core
	if len(cores) == 1 {
		zc = cores[0]
	} else {
		zc = zapcore.NewTee(cores...)
	}

	l := zap.New(zc)
	if cfg.ServiceName != "" {
		l = l.With(zap.String("service", cfg.ServiceName))
	}
	return &ZapLogger{zap: l}, nil
}

// NewZapLoggerFrom wraps an existing zap.Logger. Used by tests with
// zaptest/observer and by callers that already own a zap configuration.
func NewZapLoggerFrom(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{zap: l}
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "text" || format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

func (l *ZapLogger) Info(msg string, fields map[string]interface{}) {
	l.zap.Info(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Error(msg string, fields map[string]interface{}) {
	l.zap.Error(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields map[string]interface{}) {
	l.zap.Warn(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Debug(msg string, fields map[string]interface{}) {
	l.zap.Debug(msg, toZapFields(fields)...)
}

func (l *ZapLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.zap.Info(msg, append(contextFields(ctx), toZapFields(fields)...)...)
}

func (l *ZapLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.zap.Error(msg, append(contextFields(ctx), toZapFields(fields)...)...)
}

func (l *ZapLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.zap.Warn(msg, append(contextFields(ctx), toZapFields(fields)...)...)
}

func (l *ZapLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.zap.Debug(msg, append(contextFields(ctx), toZapFields(fields)...)...)
}

// Named returns a child logger scoped to a component name.
func (l *ZapLogger) Named(name string) *ZapLogger {
	return &ZapLogger{zap: l.zap.Named(name)}
}

// Sync flushes buffered entries. Sync errors on stdout/stderr are ignored.
func (l *ZapLogger) Sync() error {
	err := l.zap.Sync()
	if err != nil && (errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)) {
		return nil
	}
	return err
}

// contextFields extracts trace correlation from ctx.
func contextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// toZapFields converts the map-based field API into zap fields with a
// stable key order.
func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		switch v := fields[k].(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
