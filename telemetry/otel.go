package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/itsneelabh/cacheflight/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Providers owns the tracer, meter and logger providers created by Setup.
type Providers struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
	logger *sdklog.LoggerProvider
}

type setupOptions struct {
	writer     io.Writer
	version    string
	setGlobals bool
}

// SetupOption customises Setup.
type SetupOption func(*setupOptions)

// WithWriter sends stdout exporter output to w.
func WithWriter(w io.Writer) SetupOption {
	return func(o *setupOptions) { o.writer = w }
}

// WithServiceVersion sets service.version on the resource.
func WithServiceVersion(v string) SetupOption {
	return func(o *setupOptions) { o.version = v }
}

// WithoutGlobals keeps the providers out of the otel globals.
func WithoutGlobals() SetupOption {
	return func(o *setupOptions) { o.setGlobals = false }
}

// Setup creates the three providers for cfg.Exporter:
//   - "stdout" pretty-prints spans, metrics and log records
//   - "otlp" exports over gRPC to cfg.Endpoint
//   - "none" creates providers without exporters
//
// The providers are installed as otel globals unless WithoutGlobals is given.
func Setup(ctx context.Context, cfg core.TelemetryConfig, opts ...SetupOption) (*Providers, error) {
	o := setupOptions{writer: os.Stdout, version: "dev", setGlobals: true}
	for _, opt := range opts {
		opt(&o)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(o.version),
	)

	var (
		spanExporter   sdktrace.SpanExporter
		metricExporter sdkmetric.Exporter
		logExporter    sdklog.Exporter
		err            error
	)
	switch cfg.Exporter {
	case "stdout":
		if spanExporter, err = stdouttrace.New(stdouttrace.WithWriter(o.writer)); err != nil {
			return nil, exporterError("trace", err)
		}
		if metricExporter, err = stdoutmetric.New(stdoutmetric.WithWriter(o.writer)); err != nil {
			return nil, exporterError("metric", err)
		}
		if logExporter, err = stdoutlog.New(stdoutlog.WithWriter(o.writer)); err != nil {
			return nil, exporterError("log", err)
		}
	case "otlp":
		traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
			logOpts = append(logOpts, otlploggrpc.WithInsecure())
		}
		if spanExporter, err = otlptracegrpc.New(ctx, traceOpts...); err != nil {
			return nil, exporterError("trace", err)
		}
		if metricExporter, err = otlpmetricgrpc.New(ctx, metricOpts...); err != nil {
			_ = spanExporter.Shutdown(ctx)
			return nil, exporterError("metric", err)
		}
		if logExporter, err = otlploggrpc.New(ctx, logOpts...); err != nil {
			_ = spanExporter.Shutdown(ctx)
			_ = metricExporter.Shutdown(ctx)
			return nil, exporterError("log", err)
		}
	case "none", "":
	default:
		return nil, &core.FrameworkError{
			Op:      "telemetry.Setup",
			Kind:    "config",
			Message: fmt.Sprintf("unknown exporter %q", cfg.Exporter),
			Err:     core.ErrInvalidConfiguration,
		}
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	if spanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
		metricOpts = append(metricOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
		logOpts = append(logOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)))
	}

	p := &Providers{
		tracer: sdktrace.NewTracerProvider(traceOpts...),
		meter:  sdkmetric.NewMeterProvider(metricOpts...),
		logger: sdklog.NewLoggerProvider(logOpts...),
	}

	if o.setGlobals {
		otel.SetTracerProvider(p.tracer)
		otel.SetMeterProvider(p.meter)
		global.SetLoggerProvider(p.logger)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	GetLogger().Info("Telemetry providers initialised", map[string]interface{}{
		"service_name": cfg.ServiceName,
		"exporter":     cfg.Exporter,
		"endpoint":     cfg.Endpoint,
	})
	return p, nil
}

func exporterError(signal string, err error) error {
	return &core.FrameworkError{
		Op:      "telemetry.Setup",
		Kind:    "exporter",
		Message: "failed to create " + signal + " exporter",
		Err:     err,
	}
}

// TracerProvider returns the trace provider.
func (p *Providers) TracerProvider() trace.TracerProvider { return p.tracer }

// MeterProvider returns the meter provider.
func (p *Providers) MeterProvider() metric.MeterProvider { return p.meter }

// LoggerProvider returns the log provider.
func (p *Providers) LoggerProvider() otellog.LoggerProvider { return p.logger }

// Tracer returns a tracer scoped to this module.
func (p *Providers) Tracer() trace.Tracer { return p.tracer.Tracer(instrumentationName) }

// ForceFlush pushes buffered spans, metrics and log records to the exporters.
func (p *Providers) ForceFlush(ctx context.Context) error {
	return errors.Join(
		p.tracer.ForceFlush(ctx),
		p.meter.ForceFlush(ctx),
		p.logger.ForceFlush(ctx),
	)
}

// Shutdown flushes and stops all providers. Every provider is shut down
// even when an earlier one fails.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.tracer.Shutdown(ctx),
		p.meter.Shutdown(ctx),
		p.logger.Shutdown(ctx),
	)
}
