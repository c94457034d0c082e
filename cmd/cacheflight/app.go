package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"

	"github.com/itsneelabh/cacheflight/cache"
	"github.com/itsneelabh/cacheflight/cachetrace"
	"github.com/itsneelabh/cacheflight/core"
	"github.com/itsneelabh/cacheflight/telemetry"
)

// connectOptions are the flags shared by every command that opens a cache.
type connectOptions struct {
	configFile string
	redisURL   string
	embedded   bool
	cacheName  string
	cluster    string
	disabled   bool
	exporter   string
	endpoint   string
}

func (o *connectOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.configFile, "config", "", "YAML configuration file")
	cmd.Flags().StringVar(&o.redisURL, "redis-url", "", "Redis URL (overrides config)")
	cmd.Flags().BoolVar(&o.embedded, "embedded", false, "run against an in-process Redis")
	cmd.Flags().StringVar(&o.cacheName, "cache", "", "cache name (overrides config)")
	cmd.Flags().StringVar(&o.cluster, "cluster", "", "cluster name reported on events (overrides config)")
	cmd.Flags().BoolVar(&o.disabled, "disabled", false, "install the cache without the recorder")
	cmd.Flags().StringVar(&o.exporter, "exporter", "", "telemetry exporter: stdout, otlp or none")
	cmd.Flags().StringVar(&o.endpoint, "endpoint", "", "OTLP gRPC endpoint (e.g. localhost:4317)")
}

func (o connectOptions) configOptions(embeddedURL string) []core.Option {
	var opts []core.Option
	if o.configFile != "" {
		opts = append(opts, core.WithConfigFile(o.configFile))
	}
	switch {
	case embeddedURL != "":
		opts = append(opts, core.WithRedisURL(embeddedURL))
	case o.redisURL != "":
		opts = append(opts, core.WithRedisURL(o.redisURL))
	}
	if o.cacheName != "" {
		opts = append(opts, core.WithCacheName(o.cacheName))
	}
	if o.cluster != "" {
		opts = append(opts, core.WithClusterName(o.cluster))
	}
	if o.disabled {
		opts = append(opts, core.WithRecorder(false))
	}
	if o.exporter != "" {
		opts = append(opts, core.WithExporter(o.exporter, o.endpoint))
	}
	return opts
}

// app is a configured cache with its telemetry pipeline.
type app struct {
	cfg       *core.Config
	providers *telemetry.Providers
	logger    *core.ZapLogger
	memory    *telemetry.MemorySink
	sink      *telemetry.GuardedSink
	cache     cache.RemoteCache[string]

	closers []func() error
}

// openApp wires config, providers, logging, sinks, Redis and the recorder.
// Telemetry output goes to out.
func openApp(ctx context.Context, out io.Writer, o connectOptions) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	var embeddedURL string
	if o.embedded {
		mr, merr := miniredis.Run()
		if merr != nil {
			return nil, fmt.Errorf("start embedded redis: %w", merr)
		}
		a.onClose(func() error { mr.Close(); return nil })
		embeddedURL = "redis://" + mr.Addr()
	}

	if a.cfg, err = core.NewConfig(o.configOptions(embeddedURL)...); err != nil {
		return nil, err
	}

	if a.providers, err = telemetry.Setup(ctx, a.cfg.Telemetry,
		telemetry.WithWriter(out),
		telemetry.WithServiceVersion(version),
	); err != nil {
		return nil, err
	}
	a.onClose(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.providers.Shutdown(shutdownCtx)
	})

	if a.logger, err = core.NewZapLogger(a.cfg.Logging, a.providers.LoggerProvider()); err != nil {
		return nil, err
	}
	a.onClose(func() error { _ = a.logger.Sync(); return nil })
	telemetry.SetLogger(a.logger)

	settings := telemetry.NewSettings(a.cfg.Recorder)
	a.memory = telemetry.NewMemorySink(settings)
	if a.sink, err = telemetry.NewSinkFromConfig(a.cfg, a.providers, a.logger, settings, a.memory); err != nil {
		return nil, err
	}
	a.onClose(func() error { a.sink.Close(); return nil })

	raw, err := cache.DialRedisCache[string](ctx, a.cfg, cache.StringCodec{}, a.logger, core.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	a.onClose(raw.Close)

	a.cache, err = cachetrace.Install[string](raw,
		cachetrace.WithConfig(a.cfg.Recorder),
		cachetrace.WithSink(a.sink),
		cachetrace.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything openApp acquired, last acquired first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
