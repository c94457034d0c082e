/*
Package telemetry carries the observable side of cacheflight: the events
produced for every instrumented cache operation, the sinks that accept them
and the OpenTelemetry plumbing those sinks export through.

Event Model:

Each instrumented call produces up to three events sharing one correlation
context (trace id, span id) and one cache identity (cache name, cluster name):

 1. Start  - committed before the remote call is issued
 2. Period - brackets the remote call and carries its duration
 3. End    - committed once the call returned or failed

Batch operations additionally carry the number of elements they touch.

Sinks:

A Sink decides cheaply whether it would commit an event of a given kind
(WouldCommit) before any field is populated, then accepts the populated
event (Commit). Implementations in this package:
  - MemorySink: keeps events in memory, used by tests and the demo
  - LoggerSink: writes events through a core.Logger
  - LogSink: emits OpenTelemetry log records
  - MetricSink: records counters and a duration histogram
  - SpanSink: adds events to the active span
  - MultiSink: fans out to several sinks
  - GuardedSink: isolates a sink behind a circuit breaker and panic recovery

Thread Safety:

All sinks and Settings are safe for concurrent use. Event values are owned by
a single invocation and are not shared.

Usage:

	providers, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
	    return err
	}
	defer providers.Shutdown(context.Background())

	settings := telemetry.NewSettings(cfg.Recorder)
	sink, err := telemetry.NewSinkFromConfig(cfg, providers, logger, settings)
	if err != nil {
	    return err
	}
	defer sink.Close()

A GuardedSink never returns an error to the caller. Health reports its
delivery counters.

TracingMiddleware and NewTracedHTTPClient carry W3C trace context across
HTTP hops, so events recorded by a server share the caller's trace id.
*/
package telemetry
