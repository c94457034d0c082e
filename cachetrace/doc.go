/*
Package cachetrace records telemetry for calls made through a
cache.RemoteCache.

Install wraps a cache in a TracedCache. Every observable operation then
emits a Start event before the remote call, a Period event measuring it and
an End event once it returned. All three share the trace and span ids read
from the caller's context and the cache and cluster names of the wrapped
client. Batch operations (GetAll, PutAll and their async forms) also carry
the number of keys they were given.

Asynchronous operations return their future immediately. Period and End are
recorded by a continuation when the delegate's future settles, before the
returned future settles.

Results, errors and panics of the delegate reach the caller unchanged. Sink
failures are logged and never replace them.

	traced, err := cachetrace.Install[string](orders,
	    cachetrace.WithConfig(cfg.Recorder),
	    cachetrace.WithSink(sink),
	    cachetrace.WithLogger(logger),
	)
*/
package cachetrace
