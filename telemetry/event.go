package telemetry

import (
	"fmt"
	"time"
)

// EventKind identifies the position of an event in an invocation.
type EventKind int

const (
	KindStart EventKind = iota + 1
	KindPeriod
	KindEnd
)

// Kinds lists every event kind in lifecycle order.
var Kinds = []EventKind{KindStart, KindPeriod, KindEnd}

func (k EventKind) String() string {
	switch k {
	case KindStart:
		return "Start"
	case KindPeriod:
		return "Period"
	case KindEnd:
		return "End"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Outcome of the call an End event closes.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomePanic   Outcome = "panic"
)

// Event is one lifecycle record of an instrumented cache call.
type Event struct {
	Kind   EventKind
	Method string

	CacheName   string
	ClusterName string

	TraceID string
	SpanID  string

	// Batch events carry the size of the collection the call operated on.
	Batch        bool
	ElementCount int

	// Time is the commit time of Start and End events and the begin time
	// of Period events.
	Time time.Time
	// Duration is set on Period events by End.
	Duration time.Duration

	// Outcome and Error are set on End events.
	Outcome Outcome
	Error   string
}

// Begin starts the measured interval of a Period event.
func (e *Event) Begin(now time.Time) {
	e.Time = now
	e.Duration = 0
}

// End closes the measured interval of a Period event.
func (e *Event) End(now time.Time) {
	if d := now.Sub(e.Time); d > 0 {
		e.Duration = d
	}
}

// Type returns the metadata describing this event.
func (e *Event) Type() EventType {
	return EventTypeOf(e.Kind, e.Batch)
}

// Fields flattens the event into log fields.
func (e *Event) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"event":        e.Type().Name,
		"kind":         e.Kind.String(),
		"method":       e.Method,
		"cache_name":   e.CacheName,
		"cluster_name": e.ClusterName,
		"trace_id":     e.TraceID,
		"span_id":      e.SpanID,
	}
	if e.Batch {
		fields["element_count"] = e.ElementCount
	}
	switch e.Kind {
	case KindPeriod:
		fields["duration_ms"] = float64(e.Duration) / float64(time.Millisecond)
	case KindEnd:
		fields["outcome"] = string(e.Outcome)
		if e.Error != "" {
			fields["error"] = e.Error
		}
	}
	return fields
}

// EventType describes one of the six event types (three kinds, single or
// batch).
type EventType struct {
	Name        string
	Label       string
	Description string
	Category    []string
	Kind        EventKind
	Batch       bool
}

var eventTypes = []EventType{
	{Name: "cacheflight.RemoteCacheStart", Label: "RemoteCacheStart", Description: "Remote cache operation has started", Kind: KindStart},
	{Name: "cacheflight.RemoteCache", Label: "RemoteCache", Description: "Remote cache operation has been processing during this period", Kind: KindPeriod},
	{Name: "cacheflight.RemoteCacheEnd", Label: "RemoteCacheEnd", Description: "Remote cache operation has completed", Kind: KindEnd},
	{Name: "cacheflight.RemoteCacheAllStart", Label: "RemoteCacheAllStart", Description: "Batch remote cache operation has started", Kind: KindStart, Batch: true},
	{Name: "cacheflight.RemoteCacheAll", Label: "RemoteCacheAll", Description: "Batch remote cache operation has been processing during this period", Kind: KindPeriod, Batch: true},
	{Name: "cacheflight.RemoteCacheAllEnd", Label: "RemoteCacheAllEnd", Description: "Batch remote cache operation has completed", Kind: KindEnd, Batch: true},
}

// EventTypes returns the metadata of every event type.
func EventTypes() []EventType {
	out := make([]EventType, len(eventTypes))
	for i, t := range eventTypes {
		t.Category = []string{"cacheflight", "Cache"}
		out[i] = t
	}
	return out
}

// EventTypeOf returns the metadata for kind and variant.
func EventTypeOf(kind EventKind, batch bool) EventType {
	for _, t := range eventTypes {
		if t.Kind == kind && t.Batch == batch {
			t.Category = []string{"cacheflight", "Cache"}
			return t
		}
	}
	return EventType{Name: "cacheflight.Unknown", Label: "Unknown", Kind: kind, Batch: batch}
}
