package telemetry

import (
	"encoding/json"
	"net/http"
)

// Health summarises delivery through a GuardedSink.
type Health struct {
	CircuitState string `json:"circuit_state"`
	Committed    int64  `json:"committed"`
	Dropped      int64  `json:"dropped"`
	Failed       int64  `json:"failed"`
	LastError    string `json:"last_error,omitempty"`
	Uptime       string `json:"uptime"`
}

// Health returns the current delivery counters.
func (g *GuardedSink) Health() Health {
	lastErr, _ := g.lastError.Load().(string)
	return Health{
		CircuitState: g.circuit.State(),
		Committed:    g.committed.Load(),
		Dropped:      g.dropped.Load(),
		Failed:       g.failed.Load(),
		LastError:    lastErr,
		Uptime:       g.now().Sub(g.started).String(),
	}
}

// Healthy reports whether events are currently being delivered.
func (h Health) Healthy() bool {
	return h.CircuitState != CircuitOpen
}

// HealthHandler serves the health of g as JSON. It answers 503 while the
// circuit is open and 206 when more than 10% of commits failed.
func HealthHandler(g *GuardedSink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := g.Health()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case !health.Healthy():
			w.WriteHeader(http.StatusServiceUnavailable)
		case float64(health.Failed)/float64(health.Committed+health.Failed+1) > 0.1:
			w.WriteHeader(http.StatusPartialContent)
		default:
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	}
}
