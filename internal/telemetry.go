package internal

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// telemetry.go
// Lightweight telemetry hook layer used by the schema manager. Callers register
// a real emitter (Prometheus, or a test stub) via RegisterTelemetryEmitter.
// By default the emitter is a no-op.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

const schemaOperationEvent = "schema_operation"

// outcome label values besides the error types
const (
	outcomeOK         = "ok"
	outcomeError      = "error"
	outcomeNotApplied = "not_applied"
)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {
		// noop by default
	}
)

// RegisterTelemetryEmitter registers a custom emitter function. A nil fn
// restores the no-op emitter.
func RegisterTelemetryEmitter(fn func(ctx context.Context, name string, labels map[string]string, value any)) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

// EmitOperation records one manager operation with its outcome and latency.
// name: "schema_operation" with labels {"operation": "<op>", "outcome": "<ok|not_applied|error type>"}
func EmitOperation(ctx context.Context, operation, outcome string, elapsed time.Duration) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	labels := map[string]string{"operation": operation, "outcome": outcome}
	fn(ctx, schemaOperationEvent, labels, elapsed)
}

// NewPrometheusEmitter registers the operation counter and latency
// histogram on reg and returns an emitter feeding them, suitable for
// RegisterTelemetryEmitter.
func NewPrometheusEmitter(reg prometheus.Registerer, namespace string) func(ctx context.Context, name string, labels map[string]string, value any) {
	ops := promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_operations_total",
			Help:      "Schema manager operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)
	latency := promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schema_operation_duration_seconds",
			Help:      "Schema manager operation latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	return func(ctx context.Context, name string, labels map[string]string, value any) {
		if name != schemaOperationEvent {
			return
		}
		ops.WithLabelValues(labels["operation"], labels["outcome"]).Inc()
		if d, ok := value.(time.Duration); ok {
			latency.WithLabelValues(labels["operation"]).Observe(d.Seconds())
		}
	}
}
