// Package observability defines the ports the settlement pipeline logs,
// traces, and measures through. Adapters live under
// internal/infrastructure/observability; every port has a nop fallback so a
// service constructed without telemetry still runs.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the telemetry concerns handed to a service.
type Observability interface {
	Tracer() Tracer
	Logger() Logger
	Metrics() Metrics
}

// Logger is a structured, leveled logger. With returns a child that carries
// the given fields on every entry.
type Logger interface {
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Tracer starts spans; the returned context carries the active span.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

// MetricKey names an instrument registered at startup.
type MetricKey string

// Metrics resolves instruments by key; an unregistered key resolves to a nop
// instrument rather than an error.
type Metrics interface {
	Counter(name MetricKey) Counter
	Histogram(name MetricKey) Histogram
}

type Counter interface {
	Add(delta float64, labels ...Label)
}

type Histogram interface {
	Observe(value float64, labels ...Label)
}

// Field is a structured log attribute.
type Field struct {
	Key   string
	Value any
}

func F(k string, v any) Field { return Field{Key: k, Value: v} }

// Label is a metric label pair; the key must belong to the instrument's
// registered label set.
type Label struct{ Key, Value string }

func L(k, v string) Label { return Label{Key: k, Value: v} }
