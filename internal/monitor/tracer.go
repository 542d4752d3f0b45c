package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "codepad"

// Tracer wraps OpenTelemetry tracing for the execution engine.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer using the global TracerProvider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartSpan creates a new span and returns the updated context.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("codepad.%s", name),
		trace.WithAttributes(attrs...),
	)
}

// Common attribute keys for execution tracing.
var (
	AttrJobID    = attribute.Key("codepad.job.id")
	AttrLanguage = attribute.Key("codepad.language")
	AttrExitCode = attribute.Key("codepad.exit_code")
)
