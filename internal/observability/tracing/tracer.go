package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("creator-insights")

// GetTracer returns the service tracer for creating child spans:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "synthesize")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}
