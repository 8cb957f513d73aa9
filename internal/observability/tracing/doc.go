// Package tracing wires OpenTelemetry into the HTTP stack: the Middleware
// opens a server span per request and echoes the trace ID in X-Trace-Id,
// and GetTracer hands out the shared tracer for spans deeper in the call
// path (orchestrator stages, LLM calls).
package tracing
