// Package observability groups the logging and tracing infrastructure.
//
// Subpackages:
//   - logging: slog helpers with request ID and context propagation
//   - tracing: OpenTelemetry HTTP middleware and the shared tracer
//
// Prometheus metrics are deliberately not centralized here; each package
// registers its own metrics next to the code that records them.
package observability
