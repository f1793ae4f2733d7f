package config

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer uses the global provider; it is a no-op until an SDK is installed.
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName())
}
