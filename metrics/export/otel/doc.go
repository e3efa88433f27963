// Package otel bridges service metrics into OpenTelemetry observable
// instruments registered on a caller-supplied meter.
package otel
