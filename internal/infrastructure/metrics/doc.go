// Package metrics exposes Prometheus instrumentation for the HTTP API and
// security events.
//
// Metrics are registered on a caller-supplied registry rather than the
// global default, so tests and multiple servers in one process do not
// collide.
package metrics
