// Package monitoring collects Prometheus metrics for every observable
// edge of the client: transport state transitions, inbound frame counts,
// stream finalization, directory cache size, and REST call outcomes.
//
// Metrics are exposed through the debug server's /metrics endpoint when
// it is enabled.
package monitoring
