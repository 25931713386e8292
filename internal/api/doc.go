// Package api serves the optional local debug surface: liveness,
// controller status, and Prometheus metrics.
package api
