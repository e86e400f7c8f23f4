// Package sinks provides report.Reporter implementations that forward
// stage failures to zap and Prometheus.
package sinks
