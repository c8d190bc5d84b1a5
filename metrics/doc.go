// Package metrics provides Prometheus metrics for pipeline runs.
//
// Metrics are registered with the default registry at init time and served
// by the application on /metrics when enabled in configuration.
package metrics
