// Package metrics exposes the scheduler's operational counters as
// Prometheus metrics: dispatched, routing-error and completed-repartition
// counts and per-partition queue depth, surfaced via
// github.com/prometheus/client_golang gauges and counters.
package metrics
