// Package metrics exposes factoryd's Prometheus metrics.
//
// Metrics observes every finished cycle (it implements factory.Observer),
// every reload outcome and every manual delivery, and serves the result
// on GET /metrics through Handler. All metrics live in the "factoryd"
// namespace on a private registry, alongside the Go runtime and process
// collectors.
package metrics
