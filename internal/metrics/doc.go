// Package metrics exposes Prometheus metrics for driftwatch runs.
//
// Metrics are kept in a private registry rather than the global one, so a
// process can hold several independent sets (one per test, for instance).
// The CLI writes the registry in the node_exporter textfile format after
// each run; there is no long-lived HTTP endpoint.
package metrics
