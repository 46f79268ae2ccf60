// Package metrics exposes Prometheus collectors for the orchestration graph
// and adapters that feed them from graph hooks, supervisor decisions, study
// plan degradation and engine failures.
package metrics
