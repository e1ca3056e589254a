// Package metrics exposes Prometheus metrics for loading sessions, scheduler
// rounds, transport fetches and module failures.
//
// All helper methods accept a nil receiver so components can record metrics
// unconditionally.
//
// # Usage
//
//	m := metrics.NewWithRegistry(prometheus.NewRegistry())
//	m.ObserveFetch("core", "ok")
package metrics
