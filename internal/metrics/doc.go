// Package metrics exposes Prometheus counters for runs, collected items,
// and rendered episodes, served from the daemon's /metrics endpoint.
package metrics
