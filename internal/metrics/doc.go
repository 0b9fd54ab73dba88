/*
Package metrics exposes sample-cache telemetry to Prometheus.

The Collector owns a private registry with counters for operations,
cache requests, evictions and alerts, plus gauges for hit rates, layer
latency, cache size, detected patterns, memory pressure and the health
score. Counters are incremented inline by the cache manager; gauges are
refreshed from a Snapshot, either explicitly via Refresh or on the
periodic loop started by Start, which also serves /metrics and /health
on the configured address.

A disabled collector (Config.Enabled false) is a no-op on every method,
so call sites never have to branch on the setting.
*/
package metrics
