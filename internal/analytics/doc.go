/*
Package analytics implements the cache analytics engine: a stateful
observer of sample-cache traffic that detects usage patterns and
derives performance diagnostics, optimization opportunities and a
composite health score.

# Recording

RecordOperation ingests every cache operation the manager performs.
Get operations feed the per-sample access history (bounded to the most
recent 100 timestamps), the hit/miss counters and, when enabled,
immediate pattern analysis. Set and delete operations update only the
per-layer latency ring (capped at 1,000 samples per layer) and error
counters. Compression metadata on any operation feeds the aggregate
compression-efficiency ratio.

# Pattern detection

A sample with at least three recorded accesses whose interval variance
is low relative to the mean interval earns a pattern keyed
regular_<sampleID>, classified hourly (<3h average interval), daily
(<3 days) or weekly, with confidence 1 − variance/mean (0.9 for the
degenerate case of three identical timestamps). When MaxPatterns is
configured, the oldest-inserted pattern is evicted first.

# Periodic tick

Start launches a single goroutine that, every MonitoringInterval,
refreshes patterns, appends per-layer performance-history snapshots,
regenerates the opportunity list, recomputes the health score and
raises threshold alerts. Exactly one timer is live between Start and
Stop, so ticks never overlap. Dispose stops the timer and clears all
state; both are idempotent.

# Failure semantics

Nothing here returns an error: missing compression data falls back to
a 0.7 ratio, layers without traffic report documented default hit
rates (0.75/0.65/0.45), unset thresholds fall back to a 0.8 minimum
hit rate and 100ms latency ceiling, and failed operations increment
error counters instead of propagating.
*/
package analytics
