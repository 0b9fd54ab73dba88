/*
Package manager ties the sample-cache pieces together: a metadata-only
EntryStore, the eviction policy engine, the analytics engine and the
optional metrics collector.

The Manager records every Get, Set and Delete into analytics, derives
memory pressure from store utilization against the configured capacity
(low at 70%, medium at 80%, high at 90%, critical at 97%) and, when a
Set would exceed capacity, frees space through the policy engine's
candidate selection. Samples that are requested again shortly after
being evicted feed the engine's adaptive-weight model, nudging future
selections away from entries likely to return.

The store holds no audio bytes. The embedding application owns the
actual sample storage per layer and calls the Manager with sample IDs,
sizes and quality tiers only.
*/
package manager
