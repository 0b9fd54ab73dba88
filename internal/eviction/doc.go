/*
Package eviction implements the sample-cache eviction policy engine.

The engine is pure scoring and selection logic over a caller-supplied
snapshot of entry metadata: it never touches bytes or I/O, and its only
internal state is running statistics and adaptive-weight hints.

# Strategies

Four scoring strategies are available:

  - lru: normalized time since last access, saturating at 24h
  - lfu: inverse of the access count, saturating at 100 accesses
  - usage_based: weighted blend of recency, frequency, size and
    quality factors
  - intelligent: the usage_based factors plus a listening-behavior
    factor (completion rate, average play duration), optionally with
    adaptive weights and memory-pressure rescaling

Unknown strategies silently fall back to lru; no scoring path returns
an error.

# Selection

SelectEvictionCandidates filters out protected entries (locked, on the
protected list, or younger than the minimum retention time), scores the
remainder, sorts ascending by score and returns at most
min(targetCount, batch size) candidates. High and critical memory
pressure switch from the regular batch size to the emergency batch
size, which is the sole bound on per-call eviction latency.

# Adaptive weights

Under the intelligent strategy the engine keeps a private copy of the
factor weights. RecordEvictionOutcome nudges them when an evicted
sample turns out to have been hot, and memory pressure rescales the
size and quality weights (critical pressure doubles size and halves
quality) before renormalizing the set to sum to 1.
*/
package eviction
