/*
Package config loads, validates and persists the sample-cache
configuration.

Configuration is assembled in three layers, later layers overriding
earlier ones:

 1. NewDefault, the built-in production defaults
 2. LoadFromFile, a YAML file
 3. LoadFromEnv, SAMPLECACHE_* environment variables

Call Validate after loading; it rejects unknown eviction strategies,
non-positive batch sizes and intervals, negative factor weights and
unparseable cache sizes before any engine is constructed from the
result.

A minimal file:

	global:
	  log_level: INFO

	manager:
	  max_cache_size: 500MB

	eviction:
	  strategy: intelligent
	  batch_size: 10
	  emergency_batch_size: 50
	  min_retention_time: 5m

	analytics:
	  monitoring_interval: 30s
	  enable_usage_pattern_analysis: true

	metrics:
	  enabled: true
	  listen_address: ":9090"

The eviction and analytics sections map directly onto the engine
configurations in internal/eviction and internal/analytics; sizes such
as max_cache_size accept both SI ("500MB") and IEC ("2GiB") suffixes.
*/
package config
