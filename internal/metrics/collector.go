package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samplecache/samplecache/pkg/types"
)

// Config represents metrics configuration
type Config struct {
	Enabled         bool          `yaml:"enabled"`
	ListenAddress   string        `yaml:"listen_address"`
	Path            string        `yaml:"path"`
	Namespace       string        `yaml:"namespace"`
	Subsystem       string        `yaml:"subsystem"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Snapshot carries the gauge values refreshed from the analytics and
// eviction engines on every update tick.
type Snapshot struct {
	HitRates     map[types.CacheLayer]float64
	LayerLatency map[types.CacheLayer]float64 // ms
	TotalEntries int
	TotalSize    int64
	HealthScore  types.CacheHealthScore
	PatternCount int
	Pressure     types.MemoryPressure
}

// SnapshotFunc produces the current Snapshot; wired to the cache
// manager at Start.
type SnapshotFunc func() Snapshot

// Collector exposes sample-cache metrics to Prometheus
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	// Prometheus metrics
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	cacheRequests     *prometheus.CounterVec
	evictionCounter   *prometheus.CounterVec
	memoryFreed       prometheus.Counter
	hitRateGauge      *prometheus.GaugeVec
	layerLatencyGauge *prometheus.GaugeVec
	cacheSizeGauge    prometheus.Gauge
	entryCountGauge   prometheus.Gauge
	healthGauge       *prometheus.GaugeVec
	patternGauge      prometheus.Gauge
	pressureGauge     prometheus.Gauge
	alertCounter      *prometheus.CounterVec

	snapshot SnapshotFunc

	// HTTP server for the metrics endpoint
	server *http.Server
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:         true,
			ListenAddress:   ":9090",
			Path:            "/metrics",
			Namespace:       "samplecache",
			RefreshInterval: 15 * time.Second,
		}
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:   config,
		registry: prometheus.NewRegistry(),
	}
	collector.initMetrics()
	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// SetSnapshotFunc wires the gauge source. Must be called before Start
// for the refresh loop to have any effect.
func (c *Collector) SetSnapshotFunc(fn SnapshotFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = fn
}

// Start serves the metrics endpoint and begins the periodic gauge
// refresh. Disabled collectors return immediately.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	path := c.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", c.healthHandler)

	c.server = &http.Server{
		Addr:              c.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Metrics server error: %v\n", err)
		}
	}()

	go c.refreshLoop(ctx)

	return nil
}

// Stop shuts the metrics server down
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordOperation records one cache operation
func (c *Collector) RecordOperation(op types.Operation, layer types.CacheLayer, duration time.Duration, success bool) {
	if !c.config.Enabled {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}
	c.operationCounter.With(prometheus.Labels{
		"operation": string(op),
		"layer":     string(layer),
		"status":    status,
	}).Inc()
	c.operationDuration.With(prometheus.Labels{
		"operation": string(op),
		"layer":     string(layer),
	}).Observe(duration.Seconds())
}

// RecordCacheHit records a get that was served from the cache
func (c *Collector) RecordCacheHit(layer types.CacheLayer) {
	if !c.config.Enabled {
		return
	}
	c.cacheRequests.With(prometheus.Labels{"type": "hit", "layer": string(layer)}).Inc()
}

// RecordCacheMiss records a get that missed the cache
func (c *Collector) RecordCacheMiss(layer types.CacheLayer) {
	if !c.config.Enabled {
		return
	}
	c.cacheRequests.With(prometheus.Labels{"type": "miss", "layer": string(layer)}).Inc()
}

// RecordEviction records an eviction batch selected under a strategy
func (c *Collector) RecordEviction(strategy types.EvictionStrategy, count int, bytesFreed int64) {
	if !c.config.Enabled {
		return
	}
	c.evictionCounter.With(prometheus.Labels{"strategy": string(strategy)}).Add(float64(count))
	c.memoryFreed.Add(float64(bytesFreed))
}

// RecordAlert records a threshold alert raised by the analytics engine
func (c *Collector) RecordAlert(layer types.CacheLayer, metric string) {
	if !c.config.Enabled {
		return
	}
	c.alertCounter.With(prometheus.Labels{"layer": string(layer), "metric": metric}).Inc()
}

// Refresh updates every gauge from the given snapshot
func (c *Collector) Refresh(snap Snapshot) {
	if !c.config.Enabled {
		return
	}

	for layer, rate := range snap.HitRates {
		c.hitRateGauge.With(prometheus.Labels{"layer": string(layer)}).Set(rate)
	}
	for layer, ms := range snap.LayerLatency {
		c.layerLatencyGauge.With(prometheus.Labels{"layer": string(layer)}).Set(ms)
	}
	c.cacheSizeGauge.Set(float64(snap.TotalSize))
	c.entryCountGauge.Set(float64(snap.TotalEntries))
	c.patternGauge.Set(float64(snap.PatternCount))
	c.pressureGauge.Set(pressureLevel(snap.Pressure))

	c.healthGauge.With(prometheus.Labels{"component": "overall"}).Set(float64(snap.HealthScore.Overall))
	c.healthGauge.With(prometheus.Labels{"component": "performance"}).Set(float64(snap.HealthScore.Components.Performance))
	c.healthGauge.With(prometheus.Labels{"component": "efficiency"}).Set(float64(snap.HealthScore.Components.Efficiency))
	c.healthGauge.With(prometheus.Labels{"component": "reliability"}).Set(float64(snap.HealthScore.Components.Reliability))
	c.healthGauge.With(prometheus.Labels{"component": "optimization"}).Set(float64(snap.HealthScore.Components.Optimization))
}

// Registry exposes the underlying registry, mainly for tests and for
// embedding the handler in an existing mux.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Helper methods

func (c *Collector) initMetrics() {
	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "layer", "status"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of cache operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"operation", "layer"},
	)

	c.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "requests_total",
			Help:      "Total number of cache get requests",
		},
		[]string{"type", "layer"},
	)

	c.evictionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "evictions_total",
			Help:      "Total number of entries selected for eviction",
		},
		[]string{"strategy"},
	)

	c.memoryFreed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "eviction_bytes_freed_total",
			Help:      "Total bytes freed by eviction",
		},
	)

	c.hitRateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "hit_rate",
			Help:      "Per-layer cache hit rate",
		},
		[]string{"layer"},
	)

	c.layerLatencyGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "layer_latency_milliseconds",
			Help:      "Per-layer average operation latency in milliseconds",
		},
		[]string{"layer"},
	)

	c.cacheSizeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "size_bytes",
			Help:      "Current total cached size in bytes",
		},
	)

	c.entryCountGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "entries",
			Help:      "Current number of cached entries",
		},
	)

	c.healthGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "health_score",
			Help:      "Cache health score by component, 0-100",
		},
		[]string{"component"},
	)

	c.patternGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "usage_patterns",
			Help:      "Number of detected usage patterns",
		},
	)

	c.pressureGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "memory_pressure_level",
			Help:      "Memory pressure level: 0 none through 4 critical",
		},
	)

	c.alertCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "alerts_total",
			Help:      "Total number of threshold alerts raised",
		},
		[]string{"layer", "metric"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.cacheRequests,
		c.evictionCounter,
		c.memoryFreed,
		c.hitRateGauge,
		c.layerLatencyGauge,
		c.cacheSizeGauge,
		c.entryCountGauge,
		c.healthGauge,
		c.patternGauge,
		c.pressureGauge,
		c.alertCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

func (c *Collector) refreshLoop(ctx context.Context) {
	interval := c.config.RefreshInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			fn := c.snapshot
			c.mu.RUnlock()
			if fn != nil {
				c.Refresh(fn())
			}
		}
	}
}

func pressureLevel(p types.MemoryPressure) float64 {
	switch p {
	case types.PressureNone:
		return 0
	case types.PressureLow:
		return 1
	case types.PressureMedium:
		return 2
	case types.PressureHigh:
		return 3
	case types.PressureCritical:
		return 4
	default:
		return 0
	}
}

// HTTP handlers

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"samplecache-metrics"}`))
}
