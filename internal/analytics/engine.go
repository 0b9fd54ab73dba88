package analytics

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/samplecache/samplecache/pkg/types"
)

// Default rates substituted when a layer has no recorded traffic yet.
var defaultHitRates = map[types.CacheLayer]float64{
	types.LayerMemory:        0.75,
	types.LayerIndexedDB:     0.65,
	types.LayerServiceWorker: 0.45,
}

const (
	// defaultCompressionRatio is assumed until compression metadata is
	// recorded.
	defaultCompressionRatio = 0.7
	// latencyRingSize caps the per-layer latency ring buffer.
	latencyRingSize = 1000
	// accessHistorySize caps the per-sample access-timestamp history.
	accessHistorySize = 100
	// healthHistorySize caps the rolling health-score history.
	healthHistorySize = 100
	// alertHistorySize caps the rolling alert log.
	alertHistorySize = 100
	// perfHistorySize caps the per-layer performance-history snapshots.
	perfHistorySize = 60
	// throughputWindow is the sliding window for ops/sec throughput.
	throughputWindow = 60 * time.Second
	// sampleSizeEstimate stands in for samples whose size was never
	// reported.
	sampleSizeEstimate = 1024 * 1024
)

// LayerThresholds are the per-layer alerting/bottleneck thresholds.
type LayerThresholds struct {
	MinHitRate float64       `yaml:"min_hit_rate"`
	MaxLatency time.Duration `yaml:"max_latency"`
}

// Config controls the analytics engine.
type Config struct {
	MonitoringInterval         time.Duration                         `yaml:"monitoring_interval"`
	EnableUsagePatternAnalysis bool                                  `yaml:"enable_usage_pattern_analysis"`
	EnableRealTimeMonitoring   bool                                  `yaml:"enable_real_time_monitoring"`
	PerformanceThresholds      map[types.CacheLayer]LayerThresholds  `yaml:"performance_thresholds"`
	// MaxPatterns bounds the pattern table; 0 means unbounded. When the
	// cap is exceeded the oldest-inserted pattern is dropped.
	MaxPatterns int `yaml:"max_patterns"`
}

// DefaultConfig returns the production defaults for the analytics
// engine.
func DefaultConfig() Config {
	thresholds := make(map[types.CacheLayer]LayerThresholds, 3)
	for _, layer := range types.AllLayers() {
		thresholds[layer] = LayerThresholds{MinHitRate: 0.8, MaxLatency: 100 * time.Millisecond}
	}
	return Config{
		MonitoringInterval:         30 * time.Second,
		EnableUsagePatternAnalysis: true,
		EnableRealTimeMonitoring:   true,
		PerformanceThresholds:      thresholds,
		MaxPatterns:                100,
	}
}

// thresholdsFor falls back to the hardcoded defaults (0.8 hit rate,
// 100ms latency) when a layer has no configured thresholds.
func (c Config) thresholdsFor(layer types.CacheLayer) LayerThresholds {
	if t, ok := c.PerformanceThresholds[layer]; ok {
		if t.MinHitRate <= 0 {
			t.MinHitRate = 0.8
		}
		if t.MaxLatency <= 0 {
			t.MaxLatency = 100 * time.Millisecond
		}
		return t
	}
	return LayerThresholds{MinHitRate: 0.8, MaxLatency: 100 * time.Millisecond}
}

// layerStats holds the rolling counters for one cache layer.
type layerStats struct {
	hits   int64
	misses int64
	errors int64
	ops    int64

	// latency ring buffer, milliseconds
	latencies []float64
	latNext   int
	latFull   bool

	// recent op timestamps for the throughput window
	opTimes []time.Time

	samples map[string]struct{}
}

func newLayerStats() *layerStats {
	return &layerStats{
		latencies: make([]float64, 0, latencyRingSize),
		samples:   make(map[string]struct{}),
	}
}

func (ls *layerStats) recordLatency(ms float64) {
	if len(ls.latencies) < latencyRingSize {
		ls.latencies = append(ls.latencies, ms)
		return
	}
	ls.latencies[ls.latNext] = ms
	ls.latNext = (ls.latNext + 1) % latencyRingSize
	ls.latFull = true
}

func (ls *layerStats) averageLatency() float64 {
	if len(ls.latencies) == 0 {
		return 0
	}
	var sum float64
	for _, v := range ls.latencies {
		sum += v
	}
	return sum / float64(len(ls.latencies))
}

func (ls *layerStats) throughput(now time.Time) float64 {
	cutoff := now.Add(-throughputWindow)
	n := 0
	for _, t := range ls.opTimes {
		if t.After(cutoff) {
			n++
		}
	}
	return float64(n) / throughputWindow.Seconds()
}

func (ls *layerStats) pruneOpTimes(now time.Time) {
	cutoff := now.Add(-throughputWindow)
	i := 0
	for i < len(ls.opTimes) && !ls.opTimes[i].After(cutoff) {
		i++
	}
	if i > 0 {
		ls.opTimes = append(ls.opTimes[:0], ls.opTimes[i:]...)
	}
}

// perfSnapshot is one performance-history point for a layer.
type perfSnapshot struct {
	at      time.Time
	latency float64 // ms
	hitRate float64
}

// Engine observes cache traffic, detects usage patterns and derives
// performance diagnostics, optimization opportunities and a composite
// health score. All state is guarded by one mutex; the periodic tick
// is a single goroutine, so ticks never overlap.
type Engine struct {
	mu     sync.Mutex
	config Config
	logger *zap.Logger

	started bool
	stopCh  chan struct{}

	samples       map[string]struct{}
	sampleSizes   map[string]int64
	accessCounts  map[string]int64
	accessHistory map[string][]time.Time
	layers        map[types.CacheLayer]*layerStats

	patterns     map[string]*types.UsagePattern
	patternOrder []string // FIFO insertion order for MaxPatterns eviction

	compressedBytes int64
	originalBytes   int64

	perfHistory   map[types.CacheLayer][]perfSnapshot
	opportunities []types.OptimizationOpportunity
	alerts        []types.Alert
	healthHistory []types.CacheHealthScore

	totalOps    int64
	totalErrors int64

	// swappable for tests
	now   func() time.Time
	newID func() string
}

// NewEngine creates an analytics engine. A nil logger disables logging.
func NewEngine(config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MonitoringInterval <= 0 {
		config.MonitoringInterval = 30 * time.Second
	}
	e := &Engine{
		config: config,
		logger: logger,
		now:    time.Now,
		newID:  newAlertID,
	}
	e.initState()
	return e
}

func (e *Engine) initState() {
	e.samples = make(map[string]struct{})
	e.sampleSizes = make(map[string]int64)
	e.accessCounts = make(map[string]int64)
	e.accessHistory = make(map[string][]time.Time)
	e.layers = make(map[types.CacheLayer]*layerStats)
	e.patterns = make(map[string]*types.UsagePattern)
	e.patternOrder = nil
	e.compressedBytes = 0
	e.originalBytes = 0
	e.perfHistory = make(map[types.CacheLayer][]perfSnapshot)
	e.opportunities = nil
	e.alerts = nil
	e.healthHistory = nil
	e.totalOps = 0
	e.totalErrors = 0
}

// Start launches the periodic analysis tick. Calling Start on a
// running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return
	}
	e.started = true
	e.stopCh = make(chan struct{})
	go e.run(e.stopCh)
	e.logger.Info("cache analytics started",
		zap.Duration("interval", e.config.MonitoringInterval))
}

// Stop cancels the periodic tick. Stop before Start, or a second Stop,
// is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if !e.started {
		return
	}
	close(e.stopCh)
	e.started = false
	e.logger.Info("cache analytics stopped")
}

// Dispose tears down the timer and clears every internal map and
// counter. Idempotent.
func (e *Engine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.initState()
}

func (e *Engine) run(stopCh chan struct{}) {
	ticker := time.NewTicker(e.config.MonitoringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.tickFromTimer(stopCh)
		}
	}
}

// tickFromTimer is the timer-driven pass. The engine may have been
// stopped or disposed between the timer firing and the lock being
// acquired; a stale pass would repopulate state Dispose just cleared,
// so it is dropped.
func (e *Engine) tickFromTimer(stopCh chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.stopCh != stopCh {
		return
	}
	e.tickLocked()
}

// Tick runs one analysis pass: pattern refresh, performance-history
// update, opportunity regeneration, health recompute and threshold
// alerts. It is invoked by the periodic timer and may be called
// directly (tests, manual flushes).
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickLocked()
}

func (e *Engine) tickLocked() {
	now := e.now()
	if e.config.EnableUsagePatternAnalysis {
		e.refreshPatternsLocked()
	}
	e.recordPerfHistoryLocked(now)
	e.opportunities = e.identifyOpportunitiesLocked(now)
	e.healthScoreLocked(now)
	if e.config.EnableRealTimeMonitoring {
		e.checkThresholdsLocked(now)
	}
}

// RecordOperation records one cache operation. Get operations feed the
// per-sample access history and hit/miss counters; set and delete only
// update the per-layer latency and error counters. Compression
// metadata feeds efficiency tracking. Never fails.
func (e *Engine) RecordOperation(op types.Operation, sampleID string, layer types.CacheLayer, duration time.Duration, success bool, metadata types.OperationMetadata) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.totalOps++
	e.samples[sampleID] = struct{}{}

	ls, ok := e.layers[layer]
	if !ok {
		ls = newLayerStats()
		e.layers[layer] = ls
	}
	ls.ops++
	ls.samples[sampleID] = struct{}{}
	ls.recordLatency(float64(duration) / float64(time.Millisecond))
	ls.pruneOpTimes(now)
	ls.opTimes = append(ls.opTimes, now)
	if !success {
		ls.errors++
		e.totalErrors++
	}

	switch metadata := metadata.(type) {
	case types.CompressionMetadata:
		if metadata.OriginalSize > 0 && metadata.CompressedSize > 0 {
			e.originalBytes += metadata.OriginalSize
			e.compressedBytes += metadata.CompressedSize
			e.sampleSizes[sampleID] = metadata.CompressedSize
		}
	case types.RawSizeMetadata:
		if metadata.Size > 0 {
			e.sampleSizes[sampleID] = metadata.Size
		}
	}

	if op != types.OpGet {
		return
	}

	if success {
		ls.hits++
	} else {
		ls.misses++
	}
	e.accessCounts[sampleID]++

	hist := append(e.accessHistory[sampleID], now)
	if len(hist) > accessHistorySize {
		hist = hist[len(hist)-accessHistorySize:]
	}
	e.accessHistory[sampleID] = hist

	if e.config.EnableUsagePatternAnalysis {
		e.analyzeAccessPatternLocked(sampleID, now)
	}
}

// HitRates returns the per-layer hit rate, hits/(hits+misses).
// Layers without recorded get traffic report the documented defaults
// (memory 0.75, indexeddb 0.65, serviceworker 0.45).
func (e *Engine) HitRates() map[types.CacheLayer]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hitRatesLocked()
}

func (e *Engine) hitRatesLocked() map[types.CacheLayer]float64 {
	rates := make(map[types.CacheLayer]float64, len(defaultHitRates))
	for _, layer := range types.AllLayers() {
		rates[layer] = e.hitRateLocked(layer)
	}
	return rates
}

func (e *Engine) hitRateLocked(layer types.CacheLayer) float64 {
	if ls, ok := e.layers[layer]; ok {
		total := ls.hits + ls.misses
		if total > 0 {
			return float64(ls.hits) / float64(total)
		}
	}
	if d, ok := defaultHitRates[layer]; ok {
		return d
	}
	return 0
}

func (e *Engine) compressionRatioLocked() float64 {
	if e.originalBytes <= 0 {
		return defaultCompressionRatio
	}
	return float64(e.compressedBytes) / float64(e.originalBytes)
}

// Analytics aggregates the current analytics view.
func (e *Engine) Analytics() types.AnalyticsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()

	var totalSize int64
	for _, size := range e.sampleSizes {
		totalSize += size
	}
	// Estimate for samples whose size was never reported.
	if unsized := len(e.samples) - len(e.sampleSizes); unsized > 0 {
		totalSize += int64(unsized) * sampleSizeEstimate
	}

	distribution := make(map[types.CacheLayer]int64, len(e.layers))
	accessTimes := make(map[types.CacheLayer]float64, len(e.layers))
	for layer, ls := range e.layers {
		distribution[layer] = int64(len(ls.samples))
		accessTimes[layer] = ls.averageLatency()
	}

	suggestions := make([]types.OptimizationOpportunity, len(e.opportunities))
	copy(suggestions, e.opportunities)

	return types.AnalyticsSnapshot{
		TotalEntries:          len(e.samples),
		TotalSize:             totalSize,
		LayerDistribution:     distribution,
		AverageAccessTime:     accessTimes,
		HitRates:              e.hitRatesLocked(),
		CompressionEfficiency: e.compressionRatioLocked(),
		// Placeholders until the prediction and sync subsystems report
		// real figures.
		PredictionAccuracy:  0.8,
		SyncHealth:          1.0,
		QualityDistribution: make(map[types.QualityProfile]int64),
		Trends:              e.computeTrendsLocked(),
		Suggestions:         suggestions,
		GeneratedAt:         now,
	}
}

// RecentAlerts returns a copy of the rolling threshold-alert log,
// newest last.
func (e *Engine) RecentAlerts() []types.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.Alert, len(e.alerts))
	copy(out, e.alerts)
	return out
}

// checkThresholdsLocked raises alerts for layers violating their hit
// rate or latency thresholds. Only layers with recorded traffic are
// checked.
func (e *Engine) checkThresholdsLocked(now time.Time) {
	for layer, ls := range e.layers {
		th := e.config.thresholdsFor(layer)

		if total := ls.hits + ls.misses; total > 0 {
			rate := float64(ls.hits) / float64(total)
			if rate < th.MinHitRate {
				e.appendAlertLocked(types.Alert{
					ID:        e.newID(),
					Layer:     layer,
					Metric:    "hit_rate",
					Severity:  types.PriorityHigh,
					Message:   "hit rate below threshold",
					Value:     rate,
					Threshold: th.MinHitRate,
					Timestamp: now,
				})
			}
		}

		maxMs := float64(th.MaxLatency) / float64(time.Millisecond)
		if avg := ls.averageLatency(); len(ls.latencies) > 0 && avg >= maxMs {
			e.appendAlertLocked(types.Alert{
				ID:        e.newID(),
				Layer:     layer,
				Metric:    "latency",
				Severity:  types.PriorityHigh,
				Message:   "average latency at or above threshold",
				Value:     avg,
				Threshold: maxMs,
				Timestamp: now,
			})
		}
	}
}

func (e *Engine) appendAlertLocked(alert types.Alert) {
	e.alerts = append(e.alerts, alert)
	if len(e.alerts) > alertHistorySize {
		e.alerts = e.alerts[len(e.alerts)-alertHistorySize:]
	}
	e.logger.Warn("cache threshold alert",
		zap.String("layer", string(alert.Layer)),
		zap.String("metric", alert.Metric),
		zap.Float64("value", alert.Value),
		zap.Float64("threshold", alert.Threshold))
}
