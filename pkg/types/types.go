// Package types defines the shared data model for the sample-cache
// core: cache entry metadata, eviction candidates and statistics,
// usage patterns, per-layer performance data, optimization
// opportunities and health scores. The engines exchange only these
// plain values with their collaborators; no bytes, no I/O handles.
package types

import (
	"time"
)

// CacheLayer identifies one of the storage tiers tracked independently
// for performance and hit-rate purposes.
type CacheLayer string

const (
	LayerMemory        CacheLayer = "memory"
	LayerIndexedDB     CacheLayer = "indexeddb"
	LayerServiceWorker CacheLayer = "serviceworker"
)

// AllLayers returns the tracked cache layers in priority order.
func AllLayers() []CacheLayer {
	return []CacheLayer{LayerMemory, LayerIndexedDB, LayerServiceWorker}
}

// MemoryPressure is a categorical urgency signal that scales eviction
// batch size and scoring weights.
type MemoryPressure string

const (
	PressureNone     MemoryPressure = "none"
	PressureLow      MemoryPressure = "low"
	PressureMedium   MemoryPressure = "medium"
	PressureHigh     MemoryPressure = "high"
	PressureCritical MemoryPressure = "critical"
)

// IsEmergency reports whether the pressure level switches eviction to
// the emergency batch size.
func (p MemoryPressure) IsEmergency() bool {
	return p == PressureHigh || p == PressureCritical
}

// QualityProfile is the fidelity tier of a cached audio asset.
type QualityProfile string

const (
	QualityPreview     QualityProfile = "preview"
	QualityMobile      QualityProfile = "mobile"
	QualityStreaming   QualityProfile = "streaming"
	QualityPractice    QualityProfile = "practice"
	QualityPerformance QualityProfile = "performance"
	QualityStudio      QualityProfile = "studio"
)

// Rank orders quality tiers from lowest (preview, 0) to highest
// (studio, 5). Unknown profiles rank lowest.
func (q QualityProfile) Rank() int {
	switch q {
	case QualityMobile:
		return 1
	case QualityStreaming:
		return 2
	case QualityPractice:
		return 3
	case QualityPerformance:
		return 4
	case QualityStudio:
		return 5
	default:
		return 0
	}
}

// Operation is a cache operation kind observed by the analytics engine.
type Operation string

const (
	OpGet    Operation = "get"
	OpSet    Operation = "set"
	OpDelete Operation = "delete"
)

// CacheEntry is read-only metadata about a cached sample. The entry
// store owns it; the engines only read snapshots.
type CacheEntry struct {
	SampleID            string         `json:"sample_id"`
	Size                int64          `json:"size"`
	CachedAt            time.Time      `json:"cached_at"`
	LastAccessed        time.Time      `json:"last_accessed"`
	AccessCount         int64          `json:"access_count"`
	QualityProfile      QualityProfile `json:"quality_profile"`
	IsLocked            bool           `json:"is_locked"`
	CompletionRate      float64        `json:"completion_rate"`       // 0..1
	AveragePlayDuration float64        `json:"average_play_duration"` // seconds
}

// EvictionStrategy selects the scoring algorithm used by the policy
// engine.
type EvictionStrategy string

const (
	StrategyLRU         EvictionStrategy = "lru"
	StrategyLFU         EvictionStrategy = "lfu"
	StrategyUsageBased  EvictionStrategy = "usage_based"
	StrategyIntelligent EvictionStrategy = "intelligent"
)

// EvictionCandidate is a cache entry proposed for removal, carrying a
// score and a freed-memory estimate. Created transiently per selection
// call; never persisted.
type EvictionCandidate struct {
	SampleID     string      `json:"sample_id"`
	Entry        *CacheEntry `json:"entry"`
	Score        float64     `json:"score"`
	Reason       string      `json:"reason"`
	MemoryImpact int64       `json:"memory_impact"`
}

// EvictionStatistics tracks running totals across selection calls.
type EvictionStatistics struct {
	TotalEvictions     int64                      `json:"total_evictions"`
	ByStrategy         map[EvictionStrategy]int64 `json:"by_strategy"`
	AverageScore       float64                    `json:"average_score"`
	MemoryFreed        int64                      `json:"memory_freed"`
	EmergencyEvictions int64                      `json:"emergency_evictions"`
	LastEviction       time.Time                  `json:"last_eviction"`
}

// AccessPattern is a coarse classification of overall cache traffic,
// used to recommend an eviction strategy.
type AccessPattern string

const (
	AccessSequential AccessPattern = "sequential"
	AccessRandom     AccessPattern = "random"
	AccessMixed      AccessPattern = "mixed"
)

// PatternPeriod classifies the recurrence interval of a usage pattern.
type PatternPeriod string

const (
	PeriodHourly PatternPeriod = "hourly"
	PeriodDaily  PatternPeriod = "daily"
	PeriodWeekly PatternPeriod = "weekly"
)

// UsagePattern is a statistically regular recurring access interval
// detected for a cached sample.
type UsagePattern struct {
	PatternID   string        `json:"pattern_id"`
	Description string        `json:"description"`
	Frequency   int64         `json:"frequency"` // observation count
	Period      PatternPeriod `json:"period"`
	Confidence  float64       `json:"confidence"` // 0..1
	DetectedAt  time.Time     `json:"detected_at"`
	Examples    []string      `json:"examples"` // sample IDs
}

// LayerPerformanceData is the derived per-layer performance view.
// Latencies are in milliseconds.
type LayerPerformanceData struct {
	Layer          CacheLayer `json:"layer"`
	HitRate        float64    `json:"hit_rate"`
	MissRate       float64    `json:"miss_rate"`
	AverageLatency float64    `json:"average_latency"`
	Throughput     float64    `json:"throughput"` // ops per second
	ErrorRate      float64    `json:"error_rate"`
	Capacity       int64      `json:"capacity"`
	Utilization    float64    `json:"utilization"`
	Efficiency     float64    `json:"efficiency"`
}

// BottleneckSeverity grades how far past its threshold a layer is.
type BottleneckSeverity string

const (
	SeverityHigh     BottleneckSeverity = "high"
	SeverityCritical BottleneckSeverity = "critical"
)

// Bottleneck flags a layer whose average latency meets or exceeds its
// configured threshold.
type Bottleneck struct {
	Type           string             `json:"type"` // "latency"
	Layer          CacheLayer         `json:"layer"`
	Severity       BottleneckSeverity `json:"severity"`
	AverageLatency float64            `json:"average_latency"` // ms
	Threshold      float64            `json:"threshold"`       // ms
	Description    string             `json:"description"`
}

// TrendDirection summarizes latency movement over recent snapshots.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDegrading TrendDirection = "degrading"
	TrendStable    TrendDirection = "stable"
)

// PerformanceTrend reports the relative latency change for one layer
// across the most recent performance-history snapshots.
type PerformanceTrend struct {
	Layer     CacheLayer     `json:"layer"`
	Metric    string         `json:"metric"` // "latency"
	Direction TrendDirection `json:"direction"`
	Change    float64        `json:"change"` // relative, e.g. 0.12 = +12%
}

// PerformancePrediction is a naive forward extrapolation of a layer
// metric.
type PerformancePrediction struct {
	Layer      CacheLayer    `json:"layer"`
	Metric     string        `json:"metric"`
	Predicted  float64       `json:"predicted"`
	Confidence float64       `json:"confidence"`
	Horizon    time.Duration `json:"horizon"`
}

// PerformanceAnalysis bundles the per-layer view with bottlenecks,
// trends and predictions.
type PerformanceAnalysis struct {
	Layers      map[CacheLayer]LayerPerformanceData `json:"layers"`
	Bottlenecks []Bottleneck                        `json:"bottlenecks"`
	Trends      []PerformanceTrend                  `json:"trends"`
	Predictions []PerformancePrediction             `json:"predictions"`
	GeneratedAt time.Time                           `json:"generated_at"`
}

// OpportunityType categorizes an optimization opportunity.
type OpportunityType string

const (
	OpportunityRouting      OpportunityType = "routing"
	OpportunityCompression  OpportunityType = "compression_tuning"
	OpportunityEviction     OpportunityType = "eviction_strategy"
	OpportunityLayerBalance OpportunityType = "layer_balancing"
)

// Priority grades opportunities and alerts.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ExpectedBenefit estimates the payoff of acting on an opportunity.
type ExpectedBenefit struct {
	PerformanceGain float64 `json:"performance_gain"` // relative
	StorageSaved    int64   `json:"storage_saved"`    // bytes
	RelativeCost    float64 `json:"relative_cost"`    // 0..1
}

// OptimizationOpportunity is a tuning suggestion derived from observed
// traffic. Regenerated each analysis tick; not cumulative.
type OptimizationOpportunity struct {
	ID          string          `json:"id"`
	Type        OpportunityType `json:"type"`
	Priority    Priority        `json:"priority"`
	Description string          `json:"description"`
	Benefit     ExpectedBenefit `json:"benefit"`
	Complexity  string          `json:"complexity"` // low/medium/high
	ActionItems []string        `json:"action_items"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// HealthComponents are the four 0-100 component scores of the
// composite health model.
type HealthComponents struct {
	Performance  int `json:"performance"`
	Efficiency   int `json:"efficiency"`
	Reliability  int `json:"reliability"`
	Optimization int `json:"optimization"`
}

// HealthFactor is one weighted contributor to the overall score.
type HealthFactor struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`  // 0..100
	Weight float64 `json:"weight"` // fractions summing to 1
}

// CacheHealthScore is the composite 0-100 operating-condition metric.
type CacheHealthScore struct {
	Overall         int              `json:"overall"`
	Components      HealthComponents `json:"components"`
	Factors         []HealthFactor   `json:"factors"`
	Recommendations []string         `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// AnalyticsSnapshot is the aggregate view returned by the analytics
// engine.
type AnalyticsSnapshot struct {
	TotalEntries          int                       `json:"total_entries"`
	TotalSize             int64                     `json:"total_size"`
	LayerDistribution     map[CacheLayer]int64      `json:"layer_distribution"`
	AverageAccessTime     map[CacheLayer]float64    `json:"average_access_time"` // ms
	HitRates              map[CacheLayer]float64    `json:"hit_rates"`
	CompressionEfficiency float64                   `json:"compression_efficiency"`
	PredictionAccuracy    float64                   `json:"prediction_accuracy"`
	SyncHealth            float64                   `json:"sync_health"`
	QualityDistribution   map[QualityProfile]int64  `json:"quality_distribution"`
	Trends                []PerformanceTrend        `json:"trends"`
	Suggestions           []OptimizationOpportunity `json:"suggestions"`
	GeneratedAt           time.Time                 `json:"generated_at"`
}

// Alert is a threshold violation observed during an analysis tick.
type Alert struct {
	ID        string     `json:"id"`
	Layer     CacheLayer `json:"layer"`
	Metric    string     `json:"metric"`
	Severity  Priority   `json:"severity"`
	Message   string     `json:"message"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
	Timestamp time.Time  `json:"timestamp"`
}

// OperationMetadata is the optional payload attached to a recorded
// operation. Exactly one concrete shape is supplied per call; nil
// means no metadata.
type OperationMetadata interface {
	isOperationMetadata()
}

// CompressionMetadata reports the before/after sizes of a compressed
// asset and feeds compression-efficiency tracking.
type CompressionMetadata struct {
	OriginalSize   int64 `json:"original_size"`
	CompressedSize int64 `json:"compressed_size"`
}

func (CompressionMetadata) isOperationMetadata() {}

// RawSizeMetadata reports the stored size of an uncompressed asset.
type RawSizeMetadata struct {
	Size int64 `json:"size"`
}

func (RawSizeMetadata) isOperationMetadata() {}
