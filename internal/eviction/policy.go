package eviction

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/samplecache/samplecache/pkg/types"
)

// Config controls the policy engine. Supplied once at construction;
// partial updates go through UpdateConfig.
type Config struct {
	Strategy types.EvictionStrategy `yaml:"strategy"`

	// Scoring factor weights. Used directly by usage_based and as the
	// adaptive-weight seed for intelligent.
	LRUWeight     float64 `yaml:"lru_weight"`
	LFUWeight     float64 `yaml:"lfu_weight"`
	UsageWeight   float64 `yaml:"usage_weight"`
	QualityWeight float64 `yaml:"quality_weight"`
	SizeWeight    float64 `yaml:"size_weight"`

	AdaptiveWeights     bool `yaml:"adaptive_weights"`
	MemoryPressureAware bool `yaml:"memory_pressure_aware"`
	QualityPreservation bool `yaml:"quality_preservation"`

	BatchSize          int           `yaml:"batch_size"`
	EmergencyBatchSize int           `yaml:"emergency_batch_size"`
	MinRetentionTime   time.Duration `yaml:"min_retention_time"`

	ProtectedSampleIDs []string `yaml:"protected_sample_ids"`
}

// DefaultConfig returns the production defaults for the policy engine.
func DefaultConfig() Config {
	return Config{
		Strategy:            types.StrategyIntelligent,
		LRUWeight:           0.30,
		LFUWeight:           0.25,
		UsageWeight:         0.20,
		QualityWeight:       0.15,
		SizeWeight:          0.10,
		AdaptiveWeights:     true,
		MemoryPressureAware: true,
		QualityPreservation: true,
		BatchSize:           10,
		EmergencyBatchSize:  50,
		MinRetentionTime:    5 * time.Minute,
	}
}

// ConfigUpdate carries a partial configuration change. Nil fields are
// left unchanged; a nil ProtectedSampleIDs keeps the current set.
type ConfigUpdate struct {
	Strategy            *types.EvictionStrategy
	AdaptiveWeights     *bool
	MemoryPressureAware *bool
	QualityPreservation *bool
	BatchSize           *int
	EmergencyBatchSize  *int
	MinRetentionTime    *time.Duration
	ProtectedSampleIDs  []string
	Weights             *WeightOverrides
}

// Engine scores cache entries and selects eviction candidates. It is
// pure over caller-supplied snapshots; its only internal state is
// running statistics and the adaptive-weight hints.
type Engine struct {
	mu        sync.RWMutex
	config    Config
	protected map[string]struct{}
	adaptive  factorWeights
	stats     types.EvictionStatistics
	logger    *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates a policy engine. A nil logger disables logging.
func NewEngine(config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		config:    config,
		protected: make(map[string]struct{}, len(config.ProtectedSampleIDs)),
		logger:    logger,
		now:       time.Now,
	}
	for _, id := range config.ProtectedSampleIDs {
		e.protected[id] = struct{}{}
	}
	e.adaptive = seedWeights(config)
	e.stats.ByStrategy = make(map[types.EvictionStrategy]int64)
	return e
}

// SelectEvictionCandidates scores every eligible entry in the snapshot
// and returns up to min(targetCount, batch size for the pressure
// level, eligible count) candidates, sorted ascending by score. It
// never fails: an empty or fully protected snapshot yields an empty
// list. Successful selections update the running statistics.
func (e *Engine) SelectEvictionCandidates(entries map[string]*types.CacheEntry, targetCount int, pressure types.MemoryPressure) []types.EvictionCandidate {
	if targetCount <= 0 || len(entries) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	candidates := make([]types.EvictionCandidate, 0, len(entries))
	for id, entry := range entries {
		if e.isProtectedLocked(id, entry) {
			continue
		}
		score := e.scoreLocked(entry, pressure)
		candidates = append(candidates, types.EvictionCandidate{
			SampleID:     id,
			Entry:        entry,
			Score:        score,
			Reason:       evictionReason(score, entry.Size),
			MemoryImpact: entry.Size,
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score < candidates[j].Score
		}
		return candidates[i].SampleID < candidates[j].SampleID
	})

	limit := targetCount
	if batch := e.batchSizeFor(pressure); batch < limit {
		limit = batch
	}
	if len(candidates) < limit {
		limit = len(candidates)
	}
	selected := candidates[:limit]

	e.recordSelectionLocked(selected, pressure)

	e.logger.Debug("eviction candidates selected",
		zap.Int("eligible", len(candidates)),
		zap.Int("selected", len(selected)),
		zap.String("strategy", string(e.config.Strategy)),
		zap.String("pressure", string(pressure)))

	return selected
}

// CalculateEvictionScore computes the eviction score for one entry
// under the configured strategy. Unknown strategies fall back to LRU;
// a nil entry scores zero. Never errors.
func (e *Engine) CalculateEvictionScore(sampleID string, entry *types.CacheEntry, pressure types.MemoryPressure) float64 {
	_ = sampleID
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scoreLocked(entry, pressure)
}

// IsProtectedFromEviction reports whether the entry may never be
// selected: explicitly protected, locked, or younger than the minimum
// retention time.
func (e *Engine) IsProtectedFromEviction(sampleID string, entry *types.CacheEntry) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isProtectedLocked(sampleID, entry)
}

func (e *Engine) isProtectedLocked(sampleID string, entry *types.CacheEntry) bool {
	if entry == nil {
		return true
	}
	if _, ok := e.protected[sampleID]; ok {
		return true
	}
	if entry.IsLocked {
		return true
	}
	return e.now().Sub(entry.CachedAt) < e.config.MinRetentionTime
}

// RecommendedStrategy suggests a strategy for the observed cache size,
// pressure level and traffic shape. Pure; no side effects.
func (e *Engine) RecommendedStrategy(cacheSize int, pressure types.MemoryPressure, pattern types.AccessPattern) types.EvictionStrategy {
	if pressure.IsEmergency() {
		return types.StrategyIntelligent
	}
	if cacheSize > 1000 {
		return types.StrategyIntelligent
	}
	switch pattern {
	case types.AccessSequential:
		return types.StrategyLRU
	case types.AccessRandom:
		return types.StrategyUsageBased
	default:
		return types.StrategyIntelligent
	}
}

// Statistics returns a copy of the running eviction statistics.
func (e *Engine) Statistics() types.EvictionStatistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := e.stats
	out.ByStrategy = make(map[types.EvictionStrategy]int64, len(e.stats.ByStrategy))
	for k, v := range e.stats.ByStrategy {
		out.ByStrategy[k] = v
	}
	return out
}

// ResetStatistics clears all running totals.
func (e *Engine) ResetStatistics() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = types.EvictionStatistics{
		ByStrategy: make(map[types.EvictionStrategy]int64),
	}
}

// UpdateConfig applies a partial configuration change. A strategy
// change re-seeds the adaptive weights from the configured factor
// weights.
func (e *Engine) UpdateConfig(update ConfigUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	strategyChanged := false
	if update.Strategy != nil && *update.Strategy != e.config.Strategy {
		e.config.Strategy = *update.Strategy
		strategyChanged = true
	}
	if update.AdaptiveWeights != nil {
		e.config.AdaptiveWeights = *update.AdaptiveWeights
	}
	if update.MemoryPressureAware != nil {
		e.config.MemoryPressureAware = *update.MemoryPressureAware
	}
	if update.QualityPreservation != nil {
		e.config.QualityPreservation = *update.QualityPreservation
	}
	if update.BatchSize != nil {
		e.config.BatchSize = *update.BatchSize
	}
	if update.EmergencyBatchSize != nil {
		e.config.EmergencyBatchSize = *update.EmergencyBatchSize
	}
	if update.MinRetentionTime != nil {
		e.config.MinRetentionTime = *update.MinRetentionTime
	}
	if update.ProtectedSampleIDs != nil {
		e.config.ProtectedSampleIDs = update.ProtectedSampleIDs
		e.protected = make(map[string]struct{}, len(update.ProtectedSampleIDs))
		for _, id := range update.ProtectedSampleIDs {
			e.protected[id] = struct{}{}
		}
	}
	if update.Weights != nil {
		applyOverrides(&e.config, *update.Weights)
		if !strategyChanged {
			e.adaptive = e.adaptive.withOverrides(*update.Weights)
		}
	}
	if strategyChanged {
		e.adaptive = seedWeights(e.config)
	}
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg := e.config
	cfg.ProtectedSampleIDs = append([]string(nil), e.config.ProtectedSampleIDs...)
	return cfg
}

func (e *Engine) batchSizeFor(pressure types.MemoryPressure) int {
	batch := e.config.BatchSize
	if pressure.IsEmergency() {
		batch = e.config.EmergencyBatchSize
	}
	if batch <= 0 {
		batch = 1
	}
	return batch
}

func (e *Engine) recordSelectionLocked(selected []types.EvictionCandidate, pressure types.MemoryPressure) {
	if len(selected) == 0 {
		return
	}

	var scoreSum float64
	var freed int64
	for _, c := range selected {
		scoreSum += c.Score
		freed += c.MemoryImpact
	}

	prev := float64(e.stats.TotalEvictions)
	count := int64(len(selected))
	e.stats.AverageScore = (e.stats.AverageScore*prev + scoreSum) / (prev + float64(count))
	e.stats.TotalEvictions += count
	e.stats.ByStrategy[e.config.Strategy] += count
	e.stats.MemoryFreed += freed
	if pressure.IsEmergency() {
		e.stats.EmergencyEvictions += count
	}
	e.stats.LastEviction = e.now()
}
