package manager

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/samplecache/samplecache/internal/analytics"
	"github.com/samplecache/samplecache/internal/eviction"
	"github.com/samplecache/samplecache/internal/metrics"
	"github.com/samplecache/samplecache/pkg/types"
)

// Utilization cuts for the pressure ladder.
const (
	pressureLowAt      = 0.70
	pressureMediumAt   = 0.80
	pressureHighAt     = 0.90
	pressureCriticalAt = 0.97
)

// reaccessWindow is how long after an eviction a get for the same
// sample counts as a premature eviction for adaptive-weight feedback.
const reaccessWindow = 5 * time.Minute

// recentEvictionLimit bounds the eviction-feedback table.
const recentEvictionLimit = 500

// Config controls the cache manager.
type Config struct {
	// MaxCacheSize is the byte capacity the managed entries must fit in.
	MaxCacheSize int64
}

// Manager orchestrates the metadata store, the eviction policy engine
// and the analytics engine. It records every operation into analytics,
// derives memory pressure from store utilization and frees space
// through the policy engine when a Set would exceed capacity.
type Manager struct {
	mu        sync.Mutex
	config    Config
	store     *EntryStore
	evictor   *eviction.Engine
	analytics *analytics.Engine
	collector *metrics.Collector
	logger    *zap.Logger

	// recently evicted sample -> eviction time, for adaptive feedback
	recentEvictions map[string]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a cache manager. The collector may be nil;
// a nil logger disables logging.
func NewManager(config Config, store *EntryStore, evictor *eviction.Engine, analyticsEngine *analytics.Engine, collector *metrics.Collector, logger *zap.Logger) (*Manager, error) {
	if config.MaxCacheSize <= 0 {
		return nil, fmt.Errorf("max cache size must be positive, got %d", config.MaxCacheSize)
	}
	if store == nil || evictor == nil || analyticsEngine == nil {
		return nil, fmt.Errorf("store, eviction engine and analytics engine are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config:          config,
		store:           store,
		evictor:         evictor,
		analytics:       analyticsEngine,
		collector:       collector,
		logger:          logger,
		recentEvictions: make(map[string]time.Time),
		now:             time.Now,
	}, nil
}

// Start begins periodic analytics and wires the metrics snapshot.
func (m *Manager) Start() {
	m.analytics.Start()
	if m.collector != nil {
		m.collector.SetSnapshotFunc(m.MetricsSnapshot)
	}
}

// Stop halts periodic analytics.
func (m *Manager) Stop() {
	m.analytics.Stop()
}

// Get looks a sample up on the given layer. A hit touches the entry;
// a miss for a recently evicted sample feeds the adaptive-weight
// model.
func (m *Manager) Get(sampleID string, layer types.CacheLayer) (types.CacheEntry, bool) {
	start := m.now()

	entry, ok := m.store.Get(sampleID)
	if ok {
		m.store.Touch(sampleID)
	} else {
		m.noteEvictionReaccess(sampleID)
	}

	m.recordOperation(types.OpGet, sampleID, layer, m.now().Sub(start), ok, nil)
	if m.collector != nil {
		if ok {
			m.collector.RecordCacheHit(layer)
		} else {
			m.collector.RecordCacheMiss(layer)
		}
	}
	return entry, ok
}

// Set caches a sample's metadata, evicting lower-value entries first
// when the addition would exceed capacity. Metadata, when present,
// feeds compression tracking in analytics.
func (m *Manager) Set(sampleID string, layer types.CacheLayer, size int64, quality types.QualityProfile, metadata types.OperationMetadata) error {
	start := m.now()
	err := m.admit(sampleID, size, quality)
	m.recordOperation(types.OpSet, sampleID, layer, m.now().Sub(start), err == nil, metadata)
	return err
}

// admit runs the capacity check, any eviction and the upsert as one
// serialized step, so concurrent Sets cannot both pass the check and
// push the store past capacity.
func (m *Manager) admit(sampleID string, size int64, quality types.QualityProfile) error {
	if size <= 0 {
		return fmt.Errorf("sample %s has invalid size %d", sampleID, size)
	}
	if size > m.config.MaxCacheSize {
		return fmt.Errorf("sample %s (%s) exceeds cache capacity %s",
			sampleID, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(m.config.MaxCacheSize)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.store.TotalSize()
	if existing, ok := m.store.Get(sampleID); ok {
		current -= existing.Size
	}
	if overshoot := current + size - m.config.MaxCacheSize; overshoot > 0 {
		if freed := m.freeSpaceLocked(overshoot); freed < overshoot {
			return fmt.Errorf("could not free %s for sample %s",
				humanize.IBytes(uint64(overshoot)), sampleID)
		}
	}

	m.store.Upsert(sampleID, size, quality)
	return nil
}

// Delete removes a sample's metadata. Deleting an absent sample is
// recorded as a failed operation but returns no error.
func (m *Manager) Delete(sampleID string, layer types.CacheLayer) {
	start := m.now()
	_, ok := m.store.Remove(sampleID)
	m.recordOperation(types.OpDelete, sampleID, layer, m.now().Sub(start), ok, nil)
}

// Lock pins a sample against eviction; Unlock releases it.
func (m *Manager) Lock(sampleID string) bool   { return m.store.SetLocked(sampleID, true) }
func (m *Manager) Unlock(sampleID string) bool { return m.store.SetLocked(sampleID, false) }

// RecordPlayback feeds playback behavior into the usage-based scoring
// factors.
func (m *Manager) RecordPlayback(sampleID string, completionRate, averagePlaySeconds float64) bool {
	return m.store.UpdateUsage(sampleID, completionRate, averagePlaySeconds)
}

// Pressure maps store utilization onto the pressure ladder.
func (m *Manager) Pressure() types.MemoryPressure {
	return pressureForUtilization(float64(m.store.TotalSize()) / float64(m.config.MaxCacheSize))
}

func pressureForUtilization(u float64) types.MemoryPressure {
	switch {
	case u < pressureLowAt:
		return types.PressureNone
	case u < pressureMediumAt:
		return types.PressureLow
	case u < pressureHighAt:
		return types.PressureMedium
	case u < pressureCriticalAt:
		return types.PressureHigh
	default:
		return types.PressureCritical
	}
}

// EvictToTarget frees space until utilization drops to the target
// fraction, returning the bytes freed. Used by callers reacting to
// external memory-pressure signals.
func (m *Manager) EvictToTarget(targetUtilization float64) int64 {
	if targetUtilization < 0 {
		targetUtilization = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	target := int64(float64(m.config.MaxCacheSize) * targetUtilization)
	excess := m.store.TotalSize() - target
	if excess <= 0 {
		return 0
	}
	return m.freeSpaceLocked(excess)
}

// freeSpaceLocked evicts until at least needed bytes are freed or no
// eligible candidates remain. Callers hold m.mu.
func (m *Manager) freeSpaceLocked(needed int64) int64 {
	var freed int64
	for freed < needed {
		pressure := m.Pressure()
		snapshot := m.store.Snapshot()
		candidates := m.evictor.SelectEvictionCandidates(snapshot, len(snapshot), pressure)
		if len(candidates) == 0 {
			break
		}

		now := m.now()
		var batchFreed int64
		removed := 0
		for _, candidate := range candidates {
			size, ok := m.store.Remove(candidate.SampleID)
			if !ok {
				continue
			}
			removed++
			batchFreed += size
			m.rememberEvictionLocked(candidate.SampleID, now)
			if freed+batchFreed >= needed {
				break
			}
		}
		freed += batchFreed

		if m.collector != nil {
			m.collector.RecordEviction(m.evictor.Config().Strategy, removed, batchFreed)
		}
		m.logger.Info("evicted cache entries",
			zap.Int("count", removed),
			zap.String("freed", humanize.IBytes(uint64(batchFreed))),
			zap.String("pressure", string(pressure)))
	}
	return freed
}

// rememberEvictionLocked tracks the eviction for re-access feedback,
// flushing expired entries as not-reaccessed.
func (m *Manager) rememberEvictionLocked(sampleID string, now time.Time) {
	for id, at := range m.recentEvictions {
		if now.Sub(at) > reaccessWindow {
			m.evictor.RecordEvictionOutcome(id, false)
			delete(m.recentEvictions, id)
		}
	}
	if len(m.recentEvictions) >= recentEvictionLimit {
		return
	}
	m.recentEvictions[sampleID] = now
}

// noteEvictionReaccess reports a get-miss on a recently evicted sample
// to the adaptive-weight model.
func (m *Manager) noteEvictionReaccess(sampleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.recentEvictions[sampleID]
	if !ok {
		return
	}
	delete(m.recentEvictions, sampleID)
	m.evictor.RecordEvictionOutcome(sampleID, m.now().Sub(at) <= reaccessWindow)
}

func (m *Manager) recordOperation(op types.Operation, sampleID string, layer types.CacheLayer, duration time.Duration, success bool, metadata types.OperationMetadata) {
	m.analytics.RecordOperation(op, sampleID, layer, duration, success, metadata)
	if m.collector != nil {
		m.collector.RecordOperation(op, layer, duration, success)
	}
}

// MetricsSnapshot assembles the gauge values for the metrics
// collector.
func (m *Manager) MetricsSnapshot() metrics.Snapshot {
	snapshot := m.analytics.Analytics()
	return metrics.Snapshot{
		HitRates:     snapshot.HitRates,
		LayerLatency: snapshot.AverageAccessTime,
		TotalEntries: m.store.Len(),
		TotalSize:    m.store.TotalSize(),
		HealthScore:  m.analytics.CacheHealthScore(),
		PatternCount: len(m.analytics.UsagePatterns()),
		Pressure:     m.Pressure(),
	}
}
