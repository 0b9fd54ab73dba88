package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samplecache/samplecache/pkg/types"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e := NewEngine(cfg, nil)
	e.now = func() time.Time { return testNow }
	return e
}

func recordGets(e *Engine, sampleID string, layer types.CacheLayer, hits, misses int) {
	for i := 0; i < hits; i++ {
		e.RecordOperation(types.OpGet, sampleID, layer, 5*time.Millisecond, true, nil)
	}
	for i := 0; i < misses; i++ {
		e.RecordOperation(types.OpGet, sampleID, layer, 5*time.Millisecond, false, nil)
	}
}

func TestHitRates_Correctness(t *testing.T) {
	// Scenario: 8 successful and 2 failed gets on the memory layer.
	e := newTestEngine(t, DefaultConfig())
	recordGets(e, "s1", types.LayerMemory, 8, 2)

	rates := e.HitRates()
	assert.InDelta(t, 0.8, rates[types.LayerMemory], 1e-9)

	analytics := e.Analytics()
	assert.InDelta(t, 0.8, analytics.HitRates[types.LayerMemory], 1e-9)
}

func TestHitRates_DefaultsWithoutTraffic(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	rates := e.HitRates()
	assert.InDelta(t, 0.75, rates[types.LayerMemory], 1e-9)
	assert.InDelta(t, 0.65, rates[types.LayerIndexedDB], 1e-9)
	assert.InDelta(t, 0.45, rates[types.LayerServiceWorker], 1e-9)
}

func TestRecordOperation_SetAndDeleteDoNotFeedHitCounters(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	e.RecordOperation(types.OpSet, "s1", types.LayerMemory, time.Millisecond, true, nil)
	e.RecordOperation(types.OpDelete, "s1", types.LayerMemory, time.Millisecond, true, nil)

	// Still the no-data default, not 1.0.
	assert.InDelta(t, 0.75, e.HitRates()[types.LayerMemory], 1e-9)
	assert.Empty(t, e.UsagePatterns())
}

func TestRecordOperation_SetDoesNotFeedPatternDetection(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	for i := 0; i < 5; i++ {
		e.now = func() time.Time { return testNow.Add(time.Duration(i) * time.Second) }
		e.RecordOperation(types.OpSet, "s1", types.LayerMemory, time.Millisecond, true, nil)
	}
	assert.Empty(t, e.UsagePatterns())
}

func TestRecordOperation_CompressionTracking(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	// Before any data the documented default applies.
	assert.InDelta(t, 0.7, e.Analytics().CompressionEfficiency, 1e-9)

	e.RecordOperation(types.OpSet, "s1", types.LayerIndexedDB, time.Millisecond, true,
		types.CompressionMetadata{OriginalSize: 1000, CompressedSize: 600})
	e.RecordOperation(types.OpSet, "s2", types.LayerIndexedDB, time.Millisecond, true,
		types.CompressionMetadata{OriginalSize: 1000, CompressedSize: 400})

	assert.InDelta(t, 0.5, e.Analytics().CompressionEfficiency, 1e-9)
}

func TestRecordOperation_RawSizeFallback(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	e.RecordOperation(types.OpSet, "s1", types.LayerMemory, time.Millisecond, true,
		types.RawSizeMetadata{Size: 2048})

	analytics := e.Analytics()
	assert.Equal(t, int64(2048), analytics.TotalSize)
	// Raw sizes never feed the compression aggregate.
	assert.InDelta(t, 0.7, analytics.CompressionEfficiency, 1e-9)
}

func TestAnalytics_TotalsAndDistribution(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	e.RecordOperation(types.OpSet, "sized", types.LayerMemory, time.Millisecond, true,
		types.RawSizeMetadata{Size: 4096})
	e.RecordOperation(types.OpGet, "unsized", types.LayerIndexedDB, time.Millisecond, true, nil)

	analytics := e.Analytics()
	assert.Equal(t, 2, analytics.TotalEntries)
	// One recorded size plus one estimated sample.
	assert.Equal(t, int64(4096+sampleSizeEstimate), analytics.TotalSize)
	assert.Equal(t, int64(1), analytics.LayerDistribution[types.LayerMemory])
	assert.Equal(t, int64(1), analytics.LayerDistribution[types.LayerIndexedDB])
	assert.Equal(t, testNow, analytics.GeneratedAt)
}

func TestLatencyRingCappedAtLimit(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	for i := 0; i < latencyRingSize+100; i++ {
		e.RecordOperation(types.OpGet, "s1", types.LayerMemory,
			time.Duration(i)*time.Millisecond, true, nil)
	}

	e.mu.Lock()
	ls := e.layers[types.LayerMemory]
	require.Len(t, ls.latencies, latencyRingSize)
	avg := ls.averageLatency()
	e.mu.Unlock()

	// Oldest 100 samples were overwritten: remaining values are
	// 100..1099, averaging 599.5.
	assert.InDelta(t, 599.5, avg, 1e-6)
}

func TestErrorCountersIncrementOnFailure(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	e.RecordOperation(types.OpSet, "s1", types.LayerMemory, time.Millisecond, false, nil)
	e.RecordOperation(types.OpGet, "s1", types.LayerMemory, time.Millisecond, true, nil)

	analysis := e.PerformanceAnalysis()
	mem := analysis.Layers[types.LayerMemory]
	assert.InDelta(t, 0.5, mem.ErrorRate, 1e-9)
}

func TestStartStopDispose_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MonitoringInterval = 10 * time.Millisecond
	e := NewEngine(cfg, nil)

	e.Stop() // before start: no-op
	e.Start()
	e.Start() // second start: no-op
	time.Sleep(25 * time.Millisecond)
	e.Stop()
	e.Stop() // second stop: no-op

	e.Dispose()
	e.Dispose() // idempotent

	assert.Empty(t, e.UsagePatterns())
	assert.Zero(t, e.Analytics().TotalEntries)
}

func TestDisposeClearsState(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	recordGets(e, "s1", types.LayerMemory, 5, 5)
	e.Tick()

	e.Dispose()

	analytics := e.Analytics()
	assert.Zero(t, analytics.TotalEntries)
	assert.InDelta(t, 0.75, analytics.HitRates[types.LayerMemory], 1e-9)
	assert.Empty(t, e.RecentAlerts())
	assert.Empty(t, e.HealthHistory())
}

func TestDispose_DropsLateTimerPass(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	recordGets(e, "s1", types.LayerMemory, 5, 5)

	e.Start()
	e.mu.Lock()
	stale := e.stopCh
	e.mu.Unlock()
	e.Dispose()

	// A timer pass that fired before Dispose but acquired the lock
	// after it must not repopulate the cleared state.
	e.tickFromTimer(stale)

	assert.Empty(t, e.HealthHistory())
	assert.Empty(t, e.OptimizationRecommendations())

	// Restarting hands the loop a fresh channel, so passes run again.
	e.Start()
	e.Tick()
	assert.Len(t, e.HealthHistory(), 1)
	e.Stop()
}

func TestTick_RaisesHitRateAlert(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	recordGets(e, "s1", types.LayerMemory, 1, 9) // 10% hit rate

	e.Tick()

	alerts := e.RecentAlerts()
	require.NotEmpty(t, alerts)
	found := false
	for _, a := range alerts {
		if a.Layer == types.LayerMemory && a.Metric == "hit_rate" {
			found = true
			assert.InDelta(t, 0.1, a.Value, 1e-9)
			assert.InDelta(t, 0.8, a.Threshold, 1e-9)
			assert.NotEmpty(t, a.ID)
		}
	}
	assert.True(t, found, "expected a hit_rate alert for the memory layer")
}

func TestTick_RealTimeMonitoringDisabledSkipsAlerts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableRealTimeMonitoring = false
	e := newTestEngine(t, cfg)
	recordGets(e, "s1", types.LayerMemory, 1, 9)

	e.Tick()
	assert.Empty(t, e.RecentAlerts())
}

func TestAlertLogCapped(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	recordGets(e, "s1", types.LayerMemory, 0, 5)

	for i := 0; i < alertHistorySize+20; i++ {
		e.Tick()
	}
	assert.LessOrEqual(t, len(e.RecentAlerts()), alertHistorySize)
}

func TestRecordOperation_ManySamplesManyLayers(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("s%02d", i)
		layer := types.AllLayers()[i%3]
		e.RecordOperation(types.OpGet, id, layer, time.Millisecond, i%4 != 0, nil)
	}

	analytics := e.Analytics()
	assert.Equal(t, 30, analytics.TotalEntries)
	assert.Equal(t, int64(10), analytics.LayerDistribution[types.LayerMemory])
	assert.Equal(t, int64(10), analytics.LayerDistribution[types.LayerIndexedDB])
	assert.Equal(t, int64(10), analytics.LayerDistribution[types.LayerServiceWorker])
}
