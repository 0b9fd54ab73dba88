package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samplecache/samplecache/pkg/types"
)

func recordLatency(e *Engine, layer types.CacheLayer, latency time.Duration, n int) {
	for i := 0; i < n; i++ {
		e.RecordOperation(types.OpGet, "s", layer, latency, true, nil)
	}
}

func TestPerformanceAnalysis_BottleneckOnSlowLayer(t *testing.T) {
	// Scenario: indexeddb averages 150ms against a 100ms threshold.
	e := newTestEngine(t, DefaultConfig())
	recordLatency(e, types.LayerIndexedDB, 150*time.Millisecond, 10)

	analysis := e.PerformanceAnalysis()
	require.Len(t, analysis.Bottlenecks, 1)
	b := analysis.Bottlenecks[0]
	assert.Equal(t, "latency", b.Type)
	assert.Equal(t, types.LayerIndexedDB, b.Layer)
	assert.Equal(t, types.SeverityHigh, b.Severity)
	assert.InDelta(t, 150, b.AverageLatency, 1e-6)
	assert.InDelta(t, 100, b.Threshold, 1e-6)
}

func TestPerformanceAnalysis_BottleneckSeverityCritical(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	recordLatency(e, types.LayerIndexedDB, 250*time.Millisecond, 5)

	analysis := e.PerformanceAnalysis()
	require.Len(t, analysis.Bottlenecks, 1)
	assert.Equal(t, types.SeverityCritical, analysis.Bottlenecks[0].Severity)
}

func TestPerformanceAnalysis_NoBottleneckUnderThreshold(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	recordLatency(e, types.LayerMemory, 2*time.Millisecond, 10)

	analysis := e.PerformanceAnalysis()
	assert.Empty(t, analysis.Bottlenecks)
}

func TestPerformanceAnalysis_LayerData(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	recordGets(e, "s1", types.LayerMemory, 6, 4) // 60% hit rate, 5ms latencies

	analysis := e.PerformanceAnalysis()
	mem, ok := analysis.Layers[types.LayerMemory]
	require.True(t, ok)

	assert.InDelta(t, 0.6, mem.HitRate, 1e-9)
	assert.InDelta(t, 0.4, mem.MissRate, 1e-9)
	assert.InDelta(t, 5, mem.AverageLatency, 1e-6)
	assert.InDelta(t, 0.7, mem.Utilization, 1e-9) // hitRate+0.1
	assert.InDelta(t, 0.72, mem.Efficiency, 1e-9) // hitRate*1.2
	assert.Equal(t, layerCapacities[types.LayerMemory], mem.Capacity)
	assert.Greater(t, mem.Throughput, 0.0)
}

func TestPerformanceAnalysis_UtilizationAndEfficiencyCapped(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	recordGets(e, "s1", types.LayerMemory, 10, 0) // 100% hit rate

	analysis := e.PerformanceAnalysis()
	mem := analysis.Layers[types.LayerMemory]
	assert.InDelta(t, 1.0, mem.Utilization, 1e-9)
	assert.InDelta(t, 1.0, mem.Efficiency, 1e-9)
}

func TestPerformanceAnalysis_Predictions(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	recordLatency(e, types.LayerMemory, 40*time.Millisecond, 5)

	analysis := e.PerformanceAnalysis()
	require.Len(t, analysis.Predictions, 1)
	p := analysis.Predictions[0]
	assert.Equal(t, types.LayerMemory, p.Layer)
	assert.InDelta(t, 44, p.Predicted, 1e-6) // +10%
	assert.InDelta(t, 0.75, p.Confidence, 1e-9)
	assert.Equal(t, time.Hour, p.Horizon)
}

// tickWithLatency replaces the layer's recorded latencies so each tick
// snapshots a controlled average.
func tickWithLatency(e *Engine, layer types.CacheLayer, ms float64) {
	e.mu.Lock()
	ls, ok := e.layers[layer]
	if !ok {
		ls = newLayerStats()
		e.layers[layer] = ls
	}
	ls.latencies = []float64{ms}
	e.mu.Unlock()
	e.Tick()
}

func TestTrends_DegradingImprovingStable(t *testing.T) {
	tests := []struct {
		name      string
		latencies []float64
		want      types.TrendDirection
	}{
		{"degrading", []float64{100, 110, 130}, types.TrendDegrading},
		{"improving", []float64{130, 110, 80}, types.TrendImproving},
		{"stable", []float64{100, 104, 105}, types.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.EnableRealTimeMonitoring = false
			e := newTestEngine(t, cfg)

			for _, ms := range tt.latencies {
				tickWithLatency(e, types.LayerMemory, ms)
			}

			analysis := e.PerformanceAnalysis()
			require.Len(t, analysis.Trends, 1)
			trend := analysis.Trends[0]
			assert.Equal(t, types.LayerMemory, trend.Layer)
			assert.Equal(t, tt.want, trend.Direction)
		})
	}
}

func TestTrends_RequireThreeSnapshots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableRealTimeMonitoring = false
	e := newTestEngine(t, cfg)

	tickWithLatency(e, types.LayerMemory, 100)
	tickWithLatency(e, types.LayerMemory, 200)

	assert.Empty(t, e.PerformanceAnalysis().Trends)
}

func TestTrends_UseLastThreeSnapshots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableRealTimeMonitoring = false
	e := newTestEngine(t, cfg)

	// Early high-latency points must fall outside the trend window.
	for _, ms := range []float64{500, 400, 100, 100, 101} {
		tickWithLatency(e, types.LayerMemory, ms)
	}

	analysis := e.PerformanceAnalysis()
	require.Len(t, analysis.Trends, 1)
	assert.Equal(t, types.TrendStable, analysis.Trends[0].Direction)
	assert.InDelta(t, 0.01, analysis.Trends[0].Change, 1e-9)
}

func TestPerfHistoryCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableRealTimeMonitoring = false
	e := newTestEngine(t, cfg)

	for i := 0; i < perfHistorySize+10; i++ {
		tickWithLatency(e, types.LayerMemory, 10)
	}

	e.mu.Lock()
	histLen := len(e.perfHistory[types.LayerMemory])
	e.mu.Unlock()
	assert.Equal(t, perfHistorySize, histLen)
}
