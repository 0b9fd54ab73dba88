package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/samplecache/samplecache/pkg/types"
)

// Fixed per-layer capacity constants used in the performance view.
// These mirror the storage budgets of the tiers this core observes.
var layerCapacities = map[types.CacheLayer]int64{
	types.LayerMemory:        200 * 1024 * 1024,
	types.LayerIndexedDB:     2 * 1024 * 1024 * 1024,
	types.LayerServiceWorker: 500 * 1024 * 1024,
}

// Trend reporting cut: relative latency changes within ±10% count as
// stable.
const trendChangeThreshold = 0.10

// trendWindow is how many performance-history snapshots feed a trend.
const trendWindow = 3

// PerformanceAnalysis derives the per-layer performance view together
// with bottlenecks, trends and naive predictions.
func (e *Engine) PerformanceAnalysis() types.PerformanceAnalysis {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	layers := make(map[types.CacheLayer]types.LayerPerformanceData, len(e.layers))
	var bottlenecks []types.Bottleneck
	var predictions []types.PerformancePrediction

	// Deterministic layer order for the derived slices.
	ordered := make([]types.CacheLayer, 0, len(e.layers))
	for layer := range e.layers {
		ordered = append(ordered, layer)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	for _, layer := range ordered {
		ls := e.layers[layer]
		data := e.layerPerformanceLocked(layer, ls, now)
		layers[layer] = data

		th := e.config.thresholdsFor(layer)
		maxMs := float64(th.MaxLatency) / float64(time.Millisecond)
		if len(ls.latencies) > 0 && data.AverageLatency >= maxMs {
			severity := types.SeverityHigh
			if data.AverageLatency >= 2*maxMs {
				severity = types.SeverityCritical
			}
			bottlenecks = append(bottlenecks, types.Bottleneck{
				Type:           "latency",
				Layer:          layer,
				Severity:       severity,
				AverageLatency: data.AverageLatency,
				Threshold:      maxMs,
				Description: fmt.Sprintf("%s average latency %.1fms exceeds %.0fms threshold",
					layer, data.AverageLatency, maxMs),
			})
		}

		if len(ls.latencies) > 0 {
			predictions = append(predictions, types.PerformancePrediction{
				Layer:      layer,
				Metric:     "latency",
				Predicted:  data.AverageLatency * 1.1,
				Confidence: 0.75,
				Horizon:    time.Hour,
			})
		}
	}

	return types.PerformanceAnalysis{
		Layers:      layers,
		Bottlenecks: bottlenecks,
		Trends:      e.computeTrendsLocked(),
		Predictions: predictions,
		GeneratedAt: now,
	}
}

func (e *Engine) layerPerformanceLocked(layer types.CacheLayer, ls *layerStats, now time.Time) types.LayerPerformanceData {
	hitRate := e.hitRateLocked(layer)

	var errorRate float64
	if ls.ops > 0 {
		errorRate = float64(ls.errors) / float64(ls.ops)
	}

	utilization := hitRate + 0.1
	if utilization > 1 {
		utilization = 1
	}
	efficiency := hitRate * 1.2
	if efficiency > 1 {
		efficiency = 1
	}

	return types.LayerPerformanceData{
		Layer:          layer,
		HitRate:        hitRate,
		MissRate:       1 - hitRate,
		AverageLatency: ls.averageLatency(),
		Throughput:     ls.throughput(now),
		ErrorRate:      errorRate,
		Capacity:       layerCapacities[layer],
		Utilization:    utilization,
		Efficiency:     efficiency,
	}
}

// recordPerfHistoryLocked appends one performance snapshot per layer
// with traffic, keeping at most perfHistorySize points each.
func (e *Engine) recordPerfHistoryLocked(now time.Time) {
	for layer, ls := range e.layers {
		if len(ls.latencies) == 0 {
			continue
		}
		hist := append(e.perfHistory[layer], perfSnapshot{
			at:      now,
			latency: ls.averageLatency(),
			hitRate: e.hitRateLocked(layer),
		})
		if len(hist) > perfHistorySize {
			hist = hist[len(hist)-perfHistorySize:]
		}
		e.perfHistory[layer] = hist
	}
}

// computeTrendsLocked reports the relative latency change over the
// last three history snapshots per layer: improving below −10%,
// degrading above +10%, stable in between.
func (e *Engine) computeTrendsLocked() []types.PerformanceTrend {
	ordered := make([]types.CacheLayer, 0, len(e.perfHistory))
	for layer := range e.perfHistory {
		ordered = append(ordered, layer)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	var trends []types.PerformanceTrend
	for _, layer := range ordered {
		hist := e.perfHistory[layer]
		if len(hist) < trendWindow {
			continue
		}
		recent := hist[len(hist)-trendWindow:]
		first, last := recent[0].latency, recent[trendWindow-1].latency
		if first == 0 {
			continue
		}
		change := (last - first) / first

		direction := types.TrendStable
		if change > trendChangeThreshold {
			direction = types.TrendDegrading
		} else if change < -trendChangeThreshold {
			direction = types.TrendImproving
		}
		trends = append(trends, types.PerformanceTrend{
			Layer:     layer,
			Metric:    "latency",
			Direction: direction,
			Change:    change,
		})
	}
	return trends
}
