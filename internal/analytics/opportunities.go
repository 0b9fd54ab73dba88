package analytics

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samplecache/samplecache/pkg/types"
)

// Access-count cuts for the eviction-strategy check.
const (
	rareAccessLimit       = 2  // at most this many accesses counts as rare
	frequentAccessMinimum = 10 // strictly more than this counts as frequent
)

// Poor-compression cut on the aggregate compressed/original ratio.
const poorCompressionRatio = 0.8

// Cross-layer imbalance cut: indexeddb latency more than this multiple
// of memory latency flags rebalancing.
const layerImbalanceFactor = 10.0

func newAlertID() string {
	return uuid.NewString()
}

// IdentifyOptimizationOpportunities regenerates the opportunity list
// from the four independent traffic checks, replacing the previous
// list. Each check contributes zero or one opportunity.
func (e *Engine) IdentifyOptimizationOpportunities() []types.OptimizationOpportunity {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.opportunities = e.identifyOpportunitiesLocked(e.now())

	out := make([]types.OptimizationOpportunity, len(e.opportunities))
	copy(out, e.opportunities)
	return out
}

// OptimizationRecommendations returns the opportunity list from the
// most recent regeneration without recomputing it.
func (e *Engine) OptimizationRecommendations() []types.OptimizationOpportunity {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.OptimizationOpportunity, len(e.opportunities))
	copy(out, e.opportunities)
	return out
}

func (e *Engine) identifyOpportunitiesLocked(now time.Time) []types.OptimizationOpportunity {
	var out []types.OptimizationOpportunity
	if o := e.routingOpportunityLocked(now); o != nil {
		out = append(out, *o)
	}
	if o := e.compressionOpportunityLocked(now); o != nil {
		out = append(out, *o)
	}
	if o := e.evictionOpportunityLocked(now); o != nil {
		out = append(out, *o)
	}
	if o := e.layerBalanceOpportunityLocked(now); o != nil {
		out = append(out, *o)
	}
	return out
}

// routingOpportunityLocked flags the worst layer whose observed hit
// rate sits below its configured minimum.
func (e *Engine) routingOpportunityLocked(now time.Time) *types.OptimizationOpportunity {
	var worstLayer types.CacheLayer
	var worstRate, worstThreshold float64
	found := false

	for layer, ls := range e.layers {
		total := ls.hits + ls.misses
		if total == 0 {
			continue
		}
		rate := float64(ls.hits) / float64(total)
		th := e.config.thresholdsFor(layer).MinHitRate
		if rate >= th {
			continue
		}
		if !found || rate/th < worstRate/worstThreshold {
			worstLayer, worstRate, worstThreshold = layer, rate, th
			found = true
		}
	}
	if !found {
		return nil
	}

	priority := types.PriorityMedium
	if worstRate < 0.8*worstThreshold {
		priority = types.PriorityHigh
	}
	return &types.OptimizationOpportunity{
		ID:       newAlertID(),
		Type:     types.OpportunityRouting,
		Priority: priority,
		Description: fmt.Sprintf("%s hit rate %.2f below target %.2f; revisit request routing",
			worstLayer, worstRate, worstThreshold),
		Benefit:    types.ExpectedBenefit{PerformanceGain: worstThreshold - worstRate, RelativeCost: 0.3},
		Complexity: "medium",
		ActionItems: []string{
			fmt.Sprintf("route hot samples away from %s", worstLayer),
			"review layer promotion rules",
		},
		DetectedAt: now,
	}
}

// compressionOpportunityLocked fires when the aggregate ratio is poor
// or no compression data has been recorded at all.
func (e *Engine) compressionOpportunityLocked(now time.Time) *types.OptimizationOpportunity {
	ratio := e.compressionRatioLocked()
	noData := e.originalBytes == 0
	if !noData && ratio <= poorCompressionRatio {
		return nil
	}

	description := fmt.Sprintf("aggregate compression ratio %.2f is poor; optimize compression strategy", ratio)
	var saved int64
	if noData {
		description = "no compression data recorded; enable and tune asset compression"
	} else {
		saved = int64(float64(e.originalBytes) * (ratio - defaultCompressionRatio))
	}

	return &types.OptimizationOpportunity{
		ID:          newAlertID(),
		Type:        types.OpportunityCompression,
		Priority:    types.PriorityMedium,
		Description: description,
		Benefit:     types.ExpectedBenefit{StorageSaved: saved, RelativeCost: 0.4},
		Complexity:  "medium",
		ActionItems: []string{
			"profile codec selection per quality tier",
			"record compression metadata on set operations",
		},
		DetectedAt: now,
	}
}

// evictionOpportunityLocked fires when rarely accessed samples
// outnumber frequently accessed ones at least two to one.
func (e *Engine) evictionOpportunityLocked(now time.Time) *types.OptimizationOpportunity {
	var rare, frequent int
	for _, count := range e.accessCounts {
		switch {
		case count <= rareAccessLimit:
			rare++
		case count > frequentAccessMinimum:
			frequent++
		}
	}
	if rare == 0 || rare < 2*frequent {
		return nil
	}

	return &types.OptimizationOpportunity{
		ID:       newAlertID(),
		Type:     types.OpportunityEviction,
		Priority: types.PriorityMedium,
		Description: fmt.Sprintf("%d rarely used samples vs %d frequently used; eviction policy retains cold entries",
			rare, frequent),
		Benefit:    types.ExpectedBenefit{PerformanceGain: 0.1, RelativeCost: 0.2},
		Complexity: "low",
		ActionItems: []string{
			"switch to the usage_based or intelligent eviction strategy",
			"lower the minimum retention time",
		},
		DetectedAt: now,
	}
}

// layerBalanceOpportunityLocked fires when indexeddb latency dwarfs
// memory latency, suggesting hot data sits in the wrong tier.
func (e *Engine) layerBalanceOpportunityLocked(now time.Time) *types.OptimizationOpportunity {
	mem, okMem := e.layers[types.LayerMemory]
	idb, okIdb := e.layers[types.LayerIndexedDB]
	if !okMem || !okIdb {
		return nil
	}
	memAvg := mem.averageLatency()
	idbAvg := idb.averageLatency()
	if memAvg <= 0 || idbAvg <= 0 || idbAvg <= layerImbalanceFactor*memAvg {
		return nil
	}

	return &types.OptimizationOpportunity{
		ID:       newAlertID(),
		Type:     types.OpportunityLayerBalance,
		Priority: types.PriorityHigh,
		Description: fmt.Sprintf("indexeddb latency %.1fms is over %.0fx memory latency %.1fms; rebalance hot samples",
			idbAvg, layerImbalanceFactor, memAvg),
		Benefit:    types.ExpectedBenefit{PerformanceGain: 0.25, RelativeCost: 0.5},
		Complexity: "high",
		ActionItems: []string{
			"promote frequently accessed samples into the memory layer",
			"review per-layer capacity budgets",
		},
		DetectedAt: now,
	}
}
