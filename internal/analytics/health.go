package analytics

import (
	"math"
	"time"

	"github.com/samplecache/samplecache/pkg/types"
)

// Fixed component weights of the composite health model.
const (
	performanceWeight  = 0.30
	efficiencyWeight   = 0.20
	reliabilityWeight  = 0.25
	optimizationWeight = 0.25
)

// Recommendation triggers.
const (
	performanceRecommendBelow  = 70
	reliabilityRecommendBelow  = 90
	compressionRecommendAbove  = 0.7
	opportunityRecommendAbove  = 3
)

// CacheHealthScore computes the composite health score from current
// counters and a fresh opportunity pass, and appends it to the rolling
// history.
func (e *Engine) CacheHealthScore() types.CacheHealthScore {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.opportunities = e.identifyOpportunitiesLocked(now)
	return e.healthScoreLocked(now)
}

// HealthHistory returns a copy of the rolling health-score history,
// newest last.
func (e *Engine) HealthHistory() []types.CacheHealthScore {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.CacheHealthScore, len(e.healthHistory))
	copy(out, e.healthHistory)
	return out
}

func (e *Engine) healthScoreLocked(now time.Time) types.CacheHealthScore {
	performance := e.performanceComponentLocked()
	efficiency := e.efficiencyComponentLocked()
	reliability := e.reliabilityComponentLocked()
	optimization := optimizationComponent(e.opportunities)

	factors := []types.HealthFactor{
		{Name: "performance", Score: float64(performance), Weight: performanceWeight},
		{Name: "efficiency", Score: float64(efficiency), Weight: efficiencyWeight},
		{Name: "reliability", Score: float64(reliability), Weight: reliabilityWeight},
		{Name: "optimization", Score: float64(optimization), Weight: optimizationWeight},
	}

	var weighted float64
	for _, f := range factors {
		weighted += f.Score * f.Weight
	}
	overall := int(math.Round(weighted))
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	score := types.CacheHealthScore{
		Overall: overall,
		Components: types.HealthComponents{
			Performance:  performance,
			Efficiency:   efficiency,
			Reliability:  reliability,
			Optimization: optimization,
		},
		Factors:         factors,
		Recommendations: e.recommendationsLocked(performance, reliability),
		GeneratedAt:     now,
	}

	e.healthHistory = append(e.healthHistory, score)
	if len(e.healthHistory) > healthHistorySize {
		e.healthHistory = e.healthHistory[len(e.healthHistory)-healthHistorySize:]
	}
	return score
}

// performanceComponentLocked maps the average per-layer hit rate to
// 0-100.
func (e *Engine) performanceComponentLocked() int {
	rates := e.hitRatesLocked()
	var sum float64
	for _, r := range rates {
		sum += r
	}
	avg := sum / float64(len(rates))
	return clampScore(math.Round(avg * 100))
}

// efficiencyComponentLocked maps the compression ratio to 0-100: a
// ratio of 0.5 or better scores 100, 1.0 scores 0.
func (e *Engine) efficiencyComponentLocked() int {
	ratio := e.compressionRatioLocked()
	return clampScore(math.Round((1 - ratio) * 200))
}

func (e *Engine) reliabilityComponentLocked() int {
	if e.totalOps == 0 {
		return 100
	}
	rate := 1 - float64(e.totalErrors)/float64(e.totalOps)
	return clampScore(math.Round(rate * 100))
}

// optimizationComponent tiers by opportunity count; any critical
// opportunity forces the floor score.
func optimizationComponent(opportunities []types.OptimizationOpportunity) int {
	for _, o := range opportunities {
		if o.Priority == types.PriorityCritical {
			return 30
		}
	}
	switch n := len(opportunities); {
	case n == 0:
		return 100
	case n <= 2:
		return 90
	case n <= 4:
		return 70
	default:
		return 50
	}
}

func (e *Engine) recommendationsLocked(performance, reliability int) []string {
	var recs []string
	if performance < performanceRecommendBelow {
		recs = append(recs, "improve cache hit rates: review layer routing and warmup strategy")
	}
	if reliability < reliabilityRecommendBelow {
		recs = append(recs, "investigate failing cache operations; error rate is degrading reliability")
	}
	if e.compressionRatioLocked() > compressionRecommendAbove {
		recs = append(recs, "improve compression efficiency for cached audio assets")
	}
	if len(e.opportunities) > opportunityRecommendAbove {
		recs = append(recs, "address outstanding optimization opportunities")
	}
	return recs
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
