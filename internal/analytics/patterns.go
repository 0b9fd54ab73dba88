package analytics

import (
	"fmt"
	"time"

	"github.com/samplecache/samplecache/pkg/types"
)

// Pattern classification boundaries on the average access interval.
const (
	hourlyPeriodLimit = 3 * time.Hour
	dailyPeriodLimit  = 72 * time.Hour
)

// Regularity cut: an interval sequence counts as regular when its
// variance stays below half the mean interval.
const regularityVarianceFactor = 0.5

// Confidence assigned to the degenerate all-zero-interval case (three
// or more accesses sharing one timestamp).
const degenerateConfidence = 0.9

// analyzeAccessPatternLocked inspects the access history of one sample
// and records or updates a regular-access pattern under the key
// regular_<sampleID>. Requires at least three recorded timestamps.
func (e *Engine) analyzeAccessPatternLocked(sampleID string, ts time.Time) {
	hist := e.accessHistory[sampleID]
	if len(hist) < 3 {
		return
	}

	intervals := make([]float64, 0, len(hist)-1)
	for i := 1; i < len(hist); i++ {
		intervals = append(intervals, float64(hist[i].Sub(hist[i-1]))/float64(time.Millisecond))
	}

	mean := meanOf(intervals)
	variance := varianceOf(intervals, mean)

	var confidence float64
	switch {
	case mean == 0:
		// Identical timestamps: no spread to measure, but three or more
		// hits at one instant is itself a strong signal.
		confidence = degenerateConfidence
	case variance < mean*regularityVarianceFactor:
		confidence = 1 - variance/mean
		if confidence < 0 {
			confidence = 0
		}
	default:
		return
	}

	avgInterval := time.Duration(mean * float64(time.Millisecond))
	period := classifyPeriod(avgInterval)

	key := "regular_" + sampleID
	if existing, ok := e.patterns[key]; ok {
		existing.Frequency = int64(len(hist))
		existing.Period = period
		existing.Confidence = confidence
		existing.DetectedAt = ts
		existing.Description = patternDescription(sampleID, period, avgInterval)
		return
	}

	e.patterns[key] = &types.UsagePattern{
		PatternID:   key,
		Description: patternDescription(sampleID, period, avgInterval),
		Frequency:   int64(len(hist)),
		Period:      period,
		Confidence:  confidence,
		DetectedAt:  ts,
		Examples:    []string{sampleID},
	}
	e.patternOrder = append(e.patternOrder, key)

	// FIFO eviction: the oldest-inserted pattern goes first, not the
	// least recently detected one.
	if e.config.MaxPatterns > 0 && len(e.patternOrder) > e.config.MaxPatterns {
		oldest := e.patternOrder[0]
		e.patternOrder = e.patternOrder[1:]
		delete(e.patterns, oldest)
	}
}

// refreshPatternsLocked re-evaluates every sample with enough history,
// so patterns pick up interval drift between accesses.
func (e *Engine) refreshPatternsLocked() {
	now := e.now()
	for sampleID, hist := range e.accessHistory {
		if len(hist) >= 3 {
			e.analyzeAccessPatternLocked(sampleID, now)
		}
	}
}

// UsagePatterns returns the detected patterns in insertion order.
func (e *Engine) UsagePatterns() []types.UsagePattern {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.UsagePattern, 0, len(e.patternOrder))
	for _, key := range e.patternOrder {
		if p, ok := e.patterns[key]; ok {
			cp := *p
			cp.Examples = append([]string(nil), p.Examples...)
			out = append(out, cp)
		}
	}
	return out
}

func classifyPeriod(avgInterval time.Duration) types.PatternPeriod {
	switch {
	case avgInterval < hourlyPeriodLimit:
		return types.PeriodHourly
	case avgInterval < dailyPeriodLimit:
		return types.PeriodDaily
	default:
		return types.PeriodWeekly
	}
}

func patternDescription(sampleID string, period types.PatternPeriod, avgInterval time.Duration) string {
	return fmt.Sprintf("regular %s access pattern for sample %s (avg interval %s)",
		period, sampleID, avgInterval.Round(time.Millisecond))
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// varianceOf is the population variance.
func varianceOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}
