package eviction

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/samplecache/samplecache/pkg/types"
)

const (
	// Recency saturates at 24 hours since last access.
	recencyHorizonSeconds = 24 * 60 * 60
	// Frequency saturates at 100 recorded accesses.
	frequencySaturation = 100
	// Size factor saturates at 50 MiB.
	sizeSaturationBytes = 50 * 1024 * 1024
	// Play durations at or beyond 5 minutes count as fully played.
	playDurationHorizonSeconds = 300
)

// factorWeights holds the five scoring-factor weights used by the
// intelligent strategy. Tracked separately from the config so adaptive
// adjustment never mutates the configured seed values.
type factorWeights struct {
	recency   float64
	frequency float64
	usage     float64
	quality   float64
	size      float64
}

// WeightOverrides names optional per-factor weight replacements.
// Only non-nil fields are applied.
type WeightOverrides struct {
	Recency   *float64
	Frequency *float64
	Usage     *float64
	Quality   *float64
	Size      *float64
}

func seedWeights(cfg Config) factorWeights {
	return factorWeights{
		recency:   cfg.LRUWeight,
		frequency: cfg.LFUWeight,
		usage:     cfg.UsageWeight,
		quality:   cfg.QualityWeight,
		size:      cfg.SizeWeight,
	}
}

func applyOverrides(cfg *Config, o WeightOverrides) {
	if o.Recency != nil {
		cfg.LRUWeight = *o.Recency
	}
	if o.Frequency != nil {
		cfg.LFUWeight = *o.Frequency
	}
	if o.Usage != nil {
		cfg.UsageWeight = *o.Usage
	}
	if o.Quality != nil {
		cfg.QualityWeight = *o.Quality
	}
	if o.Size != nil {
		cfg.SizeWeight = *o.Size
	}
}

func (w factorWeights) withOverrides(o WeightOverrides) factorWeights {
	if o.Recency != nil {
		w.recency = *o.Recency
	}
	if o.Frequency != nil {
		w.frequency = *o.Frequency
	}
	if o.Usage != nil {
		w.usage = *o.Usage
	}
	if o.Quality != nil {
		w.quality = *o.Quality
	}
	if o.Size != nil {
		w.size = *o.Size
	}
	return w
}

func (w factorWeights) sum() float64 {
	return w.recency + w.frequency + w.usage + w.quality + w.size
}

// normalized rescales the weights to sum to 1. A degenerate all-zero
// set falls back to equal weights.
func (w factorWeights) normalized() factorWeights {
	s := w.sum()
	if s <= 0 {
		return factorWeights{recency: 0.2, frequency: 0.2, usage: 0.2, quality: 0.2, size: 0.2}
	}
	return factorWeights{
		recency:   w.recency / s,
		frequency: w.frequency / s,
		usage:     w.usage / s,
		quality:   w.quality / s,
		size:      w.size / s,
	}
}

// scaledForPressure biases the weights toward reclaiming bytes as
// pressure rises: the size weight grows and the quality weight shrinks
// (critical doubles size and halves quality), then the set is
// renormalized to sum to 1.
func (w factorWeights) scaledForPressure(pressure types.MemoryPressure) factorWeights {
	var sizeScale, qualityScale float64
	switch pressure {
	case types.PressureMedium:
		sizeScale, qualityScale = 1.25, 0.875
	case types.PressureHigh:
		sizeScale, qualityScale = 1.5, 0.75
	case types.PressureCritical:
		sizeScale, qualityScale = 2.0, 0.5
	default:
		return w.normalized()
	}
	w.size *= sizeScale
	w.quality *= qualityScale
	return w.normalized()
}

// scoreLocked dispatches to the configured strategy. Callers hold at
// least a read lock.
func (e *Engine) scoreLocked(entry *types.CacheEntry, pressure types.MemoryPressure) float64 {
	if entry == nil {
		return 0
	}
	switch e.config.Strategy {
	case types.StrategyLRU:
		return e.recencyScore(entry)
	case types.StrategyLFU:
		return frequencyScore(entry)
	case types.StrategyUsageBased:
		return e.usageBasedScore(entry)
	case types.StrategyIntelligent:
		return e.intelligentScore(entry, pressure)
	default:
		// Unknown strategy: LRU fallback, never an error.
		return e.recencyScore(entry)
	}
}

// recencyScore is the normalized time since last access, capped at 1.0
// at 24 hours. Note the direction: older entries score higher, and
// selection sorts ascending, so under the pure LRU strategy the most
// recently used entries are selected first. Deliberate; see DESIGN.md
// and TestSelectCandidates_LRUDirectionPinned before changing it.
func (e *Engine) recencyScore(entry *types.CacheEntry) float64 {
	since := e.now().Sub(entry.LastAccessed).Seconds()
	if since <= 0 {
		return 0
	}
	return clamp01(since / recencyHorizonSeconds)
}

// frequencyScore decreases as accesses accumulate: 1 − count/100,
// floored at 0.
func frequencyScore(entry *types.CacheEntry) float64 {
	s := 1 - float64(entry.AccessCount)/frequencySaturation
	if s < 0 {
		return 0
	}
	return s
}

func sizeScore(entry *types.CacheEntry) float64 {
	return clamp01(float64(entry.Size) / sizeSaturationBytes)
}

// qualityScore favors evicting lower-fidelity tiers when quality
// preservation is on; with preservation off the factor is neutral.
func (e *Engine) qualityScore(entry *types.CacheEntry) float64 {
	if !e.config.QualityPreservation {
		return 0.5
	}
	return 1 - float64(entry.QualityProfile.Rank())/5
}

// usagePatternScore favors entries listeners abandon: low completion
// rate and short average play duration raise the score.
func usagePatternScore(entry *types.CacheEntry) float64 {
	completion := clamp01(entry.CompletionRate)
	play := clamp01(entry.AveragePlayDuration / playDurationHorizonSeconds)
	return clamp01(1 - (0.6*completion + 0.4*play))
}

// usageBasedScore combines recency, frequency, size and quality with
// the four configured weights, normalized so the result stays in [0,1].
func (e *Engine) usageBasedScore(entry *types.CacheEntry) float64 {
	w := factorWeights{
		recency:   e.config.LRUWeight,
		frequency: e.config.LFUWeight,
		quality:   e.config.QualityWeight,
		size:      e.config.SizeWeight,
	}.normalized()

	return w.recency*e.recencyScore(entry) +
		w.frequency*frequencyScore(entry) +
		w.size*sizeScore(entry) +
		w.quality*e.qualityScore(entry)
}

// intelligentScore adds the usage-pattern factor and, when enabled,
// the adaptive weights and memory-pressure rescaling.
func (e *Engine) intelligentScore(entry *types.CacheEntry, pressure types.MemoryPressure) float64 {
	w := seedWeights(e.config)
	if e.config.AdaptiveWeights {
		w = e.adaptive
	}
	if e.config.MemoryPressureAware {
		w = w.scaledForPressure(pressure)
	} else {
		w = w.normalized()
	}

	return w.recency*e.recencyScore(entry) +
		w.frequency*frequencyScore(entry) +
		w.usage*usagePatternScore(entry) +
		w.size*sizeScore(entry) +
		w.quality*e.qualityScore(entry)
}

// evictionReason renders a human-readable justification from the score
// magnitude and the bytes eviction would free.
func evictionReason(score float64, size int64) string {
	freed := humanize.IBytes(uint64(size))
	switch {
	case score >= 0.8:
		return fmt.Sprintf("stale and rarely used; evicting frees %s", freed)
	case score >= 0.5:
		return fmt.Sprintf("low retention value; evicting frees %s", freed)
	case score >= 0.2:
		return fmt.Sprintf("moderate retention value; evicting frees %s", freed)
	default:
		return fmt.Sprintf("recently active; evict only under pressure (frees %s)", freed)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
