package eviction

// Adaptive-weight feedback. The intelligent strategy keeps its own
// copy of the factor weights and nudges them based on observed
// eviction outcomes: an entry that is re-requested shortly after
// eviction was a bad pick, so the weights that argued for keeping it
// (recency, frequency) gain influence and the size weight loses some.

const outcomeLearningRate = 0.05

// AdjustAdaptiveWeights replaces individual adaptive weights, leaving
// unnamed factors untouched. The set is renormalized to sum to 1.
func (e *Engine) AdjustAdaptiveWeights(overrides WeightOverrides) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adaptive = e.adaptive.withOverrides(overrides).normalized()
}

// AdaptiveWeights reports the current adaptive weights as overrides
// (all fields set), mainly for diagnostics and tests.
func (e *Engine) AdaptiveWeights() WeightOverrides {
	e.mu.RLock()
	defer e.mu.RUnlock()

	w := e.adaptive
	return WeightOverrides{
		Recency:   &w.recency,
		Frequency: &w.frequency,
		Usage:     &w.usage,
		Quality:   &w.quality,
		Size:      &w.size,
	}
}

// RecordEvictionOutcome feeds back whether an evicted sample was
// requested again soon after eviction. Re-accesses shift weight toward
// recency and frequency and away from size; confirmed-cold evictions
// shift slightly the other way. No-op unless adaptive weights are
// enabled.
func (e *Engine) RecordEvictionOutcome(sampleID string, reaccessed bool) {
	_ = sampleID
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.config.AdaptiveWeights {
		return
	}

	w := e.adaptive
	if reaccessed {
		w.recency += outcomeLearningRate
		w.frequency += outcomeLearningRate
		w.size -= outcomeLearningRate
	} else {
		w.size += outcomeLearningRate / 2
		w.recency -= outcomeLearningRate / 4
		w.frequency -= outcomeLearningRate / 4
	}
	if w.size < 0 {
		w.size = 0
	}
	if w.recency < 0 {
		w.recency = 0
	}
	if w.frequency < 0 {
		w.frequency = 0
	}
	e.adaptive = w.normalized()
}
