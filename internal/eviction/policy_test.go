package eviction

import (
	"fmt"
	"math"
	"sort"
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

// entryAged returns an entry cached and last accessed the given
// durations before the fixed test clock.
func entryAged(id string, cachedAgo, accessedAgo time.Duration) *types.CacheEntry {
	return &types.CacheEntry{
		SampleID:       id,
		Size:           1024 * 1024,
		CachedAt:       testNow.Add(-cachedAgo),
		LastAccessed:   testNow.Add(-accessedAgo),
		AccessCount:    5,
		QualityProfile: types.QualityStreaming,
		CompletionRate: 0.5,
	}
}

func TestProtectionInvariant(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRetentionTime = 10 * time.Minute
	cfg.ProtectedSampleIDs = []string{"keep-me"}

	strategies := []types.EvictionStrategy{
		types.StrategyLRU, types.StrategyLFU,
		types.StrategyUsageBased, types.StrategyIntelligent,
	}
	pressures := []types.MemoryPressure{
		types.PressureNone, types.PressureLow, types.PressureMedium,
		types.PressureHigh, types.PressureCritical,
	}

	locked := entryAged("locked", time.Hour, time.Hour)
	locked.IsLocked = true
	young := entryAged("young", time.Minute, time.Minute)
	listed := entryAged("keep-me", time.Hour, time.Hour)
	evictable := entryAged("evictable", time.Hour, time.Hour)

	entries := map[string]*types.CacheEntry{
		"locked":    locked,
		"young":     young,
		"keep-me":   listed,
		"evictable": evictable,
	}

	for _, strategy := range strategies {
		for _, pressure := range pressures {
			cfg.Strategy = strategy
			e := newTestEngine(t, cfg)

			for target := 1; target <= len(entries)+2; target++ {
				got := e.SelectEvictionCandidates(entries, target, pressure)
				for _, c := range got {
					assert.Equal(t, "evictable", c.SampleID,
						"strategy=%s pressure=%s target=%d", strategy, pressure, target)
				}
			}
		}
	}
}

func TestSelectCandidates_LockedEntrySkippedEvenWithLowestScore(t *testing.T) {
	// Scenario: the locked entry would win on score alone; the unlocked
	// one must still be returned.
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyLRU
	cfg.MinRetentionTime = 0
	e := newTestEngine(t, cfg)

	locked := entryAged("locked", 48*time.Hour, 0) // score 0 under LRU
	locked.IsLocked = true
	unlocked := entryAged("unlocked", 48*time.Hour, 12*time.Hour)

	got := e.SelectEvictionCandidates(map[string]*types.CacheEntry{
		"locked":   locked,
		"unlocked": unlocked,
	}, 1, types.PressureNone)

	require.Len(t, got, 1)
	assert.Equal(t, "unlocked", got[0].SampleID)
}

func TestSelectCandidates_OrderingAndBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyLRU
	cfg.MinRetentionTime = 0
	cfg.BatchSize = 4
	cfg.EmergencyBatchSize = 8
	e := newTestEngine(t, cfg)

	entries := make(map[string]*types.CacheEntry)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("s%02d", i)
		entries[id] = entryAged(id, 72*time.Hour, time.Duration(i)*time.Hour)
	}

	tests := []struct {
		name     string
		target   int
		pressure types.MemoryPressure
		wantLen  int
	}{
		{"target below batch", 3, types.PressureNone, 3},
		{"batch caps target", 10, types.PressureLow, 4},
		{"emergency batch caps target", 10, types.PressureHigh, 8},
		{"emergency batch caps large target", 100, types.PressureCritical, 8},
		{"zero target", 0, types.PressureNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.SelectEvictionCandidates(entries, tt.target, tt.pressure)
			assert.Len(t, got, tt.wantLen)
			assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool {
				return got[i].Score < got[j].Score
			}), "candidates must be sorted ascending by score")
		})
	}
}

// TestSelectCandidates_LRUDirectionPinned pins the observed scoring
// direction of the pure LRU strategy: older entries score higher, and
// selection sorts ascending, so the most recently accessed entry is
// selected first. Changing this is a deliberate policy change; update
// DESIGN.md alongside this test.
func TestSelectCandidates_LRUDirectionPinned(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyLRU
	cfg.MinRetentionTime = 0
	e := newTestEngine(t, cfg)

	entries := map[string]*types.CacheEntry{
		"old":    entryAged("old", 72*time.Hour, 20*time.Hour),
		"recent": entryAged("recent", 72*time.Hour, time.Minute),
	}

	got := e.SelectEvictionCandidates(entries, 1, types.PressureNone)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].SampleID)

	oldScore := e.CalculateEvictionScore("old", entries["old"], types.PressureNone)
	recentScore := e.CalculateEvictionScore("recent", entries["recent"], types.PressureNone)
	assert.Greater(t, oldScore, recentScore)
}

func TestCalculateEvictionScore_LRU(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyLRU
	e := newTestEngine(t, cfg)

	tests := []struct {
		name        string
		accessedAgo time.Duration
		want        float64
	}{
		{"just accessed", 0, 0},
		{"six hours", 6 * time.Hour, 0.25},
		{"twelve hours", 12 * time.Hour, 0.5},
		{"at horizon", 24 * time.Hour, 1.0},
		{"beyond horizon capped", 90 * time.Hour, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := entryAged("s", 100*time.Hour, tt.accessedAgo)
			got := e.CalculateEvictionScore("s", entry, types.PressureNone)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculateEvictionScore_LFU(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyLFU
	e := newTestEngine(t, cfg)

	tests := []struct {
		count int64
		want  float64
	}{
		{0, 1.0},
		{25, 0.75},
		{100, 0},
		{500, 0}, // floored
	}
	for _, tt := range tests {
		entry := entryAged("s", time.Hour, time.Hour)
		entry.AccessCount = tt.count
		got := e.CalculateEvictionScore("s", entry, types.PressureNone)
		assert.InDelta(t, tt.want, got, 1e-9, "accessCount=%d", tt.count)
	}
}

func TestCalculateEvictionScore_UnknownStrategyFallsBackToLRU(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.EvictionStrategy("mystery")
	e := newTestEngine(t, cfg)

	cfgLRU := DefaultConfig()
	cfgLRU.Strategy = types.StrategyLRU
	ref := newTestEngine(t, cfgLRU)

	entry := entryAged("s", 48*time.Hour, 6*time.Hour)
	assert.Equal(t,
		ref.CalculateEvictionScore("s", entry, types.PressureNone),
		e.CalculateEvictionScore("s", entry, types.PressureNone))
}

func TestCalculateEvictionScore_NilEntryIsZero(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	assert.Zero(t, e.CalculateEvictionScore("s", nil, types.PressureCritical))
}

func TestIntelligentScore_PressureFavorsLargeEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyIntelligent
	cfg.AdaptiveWeights = false
	e := newTestEngine(t, cfg)

	small := entryAged("small", 48*time.Hour, 6*time.Hour)
	small.Size = 256 * 1024
	large := entryAged("large", 48*time.Hour, 6*time.Hour)
	large.Size = 200 * 1024 * 1024

	gapNone := e.CalculateEvictionScore("large", large, types.PressureNone) -
		e.CalculateEvictionScore("small", small, types.PressureNone)
	gapCritical := e.CalculateEvictionScore("large", large, types.PressureCritical) -
		e.CalculateEvictionScore("small", small, types.PressureCritical)

	assert.Greater(t, gapCritical, gapNone,
		"critical pressure should widen the score gap in favor of evicting large entries")
}

func TestIntelligentScore_UsageFactorFavorsAbandonedSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyIntelligent
	cfg.AdaptiveWeights = false
	cfg.MemoryPressureAware = false
	e := newTestEngine(t, cfg)

	abandoned := entryAged("abandoned", 48*time.Hour, 6*time.Hour)
	abandoned.CompletionRate = 0.05
	abandoned.AveragePlayDuration = 4
	finished := entryAged("finished", 48*time.Hour, 6*time.Hour)
	finished.CompletionRate = 0.97
	finished.AveragePlayDuration = 290

	assert.Greater(t,
		e.CalculateEvictionScore("abandoned", abandoned, types.PressureNone),
		e.CalculateEvictionScore("finished", finished, types.PressureNone))
}

func TestRecommendedStrategy(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	tests := []struct {
		name      string
		cacheSize int
		pressure  types.MemoryPressure
		pattern   types.AccessPattern
		want      types.EvictionStrategy
	}{
		{"critical pressure", 10, types.PressureCritical, types.AccessSequential, types.StrategyIntelligent},
		{"high pressure", 10, types.PressureHigh, types.AccessRandom, types.StrategyIntelligent},
		{"large cache", 5000, types.PressureNone, types.AccessSequential, types.StrategyIntelligent},
		{"sequential", 100, types.PressureLow, types.AccessSequential, types.StrategyLRU},
		{"random", 100, types.PressureLow, types.AccessRandom, types.StrategyUsageBased},
		{"mixed", 100, types.PressureNone, types.AccessMixed, types.StrategyIntelligent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.RecommendedStrategy(tt.cacheSize, tt.pressure, tt.pattern))
		})
	}
}

func TestStatisticsTracking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyLRU
	cfg.MinRetentionTime = 0
	e := newTestEngine(t, cfg)

	entries := map[string]*types.CacheEntry{
		"a": entryAged("a", 48*time.Hour, 20*time.Hour),
		"b": entryAged("b", 48*time.Hour, 10*time.Hour),
		"c": entryAged("c", 48*time.Hour, 2*time.Hour),
	}

	first := e.SelectEvictionCandidates(entries, 2, types.PressureNone)
	require.Len(t, first, 2)
	second := e.SelectEvictionCandidates(entries, 1, types.PressureCritical)
	require.Len(t, second, 1)

	stats := e.Statistics()
	assert.Equal(t, int64(3), stats.TotalEvictions)
	assert.Equal(t, int64(3), stats.ByStrategy[types.StrategyLRU])
	assert.Equal(t, int64(1), stats.EmergencyEvictions)
	assert.Equal(t, int64(3*1024*1024), stats.MemoryFreed)
	assert.Equal(t, testNow, stats.LastEviction)

	wantAvg := (first[0].Score + first[1].Score + second[0].Score) / 3
	assert.InDelta(t, wantAvg, stats.AverageScore, 1e-9)

	e.ResetStatistics()
	stats = e.Statistics()
	assert.Zero(t, stats.TotalEvictions)
	assert.Zero(t, stats.MemoryFreed)
	assert.Empty(t, stats.ByStrategy)
}

func TestSelectCandidates_EmptyAndFullyProtectedSnapshots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRetentionTime = time.Hour
	e := newTestEngine(t, cfg)

	assert.Empty(t, e.SelectEvictionCandidates(nil, 5, types.PressureHigh))
	assert.Empty(t, e.SelectEvictionCandidates(map[string]*types.CacheEntry{}, 5, types.PressureHigh))

	young := entryAged("young", time.Minute, time.Minute)
	assert.Empty(t, e.SelectEvictionCandidates(map[string]*types.CacheEntry{"young": young}, 5, types.PressureHigh))

	stats := e.Statistics()
	assert.Zero(t, stats.TotalEvictions, "empty selections must not touch statistics")
}

func TestUpdateConfig_PartialAndStrategyReseed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyIntelligent
	e := newTestEngine(t, cfg)

	// Drift the adaptive weights away from the seed.
	e.RecordEvictionOutcome("s", true)
	drifted := e.AdaptiveWeights()
	seeded := seedWeights(cfg).normalized()
	assert.Greater(t, math.Abs(seeded.recency-*drifted.Recency), 1e-9)

	newBatch := 25
	e.UpdateConfig(ConfigUpdate{BatchSize: &newBatch})
	assert.Equal(t, 25, e.Config().BatchSize)
	assert.Equal(t, types.StrategyIntelligent, e.Config().Strategy, "unset fields stay unchanged")

	// A strategy change re-seeds the adaptive weights.
	lru := types.StrategyLRU
	e.UpdateConfig(ConfigUpdate{Strategy: &lru})
	back := types.StrategyIntelligent
	e.UpdateConfig(ConfigUpdate{Strategy: &back})
	reseeded := e.AdaptiveWeights()
	assert.InDelta(t, cfg.LRUWeight, *reseeded.Recency, 1e-9)
}

func TestUpdateConfig_ProtectedListReplaced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRetentionTime = 0
	cfg.ProtectedSampleIDs = []string{"a"}
	e := newTestEngine(t, cfg)

	entry := entryAged("a", time.Hour, time.Hour)
	assert.True(t, e.IsProtectedFromEviction("a", entry))

	e.UpdateConfig(ConfigUpdate{ProtectedSampleIDs: []string{"b"}})
	assert.False(t, e.IsProtectedFromEviction("a", entry))
	assert.True(t, e.IsProtectedFromEviction("b", entryAged("b", time.Hour, time.Hour)))
}

func TestRecordEvictionOutcome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyIntelligent
	e := newTestEngine(t, cfg)

	before := e.AdaptiveWeights()
	e.RecordEvictionOutcome("s", true)
	after := e.AdaptiveWeights()

	assert.Greater(t, *after.Recency, *before.Recency)
	assert.Greater(t, *after.Frequency, *before.Frequency)
	assert.Less(t, *after.Size, *before.Size)

	sum := *after.Recency + *after.Frequency + *after.Usage + *after.Quality + *after.Size
	assert.InDelta(t, 1.0, sum, 1e-9, "adaptive weights stay normalized")
}

func TestRecordEvictionOutcome_DisabledIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptiveWeights = false
	e := newTestEngine(t, cfg)

	before := e.AdaptiveWeights()
	e.RecordEvictionOutcome("s", true)
	after := e.AdaptiveWeights()
	assert.Equal(t, *before.Recency, *after.Recency)
	assert.Equal(t, *before.Size, *after.Size)
}

func TestEvictionReasonMentionsFreedBytes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = types.StrategyLRU
	cfg.MinRetentionTime = 0
	e := newTestEngine(t, cfg)

	entry := entryAged("big", 48*time.Hour, 30*time.Hour)
	entry.Size = 12 * 1024 * 1024

	got := e.SelectEvictionCandidates(map[string]*types.CacheEntry{"big": entry}, 1, types.PressureNone)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Reason, "12 MiB")
	assert.Equal(t, entry.Size, got[0].MemoryImpact)
}
