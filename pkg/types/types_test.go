package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityProfileRank(t *testing.T) {
	ordered := []QualityProfile{
		QualityPreview, QualityMobile, QualityStreaming,
		QualityPractice, QualityPerformance, QualityStudio,
	}
	for i, q := range ordered {
		assert.Equal(t, i, q.Rank(), "rank of %s", q)
	}
	assert.Equal(t, 0, QualityProfile("bogus").Rank(), "unknown profiles rank lowest")
}

func TestMemoryPressureIsEmergency(t *testing.T) {
	assert.False(t, PressureNone.IsEmergency())
	assert.False(t, PressureLow.IsEmergency())
	assert.False(t, PressureMedium.IsEmergency())
	assert.True(t, PressureHigh.IsEmergency())
	assert.True(t, PressureCritical.IsEmergency())
}

func TestAllLayers(t *testing.T) {
	assert.Equal(t, []CacheLayer{LayerMemory, LayerIndexedDB, LayerServiceWorker}, AllLayers())
}
