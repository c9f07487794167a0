package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 5.0, Mean([]float64{5}), 1e-9)
}

func TestMax(t *testing.T) {
	assert.Equal(t, 0.0, Max(nil))
	assert.InDelta(t, 9.5, Max([]float64{3, 9.5, -1}), 1e-9)
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, 3.0, Percentile(values, 50), 1e-9)
	assert.InDelta(t, 1.0, Percentile(values, 0), 1e-9)
	assert.InDelta(t, 5.0, Percentile(values, 100), 1e-9)
	// Interpolated rank: 95th of five values sits between 4 and 5.
	assert.InDelta(t, 4.8, Percentile(values, 95), 1e-9)

	// Clamped inputs and empty slice.
	assert.InDelta(t, 5.0, Percentile(values, 150), 1e-9)
	assert.InDelta(t, 1.0, Percentile(values, -10), 1e-9)
	assert.Equal(t, 0.0, Percentile(nil, 50))

	// Input order must not matter.
	assert.InDelta(t, 3.0, Percentile([]float64{5, 1, 4, 2, 3}, 50), 1e-9)
}
