package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchedFilterFindsTemplateOffset(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	template := make([]float64, 128)
	for i := range template {
		template[i] = rng.NormFloat64()
	}

	// Embed the template at a known offset inside low-level noise.
	recorded := make([]float64, 1024)
	for i := range recorded {
		recorded[i] = 0.01 * rng.NormFloat64()
	}
	const offset = 300
	for i, v := range template {
		recorded[offset+i] += v
	}

	mf := NewMatchedFilter()
	result, err := mf.Compute(recorded, template)
	require.NoError(t, err)

	assert.Equal(t, offset, result.PeakIndex)
	assert.Greater(t, result.PeakToMedian, 4.0)
	assert.Len(t, result.Response, len(recorded)-len(template)+1)
}

func TestMatchedFilterFlatResponseHasLowRatio(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	template := make([]float64, 64)
	for i := range template {
		template[i] = rng.NormFloat64()
	}

	// Pure noise with no template present: the peak should not stand far
	// above the median response.
	recorded := make([]float64, 2048)
	for i := range recorded {
		recorded[i] = rng.NormFloat64()
	}

	mf := NewMatchedFilter()
	result, err := mf.Compute(recorded, template)
	require.NoError(t, err)

	assert.Less(t, result.PeakToMedian, 10.0)
	assert.Greater(t, result.MedianAbs, 0.0)
}

func TestMatchedFilterSilentRecording(t *testing.T) {
	template := []float64{1, -1, 1, -1}
	recorded := make([]float64, 64)

	mf := NewMatchedFilter()
	result, err := mf.Compute(recorded, template)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.PeakValue)
	assert.Equal(t, 0.0, result.PeakToMedian)
}

func TestMatchedFilterInputValidation(t *testing.T) {
	mf := NewMatchedFilter()

	_, err := mf.Compute([]float64{1, 2, 3}, nil)
	assert.Error(t, err)

	_, err = mf.Compute([]float64{1, 2}, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestMatchedFilterExactMatchPeakValue(t *testing.T) {
	template := []float64{0.5, -0.25, 0.75}
	recorded := append(make([]float64, 10), template...)
	recorded = append(recorded, make([]float64, 10)...)

	mf := NewMatchedFilter()
	result, err := mf.Compute(recorded, template)
	require.NoError(t, err)

	expected := 0.5*0.5 + 0.25*0.25 + 0.75*0.75
	assert.Equal(t, 10, result.PeakIndex)
	assert.InDelta(t, expected, result.PeakValue, 1e-12)
	assert.False(t, math.IsInf(result.PeakToMedian, 1) && result.PeakValue == 0)
}
