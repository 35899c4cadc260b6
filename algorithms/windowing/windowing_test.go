package windowing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHannCoefficients(t *testing.T) {
	h := NewHann(8, false)
	coeffs := h.GetCoefficients()
	require.Len(t, coeffs, 8)

	// Periodic Hann starts at zero and never exceeds 1.
	assert.InDelta(t, 0.0, coeffs[0], 1e-12)
	for i, c := range coeffs {
		assert.GreaterOrEqual(t, c, 0.0, "coefficient %d", i)
		assert.LessOrEqual(t, c, 1.0, "coefficient %d", i)
	}
}

func TestHannSymmetric(t *testing.T) {
	h := NewHann(9, true)
	coeffs := h.GetCoefficients()

	// Symmetric window peaks at the center sample.
	assert.InDelta(t, 1.0, coeffs[4], 1e-12)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, coeffs[i], coeffs[8-i], 1e-12, "mirror pair %d", i)
	}
}

func TestHannApply(t *testing.T) {
	h := NewHann(4, false)

	signal := []float64{1, 1, 1, 1}
	windowed := h.Apply(signal)
	require.NotNil(t, windowed)
	assert.Equal(t, h.GetCoefficients(), windowed)

	// Input is untouched.
	assert.Equal(t, []float64{1, 1, 1, 1}, signal)

	// Length mismatch returns nil.
	assert.Nil(t, h.Apply([]float64{1, 2}))
}

func TestHannApplyInPlace(t *testing.T) {
	h := NewHann(4, false)

	signal := []float64{2, 2, 2, 2}
	err := h.ApplyInPlace(signal)
	require.NoError(t, err)
	for i, c := range h.GetCoefficients() {
		assert.InDelta(t, 2*c, signal[i], 1e-12)
	}

	err = h.ApplyInPlace([]float64{1})
	assert.Error(t, err)
}

func TestTukeyShape(t *testing.T) {
	tw := NewTukey(100, 0.25)
	coeffs := tw.GetCoefficients()
	require.Len(t, coeffs, 100)

	// Middle section is flat at 1.0.
	for i := 20; i < 80; i++ {
		assert.InDelta(t, 1.0, coeffs[i], 1e-12, "flat section index %d", i)
	}

	// Tapers rise from ~0 and stay within [0, 1].
	assert.Less(t, coeffs[0], 0.05)
	for i, c := range coeffs {
		assert.GreaterOrEqual(t, c, 0.0, "coefficient %d", i)
		assert.LessOrEqual(t, c, 1.0, "coefficient %d", i)
	}
}

func TestTukeyZeroAlphaIsRectangular(t *testing.T) {
	tw := NewTukey(16, 0.0)
	for i, c := range tw.GetCoefficients() {
		assert.Equal(t, 1.0, c, "coefficient %d", i)
	}
}

func TestTukeyAccessors(t *testing.T) {
	tw := NewTukey(64, 0.5)
	assert.Equal(t, 64, tw.GetSize())
	assert.Equal(t, 0.5, tw.GetAlpha())
	assert.Equal(t, "tukey", tw.GetType())
	assert.Equal(t, "hann", NewHann(8, false).GetType())
}
