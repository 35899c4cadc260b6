package roomcomp

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchroederEstimateCleanExponentialDecay(t *testing.T) {
	// A bare exponential envelope with T60 = 0.8 s decays at exactly
	// -75 dB/s, so the fitted slope recovers 0.8 s almost exactly.
	rir := syntheticRIR(0.8, 0.5, 16000, nil)

	est := NewSchroederEstimator(16000)
	t60, rej := est.Estimate(rir)
	require.Nil(t, rej)
	assert.InDelta(t, 0.8, t60, 0.001)
}

func TestSchroederEstimateNoisyDecayWithinTolerance(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	rir := syntheticRIR(0.8, 0.5, 16000, rng)

	est := NewSchroederEstimator(16000)
	t60, rej := est.Estimate(rir)
	require.Nil(t, rej)
	assert.InDelta(t, 0.8, t60, 0.08, "estimate must land within 10%% of 0.8s")
}

func TestSchroederEstimateEmptyRIR(t *testing.T) {
	est := NewSchroederEstimator(16000)
	_, rej := est.Estimate(nil)
	require.NotNil(t, rej)
	assert.Equal(t, StepRIRWindow, rej.Step)
}

func TestSchroederEstimateZeroEnergy(t *testing.T) {
	est := NewSchroederEstimator(16000)
	_, rej := est.Estimate(make([]float64, 1000))
	require.NotNil(t, rej)
	assert.Equal(t, StepDecayCurve, rej.Step)
}

func TestSchroederEstimateNoDecayCrossing(t *testing.T) {
	// All energy at the very end keeps the decay curve at 0 dB until the
	// last sample, so the -5 dB crossing never precedes the -25 dB one.
	rir := make([]float64, 1000)
	rir[len(rir)-1] = 1

	est := NewSchroederEstimator(16000)
	_, rej := est.Estimate(rir)
	require.NotNil(t, rej)
	assert.Equal(t, StepDecayCurve, rej.Step)
}

func TestSchroederEstimateShortDecaySpan(t *testing.T) {
	// T60 = 20 ms at a 1 kHz sample rate crosses -5 to -25 dB in about
	// seven samples, under the ten-sample minimum.
	rir := syntheticRIR(0.02, 0.1, 1000, nil)

	est := NewSchroederEstimator(1000)
	_, rej := est.Estimate(rir)
	require.NotNil(t, rej)
	assert.Equal(t, StepDecayCurve, rej.Step)
}

func TestSchroederEstimateImplausiblyShortT60(t *testing.T) {
	// T60 = 50 ms decays fast enough for a clean fit but falls outside the
	// plausible [0.1s, 5.0s] range.
	rir := syntheticRIR(0.05, 0.2, 16000, nil)

	est := NewSchroederEstimator(16000)
	_, rej := est.Estimate(rir)
	require.NotNil(t, rej)
	assert.Equal(t, StepRange, rej.Step)
}

func TestSchroederEstimateImplausiblyLongT60(t *testing.T) {
	// T60 = 8 s needs ~3.3 s to reach -25 dB; give it 4 s of tail.
	rir := syntheticRIR(8.0, 4.0, 8000, nil)

	est := NewSchroederEstimator(8000)
	_, rej := est.Estimate(rir)
	require.NotNil(t, rej)
	assert.Equal(t, StepRange, rej.Step)
}

func TestT60MeasurementOK(t *testing.T) {
	var nilMeasurement *T60Measurement
	assert.False(t, nilMeasurement.OK())
	assert.False(t, (&T60Measurement{}).OK())
	assert.True(t, (&T60Measurement{Estimate: &T60Estimate{Broadband: 0.5}}).OK())
}
