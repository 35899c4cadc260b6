package roomcomp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-sentinel/feature"
)

func TestBiasMatchSelfComparisonIsIdentity(t *testing.T) {
	frames := sessionFrames(10, 12, 32)

	out, err := NewBiasMatch().Apply(frames, frames)
	require.NoError(t, err)
	require.Len(t, out, len(frames))
	assertSimplex(t, out)

	// Comparing a session against itself yields a zero bias, so the output
	// matches the input.
	for i := range frames {
		for k := range frames[i].Relative {
			assert.InDelta(t, frames[i].Relative[k], out[i].Relative[k], 1e-9,
				"frame %d band %d", i, k)
		}
	}
}

func TestBiasMatchRecoversKnownBias(t *testing.T) {
	reference := sessionFrames(11, 10, 16)

	// Color the measurement session with a fixed per-band gain, as a moved
	// microphone or a different room would.
	rng := rand.New(rand.NewSource(12))
	gain := make([]float64, 16)
	for k := range gain {
		gain[k] = math.Exp(rng.Float64()*2 - 1)
	}

	measurement := make([]*feature.Vector, len(reference))
	for i, r := range reference {
		colored := make([]float64, len(r.Absolute))
		for k, a := range r.Absolute {
			colored[k] = a * gain[k]
		}
		measurement[i] = r.WithAbsolute(colored)
	}

	out, err := NewBiasMatch().Apply(reference, measurement)
	require.NoError(t, err)
	assertSimplex(t, out)

	// The correction removes the coloration and recovers the reference.
	for i := range reference {
		for k := range reference[i].Absolute {
			assert.InDelta(t, reference[i].Absolute[k], out[i].Absolute[k], 1e-6,
				"frame %d band %d", i, k)
		}
	}
}

func TestBiasMatchPreconditions(t *testing.T) {
	frames := sessionFrames(13, 4, 8)

	_, err := NewBiasMatch().Apply(nil, frames)
	assert.Error(t, err)

	out, err := NewBiasMatch().Apply(frames, nil)
	assert.NoError(t, err)
	assert.Empty(t, out)

	incompatible := sessionFrames(14, 4, 12)
	_, err = NewBiasMatch().Apply(frames, incompatible)
	require.Error(t, err)
	assert.ErrorIs(t, err, feature.ErrIncompatible)
}

func TestRealtimeBiasMatchWarmupAndCorrection(t *testing.T) {
	// Identical reference frames make the expected correction exact: a
	// constant colored measurement must be pulled back onto the reference
	// spectrum once the running mean converges.
	refAbs := []float64{2, 4, 1, 3}
	reference := []*feature.Vector{
		feature.New(refAbs, 48000, 0, 8000, 0),
		feature.New(refAbs, 48000, 0, 8000, 0),
	}

	rb, err := NewRealtimeBiasMatch(reference, 0.5, 3)
	require.NoError(t, err)

	colored := feature.New([]float64{4, 8, 2, 6}, 48000, 0, 8000, 0)

	for i := range 3 {
		out := rb.Process(colored)
		assert.Same(t, colored, out, "warm-up frame %d must pass through", i)
	}

	var out *feature.Vector
	for range 60 {
		out = rb.Process(colored)
	}
	require.NoError(t, out.Validate())
	for k := range refAbs {
		assert.InDelta(t, refAbs[k], out.Absolute[k], 1e-6, "band %d", k)
	}
}

func TestRealtimeBiasMatchRequiresReference(t *testing.T) {
	_, err := NewRealtimeBiasMatch(nil, 0.02, 3)
	assert.Error(t, err)
}

func TestRealtimeBiasMatchMismatchedFramePassesThrough(t *testing.T) {
	rb, err := NewRealtimeBiasMatch(sessionFrames(15, 3, 8), 0.02, 0)
	require.NoError(t, err)

	wrong := feature.New([]float64{1, 2, 3}, 48000, 0, 8000, 0)
	assert.Same(t, wrong, rb.Process(wrong))
}

func TestRealtimeBiasMatchReset(t *testing.T) {
	reference := sessionFrames(16, 3, 8)
	rb, err := NewRealtimeBiasMatch(reference, 0.5, 1)
	require.NoError(t, err)

	frames := sessionFrames(17, 4, 8)
	for _, f := range frames {
		rb.Process(f)
	}
	rb.Reset()

	// Warm-up starts over; the reference mean survives the reset.
	assert.Same(t, frames[0], rb.Process(frames[0]))
	assert.NotNil(t, rb.refMean)
}
