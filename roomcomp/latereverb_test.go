package roomcomp

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-sentinel/feature"
)

func TestLateReverbDelta(t *testing.T) {
	// Delta covers roughly 50 ms of hops, never less than one frame.
	lr, err := NewLateReverbSubtraction(0.8, 10*time.Millisecond, 1.0, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 5, lr.Delta())

	lr, err = NewLateReverbSubtraction(0.8, 66*time.Millisecond, 1.0, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1, lr.Delta())

	lr, err = NewLateReverbSubtraction(0.8, 200*time.Millisecond, 1.0, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1, lr.Delta())
}

func TestLateReverbInvalidParams(t *testing.T) {
	_, err := NewLateReverbSubtraction(0, 66*time.Millisecond, 1.0, 0.1)
	assert.Error(t, err)

	_, err = NewLateReverbSubtraction(0.8, 0, 1.0, 0.1)
	assert.Error(t, err)
}

func TestLateReverbEarlyFramesPassThrough(t *testing.T) {
	lr, err := NewLateReverbSubtraction(0.8, 10*time.Millisecond, 1.0, 0.1)
	require.NoError(t, err)
	require.Equal(t, 5, lr.Delta())

	frames := sessionFrames(40, 8, 16)
	out := lr.Apply(frames)
	require.Len(t, out, 8)
	assertSimplex(t, out)

	for n := range 5 {
		assert.Same(t, frames[n], out[n], "frame %d has no delayed reference", n)
	}
	for n := 5; n < 8; n++ {
		assert.NotSame(t, frames[n], out[n], "frame %d must be corrected", n)
	}
}

func TestLateReverbConstantSpectrumClosedForm(t *testing.T) {
	// With a constant spectrum the gain reduces to 1 - beta*decay, which
	// pins down the corrected energies exactly.
	const t60 = 0.8
	hop := 66 * time.Millisecond
	beta := 1.0

	lr, err := NewLateReverbSubtraction(t60, hop, beta, 0.1)
	require.NoError(t, err)
	require.Equal(t, 1, lr.Delta())

	abs := []float64{2, 2, 2, 2}
	frames := []*feature.Vector{
		feature.New(abs, 48000, 0, 8000, 0),
		feature.New(abs, 48000, 0, 8000, 0),
	}

	out := lr.Apply(frames)
	assertSimplex(t, out)

	decay := math.Exp(-2 * hop.Seconds() / t60)
	wantGain := 1 - beta*decay
	for k := range abs {
		assert.InDelta(t, 2*wantGain, out[1].Absolute[k], 1e-9, "band %d", k)
	}
}

func TestLateReverbGainFloor(t *testing.T) {
	// A frame much quieter than its delayed reference would get a negative
	// gain; the floor clamps it instead of zeroing the band.
	lr, err := NewLateReverbSubtraction(2.0, 66*time.Millisecond, 1.0, 0.1)
	require.NoError(t, err)

	loud := feature.New([]float64{100, 100}, 48000, 0, 8000, 0)
	quiet := feature.New([]float64{0.001, 0.001}, 48000, 0, 8000, 0)

	out := lr.Apply([]*feature.Vector{loud, quiet})
	assertSimplex(t, out)
	for k := range quiet.Absolute {
		assert.InDelta(t, 0.001*0.1, out[1].Absolute[k], 1e-12, "band %d", k)
	}
}

func TestRealtimeT60SubtractionMatchesBatchDeltaOne(t *testing.T) {
	const t60 = 0.8
	hop := 66 * time.Millisecond

	batch, err := NewLateReverbSubtraction(t60, hop, 1.0, 0.1)
	require.NoError(t, err)
	require.Equal(t, 1, batch.Delta())

	streaming, err := NewRealtimeT60Subtraction(t60, hop, 1.0, 0.1)
	require.NoError(t, err)

	frames := sessionFrames(41, 6, 12)
	batchOut := batch.Apply(frames)

	for n, f := range frames {
		got := streaming.Process(f)
		require.NoError(t, got.Validate())
		for k := range got.Absolute {
			assert.InDelta(t, batchOut[n].Absolute[k], got.Absolute[k], 1e-12,
				"frame %d band %d", n, k)
		}
	}
}

func TestRealtimeT60SubtractionReset(t *testing.T) {
	rt, err := NewRealtimeT60Subtraction(0.8, 66*time.Millisecond, 1.0, 0.1)
	require.NoError(t, err)

	frames := sessionFrames(42, 3, 8)
	assert.Same(t, frames[0], rt.Process(frames[0]))
	assert.NotSame(t, frames[1], rt.Process(frames[1]))

	rt.Reset()
	assert.Same(t, frames[2], rt.Process(frames[2]), "first frame after reset passes through")
}
