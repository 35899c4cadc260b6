package roomcomp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-sentinel/feature"
)

// sessionFrames builds a deterministic batch of valid feature vectors.
func sessionFrames(seed int64, n, bins int) []*feature.Vector {
	rng := rand.New(rand.NewSource(seed))
	frames := make([]*feature.Vector, n)
	for i := range frames {
		abs := make([]float64, bins)
		for k := range abs {
			abs[k] = 0.1 + rng.Float64()
		}
		frames[i] = feature.New(abs, 48000, 0, 8000, 0.1)
	}
	return frames
}

// assertSimplex checks the invariant every compensation stage must
// preserve: non-negative relative entries summing to one.
func assertSimplex(t *testing.T, frames []*feature.Vector) {
	t.Helper()
	for i, f := range frames {
		require.NoError(t, f.Validate(), "frame %d", i)
	}
}

// syntheticRIR builds a strong direct-sound impulse followed by an
// exponentially decaying tail. The amplitude decay rate 6.9078/t60
// (ln(1000)/t60) takes the envelope down 60 dB over t60 seconds. A nil
// rng yields the bare envelope; otherwise the tail is noise-modulated.
func syntheticRIR(t60, duration float64, sampleRate int, rng *rand.Rand) []float64 {
	decayRate := 6.9078 / t60
	n := int(duration * float64(sampleRate))
	rir := make([]float64, n)
	rir[0] = 8
	for i := 1; i < n; i++ {
		amp := math.Exp(-decayRate * float64(i) / float64(sampleRate))
		if rng != nil {
			rir[i] = rng.NormFloat64() * amp
		} else {
			rir[i] = amp
		}
	}
	return rir
}
