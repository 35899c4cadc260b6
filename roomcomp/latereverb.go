package roomcomp

import (
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-sentinel/feature"
)

// LateReverbSubtraction attenuates the late-reverberant energy tail that
// a live room smears across analysis frames. It models the tail as a
// single-pole decay of an earlier frame's spectrum: for frame n and band
// k the estimate is decay * E[n-delta][k], and the frame is scaled by
//
//	gain = max(1 - beta*estimate/(E[n][k]+eps), floor)
//
// where delta covers roughly 50 ms of hops and decay = exp(-2*delta*hop/T60).
// Frames earlier than delta pass through unmodified.
type LateReverbSubtraction struct {
	delta int
	decay float64
	beta  float64
	floor float64
}

// NewLateReverbSubtraction creates a batch subtraction stage for a
// validated T60 and the extractor's hop duration.
func NewLateReverbSubtraction(t60 float64, hop time.Duration, beta, floor float64) (*LateReverbSubtraction, error) {
	if t60 <= 0 {
		return nil, fmt.Errorf("roomcomp: late reverb subtraction needs a positive t60, got %g", t60)
	}
	if hop <= 0 {
		return nil, fmt.Errorf("roomcomp: late reverb subtraction needs a positive hop, got %v", hop)
	}

	hopSec := hop.Seconds()
	delta := int(math.Round(0.05 / hopSec))
	if delta < 1 {
		delta = 1
	}

	return &LateReverbSubtraction{
		delta: delta,
		decay: math.Exp(-2 * float64(delta) * hopSec / t60),
		beta:  beta,
		floor: floor,
	}, nil
}

// Delta returns the prediction delay in frames.
func (lr *LateReverbSubtraction) Delta() int {
	return lr.delta
}

// Apply subtracts the estimated late-reverberant energy from every frame
// that has a delayed reference available. Inputs are never mutated.
func (lr *LateReverbSubtraction) Apply(frames []*feature.Vector) []*feature.Vector {
	out := make([]*feature.Vector, len(frames))
	for n, f := range frames {
		if n < lr.delta {
			out[n] = f
			continue
		}
		out[n] = f.WithAbsolute(lr.subtract(f.Absolute, frames[n-lr.delta].Absolute))
	}
	return out
}

// subtract applies the spectral gain against a delayed reference spectrum.
func (lr *LateReverbSubtraction) subtract(current, delayed []float64) []float64 {
	corrected := make([]float64, len(current))
	for k, e := range current {
		reverb := lr.decay * delayed[k]
		gain := 1 - lr.beta*reverb/(e+epsilon)
		if gain < lr.floor {
			gain = lr.floor
		}
		corrected[k] = e * gain
	}
	return corrected
}

// RealtimeT60Subtraction is the streaming counterpart: it keeps only the
// previous frame's absolute spectrum (delta = 1) and updates it on every
// call. Owned by exactly one streaming session.
type RealtimeT60Subtraction struct {
	decay float64
	beta  float64
	floor float64

	prev []float64
}

// NewRealtimeT60Subtraction creates a streaming subtraction stage. With
// delta fixed at one frame, decay = exp(-2*hop/T60).
func NewRealtimeT60Subtraction(t60 float64, hop time.Duration, beta, floor float64) (*RealtimeT60Subtraction, error) {
	if t60 <= 0 {
		return nil, fmt.Errorf("roomcomp: t60 subtraction needs a positive t60, got %g", t60)
	}
	if hop <= 0 {
		return nil, fmt.Errorf("roomcomp: t60 subtraction needs a positive hop, got %v", hop)
	}

	return &RealtimeT60Subtraction{
		decay: math.Exp(-2 * hop.Seconds() / t60),
		beta:  beta,
		floor: floor,
	}, nil
}

// Process corrects the frame against the previous frame's spectrum and
// stores the incoming spectrum for the next call. The first frame after a
// reset passes through unmodified.
func (rt *RealtimeT60Subtraction) Process(v *feature.Vector) *feature.Vector {
	if rt.prev == nil || len(rt.prev) != len(v.Absolute) {
		rt.prev = append([]float64(nil), v.Absolute...)
		return v
	}

	corrected := make([]float64, len(v.Absolute))
	for k, e := range v.Absolute {
		reverb := rt.decay * rt.prev[k]
		gain := 1 - rt.beta*reverb/(e+epsilon)
		if gain < rt.floor {
			gain = rt.floor
		}
		corrected[k] = e * gain
	}

	rt.prev = append(rt.prev[:0], v.Absolute...)
	return v.WithAbsolute(corrected)
}

// Reset drops the delayed reference for a new session.
func (rt *RealtimeT60Subtraction) Reset() {
	rt.prev = nil
}
