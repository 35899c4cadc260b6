package roomcomp

import (
	"fmt"

	"github.com/RyanBlaney/sonido-sentinel/feature"
)

// BiasMatch corrects the constant spectral difference between two
// recording conditions. It computes the per-band mean log-spectrum of a
// stored reference session and of the current measurement session, takes
// bias = mean_ref - mean_meas, and applies the bias to the measurement
// frames only.
//
// Unlike CMN this never touches the reference and only compensates the
// difference between the two sessions (microphone position, temperature,
// room), so the machine signature common to both survives.
type BiasMatch struct{}

// NewBiasMatch creates a batch bias-match stage
func NewBiasMatch() *BiasMatch {
	return &BiasMatch{}
}

// Apply corrects the measurement frames toward the reference session's
// spectral conditions. The reference is required; without it the caller
// should fall back to CMN or skip compensation. An empty measurement
// yields an empty output.
func (bm *BiasMatch) Apply(reference, measurement []*feature.Vector) ([]*feature.Vector, error) {
	if len(reference) == 0 {
		return nil, fmt.Errorf("roomcomp: bias match requires reference frames")
	}
	if len(measurement) == 0 {
		return nil, nil
	}
	if err := reference[0].Compatible(measurement[0]); err != nil {
		return nil, fmt.Errorf("roomcomp: bias match: %w", err)
	}

	refMean, err := meanLogSpectrum(reference)
	if err != nil {
		return nil, err
	}
	measMean, err := meanLogSpectrum(measurement)
	if err != nil {
		return nil, err
	}

	bias := make([]float64, len(refMean))
	for k := range bias {
		bias[k] = refMean[k] - measMean[k]
	}

	out := make([]*feature.Vector, len(measurement))
	for i, f := range measurement {
		out[i] = f.WithAbsolute(shiftLogDomain(f.Absolute, bias))
	}
	return out, nil
}

// RealtimeBiasMatch is the streaming counterpart: the reference mean is
// fixed from the stored session, the measurement mean is an exponentially
// smoothed running estimate, and the first WarmupFrames frames pass
// through unmodified. Owned by exactly one streaming session.
type RealtimeBiasMatch struct {
	refMean []float64
	alpha   float64
	warmup  int

	seen     int
	measMean []float64
}

// NewRealtimeBiasMatch creates a streaming bias-match accumulator against
// the given reference session.
func NewRealtimeBiasMatch(reference []*feature.Vector, alpha float64, warmupFrames int) (*RealtimeBiasMatch, error) {
	refMean, err := meanLogSpectrum(reference)
	if err != nil {
		return nil, fmt.Errorf("roomcomp: bias match requires reference frames: %w", err)
	}

	def := DefaultSettings()
	if alpha <= 0 || alpha >= 1 {
		alpha = def.SmoothingAlpha
	}
	if warmupFrames < 0 {
		warmupFrames = def.WarmupFrames
	}

	return &RealtimeBiasMatch{
		refMean: refMean,
		alpha:   alpha,
		warmup:  warmupFrames,
	}, nil
}

// Process updates the running measurement mean with the given frame and
// returns the bias-corrected frame, or the input itself during warm-up
// and on a band-count mismatch against the reference.
func (rb *RealtimeBiasMatch) Process(v *feature.Vector) *feature.Vector {
	if v.Bins != len(rb.refMean) {
		return v
	}

	logSpec := logSpectrum(v.Absolute)
	if rb.measMean == nil {
		rb.measMean = make([]float64, len(logSpec))
		copy(rb.measMean, logSpec)
	} else {
		for k, l := range logSpec {
			rb.measMean[k] += rb.alpha * (l - rb.measMean[k])
		}
	}

	rb.seen++
	if rb.seen <= rb.warmup {
		return v
	}

	bias := make([]float64, len(rb.refMean))
	for k := range bias {
		bias[k] = rb.refMean[k] - rb.measMean[k]
	}
	return v.WithAbsolute(shiftLogDomain(v.Absolute, bias))
}

// Reset clears the measurement estimate for a new session. The reference
// mean is kept.
func (rb *RealtimeBiasMatch) Reset() {
	rb.seen = 0
	rb.measMean = nil
}
