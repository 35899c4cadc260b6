package roomcomp

import (
	"github.com/RyanBlaney/sonido-sentinel/feature"
)

// CMN implements batch cepstral mean normalization: the per-band mean
// log-spectrum of the whole session is treated as the room transfer
// function and subtracted from every frame.
//
// CMN removes the average spectral shape, so it is destructive for
// near-stationary signals whose common shape IS the machine signature.
// It stays disabled by default and serves as the fallback when bias
// matching has no stored reference session to work against.
type CMN struct{}

// NewCMN creates a batch CMN stage
func NewCMN() *CMN {
	return &CMN{}
}

// Apply normalizes a session of frames against its own mean log-spectrum.
// Input frames are never mutated; every output is a fresh vector with the
// simplex invariant restored. An empty input yields an empty output, and
// mismatched band counts across frames are a caller error.
func (c *CMN) Apply(frames []*feature.Vector) ([]*feature.Vector, error) {
	if len(frames) == 0 {
		return nil, nil
	}

	mean, err := meanLogSpectrum(frames)
	if err != nil {
		return nil, err
	}

	shift := make([]float64, len(mean))
	for k, m := range mean {
		shift[k] = -m
	}

	out := make([]*feature.Vector, len(frames))
	for i, f := range frames {
		out[i] = f.WithAbsolute(shiftLogDomain(f.Absolute, shift))
	}
	return out, nil
}

// RealtimeCMN is the streaming counterpart: it maintains an exponentially
// smoothed running log-mean instead of a batch mean, and passes the first
// WarmupFrames frames through unmodified while the estimate settles.
// Owned by exactly one streaming session.
type RealtimeCMN struct {
	alpha  float64
	warmup int

	seen    int
	logMean []float64
}

// NewRealtimeCMN creates a streaming CMN accumulator. Out-of-range
// parameters fall back to the documented defaults.
func NewRealtimeCMN(alpha float64, warmupFrames int) *RealtimeCMN {
	def := DefaultSettings()
	if alpha <= 0 || alpha >= 1 {
		alpha = def.SmoothingAlpha
	}
	if warmupFrames < 0 {
		warmupFrames = def.WarmupFrames
	}
	return &RealtimeCMN{
		alpha:  alpha,
		warmup: warmupFrames,
	}
}

// Process updates the running log-mean with the given frame and returns
// the corrected frame, or the input itself during warm-up.
func (rc *RealtimeCMN) Process(v *feature.Vector) *feature.Vector {
	logSpec := logSpectrum(v.Absolute)

	// A band-count change means the session was reconfigured; start over.
	if len(rc.logMean) != len(logSpec) {
		rc.Reset()
	}

	if rc.logMean == nil {
		rc.logMean = make([]float64, len(logSpec))
		copy(rc.logMean, logSpec)
	} else {
		for k, l := range logSpec {
			rc.logMean[k] += rc.alpha * (l - rc.logMean[k])
		}
	}

	rc.seen++
	if rc.seen <= rc.warmup {
		return v
	}

	shift := make([]float64, len(rc.logMean))
	for k, m := range rc.logMean {
		shift[k] = -m
	}
	return v.WithAbsolute(shiftLogDomain(v.Absolute, shift))
}

// Reset clears the accumulator for a new session.
func (rc *RealtimeCMN) Reset() {
	rc.seen = 0
	rc.logMean = nil
}
