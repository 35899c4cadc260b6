// Package synth generates deterministic probe signals for acoustic
// measurement. The generators produce float64 sample buffers ready for
// playback or for use as matched-filter templates.
package synth

import (
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-sentinel/algorithms/windowing"
)

// LogSweep generates an exponential (logarithmic) sine sweep
//
// References:
// - Farina, A. (2000). "Simultaneous Measurement of Impulse Response and
//   Distortion with a Swept-Sine Technique"
//
// The exponential sweep spends equal time per octave, which keeps the
// excitation energy balanced across the frequency range of interest and
// makes the matched-filter response sharply peaked.
type LogSweep struct {
	startFreq  float64
	endFreq    float64
	duration   time.Duration
	taperAlpha float64
}

// NewLogSweep creates a sweep generator covering [startFreq, endFreq] Hz
// over the given duration. Endpoints are tapered with a Tukey window so the
// probe starts and ends at zero amplitude.
func NewLogSweep(startFreq, endFreq float64, duration time.Duration) *LogSweep {
	return &LogSweep{
		startFreq:  startFreq,
		endFreq:    endFreq,
		duration:   duration,
		taperAlpha: 0.25,
	}
}

// DefaultProbe returns the standard measurement sweep: 200 Hz to 8 kHz
// over 60 ms. Short enough to stay unobtrusive on a factory floor, wide
// enough to excite the bands the band-limited decay analysis needs.
func DefaultProbe() *LogSweep {
	return NewLogSweep(200, 8000, 60*time.Millisecond)
}

// Generate renders the sweep at the given sample rate.
func (ls *LogSweep) Generate(sampleRate int) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("log sweep: invalid sample rate %d", sampleRate)
	}
	if ls.startFreq <= 0 || ls.endFreq <= ls.startFreq {
		return nil, fmt.Errorf("log sweep: invalid frequency range [%.1f, %.1f]",
			ls.startFreq, ls.endFreq)
	}
	if ls.duration <= 0 {
		return nil, fmt.Errorf("log sweep: invalid duration %v", ls.duration)
	}

	durationSec := ls.duration.Seconds()
	numSamples := int(durationSec * float64(sampleRate))
	if numSamples < 2 {
		return nil, fmt.Errorf("log sweep: duration %v too short at %d Hz",
			ls.duration, sampleRate)
	}

	// Farina's exponential sweep:
	//   x(t) = sin(2*pi*f0*T/ln(f1/f0) * (e^(t/T * ln(f1/f0)) - 1))
	logRatio := math.Log(ls.endFreq / ls.startFreq)
	k := 2 * math.Pi * ls.startFreq * durationSec / logRatio

	sweep := make([]float64, numSamples)
	for i := range sweep {
		t := float64(i) / float64(sampleRate)
		sweep[i] = math.Sin(k * (math.Exp(t*logRatio/durationSec) - 1))
	}

	taper := windowing.NewTukey(numSamples, ls.taperAlpha)
	if err := taper.ApplyInPlace(sweep); err != nil {
		return nil, fmt.Errorf("log sweep: taper failed: %w", err)
	}

	return sweep, nil
}

// GetStartFreq returns the sweep start frequency in Hz
func (ls *LogSweep) GetStartFreq() float64 {
	return ls.startFreq
}

// GetEndFreq returns the sweep end frequency in Hz
func (ls *LogSweep) GetEndFreq() float64 {
	return ls.endFreq
}

// GetDuration returns the sweep duration
func (ls *LogSweep) GetDuration() time.Duration {
	return ls.duration
}
