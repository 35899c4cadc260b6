// Package filters provides time-domain signal conditioning for the
// measurement paths.
package filters

import "math"

// defaultPole puts the -3 dB point near 20 Hz at 48 kHz.
const defaultPole = 0.9974

// DCBlocker removes the 0 Hz component from a signal with the standard
// one-pole, one-zero highpass
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio
//     Applications", https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
//
// DC blocking matters for:
// - Impulse-response conditioning before energy-decay integration
// - Removing microphone and ADC offset from measurement signals
type DCBlocker struct {
	pole float64 // R, in (0, 1); closer to 1 means a lower cutoff

	// Delay line
	x1 float64
	y1 float64
}

// NewDCBlocker creates a blocker with the default pole.
func NewDCBlocker() *DCBlocker {
	return &DCBlocker{pole: defaultPole}
}

// NewDCBlockerWithCutoff places the pole for a -3 dB point at cutoffHz,
// using the small-angle design R = 1 - 2*pi*fc/fs. The approximation holds
// for cutoffs far below Nyquist, the only regime a DC blocker runs in.
func NewDCBlockerWithCutoff(sampleRate int, cutoffHz float64) *DCBlocker {
	pole := defaultPole
	if sampleRate > 0 && cutoffHz > 0 {
		pole = 1.0 - 2.0*math.Pi*cutoffHz/float64(sampleRate)
		if pole >= 1.0 {
			pole = 0.999
		} else if pole <= 0.0 {
			pole = 0.001
		}
	}
	return &DCBlocker{pole: pole}
}

// Process filters a single sample.
func (dc *DCBlocker) Process(input float64) float64 {
	output := input - dc.x1 + dc.pole*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// Apply filters a buffer, continuing from the current delay line. Reset
// first when the buffer is not contiguous with the previous one.
func (dc *DCBlocker) Apply(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = dc.Process(sample)
	}
	return output
}

// Reset clears the delay line for a new segment.
func (dc *DCBlocker) Reset() {
	dc.x1 = 0
	dc.y1 = 0
}

// CutoffFrequency reports the approximate -3 dB point at the given rate,
// the inverse of the design formula: fc = (1-R)*fs/(2*pi).
func (dc *DCBlocker) CutoffFrequency(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return (1.0 - dc.pole) * float64(sampleRate) / (2.0 * math.Pi)
}
