// Package roomcomp removes systematic spectral coloration that the
// recording environment imprints on machine sound, before any similarity
// scoring. It provides two independent correction families (cepstral mean
// normalization and session bias matching), reverberation-time measurement
// via a chirp probe, and late-reverberation spectral subtraction.
//
// All batch stages are pure functions over feature-vector sequences and
// return fresh vectors. The Realtime* variants are small stateful
// accumulators owned by exactly one streaming session, with explicit
// Reset and Process operations.
package roomcomp

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-sentinel/feature"
)

// epsilon floors every log and division in this package so degenerate
// (zero-energy) bins stay finite instead of raising.
const epsilon = 1e-10

// logSpectrum returns log(absolute[k] + epsilon) per band.
func logSpectrum(absolute []float64) []float64 {
	logSpec := make([]float64, len(absolute))
	for k, a := range absolute {
		logSpec[k] = math.Log(a + epsilon)
	}
	return logSpec
}

// meanLogSpectrum computes the per-band mean of log spectra across frames.
// All frames must share the same band count.
func meanLogSpectrum(frames []*feature.Vector) ([]float64, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("roomcomp: no frames")
	}

	bins := frames[0].Bins
	mean := make([]float64, bins)
	for i, f := range frames {
		if f.Bins != bins {
			return nil, fmt.Errorf("roomcomp: frame %d has %d bins, expected %d", i, f.Bins, bins)
		}
		for k, a := range f.Absolute {
			mean[k] += math.Log(a + epsilon)
		}
	}

	for k := range mean {
		mean[k] /= float64(len(frames))
	}
	return mean, nil
}

// shiftLogDomain applies a per-band additive shift in the log domain and
// returns the exponentiated result. Both correction families reduce to
// this: CMN shifts by the negated session mean, bias matching shifts by
// the reference-minus-measurement bias.
func shiftLogDomain(absolute, shift []float64) []float64 {
	corrected := make([]float64, len(absolute))
	for k, a := range absolute {
		corrected[k] = math.Exp(math.Log(a+epsilon) + shift[k])
	}
	return corrected
}
