// Package feature defines the spectral-energy representation shared by
// reference training and live diagnosis. A Vector holds one analysis window
// of audio reduced to a fixed number of frequency bands, in both absolute
// (energy) and relative (simplex) form.
package feature

import (
	"errors"
	"fmt"
	"math"
)

// SimplexTolerance bounds the allowed deviation of sum(Relative) from 1.
const SimplexTolerance = 1e-6

// minEnergySum is the threshold below which a frame is treated as silent
// and mapped to the uniform simplex.
const minEnergySum = 1e-12

// ErrIncompatible indicates two vectors that cannot be compared because
// they were extracted under different session parameters.
var ErrIncompatible = errors.New("feature: incompatible vectors")

// Vector is one analysis window of audio reduced to a fixed-size spectrum.
//
// Relative is the canonical comparison form: a probability-like simplex
// (all entries >= 0, sum ~= 1). Absolute preserves the un-normalized band
// energies that the room-compensation stages operate on. Vectors are
// immutable by convention: every transformation returns a fresh vector.
type Vector struct {
	Relative []float64 `json:"relative"`
	Absolute []float64 `json:"absolute"`

	// Session parameters, fixed per recording session
	Bins       int     `json:"bins"`
	SampleRate int     `json:"sample_rate"`
	FreqMin    float64 `json:"freq_min"`
	FreqMax    float64 `json:"freq_max"`

	// RMS amplitude of the source frame, captured before any normalization
	RMS float64 `json:"rms"`
}

// New builds a vector from un-normalized band energies. The relative form
// is derived by normalizing to unit sum; a silent frame (total energy below
// 1e-12) maps to the uniform simplex so the invariant holds regardless.
func New(absolute []float64, sampleRate int, freqMin, freqMax, rms float64) *Vector {
	abs := make([]float64, len(absolute))
	copy(abs, absolute)

	return &Vector{
		Relative:   normalizeToSimplex(abs),
		Absolute:   abs,
		Bins:       len(abs),
		SampleRate: sampleRate,
		FreqMin:    freqMin,
		FreqMax:    freqMax,
		RMS:        rms,
	}
}

// WithAbsolute returns a new vector carrying this vector's session
// parameters but the given band energies, re-normalized. This is the
// primitive every spectral correction builds on.
func (v *Vector) WithAbsolute(absolute []float64) *Vector {
	abs := make([]float64, len(absolute))
	copy(abs, absolute)

	return &Vector{
		Relative:   normalizeToSimplex(abs),
		Absolute:   abs,
		Bins:       len(abs),
		SampleRate: v.SampleRate,
		FreqMin:    v.FreqMin,
		FreqMax:    v.FreqMax,
		RMS:        v.RMS,
	}
}

// Clone returns a deep copy.
func (v *Vector) Clone() *Vector {
	relative := make([]float64, len(v.Relative))
	copy(relative, v.Relative)
	absolute := make([]float64, len(v.Absolute))
	copy(absolute, v.Absolute)

	clone := *v
	clone.Relative = relative
	clone.Absolute = absolute
	return &clone
}

// Validate checks the structural invariants: equal-length relative and
// absolute forms, non-negative entries, and a relative sum within
// SimplexTolerance of 1.
func (v *Vector) Validate() error {
	if len(v.Relative) == 0 {
		return fmt.Errorf("feature: empty vector")
	}
	if len(v.Relative) != len(v.Absolute) {
		return fmt.Errorf("feature: relative/absolute length mismatch (%d vs %d)",
			len(v.Relative), len(v.Absolute))
	}
	if v.Bins != len(v.Relative) {
		return fmt.Errorf("feature: bins field %d does not match vector length %d",
			v.Bins, len(v.Relative))
	}

	sum := 0.0
	for i, r := range v.Relative {
		if r < 0 {
			return fmt.Errorf("feature: negative relative entry %g at bin %d", r, i)
		}
		sum += r
	}
	if math.Abs(sum-1) > SimplexTolerance {
		return fmt.Errorf("feature: relative form sums to %g, want 1 within %g",
			sum, SimplexTolerance)
	}

	return nil
}

// Compatible reports whether another vector was extracted under the same
// session parameters and can therefore be compared against this one.
// Returns an error wrapping ErrIncompatible on any mismatch.
func (v *Vector) Compatible(other *Vector) error {
	if other == nil {
		return fmt.Errorf("%w: nil vector", ErrIncompatible)
	}
	if v.Bins != other.Bins {
		return fmt.Errorf("%w: bins %d vs %d", ErrIncompatible, v.Bins, other.Bins)
	}
	if v.FreqMin != other.FreqMin || v.FreqMax != other.FreqMax {
		return fmt.Errorf("%w: frequency range [%.0f, %.0f] vs [%.0f, %.0f]",
			ErrIncompatible, v.FreqMin, v.FreqMax, other.FreqMin, other.FreqMax)
	}
	return nil
}

// BinCenterFrequency returns the center frequency in Hz of the given band.
func (v *Vector) BinCenterFrequency(bin int) float64 {
	if v.Bins <= 0 || bin < 0 || bin >= v.Bins {
		return 0
	}
	bandWidth := (v.FreqMax - v.FreqMin) / float64(v.Bins)
	return v.FreqMin + (float64(bin)+0.5)*bandWidth
}

// normalizeToSimplex returns the unit-sum form of the given energies.
// Negative entries are clamped to zero first; a silent frame yields the
// uniform distribution.
func normalizeToSimplex(absolute []float64) []float64 {
	relative := make([]float64, len(absolute))
	if len(absolute) == 0 {
		return relative
	}

	sum := 0.0
	for i, a := range absolute {
		if a < 0 {
			a = 0
		}
		relative[i] = a
		sum += a
	}

	if sum < minEnergySum {
		uniform := 1.0 / float64(len(relative))
		for i := range relative {
			relative[i] = uniform
		}
		return relative
	}

	for i := range relative {
		relative[i] /= sum
	}
	return relative
}
