package spectral

import (
	"math"
	"math/cmplx"
)

// PowerSpectrum computes one-sided power spectral densities from complex
// FFT output. Stateless.
type PowerSpectrum struct {
	// No state needed - stateless calculation
}

// NewPowerSpectrum creates a new power spectrum calculator
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{}
}

// Compute computes the one-sided power spectrum |X[i]|^2 from a full
// complex spectrum. The result covers bins 0..N/2 (inclusive), the
// positive-frequency half of a real signal's transform.
func (ps *PowerSpectrum) Compute(spectrum []complex128) []float64 {
	if len(spectrum) == 0 {
		return []float64{}
	}

	half := len(spectrum)/2 + 1
	power := make([]float64, half)
	for i := 0; i < half; i++ {
		mag := cmplx.Abs(spectrum[i])
		power[i] = mag * mag
	}

	return power
}

// ComputeFromMagnitude computes power spectral density from a magnitude
// spectrum that has already been halved.
func (ps *PowerSpectrum) ComputeFromMagnitude(magnitudeSpectrum []float64) []float64 {
	if len(magnitudeSpectrum) == 0 {
		return []float64{}
	}

	power := make([]float64, len(magnitudeSpectrum))
	for i, mag := range magnitudeSpectrum {
		power[i] = mag * mag
	}

	return power
}

// ComputeLog computes the one-sided log power spectrum in dB with a floor.
// Values below floorDB are clamped so silence doesn't produce -Inf.
func (ps *PowerSpectrum) ComputeLog(spectrum []complex128, floorDB float64) []float64 {
	power := ps.Compute(spectrum)
	if len(power) == 0 {
		return power
	}

	floor := math.Pow(10, floorDB/10.0)
	logPower := make([]float64, len(power))

	for i, p := range power {
		if p < floor {
			p = floor
		}
		logPower[i] = 10 * math.Log10(p)
	}

	return logPower
}
