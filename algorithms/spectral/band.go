package spectral

// BandFilter band-limits a real signal by masking FFT bins outside a
// frequency range and transforming back. Used to measure per-octave decay
// rates of an impulse response.
type BandFilter struct {
	fft *FFT
}

// NewBandFilter creates a new band filter
func NewBandFilter() *BandFilter {
	return &BandFilter{fft: NewFFT()}
}

// Apply returns a copy of the signal containing only energy between lowHz
// and highHz. Both the positive- and negative-frequency bins of each
// component are masked together so the output stays real.
func (bf *BandFilter) Apply(signal []float64, sampleRate int, lowHz, highHz float64) []float64 {
	n := len(signal)
	if n == 0 {
		return []float64{}
	}

	spectrum := bf.fft.Compute(signal)

	for i := 0; i <= n/2; i++ {
		freq := BinFrequency(i, n, sampleRate)
		if freq < lowHz || freq > highHz {
			spectrum[i] = 0
			if i > 0 && i < n-i {
				spectrum[n-i] = 0
			}
		}
	}

	return bf.fft.ComputeInverseReal(spectrum)
}
