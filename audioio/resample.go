package audioio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples between rates. Recordings are expected
// to match the extractor's configured rate; this is the explicit
// conversion for files captured at something else. Same-rate input comes
// back as a copy.
func Resample(samples []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("audioio: cannot resample %d Hz to %d Hz", fromRate, toRate)
	}
	if fromRate == toRate {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(fromRate),
		OutputRate: float64(toRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audioio: create resampler: %w", err)
	}

	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("audioio: resample %d Hz to %d Hz: %w", fromRate, toRate, err)
	}
	return out, nil
}
