package stats

import (
	"fmt"
	"math"
	"sort"
)

// MatchedFilterResult contains the filter response and peak diagnostics
type MatchedFilterResult struct {
	// Response holds the dot product of the template against the recording
	// at each candidate offset
	Response []float64 `json:"response"`

	// Peak information
	PeakIndex int     `json:"peak_index"`
	PeakValue float64 `json:"peak_value"`

	// Detection quality metrics
	MedianAbs    float64 `json:"median_abs"`
	PeakToMedian float64 `json:"peak_to_median"`
}

// MatchedFilter locates a known template inside a recorded signal
//
// References:
// - Turin, G.L. (1960). "An Introduction to Matched Filters"
// - Farina, A. (2000). "Simultaneous Measurement of Impulse Response and
//   Distortion with a Swept-Sine Technique"
//
// Matched filtering is fundamental for:
// - Probe signal detection in room response measurement
// - Time-of-arrival estimation
// - Template matching under additive noise
type MatchedFilter struct {
	// Numerical stability parameters
	minMedian float64
}

// NewMatchedFilter creates a matched filter with default settings
func NewMatchedFilter() *MatchedFilter {
	return &MatchedFilter{
		minMedian: 1e-12,
	}
}

// Compute slides the template across the recording and returns the response
// at every offset, along with the peak and its ratio to the median absolute
// response. The ratio separates a genuine template arrival from a flat,
// peak-free response.
func (mf *MatchedFilter) Compute(recorded, template []float64) (*MatchedFilterResult, error) {
	if len(template) == 0 {
		return nil, fmt.Errorf("matched filter: empty template")
	}
	if len(recorded) < len(template) {
		return nil, fmt.Errorf("matched filter: recording shorter than template (%d < %d)",
			len(recorded), len(template))
	}

	numOffsets := len(recorded) - len(template) + 1
	response := make([]float64, numOffsets)

	for offset := range numOffsets {
		var sum float64
		segment := recorded[offset : offset+len(template)]
		for i, t := range template {
			sum += segment[i] * t
		}
		response[offset] = sum
	}

	peakIndex, peakValue := findAbsPeak(response)
	medianAbs := medianAbsolute(response)

	peakToMedian := 0.0
	if medianAbs < mf.minMedian {
		if math.Abs(peakValue) > 0 {
			peakToMedian = math.Inf(1)
		}
	} else {
		peakToMedian = math.Abs(peakValue) / medianAbs
	}

	return &MatchedFilterResult{
		Response:     response,
		PeakIndex:    peakIndex,
		PeakValue:    peakValue,
		MedianAbs:    medianAbs,
		PeakToMedian: peakToMedian,
	}, nil
}

// Helper functions

// findAbsPeak returns the index and signed value of the largest absolute
// sample in the response
func findAbsPeak(response []float64) (int, float64) {
	peakIndex := 0
	peakAbs := 0.0
	for i, v := range response {
		if abs := math.Abs(v); abs > peakAbs {
			peakAbs = abs
			peakIndex = i
		}
	}
	return peakIndex, response[peakIndex]
}

// medianAbsolute computes the median of absolute response values
func medianAbsolute(response []float64) float64 {
	if len(response) == 0 {
		return 0
	}

	sorted := make([]float64, len(response))
	for i, v := range response {
		sorted[i] = math.Abs(v)
	}
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
