package roomcomp

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Measurement pipeline steps, reported in Rejection.Step so callers can
// tell which quality gate failed.
const (
	StepPeakDetection = "peak_detection"
	StepRIRWindow     = "rir_window"
	StepDecayCurve    = "decay_curve"
	StepRegression    = "regression"
	StepRange         = "t60_range"
)

// T60Estimate is a validated reverberation-time measurement.
type T60Estimate struct {
	// Broadband reverberation time in seconds
	Broadband float64 `json:"broadband"`

	// Subbands maps octave center frequency (Hz) to the band-limited T60.
	// Bands whose decay failed a quality gate are omitted.
	Subbands map[int]float64 `json:"subbands,omitempty"`

	// MeasuredAt records when the probe ran. Estimates are only trusted
	// within the session that measured them.
	MeasuredAt time.Time `json:"measured_at"`
}

// Rejection explains why a measurement produced no estimate. Rejections
// are expected outcomes of noisy rooms, not errors.
type Rejection struct {
	Step   string `json:"step"`
	Reason string `json:"reason"`
}

// T60Measurement is the complete outcome of one chirp probe: either an
// estimate or a rejection, plus the detection diagnostics either way.
type T60Measurement struct {
	Estimate  *T60Estimate `json:"estimate,omitempty"`
	Rejection *Rejection   `json:"rejection,omitempty"`

	// Detection diagnostics
	PeakIndex    int           `json:"peak_index"`
	PeakToMedian float64       `json:"peak_to_median"`
	RIRDuration  time.Duration `json:"rir_duration"`
}

// OK reports whether the measurement produced a usable estimate.
func (m *T60Measurement) OK() bool {
	return m != nil && m.Estimate != nil
}

// SchroederEstimator derives a reverberation time from a room impulse
// response via backward energy integration
//
// References:
// - Schroeder, M.R. (1965). "New Method of Measuring Reverberation Time"
// - ISO 3382-1 (2009). "Measurement of room acoustic parameters"
//
// The decay slope is fitted between the -5 dB and -25 dB points of the
// integrated energy curve (a T20-style fit) and extrapolated to the 60 dB
// decay definition.
type SchroederEstimator struct {
	sampleRate int

	// Decay-fit parameters
	fitStartDB     float64
	fitEndDB       float64
	minSpanSamples int

	// Plausibility bounds in seconds
	minT60 float64
	maxT60 float64
}

// NewSchroederEstimator creates an estimator with the standard quality
// gates: fit between -5 and -25 dB, at least 10 samples of decay span,
// plausible range [0.1 s, 5.0 s].
func NewSchroederEstimator(sampleRate int) *SchroederEstimator {
	return &SchroederEstimator{
		sampleRate:     sampleRate,
		fitStartDB:     -5,
		fitEndDB:       -25,
		minSpanSamples: 10,
		minT60:         0.1,
		maxT60:         5.0,
	}
}

// Estimate computes the reverberation time of the given impulse response.
// A quality-gate failure returns a Rejection, never an error: missing T60
// is an expected outcome the caller falls back from.
func (se *SchroederEstimator) Estimate(rir []float64) (float64, *Rejection) {
	if len(rir) == 0 {
		return 0, &Rejection{Step: StepRIRWindow, Reason: "empty impulse response"}
	}

	// Backward integration of the squared response, in dB relative to the
	// total energy so the curve starts at 0 dB.
	decayDB, total := schroederDecayDB(rir)
	if total < epsilon {
		return 0, &Rejection{Step: StepDecayCurve, Reason: "impulse response carries no energy"}
	}

	start, end, found := se.findDecaySpan(decayDB)
	if !found {
		return 0, &Rejection{
			Step: StepDecayCurve,
			Reason: fmt.Sprintf("no %.0f to %.0f dB crossing found",
				se.fitStartDB, se.fitEndDB),
		}
	}
	if end-start < se.minSpanSamples {
		return 0, &Rejection{
			Step: StepDecayCurve,
			Reason: fmt.Sprintf("decay span %d samples, need at least %d",
				end-start, se.minSpanSamples),
		}
	}

	// Least-squares fit of dB against time over the decay span. The slope
	// comes out directly in dB/second.
	x := make([]float64, end-start+1)
	y := make([]float64, end-start+1)
	for i := range x {
		x[i] = float64(start+i) / float64(se.sampleRate)
		y[i] = decayDB[start+i]
	}
	_, slope := stat.LinearRegression(x, y, nil, false)

	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0, &Rejection{Step: StepRegression, Reason: "degenerate decay fit"}
	}
	if slope >= 0 {
		return 0, &Rejection{
			Step:   StepRegression,
			Reason: fmt.Sprintf("non-decaying slope %.2f dB/s", slope),
		}
	}

	t60 := -60 / slope
	if t60 < se.minT60 || t60 > se.maxT60 {
		return 0, &Rejection{
			Step: StepRange,
			Reason: fmt.Sprintf("t60 %.2fs outside plausible range [%.1fs, %.1fs]",
				t60, se.minT60, se.maxT60),
		}
	}

	return t60, nil
}

// findDecaySpan locates the first crossings of the fit-start and fit-end
// levels on the decay curve.
func (se *SchroederEstimator) findDecaySpan(decayDB []float64) (start, end int, found bool) {
	start, end = -1, -1
	for i, db := range decayDB {
		if start < 0 && db <= se.fitStartDB {
			start = i
		}
		if db <= se.fitEndDB {
			end = i
			break
		}
	}
	return start, end, start >= 0 && end > start
}

// schroederDecayDB returns the backward-integrated energy decay curve in
// dB relative to total energy, along with the total energy itself.
func schroederDecayDB(rir []float64) ([]float64, float64) {
	energy := make([]float64, len(rir))
	cumulative := 0.0
	for i := len(rir) - 1; i >= 0; i-- {
		cumulative += rir[i] * rir[i]
		energy[i] = cumulative
	}
	total := cumulative

	decayDB := make([]float64, len(rir))
	for i, e := range energy {
		decayDB[i] = 10 * math.Log10(e/(total+epsilon)+epsilon)
	}
	return decayDB, total
}
