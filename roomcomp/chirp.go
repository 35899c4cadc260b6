package roomcomp

import (
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-sentinel/algorithms/filters"
	"github.com/RyanBlaney/sonido-sentinel/algorithms/spectral"
	"github.com/RyanBlaney/sonido-sentinel/algorithms/stats"
	"github.com/RyanBlaney/sonido-sentinel/algorithms/synth"
	"github.com/RyanBlaney/sonido-sentinel/logging"
)

// subbandCenters are the octave centers measured in addition to the
// broadband estimate.
var subbandCenters = []int{250, 500, 1000, 2000, 4000}

// ChirpProbe measures the room's reverberation time from the recorded
// response to a known sweep. The caller plays Template() through the
// speaker, records for CaptureDuration(), and hands the recording to
// Measure.
//
// The matched-filter recovery is a direct sliding dot product; for the
// default 60 ms probe and 560 ms capture at 48 kHz that is on the order
// of tens of millions of multiplications, well within a real-time budget
// on mobile-class hardware.
type ChirpProbe struct {
	sweep      *synth.LogSweep
	sampleRate int

	// Quality gates
	minPeakToMedian float64
	minRIR          time.Duration
	maxRIR          time.Duration

	filter    *stats.MatchedFilter
	bandpass  *spectral.BandFilter
	dcBlock   *filters.DCBlocker
	estimator *SchroederEstimator
	logger    logging.Logger
}

// NewChirpProbe creates a probe for the given sweep and recording rate.
func NewChirpProbe(sweep *synth.LogSweep, sampleRate int) *ChirpProbe {
	return &ChirpProbe{
		sweep:           sweep,
		sampleRate:      sampleRate,
		minPeakToMedian: 4.0,
		minRIR:          50 * time.Millisecond,
		maxRIR:          2 * time.Second,
		filter:          stats.NewMatchedFilter(),
		bandpass:        spectral.NewBandFilter(),
		dcBlock:         filters.NewDCBlockerWithCutoff(sampleRate, 20),
		estimator:       NewSchroederEstimator(sampleRate),
		logger: logging.WithFields(logging.Fields{
			"component": "chirp_probe",
		}),
	}
}

// Template renders the probe signal for playback.
func (cp *ChirpProbe) Template() ([]float64, error) {
	return cp.sweep.Generate(cp.sampleRate)
}

// CaptureDuration returns how long the microphone must record: the sweep
// itself plus 500 ms of decay tail.
func (cp *ChirpProbe) CaptureDuration() time.Duration {
	return cp.sweep.GetDuration() + 500*time.Millisecond
}

// Measure runs the full measurement on a recorded probe response. Quality
// failures at any step yield a measurement with a Rejection and no
// estimate; an error is returned only when the probe configuration itself
// is unusable.
func (cp *ChirpProbe) Measure(recorded []float64) (*T60Measurement, error) {
	template, err := cp.sweep.Generate(cp.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("chirp probe: %w", err)
	}

	cp.logger.Debug("Starting T60 measurement", logging.Fields{
		"recorded_samples": len(recorded),
		"template_samples": len(template),
		"sample_rate":      cp.sampleRate,
	})

	// Step 1: recover the approximate room impulse response.
	match, err := cp.filter.Compute(recorded, template)
	if err != nil {
		return cp.rejected(&T60Measurement{}, StepPeakDetection, err.Error()), nil
	}

	m := &T60Measurement{
		PeakIndex:    match.PeakIndex,
		PeakToMedian: match.PeakToMedian,
	}

	// Step 2: the peak-to-median ratio proxies SNR; a flat response means
	// the probe never cleanly arrived at the microphone.
	if match.PeakToMedian < cp.minPeakToMedian {
		return cp.rejected(m, StepPeakDetection,
			fmt.Sprintf("peak-to-median ratio %.2f below %.2f", match.PeakToMedian, cp.minPeakToMedian)), nil
	}

	// Step 3: window the impulse response from the direct-sound arrival.
	// Microphone offset leaks through the correlation as a near-constant
	// pedestal that flattens the decay tail, so the window is DC-blocked
	// before integration.
	rir := match.Response[match.PeakIndex:]
	if maxSamples := cp.durationSamples(cp.maxRIR); len(rir) > maxSamples {
		rir = rir[:maxSamples]
	}
	cp.dcBlock.Reset()
	rir = cp.dcBlock.Apply(rir)

	m.RIRDuration = time.Duration(float64(len(rir)) / float64(cp.sampleRate) * float64(time.Second))
	if len(rir) < cp.durationSamples(cp.minRIR) {
		return cp.rejected(m, StepRIRWindow,
			fmt.Sprintf("impulse response %v, need at least %v", m.RIRDuration, cp.minRIR)), nil
	}

	// Steps 4 through 7: Schroeder integration, decay fit, plausibility.
	broadband, rej := cp.estimator.Estimate(rir)
	if rej != nil {
		return cp.rejected(m, rej.Step, rej.Reason), nil
	}

	estimate := &T60Estimate{
		Broadband:  broadband,
		Subbands:   cp.measureSubbands(rir),
		MeasuredAt: time.Now(),
	}
	m.Estimate = estimate

	cp.logger.Info("T60 measurement completed", logging.Fields{
		"broadband_s":    broadband,
		"subbands":       len(estimate.Subbands),
		"peak_to_median": m.PeakToMedian,
		"environment":    string(ClassifyEnvironment(broadband)),
	})
	return m, nil
}

// measureSubbands estimates the band-limited T60 for each octave center.
// Bands that fail a quality gate are omitted; a broadband estimate with
// partial sub-band coverage is still useful.
func (cp *ChirpProbe) measureSubbands(rir []float64) map[int]float64 {
	subbands := make(map[int]float64, len(subbandCenters))
	for _, center := range subbandCenters {
		low := float64(center) / math.Sqrt2
		high := float64(center) * math.Sqrt2

		banded := cp.bandpass.Apply(rir, cp.sampleRate, low, high)
		t60, rej := cp.estimator.Estimate(banded)
		if rej != nil {
			cp.logger.Debug("Sub-band estimate rejected", logging.Fields{
				"center_hz": center,
				"step":      rej.Step,
				"reason":    rej.Reason,
			})
			continue
		}
		subbands[center] = t60
	}
	return subbands
}

// rejected attaches a rejection to the measurement and logs it.
func (cp *ChirpProbe) rejected(m *T60Measurement, step, reason string) *T60Measurement {
	m.Rejection = &Rejection{Step: step, Reason: reason}
	cp.logger.Debug("T60 measurement rejected", logging.Fields{
		"step":   step,
		"reason": reason,
	})
	return m
}

func (cp *ChirpProbe) durationSamples(d time.Duration) int {
	return int(d.Seconds() * float64(cp.sampleRate))
}
