package feature

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-sentinel/algorithms/spectral"
	"github.com/RyanBlaney/sonido-sentinel/algorithms/windowing"
)

// ExtractorConfig holds the session parameters for feature extraction.
// Zero or invalid fields fall back to the documented defaults when the
// extractor is constructed.
type ExtractorConfig struct {
	SampleRate int     `json:"sample_rate" mapstructure:"sample_rate"`
	WindowSize int     `json:"window_size" mapstructure:"window_size"`
	HopSize    int     `json:"hop_size" mapstructure:"hop_size"`
	Bins       int     `json:"bins" mapstructure:"bins"`
	FreqMin    float64 `json:"freq_min" mapstructure:"freq_min"`
	FreqMax    float64 `json:"freq_max" mapstructure:"freq_max"`
}

// DefaultExtractorConfig returns the standard session parameters: 48 kHz
// audio, 16384-sample windows (~341 ms), 3200-sample hops (~66 ms), and
// 512 bands over 0-8000 Hz.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		SampleRate: 48000,
		WindowSize: 16384,
		HopSize:    3200,
		Bins:       512,
		FreqMin:    0,
		FreqMax:    8000,
	}
}

// withDefaults replaces missing or invalid fields with defaults.
func (c ExtractorConfig) withDefaults() ExtractorConfig {
	def := DefaultExtractorConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.WindowSize <= 0 {
		c.WindowSize = def.WindowSize
	}
	if c.HopSize <= 0 {
		c.HopSize = def.HopSize
	}
	if c.Bins <= 0 {
		c.Bins = def.Bins
	}
	if c.FreqMax <= c.FreqMin {
		c.FreqMin = def.FreqMin
		c.FreqMax = def.FreqMax
	}
	return c
}

// FrameDuration returns the analysis window length in time.
func (c ExtractorConfig) FrameDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.WindowSize) / float64(c.SampleRate) * float64(time.Second))
}

// HopDuration returns the time advance between consecutive frames.
func (c ExtractorConfig) HopDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.HopSize) / float64(c.SampleRate) * float64(time.Second))
}

// Extractor converts raw audio into feature vectors: Hann-windowed frame,
// FFT, one-sided power spectrum, aggregation into equal-width frequency
// bands over [FreqMin, FreqMax].
//
// The batch API (ExtractAll) serves reference training over a whole
// recording; the incremental API (Push) serves streaming diagnosis, keeping
// a rolling sample buffer between chunks. An Extractor used incrementally
// belongs to exactly one session at a time.
type Extractor struct {
	cfg    ExtractorConfig
	fft    *spectral.FFT
	power  *spectral.PowerSpectrum
	window *windowing.Hann

	// Rolling buffer for the incremental API
	pending []float64
}

// NewExtractor creates an extractor for the given session parameters.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	cfg = cfg.withDefaults()
	return &Extractor{
		cfg:    cfg,
		fft:    spectral.NewFFT(),
		power:  spectral.NewPowerSpectrum(),
		window: windowing.NewHann(cfg.WindowSize, false),
	}
}

// Config returns the session parameters in effect (after defaulting).
func (e *Extractor) Config() ExtractorConfig {
	return e.cfg
}

// ExtractFrame converts exactly one analysis window of samples into a
// feature vector.
func (e *Extractor) ExtractFrame(frame []float64) (*Vector, error) {
	if len(frame) != e.cfg.WindowSize {
		return nil, fmt.Errorf("feature: frame length %d, extractor expects %d",
			len(frame), e.cfg.WindowSize)
	}
	return e.extract(frame), nil
}

// ExtractAll converts a whole recording into the full frame sequence.
// Frames are independent, so they are computed in parallel.
func (e *Extractor) ExtractAll(samples []float64) ([]*Vector, error) {
	if len(samples) < e.cfg.WindowSize {
		return nil, fmt.Errorf("feature: recording too short (%d samples, need %d)",
			len(samples), e.cfg.WindowSize)
	}

	numFrames := (len(samples)-e.cfg.WindowSize)/e.cfg.HopSize + 1
	vectors := make([]*Vector, numFrames)

	numWorkers := min(runtime.NumCPU(), numFrames)
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for frameIdx := range jobs {
				start := frameIdx * e.cfg.HopSize
				vectors[frameIdx] = e.extract(samples[start : start+e.cfg.WindowSize])
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)
	wg.Wait()

	return vectors, nil
}

// Push appends a chunk of samples to the rolling buffer and returns the
// vectors for every complete analysis window now available. Chunks smaller
// than a window simply accumulate until enough samples arrive.
func (e *Extractor) Push(chunk []float64) []*Vector {
	e.pending = append(e.pending, chunk...)

	var vectors []*Vector
	for len(e.pending) >= e.cfg.WindowSize {
		vectors = append(vectors, e.extract(e.pending[:e.cfg.WindowSize]))
		e.pending = e.pending[e.cfg.HopSize:]
	}
	return vectors
}

// Reset discards any buffered samples. Called at session boundaries.
func (e *Extractor) Reset() {
	e.pending = nil
}

// Buffered returns the number of samples waiting for a complete window.
func (e *Extractor) Buffered() int {
	return len(e.pending)
}

// extract assumes frame length equals the configured window size. Safe for
// concurrent use: it only reads extractor configuration and allocates fresh
// buffers.
func (e *Extractor) extract(frame []float64) *Vector {
	rms := rootMeanSquare(frame)

	windowed := e.window.Apply(frame)
	spectrum := e.fft.Compute(windowed)
	power := e.power.Compute(spectrum)

	// Aggregate FFT bins into equal-width bands over [FreqMin, FreqMax].
	absolute := make([]float64, e.cfg.Bins)
	bandWidth := (e.cfg.FreqMax - e.cfg.FreqMin) / float64(e.cfg.Bins)

	for i, p := range power {
		freq := spectral.BinFrequency(i, e.cfg.WindowSize, e.cfg.SampleRate)
		if freq < e.cfg.FreqMin || freq > e.cfg.FreqMax {
			continue
		}
		band := int((freq - e.cfg.FreqMin) / bandWidth)
		if band >= e.cfg.Bins {
			// freq == FreqMax lands exactly on the upper edge
			band = e.cfg.Bins - 1
		}
		absolute[band] += p
	}

	return New(absolute, e.cfg.SampleRate, e.cfg.FreqMin, e.cfg.FreqMax, rms)
}

// rootMeanSquare computes the RMS amplitude of a raw sample frame
func rootMeanSquare(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(frame)))
}
