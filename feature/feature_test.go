package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVectorSimplexInvariant(t *testing.T) {
	v := New([]float64{1, 2, 3, 4}, 48000, 0, 8000, 0.5)
	require.NoError(t, v.Validate())

	assert.Equal(t, 4, v.Bins)
	assert.InDelta(t, 0.1, v.Relative[0], 1e-12)
	assert.InDelta(t, 0.4, v.Relative[3], 1e-12)
	assert.Equal(t, []float64{1, 2, 3, 4}, v.Absolute)
	assert.Equal(t, 0.5, v.RMS)
}

func TestNewVectorSilentFrameIsUniform(t *testing.T) {
	v := New(make([]float64, 8), 48000, 0, 8000, 0)
	require.NoError(t, v.Validate())

	for i, r := range v.Relative {
		assert.InDelta(t, 0.125, r, 1e-12, "bin %d", i)
	}
}

func TestVectorWithAbsoluteKeepsSessionParams(t *testing.T) {
	orig := New([]float64{1, 1}, 44100, 100, 4000, 0.25)
	derived := orig.WithAbsolute([]float64{3, 1})

	require.NoError(t, derived.Validate())
	assert.Equal(t, 44100, derived.SampleRate)
	assert.Equal(t, 100.0, derived.FreqMin)
	assert.Equal(t, 4000.0, derived.FreqMax)
	assert.Equal(t, 0.25, derived.RMS)
	assert.InDelta(t, 0.75, derived.Relative[0], 1e-12)

	// Original untouched.
	assert.Equal(t, []float64{1, 1}, orig.Absolute)
}

func TestVectorCloneIsIndependent(t *testing.T) {
	orig := New([]float64{1, 2}, 48000, 0, 8000, 0)
	clone := orig.Clone()

	clone.Absolute[0] = 99
	clone.Relative[0] = 99
	assert.Equal(t, 1.0, orig.Absolute[0])
	require.NoError(t, orig.Validate())
}

func TestVectorValidateRejectsBrokenInvariants(t *testing.T) {
	v := New([]float64{1, 2, 3}, 48000, 0, 8000, 0)
	require.NoError(t, v.Validate())

	broken := v.Clone()
	broken.Relative[0] = -0.1
	assert.Error(t, broken.Validate())

	broken = v.Clone()
	broken.Relative[0] += 0.01
	assert.Error(t, broken.Validate())

	broken = v.Clone()
	broken.Bins = 7
	assert.Error(t, broken.Validate())

	broken = v.Clone()
	broken.Absolute = broken.Absolute[:2]
	assert.Error(t, broken.Validate())
}

func TestVectorCompatible(t *testing.T) {
	a := New([]float64{1, 2}, 48000, 0, 8000, 0)
	b := New([]float64{3, 4}, 44100, 0, 8000, 0)
	assert.NoError(t, a.Compatible(b), "sample rate is not a vector-compatibility parameter")

	c := New([]float64{1, 2, 3}, 48000, 0, 8000, 0)
	err := a.Compatible(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompatible)

	d := New([]float64{1, 2}, 48000, 0, 4000, 0)
	assert.ErrorIs(t, a.Compatible(d), ErrIncompatible)

	assert.ErrorIs(t, a.Compatible(nil), ErrIncompatible)
}

func TestVectorBinCenterFrequency(t *testing.T) {
	v := New(make([]float64, 4), 48000, 0, 8000, 0)
	assert.InDelta(t, 1000.0, v.BinCenterFrequency(0), 1e-9)
	assert.InDelta(t, 7000.0, v.BinCenterFrequency(3), 1e-9)
	assert.Equal(t, 0.0, v.BinCenterFrequency(-1))
	assert.Equal(t, 0.0, v.BinCenterFrequency(4))
}

func TestExtractorConfigDefaults(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})
	cfg := e.Config()

	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, 16384, cfg.WindowSize)
	assert.Equal(t, 3200, cfg.HopSize)
	assert.Equal(t, 512, cfg.Bins)
	assert.Equal(t, 8000.0, cfg.FreqMax)

	// Invalid ranges snap back to defaults too.
	e = NewExtractor(ExtractorConfig{FreqMin: 5000, FreqMax: 100})
	assert.Equal(t, 0.0, e.Config().FreqMin)
	assert.Equal(t, 8000.0, e.Config().FreqMax)
}

func TestExtractorTonePeakLandsInExpectedBand(t *testing.T) {
	cfg := ExtractorConfig{
		SampleRate: 8000,
		WindowSize: 1024,
		HopSize:    512,
		Bins:       16,
		FreqMin:    0,
		FreqMax:    4000,
	}
	e := NewExtractor(cfg)

	// 1 kHz tone: band width is 250 Hz, so energy concentrates in band 4.
	frame := make([]float64, cfg.WindowSize)
	for i := range frame {
		frame[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / float64(cfg.SampleRate))
	}

	v, err := e.ExtractFrame(frame)
	require.NoError(t, err)
	require.NoError(t, v.Validate())

	peakBand := 0
	for i, r := range v.Relative {
		if r > v.Relative[peakBand] {
			peakBand = i
		}
	}
	assert.Equal(t, 4, peakBand)
	assert.Greater(t, v.RMS, 0.5)
}

func TestExtractFrameRejectsWrongLength(t *testing.T) {
	e := NewExtractor(ExtractorConfig{WindowSize: 1024})
	_, err := e.ExtractFrame(make([]float64, 100))
	assert.Error(t, err)
}

func TestExtractAllFrameCount(t *testing.T) {
	cfg := ExtractorConfig{
		SampleRate: 8000,
		WindowSize: 1024,
		HopSize:    256,
		Bins:       32,
		FreqMax:    4000,
	}
	e := NewExtractor(cfg)

	samples := make([]float64, 4096)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 500 * float64(i) / 8000)
	}

	vectors, err := e.ExtractAll(samples)
	require.NoError(t, err)
	assert.Len(t, vectors, (4096-1024)/256+1)
	for i, v := range vectors {
		require.NotNil(t, v, "frame %d", i)
		require.NoError(t, v.Validate(), "frame %d", i)
	}

	_, err = e.ExtractAll(make([]float64, 100))
	assert.Error(t, err)
}

func TestExtractAllMatchesExtractFrame(t *testing.T) {
	cfg := ExtractorConfig{
		SampleRate: 8000,
		WindowSize: 512,
		HopSize:    512,
		Bins:       16,
		FreqMax:    4000,
	}
	e := NewExtractor(cfg)

	samples := make([]float64, 1024)
	for i := range samples {
		samples[i] = math.Sin(2*math.Pi*700*float64(i)/8000) + 0.1*math.Cos(2*math.Pi*1900*float64(i)/8000)
	}

	batch, err := e.ExtractAll(samples)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	first, err := e.ExtractFrame(samples[:512])
	require.NoError(t, err)
	assert.InDeltaSlice(t, first.Absolute, batch[0].Absolute, 1e-12)
}

func TestPushAccumulatesAcrossChunks(t *testing.T) {
	cfg := ExtractorConfig{
		SampleRate: 8000,
		WindowSize: 1024,
		HopSize:    512,
		Bins:       16,
		FreqMax:    4000,
	}
	e := NewExtractor(cfg)

	// First chunk is smaller than a window: nothing comes out yet.
	chunk := make([]float64, 600)
	assert.Empty(t, e.Push(chunk))
	assert.Equal(t, 600, e.Buffered())

	// Second chunk completes one window and starts the next hop.
	vectors := e.Push(make([]float64, 600))
	assert.Len(t, vectors, 1)
	assert.Equal(t, 1200-512, e.Buffered())

	e.Reset()
	assert.Zero(t, e.Buffered())
}

func TestPushMatchesBatchExtraction(t *testing.T) {
	cfg := ExtractorConfig{
		SampleRate: 8000,
		WindowSize: 512,
		HopSize:    128,
		Bins:       16,
		FreqMax:    4000,
	}

	samples := make([]float64, 2048)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 8000)
	}

	batch, err := NewExtractor(cfg).ExtractAll(samples)
	require.NoError(t, err)

	streaming := NewExtractor(cfg)
	var incremental []*Vector
	for start := 0; start < len(samples); start += 160 {
		end := min(start+160, len(samples))
		incremental = append(incremental, streaming.Push(samples[start:end])...)
	}

	require.Len(t, incremental, len(batch))
	for i := range batch {
		assert.InDeltaSlice(t, batch[i].Absolute, incremental[i].Absolute, 1e-12, "frame %d", i)
	}
}
