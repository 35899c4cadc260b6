// Package audioio moves recordings in and out of the pipeline: WAV
// decoding to mono float64 samples, 16-bit PCM export for generated
// probe sweeps, sample-rate conversion, and chunked playback of
// in-memory recordings.
package audioio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes a WAV file into mono samples normalized to [-1, 1]
// and reports the file's sample rate. Multichannel recordings are
// downmixed by averaging across channels.
func ReadWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("audioio: open %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("audioio: %s is not a valid WAV file", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("audioio: decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("audioio: %s has no usable format header", path)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) / scale
	}
	return samples, buf.Format.SampleRate, nil
}

// WriteWAV writes mono samples as a 16-bit PCM WAV file. Samples outside
// [-1, 1] are clipped.
func WriteWAV(path string, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("audioio: invalid sample rate %d", sampleRate)
	}
	if len(samples) == 0 {
		return errors.New("audioio: nothing to write")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audioio: create %s: %w", path, err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	encoder := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("audioio: write %s: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("audioio: finalize %s: %w", path, err)
	}
	return nil
}
