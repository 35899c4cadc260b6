package audioio

import (
	"context"
	"io"
)

// DefaultChunkSize is the number of samples handed out per NextChunk
// call when the caller does not choose one.
const DefaultChunkSize = 4096

// Source yields successive chunks of mono samples for streaming
// diagnosis. NextChunk returns io.EOF once the source is drained.
type Source interface {
	NextChunk(ctx context.Context) ([]float64, error)
	SampleRate() int
}

// BufferSource replays an in-memory recording chunk by chunk, standing
// in for a live capture device during offline runs.
type BufferSource struct {
	samples []float64
	rate    int
	chunk   int
	pos     int
}

// NewBufferSource wraps a recording. A chunkSize of zero or less falls
// back to DefaultChunkSize.
func NewBufferSource(samples []float64, sampleRate, chunkSize int) *BufferSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &BufferSource{samples: samples, rate: sampleRate, chunk: chunkSize}
}

func (b *BufferSource) NextChunk(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.pos >= len(b.samples) {
		return nil, io.EOF
	}

	end := b.pos + b.chunk
	if end > len(b.samples) {
		end = len(b.samples)
	}
	out := make([]float64, end-b.pos)
	copy(out, b.samples[b.pos:end])
	b.pos = end
	return out, nil
}

func (b *BufferSource) SampleRate() int {
	return b.rate
}
