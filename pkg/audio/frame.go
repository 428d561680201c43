package audio

import (
	"fmt"
	"time"
)

// Frame represents one chunk of mono PCM audio.
// Samples are normalized float amplitudes in [-1.0, 1.0]. Frames are
// ephemeral: produced by a capture source or the buffer ingestion adapter,
// consumed immediately by the active engine, never persisted.
//
// Frames are always single-channel. There is no channel-count field on
// purpose; mono is enforced by construction, not negotiated.
type Frame struct {
	Samples    []float32
	SampleRate int // samples per second, e.g. 16000 or 48000
}

// NewFrame creates a Frame and validates its parameters.
func NewFrame(samples []float32, sampleRate int) (Frame, error) {
	if sampleRate <= 0 {
		return Frame{}, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if len(samples) == 0 {
		return Frame{}, fmt.Errorf("frame must contain at least one sample")
	}
	return Frame{Samples: samples, SampleRate: sampleRate}, nil
}

// Clone creates a deep copy of the Frame.
func (f Frame) Clone() Frame {
	samples := make([]float32, len(f.Samples))
	copy(samples, f.Samples)
	return Frame{Samples: samples, SampleRate: f.SampleRate}
}

// Duration returns the playback duration represented by this frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}
