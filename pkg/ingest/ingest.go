// Package ingest bridges caller-supplied raw PCM into the audio frames the
// bound recognition engine expects. It is purely a format bridge: it never
// captures audio itself.
package ingest

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/voxkit/voxkit/pkg/audio"
	"github.com/voxkit/voxkit/pkg/events"
	"github.com/voxkit/voxkit/pkg/speech"
)

// int16 full-scale divisor for normalizing little-endian PCM to [-1, 1].
const pcm16Scale = 32768

// Adapter converts submitted samples into mono frames and pushes them to the
// engine it is bound to. Output frames are single-channel by construction;
// the adapter accepts no channel-count parameter.
type Adapter struct {
	engine  speech.Engine
	emitter *events.Emitter
}

// NewAdapter binds an adapter to an engine and the error event channel.
func NewAdapter(engine speech.Engine, emitter *events.Emitter) *Adapter {
	return &Adapter{engine: engine, emitter: emitter}
}

// Submit accepts either natively-typed float samples ([]float32 or []float64)
// or a base64-encoded string of little-endian 16-bit PCM, converts them to a
// normalized mono frame, and forwards it to the engine. Malformed input is
// rejected with an error event; it never escapes as a panic.
func (a *Adapter) Submit(samples any, sampleRateHz int) error {
	frame, err := a.decode(samples, sampleRateHz)
	if err != nil {
		a.emitter.EmitError(err.Error())
		return err
	}
	return a.engine.Push(frame)
}

// Stop signals end-of-stream to the bound engine and releases adapter-held
// resources. The engine performs its own drain; the two steps are distinct
// but coordinated by the session controller.
func (a *Adapter) Stop(ctx context.Context) error {
	return a.engine.Stop(ctx)
}

func (a *Adapter) decode(samples any, sampleRateHz int) (audio.Frame, error) {
	switch v := samples.(type) {
	case []float32:
		return audio.NewFrame(v, sampleRateHz)
	case []float64:
		out := make([]float32, len(v))
		for i, s := range v {
			out[i] = float32(s)
		}
		return audio.NewFrame(out, sampleRateHz)
	case string:
		out, err := DecodePCM16Base64(v)
		if err != nil {
			return audio.Frame{}, err
		}
		return audio.NewFrame(out, sampleRateHz)
	default:
		return audio.Frame{}, fmt.Errorf("unsupported sample type %T", samples)
	}
}

// DecodePCM16Base64 decodes base64-encoded little-endian 16-bit PCM into
// normalized float samples, dividing by 32768.
func DecodePCM16Base64(encoded string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("malformed base64 audio payload: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("malformed PCM payload: odd byte count %d", len(raw))
	}
	samples := make([]float32, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		s := int16(uint16(raw[i]) | uint16(raw[i+1])<<8)
		samples[i/2] = float32(s) / pcm16Scale
	}
	return samples, nil
}
