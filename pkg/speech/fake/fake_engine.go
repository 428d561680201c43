// Package fake provides a scriptable recognition engine for testing the
// session controller, the buffer adapter, and the public facade without any
// platform recognition service.
package fake

import (
	"context"
	"sync"

	"github.com/voxkit/voxkit/pkg/audio"
	"github.com/voxkit/voxkit/pkg/speech"
)

// Engine is a fake speech.Engine. Its result stream is driven by the test via
// EmitPartial/EmitFinal/EmitFailure.
type Engine struct {
	EngineVariant speech.Variant
	Caps          speech.Capabilities

	// StartErr, when set, is returned by Start.
	StartErr error
	// PushErr, when set, is returned by Push.
	PushErr error
	// OnStart, when set, is invoked with the resolved locale.
	OnStart func(locale string) error

	mu        sync.Mutex
	events    chan speech.Event
	started   bool
	stopCount int
	locale    string
	frames    []audio.Frame
}

// NewEngine creates a fake engine reporting the given variant. The default
// capabilities accept external audio and do not auto-finalize.
func NewEngine(variant speech.Variant) *Engine {
	return &Engine{
		EngineVariant: variant,
		Caps:          speech.Capabilities{ExternalAudio: true},
		events:        make(chan speech.Event, 32),
	}
}

func (e *Engine) Variant() speech.Variant           { return e.EngineVariant }
func (e *Engine) Capabilities() speech.Capabilities { return e.Caps }

func (e *Engine) Start(ctx context.Context, locale string) error {
	if e.StartErr != nil {
		return e.StartErr
	}
	if e.OnStart != nil {
		if err := e.OnStart(locale); err != nil {
			return err
		}
	}
	e.mu.Lock()
	e.started = true
	e.locale = locale
	e.mu.Unlock()
	return nil
}

func (e *Engine) Push(frame audio.Frame) error {
	if e.PushErr != nil {
		return e.PushErr
	}
	if !e.Caps.ExternalAudio {
		return speech.ErrUnsupportedCapability
	}
	e.mu.Lock()
	e.frames = append(e.frames, frame.Clone())
	e.mu.Unlock()
	return nil
}

func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopCount++
	if e.stopCount == 1 {
		close(e.events)
	}
	return nil
}

func (e *Engine) Events() <-chan speech.Event { return e.events }

// EmitPartial delivers an interim transcription result.
func (e *Engine) EmitPartial(text string) {
	e.events <- speech.Event{Kind: speech.EventProgress, Text: text}
}

// EmitFinal delivers a final transcription result.
func (e *Engine) EmitFinal(text string) {
	e.events <- speech.Event{Kind: speech.EventProgress, Text: text, IsFinal: true}
}

// EmitFailure delivers an engine error event.
func (e *Engine) EmitFailure(message string) {
	e.events <- speech.Event{Kind: speech.EventError, Message: message}
}

// Started reports whether Start completed.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// StopCount returns how many times Stop was called.
func (e *Engine) StopCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopCount
}

// Locale returns the locale Start received.
func (e *Engine) Locale() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locale
}

// Frames returns a copy of every frame pushed so far.
func (e *Engine) Frames() []audio.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]audio.Frame, len(e.frames))
	copy(out, e.frames)
	return out
}
