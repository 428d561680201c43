// Package native adapts the platform-managed recognition service used off
// Apple-family targets. The service owns audio capture and recognition
// internally: callers cannot inject frames, so buffer and file transcription
// are rejected as capability errors. A session emits partial results
// continuously, one final result, then terminates on its own.
package native

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voxkit/voxkit/pkg/audio"
	"github.com/voxkit/voxkit/pkg/speech"
)

// Code is the recognizer service's error taxonomy. It is richer than the
// normalized event contract; the distinguishing text is preserved in the
// ErrorEvent message rather than collapsed to a generic string.
type Code int

const (
	CodeNone Code = iota
	CodeAudio
	CodeNetwork
	CodeNoMatch
	CodeBusy
	CodeTimeout
	CodeClient
)

// message returns the distinguishing text for a service error code.
func (c Code) message() string {
	switch c {
	case CodeAudio:
		return "audio recording error from the device recognizer"
	case CodeNetwork:
		return "network error during device recognition"
	case CodeNoMatch:
		return "no speech match"
	case CodeBusy:
		return "device recognizer is busy"
	case CodeTimeout:
		return "device recognition timed out"
	case CodeClient:
		return "device recognizer client error"
	default:
		return "device recognizer error"
	}
}

// Result is one increment from the managed recognizer session.
type Result struct {
	Text   string
	Final  bool
	Code   Code   // CodeNone for successful increments
	Detail string // optional service-provided detail
}

// Session is one managed recognition run owned by the platform service.
// Results closes when the service terminates the run.
type Session interface {
	Results() <-chan Result
	Cancel() error
}

// Bridge starts managed recognizer sessions. Platform bindings implement it;
// there is no in-process default because recognition happens in the
// platform's own service.
type Bridge interface {
	Begin(ctx context.Context, locale string) (Session, error)
}

// Engine adapts a Bridge to the shared engine contract.
type Engine struct {
	bridge Bridge
	events chan speech.Event

	mu       sync.Mutex
	session  Session
	started  bool
	stopOnce sync.Once
	pumpDone chan struct{}
}

// New creates a native engine over the given bridge.
func New(bridge Bridge) *Engine {
	return &Engine{
		bridge: bridge,
		events: make(chan speech.Event, 32),
	}
}

func (e *Engine) Variant() speech.Variant { return speech.VariantNative }

func (e *Engine) Capabilities() speech.Capabilities {
	return speech.Capabilities{
		ExternalAudio: false,
		AutoFinalizes: true,
	}
}

// Start begins a managed recognition session for the locale.
func (e *Engine) Start(ctx context.Context, locale string) error {
	if e.bridge == nil {
		return errors.New("device recognition service is unavailable")
	}
	session, err := e.bridge.Begin(ctx, locale)
	if err != nil {
		return fmt.Errorf("failed to start device recognition: %w", err)
	}

	e.mu.Lock()
	e.session = session
	e.started = true
	e.pumpDone = make(chan struct{})
	e.mu.Unlock()

	go e.pump(session)
	return nil
}

// Push is unsupported: the platform service owns audio capture.
func (e *Engine) Push(audio.Frame) error {
	return speech.ErrUnsupportedCapability
}

// Stop cancels the managed session and waits for result delivery to finish.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	session, started := e.session, e.started
	e.mu.Unlock()

	if !started {
		e.stopOnce.Do(func() { close(e.events) })
		return nil
	}

	var err error
	e.stopOnce.Do(func() {
		err = session.Cancel()
		select {
		case <-e.pumpDone:
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(5 * time.Second):
			err = errors.New("timed out waiting for device recognizer to finish")
		}
	})
	return err
}

func (e *Engine) Events() <-chan speech.Event { return e.events }

func (e *Engine) pump(session Session) {
	defer close(e.events)
	defer close(e.pumpDone)
	for res := range session.Results() {
		if res.Code != CodeNone {
			message := res.Code.message()
			if res.Detail != "" {
				message = fmt.Sprintf("%s: %s", message, res.Detail)
			}
			e.events <- speech.Event{Kind: speech.EventError, Message: message}
			continue
		}
		e.events <- speech.Event{Kind: speech.EventProgress, Text: res.Text, IsFinal: res.Final}
	}
}
