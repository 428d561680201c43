// Package nextgen implements the advanced on-device transcription engine.
// It runs a local ONNX acoustic model and requires per-locale asset
// provisioning before the first session for that locale. The inference code
// is compiled in with the nextgen build tag; without it the engine reports
// itself unavailable and the capability resolver routes sessions elsewhere.
package nextgen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxkit/voxkit/pkg/audio"
	"github.com/voxkit/voxkit/pkg/speech"
)

// sessionState tracks the per-session machine:
// Uninitialized → ModelCheck → (ModelDownload) → Analyzing → Draining → Closed.
type sessionState int

const (
	stateUninitialized sessionState = iota
	stateModelCheck
	stateModelDownload
	stateAnalyzing
	stateDraining
	stateClosed
)

// frameBuffer is the analysis input queue depth.
const frameBuffer = 256

// analyzer is the inference seam. The production implementation lives behind
// the nextgen build tag; tests inject their own.
type analyzer interface {
	// Transcribe returns the cumulative best hypothesis for the samples
	// analyzed so far in this utterance.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
	// Close releases inference resources. Always called, exactly once.
	Close() error
}

// Engine drives one next-gen transcription session.
type Engine struct {
	manager *Manager
	// newAnalyzer is replaceable in tests; defaults to the build-tagged
	// platform analyzer.
	newAnalyzer func(modelDir, locale string) (analyzer, error)
	// ProvisionProgress, when set, observes model download progress.
	ProvisionProgress func(downloaded, total int64)

	events chan speech.Event

	mu     sync.Mutex
	state  sessionState
	frames chan audio.Frame
	done   chan struct{}

	stopOnce sync.Once
}

// New creates a next-gen engine backed by the given model manager.
func New(manager *Manager) *Engine {
	return &Engine{
		manager:     manager,
		newAnalyzer: newPlatformAnalyzer,
		events:      make(chan speech.Event, 32),
	}
}

func (e *Engine) Variant() speech.Variant { return speech.VariantNextGen }

func (e *Engine) Capabilities() speech.Capabilities {
	return speech.Capabilities{
		ExternalAudio: true,
		Provisioning:  true,
		// The next-gen analyzer keeps streaming across utterances; the
		// session closes only on an explicit stop.
		AutoFinalizes: false,
	}
}

// Start verifies the locale, provisions its model if needed, and begins
// analysis. Provisioning failures abort the session; the caller must
// re-invoke start, there is no automatic retry.
func (e *Engine) Start(ctx context.Context, locale string) error {
	e.setState(stateModelCheck)
	info, ok := LookupModel(locale)
	if !ok {
		e.setState(stateClosed)
		return &speech.LocaleError{Code: locale, Err: fmt.Errorf("locale not supported by the next-gen engine")}
	}

	if !e.manager.IsInstalled(info) {
		e.setState(stateModelDownload)
		if err := e.manager.Install(ctx, info, e.ProvisionProgress); err != nil {
			e.setState(stateClosed)
			return fmt.Errorf("model download failed: %w", err)
		}
	}

	an, err := e.newAnalyzer(e.manager.ModelDir(info), locale)
	if err != nil {
		e.setState(stateClosed)
		return fmt.Errorf("failed to initialize next-gen analyzer: %w", err)
	}

	e.mu.Lock()
	e.state = stateAnalyzing
	e.frames = make(chan audio.Frame, frameBuffer)
	e.done = make(chan struct{})
	frames := e.frames
	e.mu.Unlock()

	go e.analyze(an, frames)
	return nil
}

// Push submits one frame for analysis without blocking on inference.
func (e *Engine) Push(frame audio.Frame) error {
	// The send is non-blocking, so holding the lock also serializes
	// against Stop closing the channel.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateAnalyzing {
		return fmt.Errorf("next-gen engine is not analyzing")
	}
	select {
	case e.frames <- frame:
		return nil
	default:
		return fmt.Errorf("next-gen engine: %w", speech.ErrBufferFull)
	}
}

// Stop signals end-of-input, waits for outstanding result delivery, and
// releases engine resources. Resource release is not skipped even when error
// events are still being processed.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	state := e.state
	done := e.done
	e.mu.Unlock()

	if state != stateAnalyzing && state != stateDraining {
		e.stopOnce.Do(func() { close(e.events) })
		e.setState(stateClosed)
		return nil
	}

	var err error
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.state = stateDraining
		close(e.frames)
		e.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(30 * time.Second):
			err = fmt.Errorf("timed out draining next-gen analyzer")
		}
		e.setState(stateClosed)
	})
	return err
}

func (e *Engine) Events() <-chan speech.Event { return e.events }

// analyze consumes frames until end-of-input, emitting an updated cumulative
// hypothesis roughly twice per second of audio and a final hypothesis on
// drain. Engine resources are released unconditionally on exit.
func (e *Engine) analyze(an analyzer, frames <-chan audio.Frame) {
	defer close(e.events)
	defer close(e.done)
	defer an.Close()

	var samples []float32
	sampleRate := 0
	analyzedThrough := 0

	for frame := range frames {
		if sampleRate == 0 {
			sampleRate = frame.SampleRate
		}
		samples = append(samples, frame.Samples...)

		// Re-run the hypothesis after every half second of new audio.
		// Later hypotheses may revise earlier text; only the latest
		// one per utterance is meaningful.
		if len(samples)-analyzedThrough < sampleRate/2 {
			continue
		}
		analyzedThrough = len(samples)

		text, err := an.Transcribe(context.Background(), samples, sampleRate)
		if err != nil {
			e.events <- speech.Event{Kind: speech.EventError, Message: fmt.Sprintf("next-gen analysis failed: %v", err)}
			return
		}
		if text != "" {
			e.events <- speech.Event{Kind: speech.EventProgress, Text: text}
		}
	}

	// Drain: one last pass over the full utterance for the final result.
	if len(samples) == 0 || sampleRate == 0 {
		return
	}
	text, err := an.Transcribe(context.Background(), samples, sampleRate)
	if err != nil {
		e.events <- speech.Event{Kind: speech.EventError, Message: fmt.Sprintf("next-gen analysis failed: %v", err)}
		return
	}
	if text != "" {
		e.events <- speech.Event{Kind: speech.EventProgress, Text: text, IsFinal: true}
	}
}

func (e *Engine) setState(s sessionState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}
