// Package events is the fan-out point every engine variant and the buffer
// ingestion adapter funnel through. The public contract has exactly two event
// kinds: progress and error. Nothing else.
package events

import (
	"sync"

	"github.com/voxkit/voxkit/pkg/speech"
)

// Emitter dispatches progress and error events to registered listeners.
// Delivery preserves the order in which events were emitted, across both
// kinds; there is no batching or reordering.
type Emitter struct {
	subMu      sync.RWMutex
	onProgress []func(speech.Progress)
	onError    []func(speech.ErrorEvent)

	// dispatchMu serializes emission so listeners observe events in the
	// order the underlying engine produced them.
	dispatchMu sync.Mutex
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// OnProgress registers a progress listener. Listeners are invoked
// synchronously on the emitting goroutine and should not block.
func (e *Emitter) OnProgress(fn func(speech.Progress)) {
	if fn == nil {
		return
	}
	e.subMu.Lock()
	e.onProgress = append(e.onProgress, fn)
	e.subMu.Unlock()
}

// OnError registers an error listener.
func (e *Emitter) OnError(fn func(speech.ErrorEvent)) {
	if fn == nil {
		return
	}
	e.subMu.Lock()
	e.onError = append(e.onError, fn)
	e.subMu.Unlock()
}

// EmitProgress publishes a transcription result.
func (e *Emitter) EmitProgress(text string, isFinal bool) {
	e.subMu.RLock()
	listeners := e.onProgress
	e.subMu.RUnlock()

	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	for _, fn := range listeners {
		fn(speech.Progress{Text: text, IsFinal: isFinal})
	}
}

// EmitError publishes a failure description.
func (e *Emitter) EmitError(message string) {
	e.subMu.RLock()
	listeners := e.onError
	e.subMu.RUnlock()

	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	for _, fn := range listeners {
		fn(speech.ErrorEvent{Message: message})
	}
}

// Emit routes a normalized engine event to the matching listener set.
func (e *Emitter) Emit(ev speech.Event) {
	switch ev.Kind {
	case speech.EventProgress:
		e.EmitProgress(ev.Text, ev.IsFinal)
	case speech.EventError:
		e.EmitError(ev.Message)
	}
}
