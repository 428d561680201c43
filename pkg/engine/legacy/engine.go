// Package legacy implements the continuous streaming recognition engine. It
// is the broadly available variant: no model provisioning, availability is
// solely whether a recognizer can be constructed for the locale. Audio is
// appended through a buffered interface and recognition results arrive
// asynchronously, decoupled from the submission rate.
package legacy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxkit/voxkit/pkg/audio"
	"github.com/voxkit/voxkit/pkg/speech"
)

// frameBuffer is the append queue depth. Push never blocks on recognition;
// it fails fast if the recognizer cannot keep up at all.
const frameBuffer = 256

// Result is one recognition increment from the platform recognizer.
type Result struct {
	Text  string
	Final bool
	Err   error
}

// Conn is one live connection to the streaming recognizer.
type Conn interface {
	// Send submits one audio frame. It may buffer internally.
	Send(frame audio.Frame) error
	// CloseSend signals end-of-input; outstanding results still arrive.
	CloseSend() error
	// Results delivers recognition increments. Closed when the recognizer
	// has flushed everything after CloseSend or Close.
	Results() <-chan Result
	// Close tears the connection down.
	Close() error
}

// Bridge constructs recognizer connections. Connecting is also the
// availability check: a locale the recognizer cannot serve fails here.
type Bridge interface {
	Connect(ctx context.Context, locale string) (Conn, error)
}

// Engine adapts a Bridge to the shared engine contract.
type Engine struct {
	bridge Bridge

	mu      sync.Mutex
	conn    Conn
	frames  chan audio.Frame
	events  chan speech.Event
	sendErr chan error
	started bool
	closing bool

	sendOnce sync.Once
	stopOnce sync.Once
	readDone chan struct{}
	sendDone chan struct{}
}

// New creates a streaming engine over the given bridge.
func New(bridge Bridge) *Engine {
	return &Engine{
		bridge: bridge,
		events: make(chan speech.Event, 32),
	}
}

func (e *Engine) Variant() speech.Variant { return speech.VariantLegacy }

func (e *Engine) Capabilities() speech.Capabilities {
	return speech.Capabilities{
		ExternalAudio: true,
		AutoFinalizes: true,
	}
}

// Start connects to the recognizer for the given locale.
func (e *Engine) Start(ctx context.Context, locale string) error {
	conn, err := e.bridge.Connect(ctx, locale)
	if err != nil {
		return &speech.LocaleError{Code: locale, Err: err}
	}

	e.mu.Lock()
	e.conn = conn
	e.frames = make(chan audio.Frame, frameBuffer)
	e.sendErr = make(chan error, 1)
	e.readDone = make(chan struct{})
	e.sendDone = make(chan struct{})
	e.started = true
	e.mu.Unlock()

	go e.sendLoop(conn)
	go e.readLoop(conn)
	return nil
}

// Push appends a frame to the send queue without blocking on recognition.
func (e *Engine) Push(frame audio.Frame) error {
	// Non-blocking send under the lock, so Stop cannot close the queue
	// mid-append.
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.closing {
		return fmt.Errorf("streaming engine is not accepting audio")
	}
	select {
	case e.frames <- frame:
		return nil
	default:
		return fmt.Errorf("streaming engine: %w", speech.ErrBufferFull)
	}
}

// Stop signals end-of-input, waits for the recognizer to flush outstanding
// results, then releases the connection. Safe to call more than once; only
// the first call performs teardown.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	conn, started := e.conn, e.started
	e.mu.Unlock()

	if !started {
		e.stopOnce.Do(func() { close(e.events) })
		return nil
	}

	var err error
	e.stopOnce.Do(func() {
		e.sendOnce.Do(func() {
			e.mu.Lock()
			e.closing = true
			close(e.frames)
			e.mu.Unlock()
		})
		<-e.sendDone
		err = conn.CloseSend()

		select {
		case <-e.readDone:
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(5 * time.Second):
			err = fmt.Errorf("timed out waiting for recognizer to flush")
		}
		// Connection release is unconditional, even on flush failure.
		if closeErr := conn.Close(); err == nil {
			err = closeErr
		}
	})
	return err
}

func (e *Engine) Events() <-chan speech.Event { return e.events }

func (e *Engine) sendLoop(conn Conn) {
	defer close(e.sendDone)
	for frame := range e.frames {
		if err := conn.Send(frame); err != nil {
			// Reported by the read loop so only one goroutine ever
			// touches the events channel.
			select {
			case e.sendErr <- err:
			default:
			}
			return
		}
	}
}

func (e *Engine) readLoop(conn Conn) {
	defer close(e.events)
	defer close(e.readDone)
	results := conn.Results()
	for {
		select {
		case err := <-e.sendErr:
			e.events <- speech.Event{Kind: speech.EventError, Message: fmt.Sprintf("audio submission failed: %v", err)}
		case res, ok := <-results:
			if !ok {
				return
			}
			if res.Err != nil {
				e.events <- speech.Event{Kind: speech.EventError, Message: res.Err.Error()}
				continue
			}
			e.events <- speech.Event{Kind: speech.EventProgress, Text: res.Text, IsFinal: res.Final}
		}
	}
}
