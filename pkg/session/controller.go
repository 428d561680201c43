// Package session owns the transcription session lifecycle. A Controller
// binds exactly one engine at a time, pumps audio into it, forwards its
// events to listeners, and guarantees a clean return to Idle no matter how
// the session ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxkit/voxkit/internal/metrics"
	"github.com/voxkit/voxkit/pkg/audio"
	"github.com/voxkit/voxkit/pkg/audio/wav"
	"github.com/voxkit/voxkit/pkg/capture"
	"github.com/voxkit/voxkit/pkg/events"
	"github.com/voxkit/voxkit/pkg/ingest"
	"github.com/voxkit/voxkit/pkg/locale"
	"github.com/voxkit/voxkit/pkg/platform"
	"github.com/voxkit/voxkit/pkg/speech"
)

// NoSpeechDetected is returned by TranscribeFile when the recognizer
// produced no final text for the whole file.
const NoSpeechDetected = "No speech detected"

// State is the controller's lifecycle state.
type State int

const (
	// StateIdle means no session exists.
	StateIdle State = iota
	// StateStarting means a session is binding its engine and audio input.
	StateStarting
	// StateListening means audio is flowing and results are being emitted.
	StateListening
	// StateFinalizing means teardown is in progress and trailing results
	// are being flushed.
	StateFinalizing
	// StateError means a fatal mid-session failure is being cleaned up.
	// It always resolves to StateIdle.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateFinalizing:
		return "finalizing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// EngineFactory builds the engine for a resolved variant. The controller
// calls it once per session, after variant resolution and the exclusivity
// check have both passed.
type EngineFactory func(variant speech.Variant) (speech.Engine, error)

// Config carries controller-wide settings.
type Config struct {
	// StartTimeout bounds how long engine start may take. Zero means
	// wait as long as the caller's context allows.
	StartTimeout time.Duration

	// Logger receives session lifecycle logs. The zero value discards.
	Logger zerolog.Logger

	// Metrics is optional; nil records nothing.
	Metrics *metrics.Recorder
}

// Options configure a single session.
type Options struct {
	// Mode selects the engine variant ("universal", "next-gen", "legacy").
	Mode speech.Mode

	// Locale overrides the registry's active locale for this session only.
	// The active locale is not modified.
	Locale string

	// Source is the live audio input. Nil means the caller feeds audio
	// itself (buffer sessions) or the engine captures its own (native).
	Source capture.Source

	// AutoCloseOnFinal forces the session to tear itself down after the
	// first final result. Nil keeps the engine's default: engines that
	// finalize on their own close the session, buffer sessions stay open.
	AutoCloseOnFinal *bool

	// Buffer marks a caller-fed session created by SubmitFrame.
	Buffer bool
}

// handle pins everything belonging to one session. The engine binding is
// immutable once the session leaves Starting.
type handle struct {
	engine    speech.Engine
	variant   speech.Variant
	locale    string
	source    capture.Source
	adapter   *ingest.Adapter
	buffer    bool
	autoClose bool
	startedAt time.Time

	// closed by the goroutine that owns the respective pump
	eventsDone chan struct{}
	audioDone  chan struct{}
}

// Controller is the session lifecycle controller. All methods are safe for
// concurrent use; at most one session is active at a time.
type Controller struct {
	info    platform.Info
	locales *locale.Registry
	emitter *events.Emitter
	factory EngineFactory
	cfg     Config
	log     zerolog.Logger

	mu     sync.Mutex
	state  State
	handle *handle
	seq    uint64 // bumped on every return to Idle, invalidates in-flight starts
}

// New creates a Controller in the Idle state.
func New(info platform.Info, locales *locale.Registry, emitter *events.Emitter, factory EngineFactory, cfg Config) *Controller {
	return &Controller{
		info:    info,
		locales: locales,
		emitter: emitter,
		factory: factory,
		cfg:     cfg,
		log:     cfg.Logger,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsActive reports whether a session exists in any non-Idle state.
func (c *Controller) IsActive() bool {
	return c.State() != StateIdle
}

// Status describes the current session, if any.
type Status struct {
	State     State
	Variant   speech.Variant
	Locale    string
	Buffer    bool
	StartedAt time.Time
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state}
	if c.handle != nil {
		st.Variant = c.handle.variant
		st.Locale = c.handle.locale
		st.Buffer = c.handle.buffer
		st.StartedAt = c.handle.startedAt
	}
	return st
}

// Start begins a realtime session. It resolves the engine variant, binds
// the engine and audio input, and moves the controller to Listening.
//
// Variant resolution and capability failures are returned directly and
// leave the controller Idle without emitting anything. Failures after that
// point are reported on both channels: the error event stream and the
// returned error.
func (c *Controller) Start(ctx context.Context, opts Options) error {
	variant, err := speech.ResolveVariant(c.info, opts.Mode)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return speech.ErrAlreadyActive
	}
	c.state = StateStarting
	sid := c.seq
	c.mu.Unlock()

	engine, err := c.factory(variant)
	if err != nil {
		return c.failStart(variant, fmt.Errorf("failed to initialize %s engine: %w", variant, err))
	}
	if opts.Buffer && !engine.Capabilities().ExternalAudio {
		c.resetToIdle()
		return fmt.Errorf("%s engine does not accept injected audio: %w", variant, speech.ErrUnsupportedCapability)
	}

	loc := c.locales.Get()
	if opts.Locale != "" {
		loc, err = c.locales.Resolve(opts.Locale)
		if err != nil {
			return c.failStart(variant, err)
		}
	}

	if opts.Source != nil {
		if err := opts.Source.Start(ctx); err != nil {
			return c.failStart(variant, fmt.Errorf("failed to acquire audio input: %w", err))
		}
	}

	startCtx := ctx
	if c.cfg.StartTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, c.cfg.StartTimeout)
		defer cancel()
	}
	if err := engine.Start(startCtx, loc); err != nil {
		if opts.Source != nil {
			_ = opts.Source.Stop()
		}
		return c.failStart(variant, err)
	}

	autoClose := engine.Capabilities().AutoFinalizes && !opts.Buffer
	if opts.AutoCloseOnFinal != nil {
		autoClose = *opts.AutoCloseOnFinal
	}

	h := &handle{
		engine:     engine,
		variant:    variant,
		locale:     loc,
		source:     opts.Source,
		buffer:     opts.Buffer,
		autoClose:  autoClose,
		startedAt:  time.Now(),
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}
	if opts.Buffer {
		h.adapter = ingest.NewAdapter(engine, c.emitter)
	}

	c.mu.Lock()
	if c.state != StateStarting || c.seq != sid {
		// Stopped while starting: release what we bound and stay out of
		// whatever session came after us.
		c.mu.Unlock()
		if opts.Source != nil {
			_ = opts.Source.Stop()
		}
		_ = engine.Stop(context.Background())
		for range engine.Events() {
		}
		return errors.New("session stopped during start")
	}
	c.state = StateListening
	c.handle = h
	c.mu.Unlock()

	go c.consumeEvents(h)
	if h.source != nil {
		go c.pumpFrames(h)
		go c.watchSource(h)
	} else {
		close(h.audioDone)
	}

	c.cfg.Metrics.SessionStarted(variant.String())
	c.log.Info().
		Str("engine", variant.String()).
		Str("locale", loc).
		Bool("buffer", h.buffer).
		Msg("session started")
	return nil
}

// Stop ends the current session, flushes trailing results and returns the
// controller to Idle. It is idempotent: callers racing to stop the same
// session produce exactly one teardown, and no result or error event from
// the session is delivered after Stop returns.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
		c.mu.Unlock()
		return nil
	case StateFinalizing, StateError:
		// Another teardown owns the session. Wait for its event flush so
		// nothing from the session is delivered after this call returns.
		h := c.handle
		c.mu.Unlock()
		if h != nil {
			<-h.eventsDone
		}
		return nil
	case StateStarting:
		// Invalidate the in-flight start; its goroutine releases whatever
		// it bound when it notices.
		c.seq++
		c.state = StateIdle
		c.mu.Unlock()
		return nil
	}
	h := c.handle
	c.state = StateFinalizing
	c.mu.Unlock()
	return c.finish(ctx, h)
}

// SubmitFrame feeds one audio frame into the current buffer session,
// lazily starting a universal-mode session if none is active. Frames are
// rejected when a realtime session owns the engine.
func (c *Controller) SubmitFrame(ctx context.Context, samples any, sampleRateHz int) error {
	for {
		c.mu.Lock()
		h := c.handle
		state := c.state
		c.mu.Unlock()

		switch state {
		case StateIdle:
			err := c.Start(ctx, Options{Mode: speech.ModeUniversal, Buffer: true})
			if err != nil && !errors.Is(err, speech.ErrAlreadyActive) {
				return err
			}
			// On ErrAlreadyActive another caller's first frame won the
			// race; loop and submit through the session it created.
			continue
		case StateStarting:
			// A session is being established; wait for it to settle
			// instead of failing the frame.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
			continue
		case StateListening:
			if h == nil || !h.buffer {
				return speech.ErrAlreadyActive
			}
			if err := h.adapter.Submit(samples, sampleRateHz); err != nil {
				return err
			}
			c.cfg.Metrics.FrameSubmitted()
			return nil
		default:
			// Finalizing or Error: the session is shutting down.
			return speech.ErrAlreadyActive
		}
	}
}

// StopBuffer finalizes the current buffer session. It is a no-op when no
// buffer session is active, so callers can always pair it with SubmitFrame.
func (c *Controller) StopBuffer(ctx context.Context) error {
	c.mu.Lock()
	h := c.handle
	if h == nil || !h.buffer || c.state != StateListening {
		c.mu.Unlock()
		return nil
	}
	c.state = StateFinalizing
	c.mu.Unlock()
	return c.finish(ctx, h)
}

// TranscribeFile runs a whole audio file through the resolved engine and
// returns the joined final transcript. The call is synchronous: results are
// collected internally instead of being emitted to listeners, and all
// failures come back as the returned error. A file with no recognized
// speech yields NoSpeechDetected with a nil error.
func (c *Controller) TranscribeFile(ctx context.Context, path string, opts Options) (string, error) {
	variant, err := speech.ResolveVariant(c.info, opts.Mode)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return "", speech.ErrAlreadyActive
	}
	c.state = StateStarting
	sid := c.seq
	c.mu.Unlock()

	engine, err := c.factory(variant)
	if err != nil {
		c.resetToIdle()
		return "", fmt.Errorf("failed to initialize %s engine: %w", variant, err)
	}
	if !engine.Capabilities().ExternalAudio {
		c.resetToIdle()
		return "", fmt.Errorf("%s engine cannot transcribe files: %w", variant, speech.ErrUnsupportedCapability)
	}

	reader, err := wav.NewReader(path)
	if err != nil {
		c.resetToIdle()
		return "", err
	}
	frames, err := reader.ReadFrames()
	_ = reader.Close()
	if err != nil {
		c.resetToIdle()
		return "", err
	}

	loc := c.locales.Get()
	if opts.Locale != "" {
		loc, err = c.locales.Resolve(opts.Locale)
		if err != nil {
			c.resetToIdle()
			return "", err
		}
	}

	startCtx := ctx
	if c.cfg.StartTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, c.cfg.StartTimeout)
		defer cancel()
	}
	if err := engine.Start(startCtx, loc); err != nil {
		c.resetToIdle()
		return "", err
	}

	// Register a handle so Stop sees a real session while the file plays.
	// Frames are pushed inline rather than by a pump goroutine, so the
	// audio side is already drained from finish's point of view.
	h := &handle{
		engine:     engine,
		variant:    variant,
		locale:     loc,
		startedAt:  time.Now(),
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}
	close(h.audioDone)

	c.mu.Lock()
	if c.state != StateStarting || c.seq != sid {
		c.mu.Unlock()
		_ = engine.Stop(context.Background())
		for range engine.Events() {
		}
		return "", errors.New("session stopped during start")
	}
	c.state = StateListening
	c.handle = h
	c.mu.Unlock()
	c.cfg.Metrics.SessionStarted(variant.String())

	var finals []string
	go func() {
		defer close(h.eventsDone)
		for ev := range engine.Events() {
			if ev.Kind == speech.EventProgress && ev.IsFinal && ev.Text != "" {
				finals = append(finals, ev.Text)
			}
		}
	}()

	pushErr := c.pushAll(ctx, engine, frames)

	var stopErr error
	c.mu.Lock()
	if c.handle == h && c.state == StateListening {
		c.state = StateFinalizing
		c.mu.Unlock()
		stopErr = c.finish(ctx, h)
	} else {
		// A concurrent Stop owns the teardown; wait for its flush so the
		// finals slice is settled before we read it.
		c.mu.Unlock()
		<-h.eventsDone
	}

	if pushErr != nil {
		return "", pushErr
	}
	if stopErr != nil {
		return "", stopErr
	}
	text := strings.TrimSpace(strings.Join(finals, " "))
	if text == "" {
		return NoSpeechDetected, nil
	}
	return text, nil
}

// pushAll feeds frames to the engine, backing off briefly when the engine's
// bounded queue pushes back. File audio arrives much faster than realtime,
// so backpressure here is routine, not an error.
func (c *Controller) pushAll(ctx context.Context, engine speech.Engine, frames []audio.Frame) error {
	for _, frame := range frames {
		for {
			err := engine.Push(frame)
			if err == nil {
				break
			}
			if !errors.Is(err, speech.ErrBufferFull) {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
	return nil
}

func (c *Controller) failStart(variant speech.Variant, err error) error {
	c.log.Warn().Err(err).Str("engine", variant.String()).Msg("session start failed")
	c.cfg.Metrics.SessionFailed(variant.String())
	c.emitter.EmitError(err.Error())
	c.cfg.Metrics.ErrorEmitted()
	c.resetToIdle()
	return err
}

func (c *Controller) resetToIdle() {
	c.mu.Lock()
	c.state = StateIdle
	c.handle = nil
	c.seq++
	c.mu.Unlock()
}

// consumeEvents forwards engine events to listeners. It is the sole reader
// of the engine's event channel and runs until the engine closes it.
func (c *Controller) consumeEvents(h *handle) {
	defer close(h.eventsDone)
	autoClosed := false
	for ev := range h.engine.Events() {
		c.emitter.Emit(ev)
		switch ev.Kind {
		case speech.EventProgress:
			c.cfg.Metrics.ResultEmitted(ev.IsFinal)
			if ev.IsFinal && h.autoClose && !autoClosed {
				autoClosed = true
				go c.teardown(h, nil)
			}
		case speech.EventError:
			c.cfg.Metrics.ErrorEmitted()
		}
	}
	if !autoClosed {
		// The engine ended its stream on its own; managed sessions do
		// this after their single utterance.
		go c.teardown(h, nil)
	}
}

// pumpFrames moves captured audio into the engine. Frames the engine cannot
// take are dropped rather than buffered without bound.
func (c *Controller) pumpFrames(h *handle) {
	defer close(h.audioDone)
	for frame := range h.source.Frames() {
		if err := h.engine.Push(frame); err != nil {
			c.log.Debug().Err(err).Msg("dropped audio frame")
			continue
		}
		c.cfg.Metrics.FrameSubmitted()
	}
}

// watchSource tears the session down when the audio input is lost
// mid-session. Losing the input is fatal to the session but not to the
// controller: a new session can start immediately afterwards.
func (c *Controller) watchSource(h *handle) {
	select {
	case err, ok := <-h.source.Lost():
		if !ok {
			return
		}
		c.teardown(h, fmt.Errorf("audio input lost: %w", err))
	case <-h.eventsDone:
	}
}

// teardown ends the session from inside: after a final result with
// auto-close set, after the engine closed its stream, or after the audio
// input vanished. Exactly one teardown wins; the rest are no-ops.
func (c *Controller) teardown(h *handle, cause error) {
	c.mu.Lock()
	if c.handle != h || c.state != StateListening {
		c.mu.Unlock()
		return
	}
	if cause != nil {
		c.state = StateError
	} else {
		c.state = StateFinalizing
	}
	c.mu.Unlock()

	if cause != nil {
		c.log.Warn().Err(cause).Str("engine", h.variant.String()).Msg("session failed")
		c.emitter.EmitError(cause.Error())
		c.cfg.Metrics.ErrorEmitted()
	}
	_ = c.finish(context.Background(), h)
}

// finish performs the single teardown for h: release the audio input, stop
// the engine, wait for both pumps to drain, then return to Idle. The waits
// are what guarantee no event from this session is delivered after the
// stop call that triggered finish has returned.
func (c *Controller) finish(ctx context.Context, h *handle) error {
	if h.source != nil {
		_ = h.source.Stop()
	}
	err := h.engine.Stop(ctx)
	<-h.audioDone
	<-h.eventsDone

	c.mu.Lock()
	if c.handle == h {
		c.handle = nil
		c.state = StateIdle
		c.seq++
	}
	c.mu.Unlock()

	c.cfg.Metrics.SessionEnded(h.variant.String(), time.Since(h.startedAt).Seconds())
	c.log.Info().
		Str("engine", h.variant.String()).
		Dur("duration", time.Since(h.startedAt)).
		Msg("session ended")
	return err
}
