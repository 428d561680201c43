// Package voxkit is the public entry point for on-device speech-to-text.
// A Recognizer bundles locale management, permission checks, engine variant
// resolution and the session lifecycle behind one object; the subpackages
// under pkg/ stay available for callers that need the pieces individually.
package voxkit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxkit/voxkit/internal/metrics"
	"github.com/voxkit/voxkit/pkg/capture"
	"github.com/voxkit/voxkit/pkg/engine/legacy"
	"github.com/voxkit/voxkit/pkg/engine/native"
	"github.com/voxkit/voxkit/pkg/engine/nextgen"
	"github.com/voxkit/voxkit/pkg/events"
	"github.com/voxkit/voxkit/pkg/locale"
	"github.com/voxkit/voxkit/pkg/permission"
	"github.com/voxkit/voxkit/pkg/platform"
	"github.com/voxkit/voxkit/pkg/session"
	"github.com/voxkit/voxkit/pkg/speech"
)

// DefaultLegacyServiceURL is the production endpoint of the streaming
// dictation service used by the legacy engine.
const DefaultLegacyServiceURL = "wss://dictation.voxkit.dev/v1/stream"

// Recognizer is the top-level speech-to-text facade. All methods are safe
// for concurrent use.
type Recognizer struct {
	info        platform.Info
	locales     *locale.Registry
	emitter     *events.Emitter
	controller  *session.Controller
	permissions permission.Checker
	log         zerolog.Logger
}

type settings struct {
	info              *platform.Info
	enumerate         func() []string
	permissions       permission.Checker
	logger            zerolog.Logger
	metrics           *metrics.Recorder
	startTimeout      time.Duration
	legacyBridge      legacy.Bridge
	legacyURL         string
	nativeBridge      native.Bridge
	modelDir          string
	modelBaseURL      string
	provisionProgress func(downloaded, total int64)
	factory           session.EngineFactory
}

// Option configures a Recognizer.
type Option func(*settings)

// WithPlatform overrides platform detection, mainly for tests and for
// builds that know their deployment target better than runtime.GOOS does.
func WithPlatform(info platform.Info) Option {
	return func(s *settings) { s.info = &info }
}

// WithLocaleEnumerator supplies the platform's locale enumeration. Without
// it a static fallback list is used.
func WithLocaleEnumerator(enumerate func() []string) Option {
	return func(s *settings) { s.enumerate = enumerate }
}

// WithPermissionChecker installs the platform permission broker.
func WithPermissionChecker(checker permission.Checker) Option {
	return func(s *settings) { s.permissions = checker }
}

// WithLogger directs lifecycle logs somewhere. The default discards them.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMetrics attaches a Prometheus recorder.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *settings) { s.metrics = rec }
}

// WithStartTimeout bounds session start. Zero waits indefinitely.
func WithStartTimeout(d time.Duration) Option {
	return func(s *settings) { s.startTimeout = d }
}

// WithLegacyServiceURL points the legacy engine at a different endpoint.
func WithLegacyServiceURL(url string) Option {
	return func(s *settings) { s.legacyURL = url }
}

// WithLegacyBridge replaces the websocket bridge entirely.
func WithLegacyBridge(bridge legacy.Bridge) Option {
	return func(s *settings) { s.legacyBridge = bridge }
}

// WithNativeBridge connects the native engine to the device recognition
// service. Without it the native variant reports the service unavailable.
func WithNativeBridge(bridge native.Bridge) Option {
	return func(s *settings) { s.nativeBridge = bridge }
}

// WithModelDir overrides where next-gen model assets are stored.
func WithModelDir(dir string) Option {
	return func(s *settings) { s.modelDir = dir }
}

// WithModelBaseURL overrides the model asset host, mainly for tests.
func WithModelBaseURL(url string) Option {
	return func(s *settings) { s.modelBaseURL = url }
}

// WithProvisionProgress observes next-gen model download progress.
func WithProvisionProgress(fn func(downloaded, total int64)) Option {
	return func(s *settings) { s.provisionProgress = fn }
}

// WithEngineFactory replaces engine construction wholesale. Tests use this
// to inject scripted engines.
func WithEngineFactory(factory session.EngineFactory) Option {
	return func(s *settings) { s.factory = factory }
}

// New creates a Recognizer. The zero-option form detects the platform,
// grants permissions, discards logs and talks to the production services.
func New(opts ...Option) *Recognizer {
	s := settings{
		permissions: permission.AlwaysGranted{},
		legacyURL:   DefaultLegacyServiceURL,
	}
	for _, opt := range opts {
		opt(&s)
	}

	info := platform.Info{
		Family:  platform.DetectFamily(),
		NextGen: nextgen.Available(),
	}
	if s.info != nil {
		info = *s.info
	}

	r := &Recognizer{
		info:        info,
		locales:     locale.NewRegistry(s.enumerate),
		emitter:     events.NewEmitter(),
		permissions: s.permissions,
		log:         s.logger,
	}

	factory := s.factory
	if factory == nil {
		factory = r.newEngine(&s)
	}
	r.controller = session.New(info, r.locales, r.emitter, factory, session.Config{
		StartTimeout: s.startTimeout,
		Logger:       s.logger,
		Metrics:      s.metrics,
	})
	return r
}

// newEngine returns the default engine factory, capturing the construction
// settings so the Recognizer itself stays free of engine plumbing.
func (r *Recognizer) newEngine(s *settings) session.EngineFactory {
	legacyBridge := s.legacyBridge
	if legacyBridge == nil {
		legacyBridge = &legacy.WSBridge{URL: s.legacyURL}
	}
	nativeBridge := s.nativeBridge
	modelDir, modelBaseURL := s.modelDir, s.modelBaseURL
	progress := s.provisionProgress

	return func(variant speech.Variant) (speech.Engine, error) {
		switch variant {
		case speech.VariantLegacy:
			return legacy.New(legacyBridge), nil
		case speech.VariantNative:
			return native.New(nativeBridge), nil
		case speech.VariantNextGen:
			eng := nextgen.New(nextgen.NewManager(modelDir, modelBaseURL))
			eng.ProvisionProgress = progress
			return eng, nil
		default:
			return nil, fmt.Errorf("no engine for variant %s", variant)
		}
	}
}

// RequestSpeechPermission asks the platform for speech recognition access.
// The full status is returned so callers can tell a user's "denied" apart
// from "restricted" (policy) and "undetermined" (never asked);
// permission.Status.Granted collapses it when only a yes/no is needed.
func (r *Recognizer) RequestSpeechPermission(ctx context.Context) (permission.Status, error) {
	return r.permissions.RequestSpeech(ctx)
}

// RequestMicrophonePermission asks the platform for microphone access.
func (r *Recognizer) RequestMicrophonePermission(ctx context.Context) (permission.Status, error) {
	return r.permissions.RequestMicrophone(ctx)
}

// SetLocale changes the active locale for subsequent sessions. Sessions
// already running are unaffected. On failure the active locale is kept and
// the rejection is also reported on the error event stream, so UI listeners
// see it without plumbing the return value through.
func (r *Recognizer) SetLocale(code string) error {
	if err := r.locales.Set(code); err != nil {
		r.emitter.EmitError(err.Error())
		return err
	}
	return nil
}

// GetLocale returns the locale new sessions will use.
func (r *Recognizer) GetLocale() string {
	return r.locales.Get()
}

// SupportedLocales lists the locales the platform can recognize.
func (r *Recognizer) SupportedLocales() []string {
	return r.locales.Supported()
}

// IsLocaleSupported reports whether code resolves to a supported locale.
// It never fails; unsupported and malformed codes both return false.
func (r *Recognizer) IsLocaleSupported(code string) bool {
	return r.locales.IsSupported(code)
}

// StartOptions configure one realtime session.
type StartOptions struct {
	// Mode selects the engine variant. Empty means ModeUniversal.
	Mode speech.Mode
	// Locale overrides the active locale for this session only.
	Locale string
	// Source is the live audio input feeding the session. Engines that
	// capture their own audio (the native variant) ignore it.
	Source capture.Source
	// AutoCloseOnFinal forces teardown after the first final result.
	// Nil keeps the engine's default.
	AutoCloseOnFinal *bool
}

// StartRealtime begins a realtime transcription session. Results arrive via
// OnProgress, failures via OnError; only one session may be active at a
// time.
func (r *Recognizer) StartRealtime(ctx context.Context, opts StartOptions) error {
	mode := opts.Mode
	if mode == "" {
		mode = speech.ModeUniversal
	}
	return r.controller.Start(ctx, session.Options{
		Mode:             mode,
		Locale:           opts.Locale,
		Source:           opts.Source,
		AutoCloseOnFinal: opts.AutoCloseOnFinal,
	})
}

// Stop ends the current session, realtime or buffer. It is idempotent and
// returns only after trailing results have been delivered.
func (r *Recognizer) Stop(ctx context.Context) error {
	return r.controller.Stop(ctx)
}

// IsActive reports whether any session is running.
func (r *Recognizer) IsActive() bool {
	return r.controller.IsActive()
}

// TranscribeFile transcribes a WAV file and returns the final transcript,
// or session.NoSpeechDetected when the recognizer heard nothing.
func (r *Recognizer) TranscribeFile(ctx context.Context, path string, mode speech.Mode) (string, error) {
	if mode == "" {
		mode = speech.ModeUniversal
	}
	return r.controller.TranscribeFile(ctx, path, session.Options{Mode: mode})
}

// SubmitAudioFrame feeds one frame of caller-captured audio. Samples may be
// []float32, []float64 or a base64-encoded little-endian 16-bit PCM string.
// The first frame lazily starts a buffer session.
func (r *Recognizer) SubmitAudioFrame(ctx context.Context, samples any, sampleRateHz int) error {
	return r.controller.SubmitFrame(ctx, samples, sampleRateHz)
}

// StopBufferSession finalizes the current buffer session. A no-op when none
// is active.
func (r *Recognizer) StopBufferSession(ctx context.Context) error {
	return r.controller.StopBuffer(ctx)
}

// OnProgress registers a transcription result listener. Listeners are
// called in registration order and must not block.
func (r *Recognizer) OnProgress(fn func(speech.Progress)) {
	r.emitter.OnProgress(fn)
}

// OnError registers an error event listener.
func (r *Recognizer) OnError(fn func(speech.ErrorEvent)) {
	r.emitter.OnError(fn)
}

// Status exposes the current session snapshot.
func (r *Recognizer) Status() session.Status {
	return r.controller.Status()
}
