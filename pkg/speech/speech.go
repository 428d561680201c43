// Package speech defines the shared contract between the session lifecycle
// controller and the recognition engine variants. It holds the normalized
// event types, the closed engine interface all variants implement, and the
// capability resolver that picks a variant for a session.
package speech

import (
	"context"

	"github.com/voxkit/voxkit/pkg/audio"
)

// Variant identifies a recognition engine implementation. The set is closed:
// a session binds exactly one variant at start and never swaps it.
type Variant int

const (
	VariantUnknown Variant = iota
	// VariantNextGen is the advanced on-device transcriber. It requires
	// per-locale model provisioning before first use.
	VariantNextGen
	// VariantLegacy is the continuous streaming recognizer. Broadly
	// available, no provisioning step.
	VariantLegacy
	// VariantNative is the platform-managed recognition service used off
	// Apple-family targets. Single managed session, no frame injection.
	VariantNative
)

func (v Variant) String() string {
	switch v {
	case VariantNextGen:
		return "next-gen"
	case VariantLegacy:
		return "legacy"
	case VariantNative:
		return "native"
	default:
		return "unknown"
	}
}

// Mode is the caller's realtime engine preference.
type Mode string

const (
	// ModeUniversal picks the best engine available on this platform.
	ModeUniversal Mode = "universal"
	// ModeNextGen demands the next-gen engine and fails if unavailable.
	ModeNextGen Mode = "next-gen"
	// ModeLegacy demands the streaming recognizer.
	ModeLegacy Mode = "legacy"
)

// EventKind discriminates the two public event kinds. There are no others.
type EventKind int

const (
	// EventProgress carries a transcription result.
	EventProgress EventKind = iota
	// EventError carries a human-readable failure description.
	EventError
)

// Event is the single normalized event type every engine variant funnels
// into. Progress events carry cumulative best-hypothesis text for the current
// utterance; IsFinal marks the utterance complete. Error events carry only a
// message; the kind of failure is inferred from its text.
type Event struct {
	Kind    EventKind
	Text    string
	IsFinal bool
	Message string
}

// Progress is the caller-facing shape of a progress event.
type Progress struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// ErrorEvent is the caller-facing shape of an error event.
type ErrorEvent struct {
	Message string `json:"message"`
}

// Capabilities describes what a bound engine variant can do. The controller
// consults it instead of switching on the variant at every use site.
type Capabilities struct {
	// ExternalAudio is true when the engine accepts frames pushed from
	// outside (live capture tap, buffer adapter, file reader). The native
	// variant owns capture internally and reports false.
	ExternalAudio bool
	// Provisioning is true when the engine may need a model download
	// before a session can start.
	Provisioning bool
	// AutoFinalizes is true when the engine finishes an utterance on its
	// own and the session should close after the final result in
	// realtime mode.
	AutoFinalizes bool
}

// Engine is the interface every recognition variant implements.
//
// Start acquires engine resources for the given locale and must complete any
// provisioning before returning. Push submits one audio frame; it must not
// block on recognition. Stop signals end-of-input, drains outstanding
// results, and releases all engine resources unconditionally; after Stop
// returns no further events are delivered and Events() is closed.
type Engine interface {
	Variant() Variant
	Capabilities() Capabilities
	Start(ctx context.Context, locale string) error
	Push(frame audio.Frame) error
	Stop(ctx context.Context) error
	Events() <-chan Event
}
