package speech

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that are answered synchronously, before any
// resource is acquired. Failures inside an active session are reported on the
// error event channel instead, because the originating call has already
// returned by the time they occur.
var (
	// ErrUnsupportedOS means the next-gen engine was explicitly requested
	// on an Apple-family target whose OS cannot run it (or whose build
	// omits it; the two are indistinguishable to callers).
	ErrUnsupportedOS = errors.New("next-gen recognition is not supported on this OS version")

	// ErrUnsupportedPlatform means the requested engine does not exist on
	// this platform family at all.
	ErrUnsupportedPlatform = errors.New("requested recognition engine is not supported on this platform")

	// ErrAlreadyActive means a session is already Starting, Listening or
	// Finalizing. The existing session is left undisturbed.
	ErrAlreadyActive = errors.New("a transcription session is already active")

	// ErrUnsupportedCapability means the bound engine cannot perform the
	// requested operation, e.g. frame injection into the native variant.
	ErrUnsupportedCapability = errors.New("operation not supported by this recognition engine")

	// ErrBufferFull means the engine's bounded audio queue rejected a frame.
	// The frame is dropped; pushing may be retried once the engine catches up.
	ErrBufferFull = errors.New("engine audio buffer is full")
)

// IsCapabilityError reports whether err is one of the synchronous
// capability/misuse rejections rather than a runtime failure.
func IsCapabilityError(err error) bool {
	return errors.Is(err, ErrUnsupportedOS) ||
		errors.Is(err, ErrUnsupportedPlatform) ||
		errors.Is(err, ErrUnsupportedCapability)
}

// LocaleError wraps a locale that could not be resolved or constructed.
// It preserves the offending code for the error event message.
type LocaleError struct {
	Code string
	Err  error
}

func (e *LocaleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("locale %q: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("locale %q is not supported", e.Code)
}

func (e *LocaleError) Unwrap() error { return e.Err }
