// Package capture defines the seam between the session controller and the
// audio-capture path it does not own. A Source delivers mono frames and a
// hardware-availability signal; capture device internals stay behind it.
package capture

import (
	"context"

	"github.com/voxkit/voxkit/pkg/audio"
)

// Source is a live audio input. The controller acquires it when a session
// enters Starting and releases it on Finalizing or Error.
//
// Frames is closed when the source reaches end-of-input or is stopped. Lost
// receives at most one error when the underlying hardware becomes
// unavailable mid-session (device stolen, disconnected); the controller
// treats that as fatal-but-recoverable.
type Source interface {
	Start(ctx context.Context) error
	Frames() <-chan audio.Frame
	Lost() <-chan error
	Stop() error
}
