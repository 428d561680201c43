// Package permission abstracts the platform's permission broker for speech
// recognition and microphone access. Desktop and server builds have no
// broker, so the default Checker grants everything.
package permission

import "context"

// Status is the outcome of a permission request.
type Status string

const (
	StatusGranted      Status = "granted"
	StatusDenied       Status = "denied"
	StatusRestricted   Status = "restricted"
	StatusUndetermined Status = "undetermined"
)

// Granted reports whether the status allows proceeding.
func (s Status) Granted() bool { return s == StatusGranted }

// Checker answers permission prompts. Implementations may block on a user
// dialog, so both calls take a context.
type Checker interface {
	RequestSpeech(ctx context.Context) (Status, error)
	RequestMicrophone(ctx context.Context) (Status, error)
}

// AlwaysGranted is the default Checker for environments without a
// permission broker.
type AlwaysGranted struct{}

func (AlwaysGranted) RequestSpeech(context.Context) (Status, error) {
	return StatusGranted, nil
}

func (AlwaysGranted) RequestMicrophone(context.Context) (Status, error) {
	return StatusGranted, nil
}

// Denied is a Checker that refuses everything. Useful in tests and as the
// safe default when the platform broker cannot be reached.
type Denied struct{}

func (Denied) RequestSpeech(context.Context) (Status, error) {
	return StatusDenied, nil
}

func (Denied) RequestMicrophone(context.Context) (Status, error) {
	return StatusDenied, nil
}
