// Package wavsource implements capture.Source on top of a WAV file. It is
// used by the CLI to exercise realtime sessions without a microphone and by
// tests that need a deterministic frame stream.
package wavsource

import (
	"context"
	"sync"
	"time"

	"github.com/voxkit/voxkit/pkg/audio"
	"github.com/voxkit/voxkit/pkg/audio/wav"
)

// Source streams the frames of a WAV file. With Realtime set, frames are
// paced at their playback rate; otherwise they are delivered as fast as the
// consumer drains them.
type Source struct {
	Path     string
	Realtime bool

	mu     sync.Mutex
	cancel context.CancelFunc
	frames chan audio.Frame
	lost   chan error
	done   chan struct{}
}

// New creates a source for the given WAV file.
func New(path string) *Source {
	return &Source{Path: path}
}

// Start reads the file and begins delivering frames.
func (s *Source) Start(ctx context.Context) error {
	reader, err := wav.NewReader(s.Path)
	if err != nil {
		return err
	}
	frames, err := reader.ReadFrames()
	reader.Close()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.frames = make(chan audio.Frame, 16)
	s.lost = make(chan error, 1)
	s.done = make(chan struct{})
	out, done := s.frames, s.done
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer close(done)
		for _, frame := range frames {
			if s.Realtime {
				select {
				case <-runCtx.Done():
					return
				case <-time.After(frame.Duration()):
				}
			}
			select {
			case out <- frame:
			case <-runCtx.Done():
				return
			}
		}
	}()
	return nil
}

// Frames returns the frame stream. Closed at end of file or on Stop.
func (s *Source) Frames() <-chan audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Lost never fires for a file-backed source; files do not get unplugged.
func (s *Source) Lost() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// Stop halts frame delivery and waits for the delivery goroutine to exit.
func (s *Source) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}
