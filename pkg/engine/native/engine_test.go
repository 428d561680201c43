package native

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voxkit/voxkit/pkg/audio"
	"github.com/voxkit/voxkit/pkg/speech"
)

type fakeSession struct {
	results  chan Result
	canceled bool
}

func (s *fakeSession) Results() <-chan Result { return s.results }

func (s *fakeSession) Cancel() error {
	if !s.canceled {
		s.canceled = true
		close(s.results)
	}
	return nil
}

type fakeBridge struct {
	session  *fakeSession
	beginErr error
	locale   string
}

func (b *fakeBridge) Begin(ctx context.Context, locale string) (Session, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	b.locale = locale
	return b.session, nil
}

func collect(t *testing.T, engine *Engine) []speech.Event {
	t.Helper()
	var out []speech.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-engine.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out collecting events")
		}
	}
}

func TestEngineManagedSession(t *testing.T) {
	session := &fakeSession{results: make(chan Result, 8)}
	bridge := &fakeBridge{session: session}
	engine := New(bridge)

	if err := engine.Start(context.Background(), "en-IN"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if bridge.locale != "en-IN" {
		t.Errorf("bridge locale = %q, want en-IN", bridge.locale)
	}

	// Partials, one final, then the service terminates the run itself.
	session.results <- Result{Text: "hello"}
	session.results <- Result{Text: "hello there", Final: true}
	close(session.results)
	session.canceled = true

	evs := collect(t, engine)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if !evs[1].IsFinal {
		t.Error("last event should be final")
	}
}

func TestEnginePushRejected(t *testing.T) {
	engine := New(&fakeBridge{session: &fakeSession{results: make(chan Result)}})
	frame, _ := audio.NewFrame(make([]float32, 160), 16000)
	if err := engine.Push(frame); !errors.Is(err, speech.ErrUnsupportedCapability) {
		t.Errorf("Push() error = %v, want ErrUnsupportedCapability", err)
	}
}

func TestEngineErrorTaxonomyPreserved(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CodeAudio, "audio recording error"},
		{CodeNetwork, "network error"},
		{CodeNoMatch, "no speech match"},
		{CodeBusy, "busy"},
		{CodeTimeout, "timed out"},
		{CodeClient, "client error"},
	}

	for _, tt := range tests {
		session := &fakeSession{results: make(chan Result, 2)}
		engine := New(&fakeBridge{session: session})
		if err := engine.Start(context.Background(), "en-US"); err != nil {
			t.Fatal(err)
		}

		session.results <- Result{Code: tt.code, Detail: "service detail"}
		close(session.results)
		session.canceled = true

		evs := collect(t, engine)
		if len(evs) != 1 || evs[0].Kind != speech.EventError {
			t.Fatalf("code %v: got events %+v, want one error event", tt.code, evs)
		}
		if !strings.Contains(evs[0].Message, tt.want) {
			t.Errorf("code %v: message %q should contain %q", tt.code, evs[0].Message, tt.want)
		}
		if !strings.Contains(evs[0].Message, "service detail") {
			t.Errorf("code %v: service detail dropped from %q", tt.code, evs[0].Message)
		}
	}
}

func TestEngineStopCancelsSession(t *testing.T) {
	session := &fakeSession{results: make(chan Result, 1)}
	engine := New(&fakeBridge{session: session})
	if err := engine.Start(context.Background(), "en-US"); err != nil {
		t.Fatal(err)
	}

	if err := engine.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !session.canceled {
		t.Error("Stop must cancel the managed session")
	}
	// Second stop is a no-op.
	if err := engine.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestEngineNoBridge(t *testing.T) {
	engine := New(nil)
	if err := engine.Start(context.Background(), "en-US"); err == nil {
		t.Error("Start without a bridge should fail")
	}
}
