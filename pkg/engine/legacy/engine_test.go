package legacy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxkit/voxkit/pkg/audio"
	"github.com/voxkit/voxkit/pkg/speech"
)

type fakeConn struct {
	results   chan Result
	sent      chan audio.Frame
	sendErr   error
	closeSent bool
	closed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		results: make(chan Result, 16),
		sent:    make(chan audio.Frame, 256),
	}
}

func (c *fakeConn) Send(frame audio.Frame) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	select {
	case c.sent <- frame:
	default:
	}
	return nil
}

func (c *fakeConn) CloseSend() error {
	c.closeSent = true
	// Recognizer flushes and closes once input ends.
	close(c.results)
	return nil
}

func (c *fakeConn) Results() <-chan Result { return c.results }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeBridge struct {
	conn       *fakeConn
	connectErr error
	locale     string
}

func (b *fakeBridge) Connect(ctx context.Context, locale string) (Conn, error) {
	if b.connectErr != nil {
		return nil, b.connectErr
	}
	b.locale = locale
	return b.conn, nil
}

func drainEvents(t *testing.T, engine *Engine) []speech.Event {
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
			t.Fatal("timed out draining events")
		}
	}
}

func TestEngineStreamsResults(t *testing.T) {
	bridge := &fakeBridge{conn: newFakeConn()}
	engine := New(bridge)

	if err := engine.Start(context.Background(), "es-ES"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if bridge.locale != "es-ES" {
		t.Errorf("bridge locale = %q, want es-ES", bridge.locale)
	}

	frame, _ := audio.NewFrame(make([]float32, 160), 16000)
	if err := engine.Push(frame); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	bridge.conn.results <- Result{Text: "hola"}
	bridge.conn.results <- Result{Text: "hola mundo", Final: true}

	if err := engine.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	evs := drainEvents(t, engine)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].IsFinal || evs[0].Text != "hola" {
		t.Errorf("first event = %+v, want partial 'hola'", evs[0])
	}
	if !evs[1].IsFinal || evs[1].Text != "hola mundo" {
		t.Errorf("second event = %+v, want final 'hola mundo'", evs[1])
	}
	if !bridge.conn.closeSent || !bridge.conn.closed {
		t.Error("Stop must CloseSend and release the connection")
	}
}

func TestEngineLocaleConstructionFailure(t *testing.T) {
	bridge := &fakeBridge{connectErr: errors.New("no recognizer for locale")}
	engine := New(bridge)

	err := engine.Start(context.Background(), "xx-XX")
	if err == nil {
		t.Fatal("Start should fail when the recognizer rejects the locale")
	}
	var localeErr *speech.LocaleError
	if !errors.As(err, &localeErr) {
		t.Fatalf("error type = %T, want *speech.LocaleError", err)
	}
	if localeErr.Code != "xx-XX" {
		t.Errorf("locale in error = %q, want xx-XX", localeErr.Code)
	}
}

func TestEnginePushBeforeStart(t *testing.T) {
	engine := New(&fakeBridge{conn: newFakeConn()})
	frame, _ := audio.NewFrame(make([]float32, 160), 16000)
	if err := engine.Push(frame); err == nil {
		t.Error("Push before Start should fail")
	}
}

func TestEnginePushDoesNotBlock(t *testing.T) {
	bridge := &fakeBridge{conn: newFakeConn()}
	engine := New(bridge)
	if err := engine.Start(context.Background(), "en-US"); err != nil {
		t.Fatal(err)
	}

	frame, _ := audio.NewFrame(make([]float32, 160), 16000)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Far more frames than the queue holds; Push must return
		// promptly either way.
		for i := 0; i < frameBuffer*4; i++ {
			_ = engine.Push(frame)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked on recognition")
	}
	_ = engine.Stop(context.Background())
	drainEvents(t, engine)
}

func TestEngineStopIdempotent(t *testing.T) {
	bridge := &fakeBridge{conn: newFakeConn()}
	engine := New(bridge)
	if err := engine.Start(context.Background(), "en-US"); err != nil {
		t.Fatal(err)
	}

	if err := engine.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop() error = %v", err)
	}
	if err := engine.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	drainEvents(t, engine)
}

func TestEngineStopWithoutStart(t *testing.T) {
	engine := New(&fakeBridge{conn: newFakeConn()})
	if err := engine.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() without Start error = %v", err)
	}
	if _, ok := <-engine.Events(); ok {
		t.Error("Events should be closed after Stop without Start")
	}
}

func TestEngineResultErrorsBecomeErrorEvents(t *testing.T) {
	bridge := &fakeBridge{conn: newFakeConn()}
	engine := New(bridge)
	if err := engine.Start(context.Background(), "en-US"); err != nil {
		t.Fatal(err)
	}

	bridge.conn.results <- Result{Err: errors.New("recognition service reported a network error")}
	if err := engine.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	evs := drainEvents(t, engine)
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	if evs[0].Kind != speech.EventError {
		t.Fatalf("event kind = %v, want error", evs[0].Kind)
	}
	if evs[0].Message != "recognition service reported a network error" {
		t.Errorf("distinguishing error text not preserved: %q", evs[0].Message)
	}
}
