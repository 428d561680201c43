package nextgen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxkit/voxkit/pkg/audio"
	"github.com/voxkit/voxkit/pkg/speech"
)

// installedManager returns a manager with the locale's asset files already
// on disk, so no download happens.
func installedManager(t *testing.T, localeCode string) *Manager {
	t.Helper()
	manager := NewManager(t.TempDir(), "http://unused.invalid")
	info, ok := LookupModel(localeCode)
	if !ok {
		t.Fatalf("no model registered for %s", localeCode)
	}
	for _, name := range info.Files {
		path := filepath.Join(manager.ModelDir(info), name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("asset"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return manager
}

type fakeAnalyzer struct {
	mu         sync.Mutex
	transcript string
	err        error
	calls      int
	closed     bool
}

func (a *fakeAnalyzer) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return a.transcript, nil
}

func (a *fakeAnalyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *fakeAnalyzer) wasClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func newTestEngine(t *testing.T, localeCode string, an analyzer) *Engine {
	t.Helper()
	engine := New(installedManager(t, localeCode))
	engine.newAnalyzer = func(modelDir, locale string) (analyzer, error) {
		return an, nil
	}
	return engine
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

func pushSeconds(t *testing.T, engine *Engine, seconds int) {
	t.Helper()
	// 10ms frames at 16kHz
	for i := 0; i < seconds*100; i++ {
		frame, _ := audio.NewFrame(make([]float32, 160), 16000)
		for {
			err := engine.Push(frame)
			if err == nil {
				break
			}
			if errors.Is(err, speech.ErrBufferFull) {
				time.Sleep(time.Millisecond)
				continue
			}
			t.Fatalf("Push() error = %v", err)
		}
	}
}

func TestEngineUnsupportedLocale(t *testing.T) {
	engine := New(NewManager(t.TempDir(), "http://unused.invalid"))
	err := engine.Start(context.Background(), "xx-XX")
	if err == nil {
		t.Fatal("Start with unsupported locale should fail")
	}
	var localeErr *speech.LocaleError
	if !errors.As(err, &localeErr) {
		t.Fatalf("error type = %T, want *speech.LocaleError", err)
	}
}

func TestEngineDownloadFailureAborts(t *testing.T) {
	// Nothing installed and no reachable asset host.
	engine := New(NewManager(t.TempDir(), "http://127.0.0.1:1/nowhere"))
	err := engine.Start(context.Background(), "en-US")
	if err == nil {
		t.Fatal("Start should fail when provisioning fails")
	}
	if !strings.Contains(err.Error(), "model download failed") {
		t.Errorf("error %q should describe the download failure", err)
	}
}

func TestEnginePartialThenFinal(t *testing.T) {
	an := &fakeAnalyzer{transcript: "hello world"}
	engine := newTestEngine(t, "en-US", an)

	if err := engine.Start(context.Background(), "en-US"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	pushSeconds(t, engine, 1)
	if err := engine.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	evs := collect(t, engine)
	if len(evs) < 2 {
		t.Fatalf("got %d events, want at least a partial and a final", len(evs))
	}
	last := evs[len(evs)-1]
	if !last.IsFinal || last.Text != "hello world" {
		t.Errorf("last event = %+v, want final 'hello world'", last)
	}
	for _, ev := range evs[:len(evs)-1] {
		if ev.IsFinal {
			t.Errorf("only the last event may be final, got %+v", ev)
		}
	}
	if !an.wasClosed() {
		t.Error("analyzer must be released after drain")
	}
}

func TestEngineAnalysisErrorReleasesResources(t *testing.T) {
	an := &fakeAnalyzer{err: errors.New("tensor shape mismatch")}
	engine := newTestEngine(t, "en-US", an)

	if err := engine.Start(context.Background(), "en-US"); err != nil {
		t.Fatal(err)
	}
	pushSeconds(t, engine, 1)
	_ = engine.Stop(context.Background())

	evs := collect(t, engine)
	found := false
	for _, ev := range evs {
		if ev.Kind == speech.EventError && strings.Contains(ev.Message, "tensor shape mismatch") {
			found = true
		}
	}
	if !found {
		t.Error("analysis failure should surface as an error event with its text preserved")
	}
	if !an.wasClosed() {
		t.Error("analyzer must be released even after an analysis error")
	}
}

func TestEnginePushBeforeStart(t *testing.T) {
	engine := newTestEngine(t, "en-US", &fakeAnalyzer{})
	frame, _ := audio.NewFrame(make([]float32, 160), 16000)
	if err := engine.Push(frame); err == nil {
		t.Error("Push before Start should fail")
	}
}

func TestEngineStopIdempotent(t *testing.T) {
	an := &fakeAnalyzer{transcript: "done"}
	engine := newTestEngine(t, "en-US", an)
	if err := engine.Start(context.Background(), "en-US"); err != nil {
		t.Fatal(err)
	}
	if err := engine.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop() error = %v", err)
	}
	if err := engine.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	collect(t, engine)
}

func TestEngineProvisioningSkippedWhenInstalled(t *testing.T) {
	an := &fakeAnalyzer{transcript: "ready"}
	engine := newTestEngine(t, "ja-JP", an)
	var progressed bool
	engine.ProvisionProgress = func(downloaded, total int64) { progressed = true }

	if err := engine.Start(context.Background(), "ja-JP"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_ = engine.Stop(context.Background())
	collect(t, engine)

	if progressed {
		t.Error("no download progress expected for an installed model")
	}
}
