//go:build nextgen

package nextgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	modelFileRel     = "onnx/model_q8.onnx"
	tokenizerFileRel = "tokenizer.json"
	// blankToken is the CTC blank id emitted by the acoustic model.
	blankToken = 0
)

var (
	ortOnce    sync.Once
	ortInitErr error
)

// ensureOrtEnv initializes the ONNX runtime environment exactly once per
// process; concurrent sessions must not re-register schemas.
func ensureOrtEnv() error {
	ortOnce.Do(func() {
		if libPath := os.Getenv("ONNXRUNTIME_LIB"); libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		} else if runtime.GOOS == "darwin" {
			ort.SetSharedLibraryPath("/opt/homebrew/lib/libonnxruntime.dylib")
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// Available reports that the next-gen analyzer is compiled into this build.
// Whether the runtime library actually loads is still checked at session
// start; both failure shapes surface as the same unsupported condition.
func Available() bool { return true }

// onnxAnalyzer runs the locale's quantized acoustic model and decodes token
// sequences with the model's own tokenizer.
type onnxAnalyzer struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizer.Tokenizer

	closeOnce sync.Once
	closeErr  error
}

func newPlatformAnalyzer(modelDir, locale string) (analyzer, error) {
	modelFile := filepath.Join(modelDir, modelFileRel)
	if _, err := os.Stat(modelFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found for %s: %s", locale, modelFile)
	}

	if err := ensureOrtEnv(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	tokenizerFile := filepath.Join(modelDir, tokenizerFileRel)
	tk, err := pretrained.FromFile(tokenizerFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer for %s: %w", locale, err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()
	if err := options.SetIntraOpNumThreads(max(1, runtime.NumCPU()/2)); err != nil {
		return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("failed to set inter-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelFile,
		[]string{"audio"},
		[]string{"logits"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxAnalyzer{session: session, tokenizer: tk}, nil
}

// Transcribe runs the acoustic model over the whole utterance so far and
// greedily decodes the best hypothesis.
func (a *onnxAnalyzer) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if len(samples) == 0 {
		return "", nil
	}

	inputShape := ort.NewShape(1, int64(len(samples)))
	input, err := ort.NewTensor(inputShape, samples)
	if err != nil {
		return "", fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := a.session.Run([]ort.Value{input}, outputs); err != nil {
		return "", fmt.Errorf("inference failed: %w", err)
	}
	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return "", fmt.Errorf("unexpected logits tensor type %T", outputs[0])
	}
	defer logits.Destroy()

	ids := greedyDecode(logits.GetData(), logits.GetShape())
	if len(ids) == 0 {
		return "", nil
	}
	text := a.tokenizer.Decode(ids, true)
	return strings.TrimSpace(text), nil
}

func (a *onnxAnalyzer) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.session.Destroy()
	})
	return a.closeErr
}

// greedyDecode picks the argmax token per timestep and collapses CTC
// repeats and blanks. Shape is [1, steps, vocab].
func greedyDecode(logits []float32, shape ort.Shape) []int {
	if len(shape) != 3 {
		return nil
	}
	steps, vocab := int(shape[1]), int(shape[2])
	if steps*vocab > len(logits) || vocab == 0 {
		return nil
	}

	var ids []int
	prev := -1
	for t := 0; t < steps; t++ {
		row := logits[t*vocab : (t+1)*vocab]
		best := 0
		for v := 1; v < vocab; v++ {
			if row[v] > row[best] {
				best = v
			}
		}
		if best != blankToken && best != prev {
			ids = append(ids, best)
		}
		prev = best
	}
	return ids
}
