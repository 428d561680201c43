package nextgen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// ModelInfo describes the recognition assets for one locale.
type ModelInfo struct {
	Locale   string
	Revision string
	Size     int64             // approximate total size in bytes
	Files    []string          // relative paths within the model directory
	SHA256   map[string]string // optional per-file hashes; verified when present
}

// modelRegistry enumerates the locales the next-gen engine has assets for.
// This set is also the engine's supported-locale set checked during
// ModelCheck.
var modelRegistry = map[string]ModelInfo{
	"en-US": {Locale: "en-US", Revision: "v2.1.0", Size: 88 << 20, Files: defaultModelFiles},
	"en-GB": {Locale: "en-GB", Revision: "v2.1.0", Size: 88 << 20, Files: defaultModelFiles},
	"es-ES": {Locale: "es-ES", Revision: "v2.0.3", Size: 92 << 20, Files: defaultModelFiles},
	"fr-FR": {Locale: "fr-FR", Revision: "v2.0.3", Size: 92 << 20, Files: defaultModelFiles},
	"de-DE": {Locale: "de-DE", Revision: "v2.0.3", Size: 92 << 20, Files: defaultModelFiles},
	"it-IT": {Locale: "it-IT", Revision: "v2.0.1", Size: 90 << 20, Files: defaultModelFiles},
	"pt-BR": {Locale: "pt-BR", Revision: "v2.0.1", Size: 90 << 20, Files: defaultModelFiles},
	"ja-JP": {Locale: "ja-JP", Revision: "v2.0.2", Size: 104 << 20, Files: defaultModelFiles},
	"zh-CN": {Locale: "zh-CN", Revision: "v2.0.2", Size: 110 << 20, Files: defaultModelFiles},
	"ko-KR": {Locale: "ko-KR", Revision: "v2.0.1", Size: 98 << 20, Files: defaultModelFiles},
}

var defaultModelFiles = []string{
	"onnx/model_q8.onnx",
	"tokenizer.json",
}

const defaultAssetBaseURL = "https://models.voxkit.dev/nextgen"

// DefaultModelDir returns the per-user model cache directory, overridable
// with VOXKIT_MODEL_DIR.
func DefaultModelDir() string {
	if dir := os.Getenv("VOXKIT_MODEL_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".voxkit", "models")
}

// SupportedLocales returns the locales the engine has assets for, in no
// particular order.
func SupportedLocales() []string {
	out := make([]string, 0, len(modelRegistry))
	for code := range modelRegistry {
		out = append(out, code)
	}
	return out
}

// LookupModel returns the asset description for a locale.
func LookupModel(locale string) (ModelInfo, bool) {
	info, ok := modelRegistry[locale]
	return info, ok
}

// Manager downloads and verifies per-locale model assets. Install is
// serialized: two sessions provisioning the same locale do not race.
type Manager struct {
	dir     string
	baseURL string
	client  *http.Client

	mu sync.Mutex
}

// NewManager creates a model manager rooted at dir (DefaultModelDir when
// empty). baseURL overrides the asset host, mainly for tests.
func NewManager(dir, baseURL string) *Manager {
	if dir == "" {
		dir = DefaultModelDir()
	}
	if baseURL == "" {
		baseURL = defaultAssetBaseURL
	}
	return &Manager{dir: dir, baseURL: baseURL, client: &http.Client{}}
}

// ModelDir returns the directory holding a locale's installed assets.
func (m *Manager) ModelDir(info ModelInfo) string {
	return filepath.Join(m.dir, info.Locale, info.Revision)
}

// IsInstalled reports whether every asset file for the locale is present and
// non-empty.
func (m *Manager) IsInstalled(info ModelInfo) bool {
	for _, name := range info.Files {
		stat, err := os.Stat(filepath.Join(m.ModelDir(info), name))
		if err != nil || stat.Size() == 0 {
			return false
		}
	}
	return true
}

// Install downloads the locale's assets. progress (may be nil) receives
// cumulative downloaded bytes against the expected total. A failed file is
// removed so a later Install starts clean; there is no automatic retry.
func (m *Manager) Install(ctx context.Context, info ModelInfo, progress func(downloaded, total int64)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsInstalled(info) {
		if progress != nil {
			progress(info.Size, info.Size)
		}
		return nil
	}

	var downloaded int64
	for _, name := range info.Files {
		path := filepath.Join(m.ModelDir(info), name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
		if m.isValidFile(path, info.SHA256[name]) {
			continue
		}

		n, err := m.downloadFile(ctx, info, name, path)
		if err != nil {
			os.Remove(path)
			return fmt.Errorf("failed to download %s for %s: %w", name, info.Locale, err)
		}
		downloaded += n
		if progress != nil {
			progress(downloaded, info.Size)
		}

		if want := info.SHA256[name]; want != "" && !m.isValidFile(path, want) {
			os.Remove(path)
			return fmt.Errorf("checksum mismatch for %s (%s)", name, info.Locale)
		}
	}
	if progress != nil {
		progress(info.Size, info.Size)
	}
	return nil
}

func (m *Manager) downloadFile(ctx context.Context, info ModelInfo, name, path string) (int64, error) {
	url := fmt.Sprintf("%s/%s/%s/%s", m.baseURL, info.Locale, info.Revision, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// isValidFile checks existence and, when a hash is known, content integrity.
func (m *Manager) isValidFile(path, wantHash string) bool {
	stat, err := os.Stat(path)
	if err != nil || stat.Size() == 0 {
		return false
	}
	if wantHash == "" {
		return true
	}

	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return false
	}
	return hex.EncodeToString(hash.Sum(nil)) == wantHash
}
