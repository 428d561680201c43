// Package locale holds the active-locale state-of-record and validates
// BCP-47 codes against the locales the engine stack can actually serve.
package locale

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultLocale is the process-start fallback. It is reset on restart; no
// locale preference is persisted.
const DefaultLocale = "en-US"

// fallbackLocales is returned when the platform cannot enumerate its
// supported locales (observed on the device-native recognizer). A static
// list of common locales beats failing the enumeration call.
var fallbackLocales = []string{
	"en-US", "en-GB", "en-AU", "en-IN",
	"es-ES", "es-MX", "fr-FR", "fr-CA",
	"de-DE", "it-IT", "pt-BR", "nl-NL",
	"ja-JP", "ko-KR", "zh-CN", "zh-TW",
	"ru-RU", "ar-SA", "hi-IN", "tr-TR",
}

// Normalize canonicalizes a locale code to hyphenated BCP-47 form: language
// subtag lowercased, region subtag uppercased, underscores accepted as
// separators. Values echoed back to callers are always in this form.
func Normalize(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return ""
	}
	parts := strings.Split(code, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) > 1 {
		last := len(parts) - 1
		if len(parts[last]) == 2 {
			parts[last] = strings.ToUpper(parts[last])
		}
	}
	return strings.Join(parts, "-")
}

// Registry is the single writer of the active locale. Engines consult it at
// session start; an in-flight session is never affected by a later change.
type Registry struct {
	mu        sync.RWMutex
	active    string
	enumerate func() []string // platform-supported locales, may be nil
}

// NewRegistry creates a registry with the given enumerator. A nil enumerator
// (or one returning nothing) falls back to a static list of common locales.
func NewRegistry(enumerate func() []string) *Registry {
	return &Registry{active: DefaultLocale, enumerate: enumerate}
}

// Get returns the current active locale.
func (r *Registry) Get() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Set validates code and makes it the active locale. On failure the
// previously active locale is left unchanged: fail-closed, not fail-default.
func (r *Registry) Set(code string) error {
	normalized, err := r.Resolve(code)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.active = normalized
	r.mu.Unlock()
	return nil
}

// Resolve normalizes code and verifies the engine stack supports it, without
// touching the active locale. Used for call-scoped locale overrides.
func (r *Registry) Resolve(code string) (string, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return "", fmt.Errorf("empty locale code")
	}
	if !r.IsSupported(normalized) {
		return "", fmt.Errorf("locale %q is not supported", normalized)
	}
	return normalized, nil
}

// Supported returns the locales a recognizer can be constructed for,
// normalized and in enumeration order.
func (r *Registry) Supported() []string {
	if r.enumerate != nil {
		if listed := r.enumerate(); len(listed) > 0 {
			out := make([]string, 0, len(listed))
			for _, code := range listed {
				if n := Normalize(code); n != "" {
					out = append(out, n)
				}
			}
			return out
		}
	}
	out := make([]string, len(fallbackLocales))
	copy(out, fallbackLocales)
	return out
}

// IsSupported reports membership against the same source Supported uses.
// It never fails; an unparseable code is simply unsupported.
func (r *Registry) IsSupported(code string) bool {
	normalized := Normalize(code)
	if normalized == "" {
		return false
	}
	for _, supported := range r.Supported() {
		if supported == normalized {
			return true
		}
	}
	return false
}
