package locale

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"en-US", "en-US"},
		{"en_US", "en-US"},
		{"EN_us", "en-US"},
		{"es-es", "es-ES"},
		{"zh-Hans-cn", "zh-Hans-CN"},
		{"fr", "fr"},
		{" de-DE ", "de-DE"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistryDefault(t *testing.T) {
	r := NewRegistry(nil)
	if got := r.Get(); got != DefaultLocale {
		t.Errorf("Get() = %q, want %q", got, DefaultLocale)
	}
}

func TestRegistrySetFailClosed(t *testing.T) {
	r := NewRegistry(func() []string { return []string{"en-US", "es-ES"} })

	if err := r.Set("es_es"); err != nil {
		t.Fatalf("Set(es_es) error = %v", err)
	}
	if got := r.Get(); got != "es-ES" {
		t.Errorf("Get() = %q, want es-ES", got)
	}

	// An invalid code must leave the active locale untouched.
	if err := r.Set("xx-INVALID"); err == nil {
		t.Fatal("Set(xx-INVALID) should fail")
	}
	if got := r.Get(); got != "es-ES" {
		t.Errorf("Get() after failed Set = %q, want es-ES", got)
	}

	if err := r.Set(""); err == nil {
		t.Fatal("Set(\"\") should fail")
	}
}

func TestRegistryFallbackList(t *testing.T) {
	// Platforms that cannot enumerate locales get the static fallback list.
	for _, enumerate := range []func() []string{nil, func() []string { return nil }} {
		r := NewRegistry(enumerate)
		supported := r.Supported()
		if len(supported) == 0 {
			t.Fatal("Supported() should fall back to a non-empty list")
		}
		if !r.IsSupported("en-US") {
			t.Error("en-US should be in the fallback list")
		}
	}
}

func TestRegistryIsSupportedNeverFails(t *testing.T) {
	r := NewRegistry(func() []string { return []string{"en-US"} })

	for _, code := range []string{"", "   ", "en_US", "totally-bogus-locale", "12_34"} {
		// Must not panic regardless of input.
		_ = r.IsSupported(code)
	}
	if !r.IsSupported("en_US") {
		t.Error("underscore-separated code should match its hyphenated form")
	}
}

func TestRegistryResolveDoesNotMutate(t *testing.T) {
	r := NewRegistry(func() []string { return []string{"en-US", "fr-FR"} })

	resolved, err := r.Resolve("fr_fr")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved != "fr-FR" {
		t.Errorf("Resolve() = %q, want fr-FR", resolved)
	}
	if got := r.Get(); got != DefaultLocale {
		t.Errorf("Resolve must not change the active locale, got %q", got)
	}
}
