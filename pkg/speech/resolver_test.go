package speech

import (
	"errors"
	"testing"

	"github.com/voxkit/voxkit/pkg/platform"
)

func TestResolveVariantDecisionTable(t *testing.T) {
	apple := func(nextGen bool) platform.Info {
		return platform.Info{Family: platform.FamilyApple, NextGen: nextGen}
	}
	other := platform.Info{Family: platform.FamilyOther}

	tests := []struct {
		name    string
		info    platform.Info
		mode    Mode
		want    Variant
		wantErr error
	}{
		{"apple universal with next-gen", apple(true), ModeUniversal, VariantNextGen, nil},
		{"apple universal without next-gen", apple(false), ModeUniversal, VariantLegacy, nil},
		{"apple unset mode with next-gen", apple(true), "", VariantNextGen, nil},
		{"apple explicit next-gen available", apple(true), ModeNextGen, VariantNextGen, nil},
		{"apple explicit next-gen unavailable", apple(false), ModeNextGen, VariantUnknown, ErrUnsupportedOS},
		{"apple explicit legacy", apple(true), ModeLegacy, VariantLegacy, nil},
		{"other universal", other, ModeUniversal, VariantNative, nil},
		{"other explicit legacy", other, ModeLegacy, VariantNative, nil},
		{"other explicit next-gen", other, ModeNextGen, VariantUnknown, ErrUnsupportedPlatform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveVariant(tt.info, tt.mode)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ResolveVariant() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveVariant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveVariantUnknownMode(t *testing.T) {
	_, err := ResolveVariant(platform.Info{Family: platform.FamilyApple}, Mode("turbo"))
	if err == nil {
		t.Fatal("Expected error for unknown mode")
	}
}

func TestResolveVariantIdempotent(t *testing.T) {
	info := platform.Info{Family: platform.FamilyApple, NextGen: true}
	first, err1 := ResolveVariant(info, ModeUniversal)
	second, err2 := ResolveVariant(info, ModeUniversal)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if first != second {
		t.Errorf("resolver not idempotent: %v then %v", first, second)
	}
}
