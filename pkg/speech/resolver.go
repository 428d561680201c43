package speech

import (
	"fmt"

	"github.com/voxkit/voxkit/pkg/platform"
)

// ResolveVariant decides which engine variant serves a session. It is a pure
// function of the platform snapshot and the caller's preference: no state, no
// side effects, idempotent. Callers hold the result; the resolver does not.
//
// On Apple-family targets "universal" prefers next-gen and falls back to the
// streaming recognizer; an explicit next-gen request fails with
// ErrUnsupportedOS when the analyzer is unavailable. Off Apple-family targets
// every request resolves to the device-native recognizer, except an explicit
// next-gen request, which fails with ErrUnsupportedPlatform.
func ResolveVariant(info platform.Info, mode Mode) (Variant, error) {
	switch mode {
	case ModeUniversal, ModeNextGen, ModeLegacy, "":
	default:
		return VariantUnknown, fmt.Errorf("unknown engine mode %q", mode)
	}

	if info.Family != platform.FamilyApple {
		if mode == ModeNextGen {
			return VariantUnknown, ErrUnsupportedPlatform
		}
		return VariantNative, nil
	}

	switch mode {
	case ModeNextGen:
		if !info.NextGen {
			return VariantUnknown, ErrUnsupportedOS
		}
		return VariantNextGen, nil
	case ModeLegacy:
		return VariantLegacy, nil
	default: // universal or unset
		if info.NextGen {
			return VariantNextGen, nil
		}
		return VariantLegacy, nil
	}
}
