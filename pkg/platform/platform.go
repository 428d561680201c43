// Package platform reports which family of recognition backends the current
// process can reach. Detection is runtime-based so callers never see two
// different rejection reasons for what is semantically one situation: a
// next-gen analyzer that was not compiled in and one whose OS is too old both
// surface as "next-gen unavailable".
package platform

import "runtime"

// Family identifies the recognition backend family for the current process.
type Family int

const (
	// FamilyApple covers darwin and ios targets, where the streaming and
	// next-gen recognizers are available.
	FamilyApple Family = iota
	// FamilyOther covers every non-Apple target, which is served by the
	// device-managed native recognizer.
	FamilyOther
)

func (f Family) String() string {
	switch f {
	case FamilyApple:
		return "apple"
	case FamilyOther:
		return "other"
	default:
		return "unknown"
	}
}

// Info is the immutable snapshot the capability resolver decides from.
type Info struct {
	Family  Family
	NextGen bool // next-gen analyzer compiled in and usable on this OS
}

// DetectFamily returns the backend family for the running OS.
func DetectFamily() Family {
	switch runtime.GOOS {
	case "darwin", "ios":
		return FamilyApple
	default:
		return FamilyOther
	}
}

// ParseFamily maps a configured family name to a Family. Unknown values fall
// back to runtime detection so a stale config cannot wedge startup.
func ParseFamily(name string) Family {
	switch name {
	case "apple":
		return FamilyApple
	case "other":
		return FamilyOther
	default:
		return DetectFamily()
	}
}
