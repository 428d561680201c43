// Package version reports build provenance for the voxkit binary. Values
// are stamped with -ldflags at release time; plain `go install` builds fall
// back to the module build info embedded by the toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// GetVersionInfo returns a single-line version string for the CLI.
func GetVersionInfo() string {
	v, commit := Version, GitCommit
	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		if commit == "unknown" {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					commit = setting.Value
					break
				}
			}
		}
	}
	return fmt.Sprintf("voxkit version %s (commit: %s, built: %s, go: %s)",
		v, commit, BuildTime, runtime.Version())
}
