// Stub analyzer for builds without the nextgen tag. The capability resolver
// treats a missing analyzer and an OS too old to run it as the same outward
// condition, so this build configuration simply reports unavailability.
//go:build !nextgen

package nextgen

import "fmt"

// Available reports that the next-gen analyzer is not compiled into this
// build (use -tags=nextgen to enable it).
func Available() bool { return false }

func newPlatformAnalyzer(modelDir, locale string) (analyzer, error) {
	return nil, fmt.Errorf("next-gen analyzer not available (build with -tags=nextgen)")
}
