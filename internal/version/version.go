// Package version carries build metadata, overridden at link time with
// -ldflags "-X github.com/MrSnakeDoc/tenders/internal/version.Version=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"             // ex: v0.1.0
	Commit    = "none"            // ex: abcd123
	BuildDate = "unknown"         // ex: 2026-03-10T18:42:00Z
	GoVersion = runtime.Version() // go version
)

// String is the one-line banner printed by `tenders version`.
func String() string {
	return fmt.Sprintf("tenders %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
