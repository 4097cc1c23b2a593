// Package version exposes build metadata set through -ldflags.
package version

import "fmt"

// Set at build time:
//
//	-ldflags "-X github.com/victortavares4/dsl-investments/pkg/version.Version=v1.2.0"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns a single-line description of the build.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
