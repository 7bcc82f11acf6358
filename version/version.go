// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

var (
	Version   = "0.0.0-dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// Full returns the version with build info.
func Full() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}
