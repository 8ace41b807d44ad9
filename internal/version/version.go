// Package version exposes build-time version metadata for rdp-core.
//
// GitCommit and GitDescribe are intended to be set via -ldflags at build
// time; Version and VersionPrerelease are bumped by hand on release.
package version

import "fmt"

var (
	GitCommit   string
	GitDescribe string

	Version           = "0.1.0"
	VersionPrerelease = "dev"
)

// GetHumanVersion composes the human-readable version string, preferring
// a git describe output over the hand-maintained version when present.
func GetHumanVersion() string {
	version := Version
	if GitDescribe != "" {
		version = GitDescribe
	}

	release := VersionPrerelease
	if GitDescribe == "" && release == "" {
		release = "dev"
	}

	if release != "" {
		if !hasSuffixDash(version) {
			version += fmt.Sprintf("-%s", release)
		}
	}

	if GitCommit != "" {
		version += fmt.Sprintf(" (%s)", GitCommit)
	}

	return version
}

func hasSuffixDash(s string) bool {
	return len(s) > 0 && s[len(s)-1] == '-'
}
