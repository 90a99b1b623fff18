package version

import "regexp"

// A keyword counts only as a SemVer-style "-beta" suffix or directly after
// digits ("2.0rc1"), so app names containing "dev" do not match.
var preReleasePattern = regexp.MustCompile(`(?i)(?:-|\d)(?:beta|alpha|rc|pre|preview|dev|snapshot)`)

// IsPreReleaseVersion reports whether s looks like a pre-release version.
func IsPreReleaseVersion(s string) bool {
	return preReleasePattern.MatchString(s)
}
