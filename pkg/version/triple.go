package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// NormalizeTriple pads a dotted version to three components with zeros and
// drops leading zeros from numeric components, so "2024.01" becomes
// "2024.1.0". Component count is never reduced.
func NormalizeTriple(s string) string {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = trimLeadingZeros(p)
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return strings.Join(parts, ".")
}

func trimLeadingZeros(p string) string {
	if p == "" || strings.TrimLeft(p, "0123456789") != "" {
		return p
	}
	if t := strings.TrimLeft(p, "0"); t != "" {
		return t
	}
	return "0"
}

// CompareTriples compares store versions after normalization. It returns
// a positive number when remote is newer than installed. Versions that do
// not parse as exactly three numeric components return an error.
func CompareTriples(installed, remote string) (int, error) {
	iv, err := semver.StrictNewVersion(NormalizeTriple(installed))
	if err != nil {
		return 0, fmt.Errorf("installed version %q: %w", installed, err)
	}
	rv, err := semver.StrictNewVersion(NormalizeTriple(remote))
	if err != nil {
		return 0, fmt.Errorf("remote version %q: %w", remote, err)
	}
	return rv.Compare(iv), nil
}
