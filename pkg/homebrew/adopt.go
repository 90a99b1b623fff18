package homebrew

import (
	"sort"
	"strings"
	"unicode"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// ManualMatchScore marks a cask the user named explicitly.
const ManualMatchScore = 999

// AdoptableCask is a cask that could take over management of an app.
type AdoptableCask struct {
	Token               string
	DisplayName         string
	Description         string
	Version             string
	AutoUpdates         bool
	Homepage            string
	IsVersionCompatible bool
	MatchScore          int
}

// PearFormat lowercases s and drops everything but letters and digits.
func PearFormat(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindMatches scores every cask against app and returns the positive
// matches, best first, ties broken by token.
func FindMatches(app types.InstalledApp, casks []Cask) []AdoptableCask {
	name := PearFormat(app.Name)
	bundleID := PearFormat(app.BundleID)

	var out []AdoptableCask
	for _, c := range casks {
		if c.Deprecated || c.Disabled {
			continue
		}
		score := scoreCask(name, bundleID, c)
		if score <= 0 {
			continue
		}
		out = append(out, adoptable(app, c, score))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MatchScore != out[j].MatchScore {
			return out[i].MatchScore > out[j].MatchScore
		}
		return out[i].Token < out[j].Token
	})
	return out
}

func scoreCask(name, bundleID string, c Cask) int {
	score := 0

	// declared .app artifacts
	withExt := PearFormat(name + ".app")
	for _, artifact := range c.AppArtifacts() {
		full := PearFormat(artifact)
		bare := PearFormat(strings.TrimSuffix(artifact, ".app"))
		switch {
		case full == withExt:
			score += 100
		case bare != "" && bare == name:
			score += 90
		case containsEither(bare, name, 0):
			score += 50
		default:
			continue
		}
		break
	}

	// alternate names
	if len(c.Name) > 1 {
		for _, alt := range c.Name[1:] {
			n := PearFormat(alt)
			if n != "" && n == name {
				score += 80
				break
			}
			if containsEither(n, name, 2) {
				score += 40
				break
			}
		}
	}

	if len(c.Name) > 0 {
		primary := PearFormat(c.Name[0])
		if primary != "" && primary == name {
			score += 70
		} else if containsEither(primary, name, 2) {
			score += 35
		}
	}

	token := PearFormat(c.Token)
	if token != "" && token == name {
		score += 60
	} else if containsEither(token, name, 2) {
		score += 30
	}

	if bundleID != "" && strings.Contains(PearFormat(c.Description), bundleID) {
		score += 25
	}
	return score
}

// containsEither reports substring containment in either direction.
// Strings of minLen characters or fewer never match.
func containsEither(a, b string, minLen int) bool {
	if len(a) <= minLen || len(b) <= minLen || a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ValidateManual checks a user-supplied token. The token must name an
// existing cask exactly, and deprecated or disabled casks are refused.
func ValidateManual(app types.InstalledApp, token string, casks []Cask) (AdoptableCask, error) {
	token = strings.TrimSpace(token)
	for _, c := range casks {
		if c.Token != token {
			continue
		}
		if c.Deprecated || c.Disabled {
			return AdoptableCask{}, errors.Newf(errors.ErrNoCandidate, "cask %s is deprecated or disabled", token)
		}
		return adoptable(app, c, ManualMatchScore), nil
	}
	return AdoptableCask{}, errors.Newf(errors.ErrNotFound, "no cask named %s", token)
}

func adoptable(app types.InstalledApp, c Cask, score int) AdoptableCask {
	return AdoptableCask{
		Token:               c.Token,
		DisplayName:         c.DisplayName(),
		Description:         c.Description,
		Version:             c.Version,
		AutoUpdates:         c.AutoUpdates,
		Homepage:            c.Homepage,
		IsVersionCompatible: c.AutoUpdates || NormalizeVersion(c.Version) == NormalizeVersion(app.Version),
		MatchScore:          score,
	}
}
