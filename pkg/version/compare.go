package version

import (
	"strings"
)

// Result is the outcome of comparing a left-hand version to a right-hand one.
type Result int

const (
	Undefined Result = iota
	Older
	Equal
	Newer
)

func (r Result) String() string {
	switch r {
	case Older:
		return "older"
	case Equal:
		return "equal"
	case Newer:
		return "newer"
	default:
		return "undefined"
	}
}

// Invert returns the result seen from the other side.
func (r Result) Invert() Result {
	switch r {
	case Older:
		return Newer
	case Newer:
		return Older
	default:
		return r
	}
}

// Version pairs a user-facing version with an internal build number.
// An empty string means the field is absent.
type Version struct {
	VersionNumber string
	BuildNumber   string
}

// New builds a Version from trimmed fields.
func New(versionNumber, buildNumber string) Version {
	return Version{
		VersionNumber: strings.TrimSpace(versionNumber),
		BuildNumber:   strings.TrimSpace(buildNumber),
	}
}

// IsEmpty reports whether neither field has a parsable component.
func (v Version) IsEmpty() bool {
	return len(Components(v.VersionNumber)) == 0 && len(Components(v.BuildNumber)) == 0
}

// hasDistinctBuild is true when the build number carries information the
// version number does not.
func (v Version) hasDistinctBuild() bool {
	b := strings.TrimSpace(v.BuildNumber)
	return b != "" && b != strings.TrimSpace(v.VersionNumber)
}

func (v Version) primary() string {
	if len(Components(v.VersionNumber)) > 0 {
		return v.VersionNumber
	}
	return v.BuildNumber
}

func (v Version) String() string {
	switch {
	case v.VersionNumber != "" && v.hasDistinctBuild():
		return v.VersionNumber + " (" + v.BuildNumber + ")"
	case v.VersionNumber != "":
		return v.VersionNumber
	default:
		return v.BuildNumber
	}
}

// Compare orders lhs against rhs. Build numbers decide when both sides
// track a build distinct from their version number; otherwise the
// version numbers do.
func Compare(lhs, rhs Version) Result {
	if lhs.hasDistinctBuild() && rhs.hasDistinctBuild() {
		return CompareStrings(lhs.BuildNumber, rhs.BuildNumber)
	}
	return CompareStrings(lhs.primary(), rhs.primary())
}

// Less reports whether v is older than other.
func (v Version) Less(other Version) bool { return Compare(v, other) == Older }

// Greater reports whether v is newer than other.
func (v Version) Greater(other Version) bool { return Compare(v, other) == Newer }

// Equal reports whether v and other are equal. Undefined comparisons count
// as equal so that unparsable pairs never produce an update.
func (v Version) Equal(other Version) bool {
	r := Compare(v, other)
	return r == Equal || r == Undefined
}

// CompareStrings orders two raw version strings.
func CompareStrings(lhs, rhs string) Result {
	a, b := Components(lhs), Components(rhs)
	if len(a) == 0 || len(b) == 0 {
		return Undefined
	}
	return compareComponents(a, b)
}

func compareComponents(a, b [][]Atom) Result {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if r := compareAtoms(a[i], b[i]); r != Equal {
			return r
		}
	}

	switch {
	case len(a) > len(b):
		return trailing(a[n:])
	case len(b) > len(a):
		return trailing(b[n:]).Invert()
	default:
		return Equal
	}
}

// trailing evaluates the extra components of the longer side against
// nothing: zeros are ignored, the first other number makes the longer
// side newer, a string makes it older ("1.2" > "1.2.0a").
func trailing(extra [][]Atom) Result {
	for _, comp := range extra {
		for _, atom := range comp {
			if atom.Kind == AtomString {
				return Older
			}
			if atom.Number.Sign() != 0 {
				return Newer
			}
		}
	}
	return Equal
}

func compareAtoms(a, b []Atom) Result {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		switch {
		case i >= len(a):
			// absent atom: older than a number, newer than a string
			if b[i].Kind == AtomNumber {
				return Older
			}
			return Newer
		case i >= len(b):
			if a[i].Kind == AtomNumber {
				return Newer
			}
			return Older
		}

		x, y := a[i], b[i]
		switch {
		case x.Kind == AtomNumber && y.Kind == AtomNumber:
			if c := x.Number.Cmp(y.Number); c != 0 {
				return sign(c)
			}
		case x.Kind == AtomString && y.Kind == AtomString:
			if c := strings.Compare(x.Text, y.Text); c != 0 {
				return sign(c)
			}
		case x.Kind == AtomString:
			return Older
		default:
			return Newer
		}
	}
	return Equal
}

func sign(c int) Result {
	if c < 0 {
		return Older
	}
	return Newer
}
