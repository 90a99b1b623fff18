package version

import (
	"math/big"
	"unicode"
)

// AtomKind distinguishes numeric from alphabetic atoms.
type AtomKind int

const (
	AtomNumber AtomKind = iota
	AtomString
)

// Atom is a maximal run of digits or letters inside a component.
type Atom struct {
	Kind   AtomKind
	Number *big.Int
	Text   string
}

// SegmentKind distinguishes components from separators.
type SegmentKind int

const (
	SegmentComponent SegmentKind = iota
	SegmentSeparator
)

// Segment is either a component (atoms) or a separator run.
type Segment struct {
	Kind      SegmentKind
	Atoms     []Atom
	Separator string
}

type charClass int

const (
	classSkip charClass = iota
	classDigit
	classLetter
	classSeparator
)

func classify(r rune) charClass {
	switch {
	case r >= '0' && r <= '9':
		return classDigit
	case unicode.IsLetter(r):
		return classLetter
	case unicode.IsPunct(r), unicode.IsSpace(r), unicode.IsSymbol(r):
		return classSeparator
	default:
		return classSkip
	}
}

// Parse splits s into alternating component and separator segments.
// Characters that are neither digits, letters nor separators are dropped.
func Parse(s string) []Segment {
	var (
		segments []Segment
		atoms    []Atom
		run      []rune
		runClass = classSkip
		sep      []rune
	)

	flushRun := func() {
		if len(run) == 0 {
			return
		}
		if runClass == classDigit {
			n := new(big.Int)
			n.SetString(string(run), 10)
			atoms = append(atoms, Atom{Kind: AtomNumber, Number: n})
		} else {
			atoms = append(atoms, Atom{Kind: AtomString, Text: string(run)})
		}
		run = run[:0]
	}
	flushComponent := func() {
		flushRun()
		if len(atoms) > 0 {
			segments = append(segments, Segment{Kind: SegmentComponent, Atoms: atoms})
			atoms = nil
		}
	}
	flushSeparator := func() {
		if len(sep) > 0 {
			segments = append(segments, Segment{Kind: SegmentSeparator, Separator: string(sep)})
			sep = sep[:0]
		}
	}

	for _, r := range s {
		c := classify(r)
		switch c {
		case classSkip:
			continue
		case classSeparator:
			flushComponent()
			sep = append(sep, r)
		default:
			flushSeparator()
			if c != runClass {
				flushRun()
				runClass = c
			}
			run = append(run, r)
		}
	}
	flushComponent()
	flushSeparator()

	return segments
}

// Components returns the atom lists of the component segments of s.
func Components(s string) [][]Atom {
	var out [][]Atom
	for _, seg := range Parse(s) {
		if seg.Kind == SegmentComponent {
			out = append(out, seg.Atoms)
		}
	}
	return out
}
