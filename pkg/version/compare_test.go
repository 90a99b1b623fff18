// pkg/version/compare_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: None
// PURPOSE: Ordering rules of the version comparator

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareStringsKnownCases(t *testing.T) {
	tests := []struct {
		name string
		lhs  string
		rhs  string
		want Result
	}{
		{"minor_bump", "1.3", "1.2", Newer},
		{"minor_bump_inverse", "1.2", "1.3", Older},
		{"letters_ordinal", "1.2A", "1.2B", Older},
		{"string_atom_before_numeric_component", "1.2A", "1.2.2", Older},
		{"trailing_zero_ignored", "1.2", "1.2.0", Equal},
		{"trailing_zeros_ignored", "1.2.0.0", "1.2", Equal},
		{"trailing_letter_is_older", "1.2.0a", "1.2", Older},
		{"letter_suffix_is_older", "1.2A", "1.2", Older},
		{"longer_numeric_is_newer", "1.2.1", "1.2", Newer},
		{"numeric_magnitude", "1.10", "1.9", Newer},
		{"beta_before_final", "2.0b1", "2.0", Older},
		{"beta_ordering", "2.0b2", "2.0b1", Newer},
		{"string_older_than_number", "1.a", "1.1", Older},
		{"big_numbers", "20240131235959123456789", "20240131235959123456788", Newer},
		{"separators_do_not_matter", "1-2_3", "1.2.3", Equal},
		{"parenthesised_build", "3.1 (412)", "3.1.412", Equal},
		{"identical", "4.5.6", "4.5.6", Equal},
		{"empty_is_undefined", "", "1.0", Undefined},
		{"punctuation_only_is_undefined", "1.0", "...", Undefined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareStrings(tt.lhs, tt.rhs))
		})
	}
}

func TestCompareIsTotalAndAntisymmetric(t *testing.T) {
	samples := []string{
		"1", "1.0", "1.0.0", "1.0.1", "1.1", "1.10", "1.9.9",
		"2.0b1", "2.0b2", "2.0rc1", "2.0", "2.0.0a", "2.0A",
		"10.15.7", "10.15.7.1", "3.1 (412)", "20240101", "v1.2",
	}

	for _, a := range samples {
		for _, b := range samples {
			ab := CompareStrings(a, b)
			ba := CompareStrings(b, a)

			assert.NotEqual(t, Undefined, ab, "%q vs %q", a, b)
			assert.Equal(t, ab, ba.Invert(), "%q vs %q not antisymmetric", a, b)

			va, vb := New(a, ""), New(b, "")
			held := 0
			for _, ok := range []bool{va.Less(vb), va.Greater(vb), va.Equal(vb)} {
				if ok {
					held++
				}
			}
			assert.Equal(t, 1, held, "%q vs %q", a, b)
		}
	}
}

func TestCompareUsesBuildWhenBothDistinct(t *testing.T) {
	tests := []struct {
		name string
		lhs  Version
		rhs  Version
		want Result
	}{
		{
			name: "builds_decide",
			lhs:  New("1.0", "120"),
			rhs:  New("1.0", "118"),
			want: Newer,
		},
		{
			name: "one_side_without_build_falls_back_to_version",
			lhs:  New("1.1", ""),
			rhs:  New("1.0", "999"),
			want: Newer,
		},
		{
			name: "build_equal_to_version_is_not_distinct",
			lhs:  New("1.2", "1.2"),
			rhs:  New("1.1", "500"),
			want: Newer,
		},
		{
			name: "build_only",
			lhs:  New("", "42"),
			rhs:  New("", "41"),
			want: Newer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.lhs, tt.rhs))
			assert.Equal(t, tt.want.Invert(), Compare(tt.rhs, tt.lhs))
		})
	}
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, Version{}.IsEmpty())
	assert.True(t, New(" ", "--").IsEmpty())
	assert.False(t, New("", "7").IsEmpty())
	assert.False(t, New("1.0", "").IsEmpty())
}

func TestParseSegments(t *testing.T) {
	segs := Parse("1.2b3 (45)")

	var kinds []SegmentKind
	for _, s := range segs {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []SegmentKind{
		SegmentComponent, SegmentSeparator, SegmentComponent, SegmentSeparator, SegmentComponent, SegmentSeparator,
	}, kinds)

	second := segs[2].Atoms
	if assert.Len(t, second, 3) {
		assert.Equal(t, AtomNumber, second[0].Kind)
		assert.Equal(t, "b", second[1].Text)
		assert.Equal(t, int64(3), second[2].Number.Int64())
	}
	assert.Equal(t, " (", segs[3].Separator)
}
