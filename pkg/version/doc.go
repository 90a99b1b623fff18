// Package version compares the loosely formatted version strings found in
// app bundles, appcast feeds and store listings.
//
// A version string is tokenised into components separated by punctuation
// or whitespace; each component is a run of numeric and alphabetic atoms.
// Numbers are arbitrary precision, so build stamps such as 20240131235959
// compare correctly. Comparison never fails: strings without any component
// compare as Undefined, which callers treat as "not newer".
package version
