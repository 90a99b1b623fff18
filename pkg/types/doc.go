// Package types defines the data model shared by the checkers, the
// coordinator and the update manager: installed apps as discovered on disk
// and the update candidates the checkers derive from them.
package types
