// Package manager holds the update state shown to the user and applies
// updates through the right channel for each source.
//
// A Manager owns the last scan result, keyed by source. Every read and
// write of that state runs as a closure on a single owner goroutine; scan
// results, progress reports and apply outcomes from background work are
// handed to it rather than written directly.
//
// Applying dispatches on the update's source:
//
//	homebrew  brew upgrade [--cask] <token>, entry removed on success
//	appstore  store download with progress, entry removed at 1.0;
//	          iOS apps are fetched as archives and sideloaded
//	sparkle   open -b <bundle id> so the app's own updater runs, or the
//	          in-process queue when sparkle_apply_mode is "inprocess"
//
// Failures leave the entry in place with StatusFailed and the error text.
package manager
