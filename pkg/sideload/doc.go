// Package sideload replaces a wrapped iOS app installation with a newer
// archive without losing its store metadata.
//
// The new wrapper is assembled completely in a temporary directory first:
// the extracted app bundle, iTunesMetadata.plist merged from the preserved
// original, and BundleMetadata.plist re-encoded as a keyed archive that
// carries the original protected metadata blob. Only then is the live
// wrapper swapped out by one privileged script, with a best-effort
// rollback when the script fails.
package sideload
