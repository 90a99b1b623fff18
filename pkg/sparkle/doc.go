// Package sparkle detects and applies updates for apps that embed the
// Sparkle updater.
//
// Detection reads the app's appcast. The light path parses the feed
// directly; the full path runs an Engine session in check-only mode and
// takes the item from its terminal callback. Both filter pre-releases
// before picking the newest item, gate on the item's minimum system
// version and compare with the sanitized Version of package version.
//
// Applying an update in-process goes through a Driver, a small state
// machine fed by Engine callbacks, and a Queue that runs at most three
// drivers at once. Validated candidates from the check phase are kept in a
// CandidateCache so the driver installs exactly what was reported.
package sparkle
