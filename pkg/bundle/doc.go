// Package bundle reads application bundles from disk.
//
// It understands two layouts: regular macOS bundles (Contents/Info.plist)
// and wrapped iOS apps installed on Apple silicon, where the outer
// directory holds Wrapper/<Name>.app, Wrapper/iTunesMetadata.plist and a
// WrappedBundle symlink. All access goes through an afero filesystem so the
// layouts can be built in memory for tests.
package bundle
