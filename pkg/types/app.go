package types

// InstalledApp is an application found on disk, with the bundle metadata
// every checker needs.
type InstalledApp struct {
	// Path is the absolute path of the .app bundle (or the iOS wrapper
	// directory for sideloaded iOS apps)
	Path string

	// Name is the display name without the .app extension
	Name string

	// BundleID is CFBundleIdentifier
	BundleID string

	// Version is CFBundleShortVersionString
	Version string

	// Build is CFBundleVersion
	Build string

	// FeedURL is SUFeedURL when the bundle declares one
	FeedURL string

	// HasSparkle is true when Contents/Frameworks/Sparkle.framework exists
	HasSparkle bool

	// CaskToken is the Homebrew cask that installed this app, if any
	CaskToken string

	// AutoUpdates mirrors the cask's auto_updates flag
	AutoUpdates bool

	// ProductID is the App Store adam id, if known
	ProductID string

	IsIOSApp   bool
	MinimumOS  string
	Executable string
}
