package sparkle

// Permission answers the engine's request to check for updates.
type Permission struct {
	Allowed         bool
	AutomaticChecks bool
}

// Delegate receives the engine's callbacks. All of them run on the
// engine's MainLoop. A session ends with exactly one terminal callback:
// DidFindValidUpdate for check-only sessions, DidNotFindUpdate, DidAbort
// or DidInstall.
type Delegate interface {
	UpdatePermission() Permission
	AllowedChannels() []string
	// BestValidUpdate may pick the item to offer from the filtered
	// appcast items. Returning false lets the engine take the newest.
	BestValidUpdate(items []Item) (Item, bool)
	// DidFindValidUpdate reports the offered item. Returning true
	// approves installation.
	DidFindValidUpdate(item Item) bool
	DidNotFindUpdate(best *Item)
	DidAbort(err error)

	DownloadProgress(written, total int64)
	ExtractionProgress(fraction float64)
	WillInstall(item Item)
	DidInstall(item Item)

	ShowUpdateFound(item Item)
	ShowReleaseNotes(item Item)
	ShowDownloadInitiated()
	ShowExtractionStarted()
	ShowReadyToInstall()
	DismissUpdateInstallation()
}

// NopDelegate implements every callback with a headless default. Embed it
// and override what matters.
type NopDelegate struct{}

func (NopDelegate) UpdatePermission() Permission              { return Permission{Allowed: true} }
func (NopDelegate) AllowedChannels() []string                 { return nil }
func (NopDelegate) BestValidUpdate(items []Item) (Item, bool) { return Item{}, false }
func (NopDelegate) DidFindValidUpdate(item Item) bool         { return false }
func (NopDelegate) DidNotFindUpdate(best *Item)               {}
func (NopDelegate) DidAbort(err error)                        {}
func (NopDelegate) DownloadProgress(written, total int64)     {}
func (NopDelegate) ExtractionProgress(fraction float64)       {}
func (NopDelegate) WillInstall(item Item)                     {}
func (NopDelegate) DidInstall(item Item)                      {}
func (NopDelegate) ShowUpdateFound(item Item)                 {}
func (NopDelegate) ShowReleaseNotes(item Item)                {}
func (NopDelegate) ShowDownloadInitiated()                    {}
func (NopDelegate) ShowExtractionStarted()                    {}
func (NopDelegate) ShowReadyToInstall()                       {}
func (NopDelegate) DismissUpdateInstallation()                {}
