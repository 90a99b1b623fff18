package types

import (
	"fmt"
	"time"
)

// Source identifies which channel can update an app.
type Source string

const (
	SourceHomebrew Source = "homebrew"
	SourceAppStore Source = "appstore"
	SourceSparkle  Source = "sparkle"
)

// Sources lists every source in dedup priority order.
var Sources = []Source{SourceHomebrew, SourceAppStore, SourceSparkle}

// Priority returns the dedup rank of s; lower wins.
func (s Source) Priority() int {
	for i, src := range Sources {
		if src == s {
			return i
		}
	}
	return len(Sources)
}

// ParseSource accepts the lower-case source names.
func ParseSource(s string) (Source, error) {
	for _, src := range Sources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// StatusState is the lifecycle stage of an update.
type StatusState string

const (
	StatusIdle        StatusState = "idle"
	StatusChecking    StatusState = "checking"
	StatusDownloading StatusState = "downloading"
	StatusExtracting  StatusState = "extracting"
	StatusInstalling  StatusState = "installing"
	StatusVerifying   StatusState = "verifying"
	StatusCompleted   StatusState = "completed"
	StatusFailed      StatusState = "failed"
)

// Status is the current state of an update, with the failure message
// when State is StatusFailed.
type Status struct {
	State          StatusState
	FailureMessage string
}

// IsActive reports whether an apply is running.
func (s Status) IsActive() bool {
	switch s.State {
	case StatusChecking, StatusDownloading, StatusExtracting, StatusInstalling, StatusVerifying:
		return true
	}
	return false
}

// Release holds the human-facing notes of an available version.
type Release struct {
	Title       string
	Description string
	NotesURL    string
	Date        time.Time
}

// UpdateableApp is an app with a newer version available from one source.
type UpdateableApp struct {
	// ID is the bundle identifier, or homebrew.formula.<name> for formulae
	ID string

	App              InstalledApp
	AvailableVersion string
	AvailableBuild   string
	Source           Source

	CaskToken string
	IsFormula bool
	ProductID string
	StoreURL  string

	Status   Status
	Progress float64
	Selected bool

	Release      Release
	IsPreRelease bool
	IsIOSApp     bool
}

// CanUpdate reports whether the app can be updated without the app's own
// UI. Sparkle updates are handed off to the app.
func (u UpdateableApp) CanUpdate() bool {
	return u.Source == SourceHomebrew || u.Source == SourceAppStore
}

// DisplayVersion renders the available version with its build when the
// two differ.
func (u UpdateableApp) DisplayVersion() string {
	if u.AvailableBuild != "" && u.AvailableBuild != u.AvailableVersion {
		if u.AvailableVersion == "" {
			return u.AvailableBuild
		}
		return fmt.Sprintf("%s (%s)", u.AvailableVersion, u.AvailableBuild)
	}
	return u.AvailableVersion
}

// FormulaID is the synthetic identifier of a formula update.
func FormulaID(name string) string {
	return "homebrew.formula." + name
}
