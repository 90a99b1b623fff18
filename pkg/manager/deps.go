package manager

import (
	"context"
	"time"

	"github.com/arthur-debert/appsweep/pkg/appstore"
	"github.com/arthur-debert/appsweep/pkg/history"
	"github.com/arthur-debert/appsweep/pkg/sideload"
	"github.com/arthur-debert/appsweep/pkg/sparkle"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// Scanner produces deduplicated updates for a set of installed apps.
type Scanner interface {
	ScanForUpdates(ctx context.Context, apps []types.InstalledApp) map[types.Source][]types.UpdateableApp
}

// AppLister finds the installed apps to scan.
type AppLister interface {
	InstalledApps(ctx context.Context) ([]types.InstalledApp, error)
}

// AppListerFunc adapts a function to AppLister.
type AppListerFunc func(ctx context.Context) ([]types.InstalledApp, error)

func (f AppListerFunc) InstalledApps(ctx context.Context) ([]types.InstalledApp, error) {
	return f(ctx)
}

// Recorder persists apply outcomes and scan summaries.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
	RecordScan(ctx context.Context, started time.Time, apps int, result map[types.Source][]types.UpdateableApp) (history.Scan, error)
}

type BrewUpgrader interface {
	Upgrade(ctx context.Context, name string, isCask bool, onLine func(string)) error
}

type StoreDownloader interface {
	Update(ctx context.Context, productID string, progress appstore.ProgressFunc) error
}

type ArchiveFetcher interface {
	Fetch(ctx context.Context, bundleID, dir string, progress appstore.ProgressFunc) (string, error)
}

type SideloadInstaller interface {
	Install(ctx context.Context, req sideload.InstallRequest, progress sideload.ProgressFunc) error
}

type AppOpener interface {
	Open(ctx context.Context, bundleID string) error
}

type SparkleQueue interface {
	Enqueue(ctx context.Context, upd types.UpdateableApp, progress sparkle.ProgressFunc, done func(error)) error
}

// Appliers are the per-source executors. Any may be nil, in which case
// applying that kind of update fails with ErrUnsupportedSource.
type Appliers struct {
	Brew     BrewUpgrader
	Store    StoreDownloader
	Archives ArchiveFetcher
	Sideload SideloadInstaller
	Opener   AppOpener
	Sparkle  SparkleQueue

	// SparkleMode is config.SparkleApplyOpen or config.SparkleApplyInProcess
	SparkleMode string
	// TempDir receives fetched iOS archives
	TempDir string
}
