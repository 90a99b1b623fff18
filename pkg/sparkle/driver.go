package sparkle

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/fetch"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// State is the driver's position in the update protocol.
type State int

const (
	StateIdle State = iota
	StatePermission
	StateFound
	StateDownloading
	StateExtracting
	StateInstalling
	StateInstalled
	StateError
)

func (s State) String() string {
	switch s {
	case StatePermission:
		return "permission"
	case StateFound:
		return "found"
	case StateDownloading:
		return "downloading"
	case StateExtracting:
		return "extracting"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == StateInstalled || s == StateError }

// Progress weights of the three engine phases.
const (
	downloadWeight    = 0.75
	extractionWeight  = 0.20
	installedProgress = 0.95
)

// ProgressFunc observes driver transitions. It is called on the MainLoop
// and must not block.
type ProgressFunc func(state State, progress float64)

// Driver installs one update in-process without UI. It approves every
// prompt, offers the cached candidate as the best update and blends the
// engine's download and extraction progress into one monotonic value.
type Driver struct {
	NopDelegate

	engine     *Engine
	app        types.InstalledApp
	feedURL    string
	candidate  Item
	policy     Policy
	onProgress ProgressFunc
	logger     zerolog.Logger

	mu       sync.Mutex
	state    State
	progress float64
	err      error

	done chan struct{}
	once sync.Once
}

// NewDriver prepares a driver for app. candidate is the item validated
// during the check phase.
func NewDriver(engine *Engine, app types.InstalledApp, feedURL string, candidate Item, policy Policy, onProgress ProgressFunc) *Driver {
	return &Driver{
		engine:     engine,
		app:        app,
		feedURL:    feedURL,
		candidate:  candidate,
		policy:     policy,
		onProgress: onProgress,
		logger:     logging.GetLogger("sparkle.driver").With().Str("bundleId", app.BundleID).Logger(),
		done:       make(chan struct{}),
	}
}

// Start launches the engine session. The returned channel is closed once a
// terminal callback has fired, the MainLoop has closed or ctx is done.
func (d *Driver) Start(ctx context.Context) <-chan struct{} {
	err := d.engine.Start(ctx, Session{
		App:      d.app,
		FeedURL:  d.feedURL,
		Delegate: d,
	})
	if err != nil {
		d.finish(StateError, err)
		return d.done
	}
	go d.watch(ctx)
	return d.done
}

// watch ends the session when no terminal callback can arrive anymore.
func (d *Driver) watch(ctx context.Context) {
	select {
	case <-d.done:
	case <-d.engine.loop.Done():
		d.finish(StateError, errors.Newf(errors.ErrCanceled, "updater main loop closed while updating %s", d.app.BundleID))
	case <-ctx.Done():
		d.finish(StateError, errors.Wrapf(ctx.Err(), errors.ErrCanceled, "update of %s canceled", d.app.BundleID))
	}
}

// Run starts the session and blocks until it ends.
func (d *Driver) Run(ctx context.Context) error {
	select {
	case <-d.Start(ctx):
	case <-ctx.Done():
		d.finish(StateError, errors.Wrapf(ctx.Err(), errors.ErrCanceled, "update of %s canceled", d.app.BundleID))
	}
	return d.Err()
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) Progress() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

// Err is the terminal error, nil after a successful install.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Done is closed when the session has ended.
func (d *Driver) Done() <-chan struct{} { return d.done }

func (d *Driver) transition(state State, progress float64) {
	d.mu.Lock()
	if d.state.Terminal() {
		d.mu.Unlock()
		return
	}
	d.state = state
	if progress > d.progress {
		d.progress = progress
	}
	current := d.progress
	d.mu.Unlock()

	d.logger.Trace().Str("state", state.String()).Float64("progress", current).Msg("Transition")
	if d.onProgress != nil {
		d.onProgress(state, current)
	}
}

func (d *Driver) finish(state State, err error) {
	d.once.Do(func() {
		if state == StateInstalled {
			d.transition(state, 1.0)
		} else {
			d.transition(state, 0)
		}
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		if err != nil {
			d.logger.Warn().Err(err).Msg("Update failed")
		} else {
			d.logger.Info().Msg("Update installed")
		}
		close(d.done)
	})
}

func (d *Driver) UpdatePermission() Permission {
	d.transition(StatePermission, 0)
	return Permission{Allowed: true, AutomaticChecks: false}
}

func (d *Driver) AllowedChannels() []string { return d.policy.AllowedChannels() }

func (d *Driver) BestValidUpdate(items []Item) (Item, bool) { return d.candidate, true }

func (d *Driver) DidFindValidUpdate(item Item) bool {
	d.transition(StateFound, 0)
	return true
}

func (d *Driver) DidNotFindUpdate(best *Item) {
	d.finish(StateError, errors.Newf(errors.ErrNoCandidate, "no update found for %s", d.app.BundleID))
}

func (d *Driver) DidAbort(err error) {
	d.finish(StateError, errors.Wrapf(err, errors.ErrUpdateFailed, "updating %s", d.app.BundleID))
}

func (d *Driver) DownloadProgress(written, total int64) {
	d.transition(StateDownloading, fetch.Fraction(written, total)*downloadWeight)
}

func (d *Driver) ExtractionProgress(fraction float64) {
	d.transition(StateExtracting, downloadWeight+fraction*extractionWeight)
}

func (d *Driver) WillInstall(item Item) {
	d.transition(StateInstalling, installedProgress)
}

func (d *Driver) DidInstall(item Item) {
	d.finish(StateInstalled, nil)
}
