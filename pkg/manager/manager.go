package manager

import (
	"context"
	stderrors "errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/config"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/history"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/sideload"
	"github.com/arthur-debert/appsweep/pkg/sparkle"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// Share of the iOS apply spent fetching the archive; the rest is the
// sideload install.
const archiveShare = 0.5

// Options configures a Manager.
type Options struct {
	Appliers Appliers
	// Recorder may be nil to keep no history
	Recorder Recorder
}

// Manager is the stateful front of scanning and applying updates.
type Manager struct {
	scanner  Scanner
	apps     AppLister
	appliers Appliers
	recorder Recorder
	now      func() time.Time

	ops       chan func(*state)
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    zerolog.Logger
}

// New starts the owner goroutine. Call Close to stop it.
func New(scanner Scanner, apps AppLister, opts Options) *Manager {
	m := &Manager{
		scanner:  scanner,
		apps:     apps,
		appliers: opts.Appliers,
		recorder: opts.Recorder,
		now:      time.Now,
		ops:      make(chan func(*state)),
		quit:     make(chan struct{}),
		logger:   logging.GetLogger("manager"),
	}
	if m.appliers.SparkleMode == "" {
		m.appliers.SparkleMode = config.SparkleApplyOpen
	}

	m.wg.Add(1)
	go m.run()
	return m
}

func (m *Manager) run() {
	defer m.wg.Done()
	st := newState()
	for {
		select {
		case op := <-m.ops:
			op(st)
		case <-m.quit:
			return
		}
	}
}

// do runs fn on the owner goroutine and waits for it. It reports false
// once the manager is closed. fn must not call back into the manager.
func (m *Manager) do(fn func(*state)) bool {
	done := make(chan struct{})
	select {
	case m.ops <- func(s *state) { fn(s); close(done) }:
	case <-m.quit:
		return false
	}
	<-done
	return true
}

// Close stops the owner goroutine. Later calls report ErrCanceled.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.quit) })
	m.wg.Wait()
}

func errClosed() error {
	return errors.New(errors.ErrCanceled, "update manager is closed")
}

// Scan lists installed apps, runs every checker and replaces the current
// state with the result. Only one scan runs at a time.
func (m *Manager) Scan(ctx context.Context) (map[types.Source][]types.UpdateableApp, error) {
	var busy bool
	if !m.do(func(s *state) {
		busy = s.scanning
		s.scanning = true
	}) {
		return nil, errClosed()
	}
	if busy {
		return nil, errors.New(errors.ErrAlreadyQueued, "a scan is already running")
	}

	done := logging.LogOperationStart(m.logger, "scan")
	defer done()
	started := m.now()

	apps, err := m.apps.InstalledApps(ctx)
	if err != nil {
		m.do(func(s *state) { s.scanning = false })
		return nil, err
	}
	result := m.scanner.ScanForUpdates(ctx, apps)
	if err := ctx.Err(); err != nil {
		m.do(func(s *state) { s.scanning = false })
		return nil, errors.Wrap(err, errors.ErrCanceled, "scan canceled")
	}

	var out map[types.Source][]types.UpdateableApp
	if !m.do(func(s *state) {
		s.replace(result)
		s.scanning = false
		s.lastScan = m.now()
		out = s.snapshot()
	}) {
		return nil, errClosed()
	}

	if m.recorder != nil {
		if _, err := m.recorder.RecordScan(context.WithoutCancel(ctx), started, len(apps), out); err != nil {
			m.logger.Warn().Err(err).Msg("Cannot record scan")
		}
	}
	return out, nil
}

// Updates returns a copy of the current state. Every source has a key.
func (m *Manager) Updates() map[types.Source][]types.UpdateableApp {
	var out map[types.Source][]types.UpdateableApp
	if !m.do(func(s *state) { out = s.snapshot() }) {
		return emptyResult()
	}
	return out
}

// Get returns the entry with the given id.
func (m *Manager) Get(id string) (types.UpdateableApp, bool) {
	var (
		upd   types.UpdateableApp
		found bool
	)
	m.do(func(s *state) {
		if e := s.entry(id); e != nil {
			upd, found = *e, true
		}
	})
	return upd, found
}

func (m *Manager) IsScanning() bool {
	var scanning bool
	m.do(func(s *state) { scanning = s.scanning })
	return scanning
}

// LastScan is the completion time of the last scan, zero before the first.
func (m *Manager) LastScan() time.Time {
	var t time.Time
	m.do(func(s *state) { t = s.lastScan })
	return t
}

// Select marks an entry for UpdateSelected.
func (m *Manager) Select(id string, selected bool) error {
	var err error
	if !m.do(func(s *state) {
		e := s.entry(id)
		if e == nil {
			err = errors.Newf(errors.ErrNotFound, "no update for %s", id)
			return
		}
		e.Selected = selected
	}) {
		return errClosed()
	}
	return err
}

// UpdateSelected applies every selected entry that is not already being
// applied, one at a time, and joins the failures.
func (m *Manager) UpdateSelected(ctx context.Context) error {
	var ids []string
	if !m.do(func(s *state) {
		for _, src := range types.Sources {
			for _, e := range s.updates[src] {
				if e.Selected && !e.Status.IsActive() {
					ids = append(ids, e.ID)
				}
			}
		}
	}) {
		return errClosed()
	}

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, errors.Wrap(err, errors.ErrCanceled, "update canceled"))
			break
		}
		if err := m.UpdateApp(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// UpdateApp applies the update with the given id. Homebrew, App Store and
// hand-off updates finish before it returns; in-process Sparkle updates
// are queued and finish in the background.
func (m *Manager) UpdateApp(ctx context.Context, id string) error {
	var (
		upd types.UpdateableApp
		err error
	)
	if !m.do(func(s *state) {
		e := s.entry(id)
		if e == nil {
			err = errors.Newf(errors.ErrNotFound, "no update for %s", id)
			return
		}
		if e.Status.IsActive() {
			err = errors.Newf(errors.ErrAlreadyQueued, "%s is already updating", id)
			return
		}
		e.Status = types.Status{State: types.StatusDownloading}
		e.Progress = 0
		upd = *e
	}) {
		return errClosed()
	}
	if err != nil {
		return err
	}

	started := m.now()
	m.logger.Info().
		Str("id", upd.ID).
		Str("source", string(upd.Source)).
		Str("version", upd.AvailableVersion).
		Msg("Applying update")

	var outcome history.Outcome
	switch upd.Source {
	case types.SourceHomebrew:
		outcome, err = history.OutcomeSucceeded, m.applyHomebrew(ctx, upd)
	case types.SourceAppStore:
		outcome, err = history.OutcomeSucceeded, m.applyStore(ctx, upd)
	case types.SourceSparkle:
		outcome, err = m.applySparkle(ctx, upd, started)
		if err == nil && outcome == "" {
			return nil
		}
	default:
		err = errors.Newf(errors.ErrUnsupportedSource, "unknown source %q", upd.Source)
	}

	m.complete(ctx, upd, started, outcome, err)
	return err
}

func (m *Manager) applyHomebrew(ctx context.Context, upd types.UpdateableApp) error {
	if m.appliers.Brew == nil {
		return errors.New(errors.ErrUnsupportedSource, "homebrew is not available")
	}
	if upd.CaskToken == "" {
		return errors.Newf(errors.ErrInvalidInput, "%s has no cask token", upd.ID)
	}
	log := m.logger.With().Str("token", upd.CaskToken).Logger()
	return m.appliers.Brew.Upgrade(ctx, upd.CaskToken, !upd.IsFormula, func(line string) {
		log.Debug().Str("line", line).Msg("brew")
	})
}

func (m *Manager) applyStore(ctx context.Context, upd types.UpdateableApp) error {
	if upd.IsIOSApp && m.appliers.Archives != nil && m.appliers.Sideload != nil {
		return m.applySideload(ctx, upd)
	}
	if m.appliers.Store == nil {
		return errors.New(errors.ErrUnsupportedSource, "no App Store download tool configured")
	}
	if upd.ProductID == "" {
		return errors.Newf(errors.ErrInvalidInput, "%s has no product id", upd.ID)
	}
	return m.appliers.Store.Update(ctx, upd.ProductID, func(p float64) {
		m.progress(upd.ID, types.StatusDownloading, p, true)
	})
}

func (m *Manager) applySideload(ctx context.Context, upd types.UpdateableApp) error {
	dir, err := os.MkdirTemp(m.appliers.TempDir, "appsweep-ipa-")
	if err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create archive directory")
	}
	defer os.RemoveAll(dir)

	archive, err := m.appliers.Archives.Fetch(ctx, upd.App.BundleID, dir, func(p float64) {
		m.progress(upd.ID, types.StatusDownloading, p*archiveShare, false)
	})
	if err != nil {
		return err
	}

	return m.appliers.Sideload.Install(ctx, sideload.InstallRequest{
		ArchivePath: archive,
		TargetPath:  upd.App.Path,
		ProductID:   upd.ProductID,
	}, func(p float64) {
		m.progress(upd.ID, types.StatusInstalling, archiveShare+p*(1-archiveShare), false)
	})
}

// applySparkle returns an empty outcome when the update was queued.
func (m *Manager) applySparkle(ctx context.Context, upd types.UpdateableApp, started time.Time) (history.Outcome, error) {
	if m.appliers.SparkleMode == config.SparkleApplyInProcess {
		if m.appliers.Sparkle == nil {
			return history.OutcomeFailed, errors.New(errors.ErrUnsupportedSource, "in-process Sparkle updates are not available")
		}
		err := m.appliers.Sparkle.Enqueue(ctx, upd,
			func(st sparkle.State, p float64) {
				m.progress(upd.ID, sparkleStatus(st), p, false)
			},
			func(err error) {
				m.complete(context.WithoutCancel(ctx), upd, started, history.OutcomeSucceeded, err)
			})
		if err != nil {
			return history.OutcomeFailed, err
		}
		return "", nil
	}

	if m.appliers.Opener == nil {
		return history.OutcomeFailed, errors.New(errors.ErrUnsupportedSource, "cannot open apps")
	}
	if err := m.appliers.Opener.Open(ctx, upd.App.BundleID); err != nil {
		return history.OutcomeFailed, err
	}
	return history.OutcomeHandedOff, nil
}

func sparkleStatus(st sparkle.State) types.StatusState {
	switch st {
	case sparkle.StateDownloading:
		return types.StatusDownloading
	case sparkle.StateExtracting:
		return types.StatusExtracting
	case sparkle.StateInstalling, sparkle.StateInstalled:
		return types.StatusInstalling
	case sparkle.StateError:
		return types.StatusFailed
	}
	return types.StatusChecking
}

// progress records a progress report. With removeAtEnd the entry is
// dropped once p reaches 1.
func (m *Manager) progress(id string, st types.StatusState, p float64, removeAtEnd bool) {
	m.do(func(s *state) {
		if removeAtEnd && p >= 1.0 {
			s.remove(id)
			return
		}
		if e := s.entry(id); e != nil {
			e.Status = types.Status{State: st}
			if p > e.Progress {
				e.Progress = p
			}
		}
	})
}

// complete settles an apply: success removes the entry, a hand-off
// returns it to idle and a failure marks it failed. The outcome is
// recorded either way.
func (m *Manager) complete(ctx context.Context, upd types.UpdateableApp, started time.Time, outcome history.Outcome, err error) {
	entry := history.Entry{
		AppID:       upd.ID,
		Name:        upd.App.Name,
		Source:      upd.Source,
		FromVersion: upd.App.Version,
		ToVersion:   upd.DisplayVersion(),
		Outcome:     outcome,
		StartedAt:   started,
		FinishedAt:  m.now(),
	}

	switch {
	case err != nil:
		entry.Outcome = history.OutcomeFailed
		entry.Message = err.Error()
		m.logger.Error().Err(err).Str("id", upd.ID).Msg("Update failed")
		m.do(func(s *state) {
			if e := s.entry(upd.ID); e != nil {
				e.Status = types.Status{State: types.StatusFailed, FailureMessage: err.Error()}
			}
		})
	case outcome == history.OutcomeHandedOff:
		m.logger.Info().Str("id", upd.ID).Msg("Handed update to the app")
		m.do(func(s *state) {
			if e := s.entry(upd.ID); e != nil {
				e.Status = types.Status{State: types.StatusIdle}
				e.Progress = 0
			}
		})
	default:
		logging.LogDuration(started, "update "+upd.ID)
		m.do(func(s *state) { s.remove(upd.ID) })
	}

	if m.recorder == nil {
		return
	}
	if _, rerr := m.recorder.Record(context.WithoutCancel(ctx), entry); rerr != nil {
		m.logger.Warn().Err(rerr).Str("id", upd.ID).Msg("Cannot record update")
	}
}
