package sparkle

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/appsweep/pkg/bundle"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/fetch"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// Session is one run of the updater for one app.
type Session struct {
	App       types.InstalledApp
	FeedURL   string
	CheckOnly bool
	Delegate  Delegate
}

// Engine is a headless Sparkle updater: it reads the appcast, picks an
// item, downloads and unpacks the zip enclosure and replaces the bundle.
// Delegate callbacks are delivered on the MainLoop.
type Engine struct {
	fetch   *fetch.Client
	fs      afero.Fs
	gate    OSGate
	loop    *MainLoop
	tempDir string
	logger  zerolog.Logger
}

// NewEngine creates an engine. tempDir holds downloads and staging
// directories; "" uses the filesystem's default.
func NewEngine(client *fetch.Client, fs afero.Fs, gate OSGate, loop *MainLoop, tempDir string) *Engine {
	return &Engine{
		fetch:   client,
		fs:      fs,
		gate:    gate,
		loop:    loop,
		tempDir: tempDir,
		logger:  logging.GetLogger("sparkle.engine"),
	}
}

// Start begins a session. It returns once the session is scheduled; the
// outcome arrives through the delegate.
func (e *Engine) Start(ctx context.Context, s Session) error {
	if s.Delegate == nil {
		return errors.New(errors.ErrInvalidInput, "session has no delegate")
	}
	if s.FeedURL == "" {
		return errors.Newf(errors.ErrInvalidInput, "%s has no appcast URL", s.App.BundleID)
	}
	ok := e.loop.Post(func() {
		perm := s.Delegate.UpdatePermission()
		if !perm.Allowed {
			s.Delegate.DidAbort(errors.New(errors.ErrCanceled, "update check not permitted"))
			return
		}
		channels := s.Delegate.AllowedChannels()
		go e.run(ctx, s, channels)
	})
	if !ok {
		return errors.New(errors.ErrCanceled, "updater main loop is closed")
	}
	return nil
}

func (e *Engine) run(ctx context.Context, s Session, channels []string) {
	d := s.Delegate
	log := e.logger.With().Str("bundleId", s.App.BundleID).Logger()

	data, err := e.fetch.Bytes(ctx, s.FeedURL)
	if err != nil {
		e.abort(d, err)
		return
	}
	items, err := ParseAppcast(data)
	if err != nil {
		e.abort(d, err)
		return
	}

	var valid []Item
	for _, item := range items {
		if !inChannels(item, channels) {
			continue
		}
		if e.gate != nil && !e.gate.SatisfiesMinimum(ctx, item.MinimumSystemVersion) {
			continue
		}
		valid = append(valid, item)
	}
	log.Debug().Int("items", len(items)).Int("valid", len(valid)).Msg("Appcast read")

	var (
		best   Item
		picked bool
	)
	if !e.loop.Call(func() { best, picked = d.BestValidUpdate(valid) }) {
		log.Debug().Msg("Main loop closed, ending session")
		return
	}
	if !picked {
		best, picked = SelectBest(valid, Policy{IncludePrereleases: true})
	}
	if !picked {
		e.post(func() { d.DidNotFindUpdate(nil) })
		return
	}
	if !Evaluate(ctx, s.App, best, Policy{IncludePrereleases: true}, e.gate) {
		e.post(func() { d.DidNotFindUpdate(&best) })
		return
	}

	var approved bool
	if !e.loop.Call(func() {
		d.ShowUpdateFound(best)
		approved = d.DidFindValidUpdate(best)
	}) {
		log.Debug().Msg("Main loop closed, ending session")
		return
	}
	if s.CheckOnly {
		return
	}
	if !approved {
		e.abort(d, errors.New(errors.ErrCanceled, "installation declined"))
		return
	}

	if err := e.install(ctx, s, best); err != nil {
		e.abort(d, err)
		return
	}
	e.post(func() {
		d.DismissUpdateInstallation()
		d.DidInstall(best)
	})
}

func (e *Engine) install(ctx context.Context, s Session, item Item) error {
	d := s.Delegate
	if item.Enclosure.URL == "" {
		return errors.Newf(errors.ErrInvalidInput, "item %s has no enclosure", item.DisplayVersion())
	}

	work, err := afero.TempDir(e.fs, e.tempDir, "appsweep-sparkle-")
	if err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create work directory")
	}
	defer func() {
		if err := e.fs.RemoveAll(work); err != nil {
			e.logger.Warn().Err(err).Str("dir", work).Msg("Cannot remove work directory")
		}
	}()

	archive := filepath.Join(work, "update.zip")
	e.post(d.ShowDownloadInitiated)
	if err := e.download(ctx, item.Enclosure.URL, archive, func(written, total int64) {
		e.post(func() { d.DownloadProgress(written, total) })
	}); err != nil {
		return err
	}

	e.post(d.ShowExtractionStarted)
	extracted := filepath.Join(work, "extracted")
	if err := extractZip(e.fs, archive, extracted, func(f float64) {
		e.post(func() { d.ExtractionProgress(f) })
	}); err != nil {
		return err
	}

	staged, err := findApp(e.fs, extracted)
	if err != nil {
		return err
	}
	info, err := bundle.ReadInfoFile(e.fs, filepath.Join(staged, "Contents", "Info.plist"))
	if err != nil {
		return err
	}
	if info.BundleIdentifier != s.App.BundleID {
		return errors.Newf(errors.ErrUpdateFailed, "archive contains %s, expected %s",
			info.BundleIdentifier, s.App.BundleID)
	}

	e.post(d.ShowReadyToInstall)
	if !e.loop.Call(func() { d.WillInstall(item) }) {
		return errors.New(errors.ErrCanceled, "updater main loop is closed")
	}
	return swapBundle(e.fs, s.App.Path, staged)
}

func (e *Engine) download(ctx context.Context, url, dest string, progress fetch.Progress) error {
	f, err := e.fs.Create(dest)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot create %s", dest)
	}
	defer f.Close()

	n, err := e.fetch.Download(ctx, url, f, progress)
	if err != nil {
		return err
	}
	e.logger.Debug().Str("url", url).Int64("bytes", n).Msg("Downloaded update")
	return nil
}

func (e *Engine) post(fn func()) {
	if !e.loop.Post(fn) {
		e.logger.Debug().Msg("Main loop closed, dropping callback")
	}
}

func (e *Engine) abort(d Delegate, err error) {
	e.logger.Debug().Err(err).Msg("Session aborted")
	e.post(func() {
		d.DismissUpdateInstallation()
		d.DidAbort(err)
	})
}

// extractZip unpacks archive under dest. Entries escaping dest are
// rejected.
func extractZip(fs afero.Fs, archive, dest string, progress func(float64)) error {
	f, err := fs.Open(archive)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileNotFound, "cannot open %s", archive)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", archive)
	}

	zr, err := zip.NewReader(f, st.Size())
	if err != nil && err != zip.ErrInsecurePath {
		return errors.Wrap(err, errors.ErrExtractFailed, "update archive is not a zip file")
	}

	root := filepath.Clean(dest) + string(os.PathSeparator)
	total := len(zr.File)
	for i, zf := range zr.File {
		target := filepath.Join(dest, zf.Name)
		if !strings.HasPrefix(target+string(os.PathSeparator), root) {
			return errors.Newf(errors.ErrExtractFailed, "illegal path %q in archive", zf.Name)
		}

		mode := zf.Mode()
		switch {
		case zf.FileInfo().IsDir():
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", target)
			}
		case mode&os.ModeSymlink != 0:
			if err := extractSymlink(fs, zf, target); err != nil {
				return err
			}
		default:
			if err := extractFile(fs, zf, target, mode.Perm()); err != nil {
				return err
			}
		}
		if progress != nil {
			progress(float64(i+1) / float64(total))
		}
	}
	return nil
}

func extractFile(fs afero.Fs, zf *zip.File, target string, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(target))
	}
	rc, err := zf.Open()
	if err != nil {
		return errors.Wrapf(err, errors.ErrExtractFailed, "cannot read %s", zf.Name)
	}
	defer rc.Close()

	out, err := fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot create %s", target)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return errors.Wrapf(err, errors.ErrExtractFailed, "cannot extract %s", zf.Name)
	}
	return out.Close()
}

func extractSymlink(fs afero.Fs, zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return errors.Wrapf(err, errors.ErrExtractFailed, "cannot read %s", zf.Name)
	}
	link, err := io.ReadAll(io.LimitReader(rc, 4096))
	rc.Close()
	if err != nil {
		return errors.Wrapf(err, errors.ErrExtractFailed, "cannot read %s", zf.Name)
	}
	dest := string(link)
	if filepath.IsAbs(dest) {
		return errors.Newf(errors.ErrExtractFailed, "absolute symlink %q in archive", zf.Name)
	}

	linker, ok := fs.(afero.Linker)
	if !ok {
		logger := logging.GetLogger("sparkle.engine")
		logger.Debug().Str("entry", zf.Name).Msg("Filesystem cannot hold symlinks, skipping")
		return nil
	}
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(target))
	}
	if err := linker.SymlinkIfPossible(dest, target); err != nil {
		return errors.Wrapf(err, errors.ErrExtractFailed, "cannot link %s", zf.Name)
	}
	return nil
}

func findApp(fs afero.Fs, dir string) (string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrExtractFailed, "cannot list %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".app") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", errors.New(errors.ErrExtractFailed, "update archive contains no .app bundle")
}

// swapBundle moves live aside, moves staged into place and drops the
// backup. When the second move fails the backup is moved back.
func swapBundle(fs afero.Fs, live, staged string) error {
	backup := live + ".appsweep-" + uuid.NewString()
	if err := fs.Rename(live, backup); err != nil {
		return errors.Wrapf(err, errors.ErrSwapFailed, "cannot move %s aside", live)
	}
	if err := fs.Rename(staged, live); err != nil {
		swapErr := errors.Wrapf(err, errors.ErrSwapFailed, "cannot move update into %s", live)
		if rbErr := fs.Rename(backup, live); rbErr != nil {
			return errors.Wrapf(rbErr, errors.ErrRollbackFailed, "%s; restoring %s also failed", swapErr.Error(), live).
				WithDetail("backup", backup)
		}
		return swapErr.WithDetail("rolledBack", true)
	}
	if err := fs.RemoveAll(backup); err != nil {
		logger := logging.GetLogger("sparkle.engine")
		logger.Warn().Err(err).Str("backup", backup).Msg("Cannot remove backup")
	}
	return nil
}
