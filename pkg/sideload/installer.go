package sideload

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/appsweep/pkg/appstore"
	"github.com/arthur-debert/appsweep/pkg/bundle"
	"github.com/arthur-debert/appsweep/pkg/command"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

// Progress checkpoints reported by Install.
const (
	ProgressExtracting = 0.1
	ProgressMetadata   = 0.4
	ProgressSwapping   = 0.7
	ProgressDone       = 1.0
)

// Lookup fetches the current store listing of a product.
type Lookup interface {
	LookupID(ctx context.Context, productID string) (appstore.Listing, error)
}

// Options configures the installer.
type Options struct {
	ExtractTool string // "ditto" extracts with -x -k
	Owner       string // chown argument for the installed wrapper, "" skips
	Mode        string // chmod argument for the installed wrapper, "" skips
	TempDir     string
}

// InstallRequest names the archive to install and the installation to
// replace. TargetPath may be the outer wrapper or the inner .app.
type InstallRequest struct {
	ArchivePath string
	TargetPath  string
	ProductID   string
}

// ProgressFunc receives coarse progress in [0,1].
type ProgressFunc func(float64)

// Installer replaces wrapped iOS apps.
type Installer struct {
	fs         afero.Fs
	staging    filesystem.FullFileSystem
	runner     command.Runner
	privileged command.PrivilegedRunner
	lookup     Lookup
	opts       Options
	reader     *bundle.Reader
	logger     zerolog.Logger
}

// NewInstaller creates an installer. fs must be the real filesystem in
// production since extraction and the swap run as external commands.
func NewInstaller(fs afero.Fs, runner command.Runner, privileged command.PrivilegedRunner, lookup Lookup, opts Options) *Installer {
	if opts.ExtractTool == "" {
		opts.ExtractTool = "ditto"
	}
	return &Installer{
		fs:         fs,
		staging:    newStagingFS(),
		runner:     runner,
		privileged: privileged,
		lookup:     lookup,
		opts:       opts,
		reader:     bundle.NewReader(fs),
		logger:     logging.GetLogger("sideload"),
	}
}

// NormalizeWrapper returns the outer wrapper directory for path, which may
// point at the wrapper itself or at the .app inside Wrapper/.
func NormalizeWrapper(fs afero.Fs, path string) (string, error) {
	path = filepath.Clean(path)
	if ok, _ := afero.DirExists(fs, filepath.Join(path, bundle.WrapperDir)); ok {
		return path, nil
	}
	up := filepath.Dir(filepath.Dir(path))
	if ok, _ := afero.DirExists(fs, filepath.Join(up, bundle.WrapperDir)); ok {
		return up, nil
	}
	return "", errors.Newf(errors.ErrInvalidInput, "%s is not a wrapped iOS app", path)
}

// Install replaces the installation at req.TargetPath with the app in
// req.ArchivePath. Nothing under the live wrapper is touched before the
// new wrapper is fully assembled.
func (i *Installer) Install(ctx context.Context, req InstallRequest, progress ProgressFunc) error {
	report := func(p float64) {
		if progress != nil {
			progress(p)
		}
	}
	done := logging.LogOperationStart(i.logger, "sideload install")
	defer done()

	wrapper, err := NormalizeWrapper(i.fs, req.TargetPath)
	if err != nil {
		return err
	}
	log := i.logger.With().Str("wrapper", wrapper).Logger()

	work, err := afero.TempDir(i.fs, i.opts.TempDir, "appsweep-sideload-")
	if err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create work directory")
	}
	defer func() {
		if rmErr := i.fs.RemoveAll(work); rmErr != nil {
			log.Warn().Err(rmErr).Str("dir", work).Msg("Cannot remove work directory")
		}
	}()

	report(ProgressExtracting)
	extracted := filepath.Join(work, "extracted")
	if err := i.extract(ctx, req.ArchivePath, extracted); err != nil {
		return err
	}
	newApp, err := findPayloadApp(i.fs, filepath.Join(extracted, "Payload"))
	if err != nil {
		return err
	}
	info, err := bundle.ReadInfoFile(i.fs, filepath.Join(newApp, "Info.plist"))
	if err != nil {
		return err
	}
	if info.BundleIdentifier == "" {
		return errors.Newf(errors.ErrPlistInvalid, "%s has no bundle identifier", newApp)
	}
	newVersion := VersionInfo{BundleID: info.BundleIdentifier, ShortVersion: info.ShortVersion, Build: info.Version}

	report(ProgressMetadata)
	preserved, err := Preserve(i.fs, wrapper)
	if err != nil {
		return err
	}
	i.refresh(ctx, log, req.ProductID, preserved, newVersion)

	itunes, err := EncodeITunes(MergeITunes(preserved, newVersion), preserved.ITunesFormat)
	if err != nil {
		return err
	}
	bundleMeta, err := EncodeBundleMetadata(newVersion, preserved.Protected)
	if err != nil {
		return err
	}
	if err := ValidateBundleMetadata(bundleMeta, newVersion, preserved.Protected); err != nil {
		return err
	}

	staged := filepath.Join(work, filepath.Base(wrapper))
	innerName := filepath.Base(newApp)
	if err := i.assemble(ctx, staged, newApp, itunes, bundleMeta); err != nil {
		return err
	}

	report(ProgressSwapping)
	backup := wrapper + ".appsweep-backup-" + uuid.NewString()
	script := swapScript(swapPlan{
		Live:       wrapper,
		Staged:     staged,
		Backup:     backup,
		Inner:      innerName,
		Executable: i.runningExecutable(wrapper, info.Executable),
		Owner:      i.opts.Owner,
		Mode:       i.opts.Mode,
	})
	res, swapErr := i.privileged.RunScript(ctx, script)
	if swapErr != nil {
		return i.rollback(ctx, log, wrapper, backup, res, swapErr)
	}

	log.Info().Str("version", newVersion.ShortVersion).Msg("Wrapped app replaced")
	report(ProgressDone)
	return nil
}

func (i *Installer) extract(ctx context.Context, archive, dest string) error {
	if err := i.fs.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", dest)
	}
	args := []string{"-x", "-k", archive, dest}
	logging.LogCommand(i.opts.ExtractTool, args)
	if _, err := i.runner.Run(ctx, command.Spec{Name: i.opts.ExtractTool, Args: args}); err != nil {
		return errors.Wrapf(err, errors.ErrExtractFailed, "cannot extract %s", archive)
	}
	return nil
}

func findPayloadApp(fs afero.Fs, payload string) (string, error) {
	entries, err := afero.ReadDir(fs, payload)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrExtractFailed, "archive has no Payload directory")
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".app") {
			return filepath.Join(payload, e.Name()), nil
		}
	}
	return "", errors.New(errors.ErrExtractFailed, "Payload contains no .app bundle")
}

// refresh checks the store listing against the archive. The listing never
// overrides what is written; a mismatch is only logged.
func (i *Installer) refresh(ctx context.Context, log zerolog.Logger, productID string, pm PreservedMetadata, v VersionInfo) {
	if productID == "" {
		productID = pm.ItemID
	}
	if i.lookup == nil || productID == "" {
		return
	}
	listing, err := i.lookup.LookupID(ctx, productID)
	if err != nil {
		log.Debug().Err(err).Str("productId", productID).Msg("Store lookup failed")
		return
	}
	if listing.Version != "" && listing.Version != v.ShortVersion {
		log.Warn().Str("store", listing.Version).Str("archive", v.ShortVersion).Msg("Archive version differs from the store listing")
	}
}

func (i *Installer) assemble(ctx context.Context, staged, newApp string, itunes, bundleMeta []byte) error {
	wrapperDir := filepath.Join(staged, bundle.WrapperDir)
	if err := i.fs.MkdirAll(wrapperDir, 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", wrapperDir)
	}
	target := filepath.Join(wrapperDir, filepath.Base(newApp))
	if err := i.fs.Rename(newApp, target); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot stage %s", newApp)
	}
	files := map[string][]byte{
		bundle.ITunesMetadataFile: itunes,
		bundle.BundleMetadataFile: bundleMeta,
	}
	if err := writeWrapperFiles(ctx, i.staging, wrapperDir, files); err != nil {
		return err
	}

	if _, err := bundle.ReadInfoFile(i.fs, filepath.Join(target, "Info.plist")); err != nil {
		return errors.Wrap(err, errors.ErrPlistInvalid, "staged app is unreadable")
	}
	if _, err := Preserve(i.fs, staged); err != nil {
		return errors.Wrap(err, errors.ErrPlistInvalid, "staged wrapper metadata is unreadable")
	}
	return nil
}

// runningExecutable names the process to stop: the live app's executable
// when readable, else the new one.
func (i *Installer) runningExecutable(wrapper, fallback string) string {
	inner, err := i.reader.WrappedApp(wrapper)
	if err != nil {
		return fallback
	}
	info, err := bundle.ReadInfoFile(i.fs, filepath.Join(inner, "Info.plist"))
	if err != nil || info.Executable == "" {
		return fallback
	}
	return info.Executable
}

func (i *Installer) rollback(ctx context.Context, log zerolog.Logger, live, backup string, res command.Result, swapErr error) error {
	failure := errors.Wrapf(swapErr, errors.ErrSwapFailed, "replacing %s failed", live).
		WithDetail("output", strings.TrimSpace(res.Stderr+"\n"+res.Stdout)).
		WithDetail("rollbackAttempted", true)

	log.Error().Err(swapErr).Msg("Swap failed, restoring backup")
	if _, err := i.privileged.RunScript(ctx, rollbackScript(live, backup)); err != nil {
		log.Error().Err(err).Str("backup", backup).Msg("Rollback failed")
		return errors.Wrapf(failure, errors.ErrRollbackFailed,
			"rollback failed (%v); %s may be inconsistent, backup at %s", err, live, backup).
			WithDetail("backup", backup).
			WithDetail("rollbackAttempted", true)
	}
	if ok, _ := afero.DirExists(i.fs, live); !ok {
		return errors.Wrapf(failure, errors.ErrRollbackFailed, "%s is missing after rollback", live).
			WithDetail("backup", backup).
			WithDetail("rollbackAttempted", true)
	}
	return failure
}

type swapPlan struct {
	Live, Staged, Backup string
	Inner                string
	Executable           string
	Owner, Mode          string
}

func swapScript(p swapPlan) string {
	q := command.Quote
	lines := []string{"set -e"}
	if p.Executable != "" {
		lines = append(lines, "pkill -x "+q(p.Executable)+" >/dev/null 2>&1 || true")
	}
	lines = append(lines,
		"mv "+q(p.Live)+" "+q(p.Backup),
		"mv "+q(p.Staged)+" "+q(p.Live),
	)
	if p.Owner != "" {
		lines = append(lines, "chown -R "+q(p.Owner)+" "+q(p.Live))
	}
	if p.Mode != "" {
		lines = append(lines, "chmod -R "+q(p.Mode)+" "+q(p.Live))
	}
	link := filepath.Join(bundle.WrapperDir, p.Inner)
	lines = append(lines,
		"ln -sfn "+q(link)+" "+q(filepath.Join(p.Live, bundle.WrappedBundleLink)),
		"rm -rf "+q(p.Backup),
	)
	return strings.Join(lines, "\n")
}

func rollbackScript(live, backup string) string {
	q := command.Quote
	return strings.Join([]string{
		"if [ -e " + q(backup) + " ]; then",
		"  rm -rf " + q(live),
		"  mv " + q(backup) + " " + q(live),
		"fi",
	}, "\n")
}
