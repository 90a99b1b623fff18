package bundle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"howett.net/plist"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/types"
)

const (
	WrapperDir         = "Wrapper"
	WrappedBundleLink  = "WrappedBundle"
	ITunesMetadataFile = "iTunesMetadata.plist"
	BundleMetadataFile = "BundleMetadata.plist"
	frameworksDir      = "Contents/Frameworks"
)

// Reader turns bundle directories into InstalledApp records.
type Reader struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// NewReader creates a reader over fs.
func NewReader(fs afero.Fs) *Reader {
	return &Reader{fs: fs, logger: logging.GetLogger("bundle")}
}

// Fs exposes the underlying filesystem.
func (r *Reader) Fs() afero.Fs { return r.fs }

// IsIOSWrapper reports whether path is a wrapped iOS app.
func (r *Reader) IsIOSWrapper(path string) bool {
	ok, _ := afero.DirExists(r.fs, filepath.Join(path, WrapperDir))
	return ok
}

// WrappedApp returns the inner .app of an iOS wrapper.
func (r *Reader) WrappedApp(path string) (string, error) {
	wrapper := filepath.Join(path, WrapperDir)
	entries, err := afero.ReadDir(r.fs, wrapper)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileNotFound, "cannot list %s", wrapper)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".app") {
			return filepath.Join(wrapper, e.Name()), nil
		}
	}
	return "", errors.Newf(errors.ErrNotFound, "no .app inside %s", wrapper)
}

// HasSparkle reports whether the bundle embeds a Sparkle framework. Names
// are matched case-insensitively, so renamed builds such as
// "SparkleCore.framework" count too.
func (r *Reader) HasSparkle(appPath string) bool {
	entries, err := afero.ReadDir(r.fs, filepath.Join(appPath, frameworksDir))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if isSparkleFramework(e.Name()) {
			return true
		}
	}
	return false
}

// isSparkleFramework reports whether a Frameworks entry name is a Sparkle
// framework bundle.
func isSparkleFramework(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".framework") && strings.HasPrefix(lower, "sparkle")
}

// InfoPlistPath returns where the Info.plist of a bundle lives.
func (r *Reader) InfoPlistPath(appPath string) (string, error) {
	if r.IsIOSWrapper(appPath) {
		inner, err := r.WrappedApp(appPath)
		if err != nil {
			return "", err
		}
		return filepath.Join(inner, "Info.plist"), nil
	}
	return filepath.Join(appPath, "Contents", "Info.plist"), nil
}

// Read builds the InstalledApp for one bundle.
func (r *Reader) Read(appPath string) (types.InstalledApp, error) {
	infoPath, err := r.InfoPlistPath(appPath)
	if err != nil {
		return types.InstalledApp{}, err
	}
	info, err := ReadInfoFile(r.fs, infoPath)
	if err != nil {
		return types.InstalledApp{}, err
	}
	if info.BundleIdentifier == "" {
		return types.InstalledApp{}, errors.Newf(errors.ErrPlistInvalid, "%s has no bundle identifier", infoPath)
	}

	app := types.InstalledApp{
		Path:       appPath,
		Name:       info.DisplayNameFor(appPath),
		BundleID:   info.BundleIdentifier,
		Version:    info.ShortVersion,
		Build:      info.Version,
		FeedURL:    strings.TrimSpace(info.FeedURL),
		Executable: info.Executable,
		MinimumOS:  info.MinimumSystemVersion,
	}

	if r.IsIOSWrapper(appPath) {
		app.IsIOSApp = true
		app.MinimumOS = info.MinimumOSVersion
		if id, err := r.ITunesItemID(appPath); err == nil {
			app.ProductID = id
		}
	} else {
		app.HasSparkle = r.HasSparkle(appPath)
	}
	return app, nil
}

// ITunesItemID reads itemId from a wrapper's iTunesMetadata.plist.
func (r *Reader) ITunesItemID(wrapperPath string) (string, error) {
	data, err := afero.ReadFile(r.fs, filepath.Join(wrapperPath, WrapperDir, ITunesMetadataFile))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrMetadataMissing, "no iTunesMetadata.plist")
	}
	var meta struct {
		ItemID interface{} `plist:"itemId"`
	}
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(&meta); err != nil {
		return "", errors.Wrap(err, errors.ErrPlistInvalid, "invalid iTunesMetadata.plist")
	}
	switch v := meta.ItemID.(type) {
	case uint64:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	case string:
		return v, nil
	}
	return "", errors.New(errors.ErrMetadataMissing, "iTunesMetadata.plist has no itemId")
}

// Discover lists the .app bundles directly inside dirs, and one level
// below for folders such as /Applications/Utilities. Unreadable bundles
// are logged and skipped.
func (r *Reader) Discover(dirs []string) []types.InstalledApp {
	seen := make(map[string]bool)
	var apps []types.InstalledApp

	for _, dir := range dirs {
		for _, path := range r.bundlesIn(dir, 1) {
			if seen[path] {
				continue
			}
			seen[path] = true

			app, err := r.Read(path)
			if err != nil {
				r.logger.Debug().Err(err).Str("path", path).Msg("Skipping unreadable bundle")
				continue
			}
			apps = append(apps, app)
		}
	}

	sort.Slice(apps, func(i, j int) bool { return apps[i].Path < apps[j].Path })
	return apps
}

func (r *Reader) bundlesIn(dir string, depth int) []string {
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn().Err(err).Str("dir", dir).Msg("Cannot list application directory")
		}
		return nil
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if strings.HasSuffix(e.Name(), ".app") {
			out = append(out, path)
			continue
		}
		if depth > 0 {
			out = append(out, r.bundlesIn(path, depth-1)...)
		}
	}
	return out
}
