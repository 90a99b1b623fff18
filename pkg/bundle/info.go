package bundle

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"howett.net/plist"

	"github.com/arthur-debert/appsweep/pkg/errors"
)

// Info holds the Info.plist keys the update checkers use.
type Info struct {
	BundleIdentifier     string `plist:"CFBundleIdentifier"`
	ShortVersion         string `plist:"CFBundleShortVersionString"`
	Version              string `plist:"CFBundleVersion"`
	Name                 string `plist:"CFBundleName"`
	DisplayName          string `plist:"CFBundleDisplayName"`
	Executable           string `plist:"CFBundleExecutable"`
	FeedURL              string `plist:"SUFeedURL"`
	MinimumSystemVersion string `plist:"LSMinimumSystemVersion"`
	MinimumOSVersion     string `plist:"MinimumOSVersion"`
}

// ReadInfoFile decodes an XML or binary Info.plist.
func ReadInfoFile(fs afero.Fs, path string) (Info, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Info{}, errors.Wrapf(err, errors.ErrFileNotFound, "cannot read %s", path)
	}
	return DecodeInfo(data)
}

// DecodeInfo decodes Info.plist bytes.
func DecodeInfo(data []byte) (Info, error) {
	var info Info
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(&info); err != nil {
		return Info{}, errors.Wrap(err, errors.ErrPlistInvalid, "invalid Info.plist")
	}
	info.BundleIdentifier = strings.TrimSpace(info.BundleIdentifier)
	info.ShortVersion = strings.TrimSpace(info.ShortVersion)
	info.Version = strings.TrimSpace(info.Version)
	return info, nil
}

// DisplayNameFor prefers CFBundleDisplayName, then CFBundleName, then the
// bundle's file name.
func (i Info) DisplayNameFor(appPath string) string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.Name != "" {
		return i.Name
	}
	return strings.TrimSuffix(filepath.Base(appPath), ".app")
}
