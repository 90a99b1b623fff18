package bundle

import (
	"path/filepath"

	"github.com/spf13/afero"
	"howett.net/plist"
)

// WriteInfo writes info as an XML Info.plist at path, creating parents.
// It exists for tests of packages that consume bundles.
func WriteInfo(fs afero.Fs, path string, info Info) error {
	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0644)
}

// WriteApp creates a minimal macOS bundle at appPath.
func WriteApp(fs afero.Fs, appPath string, info Info, withSparkle bool) error {
	if err := WriteInfo(fs, filepath.Join(appPath, "Contents", "Info.plist"), info); err != nil {
		return err
	}
	if withSparkle {
		return fs.MkdirAll(filepath.Join(appPath, frameworksDir, "Sparkle.framework"), 0755)
	}
	return nil
}
