package testutil

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// WriteFiles creates every path in files with its content. Paths ending in
// "/" become empty directories.
func WriteFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if len(path) > 0 && path[len(path)-1] == '/' {
			require.NoError(t, fs.MkdirAll(path, 0755))
			continue
		}
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
}

// NewMemFs returns an in-memory filesystem populated with files.
func NewMemFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	WriteFiles(t, fs, files)
	return fs
}
