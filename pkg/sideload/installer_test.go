// pkg/sideload/installer_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: OS filesystem (t.TempDir), /bin/sh
// PURPOSE: Wrapper replacement, metadata preservation and rollback

package sideload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"github.com/arthur-debert/appsweep/pkg/appstore"
	"github.com/arthur-debert/appsweep/pkg/bundle"
	"github.com/arthur-debert/appsweep/pkg/command"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/testutil"
)

var protectedBlob = []byte{0x30, 0x82, 0x01, 0x0a, 0xde, 0xad, 0xbe, 0xef}

type stubLookup struct{ listing appstore.Listing }

func (s stubLookup) LookupID(context.Context, string) (appstore.Listing, error) { return s.listing, nil }

// faultyRunner runs scripts for real but can replace the second move of
// the swap script with a failure.
type faultyRunner struct {
	inner   command.PrivilegedRunner
	failMv  bool
	mu      sync.Mutex
	scripts []string
}

func (f *faultyRunner) RunScript(ctx context.Context, script string) (command.Result, error) {
	f.mu.Lock()
	f.scripts = append(f.scripts, script)
	f.mu.Unlock()

	if f.failMv && strings.HasPrefix(script, "set -e") {
		lines := strings.Split(script, "\n")
		moves := 0
		for i, line := range lines {
			if strings.HasPrefix(line, "mv ") {
				moves++
				if moves == 2 {
					lines[i] = "echo 'injected failure' >&2; exit 1"
				}
			}
		}
		script = strings.Join(lines, "\n")
	}
	return f.inner.RunScript(ctx, script)
}

type sideloadFixture struct {
	fs        afero.Fs
	root      string
	wrapper   string
	archive   string
	extractor *testutil.RecordingRunner
	tempDir   string
}

func newSideloadFixture(t *testing.T, withProtected bool) sideloadFixture {
	t.Helper()
	root := t.TempDir()
	fs := afero.NewOsFs()
	wrapper := filepath.Join(root, "Applications", "Notes.app")
	inner := filepath.Join(wrapper, bundle.WrapperDir, "Notes.app")

	require.NoError(t, bundle.WriteInfo(fs, filepath.Join(inner, "Info.plist"), bundle.Info{
		BundleIdentifier: "com.example.notes-ios",
		ShortVersion:     "1.0",
		Version:          "100",
	}))

	itunes, err := plist.Marshal(map[string]interface{}{
		"itemId":                            uint64(123456),
		"bundleShortVersionString":          "1.0",
		"bundleVersion":                     "100",
		"softwareVersionExternalIdentifier": uint64(555),
		"softwareVersionBundleId":           "com.example.notes-ios",
		"purchaseDate":                      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		"gameCenterEnabled":                 true,
	}, plist.XMLFormat)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, filepath.Join(wrapper, bundle.WrapperDir, bundle.ITunesMetadataFile), itunes, 0644))

	if withProtected {
		meta, err := EncodeBundleMetadata(VersionInfo{BundleID: "com.example.notes-ios", ShortVersion: "1.0", Build: "100"}, protectedBlob)
		require.NoError(t, err)
		require.NoError(t, afero.WriteFile(fs, filepath.Join(wrapper, bundle.WrapperDir, bundle.BundleMetadataFile), meta, 0644))
	}
	require.NoError(t, os.Symlink(filepath.Join(bundle.WrapperDir, "Notes.app"), filepath.Join(wrapper, bundle.WrappedBundleLink)))

	extractor := testutil.NewRecordingRunner()
	extractor.Fallback = func(spec command.Spec) (command.Result, error) {
		dest := spec.Args[len(spec.Args)-1]
		err := bundle.WriteInfo(fs, filepath.Join(dest, "Payload", "Notes.app", "Info.plist"), bundle.Info{
			BundleIdentifier: "com.example.notes-ios",
			ShortVersion:     "2.0",
			Version:          "200",
		})
		return command.Result{}, err
	}

	tempDir := filepath.Join(root, "tmp")
	require.NoError(t, fs.MkdirAll(tempDir, 0755))

	return sideloadFixture{
		fs:        fs,
		root:      root,
		wrapper:   wrapper,
		archive:   filepath.Join(root, "Notes.ipa"),
		extractor: extractor,
		tempDir:   tempDir,
	}
}

func (f sideloadFixture) installer(privileged command.PrivilegedRunner) *Installer {
	return NewInstaller(f.fs, f.extractor, privileged,
		stubLookup{listing: appstore.Listing{Version: "2.0"}},
		Options{ExtractTool: "ditto", TempDir: f.tempDir})
}

func TestInstallReplacesWrapper(t *testing.T) {
	f := newSideloadFixture(t, true)
	runner := &faultyRunner{inner: command.ShellRunner{Runner: command.NewExecRunner()}}

	var progress []float64
	err := f.installer(runner).Install(context.Background(), InstallRequest{
		ArchivePath: f.archive,
		TargetPath:  filepath.Join(f.wrapper, bundle.WrapperDir, "Notes.app"),
		ProductID:   "123456",
	}, func(p float64) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.Equal(t, []float64{ProgressExtracting, ProgressMetadata, ProgressSwapping, ProgressDone}, progress)
	calls := f.extractor.Calls()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0], "ditto -x -k "+f.archive+" "), calls[0])

	info, err := bundle.ReadInfoFile(f.fs, filepath.Join(f.wrapper, bundle.WrapperDir, "Notes.app", "Info.plist"))
	require.NoError(t, err)
	assert.Equal(t, "2.0", info.ShortVersion)

	data, err := afero.ReadFile(f.fs, filepath.Join(f.wrapper, bundle.WrapperDir, bundle.ITunesMetadataFile))
	require.NoError(t, err)
	var itunes map[string]interface{}
	_, err = plist.Unmarshal(data, &itunes)
	require.NoError(t, err)
	assert.Equal(t, "2.0", itunes["bundleShortVersionString"])
	assert.Equal(t, "200", itunes["bundleVersion"])
	assert.Equal(t, uint64(555), itunes["softwareVersionExternalIdentifier"])
	assert.Equal(t, uint64(123456), itunes["itemId"])
	assert.Equal(t, true, itunes["gameCenterEnabled"])

	meta, err := afero.ReadFile(f.fs, filepath.Join(f.wrapper, bundle.WrapperDir, bundle.BundleMetadataFile))
	require.NoError(t, err)
	require.NoError(t, ValidateBundleMetadata(meta,
		VersionInfo{BundleID: "com.example.notes-ios", ShortVersion: "2.0", Build: "200"}, protectedBlob))

	link, err := os.Readlink(filepath.Join(f.wrapper, bundle.WrappedBundleLink))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(bundle.WrapperDir, "Notes.app"), link)

	entries, err := afero.ReadDir(f.fs, filepath.Join(f.root, "Applications"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "backup must be removed")

	leftovers, err := afero.ReadDir(f.fs, f.tempDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "work directory must be removed")
}

func TestInstallRollsBackFailedSwap(t *testing.T) {
	f := newSideloadFixture(t, true)
	runner := &faultyRunner{inner: command.ShellRunner{Runner: command.NewExecRunner()}, failMv: true}

	err := f.installer(runner).Install(context.Background(), InstallRequest{
		ArchivePath: f.archive,
		TargetPath:  f.wrapper,
	}, nil)
	require.Error(t, err)

	assert.True(t, errors.IsErrorCode(err, errors.ErrSwapFailed))
	assert.False(t, errors.IsErrorCode(err, errors.ErrRollbackFailed))
	details := errors.GetErrorDetails(err)
	assert.Equal(t, true, details["rollbackAttempted"])
	assert.Contains(t, details["output"], "injected failure")

	require.Len(t, runner.scripts, 2, "swap then rollback")

	info, err := bundle.ReadInfoFile(f.fs, filepath.Join(f.wrapper, bundle.WrapperDir, "Notes.app", "Info.plist"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", info.ShortVersion, "original wrapper must be restored")

	pm, err := Preserve(f.fs, f.wrapper)
	require.NoError(t, err)
	assert.Equal(t, protectedBlob, pm.Protected)

	entries, err := afero.ReadDir(f.fs, filepath.Join(f.root, "Applications"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	leftovers, err := afero.ReadDir(f.fs, f.tempDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestInstallAbortsWithoutProtectedMetadata(t *testing.T) {
	f := newSideloadFixture(t, false)
	privileged := new(testutil.MockPrivilegedRunner)

	err := f.installer(privileged).Install(context.Background(), InstallRequest{
		ArchivePath: f.archive,
		TargetPath:  f.wrapper,
	}, nil)

	assert.True(t, errors.IsErrorCode(err, errors.ErrMetadataMissing))
	privileged.AssertNotCalled(t, "RunScript", mock.Anything, mock.Anything)

	info, err := bundle.ReadInfoFile(f.fs, filepath.Join(f.wrapper, bundle.WrapperDir, "Notes.app", "Info.plist"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", info.ShortVersion)
}

func TestInstallFailsOnBrokenArchive(t *testing.T) {
	f := newSideloadFixture(t, true)
	f.extractor.Fallback = nil
	f.extractor.On("ditto", testutil.Response{Err: errors.New(errors.ErrCommandFailed, "ditto: bad archive")})
	privileged := new(testutil.MockPrivilegedRunner)

	err := f.installer(privileged).Install(context.Background(), InstallRequest{
		ArchivePath: f.archive,
		TargetPath:  f.wrapper,
	}, nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrExtractFailed))
	privileged.AssertNotCalled(t, "RunScript", mock.Anything, mock.Anything)
}

func TestNormalizeWrapper(t *testing.T) {
	fs := testutil.NewMemFs(t, map[string]string{
		"/Applications/Game.app/Wrapper/Game.app/Info.plist": "x",
		"/Applications/Mac.app/Contents/Info.plist":          "x",
	})

	got, err := NormalizeWrapper(fs, "/Applications/Game.app")
	require.NoError(t, err)
	assert.Equal(t, "/Applications/Game.app", got)

	got, err = NormalizeWrapper(fs, "/Applications/Game.app/Wrapper/Game.app")
	require.NoError(t, err)
	assert.Equal(t, "/Applications/Game.app", got)

	_, err = NormalizeWrapper(fs, "/Applications/Mac.app")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestSwapScript(t *testing.T) {
	script := swapScript(swapPlan{
		Live:       "/Applications/My Game.app",
		Staged:     "/tmp/w/My Game.app",
		Backup:     "/Applications/My Game.app.bak",
		Inner:      "MyGame.app",
		Executable: "MyGame",
		Owner:      "root:wheel",
		Mode:       "755",
	})
	assert.Equal(t, strings.Join([]string{
		"set -e",
		"pkill -x 'MyGame' >/dev/null 2>&1 || true",
		"mv '/Applications/My Game.app' '/Applications/My Game.app.bak'",
		"mv '/tmp/w/My Game.app' '/Applications/My Game.app'",
		"chown -R 'root:wheel' '/Applications/My Game.app'",
		"chmod -R '755' '/Applications/My Game.app'",
		"ln -sfn 'Wrapper/MyGame.app' '/Applications/My Game.app/WrappedBundle'",
		"rm -rf '/Applications/My Game.app.bak'",
	}, "\n"), script)
}
