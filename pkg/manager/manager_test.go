// pkg/manager/manager_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: testify mock, in-memory history store
// PURPOSE: Owner-goroutine state, per-source dispatch and failure handling

package manager

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/appsweep/pkg/appstore"
	"github.com/arthur-debert/appsweep/pkg/config"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/history"
	"github.com/arthur-debert/appsweep/pkg/sideload"
	"github.com/arthur-debert/appsweep/pkg/sparkle"
	"github.com/arthur-debert/appsweep/pkg/types"
)

type staticScanner struct {
	mu     sync.Mutex
	result map[types.Source][]types.UpdateableApp
	block  chan struct{}
}

func (s *staticScanner) ScanForUpdates(ctx context.Context, _ []types.InstalledApp) map[types.Source][]types.UpdateableApp {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *staticScanner) set(result map[types.Source][]types.UpdateableApp) {
	s.mu.Lock()
	s.result = result
	s.mu.Unlock()
}

var noApps = AppListerFunc(func(context.Context) ([]types.InstalledApp, error) {
	return []types.InstalledApp{{Path: "/Applications/A.app"}, {Path: "/Applications/B.app"}}, nil
})

type mockBrew struct{ mock.Mock }

func (b *mockBrew) Upgrade(ctx context.Context, name string, isCask bool, onLine func(string)) error {
	args := b.Called(name, isCask)
	if onLine != nil {
		onLine("==> Upgrading " + name)
	}
	return args.Error(0)
}

type funcStore func(ctx context.Context, productID string, progress appstore.ProgressFunc) error

func (f funcStore) Update(ctx context.Context, productID string, progress appstore.ProgressFunc) error {
	return f(ctx, productID, progress)
}

type recordingOpener struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (o *recordingOpener) Open(_ context.Context, bundleID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, bundleID)
	return o.err
}

type fakeFetcher struct{ dir string }

func (f *fakeFetcher) Fetch(_ context.Context, bundleID, dir string, progress appstore.ProgressFunc) (string, error) {
	f.dir = dir
	progress(1.0)
	return filepath.Join(dir, bundleID+".ipa"), nil
}

type fakeInstaller struct{ req sideload.InstallRequest }

func (f *fakeInstaller) Install(_ context.Context, req sideload.InstallRequest, progress sideload.ProgressFunc) error {
	f.req = req
	progress(0.5)
	progress(1.0)
	return nil
}

type asyncQueue struct {
	release chan struct{}
	err     error
}

func (q *asyncQueue) Enqueue(_ context.Context, _ types.UpdateableApp, progress sparkle.ProgressFunc, done func(error)) error {
	go func() {
		progress(sparkle.StateDownloading, 0.5)
		<-q.release
		progress(sparkle.StateInstalled, 1.0)
		done(q.err)
	}()
	return nil
}

func fixture() map[types.Source][]types.UpdateableApp {
	return map[types.Source][]types.UpdateableApp{
		types.SourceHomebrew: {
			{ID: "com.example.alpha", App: types.InstalledApp{Name: "Alpha", Path: "/Applications/Alpha.app", Version: "1.0"},
				AvailableVersion: "2.0", Source: types.SourceHomebrew, CaskToken: "alpha"},
			{ID: types.FormulaID("wget"), App: types.InstalledApp{Name: "wget", Version: "1.21.3"},
				AvailableVersion: "1.21.4", Source: types.SourceHomebrew, CaskToken: "wget", IsFormula: true},
		},
		types.SourceAppStore: {
			{ID: "com.example.pages", App: types.InstalledApp{Name: "Pages", Path: "/Applications/Pages.app", BundleID: "com.example.pages"},
				AvailableVersion: "14.1", Source: types.SourceAppStore, ProductID: "409201541"},
			{ID: "com.example.game", App: types.InstalledApp{Name: "Game", Path: "/Applications/Game.app", BundleID: "com.example.game", IsIOSApp: true},
				AvailableVersion: "3.0", Source: types.SourceAppStore, ProductID: "77", IsIOSApp: true},
		},
		types.SourceSparkle: {
			{ID: "com.example.bravo", App: types.InstalledApp{Name: "Bravo", Path: "/Applications/Bravo.app", BundleID: "com.example.bravo", Version: "1.0"},
				AvailableVersion: "1.5", Source: types.SourceSparkle},
		},
	}
}

func newManager(t *testing.T, appliers Appliers) (*Manager, *history.Store) {
	t.Helper()
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m := New(&staticScanner{result: fixture()}, noApps, Options{Appliers: appliers, Recorder: store})
	t.Cleanup(m.Close)

	_, err = m.Scan(context.Background())
	require.NoError(t, err)
	return m, store
}

func TestScanReplacesState(t *testing.T) {
	m, store := newManager(t, Appliers{})

	assert.False(t, m.IsScanning())
	assert.False(t, m.LastScan().IsZero())

	got := m.Updates()
	require.Len(t, got, 3)
	assert.Len(t, got[types.SourceHomebrew], 2)
	assert.Len(t, got[types.SourceAppStore], 2)
	assert.Len(t, got[types.SourceSparkle], 1)

	last, err := store.LastScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, last.Apps)
	assert.Equal(t, 2, last.Counts[types.SourceHomebrew])
}

func TestUpdatesReturnsCopy(t *testing.T) {
	m, _ := newManager(t, Appliers{})
	got := m.Updates()
	got[types.SourceHomebrew][0].Selected = true

	upd, ok := m.Get("com.example.alpha")
	require.True(t, ok)
	assert.False(t, upd.Selected)
}

func TestRescanKeepsSelection(t *testing.T) {
	scanner := &staticScanner{result: fixture()}
	m := New(scanner, noApps, Options{})
	defer m.Close()

	_, err := m.Scan(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Select("com.example.bravo", true))
	assert.True(t, errors.IsErrorCode(m.Select("com.example.nope", true), errors.ErrNotFound))

	next := fixture()
	next[types.SourceSparkle][0].AvailableVersion = "1.6"
	scanner.set(next)
	_, err = m.Scan(context.Background())
	require.NoError(t, err)

	upd, ok := m.Get("com.example.bravo")
	require.True(t, ok)
	assert.True(t, upd.Selected)
	assert.Equal(t, "1.6", upd.AvailableVersion)
}

func TestConcurrentScanIsRejected(t *testing.T) {
	scanner := &staticScanner{result: fixture(), block: make(chan struct{})}
	m := New(scanner, noApps, Options{})
	defer m.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := m.Scan(context.Background())
		errc <- err
	}()
	require.Eventually(t, m.IsScanning, time.Second, 5*time.Millisecond)

	_, err := m.Scan(context.Background())
	assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyQueued))

	close(scanner.block)
	require.NoError(t, <-errc)
	assert.False(t, m.IsScanning())
}

func TestHomebrewSuccessRemovesEntry(t *testing.T) {
	brew := &mockBrew{}
	brew.On("Upgrade", "alpha", true).Return(nil)
	brew.On("Upgrade", "wget", false).Return(nil)
	m, store := newManager(t, Appliers{Brew: brew})

	require.NoError(t, m.UpdateApp(context.Background(), "com.example.alpha"))
	require.NoError(t, m.UpdateApp(context.Background(), types.FormulaID("wget")))
	brew.AssertExpectations(t)

	assert.Empty(t, m.Updates()[types.SourceHomebrew])

	entries, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, history.OutcomeSucceeded, e.Outcome)
	}
}

func TestFailureKeepsEntry(t *testing.T) {
	brew := &mockBrew{}
	brew.On("Upgrade", "alpha", true).Return(errors.New(errors.ErrUpdateFailed, "checksum mismatch"))
	m, store := newManager(t, Appliers{Brew: brew})

	err := m.UpdateApp(context.Background(), "com.example.alpha")
	assert.True(t, errors.IsErrorCode(err, errors.ErrUpdateFailed))

	upd, ok := m.Get("com.example.alpha")
	require.True(t, ok)
	assert.Equal(t, types.StatusFailed, upd.Status.State)
	assert.Contains(t, upd.Status.FailureMessage, "checksum mismatch")

	entries, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.OutcomeFailed, entries[0].Outcome)
	assert.Equal(t, "1.0", entries[0].FromVersion)
	assert.Equal(t, "2.0", entries[0].ToVersion)

	// a failed entry can be retried
	brew.ExpectedCalls = nil
	brew.On("Upgrade", "alpha", true).Return(nil)
	require.NoError(t, m.UpdateApp(context.Background(), "com.example.alpha"))
	_, ok = m.Get("com.example.alpha")
	assert.False(t, ok)
}

func TestMissingApplierFails(t *testing.T) {
	m, _ := newManager(t, Appliers{})
	err := m.UpdateApp(context.Background(), "com.example.alpha")
	assert.True(t, errors.IsErrorCode(err, errors.ErrUnsupportedSource))

	err = m.UpdateApp(context.Background(), "com.example.unknown")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestAppStoreProgressRemovesAtCompletion(t *testing.T) {
	var m *Manager
	var seen types.UpdateableApp
	store := funcStore(func(_ context.Context, productID string, progress appstore.ProgressFunc) error {
		assert.Equal(t, "409201541", productID)
		progress(0.4)
		seen, _ = m.Get("com.example.pages")
		progress(1.0)
		_, stillThere := m.Get("com.example.pages")
		assert.False(t, stillThere)
		return nil
	})
	m, _ = newManager(t, Appliers{Store: store})

	require.NoError(t, m.UpdateApp(context.Background(), "com.example.pages"))
	assert.Equal(t, types.StatusDownloading, seen.Status.State)
	assert.InDelta(t, 0.4, seen.Progress, 1e-9)
}

func TestIOSAppIsSideloaded(t *testing.T) {
	fetcher := &fakeFetcher{}
	installer := &fakeInstaller{}
	m, _ := newManager(t, Appliers{
		Store: funcStore(func(context.Context, string, appstore.ProgressFunc) error {
			t.Fatal("iOS apps must not use the store download")
			return nil
		}),
		Archives: fetcher,
		Sideload: installer,
		TempDir:  t.TempDir(),
	})

	require.NoError(t, m.UpdateApp(context.Background(), "com.example.game"))
	assert.Equal(t, "/Applications/Game.app", installer.req.TargetPath)
	assert.Equal(t, "77", installer.req.ProductID)
	assert.Equal(t, filepath.Join(fetcher.dir, "com.example.game.ipa"), installer.req.ArchivePath)
	assert.NoDirExists(t, fetcher.dir)

	_, ok := m.Get("com.example.game")
	assert.False(t, ok)
}

func TestSparkleOpenHandsOff(t *testing.T) {
	opener := &recordingOpener{}
	m, store := newManager(t, Appliers{Opener: opener})

	require.NoError(t, m.UpdateApp(context.Background(), "com.example.bravo"))
	assert.Equal(t, []string{"com.example.bravo"}, opener.opened)

	upd, ok := m.Get("com.example.bravo")
	require.True(t, ok)
	assert.Equal(t, types.StatusIdle, upd.Status.State)

	entries, err := store.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, history.OutcomeHandedOff, entries[0].Outcome)
}

func TestSparkleInProcessCompletesInBackground(t *testing.T) {
	q := &asyncQueue{release: make(chan struct{})}
	m, store := newManager(t, Appliers{Sparkle: q, SparkleMode: config.SparkleApplyInProcess})

	require.NoError(t, m.UpdateApp(context.Background(), "com.example.bravo"))
	require.Eventually(t, func() bool {
		upd, _ := m.Get("com.example.bravo")
		return upd.Progress == 0.5
	}, time.Second, 5*time.Millisecond)

	err := m.UpdateApp(context.Background(), "com.example.bravo")
	assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyQueued))

	close(q.release)
	require.Eventually(t, func() bool {
		_, ok := m.Get("com.example.bravo")
		return !ok
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		entries, err := store.Recent(context.Background(), 0)
		return err == nil && len(entries) == 1 && entries[0].Outcome == history.OutcomeSucceeded
	}, time.Second, 5*time.Millisecond)
}

func TestUpdateSelected(t *testing.T) {
	brew := &mockBrew{}
	brew.On("Upgrade", "alpha", true).Return(nil)
	opener := &recordingOpener{err: errors.New(errors.ErrUpdateFailed, "no such app")}
	m, _ := newManager(t, Appliers{Brew: brew, Opener: opener})

	require.NoError(t, m.Select("com.example.alpha", true))
	require.NoError(t, m.Select("com.example.bravo", true))

	err := m.UpdateSelected(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrUpdateFailed))
	brew.AssertNumberOfCalls(t, "Upgrade", 1)

	got := m.Updates()
	assert.Len(t, got[types.SourceHomebrew], 1)
	assert.Equal(t, types.StatusFailed, got[types.SourceSparkle][0].Status.State)
}

func TestClosedManager(t *testing.T) {
	m := New(&staticScanner{result: fixture()}, noApps, Options{})
	m.Close()
	m.Close()

	_, err := m.Scan(context.Background())
	assert.True(t, errors.IsErrorCode(err, errors.ErrCanceled))
	assert.True(t, errors.IsErrorCode(m.Select("x", true), errors.ErrCanceled))
	assert.Len(t, m.Updates(), 3)
}
