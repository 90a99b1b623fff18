package appsweep

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/appsweep/pkg/appstore"
	"github.com/arthur-debert/appsweep/pkg/bundle"
	"github.com/arthur-debert/appsweep/pkg/command"
	"github.com/arthur-debert/appsweep/pkg/config"
	"github.com/arthur-debert/appsweep/pkg/coordinator"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/fetch"
	"github.com/arthur-debert/appsweep/pkg/history"
	"github.com/arthur-debert/appsweep/pkg/homebrew"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/manager"
	"github.com/arthur-debert/appsweep/pkg/paths"
	"github.com/arthur-debert/appsweep/pkg/schedule"
	"github.com/arthur-debert/appsweep/pkg/sideload"
	"github.com/arthur-debert/appsweep/pkg/sparkle"
	"github.com/arthur-debert/appsweep/pkg/system"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// env holds what every command needs: configuration, locations and the
// process-wide clients. Heavier pieces are built on demand.
type env struct {
	cfg    *config.Config
	paths  paths.Paths
	fs     afero.Fs
	runner command.Runner
	client *fetch.Client
	host   *system.Info
	logger zerolog.Logger

	closers []func()
}

func loadEnv(configPath string, overrides []string) (*env, error) {
	p := paths.New()
	if configPath == "" {
		configPath = p.ConfigFile()
	}
	set, err := config.ParseOverrides(overrides)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithOverrides(configPath, set)
	if err != nil {
		return nil, fmt.Errorf(MsgErrLoadConfig, err)
	}

	runner := command.NewExecRunner()
	return &env{
		cfg:    cfg,
		paths:  p,
		fs:     afero.NewOsFs(),
		runner: runner,
		client: fetch.New(cfg.HTTP),
		host:   system.New(runner),
		logger: logging.GetLogger("cli"),
	}, nil
}

// close releases everything built on demand, newest first.
func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *env) brewPrefix() string {
	return homebrew.DetectPrefix(e.fs, e.cfg.Homebrew.Prefix)
}

func (e *env) brew() *homebrew.Brew {
	return homebrew.NewBrew(e.runner, e.cfg.Homebrew.BrewPath, e.brewPrefix())
}

func (e *env) lookup() *appstore.LookupClient {
	return appstore.NewLookupClient(e.client, e.cfg.AppStore.LookupURL, system.Country(e.cfg.AppStore.Country))
}

func (e *env) policy() sparkle.Policy {
	return sparkle.Policy{IncludePrereleases: e.cfg.Updates.IncludePrereleases}
}

func (e *env) searchDirs() []string {
	return paths.ExpandAll(e.cfg.AppStore.SearchDirs)
}

func (e *env) installedApps(context.Context) ([]types.InstalledApp, error) {
	return bundle.NewReader(e.fs).Discover(e.searchDirs()), nil
}

// sparkleEngine starts the callback loop the engine reports through. The
// loop lives until close.
func (e *env) sparkleEngine() *sparkle.Engine {
	loop := sparkle.NewMainLoop()
	e.closers = append(e.closers, loop.Close)
	return sparkle.NewEngine(e.client, e.fs, e.host, loop, e.paths.TempDir())
}

// history opens the store, or returns nil when history is disabled.
func (e *env) history() (*history.Store, error) {
	if !e.cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(e.paths.HistoryDBPath())
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() { _ = store.Close() })
	return store, nil
}

func (e *env) checkers(engine *sparkle.Engine, cache *sparkle.CandidateCache) []coordinator.Checker {
	prefix := e.brewPrefix()
	brew := homebrew.NewChecker(
		homebrew.NewScanner(e.fs, prefix),
		homebrew.NewOutdatedChecker(e.client, e.fs, prefix, e.cfg.Homebrew.APIURL, e.cfg.Homebrew.APIConcurrency),
		homebrew.CheckerOptions{
			SkipAutoUpdating: e.cfg.Updates.SparkleForAutoUpdatingCasks,
			IncludeFormulae:  e.cfg.Updates.IncludeFormulae,
		},
	)
	store := appstore.NewChecker(
		appstore.NewSpotlightIndex(e.runner, e.searchDirs(), e.cfg.AppStore.IndexTimeout),
		e.lookup(),
	)
	sp := sparkle.NewChecker(engine, e.client, e.host, cache, sparkle.CheckerOptions{
		Mode:         e.cfg.Updates.SparkleCheckMode,
		Policy:       e.policy(),
		FeedTemplate: e.cfg.Sparkle.FallbackFeedTemplate,
	})
	return []coordinator.Checker{brew, store, sp}
}

// updater bundles the manager with the Sparkle queue so callers can wait
// for in-process installs.
type updater struct {
	*manager.Manager
	queue *sparkle.Queue
}

func (e *env) updater() (*updater, error) {
	store, err := e.history()
	if err != nil {
		return nil, err
	}
	var recorder manager.Recorder
	if store != nil {
		recorder = store
	}

	if err := e.fs.MkdirAll(e.paths.TempDir(), 0700); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", e.paths.TempDir())
	}

	engine := e.sparkleEngine()
	cache := sparkle.NewCandidateCache()
	queue := sparkle.NewQueue(e.cfg.Sparkle.QueueLimit)
	lookup := e.lookup()

	appliers := manager.Appliers{
		Brew:     e.brew(),
		Store:    appstore.NewDownloader(e.runner, e.cfg.AppStore.DownloadTool),
		Archives: appstore.NewArchiveFetcher(e.runner, e.cfg.AppStore.ArchiveTool),
		Sideload: sideload.NewInstaller(e.fs, e.runner,
			command.NewPrivilegedRunner(e.cfg.Sideload.Privilege, e.runner),
			lookup,
			sideload.Options{
				ExtractTool: e.cfg.Sideload.ExtractTool,
				Owner:       e.cfg.Sideload.Owner,
				Mode:        e.cfg.Sideload.Mode,
				TempDir:     e.paths.TempDir(),
			}),
		Opener:      sparkle.NewOpener(e.runner),
		Sparkle:     sparkle.NewUpdater(engine, queue, cache, e.policy(), e.cfg.Sparkle.FallbackFeedTemplate),
		SparkleMode: e.cfg.Updates.SparkleApplyMode,
		TempDir:     e.paths.TempDir(),
	}

	m := manager.New(
		coordinator.New(e.checkers(engine, cache)...),
		manager.AppListerFunc(e.installedApps),
		manager.Options{Appliers: appliers, Recorder: recorder},
	)
	e.closers = append(e.closers, func() {
		queue.CancelAll()
		queue.Wait()
		m.Close()
	})
	return &updater{Manager: m, queue: queue}, nil
}

func (e *env) scheduleStore() *schedule.Store {
	return schedule.NewStore(e.fs, e.paths.ScheduleFilePath())
}

func (e *env) registrar() *schedule.Registrar {
	return schedule.NewRegistrar(e.fs, e.runner, paths.LaunchAgentLabel, e.paths.LaunchAgentPath())
}

// maintenanceCommand is the shell command scheduled runs execute.
func (e *env) maintenanceCommand() string {
	if e.cfg.Schedule.Command != "" {
		return e.cfg.Schedule.Command
	}
	return homebrew.MaintenanceCommand(e.brew().Path())
}

func (e *env) scheduleLogPath() string {
	return filepath.Join(e.paths.StateDir(), "autoupdate.log")
}

func (e *env) catalog() *homebrew.Catalog {
	return homebrew.NewCatalog(e.client, e.fs, e.cfg.Homebrew.APIURL, e.paths.CaskCatalogPath())
}
