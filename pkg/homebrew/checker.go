package homebrew

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/fanout"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// CheckerOptions carries the update policy relevant to Homebrew.
type CheckerOptions struct {
	// SkipAutoUpdating leaves casks that update themselves to Sparkle
	SkipAutoUpdating bool
	IncludeFormulae  bool
}

// Checker reports Homebrew updates for installed apps.
type Checker struct {
	scanner  *Scanner
	outdated *OutdatedChecker
	opts     CheckerOptions
	logger   zerolog.Logger
}

// NewChecker wires a scanner and an outdated checker.
func NewChecker(scanner *Scanner, outdated *OutdatedChecker, opts CheckerOptions) *Checker {
	return &Checker{
		scanner:  scanner,
		outdated: outdated,
		opts:     opts,
		logger:   logging.GetLogger("homebrew.checker"),
	}
}

func (c *Checker) Source() types.Source { return types.SourceHomebrew }

// CheckForUpdates returns cask updates for apps with a cask token and,
// when enabled, formula updates as synthetic entries.
func (c *Checker) CheckForUpdates(ctx context.Context, apps []types.InstalledApp) []types.UpdateableApp {
	done := logging.LogOperationStart(c.logger, "homebrew check")
	defer done()

	pkgs := c.scanner.Scan()
	apps = AssignCaskTokens(apps, pkgs)

	tracked := make(map[string]types.InstalledApp)
	for _, app := range apps {
		if app.CaskToken == "" {
			continue
		}
		if c.opts.SkipAutoUpdating && app.AutoUpdates {
			continue
		}
		tracked[app.CaskToken] = app
	}

	var candidates []InstalledPackage
	caskNames := make(map[string]bool)
	for _, pkg := range pkgs {
		if pkg.IsCask {
			caskNames[pkg.Name] = true
			if _, ok := tracked[pkg.Name]; ok {
				candidates = append(candidates, pkg)
			}
			continue
		}
		if c.opts.IncludeFormulae && pkg.InstalledOnRequest {
			candidates = append(candidates, pkg)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	outdated := c.outdated.Outdated(ctx, candidates)

	return fanout.Gather(ctx, outdated, func(_ context.Context, o OutdatedPackage) (types.UpdateableApp, bool) {
		if !o.IsCask {
			if caskNames[o.Name] {
				return types.UpdateableApp{}, false
			}
			return formulaUpdate(o), true
		}

		app := tracked[o.Name]
		installed := app.Version
		if installed == "" {
			installed = o.InstalledVersion
		}
		// the bundle is ground truth; brew's record lags for self-updating apps
		if !IsNewer(o.AvailableVersion, installed) {
			c.logger.Debug().
				Str("cask", o.Name).
				Str("installed", installed).
				Str("available", o.AvailableVersion).
				Msg("App already at or past cask version")
			return types.UpdateableApp{}, false
		}
		return types.UpdateableApp{
			ID:               app.BundleID,
			App:              app,
			AvailableVersion: NormalizeVersion(o.AvailableVersion),
			Source:           types.SourceHomebrew,
			CaskToken:        o.Name,
			Status:           types.Status{State: types.StatusIdle},
		}, true
	})
}

func formulaUpdate(o OutdatedPackage) types.UpdateableApp {
	return types.UpdateableApp{
		ID: types.FormulaID(o.Name),
		App: types.InstalledApp{
			Name:    o.Name,
			Version: o.InstalledVersion,
		},
		AvailableVersion: NormalizeVersion(o.AvailableVersion),
		Source:           types.SourceHomebrew,
		CaskToken:        o.Name,
		IsFormula:        true,
		Status:           types.Status{State: types.StatusIdle},
	}
}

// AssignCaskTokens fills CaskToken and AutoUpdates for apps installed by a
// scanned cask, matching on the .app names in the cask's artifacts.
// Apps that already carry a token are left alone.
func AssignCaskTokens(apps []types.InstalledApp, pkgs []InstalledPackage) []types.InstalledApp {
	byApp := make(map[string]InstalledPackage)
	for _, pkg := range pkgs {
		if !pkg.IsCask {
			continue
		}
		for _, a := range pkg.Artifacts {
			byApp[a] = pkg
		}
	}

	out := make([]types.InstalledApp, len(apps))
	for i, app := range apps {
		out[i] = app
		if app.CaskToken != "" {
			continue
		}
		if pkg, ok := byApp[filepath.Base(app.Path)]; ok {
			out[i].CaskToken = pkg.Name
			out[i].AutoUpdates = pkg.AutoUpdates
		}
	}
	return out
}
