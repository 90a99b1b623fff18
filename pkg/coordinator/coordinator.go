// Package coordinator runs the per-source checkers and merges their
// results so that every installed app is offered by one source only.
package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// Checker finds updates from one source. Implementations swallow per-app
// failures; an app that cannot be checked simply has no update.
type Checker interface {
	Source() types.Source
	CheckForUpdates(ctx context.Context, apps []types.InstalledApp) []types.UpdateableApp
}

// Coordinator fans a scan out to its checkers.
type Coordinator struct {
	checkers []Checker
	logger   zerolog.Logger
}

// New creates a coordinator over checkers. Order does not matter; source
// priority decides which result survives.
func New(checkers ...Checker) *Coordinator {
	return &Coordinator{checkers: checkers, logger: logging.GetLogger("coordinator")}
}

// ScanForUpdates runs every checker concurrently and waits for all of them
// before deduplicating by app path. The result has a key for every source.
func (c *Coordinator) ScanForUpdates(ctx context.Context, apps []types.InstalledApp) map[types.Source][]types.UpdateableApp {
	start := time.Now()
	results := make([][]types.UpdateableApp, len(c.checkers))

	g, gctx := errgroup.WithContext(ctx)
	for i, checker := range c.checkers {
		g.Go(func() error {
			results[i] = checker.CheckForUpdates(gctx, apps)
			c.logger.Debug().
				Str("source", string(checker.Source())).
				Int("updates", len(results[i])).
				Msg("Checker finished")
			return nil
		})
	}
	_ = g.Wait()

	bySource := make(map[types.Source][]types.UpdateableApp, len(types.Sources))
	for i, checker := range c.checkers {
		bySource[checker.Source()] = append(bySource[checker.Source()], results[i]...)
	}
	merged := Deduplicate(bySource)

	c.logger.Info().
		Int("homebrew", len(merged[types.SourceHomebrew])).
		Int("appstore", len(merged[types.SourceAppStore])).
		Int("sparkle", len(merged[types.SourceSparkle])).
		Dur("duration", time.Since(start)).
		Msg("Scan complete")
	return merged
}

// Deduplicate keeps each app path under its highest-priority source.
// Entries without an app path (formulae) are never merged away.
func Deduplicate(bySource map[types.Source][]types.UpdateableApp) map[types.Source][]types.UpdateableApp {
	out := make(map[types.Source][]types.UpdateableApp, len(types.Sources))
	claimed := make(map[string]bool)

	for _, source := range types.Sources {
		kept := []types.UpdateableApp{}
		for _, u := range bySource[source] {
			path := u.App.Path
			if path != "" && claimed[path] {
				continue
			}
			kept = append(kept, u)
		}
		for _, u := range kept {
			if u.App.Path != "" {
				claimed[u.App.Path] = true
			}
		}
		out[source] = kept
	}
	return out
}
