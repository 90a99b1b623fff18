package sparkle

import (
	"context"

	"github.com/arthur-debert/appsweep/pkg/command"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// Updater applies Sparkle updates in-process through the queue.
type Updater struct {
	engine       *Engine
	queue        *Queue
	cache        *CandidateCache
	policy       Policy
	feedTemplate string
}

func NewUpdater(engine *Engine, queue *Queue, cache *CandidateCache, policy Policy, feedTemplate string) *Updater {
	return &Updater{engine: engine, queue: queue, cache: cache, policy: policy, feedTemplate: feedTemplate}
}

// Queue exposes the underlying queue.
func (u *Updater) Queue() *Queue { return u.queue }

// Enqueue schedules an install of the cached candidate for upd. progress
// receives driver transitions; done receives the outcome.
func (u *Updater) Enqueue(ctx context.Context, upd types.UpdateableApp, progress ProgressFunc, done func(error)) error {
	if upd.Source != types.SourceSparkle {
		return errors.Newf(errors.ErrUnsupportedSource, "%s is not a Sparkle update", upd.ID)
	}
	bundleID := upd.App.BundleID
	candidate, ok := u.cache.Get(bundleID)
	if !ok {
		return errors.Newf(errors.ErrNoCandidate, "no validated candidate for %s, scan first", bundleID)
	}
	feed := FeedURL(upd.App, u.feedTemplate)

	op := func(ctx context.Context) error {
		driver := NewDriver(u.engine, upd.App, feed, candidate, u.policy, progress)
		if err := driver.Run(ctx); err != nil {
			return err
		}
		u.cache.Delete(bundleID)
		return nil
	}
	return u.queue.Enqueue(ctx, bundleID, op, done)
}

// Opener hands the update to the app's own updater by launching it.
type Opener struct {
	runner command.Runner
}

func NewOpener(runner command.Runner) *Opener {
	return &Opener{runner: runner}
}

// Open launches or activates the app with the given bundle id.
func (o *Opener) Open(ctx context.Context, bundleID string) error {
	if bundleID == "" {
		return errors.New(errors.ErrInvalidInput, "bundle id is required")
	}
	logging.LogCommand("open", []string{"-b", bundleID})
	if _, err := o.runner.Run(ctx, command.Spec{Name: "open", Args: []string{"-b", bundleID}}); err != nil {
		return errors.Wrapf(err, errors.ErrUpdateFailed, "cannot open %s", bundleID)
	}
	return nil
}
