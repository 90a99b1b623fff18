package sparkle

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/config"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/fanout"
	"github.com/arthur-debert/appsweep/pkg/fetch"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// CheckerOptions configures the Sparkle checker.
type CheckerOptions struct {
	Mode         string // config.SparkleCheckFull or config.SparkleCheckLight
	Policy       Policy
	FeedTemplate string
}

// Checker reports Sparkle updates.
type Checker struct {
	engine *Engine
	fetch  *fetch.Client
	gate   OSGate
	cache  *CandidateCache
	opts   CheckerOptions
	logger zerolog.Logger
}

// NewChecker creates a checker. engine is only used in full mode.
func NewChecker(engine *Engine, client *fetch.Client, gate OSGate, cache *CandidateCache, opts CheckerOptions) *Checker {
	if opts.Mode == "" {
		opts.Mode = config.SparkleCheckFull
	}
	return &Checker{
		engine: engine,
		fetch:  client,
		gate:   gate,
		cache:  cache,
		opts:   opts,
		logger: logging.GetLogger("sparkle.checker"),
	}
}

func (c *Checker) Source() types.Source { return types.SourceSparkle }

type feedApp struct {
	app  types.InstalledApp
	feed string
}

// CheckForUpdates reads the appcast of every app with a feed.
func (c *Checker) CheckForUpdates(ctx context.Context, apps []types.InstalledApp) []types.UpdateableApp {
	done := logging.LogOperationStart(c.logger, "sparkle check")
	defer done()

	var feeds []feedApp
	for _, app := range apps {
		if app.IsIOSApp || app.BundleID == "" {
			continue
		}
		if feed := FeedURL(app, c.opts.FeedTemplate); feed != "" {
			feeds = append(feeds, feedApp{app: app, feed: feed})
		}
	}
	c.logger.Debug().Int("apps", len(feeds)).Str("mode", c.opts.Mode).Msg("Checking appcasts")
	return fanout.Gather(ctx, feeds, c.check)
}

func (c *Checker) check(ctx context.Context, fa feedApp) (types.UpdateableApp, bool) {
	log := c.logger.With().Str("bundleId", fa.app.BundleID).Str("feed", fa.feed).Logger()

	var (
		item  Item
		found bool
		err   error
	)
	if c.opts.Mode == config.SparkleCheckLight || c.engine == nil {
		item, found, err = c.lightCheck(ctx, fa)
	} else {
		item, found, err = c.fullCheck(ctx, fa)
	}
	if err != nil {
		log.Debug().Err(err).Msg("Appcast check failed")
		return types.UpdateableApp{}, false
	}
	if !found || !Evaluate(ctx, fa.app, item, c.opts.Policy, c.gate) {
		return types.UpdateableApp{}, false
	}

	c.cache.Put(fa.app.BundleID, item)
	return types.UpdateableApp{
		ID:               fa.app.BundleID,
		App:              fa.app,
		AvailableVersion: item.DisplayVersion(),
		AvailableBuild:   item.Version,
		Source:           types.SourceSparkle,
		Status:           types.Status{State: types.StatusIdle},
		Release: types.Release{
			Title:       item.Title,
			Description: item.Description,
			NotesURL:    item.ReleaseNotesLink,
			Date:        item.PubDate,
		},
		IsPreRelease: IsPreRelease(item),
	}, true
}

func (c *Checker) lightCheck(ctx context.Context, fa feedApp) (Item, bool, error) {
	data, err := c.fetch.Bytes(ctx, fa.feed)
	if err != nil {
		return Item{}, false, err
	}
	items, err := ParseAppcast(data)
	if err != nil {
		return Item{}, false, err
	}

	var eligible []Item
	for _, item := range items {
		if c.gate == nil || c.gate.SatisfiesMinimum(ctx, item.MinimumSystemVersion) {
			eligible = append(eligible, item)
		}
	}
	item, ok := SelectBest(eligible, c.opts.Policy)
	return item, ok, nil
}

type checkResult struct {
	item  Item
	found bool
	err   error
}

// checkDelegate runs a check-only engine session and reports its single
// terminal callback.
type checkDelegate struct {
	NopDelegate
	policy Policy
	result chan checkResult
}

func (d *checkDelegate) UpdatePermission() Permission {
	return Permission{Allowed: true, AutomaticChecks: false}
}

func (d *checkDelegate) AllowedChannels() []string { return d.policy.AllowedChannels() }

func (d *checkDelegate) BestValidUpdate(items []Item) (Item, bool) {
	return SelectBest(items, d.policy)
}

func (d *checkDelegate) DidFindValidUpdate(item Item) bool {
	d.result <- checkResult{item: item, found: true}
	return false
}

func (d *checkDelegate) DidNotFindUpdate(best *Item) {
	if best == nil {
		d.result <- checkResult{}
		return
	}
	d.result <- checkResult{item: *best, found: true}
}

func (d *checkDelegate) DidAbort(err error) {
	d.result <- checkResult{err: err}
}

func (c *Checker) fullCheck(ctx context.Context, fa feedApp) (Item, bool, error) {
	d := &checkDelegate{policy: c.opts.Policy, result: make(chan checkResult, 1)}
	err := c.engine.Start(ctx, Session{App: fa.app, FeedURL: fa.feed, CheckOnly: true, Delegate: d})
	if err != nil {
		return Item{}, false, err
	}
	select {
	case r := <-d.result:
		return r.item, r.found, r.err
	case <-c.engine.loop.Done():
		return Item{}, false, errors.New(errors.ErrCanceled, "updater main loop is closed")
	case <-ctx.Done():
		return Item{}, false, errors.Wrap(ctx.Err(), errors.ErrCanceled, "appcast check canceled")
	}
}
