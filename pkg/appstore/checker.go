package appstore

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/fanout"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/types"
	"github.com/arthur-debert/appsweep/pkg/version"
)

// ProductIndex resolves installed app paths to product ids.
type ProductIndex interface {
	ProductIDs(ctx context.Context) (map[string]string, error)
}

// Lookup resolves listings by bundle id.
type Lookup interface {
	LookupBundle(ctx context.Context, bundleID string) (Listing, error)
}

// Checker reports App Store updates.
type Checker struct {
	index  ProductIndex
	lookup Lookup
	logger zerolog.Logger
}

// NewChecker combines an index and a lookup client.
func NewChecker(index ProductIndex, lookup Lookup) *Checker {
	return &Checker{index: index, lookup: lookup, logger: logging.GetLogger("appstore.checker")}
}

func (c *Checker) Source() types.Source { return types.SourceAppStore }

// CheckForUpdates looks up every store app and keeps the ones whose
// listing is newer than the installed bundle.
func (c *Checker) CheckForUpdates(ctx context.Context, apps []types.InstalledApp) []types.UpdateableApp {
	done := logging.LogOperationStart(c.logger, "appstore check")
	defer done()

	ids, err := c.index.ProductIDs(ctx)
	if err != nil {
		// wrapped iOS apps carry their id in iTunesMetadata.plist
		c.logger.Warn().Err(err).Msg("Spotlight index unavailable")
		ids = map[string]string{}
	}

	var storeApps []types.InstalledApp
	for _, app := range apps {
		if id, ok := ids[app.Path]; ok && app.ProductID == "" {
			app.ProductID = id
		}
		if app.ProductID != "" && app.BundleID != "" {
			storeApps = append(storeApps, app)
		}
	}

	return fanout.Gather(ctx, storeApps, c.check)
}

func (c *Checker) check(ctx context.Context, app types.InstalledApp) (types.UpdateableApp, bool) {
	log := c.logger.With().Str("bundleId", app.BundleID).Logger()

	listing, err := c.lookup.LookupBundle(ctx, app.BundleID)
	if err != nil {
		log.Debug().Err(err).Msg("Lookup failed")
		return types.UpdateableApp{}, false
	}

	cmp, err := version.CompareTriples(app.Version, listing.Version)
	if err != nil {
		log.Debug().Err(err).Msg("Unparsable store version")
		return types.UpdateableApp{}, false
	}
	if cmp <= 0 {
		return types.UpdateableApp{}, false
	}

	productID := app.ProductID
	if listing.TrackID != 0 {
		productID = listing.ProductID()
	}
	return types.UpdateableApp{
		ID:               app.BundleID,
		App:              app,
		AvailableVersion: listing.Version,
		Source:           types.SourceAppStore,
		ProductID:        productID,
		StoreURL:         listing.TrackViewURL,
		Status:           types.Status{State: types.StatusIdle},
		Release: types.Release{
			Title:       listing.TrackName,
			Description: listing.ReleaseNotes,
			NotesURL:    listing.TrackViewURL,
			Date:        listing.ReleaseDate,
		},
		IsIOSApp: app.IsIOSApp,
	}, true
}
